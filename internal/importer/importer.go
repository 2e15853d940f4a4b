// Package importer bootstraps decision rules from a YAML file at startup.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/rules"
)

// ruleFile is the YAML shape of one bootstrap rule.
type ruleFile struct {
	Name       string  `yaml:"name"`
	Expression string  `yaml:"expression"`
	Action     string  `yaml:"action"`
	Value      float64 `yaml:"value"`
	Flag       string  `yaml:"flag"`
	Priority   int     `yaml:"priority"`
}

type bootstrapFile struct {
	Rules []ruleFile `yaml:"rules"`
}

// Importer seeds the decision rule table from a YAML file. It only runs
// when the table is empty, so operator edits are never overwritten.
type Importer struct {
	repo repository.Repository
	log  *slog.Logger
}

func NewImporter(repo repository.Repository, log *slog.Logger) *Importer {
	return &Importer{repo: repo, log: log}
}

// Import loads rules from path. A missing file means nothing to bootstrap
// and is not an error; a rule that fails to compile is.
func (imp *Importer) Import(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	count, err := imp.repo.CountDecisionRules(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		imp.log.Debug("decision rules already present, skipping bootstrap", "count", count)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			imp.log.Info("no rule bootstrap file", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read rule file: %w", err)
	}

	var file bootstrapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse rule file: %w", err)
	}

	for i, rf := range file.Rules {
		rule, err := toRule(rf)
		if err != nil {
			return fmt.Errorf("rule %d (%s): %w", i, rf.Name, err)
		}
		if err := imp.repo.CreateDecisionRule(ctx, rule); err != nil {
			return fmt.Errorf("failed to store rule %s: %w", rf.Name, err)
		}
	}

	imp.log.Info("bootstrapped decision rules", "count", len(file.Rules), "path", path)
	return nil
}

func toRule(rf ruleFile) (*models.DecisionRule, error) {
	if rf.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	if _, err := rules.Compile(rf.Expression); err != nil {
		return nil, fmt.Errorf("invalid expression: %w", err)
	}

	action := models.RuleAction(rf.Action)
	switch action {
	case models.ActionCap, models.ActionFloor, models.ActionAdjust, models.ActionMultiply:
	case models.ActionFlag:
		if rf.Flag == "" {
			return nil, fmt.Errorf("flag action requires a flag label")
		}
	default:
		return nil, fmt.Errorf("unknown action %q", rf.Action)
	}

	priority := rf.Priority
	if priority == 0 {
		priority = 100
	}

	return &models.DecisionRule{
		Name:       rf.Name,
		Expression: rf.Expression,
		Action:     action,
		Value:      rf.Value,
		Flag:       rf.Flag,
		Priority:   priority,
		Active:     true,
	}, nil
}
