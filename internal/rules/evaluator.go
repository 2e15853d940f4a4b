package rules

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

// scoreVar is the pseudo-feature exposing the running score to conditions.
const scoreVar = "score"

// DecisionPolicy holds the thresholds that turn an adjusted score into an
// actionable outcome.
type DecisionPolicy struct {
	ApproveAt   int
	RejectBelow int
}

var DefaultPolicy = DecisionPolicy{ApproveAt: 650, RejectBelow: 500}

// RuleError records a rule that failed to compile or evaluate. Broken rules
// are skipped, never fatal to the scoring request.
type RuleError struct {
	RuleID uuid.UUID
	Name   string
	Err    error
}

// Outcome is the result of applying a rule set to a computed score.
type Outcome struct {
	Score    int
	Decision models.Decision
	Matched  []uuid.UUID
	Flags    []string
	Errors   []RuleError
}

// Evaluator applies decision rules to scores. Compiled conditions are
// cached by expression text, so repeated scoring does not re-parse.
type Evaluator struct {
	policy   DecisionPolicy
	minScore int
	maxScore int

	mu       sync.RWMutex
	compiled map[string]*Program
}

func NewEvaluator(policy DecisionPolicy) *Evaluator {
	return &Evaluator{
		policy:   policy,
		minScore: 300,
		maxScore: 900,
		compiled: make(map[string]*Program),
	}
}

func (e *Evaluator) program(expression string) (*Program, error) {
	e.mu.RLock()
	prog, ok := e.compiled[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.compiled[expression] = prog
	e.mu.Unlock()
	return prog, nil
}

// Apply evaluates the active rules in (priority, created_at) order against
// the snapshot plus the running score, applies matched actions in sequence,
// and derives the decision. The returned score is clamped back to the
// scorecard range after all adjustments.
func (e *Evaluator) Apply(ruleSet []*models.DecisionRule, snapshot models.FeatureSnapshot, score int) Outcome {
	ordered := make([]*models.DecisionRule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.Active {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	vars := make(map[string]float64, len(snapshot)+1)
	for name, v := range snapshot {
		vars[name] = v
	}

	running := float64(score)
	out := Outcome{}

	for _, rule := range ordered {
		prog, err := e.program(rule.Expression)
		if err != nil {
			out.Errors = append(out.Errors, RuleError{RuleID: rule.ID, Name: rule.Name, Err: err})
			continue
		}

		vars[scoreVar] = running
		matched, err := prog.Eval(vars)
		if err != nil {
			out.Errors = append(out.Errors, RuleError{RuleID: rule.ID, Name: rule.Name, Err: err})
			continue
		}
		if !matched {
			continue
		}

		out.Matched = append(out.Matched, rule.ID)
		switch rule.Action {
		case models.ActionCap:
			if running > rule.Value {
				running = rule.Value
			}
		case models.ActionFloor:
			if running < rule.Value {
				running = rule.Value
			}
		case models.ActionAdjust:
			running += rule.Value
		case models.ActionMultiply:
			running *= rule.Value
		case models.ActionFlag:
			out.Flags = append(out.Flags, rule.Flag)
		}
	}

	final := int(running + 0.5)
	if running < 0 {
		final = int(running - 0.5)
	}
	if final < e.minScore {
		final = e.minScore
	}
	if final > e.maxScore {
		final = e.maxScore
	}

	out.Score = final
	out.Decision = e.decide(final, out.Flags)
	return out
}

func (e *Evaluator) decide(score int, flags []string) models.Decision {
	switch {
	case score < e.policy.RejectBelow:
		return models.DecisionReject
	case len(flags) > 0:
		return models.DecisionFlag
	case score < e.policy.ApproveAt:
		return models.DecisionManualReview
	default:
		return models.DecisionApprove
	}
}
