// Package service wires the scoring engine, rule evaluator, and version
// lifecycle on top of the repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/messaging"
	"github.com/ledgerline-systems/supplyscore/internal/metrics"
	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/scorecard"
)

var (
	ErrVersionAlreadyActive  = errors.New("version is already active")
	ErrVersionNotActivatable = errors.New("version failed its quality gate and cannot be activated")
)

// VersionValidationError reports which pre-activation check rejected a
// candidate version.
type VersionValidationError struct {
	Check  string
	Detail string
}

func (e *VersionValidationError) Error() string {
	return fmt.Sprintf("version validation failed (%s): %s", e.Check, e.Detail)
}

// VersionManager governs the scorecard version lifecycle. Weights are
// immutable after creation; every change flows through new draft versions
// and the activation path.
type VersionManager struct {
	repo      repository.Repository
	cfg       config.VersionsConfig
	publisher *messaging.Publisher
	log       *slog.Logger

	// serializes activations in front of the repository swap
	activateMu sync.Mutex
}

func NewVersionManager(repo repository.Repository, cfg config.VersionsConfig, publisher *messaging.Publisher, log *slog.Logger) *VersionManager {
	return &VersionManager{repo: repo, cfg: cfg, publisher: publisher, log: log}
}

func (m *VersionManager) ListVersions(ctx context.Context) ([]*models.ScorecardVersion, error) {
	return m.repo.ListVersions(ctx)
}

func (m *VersionManager) GetVersion(ctx context.Context, id uuid.UUID) (*models.ScorecardVersion, error) {
	return m.repo.GetVersion(ctx, id)
}

// EnsureInitialVersion seeds and activates the expert scorecard when the
// version table is empty. Safe to call on every startup.
func (m *VersionManager) EnsureInitialVersion(ctx context.Context) (*models.ScorecardVersion, error) {
	active, err := m.repo.GetActiveVersion(ctx)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, repository.ErrNoActiveVersion) {
		return nil, err
	}

	existing, err := m.repo.ListVersions(ctx)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		// versions exist but none is active: operator intervention, not ours
		return nil, repository.ErrNoActiveVersion
	}

	seed := scorecard.ExpertVersion()
	if err := m.repo.CreateVersion(ctx, seed); err != nil {
		return nil, fmt.Errorf("failed to seed expert scorecard: %w", err)
	}
	if err := m.repo.SwapActiveVersion(ctx, seed.ID); err != nil {
		return nil, fmt.Errorf("failed to activate expert scorecard: %w", err)
	}
	m.log.Info("seeded expert scorecard", "version", seed.Version, "id", seed.ID)
	return m.repo.GetActiveVersion(ctx)
}

// ActivateVersion promotes a version to active after validating it against
// the one it replaces. Exactly one version is active at any time.
func (m *VersionManager) ActivateVersion(ctx context.Context, id uuid.UUID) (*models.ScorecardVersion, error) {
	m.activateMu.Lock()
	defer m.activateMu.Unlock()

	target, err := m.repo.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Status == models.StatusActive {
		return nil, ErrVersionAlreadyActive
	}
	if !target.Activatable {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotActivatable, target.GateReason)
	}

	current, err := m.repo.GetActiveVersion(ctx)
	if err != nil && !errors.Is(err, repository.ErrNoActiveVersion) {
		return nil, err
	}
	if current != nil {
		if verr := m.validateTransition(current, target); verr != nil {
			return nil, verr
		}
	}

	if err := m.repo.SwapActiveVersion(ctx, target.ID); err != nil {
		return nil, err
	}

	activated, err := m.repo.GetVersion(ctx, target.ID)
	if err != nil {
		return nil, err
	}

	metrics.VersionActivations.Inc()
	m.publisher.ScorecardActivated(activated)
	m.log.Info("activated scorecard version",
		"version", activated.Version, "id", activated.ID, "provenance", activated.Provenance)
	return activated, nil
}

// Rollback reactivates a previously retired version through the normal
// activation path, so the same validation applies.
func (m *VersionManager) Rollback(ctx context.Context, id uuid.UUID) (*models.ScorecardVersion, error) {
	target, err := m.repo.GetVersion(ctx, id)
	if err != nil {
		return nil, err
	}
	if target.Status != models.StatusInactive {
		return nil, repository.ErrVersionNotInactive
	}
	return m.ActivateVersion(ctx, id)
}

// validateTransition guards against weight configurations that would move
// the scored population abruptly: total mass drift, silently dropped
// features, and outsized single-weight jumps.
func (m *VersionManager) validateTransition(current, target *models.ScorecardVersion) *VersionValidationError {
	currentSum := current.WeightSum()
	targetSum := target.WeightSum()

	if currentSum > 0 {
		drift := math.Abs(targetSum-currentSum) / currentSum
		if drift > m.cfg.WeightSumTolerance {
			return &VersionValidationError{
				Check:  "weight_sum",
				Detail: fmt.Sprintf("weight sum %.2f drifts %.1f%% from active %.2f", targetSum, drift*100, currentSum),
			}
		}
	}

	for name, cw := range current.Weights {
		if cw.Weight == 0 {
			continue
		}
		tw, ok := target.Weights[name]
		if !ok || tw.Weight == 0 {
			return &VersionValidationError{
				Check:  "zeroed_feature",
				Detail: fmt.Sprintf("feature %s had weight %.2f and would drop to zero", name, cw.Weight),
			}
		}
	}

	for name, tw := range target.Weights {
		delta := math.Abs(tw.Weight - current.Weights[name].Weight)
		if delta > m.cfg.MaxWeightChange {
			return &VersionValidationError{
				Check:  "weight_change",
				Detail: fmt.Sprintf("feature %s changes by %.2f, above the %.2f limit", name, delta, m.cfg.MaxWeightChange),
			}
		}
	}

	return nil
}

// nextVersionLabel bumps the minor component of a major.minor label.
func nextVersionLabel(label string) string {
	parts := strings.Split(label, ".")
	if len(parts) == 2 {
		if minor, err := strconv.Atoi(parts[1]); err == nil {
			return fmt.Sprintf("%s.%d", parts[0], minor+1)
		}
	}
	return label + ".1"
}
