package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/metrics"
	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
)

var ErrInvalidBlendFactor = errors.New("blend factor must be between 0 and 1")

// Refiner turns externally trained model artifacts into candidate scorecard
// versions. It never trains models itself and never touches the active
// version: output is always a draft, gated before it can be activated.
type Refiner struct {
	repo repository.Repository
	cfg  config.RefinementConfig
	log  *slog.Logger
}

func NewRefiner(repo repository.Repository, cfg config.RefinementConfig, log *slog.Logger) *Refiner {
	return &Refiner{repo: repo, cfg: cfg, log: log}
}

// DefaultBlendFactor is the configured alpha used when a caller does not
// supply one.
func (r *Refiner) DefaultBlendFactor() float64 {
	return r.cfg.BlendFactor
}

// RefineFromArtifact blends ML coefficients into a base version's weights
// and persists the result as a draft. A draft that fails the quality gate
// is persisted anyway, marked non-activatable with the failing check
// recorded; a rejected refinement is data, not an error.
func (r *Refiner) RefineFromArtifact(ctx context.Context, artifactID, baseVersionID uuid.UUID, alpha float64) (*models.ScorecardVersion, error) {
	if alpha < 0 || alpha > 1 {
		return nil, ErrInvalidBlendFactor
	}

	artifact, err := r.repo.GetArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	base, err := r.repo.GetVersion(ctx, baseVersionID)
	if err != nil {
		return nil, err
	}

	mlWeights := coefficientsToWeights(artifact.Coefficients, base.WeightSum())
	blended := blendWeights(base.Weights, mlWeights, alpha)

	draft := &models.ScorecardVersion{
		Version:        nextVersionLabel(base.Version),
		Status:         models.StatusDraft,
		Weights:        blended,
		Scaling:        base.Scaling,
		Intercept:      base.Intercept,
		BaseScore:      base.BaseScore,
		MaxScore:       base.MaxScore,
		Provenance:     models.ProvenanceMLRefined,
		BaseVersionID:  &base.ID,
		ArtifactID:     &artifact.ID,
		Activatable:    true,
		Discrimination: &artifact.AUC,
		SampleCount:    artifact.SampleCount,
		Notes:          fmt.Sprintf("blend of %s with artifact %s at alpha %.2f", base.Version, artifact.ID, alpha),
	}

	if reason := r.qualityGate(ctx, artifact); reason != "" {
		draft.Activatable = false
		draft.GateReason = reason
		metrics.RefinementDrafts.WithLabelValues("gated").Inc()
		r.log.Warn("refinement failed quality gate",
			"artifact", artifact.ID, "base", base.Version, "reason", reason)
	} else {
		metrics.RefinementDrafts.WithLabelValues("passed").Inc()
	}

	if err := r.repo.CreateVersion(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to persist refinement draft: %w", err)
	}

	r.log.Info("created refinement draft",
		"version", draft.Version, "id", draft.ID, "activatable", draft.Activatable)
	return draft, nil
}

// qualityGate returns the failing check description, or "" when the
// artifact clears every threshold.
func (r *Refiner) qualityGate(ctx context.Context, artifact *models.ModelArtifact) string {
	if artifact.AUC < r.cfg.MinAUC {
		return fmt.Sprintf("auc %.4f below minimum %.4f", artifact.AUC, r.cfg.MinAUC)
	}
	if artifact.SampleCount < r.cfg.MinSamples {
		return fmt.Sprintf("sample count %d below minimum %d", artifact.SampleCount, r.cfg.MinSamples)
	}

	active, err := r.repo.GetActiveVersion(ctx)
	if err != nil || active.Discrimination == nil {
		// no recorded baseline to improve on; absolute checks suffice
		return ""
	}
	if improvement := artifact.AUC - *active.Discrimination; improvement < r.cfg.MinImprovement {
		return fmt.Sprintf("auc improvement %.4f below minimum %.4f", improvement, r.cfg.MinImprovement)
	}
	return ""
}

// coefficientsToWeights converts risk coefficients (positive = more risk)
// into score weights (positive = more creditworthy): flip signs, clip what
// remains negative, and renormalize so the total mass matches targetSum.
func coefficientsToWeights(coefficients map[string]float64, targetSum float64) map[string]float64 {
	weights := make(map[string]float64, len(coefficients))
	var sum float64
	for name, coeff := range coefficients {
		w := -coeff
		if w < 0 {
			w = 0
		}
		weights[name] = w
		sum += w
	}
	if sum == 0 {
		return weights
	}
	for name := range weights {
		weights[name] = weights[name] / sum * targetSum
	}
	return weights
}

// blendWeights mixes base and ML weights over the union of feature names.
// Alpha 0 reproduces the base weights exactly; alpha 1 is pure ML. Scaling
// metadata (multiplier, cap) always comes from the base configuration.
func blendWeights(base map[string]models.FeatureWeight, ml map[string]float64, alpha float64) map[string]models.FeatureWeight {
	blended := make(map[string]models.FeatureWeight, len(base))

	for name, bw := range base {
		out := bw
		if alpha != 0 {
			out.Weight = (1-alpha)*bw.Weight + alpha*ml[name]
		}
		blended[name] = out
	}
	for name, mw := range ml {
		if _, ok := base[name]; ok || alpha == 0 {
			continue
		}
		blended[name] = models.FeatureWeight{Weight: alpha * mw}
	}
	return blended
}
