package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/scorecard"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testVersionsConfig() config.VersionsConfig {
	return config.VersionsConfig{WeightSumTolerance: 0.10, MaxWeightChange: 25}
}

func testScoringConfig() config.ScoringConfig {
	return config.ScoringConfig{
		MaxFeatureAge: 168 * time.Hour,
		ApproveAt:     650,
		RejectBelow:   500,
	}
}

func testRefinementConfig() config.RefinementConfig {
	return config.RefinementConfig{
		BlendFactor:    0.3,
		MinAUC:         0.55,
		MinImprovement: 0.005,
		MinSamples:     200,
	}
}

type fixture struct {
	repo     *repository.MemoryRepository
	versions *VersionManager
	scoring  *ScoringService
	refiner  *Refiner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := repository.NewMemoryRepository()
	log := testLogger()
	versions := NewVersionManager(repo, testVersionsConfig(), nil, log)

	_, err := versions.EnsureInitialVersion(context.Background())
	require.NoError(t, err)

	return &fixture{
		repo:     repo,
		versions: versions,
		scoring:  NewScoringService(repo, versions, nil, nil, testScoringConfig(), log),
		refiner:  NewRefiner(repo, testRefinementConfig(), log),
	}
}

func (f *fixture) createEntity(t *testing.T, kind models.EntityKind) uuid.UUID {
	t.Helper()
	entity := &models.Entity{
		Name:        "Test Counterparty",
		Kind:        kind,
		TaxID:       "TX-100",
		Email:       "ops@test.example",
		KYCVerified: true,
		CreatedAt:   time.Now().UTC().AddDate(-4, 0, 0),
	}
	require.NoError(t, f.repo.CreateEntity(context.Background(), entity))
	return entity.ID
}

func TestEnsureInitialVersionIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.repo.GetActiveVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.0", first.Version)
	assert.Equal(t, models.ProvenanceExpert, first.Provenance)

	again, err := f.versions.EnsureInitialVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	all, err := f.repo.ListVersions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestComputeScoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entityID := f.createEntity(t, models.KindManufacturer)

	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		require.NoError(t, f.repo.CreateTransaction(ctx, &models.Transaction{
			EntityID:   entityID,
			Amount:     5000,
			Kind:       models.TxnInvoice,
			OccurredAt: now.AddDate(0, 0, -7*i),
		}))
	}

	record, err := f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, record.FinalScore, 300)
	assert.LessOrEqual(t, record.FinalScore, 900)
	assert.NotEmpty(t, record.Band)
	assert.NotEmpty(t, record.Snapshot)
	assert.Contains(t, record.Snapshot, "transaction_count_6m")
	assert.NotContains(t, record.DegradedSources, "transaction")

	stored, err := f.scoring.GetScoreRequest(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.FinalScore, stored.FinalScore)
	assert.Equal(t, record.Snapshot, stored.Snapshot)
}

func TestComputeScoreUnknownEntity(t *testing.T) {
	f := newFixture(t)

	id, err := uuid.NewV7()
	require.NoError(t, err)

	_, err = f.scoring.ComputeScore(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrEntityNotFound)
}

func TestComputeScoreDegradesWithoutTransactions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entityID := f.createEntity(t, models.KindSupplier)

	record, err := f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err, "missing history must degrade, not fail")

	assert.Contains(t, record.DegradedSources, "transaction")
	assert.Contains(t, record.DegradedSources, "network")
	assert.NotContains(t, record.DegradedSources, "identity")
	assert.GreaterOrEqual(t, record.FinalScore, 300)
}

func TestRepeatedScoringSingleOpenInterval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// zero max age forces re-extraction on every call
	f.scoring.cfg.MaxFeatureAge = 0
	entityID := f.createEntity(t, models.KindDistributor)

	_, err := f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err)
	_, err = f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err)

	current, err := f.repo.CurrentFeatures(ctx, entityID)
	require.NoError(t, err)

	seen := make(map[string]int)
	for _, feat := range current {
		seen[feat.Name]++
	}
	for name, n := range seen {
		assert.Equal(t, 1, n, "feature %s has %d open intervals", name, n)
	}
}

func TestScoringReplayIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entityID := f.createEntity(t, models.KindManufacturer)

	first, err := f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err)

	// features are fresh, so the same snapshot feeds the second run
	second, err := f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err)

	assert.Equal(t, first.Snapshot, second.Snapshot)
	assert.Equal(t, first.RawScore, second.RawScore)
	assert.Equal(t, first.FinalScore, second.FinalScore)
	assert.Equal(t, first.Decision, second.Decision)

	// recomputing from the stored audit snapshot matches too
	version, err := f.repo.GetVersion(ctx, first.ScorecardVersionID)
	require.NoError(t, err)
	replayed := scorecard.NewEngine().Compute(version, first.Snapshot)
	assert.Equal(t, first.RawScore, replayed.RawScore)
}

func TestComputeScoreAppliesDecisionRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	entityID := f.createEntity(t, models.KindManufacturer)

	require.NoError(t, f.repo.CreateDecisionRule(ctx, &models.DecisionRule{
		Name:       "thin file review",
		Expression: "transaction_count_6m == 0",
		Action:     models.ActionFlag,
		Flag:       "thin_file",
		Priority:   10,
		Active:     true,
	}))

	record, err := f.scoring.ComputeScore(ctx, entityID)
	require.NoError(t, err)

	assert.Contains(t, record.Flags, "thin_file")
	assert.Equal(t, models.DecisionFlag, record.Decision)
	assert.Len(t, record.MatchedRules, 1)
}

func cloneExpertWeights() map[string]models.FeatureWeight {
	src := scorecard.ExpertVersion().Weights
	out := make(map[string]models.FeatureWeight, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func newDraft(t *testing.T, f *fixture, mutate func(map[string]models.FeatureWeight)) *models.ScorecardVersion {
	t.Helper()
	weights := cloneExpertWeights()
	if mutate != nil {
		mutate(weights)
	}
	draft := scorecard.ExpertVersion()
	draft.Version = "1.1"
	draft.Weights = weights
	require.NoError(t, f.repo.CreateVersion(context.Background(), draft))
	return draft
}

func TestActivateVersionValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(map[string]models.FeatureWeight)
		check  string
	}{
		{
			name: "weight sum drift",
			mutate: func(w map[string]models.FeatureWeight) {
				w["recent_activity_flag"] = models.FeatureWeight{Weight: 50}
			},
			check: "weight_sum",
		},
		{
			name: "zeroed feature",
			mutate: func(w map[string]models.FeatureWeight) {
				w["kyc_verified"] = models.FeatureWeight{Weight: 0}
				w["has_tax_id"] = models.FeatureWeight{Weight: 25}
			},
			check: "zeroed_feature",
		},
		{
			name: "oversized single change",
			mutate: func(w map[string]models.FeatureWeight) {
				w["contact_completeness"] = models.FeatureWeight{Weight: 31}
				w["recent_activity_flag"] = models.FeatureWeight{Weight: 13}
				w["transaction_count_6m"] = models.FeatureWeight{Weight: 6}
			},
			check: "weight_change",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			draft := newDraft(t, f, tt.mutate)

			_, err := f.versions.ActivateVersion(ctx, draft.ID)
			var verr *VersionValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.check, verr.Check)

			// failed activation must not change state
			active, err := f.repo.GetActiveVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, "1.0", active.Version)
		})
	}
}

func TestActivateVersionSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft := newDraft(t, f, func(w map[string]models.FeatureWeight) {
		w["transaction_count_6m"] = models.FeatureWeight{Weight: 25}
		w["avg_transaction_amount"] = models.FeatureWeight{Weight: 10}
	})

	activated, err := f.versions.ActivateVersion(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, activated.Status)
	assert.NotNil(t, activated.ActivatedAt)

	_, err = f.versions.ActivateVersion(ctx, draft.ID)
	assert.ErrorIs(t, err, ErrVersionAlreadyActive)
}

func TestRollbackReactivatesRetiredVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	original, err := f.repo.GetActiveVersion(ctx)
	require.NoError(t, err)

	draft := newDraft(t, f, nil)
	_, err = f.versions.ActivateVersion(ctx, draft.ID)
	require.NoError(t, err)

	rolled, err := f.versions.Rollback(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, rolled.ID)
	assert.Equal(t, models.StatusActive, rolled.Status)

	// rollback only applies to retired versions
	_, err = f.versions.Rollback(ctx, draft.ID)
	assert.ErrorIs(t, err, repository.ErrVersionNotInactive)
}

func TestConcurrentActivationKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	drafts := make([]*models.ScorecardVersion, 4)
	for i := range drafts {
		drafts[i] = newDraft(t, f, nil)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// errors are expected here; only the invariant matters
			_, _ = f.versions.ActivateVersion(ctx, drafts[n%len(drafts)].ID)
		}(i)
	}
	wg.Wait()

	all, err := f.repo.ListVersions(ctx)
	require.NoError(t, err)

	activeCount := 0
	for _, v := range all {
		if v.Status == models.StatusActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount, "exactly one version must be active")
}

func registerArtifact(t *testing.T, f *fixture, auc float64, samples int) uuid.UUID {
	t.Helper()
	artifact := &models.ModelArtifact{
		Coefficients: map[string]float64{
			"kyc_verified":         -0.8,
			"transaction_count_6m": -1.2,
			"recent_activity_flag": -1.5,
			"network_size":         0.4, // positive risk coefficient clips to zero weight
		},
		AUC:         auc,
		SampleCount: samples,
	}
	require.NoError(t, f.repo.CreateArtifact(context.Background(), artifact))
	return artifact.ID
}

func TestRefineAlphaZeroIsBitIdentical(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	artifactID := registerArtifact(t, f, 0.71, 500)

	base, err := f.repo.GetActiveVersion(ctx)
	require.NoError(t, err)

	draft, err := f.refiner.RefineFromArtifact(ctx, artifactID, base.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, base.Weights, draft.Weights)
	assert.Equal(t, "1.1", draft.Version)
	assert.Equal(t, models.ProvenanceMLRefined, draft.Provenance)
	assert.True(t, draft.Activatable)
}

func TestRefineBlendsTowardArtifact(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	artifactID := registerArtifact(t, f, 0.71, 500)

	base, err := f.repo.GetActiveVersion(ctx)
	require.NoError(t, err)

	draft, err := f.refiner.RefineFromArtifact(ctx, artifactID, base.ID, 0.3)
	require.NoError(t, err)

	// renormalized ML mass matches the base sum, so the blend preserves it
	assert.InDelta(t, base.WeightSum(), draft.WeightSum(), 1e-9)

	// positive risk coefficient pulls that feature's weight down
	assert.Less(t, draft.Weights["network_size"].Weight, base.Weights["network_size"].Weight)
	// strongly protective coefficient pulls its weight up
	assert.Greater(t, draft.Weights["recent_activity_flag"].Weight, base.Weights["recent_activity_flag"].Weight)
	// scaling metadata carries over from the base untouched
	assert.Equal(t, base.Scaling, draft.Scaling)
}

func TestRefineQualityGate(t *testing.T) {
	tests := []struct {
		name    string
		auc     float64
		samples int
		reason  string
	}{
		{"auc below floor", 0.52, 500, "auc"},
		{"too few samples", 0.70, 50, "sample count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			artifactID := registerArtifact(t, f, tt.auc, tt.samples)

			base, err := f.repo.GetActiveVersion(ctx)
			require.NoError(t, err)

			draft, err := f.refiner.RefineFromArtifact(ctx, artifactID, base.ID, 0.3)
			require.NoError(t, err, "a gated refinement is data, not an error")

			assert.False(t, draft.Activatable)
			assert.Contains(t, draft.GateReason, tt.reason)

			// the draft is on record for inspection
			stored, err := f.repo.GetVersion(ctx, draft.ID)
			require.NoError(t, err)
			assert.False(t, stored.Activatable)

			// and can never be activated
			_, err = f.versions.ActivateVersion(ctx, draft.ID)
			assert.ErrorIs(t, err, ErrVersionNotActivatable)
		})
	}
}

func TestRefineImprovementGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// activate an ML version with a recorded AUC to compare against
	firstArtifact := registerArtifact(t, f, 0.70, 500)
	base, err := f.repo.GetActiveVersion(ctx)
	require.NoError(t, err)
	draft, err := f.refiner.RefineFromArtifact(ctx, firstArtifact, base.ID, 0)
	require.NoError(t, err)
	_, err = f.versions.ActivateVersion(ctx, draft.ID)
	require.NoError(t, err)

	// a second artifact that is barely worse fails the improvement check
	secondArtifact := registerArtifact(t, f, 0.701, 500)
	gated, err := f.refiner.RefineFromArtifact(ctx, secondArtifact, draft.ID, 0.3)
	require.NoError(t, err)
	assert.False(t, gated.Activatable)
	assert.Contains(t, gated.GateReason, "improvement")
}

func TestRefineRejectsBadBlendFactor(t *testing.T) {
	f := newFixture(t)
	id, err := uuid.NewV7()
	require.NoError(t, err)

	_, err = f.refiner.RefineFromArtifact(context.Background(), id, id, 1.5)
	assert.ErrorIs(t, err, ErrInvalidBlendFactor)
	_, err = f.refiner.RefineFromArtifact(context.Background(), id, id, -0.1)
	assert.ErrorIs(t, err, ErrInvalidBlendFactor)
}

func TestNextVersionLabel(t *testing.T) {
	assert.Equal(t, "1.1", nextVersionLabel("1.0"))
	assert.Equal(t, "2.10", nextVersionLabel("2.9"))
	assert.Equal(t, "3.1", nextVersionLabel("3"))
}
