package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/cache"
	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/extractor"
	"github.com/ledgerline-systems/supplyscore/internal/messaging"
	"github.com/ledgerline-systems/supplyscore/internal/metrics"
	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/rules"
	"github.com/ledgerline-systems/supplyscore/internal/scorecard"
)

// ScoringService runs the full pipeline for one entity: extract features,
// score against the active version, apply decision rules, persist the
// audit record.
type ScoringService struct {
	repo       repository.Repository
	extractors []extractor.Extractor
	engine     *scorecard.Engine
	evaluator  *rules.Evaluator
	versions   *VersionManager
	snapshots  *cache.SnapshotCache
	publisher  *messaging.Publisher
	cfg        config.ScoringConfig
	log        *slog.Logger

	// per-entity locks: concurrent requests for different entities run in
	// parallel, requests for the same one serialize
	locksMu sync.Mutex
	locks   map[uuid.UUID]*sync.Mutex
}

func NewScoringService(
	repo repository.Repository,
	versions *VersionManager,
	snapshots *cache.SnapshotCache,
	publisher *messaging.Publisher,
	cfg config.ScoringConfig,
	log *slog.Logger,
) *ScoringService {
	return &ScoringService{
		repo:       repo,
		extractors: extractor.All(repo),
		engine:     scorecard.NewEngine(),
		evaluator: rules.NewEvaluator(rules.DecisionPolicy{
			ApproveAt:   cfg.ApproveAt,
			RejectBelow: cfg.RejectBelow,
		}),
		versions:  versions,
		snapshots: snapshots,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *ScoringService) entityLock(entityID uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	mu, ok := s.locks[entityID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[entityID] = mu
	}
	return mu
}

// ComputeScore scores one entity and returns the persisted audit record.
func (s *ScoringService) ComputeScore(ctx context.Context, entityID uuid.UUID) (*models.ScoreRequest, error) {
	mu := s.entityLock(entityID)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()

	if _, err := s.repo.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}

	degraded, err := s.refreshFeatures(ctx, entityID, started)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.loadSnapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}

	version, err := s.repo.GetActiveVersion(ctx)
	if err != nil {
		return nil, err
	}

	result := s.engine.Compute(version, snapshot)

	ruleSet, err := s.repo.ListDecisionRules(ctx, true)
	if err != nil {
		return nil, err
	}
	outcome := s.evaluator.Apply(ruleSet, snapshot, result.FinalScore)
	for _, re := range outcome.Errors {
		metrics.RuleErrors.Inc()
		s.log.Warn("decision rule skipped", "rule", re.Name, "rule_id", re.RuleID, "error", re.Err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request id: %w", err)
	}

	record := &models.ScoreRequest{
		ID:                 id,
		EntityID:           entityID,
		RequestedAt:        started.UTC(),
		ScorecardVersionID: version.ID,
		Snapshot:           snapshot,
		RawScore:           result.RawScore,
		FinalScore:         outcome.Score,
		Band:               s.engine.Band(outcome.Score),
		Confidence:         result.Confidence,
		Decision:           outcome.Decision,
		MatchedRules:       outcome.Matched,
		Flags:              outcome.Flags,
		DegradedSources:    degraded,
		LatencyMS:          time.Since(started).Milliseconds(),
	}

	if err := s.repo.CreateScoreRequest(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist score request: %w", err)
	}

	s.publisher.ScoreComputed(record)
	metrics.ScoreRequests.WithLabelValues(string(record.Decision), record.Band).Inc()
	metrics.ScoreDuration.Observe(time.Since(started).Seconds())

	s.log.Info("computed score",
		"entity", entityID, "score", record.FinalScore, "band", record.Band,
		"decision", record.Decision, "version", version.Version,
		"degraded", degraded, "latency_ms", record.LatencyMS)
	return record, nil
}

// refreshFeatures re-runs the extractors unless the stored snapshot is
// younger than the freshness window. Degraded source families are reported
// back; extraction only fails outright when the entity itself is gone.
func (s *ScoringService) refreshFeatures(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]string, error) {
	current, err := s.repo.CurrentFeatures(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(current) > 0 && s.cfg.MaxFeatureAge > 0 {
		newest := current[0].ComputedAt
		for _, f := range current[1:] {
			if f.ComputedAt.After(newest) {
				newest = f.ComputedAt
			}
		}
		if asOf.Sub(newest) < s.cfg.MaxFeatureAge {
			return nil, nil
		}
	}

	var stored []models.Feature
	var degraded []string
	for _, x := range s.extractors {
		results, err := x.Extract(ctx, entityID, asOf)
		if err != nil {
			return nil, fmt.Errorf("%s extraction failed: %w", x.Source(), err)
		}
		if extractor.Degraded(results) {
			degraded = append(degraded, string(x.Source()))
			metrics.DegradedExtractions.WithLabelValues(string(x.Source())).Inc()
		}
		for _, res := range results {
			stored = append(stored, models.Feature{
				Name:       res.Name,
				Value:      res.Value,
				Confidence: res.Confidence,
				Source:     x.Source(),
			})
		}
	}

	if err := s.repo.StoreFeatures(ctx, entityID, stored, asOf); err != nil {
		return nil, fmt.Errorf("failed to store features: %w", err)
	}
	s.snapshots.Invalidate(ctx, entityID)
	return degraded, nil
}

func (s *ScoringService) loadSnapshot(ctx context.Context, entityID uuid.UUID) (models.FeatureSnapshot, error) {
	if snapshot, ok := s.snapshots.Get(ctx, entityID); ok {
		return snapshot, nil
	}

	feats, err := s.repo.CurrentFeatures(ctx, entityID)
	if err != nil {
		return nil, err
	}
	snapshot := make(models.FeatureSnapshot, len(feats))
	for _, f := range feats {
		snapshot[f.Name] = f.Value
	}
	s.snapshots.Set(ctx, entityID, snapshot)
	return snapshot, nil
}

// GetCurrentFeatures returns the open-interval feature rows for an entity.
func (s *ScoringService) GetCurrentFeatures(ctx context.Context, entityID uuid.UUID) ([]models.Feature, error) {
	if _, err := s.repo.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.repo.CurrentFeatures(ctx, entityID)
}

// GetFeaturesAsOf returns the feature rows whose validity intervals covered
// the given instant, for point-in-time audits.
func (s *ScoringService) GetFeaturesAsOf(ctx context.Context, entityID uuid.UUID, t time.Time) ([]models.Feature, error) {
	if _, err := s.repo.GetEntity(ctx, entityID); err != nil {
		return nil, err
	}
	return s.repo.FeaturesAsOf(ctx, entityID, t)
}

// GetScoreRequest fetches one audit record for replay or inspection.
func (s *ScoringService) GetScoreRequest(ctx context.Context, id uuid.UUID) (*models.ScoreRequest, error) {
	return s.repo.GetScoreRequest(ctx, id)
}

// ListScoreRequests returns an entity's recent scoring history.
func (s *ScoringService) ListScoreRequests(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.ScoreRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListScoreRequests(ctx, entityID, limit)
}
