package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

// MemoryRepository is an in-memory Repository used in tests and local
// development. All methods are safe for concurrent use.
type MemoryRepository struct {
	mu            sync.RWMutex
	entities      map[uuid.UUID]*models.Entity
	relationships []models.Relationship
	transactions  []models.Transaction
	features      []*models.Feature
	nextFeatureID int64
	scoreRequests map[uuid.UUID]*models.ScoreRequest
	versions      map[uuid.UUID]*models.ScorecardVersion
	rules         map[uuid.UUID]*models.DecisionRule
	artifacts     map[uuid.UUID]*models.ModelArtifact
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entities:      make(map[uuid.UUID]*models.Entity),
		nextFeatureID: 1,
		scoreRequests: make(map[uuid.UUID]*models.ScoreRequest),
		versions:      make(map[uuid.UUID]*models.ScorecardVersion),
		rules:         make(map[uuid.UUID]*models.DecisionRule),
		artifacts:     make(map[uuid.UUID]*models.ModelArtifact),
	}
}

func (r *MemoryRepository) Close() {}

func (r *MemoryRepository) GetEntity(_ context.Context, id uuid.UUID) (*models.Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *MemoryRepository) CreateEntity(_ context.Context, e *models.Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	copied := *e
	r.entities[e.ID] = &copied
	return nil
}

func (r *MemoryRepository) ListTransactions(_ context.Context, entityID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Transaction
	for _, t := range r.transactions {
		if t.EntityID == entityID && !t.OccurredAt.Before(from) && !t.OccurredAt.After(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (r *MemoryRepository) CreateTransaction(_ context.Context, t *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		t.ID = id
	}
	r.transactions = append(r.transactions, *t)
	return nil
}

func (r *MemoryRepository) ListRelationshipsFrom(_ context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Relationship
	for _, rel := range r.relationships {
		if rel.FromEntityID == entityID && !rel.EstablishedAt.After(asOf) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListRelationshipsTo(_ context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Relationship
	for _, rel := range r.relationships {
		if rel.ToEntityID == entityID && !rel.EstablishedAt.After(asOf) {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (r *MemoryRepository) CreateRelationship(_ context.Context, rel *models.Relationship) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rel.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		rel.ID = id
	}
	r.relationships = append(r.relationships, *rel)
	return nil
}

func (r *MemoryRepository) StoreFeatures(_ context.Context, entityID uuid.UUID, feats []models.Feature, asOf time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make(map[string]bool, len(feats))
	for _, f := range feats {
		names[f.Name] = true
	}
	for _, existing := range r.features {
		if existing.EntityID == entityID && existing.ValidTo == nil && names[existing.Name] {
			closed := asOf
			existing.ValidTo = &closed
		}
	}
	now := time.Now().UTC()
	for _, f := range feats {
		stored := f
		stored.ID = r.nextFeatureID
		r.nextFeatureID++
		stored.EntityID = entityID
		stored.ComputedAt = now
		stored.ValidFrom = asOf
		stored.ValidTo = nil
		r.features = append(r.features, &stored)
	}
	return nil
}

func (r *MemoryRepository) CurrentFeatures(_ context.Context, entityID uuid.UUID) ([]models.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Feature
	for _, f := range r.features {
		if f.EntityID == entityID && f.ValidTo == nil {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) FeaturesAsOf(_ context.Context, entityID uuid.UUID, t time.Time) ([]models.Feature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.Feature
	for _, f := range r.features {
		if f.EntityID != entityID || f.ValidFrom.After(t) {
			continue
		}
		if f.ValidTo != nil && !f.ValidTo.After(t) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) CreateScoreRequest(_ context.Context, sr *models.ScoreRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *sr
	r.scoreRequests[sr.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetScoreRequest(_ context.Context, id uuid.UUID) (*models.ScoreRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sr, ok := r.scoreRequests[id]
	if !ok {
		return nil, ErrScoreRequestNotFound
	}
	copied := *sr
	return &copied, nil
}

func (r *MemoryRepository) ListScoreRequests(_ context.Context, entityID uuid.UUID, limit int) ([]*models.ScoreRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.ScoreRequest
	for _, sr := range r.scoreRequests {
		if sr.EntityID == entityID {
			copied := *sr
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) CreateVersion(_ context.Context, v *models.ScorecardVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		v.ID = id
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	copied := *v
	r.versions[v.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetVersion(_ context.Context, id uuid.UUID) (*models.ScorecardVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.versions[id]
	if !ok {
		return nil, ErrVersionNotFound
	}
	copied := *v
	return &copied, nil
}

func (r *MemoryRepository) GetActiveVersion(_ context.Context) (*models.ScorecardVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.versions {
		if v.Status == models.StatusActive {
			copied := *v
			return &copied, nil
		}
	}
	return nil, ErrNoActiveVersion
}

func (r *MemoryRepository) ListVersions(_ context.Context) ([]*models.ScorecardVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.ScorecardVersion, 0, len(r.versions))
	for _, v := range r.versions {
		copied := *v
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) SwapActiveVersion(_ context.Context, targetID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.versions[targetID]
	if !ok {
		return ErrVersionNotFound
	}
	if target.Status == models.StatusActive {
		return nil
	}

	now := time.Now().UTC()
	for _, v := range r.versions {
		if v.Status == models.StatusActive {
			v.Status = models.StatusInactive
			retired := now
			v.RetiredAt = &retired
		}
	}
	target.Status = models.StatusActive
	activated := now
	target.ActivatedAt = &activated
	target.RetiredAt = nil
	return nil
}

func (r *MemoryRepository) CreateDecisionRule(_ context.Context, rule *models.DecisionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rule.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		rule.ID = id
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	copied := *rule
	r.rules[rule.ID] = &copied
	return nil
}

func (r *MemoryRepository) ListDecisionRules(_ context.Context, activeOnly bool) ([]*models.DecisionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.DecisionRule
	for _, rule := range r.rules {
		if activeOnly && !rule.Active {
			continue
		}
		copied := *rule
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) CountDecisionRules(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules), nil
}

func (r *MemoryRepository) CreateArtifact(_ context.Context, a *models.ModelArtifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a.ID == uuid.Nil {
		id, _ := uuid.NewV7()
		a.ID = id
	}
	if a.TrainedAt.IsZero() {
		a.TrainedAt = time.Now().UTC()
	}
	copied := *a
	r.artifacts[a.ID] = &copied
	return nil
}

func (r *MemoryRepository) GetArtifact(_ context.Context, id uuid.UUID) (*models.ModelArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.artifacts[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	copied := *a
	return &copied, nil
}
