package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

var (
	ErrEntityNotFound       = errors.New("entity not found")
	ErrVersionNotFound      = errors.New("scorecard version not found")
	ErrNoActiveVersion      = errors.New("no active scorecard version")
	ErrArtifactNotFound     = errors.New("model artifact not found")
	ErrScoreRequestNotFound = errors.New("score request not found")
	ErrVersionNotInactive   = errors.New("version is not inactive")
)

// Repository is the persistence surface for the scoring engine. Score
// requests and features are append-only; scorecard weights are immutable
// after insert.
type Repository interface {
	// Entity and collaborator reads feeding the extractors.
	GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error)
	CreateEntity(ctx context.Context, e *models.Entity) error
	ListTransactions(ctx context.Context, entityID uuid.UUID, from, to time.Time) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	ListRelationshipsFrom(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error)
	ListRelationshipsTo(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error)
	CreateRelationship(ctx context.Context, r *models.Relationship) error

	// Feature store. StoreFeatures closes any open interval for the same
	// (entity, name) and opens a new one atomically.
	StoreFeatures(ctx context.Context, entityID uuid.UUID, feats []models.Feature, asOf time.Time) error
	CurrentFeatures(ctx context.Context, entityID uuid.UUID) ([]models.Feature, error)
	FeaturesAsOf(ctx context.Context, entityID uuid.UUID, t time.Time) ([]models.Feature, error)

	// Score request audit ledger (append-only).
	CreateScoreRequest(ctx context.Context, sr *models.ScoreRequest) error
	GetScoreRequest(ctx context.Context, id uuid.UUID) (*models.ScoreRequest, error)
	ListScoreRequests(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.ScoreRequest, error)

	// Scorecard versions.
	CreateVersion(ctx context.Context, v *models.ScorecardVersion) error
	GetVersion(ctx context.Context, id uuid.UUID) (*models.ScorecardVersion, error)
	GetActiveVersion(ctx context.Context) (*models.ScorecardVersion, error)
	ListVersions(ctx context.Context) ([]*models.ScorecardVersion, error)
	// SwapActiveVersion atomically demotes the current active version (if
	// any) to inactive and promotes the target to active. The two steps are
	// never independently visible.
	SwapActiveVersion(ctx context.Context, targetID uuid.UUID) error

	// Decision rules.
	CreateDecisionRule(ctx context.Context, r *models.DecisionRule) error
	ListDecisionRules(ctx context.Context, activeOnly bool) ([]*models.DecisionRule, error)
	CountDecisionRules(ctx context.Context) (int, error)

	// External model artifacts.
	CreateArtifact(ctx context.Context, a *models.ModelArtifact) error
	GetArtifact(ctx context.Context, id uuid.UUID) (*models.ModelArtifact, error)

	Close()
}
