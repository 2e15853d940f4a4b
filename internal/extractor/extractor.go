// Package extractor derives scoring features from entity, transaction, and
// relationship data. Extractors are read-only over their source tables and
// only consider rows dated at or before the requested point in time.
package extractor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

// SourceReader is the slice of the repository extractors read from.
type SourceReader interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error)
	ListTransactions(ctx context.Context, entityID uuid.UUID, from, to time.Time) ([]models.Transaction, error)
	ListRelationshipsFrom(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error)
	ListRelationshipsTo(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.Relationship, error)
}

// Extractor computes one family of features for an entity as of a point in
// time. Sparse source data is reported through lowered confidences, not
// errors; only missing prerequisites (the entity itself) are fatal.
type Extractor interface {
	Source() models.FeatureSource
	Extract(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.FeatureResult, error)
}

// degradedThreshold separates a normal extraction from one that fell back
// to defaults for lack of source data.
const degradedThreshold = 0.5

// Degraded reports whether a result set was produced from defaults rather
// than observed data.
func Degraded(results []models.FeatureResult) bool {
	if len(results) == 0 {
		return true
	}
	var sum float64
	for _, r := range results {
		sum += r.Confidence
	}
	return sum/float64(len(results)) < degradedThreshold
}

// All returns the standard extractor set backed by one reader.
func All(reader SourceReader) []Extractor {
	return []Extractor{
		NewIdentityExtractor(reader),
		NewTransactionExtractor(reader),
		NewNetworkExtractor(reader),
	}
}
