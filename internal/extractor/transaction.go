package extractor

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

const (
	transactionWindow = 180 * 24 * time.Hour
	recentWindow      = 30 * 24 * time.Hour

	// defaultConfidence marks feature values assumed for lack of any
	// transaction history.
	defaultConfidence = 0.3
)

// TransactionExtractor derives activity features over the 180 days before
// the as-of time. An entity with no transactions gets documented defaults,
// never an error.
type TransactionExtractor struct {
	reader SourceReader
}

func NewTransactionExtractor(reader SourceReader) *TransactionExtractor {
	return &TransactionExtractor{reader: reader}
}

func (x *TransactionExtractor) Source() models.FeatureSource {
	return models.SourceTransaction
}

func (x *TransactionExtractor) Extract(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.FeatureResult, error) {
	txns, err := x.reader.ListTransactions(ctx, entityID, asOf.Add(-transactionWindow), asOf)
	if err != nil {
		return nil, err
	}

	if len(txns) == 0 {
		return []models.FeatureResult{
			{Name: "transaction_count_6m", Value: 0, Confidence: defaultConfidence},
			{Name: "avg_transaction_amount", Value: 0, Confidence: defaultConfidence},
			{Name: "total_transaction_volume_6m", Value: 0, Confidence: defaultConfidence},
			{Name: "transaction_regularity_score", Value: 50, Confidence: defaultConfidence},
			{Name: "payment_type_diversity", Value: 0, Confidence: defaultConfidence},
			{Name: "recent_activity_flag", Value: 0, Confidence: 1.0},
		}, nil
	}

	var total float64
	kinds := make(map[models.TransactionKind]bool)
	monthCounts := make(map[string]int)
	recentCutoff := asOf.Add(-recentWindow)
	recentFlag := 0.0

	for _, t := range txns {
		total += t.Amount
		kinds[t.Kind] = true
		monthCounts[t.OccurredAt.UTC().Format("2006-01")]++
		if !t.OccurredAt.Before(recentCutoff) {
			recentFlag = 1.0
		}
	}

	count := float64(len(txns))

	return []models.FeatureResult{
		{Name: "transaction_count_6m", Value: count, Confidence: 0.9},
		{Name: "avg_transaction_amount", Value: total / count, Confidence: 0.9},
		{Name: "total_transaction_volume_6m", Value: total, Confidence: 0.9},
		{Name: "transaction_regularity_score", Value: regularityScore(monthCounts), Confidence: 0.9},
		{Name: "payment_type_diversity", Value: float64(len(kinds)), Confidence: 0.9},
		{Name: "recent_activity_flag", Value: recentFlag, Confidence: 1.0},
	}, nil
}

// regularityScore rewards an even spread of activity across months: 100
// minus ten points per unit of standard deviation of the monthly counts,
// floored at zero. With fewer than two observed months there is nothing to
// measure, so the score sits at the neutral midpoint.
func regularityScore(monthCounts map[string]int) float64 {
	if len(monthCounts) < 2 {
		return 50
	}

	var sum float64
	for _, c := range monthCounts {
		sum += float64(c)
	}
	mean := sum / float64(len(monthCounts))

	var variance float64
	for _, c := range monthCounts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(monthCounts))

	score := 100 - 10*math.Sqrt(variance)
	if score < 0 {
		return 0
	}
	return score
}
