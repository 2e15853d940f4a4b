package extractor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

const maxNetworkDepth = 5

// NetworkExtractor derives features from the relationship graph around an
// entity: who it buys from, sells to, and how far its downstream network
// reaches. Only relationships established at or before the as-of time count.
type NetworkExtractor struct {
	reader SourceReader
}

func NewNetworkExtractor(reader SourceReader) *NetworkExtractor {
	return &NetworkExtractor{reader: reader}
}

func (x *NetworkExtractor) Source() models.FeatureSource {
	return models.SourceNetwork
}

func (x *NetworkExtractor) Extract(ctx context.Context, entityID uuid.UUID, asOf time.Time) ([]models.FeatureResult, error) {
	outgoing, err := x.reader.ListRelationshipsFrom(ctx, entityID, asOf)
	if err != nil {
		return nil, err
	}
	incoming, err := x.reader.ListRelationshipsTo(ctx, entityID, asOf)
	if err != nil {
		return nil, err
	}

	if len(outgoing) == 0 && len(incoming) == 0 {
		results := make([]models.FeatureResult, 0, len(networkFeatureNames))
		for _, name := range networkFeatureNames {
			results = append(results, models.FeatureResult{Name: name, Confidence: defaultConfidence})
		}
		return results, nil
	}

	direct := make(map[uuid.UUID]bool)
	customers := make(map[uuid.UUID]bool)
	suppliers := make(map[uuid.UUID]bool)
	for _, rel := range outgoing {
		direct[rel.ToEntityID] = true
		customers[rel.ToEntityID] = true
	}
	for _, rel := range incoming {
		direct[rel.FromEntityID] = true
		suppliers[rel.FromEntityID] = true
	}

	balance := 0.0
	if lo, hi := minMax(len(suppliers), len(customers)); hi > 0 {
		balance = float64(lo) / float64(hi)
	}

	size, depth, err := x.walkDownstream(ctx, entityID, asOf)
	if err != nil {
		return nil, err
	}

	return []models.FeatureResult{
		{Name: "direct_counterparty_count", Value: float64(len(direct)), Confidence: 0.9},
		{Name: "supplier_count", Value: float64(len(suppliers)), Confidence: 0.9},
		{Name: "customer_count", Value: float64(len(customers)), Confidence: 0.9},
		{Name: "network_balance_ratio", Value: balance, Confidence: 0.9},
		{Name: "network_size", Value: float64(size), Confidence: 0.8},
		{Name: "network_depth_downstream", Value: float64(depth), Confidence: 0.8},
	}, nil
}

var networkFeatureNames = []string{
	"direct_counterparty_count",
	"supplier_count",
	"customer_count",
	"network_balance_ratio",
	"network_size",
	"network_depth_downstream",
}

// walkDownstream runs a breadth-first traversal of outgoing relationships,
// bounded at five hops. Returns the number of distinct reachable entities
// (excluding the start) and the deepest level reached.
func (x *NetworkExtractor) walkDownstream(ctx context.Context, start uuid.UUID, asOf time.Time) (int, int, error) {
	visited := map[uuid.UUID]bool{start: true}
	frontier := []uuid.UUID{start}
	depth := 0

	for level := 1; level <= maxNetworkDepth && len(frontier) > 0; level++ {
		var next []uuid.UUID
		for _, id := range frontier {
			rels, err := x.reader.ListRelationshipsFrom(ctx, id, asOf)
			if err != nil {
				return 0, 0, err
			}
			for _, rel := range rels {
				if visited[rel.ToEntityID] {
					continue
				}
				visited[rel.ToEntityID] = true
				next = append(next, rel.ToEntityID)
			}
		}
		if len(next) > 0 {
			depth = level
		}
		frontier = next
	}

	return len(visited) - 1, depth, nil
}

func minMax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
