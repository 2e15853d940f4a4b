package scorecard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

func fullSnapshot() models.FeatureSnapshot {
	return models.FeatureSnapshot{
		"kyc_verified":                 1,
		"has_tax_id":                   1,
		"contact_completeness":         100,
		"company_age_years":            5,
		"entity_kind_score":            10,
		"transaction_count_6m":         50,
		"avg_transaction_amount":       100000,
		"recent_activity_flag":         1,
		"transaction_regularity_score": 100,
		"network_size":                 20,
		"direct_counterparty_count":    10,
		"network_balance_ratio":        1,
		"network_depth_downstream":     5,
	}
}

func TestComputePerfectSnapshot(t *testing.T) {
	engine := NewEngine()
	version := ExpertVersion()

	result := engine.Compute(version, fullSnapshot())

	assert.InDelta(t, 1.0, result.RawScore, 1e-9)
	assert.Equal(t, 900, result.FinalScore)
	assert.Equal(t, "excellent", result.Band)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Empty(t, result.Missing)
}

func TestComputeEmptySnapshot(t *testing.T) {
	engine := NewEngine()
	version := ExpertVersion()

	result := engine.Compute(version, models.FeatureSnapshot{})

	assert.Equal(t, 0.0, result.RawScore)
	assert.Equal(t, 300, result.FinalScore)
	assert.Equal(t, "poor", result.Band)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Len(t, result.Missing, len(version.Weights))
}

func TestComputeClampsExtremeValues(t *testing.T) {
	engine := NewEngine()
	version := ExpertVersion()

	snapshot := fullSnapshot()
	for name := range snapshot {
		snapshot[name] = 1e12
	}

	result := engine.Compute(version, snapshot)
	assert.LessOrEqual(t, result.RawScore, 1.0)
	assert.LessOrEqual(t, result.FinalScore, 900)
	assert.GreaterOrEqual(t, result.FinalScore, 300)

	for name := range snapshot {
		snapshot[name] = -1e12
	}
	result = engine.Compute(version, snapshot)
	assert.GreaterOrEqual(t, result.RawScore, 0.0)
	assert.Equal(t, 300, result.FinalScore)
}

func TestComputeDeterministicReplay(t *testing.T) {
	engine := NewEngine()
	version := ExpertVersion()
	snapshot := models.FeatureSnapshot{
		"kyc_verified":         1,
		"transaction_count_6m": 17,
		"company_age_years":    2.5,
		"network_size":         4,
	}

	first := engine.Compute(version, snapshot)
	for i := 0; i < 10; i++ {
		again := engine.Compute(version, snapshot)
		require.Equal(t, first, again, "replay %d diverged", i)
	}
}

func TestComputePartialSnapshotConfidence(t *testing.T) {
	engine := NewEngine()
	version := &models.ScorecardVersion{
		BaseScore: 300,
		MaxScore:  900,
		Weights: map[string]models.FeatureWeight{
			"a": {Weight: 10},
			"b": {Weight: 10},
			"c": {Weight: 10},
			"d": {Weight: 10},
		},
	}

	result := engine.Compute(version, models.FeatureSnapshot{"a": 1, "b": 1, "extra": 1})

	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, []string{"c", "d"}, result.Missing)
	assert.NotContains(t, result.Contributions, "extra")
	assert.InDelta(t, 0.5, result.RawScore, 1e-9)
}

func TestComputeContributionCap(t *testing.T) {
	engine := NewEngine()
	version := &models.ScorecardVersion{
		BaseScore: 300,
		MaxScore:  900,
		Weights: map[string]models.FeatureWeight{
			"boosted": {Weight: 10, Multiplier: 5, Cap: 0.8},
		},
	}

	result := engine.Compute(version, models.FeatureSnapshot{"boosted": 1})
	assert.InDelta(t, 8.0, result.Contributions["boosted"], 1e-9, "cap bounds the multiplied fraction")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		scaling models.FeatureScaling
		want    float64
	}{
		{"cap below max", 25, models.FeatureScaling{Method: models.ScaleCap, Max: 50}, 0.5},
		{"cap at max", 50, models.FeatureScaling{Method: models.ScaleCap, Max: 50}, 1},
		{"cap above max", 500, models.FeatureScaling{Method: models.ScaleCap, Max: 50}, 1},
		{"cap negative", -3, models.FeatureScaling{Method: models.ScaleCap, Max: 50}, 0},
		{"log at max", 100000, models.FeatureScaling{Method: models.ScaleLog, Max: 100000}, 1},
		{"log zero", 0, models.FeatureScaling{Method: models.ScaleLog, Max: 100000}, 0},
		{"direct unit", 0.7, models.FeatureScaling{}, 0.7},
		{"direct percent", 80, models.FeatureScaling{}, 0.8},
		{"direct over percent", 250, models.FeatureScaling{}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, normalize(tt.value, tt.scaling), 1e-9)
		})
	}
}

func TestBandThresholds(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		score int
		want  string
	}{
		{900, "excellent"},
		{750, "excellent"},
		{749, "good"},
		{650, "good"},
		{649, "fair"},
		{550, "fair"},
		{549, "poor"},
		{300, "poor"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, engine.Band(tt.score), "score %d", tt.score)
	}
}

func TestExpertVersionShape(t *testing.T) {
	v := ExpertVersion()

	assert.Equal(t, "1.0", v.Version)
	assert.Equal(t, models.ProvenanceExpert, v.Provenance)
	assert.True(t, v.Activatable)
	assert.Equal(t, 165.0, v.WeightSum())
	for name := range v.Scaling {
		assert.Contains(t, v.Weights, name, "scaling for unweighted feature %s", name)
	}
}
