// Package scorecard computes credit scores from a feature snapshot and a
// scorecard version. The engine is pure: the same snapshot and version
// always produce the same result, so any stored audit record can be
// replayed bit-for-bit.
package scorecard

import (
	"math"
	"sort"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

// Band thresholds, lower bound inclusive, checked high to low.
type BandThreshold struct {
	Name string
	Min  int
}

var DefaultBands = []BandThreshold{
	{Name: "excellent", Min: 750},
	{Name: "good", Min: 650},
	{Name: "fair", Min: 550},
}

const fallbackBand = "poor"

// Result is the full output of one score computation, including the
// per-feature breakdown used for explanations.
type Result struct {
	RawScore      float64            `json:"raw_score"`
	FinalScore    int                `json:"final_score"`
	Band          string             `json:"band"`
	Confidence    float64            `json:"confidence"`
	Contributions map[string]float64 `json:"contributions"`
	Missing       []string           `json:"missing,omitempty"`
}

// Engine scores snapshots against scorecard versions.
type Engine struct {
	bands []BandThreshold
}

func NewEngine() *Engine {
	return &Engine{bands: DefaultBands}
}

// Compute scores one snapshot against one version. Features configured in
// the version but absent from the snapshot contribute zero and lower the
// confidence; extra snapshot entries are ignored.
func (e *Engine) Compute(version *models.ScorecardVersion, snapshot models.FeatureSnapshot) Result {
	contributions := make(map[string]float64, len(version.Weights))
	var missing []string
	var sumContrib, sumWeight float64
	present := 0

	for name, fw := range version.Weights {
		sumWeight += fw.Weight

		value, ok := snapshot[name]
		if !ok {
			missing = append(missing, name)
			contributions[name] = 0
			continue
		}
		present++

		norm := normalize(value, version.Scaling[name])

		multiplier := fw.Multiplier
		if multiplier == 0 {
			multiplier = 1
		}
		capFrac := fw.Cap
		if capFrac == 0 {
			capFrac = 1
		}

		frac := norm * multiplier
		if frac > capFrac {
			frac = capFrac
		}
		contribution := frac * fw.Weight
		contributions[name] = contribution
		sumContrib += contribution
	}
	sort.Strings(missing)

	raw := version.Intercept
	if sumWeight > 0 {
		raw += sumContrib / sumWeight
	}
	raw = clamp01(raw)

	span := float64(version.MaxScore - version.BaseScore)
	final := version.BaseScore + int(math.Round(raw*span))
	if final < version.BaseScore {
		final = version.BaseScore
	}
	if final > version.MaxScore {
		final = version.MaxScore
	}

	confidence := 0.0
	if len(version.Weights) > 0 {
		confidence = float64(present) / float64(len(version.Weights))
	}

	return Result{
		RawScore:      raw,
		FinalScore:    final,
		Band:          e.Band(final),
		Confidence:    confidence,
		Contributions: contributions,
		Missing:       missing,
	}
}

// Band maps a final score onto its rating band.
func (e *Engine) Band(score int) string {
	for _, b := range e.bands {
		if score >= b.Min {
			return b.Name
		}
	}
	return fallbackBand
}

// normalize maps a raw feature value to [0,1] per the configured scaling.
func normalize(value float64, scaling models.FeatureScaling) float64 {
	switch scaling.Method {
	case models.ScaleCap:
		if scaling.Max <= 0 {
			return 0
		}
		if value <= 0 {
			return 0
		}
		if value >= scaling.Max {
			return 1
		}
		return value / scaling.Max
	case models.ScaleLog:
		if value <= 0 || scaling.Max <= 0 {
			return 0
		}
		norm := math.Log10(value+1) / math.Log10(scaling.Max+1)
		return clamp01(norm)
	default:
		// Unit-range values pass through; percent-style values scale down.
		if value <= 0 {
			return 0
		}
		if value <= 1 {
			return value
		}
		return clamp01(value / 100)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
