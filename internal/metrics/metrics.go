// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScoreRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyscore_score_requests_total",
		Help: "Scoring requests by decision and band.",
	}, []string{"decision", "band"})

	ScoreDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "supplyscore_score_duration_seconds",
		Help:    "End-to-end scoring latency including extraction.",
		Buckets: prometheus.DefBuckets,
	})

	DegradedExtractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyscore_degraded_extractions_total",
		Help: "Extractions that fell back to defaults, by source.",
	}, []string{"source"})

	RuleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplyscore_rule_errors_total",
		Help: "Decision rules skipped due to compile or evaluation errors.",
	})

	VersionActivations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplyscore_version_activations_total",
		Help: "Successful scorecard version activations, rollbacks included.",
	})

	RefinementDrafts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyscore_refinement_drafts_total",
		Help: "Refinement drafts by quality gate outcome.",
	}, []string{"outcome"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "supplyscore_feature_cache_requests_total",
		Help: "Feature snapshot cache lookups by result.",
	}, []string{"result"})
)
