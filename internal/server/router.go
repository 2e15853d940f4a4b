package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ledgerline-systems/supplyscore/internal/handlers"
)

// NewRouter constructs a ServeMux with the scoring API routes registered.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /entities", h.CreateEntity)
	mux.HandleFunc("POST /entities/{id}/score", h.ComputeScore)
	mux.HandleFunc("GET /entities/{id}/features", h.GetFeatures)
	mux.HandleFunc("GET /entities/{id}/scores", h.ListScores)
	mux.HandleFunc("GET /scores/{id}", h.GetScore)

	mux.HandleFunc("GET /versions", h.ListVersions)
	mux.HandleFunc("GET /versions/{id}", h.GetVersion)
	mux.HandleFunc("POST /versions/{id}/activate", h.ActivateVersion)
	mux.HandleFunc("POST /versions/{id}/rollback", h.RollbackVersion)

	mux.HandleFunc("POST /refinements", h.CreateRefinement)
	mux.HandleFunc("POST /artifacts", h.RegisterArtifact)
	mux.HandleFunc("GET /rules", h.ListRules)

	return mux
}
