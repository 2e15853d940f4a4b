package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline-systems/supplyscore/internal/httputil"
	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/service"
)

type Handler struct {
	scoring  *service.ScoringService
	versions *service.VersionManager
	refiner  *service.Refiner
	repo     repository.Repository
}

func NewHandler(scoring *service.ScoringService, versions *service.VersionManager, refiner *service.Refiner, repo repository.Repository) *Handler {
	return &Handler{scoring: scoring, versions: versions, refiner: refiner, repo: repo}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// writeServiceError maps service and repository errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *service.VersionValidationError
	switch {
	case errors.Is(err, repository.ErrEntityNotFound),
		errors.Is(err, repository.ErrVersionNotFound),
		errors.Is(err, repository.ErrArtifactNotFound),
		errors.Is(err, repository.ErrScoreRequestNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrNoActiveVersion):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrVersionAlreadyActive),
		errors.Is(err, service.ErrVersionNotActivatable),
		errors.Is(err, repository.ErrVersionNotInactive):
		httputil.WriteError(w, http.StatusConflict, err.Error())
	case errors.As(err, &verr):
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidBlendFactor):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

// CreateEntity handles POST /entities
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var entity models.Entity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if entity.Name == "" || entity.Kind == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name and kind are required")
		return
	}
	if err := h.repo.CreateEntity(r.Context(), &entity); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entity)
}

// ComputeScore handles POST /entities/{id}/score
func (h *Handler) ComputeScore(w http.ResponseWriter, r *http.Request) {
	entityID, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	record, err := h.scoring.ComputeScore(r.Context(), entityID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// GetFeatures handles GET /entities/{id}/features with an optional RFC 3339
// as_of parameter for point-in-time reads.
func (h *Handler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	entityID, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	var feats []models.Feature
	if asOf := r.URL.Query().Get("as_of"); asOf != "" {
		t, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "as_of must be RFC 3339")
			return
		}
		feats, err = h.scoring.GetFeaturesAsOf(r.Context(), entityID, t)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	} else {
		feats, err = h.scoring.GetCurrentFeatures(r.Context(), entityID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"features": feats})
}

// ListScores handles GET /entities/{id}/scores
func (h *Handler) ListScores(w http.ResponseWriter, r *http.Request) {
	entityID, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid entity id")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.scoring.ListScoreRequests(r.Context(), entityID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"scores": records})
}

// GetScore handles GET /scores/{id}
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid score request id")
		return
	}

	record, err := h.scoring.GetScoreRequest(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// ListVersions handles GET /versions
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.versions.ListVersions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

// GetVersion handles GET /versions/{id}
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	version, err := h.versions.GetVersion(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, version)
}

// ActivateVersion handles POST /versions/{id}/activate
func (h *Handler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	version, err := h.versions.ActivateVersion(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, version)
}

// RollbackVersion handles POST /versions/{id}/rollback
func (h *Handler) RollbackVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid version id")
		return
	}

	version, err := h.versions.Rollback(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, version)
}

type refinementRequest struct {
	ArtifactID    uuid.UUID `json:"artifact_id"`
	BaseVersionID uuid.UUID `json:"base_version_id"`
	BlendFactor   *float64  `json:"blend_factor,omitempty"`
}

// CreateRefinement handles POST /refinements
func (h *Handler) CreateRefinement(w http.ResponseWriter, r *http.Request) {
	var req refinementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ArtifactID == uuid.Nil || req.BaseVersionID == uuid.Nil {
		httputil.WriteError(w, http.StatusBadRequest, "artifact_id and base_version_id are required")
		return
	}

	alpha := h.refiner.DefaultBlendFactor()
	if req.BlendFactor != nil {
		alpha = *req.BlendFactor
	}

	draft, err := h.refiner.RefineFromArtifact(r.Context(), req.ArtifactID, req.BaseVersionID, alpha)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, draft)
}

// RegisterArtifact handles POST /artifacts
func (h *Handler) RegisterArtifact(w http.ResponseWriter, r *http.Request) {
	var artifact models.ModelArtifact
	if err := json.NewDecoder(r.Body).Decode(&artifact); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(artifact.Coefficients) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "coefficients are required")
		return
	}
	if err := h.repo.CreateArtifact(r.Context(), &artifact); err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, artifact)
}

// ListRules handles GET /rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.ListDecisionRules(r.Context(), false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}
