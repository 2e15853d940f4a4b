package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-systems/supplyscore/internal/config"
	"github.com/ledgerline-systems/supplyscore/internal/handlers"
	"github.com/ledgerline-systems/supplyscore/internal/models"
	"github.com/ledgerline-systems/supplyscore/internal/repository"
	"github.com/ledgerline-systems/supplyscore/internal/server"
	"github.com/ledgerline-systems/supplyscore/internal/service"
)

func newTestServer(t *testing.T) (*httptest.Server, *repository.MemoryRepository) {
	t.Helper()
	repo := repository.NewMemoryRepository()
	log := slog.New(slog.DiscardHandler)

	versions := service.NewVersionManager(repo, config.VersionsConfig{WeightSumTolerance: 0.10, MaxWeightChange: 25}, nil, log)
	_, err := versions.EnsureInitialVersion(context.Background())
	require.NoError(t, err)

	scoring := service.NewScoringService(repo, versions, nil, nil, config.ScoringConfig{
		MaxFeatureAge: 168 * time.Hour,
		ApproveAt:     650,
		RejectBelow:   500,
	}, log)
	refiner := service.NewRefiner(repo, config.RefinementConfig{
		BlendFactor:    0.3,
		MinAUC:         0.55,
		MinImprovement: 0.005,
		MinSamples:     200,
	}, log)

	h := handlers.NewHandler(scoring, versions, refiner, repo)
	srv := httptest.NewServer(server.NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, repo
}

func postJSON(t *testing.T, url string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScoreEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/entities", map[string]interface{}{
		"name":         "Harbor Freight Logistics",
		"kind":         "distributor",
		"tax_id":       "US-5521",
		"kyc_verified": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var entity models.Entity
	decode(t, resp, &entity)

	resp = postJSON(t, fmt.Sprintf("%s/entities/%s/score", srv.URL, entity.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var record models.ScoreRequest
	decode(t, resp, &record)

	assert.Equal(t, entity.ID, record.EntityID)
	assert.GreaterOrEqual(t, record.FinalScore, 300)
	assert.LessOrEqual(t, record.FinalScore, 900)
	assert.NotEmpty(t, record.Band)

	// the audit record is fetchable afterwards
	getResp, err := http.Get(fmt.Sprintf("%s/scores/%s", srv.URL, record.ID))
	require.NoError(t, err)
	var fetched models.ScoreRequest
	decode(t, getResp, &fetched)
	assert.Equal(t, record.FinalScore, fetched.FinalScore)

	// and the feature snapshot is exposed
	featResp, err := http.Get(fmt.Sprintf("%s/entities/%s/features", srv.URL, entity.ID))
	require.NoError(t, err)
	defer featResp.Body.Close()
	assert.Equal(t, http.StatusOK, featResp.StatusCode)
}

func TestScoreEndpointErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/entities/not-a-uuid/score", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/entities/0190b2f0-0000-7000-8000-000000000000/score", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateEntityValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/entities", map[string]interface{}{"name": ""})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVersionEndpoints(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

	listResp, err := http.Get(srv.URL + "/versions")
	require.NoError(t, err)
	var listing struct {
		Versions []*models.ScorecardVersion `json:"versions"`
	}
	decode(t, listResp, &listing)
	require.Len(t, listing.Versions, 1)
	active := listing.Versions[0]

	// a draft with an oversized weight change is rejected with 422
	bad := *active
	bad.ID = uuid.Nil
	bad.Status = models.StatusDraft
	bad.Weights = map[string]models.FeatureWeight{}
	for k, v := range active.Weights {
		bad.Weights[k] = v
	}
	bad.Weights["recent_activity_flag"] = models.FeatureWeight{Weight: 55}
	bad.Weights["transaction_count_6m"] = models.FeatureWeight{Weight: 5}
	bad.Weights["avg_transaction_amount"] = models.FeatureWeight{Weight: 0.5}
	require.NoError(t, repo.CreateVersion(ctx, &bad))

	resp := postJSON(t, fmt.Sprintf("%s/versions/%s/activate", srv.URL, bad.ID), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	// activating the already-active version conflicts
	resp = postJSON(t, fmt.Sprintf("%s/versions/%s/activate", srv.URL, active.ID), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRefinementEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	ctx := context.Background()

	resp := postJSON(t, srv.URL+"/artifacts", map[string]interface{}{
		"coefficients": map[string]float64{
			"kyc_verified":         -0.9,
			"transaction_count_6m": -1.1,
		},
		"auc":          0.68,
		"sample_count": 400,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var artifact models.ModelArtifact
	decode(t, resp, &artifact)

	active, err := repo.GetActiveVersion(ctx)
	require.NoError(t, err)

	resp = postJSON(t, srv.URL+"/refinements", map[string]interface{}{
		"artifact_id":     artifact.ID,
		"base_version_id": active.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var draft models.ScorecardVersion
	decode(t, resp, &draft)

	assert.Equal(t, models.StatusDraft, draft.Status)
	assert.Equal(t, models.ProvenanceMLRefined, draft.Provenance)
	assert.Equal(t, "1.1", draft.Version)
}

func TestRefinementEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/refinements", map[string]interface{}{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
