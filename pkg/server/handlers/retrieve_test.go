package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/graphrank"
	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/types"
)

// mockEngine returns canned results for handler tests.
type mockEngine struct {
	retrieveResult *graphrank.RetrieveResult
	multiHopResult *graphrank.MultiHopResult
	stats          *driver.GraphStats
	err            error

	lastRetrieve *graphrank.RetrieveRequest
	lastMultiHop *graphrank.MultiHopRequest
}

func (m *mockEngine) Retrieve(_ context.Context, req graphrank.RetrieveRequest) (*graphrank.RetrieveResult, error) {
	m.lastRetrieve = &req
	if m.err != nil {
		return nil, m.err
	}
	return m.retrieveResult, nil
}

func (m *mockEngine) MultiHopRetrieve(_ context.Context, req graphrank.MultiHopRequest) (*graphrank.MultiHopResult, error) {
	m.lastMultiHop = &req
	if m.err != nil {
		return nil, m.err
	}
	return m.multiHopResult, nil
}

func (m *mockEngine) Stats(_ context.Context, groupID string) (*driver.GraphStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

func setupRouter(engine RetrievalEngine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewRetrieveHandler(engine)
	router.POST("/api/v1/retrieve", h.Retrieve)
	router.POST("/api/v1/retrieve/multihop", h.MultiHop)
	router.GET("/api/v1/stats/:group_id", h.Stats)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRetrieveEndpoint(t *testing.T) {
	engine := &mockEngine{retrieveResult: &graphrank.RetrieveResult{
		Evidence: []*types.EvidenceItem{{ID: "ev-1", TextRef: "net 30"}},
	}}
	router := setupRouter(engine)

	w := postJSON(t, router, "/api/v1/retrieve", map[string]interface{}{
		"query":    "payment terms",
		"group_id": "tenant-a",
		"candidates": []map[string]interface{}{
			{"name": "Invoice #100", "tier": "entity", "confidence": 0.9},
		},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var result graphrank.RetrieveResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, "ev-1", result.Evidence[0].ID)

	require.NotNil(t, engine.lastRetrieve)
	assert.Equal(t, "tenant-a", engine.lastRetrieve.GroupID)
	require.Len(t, engine.lastRetrieve.Candidates, 1)
	assert.Equal(t, types.TierEntity, engine.lastRetrieve.Candidates[0].Tier)
}

func TestRetrieveEndpointRejectsMissingGroup(t *testing.T) {
	engine := &mockEngine{}
	router := setupRouter(engine)

	w := postJSON(t, router, "/api/v1/retrieve", map[string]interface{}{
		"query": "payment terms",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, engine.lastRetrieve)
}

func TestRetrieveEndpointRejectsBadTier(t *testing.T) {
	router := setupRouter(&mockEngine{})

	w := postJSON(t, router, "/api/v1/retrieve", map[string]interface{}{
		"query":    "payment terms",
		"group_id": "tenant-a",
		"candidates": []map[string]interface{}{
			{"name": "x", "tier": "geological"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRetrieveEndpointMapsEngineErrors(t *testing.T) {
	engine := &mockEngine{err: graphrank.ErrAllSourcesFailed}
	router := setupRouter(engine)

	w := postJSON(t, router, "/api/v1/retrieve", map[string]interface{}{
		"query":    "payment terms",
		"group_id": "tenant-a",
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMultiHopEndpoint(t *testing.T) {
	engine := &mockEngine{multiHopResult: &graphrank.MultiHopResult{
		Evidence:   []*types.EvidenceItem{{ID: "ev-1"}},
		Confidence: 1.0,
		Iterations: 2,
		Reason:     types.ReasonConverged,
	}}
	router := setupRouter(engine)

	w := postJSON(t, router, "/api/v1/retrieve/multihop", map[string]interface{}{
		"query":         "how are these linked",
		"group_id":      "tenant-a",
		"sub_questions": []string{"first", "second"},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var result graphrank.MultiHopResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, types.ReasonConverged, result.Reason)
	assert.Equal(t, 2, result.Iterations)

	require.NotNil(t, engine.lastMultiHop)
	assert.Equal(t, []string{"first", "second"}, engine.lastMultiHop.SubQuestions)
}

func TestStatsEndpoint(t *testing.T) {
	engine := &mockEngine{stats: &driver.GraphStats{GroupID: "tenant-a", NodeCount: 42}}
	router := setupRouter(engine)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/tenant-a", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats driver.GraphStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(42), stats.NodeCount)
}
