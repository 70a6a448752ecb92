package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/graphrank/pkg/driver"
)

func healthRouter(engine RetrievalEngine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHealthHandler(engine)
	router.GET("/health", h.HealthCheck)
	router.GET("/live", h.LivenessCheck)
	router.GET("/ready", h.ReadinessCheck)
	router.GET("/health/detailed", h.DetailedHealthCheck)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := healthRouter(&mockEngine{})

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestLivenessCheck(t *testing.T) {
	router := healthRouter(&mockEngine{})

	w := get(router, "/live")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessCheckHealthyStore(t *testing.T) {
	router := healthRouter(&mockEngine{stats: &driver.GraphStats{GroupID: "default"}})

	w := get(router, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestReadinessCheckFailingStore(t *testing.T) {
	router := healthRouter(&mockEngine{err: errors.New("store unreachable")})

	w := get(router, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}

func TestDetailedHealthCheck(t *testing.T) {
	router := healthRouter(&mockEngine{})

	w := get(router, "/health/detailed")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_version")
}
