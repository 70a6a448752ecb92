// Package handlers implements the HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/graphrank"
	"github.com/soundprediction/graphrank/pkg/driver"
	"github.com/soundprediction/graphrank/pkg/server/dto"
	"github.com/soundprediction/graphrank/pkg/weighting"
)

// RetrievalEngine is the engine surface the handlers depend on.
type RetrievalEngine interface {
	Retrieve(ctx context.Context, req graphrank.RetrieveRequest) (*graphrank.RetrieveResult, error)
	MultiHopRetrieve(ctx context.Context, req graphrank.MultiHopRequest) (*graphrank.MultiHopResult, error)
	Stats(ctx context.Context, groupID string) (*driver.GraphStats, error)
}

// RetrieveHandler handles retrieval requests
type RetrieveHandler struct {
	engine RetrievalEngine
}

// NewRetrieveHandler creates a new retrieve handler
func NewRetrieveHandler(engine RetrievalEngine) *RetrieveHandler {
	return &RetrieveHandler{engine: engine}
}

// Retrieve handles POST /api/v1/retrieve
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req dto.RetrieveQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.engine.Retrieve(c.Request.Context(), graphrank.RetrieveRequest{
		Query:      req.Query,
		GroupID:    req.GroupID,
		Candidates: req.Seeds(),
		Profile:    weighting.Profile(req.Profile),
	})
	if err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{Error: "retrieve_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// MultiHop handles POST /api/v1/retrieve/multihop
func (h *RetrieveHandler) MultiHop(c *gin.Context) {
	var req dto.MultiHopQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.engine.MultiHopRetrieve(c.Request.Context(), graphrank.MultiHopRequest{
		Query:        req.Query,
		GroupID:      req.GroupID,
		Candidates:   req.Seeds(),
		SubQuestions: req.SubQuestions,
	})
	if err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{Error: "multihop_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Stats handles GET /api/v1/stats/:group_id
func (h *RetrieveHandler) Stats(c *gin.Context) {
	groupID := c.Param("group_id")
	stats, err := h.engine.Stats(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(statusFor(err), dto.ErrorResponse{Error: "stats_failed", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graphrank.ErrMissingGroupID), errors.Is(err, graphrank.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, graphrank.ErrAllSourcesFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
