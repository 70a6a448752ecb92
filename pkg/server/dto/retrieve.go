// Package dto holds the HTTP request and response shapes.
package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/graphrank/pkg/types"
)

// MaxSubQuestions bounds how many sub-questions one request may carry.
const MaxSubQuestions = 16

// Candidate is one seed candidate in a retrieval request.
type Candidate struct {
	Name       string  `json:"name" binding:"required"`
	Tier       string  `json:"tier,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ValidTiers defines acceptable candidate tiers.
var ValidTiers = map[string]types.SeedTier{
	"":           types.TierEntity,
	"entity":     types.TierEntity,
	"structural": types.TierStructural,
	"thematic":   types.TierThematic,
}

// Validate performs validation on Candidate
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("candidate name cannot be empty")
	}
	if _, ok := ValidTiers[strings.ToLower(c.Tier)]; !ok {
		return errors.New("invalid tier: must be entity, structural, or thematic")
	}
	return nil
}

// Seed converts the DTO candidate to the engine's type.
func (c *Candidate) Seed() types.SeedCandidate {
	return types.SeedCandidate{
		Name:       c.Name,
		Tier:       ValidTiers[strings.ToLower(c.Tier)],
		Confidence: c.Confidence,
	}
}

// RetrieveQuery is the body of POST /api/v1/retrieve.
type RetrieveQuery struct {
	Query      string      `json:"query" binding:"required"`
	GroupID    string      `json:"group_id" binding:"required"`
	Candidates []Candidate `json:"candidates,omitempty"`
	Profile    string      `json:"profile,omitempty"`
}

// Validate performs validation on RetrieveQuery
func (q *RetrieveQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if strings.TrimSpace(q.GroupID) == "" {
		return errors.New("group_id cannot be empty")
	}
	for i := range q.Candidates {
		if err := q.Candidates[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Seeds converts the DTO candidates to engine types.
func (q *RetrieveQuery) Seeds() []types.SeedCandidate {
	seeds := make([]types.SeedCandidate, len(q.Candidates))
	for i := range q.Candidates {
		seeds[i] = q.Candidates[i].Seed()
	}
	return seeds
}

// MultiHopQuery is the body of POST /api/v1/retrieve/multihop.
type MultiHopQuery struct {
	Query        string      `json:"query" binding:"required"`
	GroupID      string      `json:"group_id" binding:"required"`
	Candidates   []Candidate `json:"candidates,omitempty"`
	SubQuestions []string    `json:"sub_questions,omitempty"`
}

// Validate performs validation on MultiHopQuery
func (q *MultiHopQuery) Validate() error {
	if strings.TrimSpace(q.Query) == "" {
		return errors.New("query cannot be empty")
	}
	if strings.TrimSpace(q.GroupID) == "" {
		return errors.New("group_id cannot be empty")
	}
	if len(q.SubQuestions) > MaxSubQuestions {
		return errors.New("too many sub_questions")
	}
	for i := range q.Candidates {
		if err := q.Candidates[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Seeds converts the DTO candidates to engine types.
func (q *MultiHopQuery) Seeds() []types.SeedCandidate {
	seeds := make([]types.SeedCandidate, len(q.Candidates))
	for i := range q.Candidates {
		seeds[i] = q.Candidates[i].Seed()
	}
	return seeds
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
