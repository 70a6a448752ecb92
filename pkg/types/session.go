package types

import "errors"

// SessionState is the lifecycle state of a multi-hop retrieval session.
type SessionState string

const (
	StateDecomposed SessionState = "decomposed"
	StateIterating  SessionState = "iterating"
	StateConverged  SessionState = "converged"
	StateExhausted  SessionState = "exhausted"
)

// Terminal reports whether the state ends the session.
func (s SessionState) Terminal() bool {
	return s == StateConverged || s == StateExhausted
}

// TerminationReason explains why a multi-hop run stopped.
type TerminationReason string

const (
	// ReasonConverged means confidence reached the convergence threshold.
	ReasonConverged TerminationReason = "converged"
	// ReasonExhausted means the iteration budget ran out. Exhaustion is a
	// successful outcome with lower confidence, not an error.
	ReasonExhausted TerminationReason = "exhausted"
)

// ErrSessionTerminal is returned when a terminal session is advanced.
var ErrSessionTerminal = errors.New("retrieval session is terminal")

// RetrievalSession accumulates evidence across multi-hop iterations.
// It is owned by exactly one orchestrating task and mutated only between
// fan-in joins, never concurrently.
type RetrievalSession struct {
	Query                string            `json:"query"`
	GroupID              string            `json:"group_id"`
	SubQuestions         []string          `json:"sub_questions"`
	MaxIterations        int               `json:"max_iterations"`
	ConvergenceThreshold float64           `json:"convergence_threshold"`
	State                SessionState      `json:"state"`
	Iteration            int               `json:"iteration"`
	Confidence           float64           `json:"confidence"`
	Reason               TerminationReason `json:"reason,omitempty"`

	evidence []*EvidenceItem
	seen     map[string]struct{}
	covered  map[int]struct{}
}

// NewRetrievalSession creates a session in the DECOMPOSED state.
func NewRetrievalSession(query, groupID string, subQuestions []string, threshold float64, maxIterations int) *RetrievalSession {
	return &RetrievalSession{
		Query:                query,
		GroupID:              groupID,
		SubQuestions:         subQuestions,
		MaxIterations:        maxIterations,
		ConvergenceThreshold: threshold,
		State:                StateDecomposed,
		seen:                 make(map[string]struct{}),
		covered:              make(map[int]struct{}),
	}
}

// Begin moves the session from DECOMPOSED to ITERATING.
func (s *RetrievalSession) Begin() error {
	if s.State.Terminal() {
		return ErrSessionTerminal
	}
	s.State = StateIterating
	return nil
}

// Accumulate merges one iteration's evidence into the session, deduplicated
// by evidence ID while preserving first-seen order.
func (s *RetrievalSession) Accumulate(items []*EvidenceItem) {
	for _, item := range items {
		if _, ok := s.seen[item.ID]; ok {
			continue
		}
		s.seen[item.ID] = struct{}{}
		s.evidence = append(s.evidence, item)
	}
}

// MarkCovered records that the sub-question at index idx produced at least
// one above-threshold evidence item. Coverage only ever grows, which keeps
// confidence monotonically non-decreasing.
func (s *RetrievalSession) MarkCovered(idx int) {
	if idx >= 0 && idx < len(s.SubQuestions) {
		s.covered[idx] = struct{}{}
	}
}

// RecomputeConfidence sets confidence to the fraction of sub-questions with
// at least one above-threshold evidence item.
func (s *RetrievalSession) RecomputeConfidence() float64 {
	if len(s.SubQuestions) == 0 {
		s.Confidence = 1.0
		return s.Confidence
	}
	s.Confidence = float64(len(s.covered)) / float64(len(s.SubQuestions))
	return s.Confidence
}

// Evidence returns the accumulated evidence in first-seen order.
func (s *RetrievalSession) Evidence() []*EvidenceItem {
	return s.evidence
}

// Converge terminates the session with reason CONVERGED.
func (s *RetrievalSession) Converge() {
	s.State = StateConverged
	s.Reason = ReasonConverged
}

// Exhaust terminates the session with reason EXHAUSTED.
func (s *RetrievalSession) Exhaust() {
	s.State = StateExhausted
	s.Reason = ReasonExhausted
}
