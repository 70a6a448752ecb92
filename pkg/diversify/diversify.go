// Package diversify bounds how much one document or section can contribute
// to the final evidence set. It is a single greedy pass over the fused
// ranking in score order: an item is accepted only while its section and
// document are both under their caps, otherwise skipped. Order is never
// altered, only filtered.
package diversify

import (
	"github.com/soundprediction/graphrank/pkg/types"
)

// Config holds the diversifier caps.
type Config struct {
	// MaxPerSection caps accepted items per section id. Zero disables the cap.
	MaxPerSection int
	// MaxPerDocument caps accepted items per document id. Zero disables the cap.
	MaxPerDocument int
	// TopK stops the pass after this many accepted items. Zero disables the cap.
	TopK int
}

// DefaultConfig returns the diversifier defaults.
func DefaultConfig() Config {
	return Config{
		MaxPerSection:  2,
		MaxPerDocument: 3,
		TopK:           20,
	}
}

// Result reports the selection and why items were dropped.
type Result struct {
	Selected          []*types.EvidenceItem
	SkippedBySection  int
	SkippedByDocument int
}

// Diversifier filters a fused ranking down to a bounded, source-diverse
// selection.
type Diversifier struct {
	config Config
}

// New creates a diversifier.
func New(config Config) *Diversifier {
	return &Diversifier{config: config}
}

// Diversify walks the ranking once in its given order. Items without a
// section or document id do not count against the respective cap.
func (d *Diversifier) Diversify(ranking []*types.EvidenceItem) *Result {
	result := &Result{Selected: make([]*types.EvidenceItem, 0, len(ranking))}
	perSection := make(map[string]int)
	perDocument := make(map[string]int)

	for _, item := range ranking {
		if d.config.TopK > 0 && len(result.Selected) >= d.config.TopK {
			break
		}
		if d.config.MaxPerSection > 0 && item.SectionID != "" &&
			perSection[item.SectionID] >= d.config.MaxPerSection {
			result.SkippedBySection++
			continue
		}
		if d.config.MaxPerDocument > 0 && item.DocumentID != "" &&
			perDocument[item.DocumentID] >= d.config.MaxPerDocument {
			result.SkippedByDocument++
			continue
		}
		if item.SectionID != "" {
			perSection[item.SectionID]++
		}
		if item.DocumentID != "" {
			perDocument[item.DocumentID]++
		}
		result.Selected = append(result.Selected, item)
	}
	return result
}
