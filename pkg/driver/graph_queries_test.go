package driver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFulltext(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain text untouched", input: "acme corp", want: "acme corp"},
		{name: "lucene operators escaped", input: "a+b:c", want: "a\\+b\\:c"},
		{name: "quotes escaped", input: `say "hi"`, want: `say \"hi\"`},
		{name: "wildcards escaped", input: "inv*ce?", want: "inv\\*ce\\?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFulltext(tt.input))
		})
	}
}

func TestEveryQueryFiltersOnGroupID(t *testing.T) {
	queries := map[string]string{
		"exact":             exactNameQuery(),
		"attribute_key":     attributeKeyQuery(),
		"substring":         substringQuery(),
		"fulltext_node":     fulltextNodeQuery(),
		"vector_node":       vectorNodeQuery(),
		"highest_degree":    highestDegreeQuery(),
		"neighbors":         neighborsByDegreeQuery(),
		"subgraph":          subgraphEdgesQuery(2),
		"evidence_by_node":  evidenceForNodesQuery(),
		"evidence_fulltext": fulltextEvidenceQuery(),
		"evidence_vector":   vectorEvidenceQuery(),
		"stats":             statsQuery(),
	}

	for name, q := range queries {
		assert.Contains(t, q, "$group_id", "query %s must be tenant-scoped", name)
	}
}

func TestSubgraphEdgesQueryHopBound(t *testing.T) {
	assert.Contains(t, subgraphEdgesQuery(3), "*0..3")
	// A non-positive bound falls back to one hop rather than an unbounded walk.
	assert.Contains(t, subgraphEdgesQuery(0), "*0..1")
}

func TestSubstringQueryPrefersShortestName(t *testing.T) {
	q := substringQuery()
	assert.True(t, strings.Contains(q, "ORDER BY size(n.name) ASC"))
}
