package driver

import (
	"strconv"

	"github.com/soundprediction/graphrank/pkg/types"
)

// Record value coercion helpers. Neo4j records surface values as any; these
// normalize the handful of shapes the driver actually returns.

func toStringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64Value(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func toFloat64Value(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return 0
}

func toFloat32Slice(v interface{}) []float32 {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []float32:
		return val
	case []float64:
		result := make([]float32, len(val))
		for i, f := range val {
			result[i] = float32(f)
		}
		return result
	case []interface{}:
		result := make([]float32, 0, len(val))
		for _, item := range val {
			switch f := item.(type) {
			case float64:
				result = append(result, float32(f))
			case float32:
				result = append(result, f)
			case int64:
				result = append(result, float32(f))
			}
		}
		return result
	}
	return nil
}

// nodeFromRecord builds a Node from the aliases of nodeReturnClause.
func nodeFromRecord(record map[string]interface{}) *types.Node {
	return &types.Node{
		Uuid:       toStringValue(record["uuid"]),
		GroupID:    toStringValue(record["group_id"]),
		Name:       toStringValue(record["name"]),
		EntityType: toStringValue(record["entity_type"]),
		Summary:    toStringValue(record["summary"]),
		AttrKey:    toStringValue(record["attr_key"]),
		Embedding:  toFloat32Slice(record["embedding"]),
		Degree:     toInt64Value(record["degree"]),
	}
}

// evidenceFromRecord builds an EvidenceItem from the aliases of
// evidenceReturnClause. The caller stamps Origin and Score.
func evidenceFromRecord(record map[string]interface{}, origin types.EvidenceOrigin, score float64) *types.EvidenceItem {
	return &types.EvidenceItem{
		ID:           toStringValue(record["uuid"]),
		TextRef:      toStringValue(record["text_ref"]),
		SourceNodeID: toStringValue(record["source_node_uuid"]),
		SectionID:    toStringValue(record["section_id"]),
		DocumentID:   toStringValue(record["document_id"]),
		Origin:       origin,
		Score:        score,
	}
}
