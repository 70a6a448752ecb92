package driver

import (
	"fmt"
	"strings"
)

// Cypher builders for the retrieval queries. Every query filters on
// $group_id; the tenant boundary is enforced in the query itself, not in
// Go-side post-filtering.

const nodeReturnClause = `
	RETURN n.uuid AS uuid,
	       n.group_id AS group_id,
	       n.name AS name,
	       n.entity_type AS entity_type,
	       n.summary AS summary,
	       n.attr_key AS attr_key,
	       n.name_embedding AS embedding,
	       COUNT { (n)--() } AS degree`

const evidenceReturnClause = `
	RETURN c.uuid AS uuid,
	       c.text_ref AS text_ref,
	       src.uuid AS source_node_uuid,
	       c.section_id AS section_id,
	       c.document_id AS document_id`

func exactNameQuery() string {
	return `
	MATCH (n:Entity {group_id: $group_id})
	WHERE toLower(n.name) = toLower($name)` +
		nodeReturnClause + `
	LIMIT $limit`
}

func attributeKeyQuery() string {
	return `
	MATCH (n:Entity {group_id: $group_id})
	WHERE toLower(n.attr_key) = toLower($key)` +
		nodeReturnClause + `
	LIMIT $limit`
}

func substringQuery() string {
	return `
	MATCH (n:Entity {group_id: $group_id})
	WHERE toLower(n.name) CONTAINS toLower($fragment)
	   OR toLower($fragment) CONTAINS toLower(n.name)` +
		nodeReturnClause + `
	ORDER BY size(n.name) ASC
	LIMIT $limit`
}

func fulltextNodeQuery() string {
	return `
	CALL db.index.fulltext.queryNodes("entity_name_and_summary", $query)
	YIELD node AS n, score
	WHERE n.group_id = $group_id
	WITH n, score
	ORDER BY score DESC
	LIMIT $limit` +
		nodeReturnClause
}

func vectorNodeQuery() string {
	return `
	CALL db.index.vector.queryNodes("entity_name_embedding", $limit, $vector)
	YIELD node AS n, score
	WHERE n.group_id = $group_id AND score >= $min_score
	WITH n, score
	ORDER BY score DESC` +
		nodeReturnClause + `,
	       score AS similarity`
}

func highestDegreeQuery() string {
	return `
	MATCH (n:Entity {group_id: $group_id})
	WITH n, COUNT { (n)--() } AS deg
	ORDER BY deg DESC, n.uuid ASC
	LIMIT $limit
	WITH n` +
		nodeReturnClause
}

func neighborsByDegreeQuery() string {
	return `
	UNWIND $node_ids AS origin_id
	MATCH (origin:Entity {uuid: origin_id, group_id: $group_id})-[:RELATES_TO]-(m:Entity {group_id: $group_id})
	WITH origin, m, COUNT { (m)--() } AS target_degree
	ORDER BY origin.uuid ASC, target_degree DESC, m.uuid ASC
	WITH origin, collect({target: m.uuid, degree: target_degree})[0..$top_n] AS neighbors
	UNWIND neighbors AS nb
	RETURN origin.uuid AS source_uuid, nb.target AS target_uuid, nb.degree AS target_degree`
}

// subgraphEdgesQuery bounds reachability by hop count; the variable-length
// pattern upper bound must be inlined because Cypher does not parameterize it.
func subgraphEdgesQuery(hops int) string {
	if hops < 1 {
		hops = 1
	}
	return fmt.Sprintf(`
	UNWIND $node_ids AS origin_id
	MATCH (origin:Entity {uuid: origin_id, group_id: $group_id})-[:RELATES_TO*0..%d]-(u:Entity {group_id: $group_id})
	WITH DISTINCT u
	MATCH (u)-[:RELATES_TO]->(v:Entity {group_id: $group_id})
	WITH u, v, COUNT { (u)-[:RELATES_TO]->() } AS out_degree
	RETURN DISTINCT u.uuid AS source_uuid, v.uuid AS target_uuid, out_degree`, hops)
}

func evidenceForNodesQuery() string {
	return `
	UNWIND $node_ids AS node_id
	MATCH (src:Entity {uuid: node_id, group_id: $group_id})<-[:SUPPORTS]-(c:Evidence {group_id: $group_id})
	WITH src, c
	ORDER BY c.uuid ASC
	WITH src, collect(c)[0..$limit] AS chunks
	UNWIND chunks AS c` +
		evidenceReturnClause
}

func fulltextEvidenceQuery() string {
	return `
	CALL db.index.fulltext.queryNodes("evidence_text", $query)
	YIELD node AS c, score
	WHERE c.group_id = $group_id
	MATCH (c)-[:SUPPORTS]->(src:Entity)
	WITH c, src, score
	ORDER BY score DESC
	LIMIT $limit` +
		evidenceReturnClause + `,
	       score AS relevance`
}

func vectorEvidenceQuery() string {
	return `
	CALL db.index.vector.queryNodes("evidence_embedding", $limit, $vector)
	YIELD node AS c, score
	WHERE c.group_id = $group_id AND score >= $min_score
	MATCH (c)-[:SUPPORTS]->(src:Entity)
	WITH c, src, score
	ORDER BY score DESC` +
		evidenceReturnClause + `,
	       score AS similarity`
}

func statsQuery() string {
	return `
	MATCH (n:Entity {group_id: $group_id})
	WITH count(n) AS node_count
	OPTIONAL MATCH (:Entity {group_id: $group_id})-[r:RELATES_TO]->(:Entity {group_id: $group_id})
	WITH node_count, count(r) AS edge_count
	OPTIONAL MATCH (c:Evidence {group_id: $group_id})
	RETURN node_count, edge_count, count(c) AS evidence_count`
}

// sanitizeFulltext escapes Lucene operators so free text cannot change the
// query structure.
func sanitizeFulltext(query string) string {
	replacer := strings.NewReplacer(
		"+", "\\+",
		"-", "\\-",
		"&&", "\\&&",
		"||", "\\||",
		"!", "\\!",
		"(", "\\(",
		")", "\\)",
		"{", "\\{",
		"}", "\\}",
		"[", "\\[",
		"]", "\\]",
		"^", "\\^",
		"~", "\\~",
		"*", "\\*",
		"?", "\\?",
		":", "\\:",
		"/", "\\/",
		"\"", "\\\"",
	)
	return replacer.Replace(query)
}
