// Package graphrank is a retrieval ranking engine for multi-tenant
// property graphs.
//
// Given a natural-language query and the candidate seed names an upstream
// NLU step extracted from it, the engine resolves the candidates to
// concrete graph nodes, spreads relevance across graph edges with a
// personalized-PageRank-style propagation, fuses that signal with
// independent vector-similarity and full-text rankings, and returns a
// bounded, de-duplicated, source-diverse evidence set. Multi-hop queries
// iterate this cycle across sub-questions until a confidence threshold or
// an iteration budget is reached.
//
// # Basic Usage
//
// Create an engine with a graph driver and an embedder:
//
//	// Create Neo4j driver
//	store, err := driver.NewNeo4jDriver("bolt://localhost:7687", "neo4j", "password", "neo4j")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Create embedder
//	embConfig := embedder.Config{Model: "text-embedding-3-small"}
//	embedderClient := embedder.NewOpenAIEmbedder("your-api-key", embConfig)
//
//	// Create the engine
//	engine, err := graphrank.NewEngine(store, embedderClient, nil, graphrank.DefaultOptions(), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close(ctx)
//
// # Retrieving
//
//	result, err := engine.Retrieve(ctx, graphrank.RetrieveRequest{
//		Query:   "What are the payment terms of Invoice #100?",
//		GroupID: "tenant-a",
//		Candidates: []types.SeedCandidate{
//			{Name: "Invoice #100", Tier: types.TierEntity, Confidence: 0.9},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, item := range result.Evidence {
//		fmt.Println(item.TextRef)
//	}
//
// # Multi-hop
//
// Queries whose answer chains across sub-topics iterate until enough
// sub-questions are covered:
//
//	result, err := engine.MultiHopRetrieve(ctx, graphrank.MultiHopRequest{
//		Query:        "How did supplier delays affect Q3 revenue?",
//		GroupID:      "tenant-a",
//		SubQuestions: []string{"which suppliers were delayed", "what drove Q3 revenue"},
//	})
//
// Exhausting the iteration budget is a success with reason EXHAUSTED and
// lower confidence, never an error.
//
// # Multi-tenancy
//
// Every request and every store lookup carries a mandatory group id; data
// never crosses that boundary. A missing group id fails the request with
// ErrMissingGroupID.
//
// # Architecture
//
//   - pkg/driver: graph store abstraction (Neo4j) plus retry/breaker wrapper
//   - pkg/resolver: seed name to node resolution cascade
//   - pkg/weighting: tiered personalization vector construction
//   - pkg/propagation: bounded-hop and power-iteration ranking
//   - pkg/fusion: reciprocal rank fusion and weighted-sum merging
//   - pkg/diversify: per-section/per-document evidence caps
//   - pkg/multihop: iterative session orchestration
//   - pkg/embedder: embedding provider interfaces
//   - pkg/telemetry: request traces and Parquet error logs
//
// The engine is read-only against the store: ingestion, NLU, and answer
// synthesis live outside this module.
package graphrank
