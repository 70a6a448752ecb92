// Package driver defines the read-only graph store interface the retrieval
// engine runs against, plus the Neo4j implementation.
//
// The interface is split into focused pieces (NodeLookup, GraphTraversal,
// EvidenceSearcher) so consumers can depend on the smallest surface that
// meets their needs; GraphDriver composes them for wiring.
//
// Every query is parameterized by a group ID and never crosses the tenant
// boundary. The retrieval engine never writes to the store, so all calls
// are idempotent and safe to retry; the Resilient wrapper adds bounded
// backoff retries behind a circuit breaker.
package driver
