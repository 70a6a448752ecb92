// Package types defines the core data model shared across graphrank:
// seed candidates and resolved seeds, personalization vectors, propagated
// node scores, evidence items, and the multi-hop retrieval session.
//
// All entities are scoped by a group ID (the tenant boundary). The group ID
// is mandatory on every lookup and is never inferred from context.
package types
