// Package embedder provides text embedding clients behind one interface.
//
// Embeddings feed two places: the seed resolver's nearest-neighbor fallback
// and the vector signal source of each retrieval cycle. The Client interface
// has a single embedding method; providers with differently-shaped SDKs are
// adapted here at the boundary.
//
// Two implementations ship: OpenAI (text-embedding-3-small and friends) and
// a local EmbedEverything model for offline use.
package embedder
