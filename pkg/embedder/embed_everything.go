package embedder

import (
	"context"
	"fmt"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// EmbedEverythingClient implements Client using a local EmbedEverything
// model. Useful when no external embedding API is reachable.
type EmbedEverythingClient struct {
	client *embedeverything.Embedder
	config Config
}

// NewEmbedEverythingClient loads the local model named in config.Model.
func NewEmbedEverythingClient(config Config) (*EmbedEverythingClient, error) {
	client, err := embedeverything.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create local embedder: %w", err)
	}
	if config.Dimensions <= 0 {
		config.Dimensions = 384
	}

	return &EmbedEverythingClient{
		client: client,
		config: config,
	}, nil
}

// Embed generates embeddings for the given texts.
func (e *EmbedEverythingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	// go-embedeverything does not support context yet
	vectors, err := e.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("local embedding failed: %w", err)
	}
	return vectors, nil
}

// Dimensions returns the embedding dimensionality.
func (e *EmbedEverythingClient) Dimensions() int {
	return e.config.Dimensions
}

// Close releases the loaded model.
func (e *EmbedEverythingClient) Close() error {
	e.client.Close()
	return nil
}

var _ Client = (*EmbedEverythingClient)(nil)
