package embedder

import "context"

// Client is the single embedding-provider interface. All consumers depend
// on this, never on a concrete SDK.
type Client interface {
	// Embed generates one embedding per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// Close cleans up any resources.
	Close() error
}

// Config holds common embedding client settings.
type Config struct {
	Model      string
	BaseURL    string
	BatchSize  int
	Dimensions int
}

// EmbedSingle embeds one text through any Client.
func EmbedSingle(ctx context.Context, client Client, text string) ([]float32, error) {
	vectors, err := client.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, ErrNoEmbeddings
	}
	return vectors[0], nil
}

// splitBatches cuts texts into provider-sized batches.
func splitBatches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 || len(texts) <= batchSize {
		return [][]string{texts}
	}
	var batches [][]string
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[start:end])
	}
	return batches
}
