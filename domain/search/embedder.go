package search

import (
	"context"
	"errors"
)

// ErrModelUnavailable indicates the embedding model is not loaded.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// MaxEmbedInputBytes is the maximum input length; longer inputs are
// truncated on a whitespace boundary before embedding.
const MaxEmbedInputBytes = 8 * 1024

// MaxEmbedBatch is the maximum batch size for BatchEmbed.
const MaxEmbedBatch = 64

// Embedder maps UTF-8 text to a fixed-length dense vector. The same text
// must produce the same vector across restarts.
type Embedder interface {
	// Embed maps one text to a vector.
	Embed(ctx context.Context, text string) ([]float64, error)

	// BatchEmbed maps up to MaxEmbedBatch texts concurrently, returning
	// vectors in input order.
	BatchEmbed(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension returns the fixed vector width.
	Dimension() int
}
