package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder is a deterministic, dependency-free search.Embedder. Each
// token hashes into a fixed number of buckets and the resulting vector is
// L2-normalized, so identical text always produces the identical vector.
// Retrieval quality is far below a learned model; it exists for tests and
// for deployments with no model configured.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a HashEmbedder with the given vector width.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed maps one text to a vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, e.dimension)

	tokens := strings.FieldsFunc(strings.ToLower(Truncate(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		sum := sha256.Sum256([]byte(token))
		bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(e.dimension)
		// The fifth byte signs the contribution so antonymous buckets
		// can cancel instead of only accumulating.
		if sum[4]&1 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// BatchEmbed maps texts to vectors in input order.
func (e *HashEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	return batchEmbed(ctx, texts, 8, e.Embed)
}

// Dimension returns the fixed vector width.
func (e *HashEmbedder) Dimension() int { return e.dimension }
