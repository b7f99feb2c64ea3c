// Package embedding provides the search.Embedder implementations: a local
// ONNX model via hugot, an OpenAI-compatible HTTP provider, and a
// deterministic hashing embedder for offline use.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/meridiansearch/meridian/domain/search"
)

// Truncate cuts text to search.MaxEmbedInputBytes on a whitespace boundary
// so a token is never split mid-rune. Short inputs pass through unchanged.
func Truncate(text string) string {
	if len(text) <= search.MaxEmbedInputBytes {
		return text
	}
	cut := text[:search.MaxEmbedInputBytes]
	// Back up to the previous whitespace; keep the hard cut when the
	// input has no whitespace at all.
	if idx := strings.LastIndexFunc(cut, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == '\r'
	}); idx > 0 {
		return cut[:idx]
	}
	// No whitespace: trim any partial rune at the boundary.
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// batchEmbed fans texts out over a bounded worker pool, preserving input
// order. Used by embedders whose backend handles one request at a time or
// small fixed batches.
func batchEmbed(ctx context.Context, texts []string, workers int, embed func(context.Context, string) ([]float64, error)) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if len(texts) > search.MaxEmbedBatch {
		return nil, fmt.Errorf("batch embed: %d texts exceeds limit %d", len(texts), search.MaxEmbedBatch)
	}
	if workers <= 0 {
		workers = 4
	}

	vectors := make([][]float64, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := embed(ctx, text)
			if err != nil {
				return err
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
