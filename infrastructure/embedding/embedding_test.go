package embedding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/search"
)

func TestTruncate(t *testing.T) {
	t.Run("short input passes through", func(t *testing.T) {
		assert.Equal(t, "hello world", Truncate("hello world"))
	})

	t.Run("long input cut on whitespace", func(t *testing.T) {
		text := strings.Repeat("word ", 4000)
		out := Truncate(text)
		assert.LessOrEqual(t, len(out), search.MaxEmbedInputBytes)
		assert.False(t, strings.HasSuffix(out, " "), "cut lands before the boundary whitespace")
		assert.True(t, strings.HasSuffix(out, "word"))
	})

	t.Run("no whitespace falls back to hard cut", func(t *testing.T) {
		text := strings.Repeat("a", search.MaxEmbedInputBytes+100)
		out := Truncate(text)
		assert.Equal(t, search.MaxEmbedInputBytes, len(out))
	})
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)

	t.Run("deterministic", func(t *testing.T) {
		a, err := e.Embed(context.Background(), "federated semantic search")
		require.NoError(t, err)
		b, err := e.Embed(context.Background(), "federated semantic search")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unit norm", func(t *testing.T) {
		vec, err := e.Embed(context.Background(), "some text with several tokens")
		require.NoError(t, err)
		var norm float64
		for _, v := range vec {
			norm += v * v
		}
		assert.InDelta(t, 1.0, norm, 1e-9)
	})

	t.Run("empty text yields zero vector", func(t *testing.T) {
		vec, err := e.Embed(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, vec, 64)
		for _, v := range vec {
			assert.Zero(t, v)
		}
	})

	t.Run("dimension", func(t *testing.T) {
		assert.Equal(t, 64, e.Dimension())
		assert.Equal(t, 384, NewHashEmbedder(0).Dimension())
	})
}

func TestBatchEmbed(t *testing.T) {
	e := NewHashEmbedder(32)

	t.Run("preserves input order", func(t *testing.T) {
		texts := []string{"alpha", "beta", "gamma", "delta"}
		vectors, err := e.BatchEmbed(context.Background(), texts)
		require.NoError(t, err)
		require.Len(t, vectors, len(texts))
		for i, text := range texts {
			single, err := e.Embed(context.Background(), text)
			require.NoError(t, err)
			assert.Equal(t, single, vectors[i], "vector %d", i)
		}
	})

	t.Run("rejects oversized batch", func(t *testing.T) {
		texts := make([]string, search.MaxEmbedBatch+1)
		for i := range texts {
			texts[i] = "t"
		}
		_, err := e.BatchEmbed(context.Background(), texts)
		assert.Error(t, err)
	})

	t.Run("empty batch", func(t *testing.T) {
		vectors, err := e.BatchEmbed(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}
