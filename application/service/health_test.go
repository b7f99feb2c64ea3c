package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAllChecksPass(t *testing.T) {
	h := NewHealth(newMemoryDocuments(), &fakeEmbedder{})

	report := h.Check(context.Background())
	assert.Equal(t, StatusOK, report.Status)
	require.Contains(t, report.Checks, "db")
	require.Contains(t, report.Checks, "embedding")
	assert.True(t, report.Checks["db"].OK)
	assert.True(t, report.Checks["embedding"].OK)
}

func TestHealthDatabaseDown(t *testing.T) {
	docs := newMemoryDocuments()
	docs.err = assert.AnError
	h := NewHealth(docs, &fakeEmbedder{})

	report := h.Check(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.False(t, report.Checks["db"].OK)
	assert.NotEmpty(t, report.Checks["db"].Error)
}

func TestHealthEmbeddingDown(t *testing.T) {
	h := NewHealth(newMemoryDocuments(), &fakeEmbedder{err: assert.AnError})

	report := h.Check(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.False(t, report.Checks["embedding"].OK)
}
