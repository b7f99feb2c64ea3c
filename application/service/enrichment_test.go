package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/enrichment"
	"github.com/meridiansearch/meridian/domain/storage"
)

type memoryEnrichmentStore struct {
	mu      sync.Mutex
	pending []string
	saved   []enrichment.Result
	deleted []string
}

func (s *memoryEnrichmentStore) Save(_ context.Context, r enrichment.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return nil
}

func (s *memoryEnrichmentStore) ByDocumentID(_ context.Context, documentID string) (enrichment.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.saved) - 1; i >= 0; i-- {
		if s.saved[i].DocumentID() == documentID {
			return s.saved[i], nil
		}
	}
	return enrichment.Result{}, ErrNotFound
}

func (s *memoryEnrichmentStore) Pending(context.Context, int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, nil
}

func (s *memoryEnrichmentStore) DeleteByDocumentIDs(_ context.Context, documentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, documentIDs...)
	return nil
}

type memoryRelationships struct {
	mu      sync.Mutex
	unions  map[string][]string
	removed []string
}

func newMemoryRelationships() *memoryRelationships {
	return &memoryRelationships{unions: map[string][]string{}}
}

func (s *memoryRelationships) Union(_ context.Context, entityType enrichment.EntityType, normalized, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := string(entityType) + "/" + normalized
	s.unions[key] = append(s.unions[key], documentID)
	return nil
}

func (s *memoryRelationships) ByEntity(context.Context, enrichment.EntityType, string) (enrichment.Relationship, error) {
	return enrichment.Relationship{}, ErrNotFound
}

func (s *memoryRelationships) Find(context.Context, ...storage.Option) ([]enrichment.Relationship, error) {
	return nil, nil
}

func (s *memoryRelationships) RemoveDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, documentID)
	return nil
}

type fakeTagWriter struct {
	mu   sync.Mutex
	tags map[string][]string
}

func newFakeTagWriter() *fakeTagWriter {
	return &fakeTagWriter{tags: map[string][]string{}}
}

func (f *fakeTagWriter) SetTags(_ context.Context, documentID string, tags []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags[documentID] = tags
	return nil
}

type memoryEmbeddings struct {
	mu    sync.Mutex
	saved map[string][]float64
}

func newMemoryEmbeddings() *memoryEmbeddings {
	return &memoryEmbeddings{saved: map[string][]float64{}}
}

func (s *memoryEmbeddings) Save(_ context.Context, documentID string, vector []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[documentID] = vector
	return nil
}

func (s *memoryEmbeddings) ByDocumentID(_ context.Context, documentID string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.saved[documentID]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *memoryEmbeddings) HasEmbedding(_ context.Context, documentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[documentID]
	return ok, nil
}

func (s *memoryEmbeddings) DeleteByDocumentIDs(_ context.Context, documentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range documentIDs {
		delete(s.saved, id)
	}
	return nil
}

type fakeEnricher struct {
	entity enrichment.Entity
}

func (f *fakeEnricher) Enrich(_ context.Context, documentID string, version int, _, content string) enrichment.Result {
	return enrichment.NewResult(
		documentID, version,
		[]string{"relays", "federation"},
		[]enrichment.Entity{f.entity},
		len(content), time.Minute,
		enrichment.NewSentiment(enrichment.SentimentNeutral, 0.8),
		enrichment.NewContentFeatures(false, false, false),
		"", "en",
	)
}

type enrichmentFixture struct {
	docs          *memoryDocuments
	results       *memoryEnrichmentStore
	relationships *memoryRelationships
	tags          *fakeTagWriter
	lexical       *fakeLexicalStore
	embedder      *fakeEmbedder
	embeddings    *memoryEmbeddings
	entity        enrichment.Entity
	service       *Enrichment
}

func newEnrichmentFixture(t *testing.T, docs ...document.Document) *enrichmentFixture {
	t.Helper()
	entity, err := enrichment.NewEntity(enrichment.EntityOrg, "Acme Corp", 0, 9)
	require.NoError(t, err)

	f := &enrichmentFixture{
		docs:          newMemoryDocuments(docs...),
		results:       &memoryEnrichmentStore{},
		relationships: newMemoryRelationships(),
		tags:          newFakeTagWriter(),
		lexical:       &fakeLexicalStore{},
		embedder:      &fakeEmbedder{},
		embeddings:    newMemoryEmbeddings(),
		entity:        entity,
	}
	f.service = NewEnrichment(
		f.docs, f.results, f.relationships, f.tags,
		f.lexical, f.embedder, f.embeddings,
		&fakeEnricher{entity: entity}, slog.Default(),
	)
	return f
}

func TestEnrichmentProcessWritesAllDerivedData(t *testing.T) {
	doc := testDoc("doc-a", "Relay guide", document.TypeWebPage, time.Now().UTC())
	f := newEnrichmentFixture(t, doc)

	require.NoError(t, f.service.Process(context.Background(), "doc-a"))

	require.Len(t, f.results.saved, 1)
	result := f.results.saved[0]
	assert.Equal(t, enrichment.StatusCompleted, result.Status())
	assert.Equal(t, []string{"relays", "federation"}, result.Tags())

	assert.Equal(t, []string{"relays", "federation"}, f.tags.tags["doc-a"])
	assert.Equal(t, []string{"doc-a"}, f.relationships.unions["ORG/"+f.entity.Normalized()])
	assert.Equal(t, []string{"doc-a"}, f.lexical.indexed)

	vector, err := f.embeddings.ByDocumentID(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Len(t, vector, 3)
}

func TestEnrichmentEmbeddingFailureIsNonFatal(t *testing.T) {
	doc := testDoc("doc-a", "Relay guide", document.TypeWebPage, time.Now().UTC())
	f := newEnrichmentFixture(t, doc)
	f.embedder.err = assert.AnError

	require.NoError(t, f.service.Process(context.Background(), "doc-a"))

	// Lexically searchable even without a vector.
	assert.Equal(t, []string{"doc-a"}, f.lexical.indexed)
	has, err := f.embeddings.HasEmbedding(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestEnrichmentUnchangedContentIsNotRecomputed(t *testing.T) {
	doc := testDoc("doc-a", "Relay guide", document.TypeWebPage, time.Now().UTC())
	f := newEnrichmentFixture(t, doc)
	ctx := context.Background()

	require.NoError(t, f.service.Process(ctx, "doc-a"))
	require.Equal(t, int32(1), f.embedder.calls.Load())
	first, err := f.results.ByDocumentID(ctx, "doc-a")
	require.NoError(t, err)

	// A re-sync with identical content only refreshes the staleness
	// marker: no second enrichment, index write, or embedding.
	require.NoError(t, f.service.Process(ctx, "doc-a"))
	assert.Equal(t, int32(1), f.embedder.calls.Load())
	assert.Equal(t, []string{"doc-a"}, f.lexical.indexed)
	latest, err := f.results.ByDocumentID(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, enrichment.StatusCompleted, latest.Status())
	assert.Equal(t, first.ContentHash(), latest.ContentHash())
	assert.True(t, latest.EnrichedAt().After(first.EnrichedAt()) || latest.EnrichedAt().Equal(first.EnrichedAt()))

	// Edited content goes through the full pipeline again.
	edited := document.Reconstruct(
		"doc-a", "src-1", "ext-doc-a", "Relay guide", "Relay guide revised body", "",
		document.TypeWebPage, document.NewAttributes(nil), nil, 0.5,
		doc.IndexedAt(), doc.IndexedAt(), doc.IndexedAt(), doc.IndexedAt(),
	)
	_, _, err = f.docs.Upsert(ctx, edited)
	require.NoError(t, err)
	require.NoError(t, f.service.Process(ctx, "doc-a"))
	assert.Equal(t, int32(2), f.embedder.calls.Load())
	changed, err := f.results.ByDocumentID(ctx, "doc-a")
	require.NoError(t, err)
	assert.NotEqual(t, first.ContentHash(), changed.ContentHash())
}

func TestEnrichmentProcessPendingContinuesOnFailure(t *testing.T) {
	doc := testDoc("doc-a", "Relay guide", document.TypeWebPage, time.Now().UTC())
	f := newEnrichmentFixture(t, doc)
	f.results.pending = []string{"missing", "doc-a"}

	processed, err := f.service.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestEnrichmentReprocessDropsDerivedRows(t *testing.T) {
	doc := testDoc("doc-a", "Relay guide", document.TypeWebPage, time.Now().UTC())
	f := newEnrichmentFixture(t, doc)

	require.NoError(t, f.service.Reprocess(context.Background(), "doc-a"))

	assert.Equal(t, []string{"doc-a"}, f.results.deleted)
	assert.Equal(t, []string{"doc-a"}, f.relationships.removed)
	require.Len(t, f.results.saved, 1)
}
