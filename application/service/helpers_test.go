package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/storage"
)

// memoryDocuments is an in-memory document.Store covering what the
// services touch.
type memoryDocuments struct {
	mu   sync.Mutex
	docs map[string]document.Document
	err  error
}

func newMemoryDocuments(docs ...document.Document) *memoryDocuments {
	s := &memoryDocuments{docs: map[string]document.Document{}}
	for _, doc := range docs {
		s.docs[doc.ID()] = doc
	}
	return s
}

func (s *memoryDocuments) Upsert(_ context.Context, doc document.Document) (document.Document, document.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := document.OutcomeCreated
	if _, exists := s.docs[doc.ID()]; exists {
		outcome = document.OutcomeUpdated
	}
	s.docs[doc.ID()] = doc
	return doc, outcome, nil
}

func (s *memoryDocuments) ByID(_ context.Context, id string) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return document.Document{}, errors.New("document not found")
	}
	return doc, nil
}

func (s *memoryDocuments) ByIDs(_ context.Context, ids []string) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]document.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *memoryDocuments) BySourceExternalID(_ context.Context, sourceID, externalID string) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range s.docs {
		if doc.SourceID() == sourceID && doc.ExternalID() == externalID {
			return doc, nil
		}
	}
	return document.Document{}, errors.New("document not found")
}

// Find supports the option subset the recent-documents path uses:
// document_type/source_id IN conditions, indexed_at ordering, limit.
func (s *memoryDocuments) Find(_ context.Context, options ...storage.Option) ([]document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := storage.Build(options...)

	var out []document.Document
	for _, doc := range s.docs {
		if matchesConditions(doc, query.Conditions()) {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IndexedAt().Equal(out[j].IndexedAt()) {
			return out[i].IndexedAt().After(out[j].IndexedAt())
		}
		return out[i].ID() < out[j].ID()
	})
	if limit := query.LimitValue(); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchesConditions(doc document.Document, conditions []storage.Condition) bool {
	for _, c := range conditions {
		switch c.Field() {
		case "document_type":
			if values, ok := c.Value().([]string); ok && !containsString(values, string(doc.DocumentType())) {
				return false
			}
		case "source_id":
			if values, ok := c.Value().([]string); ok && !containsString(values, doc.SourceID()) {
				return false
			}
		}
	}
	return true
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func (s *memoryDocuments) Count(_ context.Context, _ ...storage.Option) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.docs)), nil
}

func (s *memoryDocuments) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *memoryDocuments) DeleteBySourceKeeping(context.Context, string, []string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *memoryDocuments) ListForSource(context.Context, string) ([]document.SourceEntry, error) {
	return nil, errors.New("not implemented")
}

// fakeVectorStore replays configured hits and records call parameters.
type fakeVectorStore struct {
	hits  []search.Hit
	err   error
	lastK int
}

func (f *fakeVectorStore) Search(_ context.Context, _ []float64, k int, _ search.Filters) ([]search.Hit, error) {
	f.lastK = k
	return f.hits, f.err
}

// fakeLexicalStore replays configured hits, capped at the requested
// window, and records indexed documents.
type fakeLexicalStore struct {
	hits      []search.Hit
	err       error
	lastQuery search.TermQuery
	limits    []int
	indexed   []string
}

func (f *fakeLexicalStore) Search(_ context.Context, query search.TermQuery, k int, _ search.Filters) ([]search.Hit, error) {
	f.lastQuery = query
	f.limits = append(f.limits, k)
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeLexicalStore) Index(_ context.Context, documentID, _, _ string) error {
	f.indexed = append(f.indexed, documentID)
	return nil
}

func (f *fakeLexicalStore) Remove(context.Context, []string) error { return nil }

// fakeEmbedder returns a constant vector.
type fakeEmbedder struct {
	err   error
	calls atomic.Int32
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []float64{0.1, 0.2, 0.3}, nil
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) ([][]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

// fakeOntologyStore serves a fixed snapshot.
type fakeOntologyStore struct {
	snapshot *ontology.Snapshot
	err      error
}

func (f *fakeOntologyStore) Snapshot(context.Context) (*ontology.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.snapshot == nil {
		return ontology.EmptySnapshot(), nil
	}
	return f.snapshot, nil
}

func (f *fakeOntologyStore) SaveTerm(context.Context, ontology.Term) error     { return nil }
func (f *fakeOntologyStore) DeleteTerm(context.Context, string) error          { return nil }
func (f *fakeOntologyStore) SaveRelation(context.Context, ontology.Relation) error { return nil }
func (f *fakeOntologyStore) SaveAlias(context.Context, ontology.Alias) error   { return nil }
func (f *fakeOntologyStore) SaveDictionaryEntry(context.Context, ontology.DictionaryEntry) error {
	return nil
}
func (f *fakeOntologyStore) Terms(context.Context) ([]ontology.Term, error) { return nil, nil }
func (f *fakeOntologyStore) DictionaryEntries(context.Context) ([]ontology.DictionaryEntry, error) {
	return nil, nil
}

// fakeTriggerStore serves a fixed trigger list.
type fakeTriggerStore struct {
	triggers []ontology.Trigger
}

func (f *fakeTriggerStore) Active(context.Context) ([]ontology.Trigger, error) {
	return f.triggers, nil
}
func (f *fakeTriggerStore) All(context.Context) ([]ontology.Trigger, error) { return f.triggers, nil }
func (f *fakeTriggerStore) Save(context.Context, ontology.Trigger) error    { return nil }
func (f *fakeTriggerStore) Delete(context.Context, string) error            { return nil }
