package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/ontology"
	"github.com/meridiansearch/meridian/domain/search"
)

func testDoc(id, title string, docType document.Type, indexedAt time.Time, groups ...string) document.Document {
	return document.Reconstruct(
		id, "src-1", "ext-"+id, title, title+" body", "",
		docType, document.NewAttributes(nil), groups, 0.5,
		indexedAt, indexedAt, indexedAt, indexedAt,
	)
}

type searchFixture struct {
	docs     *memoryDocuments
	vectors  *fakeVectorStore
	lexical  *fakeLexicalStore
	embedder *fakeEmbedder
	triggers *fakeTriggerStore
	service  *Search
}

func newSearchFixture(docs ...document.Document) *searchFixture {
	f := &searchFixture{
		docs:     newMemoryDocuments(docs...),
		vectors:  &fakeVectorStore{},
		lexical:  &fakeLexicalStore{},
		embedder: &fakeEmbedder{},
		triggers: &fakeTriggerStore{},
	}
	f.service = NewSearch(
		f.docs, f.vectors, f.lexical, f.embedder,
		&fakeOntologyStore{}, f.triggers,
		search.NewFusion(), nil, 0, slog.Default(),
	)
	return f
}

func TestSearchFusesVectorAndLexical(t *testing.T) {
	now := time.Now().UTC()
	f := newSearchFixture(
		testDoc("doc-a", "Relay federation", document.TypeNostrNote, now),
		testDoc("doc-b", "Relay setup", document.TypeWebPage, now),
		testDoc("doc-c", "Unrelated", document.TypeWebPage, now),
	)
	f.vectors.hits = []search.Hit{search.NewHit("doc-a", 0.9), search.NewHit("doc-b", 0.5)}
	f.lexical.hits = []search.Hit{search.NewHit("doc-b", 3.0), search.NewHit("doc-c", 1.0)}

	resp, err := f.service.Search(context.Background(), search.NewRequest("relay", search.ModeHybrid, 10))
	require.NoError(t, err)

	results := resp.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "doc-a", results[0].Document().ID())
	assert.InDelta(t, 0.7, results[0].Score(), 1e-9)
	assert.Equal(t, "doc-b", results[1].Document().ID())
	assert.InDelta(t, 0.3, results[1].Score(), 1e-9)
	assert.Equal(t, 3, resp.Total())

	// Candidate depth floor.
	assert.Equal(t, 50, f.vectors.lastK)

	facets := resp.Facets()
	require.NotNil(t, facets)
	assert.Equal(t, 2, facets.DocumentTypes()["web:page"])
	assert.Equal(t, 1, facets.DocumentTypes()["nostr:note"])
}

func TestSearchTieBreaksByIndexedAtThenID(t *testing.T) {
	now := time.Now().UTC()
	f := newSearchFixture(
		testDoc("doc-a", "Older", document.TypeWebPage, now.Add(-time.Hour)),
		testDoc("doc-b", "Newer", document.TypeWebPage, now),
		testDoc("doc-c", "Older too", document.TypeWebPage, now.Add(-time.Hour)),
	)
	// Identical raw scores normalize to 1.0 each.
	f.vectors.hits = []search.Hit{
		search.NewHit("doc-a", 0.5),
		search.NewHit("doc-b", 0.5),
		search.NewHit("doc-c", 0.5),
	}

	resp, err := f.service.Search(context.Background(), search.NewRequest("anything", search.ModeVector, 10))
	require.NoError(t, err)

	results := resp.Results()
	require.Len(t, results, 3)
	assert.Equal(t, "doc-b", results[0].Document().ID())
	assert.Equal(t, "doc-a", results[1].Document().ID())
	assert.Equal(t, "doc-c", results[2].Document().ID())
}

func TestSearchAppliesTriggerBoost(t *testing.T) {
	now := time.Now().UTC()
	f := newSearchFixture(
		testDoc("doc-a", "Relay federation", document.TypeNostrNote, now),
		testDoc("doc-b", "Setup guide", document.TypeWebPage, now),
	)
	f.vectors.hits = []search.Hit{search.NewHit("doc-a", 0.9), search.NewHit("doc-b", 0.5)}
	f.lexical.hits = []search.Hit{search.NewHit("doc-b", 3.0)}

	trigger, err := ontology.NewTrigger("t1", "setup", ontology.ActionBoostDocType, 10)
	require.NoError(t, err)
	f.triggers.triggers = []ontology.Trigger{trigger.WithDocTypeBoost("web:page", 2.0)}

	req := search.NewRequest("relay setup", search.ModeHybrid, 10).WithExplain(true)
	resp, err := f.service.Search(context.Background(), req)
	require.NoError(t, err)

	results := resp.Results()
	require.Len(t, results, 2)
	// doc-b: fused 0.3, boosted x3 = 0.9, overtakes doc-a at 0.7.
	assert.Equal(t, "doc-b", results[0].Document().ID())
	assert.InDelta(t, 0.9, results[0].Score(), 1e-9)

	explain := results[0].Explain()
	require.NotNil(t, explain)
	assert.InDelta(t, 1.0, explain.TextScore(), 1e-9)
	assert.InDelta(t, 0.6, explain.Boosts(), 1e-9)
	assert.InDelta(t, 0.0, explain.PluginAdjustment(), 1e-9)
}

func TestSearchFiltersByPermissionGroups(t *testing.T) {
	now := time.Now().UTC()
	f := newSearchFixture(
		testDoc("doc-a", "Public", document.TypeWebPage, now),
		testDoc("doc-b", "Internal", document.TypeWebPage, now, "staff"),
	)
	f.lexical.hits = []search.Hit{search.NewHit("doc-a", 2.0), search.NewHit("doc-b", 1.0)}

	anonymous, err := f.service.Search(context.Background(), search.NewRequest("report", search.ModeText, 10))
	require.NoError(t, err)
	require.Len(t, anonymous.Results(), 1)
	assert.Equal(t, "doc-a", anonymous.Results()[0].Document().ID())

	staff := search.NewRequest("report", search.ModeText, 10).
		WithUser(search.NewUserContext([]string{"staff"}, ""))
	elevated, err := f.service.Search(context.Background(), staff)
	require.NoError(t, err)
	assert.Len(t, elevated.Results(), 2)
}

func TestSearchWidensWindowWhenPermissionsHideCandidates(t *testing.T) {
	now := time.Now().UTC()

	// The 50 best-scoring candidates are restricted; the public documents
	// rank below the initial candidate window.
	var docs []document.Document
	var hits []search.Hit
	for i := 0; i < 55; i++ {
		id := fmt.Sprintf("doc-%02d", i)
		if i < 50 {
			docs = append(docs, testDoc(id, "Internal memo", document.TypeWebPage, now, "staff"))
		} else {
			docs = append(docs, testDoc(id, "Public page", document.TypeWebPage, now))
		}
		hits = append(hits, search.NewHit(id, float64(100-i)))
	}
	f := newSearchFixture(docs...)
	f.lexical.hits = hits

	resp, err := f.service.Search(context.Background(), search.NewRequest("memo", search.ModeText, 10))
	require.NoError(t, err)

	// Second pass with a doubled window reaches the public documents.
	assert.Equal(t, []int{50, 100}, f.lexical.limits)
	results := resp.Results()
	require.Len(t, results, 5)
	for _, r := range results {
		assert.Empty(t, r.Document().PermissionGroups())
	}
	assert.Equal(t, 5, resp.Total())
}

func TestSearchEmptyQueryWithFiltersReturnsRecent(t *testing.T) {
	now := time.Now().UTC()
	f := newSearchFixture(
		testDoc("doc-a", "Old page", document.TypeWebPage, now.Add(-2*time.Hour)),
		testDoc("doc-b", "New page", document.TypeWebPage, now),
		testDoc("doc-c", "Note", document.TypeNostrNote, now),
	)

	req := search.NewRequest("", search.ModeHybrid, 10).
		WithFilters(search.NewFilters(search.WithDocumentTypes("web:page")))
	resp, err := f.service.Search(context.Background(), req)
	require.NoError(t, err)

	results := resp.Results()
	require.Len(t, results, 2)
	assert.Equal(t, "doc-b", results[0].Document().ID())
	assert.Equal(t, "doc-a", results[1].Document().ID())
	assert.Zero(t, results[0].Score())
}

func TestSearchEmptyQueryWithoutFiltersReturnsNothing(t *testing.T) {
	f := newSearchFixture(testDoc("doc-a", "Page", document.TypeWebPage, time.Now().UTC()))

	resp, err := f.service.Search(context.Background(), search.NewRequest("  ", search.ModeHybrid, 10))
	require.NoError(t, err)
	assert.Empty(t, resp.Results())
	assert.Zero(t, resp.Total())
}

func TestSearchVectorModeFailsWithoutEmbeddings(t *testing.T) {
	f := newSearchFixture()
	f.embedder.err = errors.New("model unavailable")

	_, err := f.service.Search(context.Background(), search.NewRequest("query", search.ModeVector, 10))
	assert.Error(t, err)
}

func TestSearchHybridDegradesToLexicalOnEmbeddingFailure(t *testing.T) {
	now := time.Now().UTC()
	f := newSearchFixture(testDoc("doc-a", "Page", document.TypeWebPage, now))
	f.embedder.err = errors.New("model unavailable")
	f.lexical.hits = []search.Hit{search.NewHit("doc-a", 1.0)}

	resp, err := f.service.Search(context.Background(), search.NewRequest("page", search.ModeHybrid, 10))
	require.NoError(t, err)
	require.Len(t, resp.Results(), 1)
	assert.Equal(t, "doc-a", resp.Results()[0].Document().ID())
}

func TestPlanTermQueryCarriesInjectedTerms(t *testing.T) {
	trigger, err := ontology.NewTrigger("t1", "nostr", ontology.ActionInjectTerms, 1)
	require.NoError(t, err)
	trigger = trigger.WithInjectedTerms("relay", "websocket")

	plan := ontology.NewExpander(ontology.EmptySnapshot()).Expand("nostr clients")
	plan = ontology.ApplyTriggers(plan, "nostr clients", []ontology.Trigger{trigger})

	query := planTermQuery(plan)
	terms := map[string]float64{}
	for _, wt := range query.Terms() {
		terms[wt.Term()] = wt.Weight()
	}
	assert.Equal(t, 1.0, terms["nostr"])
	assert.Equal(t, 1.0, terms["clients"])
	assert.Equal(t, 1.0, terms["relay"])
	assert.Equal(t, 1.0, terms["websocket"])
}
