package webspider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/storage"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases scheme and host", in: "HTTPS://Example.COM/Path", want: "https://example.com/Path"},
		{name: "drops fragment", in: "https://example.com/page#section", want: "https://example.com/page"},
		{name: "trims trailing slash", in: "https://example.com/docs/", want: "https://example.com/docs"},
		{name: "keeps root slash", in: "https://example.com/", want: "https://example.com/"},
		{name: "keeps query", in: "https://example.com/search?q=go", want: "https://example.com/search?q=go"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects non-http schemes", func(t *testing.T) {
		_, _, err := canonicalize("ftp://example.com/file")
		assert.Error(t, err)
	})
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><title>Release Notes</title><script>var x = 1;</script></head>
<body>
<nav><a href="/ignored-by-text">Menu</a></nav>
<article><h1>Version 2.0</h1><p>Faster indexing and better ranking.</p></article>
<a href="/docs/setup">Setup</a>
<a href="/docs/setup#install">Setup again</a>
<a href="mailto:team@example.com">Mail</a>
<a href="https://other.example.org/page/">External</a>
</body></html>`

	title, text, links := extractHTML(page, "https://example.com/releases")

	assert.Equal(t, "Release Notes", title)
	assert.Contains(t, text, "Version 2.0")
	assert.Contains(t, text, "Faster indexing and better ranking.")
	assert.NotContains(t, text, "var x")
	assert.NotContains(t, text, "Menu")

	// The fragment variant collapses into the same canonical link; mailto
	// is dropped; nav subtrees are skipped entirely, links included.
	assert.Equal(t, []string{
		"https://example.com/docs/setup",
		"https://other.example.org/page",
	}, links)
}

func TestExtractHTMLTitleFallback(t *testing.T) {
	title, _, _ := extractHTML("<html><body><p>First words become the title here</p></body></html>", "https://example.com/")
	assert.Equal(t, "First words become the title here", title)
}

func TestRobotsAllowed(t *testing.T) {
	rules := parseRobots(`# crawl policy
User-agent: *
Disallow: /private/
Allow: /private/press/
Disallow: /tmp

User-agent: otherbot
Disallow: /
`)

	assert.True(t, rules.allowed("/"))
	assert.True(t, rules.allowed("/docs"))
	assert.False(t, rules.allowed("/private/letters"))
	assert.True(t, rules.allowed("/private/press/2024"))
	assert.False(t, rules.allowed("/tmp/scratch"))
}

func TestParseRobotsNamedAgentGroup(t *testing.T) {
	rules := parseRobots(`User-agent: meridian-spider
Disallow: /no-spider/

User-agent: *
Disallow: /no-bots/
`)

	assert.False(t, rules.allowed("/no-spider/page"))
	assert.False(t, rules.allowed("/no-bots/page"))
	assert.True(t, rules.allowed("/open"))
}

func TestSpiderCrawlIndexesReachablePages(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/robots.txt":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /secret\n"))
		case "/":
			_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
<p>Welcome to the crawl fixture.</p>
<a href="/about">About</a>
<a href="/secret/page">Secret</a>
<a href="https://elsewhere.invalid/offsite">Offsite</a>
</body></html>`))
		case "/about":
			_, _ = w.Write([]byte(`<html><head><title>About</title></head><body><p>All about this site.</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := newMemoryStore()
	runner := NewRunner(store, server.Client())

	c := webConnector(t, connector.WebConfig{
		SeedURLs:       []string{server.URL + "/"},
		MaxDepth:       2,
		MaxPages:       10,
		SameDomainOnly: true,
		RequestsPerSec: 1000,
	})

	counters, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)

	assert.Equal(t, 2, counters.Added())
	docs := store.bySource(c.ID().String())
	require.Len(t, docs, 2)
	titles := map[string]bool{}
	for _, d := range docs {
		titles[d.Title()] = true
	}
	assert.True(t, titles["Home"])
	assert.True(t, titles["About"])
}

func TestSpiderSkipsUnchangedPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Stable</title></head><body><p>Never changes.</p></body></html>`))
	}))
	defer server.Close()

	store := newMemoryStore()
	runner := NewRunner(store, server.Client())
	c := webConnector(t, connector.WebConfig{
		SeedURLs:       []string{server.URL + "/"},
		MaxDepth:       0,
		MaxPages:       1,
		RequestsPerSec: 1000,
	})

	first, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Added())

	second, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Added())
	assert.Equal(t, 0, second.Updated())
	assert.Equal(t, 1, store.upserts)
}

func TestSpiderRespectsMaxPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a><a href="/p4">4</a>
</body></html>`))
	}))
	defer server.Close()

	store := newMemoryStore()
	runner := NewRunner(store, server.Client())
	c := webConnector(t, connector.WebConfig{
		SeedURLs:       []string{server.URL + "/"},
		MaxDepth:       3,
		MaxPages:       3,
		RequestsPerSec: 1000,
	})

	counters, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	assert.Equal(t, 3, counters.Added())
}

func webConnector(t *testing.T, cfg connector.WebConfig) connector.Connector {
	t.Helper()
	c, err := connector.New("fixture", connector.TypeWeb, cfg, connector.URLTemplates{})
	require.NoError(t, err)
	return c
}

type nopSink struct{}

func (nopSink) Log(string, string, map[string]any) {}
func (nopSink) SetCounters(connector.Counters)     {}

// memoryStore is an in-memory document.Store covering what the spider
// touches.
type memoryStore struct {
	mu      sync.Mutex
	docs    map[string]document.Document // sourceID \x00 externalID
	upserts int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{docs: map[string]document.Document{}}
}

func (s *memoryStore) key(sourceID, externalID string) string {
	return sourceID + "\x00" + externalID
}

func (s *memoryStore) Upsert(_ context.Context, doc document.Document) (document.Document, document.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	key := s.key(doc.SourceID(), doc.ExternalID())
	outcome := document.OutcomeCreated
	if _, exists := s.docs[key]; exists {
		outcome = document.OutcomeUpdated
	}
	s.docs[key] = doc
	return doc, outcome, nil
}

func (s *memoryStore) ByID(context.Context, string) (document.Document, error) {
	return document.Document{}, errors.New("not implemented")
}

func (s *memoryStore) ByIDs(context.Context, []string) ([]document.Document, error) {
	return nil, errors.New("not implemented")
}

func (s *memoryStore) BySourceExternalID(_ context.Context, sourceID, externalID string) (document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[s.key(sourceID, externalID)]
	if !ok {
		return document.Document{}, errors.New("document not found")
	}
	return doc, nil
}

func (s *memoryStore) Find(context.Context, ...storage.Option) ([]document.Document, error) {
	return nil, errors.New("not implemented")
}

func (s *memoryStore) Count(context.Context, ...storage.Option) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *memoryStore) Delete(context.Context, string) error {
	return errors.New("not implemented")
}

func (s *memoryStore) DeleteBySourceKeeping(_ context.Context, sourceID string, keep []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := map[string]struct{}{}
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	var removed int64
	for key, doc := range s.docs {
		if doc.SourceID() != sourceID {
			continue
		}
		if _, ok := kept[doc.ExternalID()]; !ok {
			delete(s.docs, key)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryStore) ListForSource(_ context.Context, sourceID string) ([]document.SourceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []document.SourceEntry
	for _, doc := range s.docs {
		if doc.SourceID() == sourceID {
			entries = append(entries, document.NewSourceEntry(doc.ExternalID(), doc.LastModified()))
		}
	}
	return entries, nil
}

func (s *memoryStore) bySource(sourceID string) []document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []document.Document
	for _, doc := range s.docs {
		if doc.SourceID() == sourceID {
			out = append(out, doc)
		}
	}
	return out
}
