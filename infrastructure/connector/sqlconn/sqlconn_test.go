package sqlconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/storage"
)

// testDB opens a shared-cache in-memory sqlite database and returns a DSN
// that the runner's injected open can reuse. The returned handle keeps the
// database alive for the duration of the test.
func testDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE articles (
		id TEXT PRIMARY KEY,
		title TEXT,
		body TEXT,
		modified DATETIME
	)`)
	require.NoError(t, err)
	return db, dsn
}

func sqliteRunner(store document.Store, dsn string) *Runner {
	r := NewRunner(store)
	r.open = func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite3", dsn)
	}
	return r
}

func articleConfig() connector.SQLConfig {
	return connector.SQLConfig{
		Dialect:          connector.DialectMySQL,
		ConnectionString: "unused",
		MetadataQuery:    "SELECT id, modified FROM articles",
		DataQuery:        "SELECT id, title, body FROM articles WHERE id IN ({IDS})",
		TitleColumn:      "title",
		ContentColumn:    "body",
	}
}

func sqlConnector(t *testing.T, cfg connector.SQLConfig) connector.Connector {
	t.Helper()
	c, err := connector.New("articles", connector.TypeSQL, cfg, connector.URLTemplates{})
	require.NoError(t, err)
	return c
}

func insertArticle(t *testing.T, db *sql.DB, id, title, body string, modified time.Time) {
	t.Helper()
	_, err := db.Exec("INSERT OR REPLACE INTO articles (id, title, body, modified) VALUES (?, ?, ?, ?)", id, title, body, modified)
	require.NoError(t, err)
}

func TestRunSyncsAddedRows(t *testing.T) {
	db, dsn := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	insertArticle(t, db, "a1", "First", "first body", now)
	insertArticle(t, db, "a2", "Second", "second body", now)

	store := newMemoryStore()
	runner := sqliteRunner(store, dsn)
	c := sqlConnector(t, articleConfig())

	counters, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)

	assert.Equal(t, 2, counters.Added())
	doc, err := store.BySourceExternalID(context.Background(), c.ID().String(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "First", doc.Title())
	assert.Equal(t, "first body", doc.Content())
	assert.Equal(t, "first body", doc.Attributes().GetString("body"))
}

func TestRunIsIncremental(t *testing.T) {
	db, dsn := testDB(t)
	base := time.Now().UTC().Truncate(time.Second)
	insertArticle(t, db, "a1", "First", "first body", base)
	insertArticle(t, db, "a2", "Second", "second body", base)

	store := newMemoryStore()
	runner := sqliteRunner(store, dsn)
	c := sqlConnector(t, articleConfig())

	_, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	firstUpserts := store.upserts

	// Nothing changed: the second run must not touch the index.
	counters, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	assert.True(t, counters.Added() == 0 && counters.Updated() == 0 && counters.Removed() == 0)
	assert.Equal(t, firstUpserts, store.upserts)

	// Touching one row refetches only that row.
	insertArticle(t, db, "a2", "Second revised", "revised body", base.Add(time.Hour))
	counters, err = runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	assert.Equal(t, 0, counters.Added())
	assert.Equal(t, 1, counters.Updated())

	doc, err := store.BySourceExternalID(context.Background(), c.ID().String(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "Second revised", doc.Title())
}

func TestRunSweepsRemovedRows(t *testing.T) {
	db, dsn := testDB(t)
	now := time.Now().UTC().Truncate(time.Second)
	insertArticle(t, db, "a1", "First", "first body", now)
	insertArticle(t, db, "a2", "Second", "second body", now)

	store := newMemoryStore()
	runner := sqliteRunner(store, dsn)
	c := sqlConnector(t, articleConfig())

	_, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM articles WHERE id = ?", "a2")
	require.NoError(t, err)

	counters, err := runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)
	assert.Equal(t, 1, counters.Removed())

	_, err = store.BySourceExternalID(context.Background(), c.ID().String(), "a2")
	assert.Error(t, err)
	_, err = store.BySourceExternalID(context.Background(), c.ID().String(), "a1")
	assert.NoError(t, err)
}

func TestRunResolvesItemURLs(t *testing.T) {
	db, dsn := testDB(t)
	insertArticle(t, db, "a1", "First", "first body", time.Now().UTC().Truncate(time.Second))

	store := newMemoryStore()
	runner := sqliteRunner(store, dsn)

	templates := connector.NewURLTemplates("https://portal.example.com", "/articles/{id}", "", "")
	c, err := connector.New("articles", connector.TypeSQL, articleConfig(), templates)
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), c, &nopSink{})
	require.NoError(t, err)

	doc, err := store.BySourceExternalID(context.Background(), c.ID().String(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com/articles/a1", doc.URL())
}

func TestFetchPermissionGroups(t *testing.T) {
	db, dsn := testDB(t)
	_, err := db.Exec(`CREATE TABLE grants (username TEXT, grp TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO grants VALUES ('alice', 'editors'), ('alice', 'staff'), ('bob', 'staff')`)
	require.NoError(t, err)

	cfg := articleConfig()
	cfg.PermissionQuery = "SELECT grp FROM grants WHERE username = {USER} ORDER BY grp"

	handle, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	defer func() { _ = handle.Close() }()

	groups, err := FetchPermissionGroups(context.Background(), handle, cfg, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"editors", "staff"}, groups)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1, $2, $3", placeholders(connector.DialectPostgres, 3))
	assert.Equal(t, "?, ?", placeholders(connector.DialectMySQL, 2))
}

type nopSink struct{}

func (nopSink) Log(string, string, map[string]any) {}
func (nopSink) SetCounters(connector.Counters)     {}

// memoryStore is an in-memory document.Store covering what the runner
// touches.
type memoryStore struct {
	mu      sync.Mutex
	docs    map[string]document.Document
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
