package connector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian/domain/connector"
)

func TestParseConfigSQL(t *testing.T) {
	cfg, err := connector.ParseConfig(connector.TypeSQL, map[string]any{
		"dialect":           "postgres",
		"connection_string": "postgres://user:pass@db/kb",
		"metadata_query":    "SELECT id, modified_at FROM kb",
		"data_query":        "SELECT * FROM kb WHERE id IN ({IDS})",
		"content_column":    "body",
	})
	require.NoError(t, err)

	sql, ok := cfg.(connector.SQLConfig)
	require.True(t, ok)
	assert.Equal(t, connector.TypeSQL, sql.Kind())
	assert.NoError(t, sql.Validate())
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	_, err := connector.ParseConfig(connector.TypeFolder, map[string]any{
		"path":     "/data",
		"typo_key": true,
	})
	require.Error(t, err)
}

func TestParseConfigUnknownType(t *testing.T) {
	_, err := connector.ParseConfig(connector.Type("ftp"), map[string]any{})
	require.Error(t, err)
}

func TestSQLConfigValidate(t *testing.T) {
	base := connector.SQLConfig{
		Dialect:          "mysql",
		ConnectionString: "user:pass@tcp(db)/kb",
		MetadataQuery:    "SELECT id, modified_at FROM kb",
		DataQuery:        "SELECT * FROM kb WHERE id IN ({IDS})",
		ContentColumn:    "body",
	}
	assert.NoError(t, base.Validate())

	noIDs := base
	noIDs.DataQuery = "SELECT * FROM kb"
	assert.ErrorContains(t, noIDs.Validate(), "{IDS}")

	badDialect := base
	badDialect.Dialect = "sqlite"
	assert.ErrorContains(t, badDialect.Validate(), "dialect")

	badPermission := base
	badPermission.PermissionQuery = "SELECT grp FROM acl"
	assert.ErrorContains(t, badPermission.Validate(), "{USER}")
}

func TestWebConfigValidate(t *testing.T) {
	valid := connector.WebConfig{
		SeedURLs:        []string{"https://docs.example"},
		MaxDepth:        3,
		MaxPages:        100,
		IncludePatterns: []string{`^/docs/`},
	}
	assert.NoError(t, valid.Validate())

	assert.Error(t, connector.WebConfig{}.Validate())
	assert.Error(t, connector.WebConfig{
		SeedURLs:        []string{"https://docs.example"},
		ExcludePatterns: []string{`([`},
	}.Validate())
}

func TestNostrConfigValidate(t *testing.T) {
	valid := connector.NostrConfig{Strategy: connector.StrategyRecentQuality}
	assert.NoError(t, valid.Validate())

	assert.ErrorContains(t, connector.NostrConfig{Strategy: "latest"}.Validate(), "strategy")
}

func TestRSSConfigValidate(t *testing.T) {
	assert.NoError(t, connector.RSSConfig{FeedURL: "https://feed.example/rss"}.Validate())
	assert.Error(t, connector.RSSConfig{}.Validate())
	assert.ErrorContains(t, connector.RSSConfig{
		FeedURL:      "https://feed.example/rss",
		ChunkSize:    100,
		ChunkOverlap: 100,
	}.Validate(), "chunk_overlap")
}

func TestNewConnectorValidates(t *testing.T) {
	cfg := connector.FolderConfig{Path: "/data", Extensions: []string{".md"}}

	c, err := connector.New("docs", connector.TypeFolder, cfg, connector.URLTemplates{})
	require.NoError(t, err)
	assert.True(t, c.IsActive())
	assert.NotEqual(t, "", c.ID().String())

	_, err = connector.New("", connector.TypeFolder, cfg, connector.URLTemplates{})
	assert.Error(t, err)

	_, err = connector.New("docs", connector.TypeWeb, cfg, connector.URLTemplates{})
	assert.ErrorContains(t, err, "does not match")

	_, err = connector.New("docs", connector.TypeFolder, connector.FolderConfig{}, connector.URLTemplates{})
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	c, err := connector.New("docs", connector.TypeFolder,
		connector.FolderConfig{Path: "/data", Extensions: []string{".md"}}, connector.URLTemplates{})
	require.NoError(t, err)

	r := connector.NewRun(c.ID())
	assert.Equal(t, connector.RunRunning, r.Status())
	assert.True(t, r.Running())

	r = r.WithLogEntry(connector.NewLogEntry(r.StartedAt(), "info", "scan started", map[string]any{"path": "/data"}))
	done := r.Complete(connector.NewCounters(5, 2, 1))

	assert.Equal(t, connector.RunCompleted, done.Status())
	assert.False(t, done.Running())
	assert.Equal(t, 5, done.Counters().Added())
	assert.False(t, done.CompletedAt().IsZero())
	assert.Len(t, done.Log(), 1)

	failed := r.Fail(assert.AnError)
	assert.Equal(t, connector.RunFailed, failed.Status())
	assert.NotEmpty(t, failed.ErrorMessage())

	stopped := r.Stop()
	assert.Equal(t, connector.RunStopped, stopped.Status())
}
