package meridian_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/document"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/internal/config"
)

// testConfig builds a config backed by an in-memory SQLite database and
// the deterministic hash embedder, so no model files or network are
// needed.
func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	return config.EnvConfig{
		DatabaseURL:        "sqlite:///:memory:",
		DataDir:            t.TempDir(),
		LogLevel:           "ERROR",
		LogFormat:          "json",
		EmbeddingModel:     "hash",
		EmbeddingDimension: 64,
		VectorWeight:       0.7,
		LexicalWeight:      0.3,
		LLMModel:           "gpt-4o-mini",
		WOTProvider:        "local",
		WOTWeight:          1.0,
	}.Normalize().ToAppConfig()
}

func TestClientIndexAndSearch(t *testing.T) {
	client, err := meridian.New(meridian.WithConfig(testConfig(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()

	doc := document.New("", "", "Lightning privacy", "Lightning privacy matters for payments", document.Type("nostr:note"))
	doc, outcome, err := client.Documents().Upsert(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, document.OutcomeCreated, outcome)

	// Index synchronously instead of waiting on the background loop.
	require.NoError(t, client.Enrichment.Process(ctx, doc.ID()))

	for _, mode := range []search.Mode{search.ModeHybrid, search.ModeText} {
		resp, err := client.Search.Search(ctx, search.NewRequest("privacy", mode, 10))
		require.NoError(t, err, "mode %s", mode)
		require.NotEmpty(t, resp.Results(), "mode %s", mode)
		assert.Equal(t, doc.ID(), resp.Results()[0].Document().ID(), "mode %s", mode)
	}
}

func TestClientServicesWired(t *testing.T) {
	client, err := meridian.New(meridian.WithConfig(testConfig(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.NotNil(t, client.Search)
	assert.NotNil(t, client.Ask)
	assert.NotNil(t, client.Connectors)
	assert.NotNil(t, client.Scheduler)
	assert.NotNil(t, client.Enrichment)
	assert.NotNil(t, client.Federation)
	assert.NotNil(t, client.Webhooks)
	assert.NotNil(t, client.Health)

	report := client.Health.Check(context.Background())
	assert.Equal(t, service.StatusOK, report.Status)
}

func TestClientCloseTwice(t *testing.T) {
	client, err := meridian.New(meridian.WithConfig(testConfig(t)))
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Close(), service.ErrClientClosed)
}

func TestNewWithoutDatabase(t *testing.T) {
	_, err := meridian.New(meridian.WithConfig(config.AppConfig{}))
	assert.ErrorIs(t, err, meridian.ErrNoDatabase)
}
