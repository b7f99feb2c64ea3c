package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	cfg := NewAppConfig()

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
	assert.Equal(t, 0.7, cfg.VectorWeight())
	assert.Equal(t, 0.3, cfg.LexicalWeight())
	assert.Equal(t, 384, cfg.Embedding().Dimension())
	assert.True(t, cfg.Embedding().IsLocal())
	assert.Equal(t, 2, cfg.Spam().FailThreshold())
	assert.InDelta(t, 0.15, cfg.Spam().LinkRatio(), 1e-9)
	assert.Equal(t, 5*time.Second, cfg.FRPEI().Timeout())
}

func TestEnvConfig_Normalize_DefaultDatabaseURL(t *testing.T) {
	env := EnvConfig{DataDir: "/tmp/meridian-test"}
	norm := env.Normalize()

	assert.Equal(t, "sqlite:////tmp/meridian-test/meridian.db", norm.DatabaseURL)
}

func TestEnvConfig_Normalize_WeightFallback(t *testing.T) {
	env := EnvConfig{VectorWeight: 0, LexicalWeight: 0}
	norm := env.Normalize()

	assert.Equal(t, 0.7, norm.VectorWeight)
	assert.Equal(t, 0.3, norm.LexicalWeight)
}

func TestToAppConfig_RelayParsing(t *testing.T) {
	env := EnvConfig{NostrRelays: "wss://r1.example, wss://r2.example ,,"}
	cfg := env.Normalize().ToAppConfig()

	require.Len(t, cfg.Relays(), 2)
	assert.Equal(t, []string{"wss://r1.example", "wss://r2.example"}, cfg.Relays())
}

func TestToAppConfig_WOT(t *testing.T) {
	env := EnvConfig{
		WOTEnabled:         true,
		WOTProvider:        "external",
		WOTWeight:          0.5,
		WOTCacheTTLSeconds: 60,
		WOTServiceURL:      "https://wot.example",
	}
	cfg := env.Normalize().ToAppConfig()

	assert.True(t, cfg.WOT().Enabled())
	assert.Equal(t, "external", cfg.WOT().Provider())
	assert.Equal(t, 0.5, cfg.WOT().Weight())
	assert.Equal(t, time.Minute, cfg.WOT().CacheTTL())
	assert.Equal(t, "https://wot.example", cfg.WOT().ServiceURL())
}

func TestParseLogFormat(t *testing.T) {
	assert.Equal(t, LogFormatJSON, parseLogFormat("json"))
	assert.Equal(t, LogFormatJSON, parseLogFormat("JSON"))
	assert.Equal(t, LogFormatPretty, parseLogFormat("pretty"))
	assert.Equal(t, LogFormatPretty, parseLogFormat(""))
	assert.Equal(t, LogFormatPretty, parseLogFormat("garbage"))
}
