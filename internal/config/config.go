// Package config provides application configuration.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults shared across services.
const (
	DefaultSearchLimit       = 10
	DefaultVectorCandidates  = 50
	DefaultRelayRPS          = 10.0
	DefaultRelayBurst        = 50
	DefaultRelayQueryTimeout = 10 * time.Second
	DefaultWOTTimeout        = time.Second
	DefaultBatchPageSize     = 1000
	DefaultChunkSize         = 1200
	DefaultChunkOverlap      = 200
)

// LogFormat identifies a log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

func parseLogFormat(s string) LogFormat {
	if strings.EqualFold(s, string(LogFormatJSON)) {
		return LogFormatJSON
	}
	return LogFormatPretty
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	model     string
	baseURL   string
	apiKey    string
	modelPath string
	dimension int
	workers   int
}

func newEmbeddingConfig(c EnvConfig) EmbeddingConfig {
	return EmbeddingConfig{
		model:     c.EmbeddingModel,
		baseURL:   c.EmbeddingBaseURL,
		apiKey:    c.EmbeddingAPIKey,
		modelPath: c.EmbeddingModelPath,
		dimension: c.EmbeddingDimension,
		workers:   c.EmbeddingWorkers,
	}
}

// Model returns the embedding model selector.
func (e EmbeddingConfig) Model() string { return e.model }

// BaseURL returns the OpenAI-compatible embedding endpoint.
func (e EmbeddingConfig) BaseURL() string { return e.baseURL }

// APIKey returns the embedding endpoint API key.
func (e EmbeddingConfig) APIKey() string { return e.apiKey }

// ModelPath returns the local ONNX model path.
func (e EmbeddingConfig) ModelPath() string { return e.modelPath }

// Dimension returns the deployment-wide embedding width.
func (e EmbeddingConfig) Dimension() int {
	if e.dimension <= 0 {
		return 384
	}
	return e.dimension
}

// Workers returns the embedding worker pool size (0 = CPU count).
func (e EmbeddingConfig) Workers() int { return e.workers }

// IsLocal reports whether the bundled local model is selected.
func (e EmbeddingConfig) IsLocal() bool { return e.model == "" || e.model == "local" }

// LLMConfig holds completion endpoint settings for /api/ask.
type LLMConfig struct {
	baseURL string
	model   string
	apiKey  string
}

func newLLMConfig(c EnvConfig) LLMConfig {
	return LLMConfig{baseURL: c.LLMBaseURL, model: c.LLMModel, apiKey: c.LLMAPIKey}
}

// BaseURL returns the completion endpoint base URL.
func (l LLMConfig) BaseURL() string { return l.baseURL }

// Model returns the completion model name.
func (l LLMConfig) Model() string { return l.model }

// APIKey returns the completion endpoint API key.
func (l LLMConfig) APIKey() string { return l.apiKey }

// IsConfigured reports whether an LLM endpoint is usable.
func (l LLMConfig) IsConfigured() bool { return l.apiKey != "" || l.baseURL != "" }

// WOTConfig holds Web-of-Trust plugin settings.
type WOTConfig struct {
	enabled    bool
	provider   string
	weight     float64
	cacheTTL   time.Duration
	serviceURL string
}

func newWOTConfig(c EnvConfig) WOTConfig {
	return WOTConfig{
		enabled:    c.WOTEnabled,
		provider:   c.WOTProvider,
		weight:     c.WOTWeight,
		cacheTTL:   secondsToDuration(c.WOTCacheTTLSeconds, time.Hour),
		serviceURL: c.WOTServiceURL,
	}
}

// Enabled reports whether the WoT plugin is active.
func (w WOTConfig) Enabled() bool { return w.enabled }

// Provider returns the trust provider selector (external or local).
func (w WOTConfig) Provider() string { return w.provider }

// Weight returns the trust score weight.
func (w WOTConfig) Weight() float64 { return w.weight }

// CacheTTL returns the trust score cache TTL.
func (w WOTConfig) CacheTTL() time.Duration { return w.cacheTTL }

// ServiceURL returns the external trust service base URL.
func (w WOTConfig) ServiceURL() string { return w.serviceURL }

// SpamConfig holds spam filter tunables.
type SpamConfig struct {
	failThreshold int
	linkRatio     float64
}

func newSpamConfig(c EnvConfig) SpamConfig {
	return SpamConfig{failThreshold: c.SpamFailThreshold, linkRatio: c.SpamLinkRatio}
}

// FailThreshold returns the number of failed checks that marks spam.
func (s SpamConfig) FailThreshold() int {
	if s.failThreshold <= 0 {
		return 2
	}
	return s.failThreshold
}

// LinkRatio returns the maximum tolerated link-to-text ratio.
func (s SpamConfig) LinkRatio() float64 {
	if s.linkRatio <= 0 {
		return 0.15
	}
	return s.linkRatio
}

// FRPEIConfig holds federated retrieval settings.
type FRPEIConfig struct {
	timeout       time.Duration
	cacheTTL      time.Duration
	metaSearchURL string
}

func newFRPEIConfig(c EnvConfig) FRPEIConfig {
	timeout := 5 * time.Second
	if c.FRPEITimeoutMs > 0 {
		timeout = time.Duration(c.FRPEITimeoutMs) * time.Millisecond
	}
	return FRPEIConfig{
		timeout:       timeout,
		cacheTTL:      secondsToDuration(c.FRPEICacheTTLSeconds, 5*time.Minute),
		metaSearchURL: c.MetaSearchURL,
	}
}

// Timeout returns the default global deadline per federated request.
func (f FRPEIConfig) Timeout() time.Duration { return f.timeout }

// CacheTTL returns the federated result cache TTL.
func (f FRPEIConfig) CacheTTL() time.Duration { return f.cacheTTL }

// MetaSearchURL returns the external meta-search endpoint.
func (f FRPEIConfig) MetaSearchURL() string { return f.metaSearchURL }

// AppConfig is the immutable application configuration.
type AppConfig struct {
	host             string
	port             int
	databaseURL      string
	dataDir          string
	logLevel         string
	logFormat        LogFormat
	embedding        EmbeddingConfig
	llm              LLMConfig
	relays           []string
	vectorWeight     float64
	lexicalWeight    float64
	searchTimeout    time.Duration
	wot              WOTConfig
	spam             SpamConfig
	frpei            FRPEIConfig
	textExtractorURL string
	sqlQueryTimeout  time.Duration
}

// Host returns the bind host.
func (a AppConfig) Host() string { return a.host }

// Port returns the listen port.
func (a AppConfig) Port() int { return a.port }

// DatabaseURL returns the database connection URL.
func (a AppConfig) DatabaseURL() string { return a.databaseURL }

// DataDir returns the data directory.
func (a AppConfig) DataDir() string { return a.dataDir }

// LogLevel returns the log verbosity.
func (a AppConfig) LogLevel() string { return a.logLevel }

// LogFormat returns the log output format.
func (a AppConfig) LogFormat() LogFormat { return a.logFormat }

// Embedding returns the embedding backend settings.
func (a AppConfig) Embedding() EmbeddingConfig { return a.embedding }

// LLM returns the completion endpoint settings.
func (a AppConfig) LLM() LLMConfig { return a.llm }

// Relays returns the configured Nostr relay URLs.
func (a AppConfig) Relays() []string {
	out := make([]string, len(a.relays))
	copy(out, a.relays)
	return out
}

// VectorWeight returns the vector share of the hybrid score.
func (a AppConfig) VectorWeight() float64 { return a.vectorWeight }

// LexicalWeight returns the lexical share of the hybrid score.
func (a AppConfig) LexicalWeight() float64 { return a.lexicalWeight }

// SearchTimeout returns the per-request search deadline.
func (a AppConfig) SearchTimeout() time.Duration { return a.searchTimeout }

// WOT returns the Web-of-Trust plugin settings.
func (a AppConfig) WOT() WOTConfig { return a.wot }

// Spam returns the spam filter tunables.
func (a AppConfig) Spam() SpamConfig { return a.spam }

// FRPEI returns the federated retrieval settings.
func (a AppConfig) FRPEI() FRPEIConfig { return a.frpei }

// TextExtractorURL returns the external text extraction service URL.
func (a AppConfig) TextExtractorURL() string { return a.textExtractorURL }

// SQLQueryTimeout returns the SQL connector query deadline.
func (a AppConfig) SQLQueryTimeout() time.Duration { return a.sqlQueryTimeout }

// ListenAddr returns "host:port" for the HTTP server.
func (a AppConfig) ListenAddr() string {
	host := a.host
	if host == "" {
		host = "0.0.0.0"
	}
	port := a.port
	if port == 0 {
		port = 8080
	}
	return host + ":" + strconv.Itoa(port)
}

// AppConfigOption overrides a single AppConfig field.
type AppConfigOption func(*AppConfig)

// WithHost overrides the bind host.
func WithHost(host string) AppConfigOption {
	return func(a *AppConfig) { a.host = host }
}

// WithPort overrides the listen port.
func WithPort(port int) AppConfigOption {
	return func(a *AppConfig) { a.port = port }
}

// WithLogLevel overrides the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(a *AppConfig) { a.logLevel = level }
}

// WithLogFormat overrides the log output format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(a *AppConfig) { a.logFormat = format }
}

// Apply returns a copy of the config with the given overrides applied.
// Used for command line flags, which take precedence over env vars.
func (a AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

// NewAppConfig builds an AppConfig with library defaults. Primarily for tests.
func NewAppConfig() AppConfig {
	env := EnvConfig{
		Host:               "127.0.0.1",
		Port:               8080,
		LogLevel:           "INFO",
		LogFormat:          "pretty",
		EmbeddingModel:     "local",
		EmbeddingDimension: 384,
		LLMModel:           "gpt-4o-mini",
		VectorWeight:       0.7,
		LexicalWeight:      0.3,
		SpamFailThreshold:  2,
		SpamLinkRatio:      0.15,
		FRPEITimeoutMs:     5000,
		WOTProvider:        "local",
		WOTWeight:          1.0,
	}
	return env.Normalize().ToAppConfig()
}

// NewAppConfigWithOptions builds a default AppConfig with the given overrides
// applied. Primarily for tests.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	return NewAppConfig().Apply(opts...)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".meridian"
	}
	return filepath.Join(home, ".meridian")
}
