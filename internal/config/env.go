// Package config provides application configuration.
package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DatabaseURL is the database connection URL.
	// Env: DATABASE_URL
	// Default: sqlite:///{data_dir}/meridian.db
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// DataDir is the data directory path.
	// Env: DATA_DIR (default: ~/.meridian)
	DataDir string `envconfig:"DATA_DIR"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// EmbeddingModel selects the embedding backend.
	// "local" runs the bundled MiniLM ONNX model; any other value is treated
	// as an OpenAI-compatible model name served from EMBEDDING_BASE_URL.
	// Env: EMBEDDING_MODEL (default: local)
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"local"`

	// EmbeddingBaseURL is the OpenAI-compatible embedding endpoint.
	// Env: EMBEDDING_BASE_URL
	EmbeddingBaseURL string `envconfig:"EMBEDDING_BASE_URL"`

	// EmbeddingAPIKey authenticates against the embedding endpoint.
	// Env: EMBEDDING_API_KEY
	EmbeddingAPIKey string `envconfig:"EMBEDDING_API_KEY"`

	// EmbeddingModelPath is the on-disk path of the local ONNX model.
	// Env: EMBEDDING_MODEL_PATH
	EmbeddingModelPath string `envconfig:"EMBEDDING_MODEL_PATH"`

	// EmbeddingDimension is the fixed embedding width for the deployment.
	// Env: EMBEDDING_DIMENSION (default: 384)
	EmbeddingDimension int `envconfig:"EMBEDDING_DIMENSION" default:"384"`

	// EmbeddingWorkers bounds the embedding worker pool (0 = CPU count).
	// Env: EMBEDDING_WORKERS (default: 0)
	EmbeddingWorkers int `envconfig:"EMBEDDING_WORKERS" default:"0"`

	// LLMBaseURL is the OpenAI-compatible endpoint used by /api/ask.
	// Env: LLM_BASE_URL
	LLMBaseURL string `envconfig:"LLM_BASE_URL"`

	// LLMModel is the completion model used by /api/ask.
	// Env: LLM_MODEL (default: gpt-4o-mini)
	LLMModel string `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`

	// LLMAPIKey authenticates against the LLM endpoint.
	// Env: LLM_API_KEY
	LLMAPIKey string `envconfig:"LLM_API_KEY"`

	// NostrRelays is a comma-separated list of relay websocket URLs.
	// Env: NOSTR_RELAYS
	NostrRelays string `envconfig:"NOSTR_RELAYS"`

	// VectorWeight is the vector share of the hybrid score.
	// Env: VECTOR_WEIGHT (default: 0.7)
	VectorWeight float64 `envconfig:"VECTOR_WEIGHT" default:"0.7"`

	// LexicalWeight is the lexical share of the hybrid score.
	// Env: LEXICAL_WEIGHT (default: 0.3)
	LexicalWeight float64 `envconfig:"LEXICAL_WEIGHT" default:"0.3"`

	// SearchTimeoutSeconds bounds lexical/vector search per request.
	// Env: SEARCH_TIMEOUT_SECONDS (default: 3)
	SearchTimeoutSeconds float64 `envconfig:"SEARCH_TIMEOUT_SECONDS" default:"3"`

	// WOTEnabled toggles the Web-of-Trust reranking plugin.
	// Env: WOT_ENABLED (default: false)
	WOTEnabled bool `envconfig:"WOT_ENABLED" default:"false"`

	// WOTProvider selects the trust score provider (external or local).
	// Env: WOT_PROVIDER (default: local)
	WOTProvider string `envconfig:"WOT_PROVIDER" default:"local"`

	// WOTWeight scales the trust contribution to the final score.
	// Env: WOT_WEIGHT (default: 1.0)
	WOTWeight float64 `envconfig:"WOT_WEIGHT" default:"1.0"`

	// WOTCacheTTLSeconds is the trust score cache TTL.
	// Env: WOT_CACHE_TTL (default: 3600)
	WOTCacheTTLSeconds float64 `envconfig:"WOT_CACHE_TTL" default:"3600"`

	// WOTServiceURL is the external trust service base URL.
	// Env: WOT_SERVICE_URL
	WOTServiceURL string `envconfig:"WOT_SERVICE_URL"`

	// SpamFailThreshold is the number of failed checks that marks spam.
	// Env: SPAM_FAIL_THRESHOLD (default: 2)
	SpamFailThreshold int `envconfig:"SPAM_FAIL_THRESHOLD" default:"2"`

	// SpamLinkRatio is the maximum tolerated link-to-text ratio.
	// Env: SPAM_LINK_RATIO (default: 0.15)
	SpamLinkRatio float64 `envconfig:"SPAM_LINK_RATIO" default:"0.15"`

	// FRPEITimeoutMs is the default global deadline for federated retrieval.
	// Env: FRPEI_TIMEOUT_MS (default: 5000)
	FRPEITimeoutMs int `envconfig:"FRPEI_TIMEOUT_MS" default:"5000"`

	// FRPEICacheTTLSeconds is the federated result cache TTL.
	// Env: FRPEI_CACHE_TTL (default: 300)
	FRPEICacheTTLSeconds float64 `envconfig:"FRPEI_CACHE_TTL" default:"300"`

	// MetaSearchURL is the external meta-search provider endpoint.
	// Env: META_SEARCH_URL
	MetaSearchURL string `envconfig:"META_SEARCH_URL"`

	// TextExtractorURL is the external binary text extraction service.
	// Env: TEXT_EXTRACTOR_URL
	TextExtractorURL string `envconfig:"TEXT_EXTRACTOR_URL"`

	// SQLQueryTimeoutSeconds bounds SQL connector queries.
	// Env: SQL_QUERY_TIMEOUT_SECONDS (default: 60)
	SQLQueryTimeoutSeconds float64 `envconfig:"SQL_QUERY_TIMEOUT_SECONDS" default:"60"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize fills in derived defaults that envconfig cannot express.
func (c EnvConfig) Normalize() EnvConfig {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "sqlite:///" + c.DataDir + "/meridian.db"
	}
	if c.VectorWeight+c.LexicalWeight <= 0 {
		c.VectorWeight, c.LexicalWeight = 0.7, 0.3
	}
	return c
}

// ToAppConfig converts the environment configuration to an immutable AppConfig.
func (c EnvConfig) ToAppConfig() AppConfig {
	relays := []string{}
	for _, r := range strings.Split(c.NostrRelays, ",") {
		r = strings.TrimSpace(r)
		if r != "" {
			relays = append(relays, r)
		}
	}

	return AppConfig{
		host:             c.Host,
		port:             c.Port,
		databaseURL:      c.DatabaseURL,
		dataDir:          c.DataDir,
		logLevel:         c.LogLevel,
		logFormat:        parseLogFormat(c.LogFormat),
		embedding:        newEmbeddingConfig(c),
		llm:              newLLMConfig(c),
		relays:           relays,
		vectorWeight:     c.VectorWeight,
		lexicalWeight:    c.LexicalWeight,
		searchTimeout:    secondsToDuration(c.SearchTimeoutSeconds, 3*time.Second),
		wot:              newWOTConfig(c),
		spam:             newSpamConfig(c),
		frpei:            newFRPEIConfig(c),
		textExtractorURL: c.TextExtractorURL,
		sqlQueryTimeout:  secondsToDuration(c.SQLQueryTimeoutSeconds, 60*time.Second),
	}
}

func secondsToDuration(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}
