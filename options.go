package meridian

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridiansearch/meridian/application/service"
	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/frpei"
	"github.com/meridiansearch/meridian/domain/search"
	"github.com/meridiansearch/meridian/domain/wot"
	"github.com/meridiansearch/meridian/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	app           config.AppConfig
	logger        *slog.Logger
	embedder      search.Embedder
	chat          service.ChatCompleter
	wotProvider   wot.Provider
	wotFilterMode wot.FilterMode
	providers     []frpei.Provider
	runners       map[connector.Type]connector.Runner
	registry      *prometheus.Registry
	apiKeys       []string
	closers       []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		app:           config.NewAppConfig(),
		wotFilterMode: wot.ModeOpen,
		runners:       map[connector.Type]connector.Runner{},
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig sets the application configuration. Use config.LoadConfig to
// build one from the environment.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithEmbedder sets a custom embedding backend, bypassing the
// EMBEDDING_MODEL selection.
func WithEmbedder(e search.Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithChatCompleter sets a custom completion endpoint for /api/ask,
// bypassing the LLM_* configuration.
func WithChatCompleter(chat service.ChatCompleter) Option {
	return func(c *clientConfig) {
		c.chat = chat
	}
}

// WithWoTProvider sets a custom web-of-trust scoring backend.
func WithWoTProvider(p wot.Provider) Option {
	return func(c *clientConfig) {
		c.wotProvider = p
	}
}

// WithWoTFilterMode sets the trust filtering mode applied to authored
// results. Defaults to open (amplify only, drop nothing).
func WithWoTFilterMode(mode wot.FilterMode) Option {
	return func(c *clientConfig) {
		c.wotFilterMode = mode
	}
}

// WithFederatedProvider registers an additional federated retrieval
// provider. The provider is breaker-wrapped during construction.
func WithFederatedProvider(p frpei.Provider) Option {
	return func(c *clientConfig) {
		c.providers = append(c.providers, p)
	}
}

// WithRunner registers or replaces the runner for a connector type.
func WithRunner(kind connector.Type, runner connector.Runner) Option {
	return func(c *clientConfig) {
		c.runners[kind] = runner
	}
}

// WithRegistry sets the Prometheus registry for service metrics. Defaults
// to a private registry exposed at /api/frpei/metrics.
func WithRegistry(r *prometheus.Registry) Option {
	return func(c *clientConfig) {
		c.registry = r
	}
}

// WithAPIKeys sets the API keys for HTTP write protection. Without keys,
// mutating endpoints are open.
func WithAPIKeys(keys ...string) Option {
	return func(c *clientConfig) {
		c.apiKeys = keys
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, closer)
	}
}
