package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/infrastructure/api"
	"github.com/meridiansearch/meridian/internal/config"
	"github.com/meridiansearch/meridian/internal/log"
)

func serveCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
		apiKeys []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                         Server host to bind to (default: 0.0.0.0)
  PORT                         Server port to listen on (default: 8080)
  DATABASE_URL                 Database URL (postgres:// or sqlite path)
  DATA_DIR                     Data directory (default: ~/.meridian)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)

  EMBEDDING_*                  Embedding backend configuration
    MODEL                      "local", "hash", or a remote model name
    BASE_URL                   Remote endpoint base URL
    API_KEY                    Remote endpoint API key
    MODEL_PATH                 Local ONNX model directory
    DIMENSION                  Vector dimension (default: 384)

  LLM_BASE_URL / LLM_MODEL / LLM_API_KEY
                               Completion endpoint for the ask service

  NOSTR_RELAYS                 Comma-separated relay URLs
  VECTOR_WEIGHT                Vector share of the hybrid score (default: 0.7)
  LEXICAL_WEIGHT               Lexical share of the hybrid score (default: 0.3)
  SEARCH_TIMEOUT_SECONDS       Per-request search deadline (default: 3)

  WOT_ENABLED / WOT_PROVIDER / WOT_WEIGHT / WOT_SERVICE_URL
                               Web-of-Trust scoring configuration

  FRPEI_TIMEOUT_MS             Federated retrieval deadline (default: 5000)
  FRPEI_CACHE_TTL              Federated result cache TTL in seconds
  META_SEARCH_URL              External metasearch provider endpoint
  TEXT_EXTRACTOR_URL           External text extraction service`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(envFile, host, port, apiKeys)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")
	cmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "API key accepted for write endpoints (repeatable)")

	return cmd
}

func runServe(envFile, host string, port int, apiKeys []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	// Flags take precedence over env vars.
	cfg = applyServeOverrides(cfg, host, port)

	logger := log.NewLogger(cfg)
	slogger := logger.Slog()

	opts := []meridian.Option{
		meridian.WithConfig(cfg),
		meridian.WithLogger(slogger),
	}
	if len(apiKeys) > 0 {
		opts = append(opts, meridian.WithAPIKeys(apiKeys...))
	}

	slogger.Info("starting meridian",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir()),
		slog.String("addr", cfg.ListenAddr()))

	client, err := meridian.New(opts...)
	if err != nil {
		return fmt.Errorf("create meridian client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			slogger.Error("failed to close meridian client", slog.Any("error", err))
		}
	}()

	apiServer := api.NewAPIServer(client)
	router := apiServer.Router()
	apiServer.MountRoutes()

	// Root endpoint with API info.
	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"name":"meridian","version":"%s"}`, version)
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slogger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			slogger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := apiServer.ListenAndServe(cfg.ListenAddr()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// applyServeOverrides applies command line flag overrides to the config.
func applyServeOverrides(cfg config.AppConfig, host string, port int) config.AppConfig {
	var opts []config.AppConfigOption

	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}

	return cfg.Apply(opts...)
}
