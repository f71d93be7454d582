// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/laguz/internal/api"
	"github.com/starford/laguz/internal/indexer"
	"github.com/starford/laguz/internal/mcpserver"
	"github.com/starford/laguz/internal/query"
	"github.com/starford/laguz/internal/scoring"
	"github.com/starford/laguz/internal/search"
	"github.com/starford/laguz/internal/sse"
	"github.com/starford/laguz/internal/storage"
	"github.com/starford/laguz/internal/store"
	"github.com/starford/laguz/internal/tokenizer"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	if app.mcp {
		// stdout carries the MCP protocol; logs go to stderr.
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Ensure vault directory exists.
	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return fmt.Errorf("create vault dir: %w", err)
	}

	// Vault file system.
	provider, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Document store.
	st, err := store.Open(cfg.SQLite.Path, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	// Tokenizers: a rich pipeline for content, a coarse one for filenames.
	content, err := tokenizer.New(tokenizer.DefaultContentConfig())
	if err != nil {
		return fmt.Errorf("init content tokenizer: %w", err)
	}
	filename, err := tokenizer.New(tokenizer.DefaultFilenameConfig())
	if err != nil {
		return fmt.Errorf("init filename tokenizer: %w", err)
	}

	// Indexer.
	ixCfg := indexer.DefaultConfig()
	ixCfg.ExcludedPrefixes = cfg.Vault.ExcludedPrefixes
	if cfg.Vault.CommandPrefix != "" {
		ixCfg.CommandPrefix = cfg.Vault.CommandPrefix
	}
	ix := indexer.New(st, provider, content, filename, ixCfg, logger)

	// Scoring and query engine with configured overrides.
	scorer := scoring.New(st, scoringConfig(cfg), logger)
	evaluator := query.NewEvaluator(st, scorer, content, filename, queryConfig(cfg), logger)

	// Search façade.
	svc := search.NewService(st, ix, evaluator, search.Config{
		ExcludedPrefixes: cfg.Vault.ExcludedPrefixes,
	}, logger)

	if err := svc.Initialize(ctx); err != nil {
		logger.Warn("initial index build failed", slog.String("error", err.Error()))
	}

	// SSE broker, fed by indexer events.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	ix.OnEvent(broker.PublishDocumentEvent)

	g, gCtx := errgroup.WithContext(ctx)

	// Indexer queue consumer.
	g.Go(func() error {
		if err := ix.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("indexer error: %w", err)
		}
		return nil
	})

	// File watcher feeding the queue.
	g.Go(func() error {
		if err := ix.Watch(gCtx, cfg.Vault.Path); err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if app.mcp {
		return runMCP(gCtx, g, svc, provider, logger)
	}

	// Build API router.
	apiRouter := api.NewRouter(svc, provider, cfg.Auth.AuthEnabled(), cfg.Auth.Token, http.HandlerFunc(broker.ServeHTTP))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	// Start HTTP server.
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// runMCP serves MCP tools over stdio instead of the HTTP API.
func runMCP(ctx context.Context, g *errgroup.Group, svc *search.Service, provider storage.Provider, logger *slog.Logger) error {
	logger.Info("MCP server starting on stdio")
	g.Go(func() error {
		srv := mcpserver.New(svc, provider)
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("MCP server error: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// scoringConfig applies configured overrides to the scoring defaults.
func scoringConfig(cfg *Config) scoring.Config {
	out := scoring.DefaultConfig()
	if cfg.Search.K1 > 0 {
		out.K1 = cfg.Search.K1
	}
	if cfg.Search.B > 0 {
		out.B = cfg.Search.B
	}
	if cfg.Search.FilenameBoost > 0 {
		out.FilenameBoost = cfg.Search.FilenameBoost
	}
	if cfg.Search.ProximityThreshold > 0 {
		out.ProximityThreshold = cfg.Search.ProximityThreshold
	}
	return out
}

// queryConfig applies configured overrides to the query engine defaults.
func queryConfig(cfg *Config) query.Config {
	out := query.DefaultConfig()
	if cfg.Search.SimilarityThreshold > 0 {
		out.SimilarityThreshold = cfg.Search.SimilarityThreshold
	}
	if cfg.Search.TermMatchThreshold > 0 {
		out.TermMatchThreshold = cfg.Search.TermMatchThreshold
	}
	return out
}
