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
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jdt/internal/api"
	"github.com/starford/jdt/internal/exceptions"
	"github.com/starford/jdt/internal/format"
	"github.com/starford/jdt/internal/github"
	"github.com/starford/jdt/internal/index"
	"github.com/starford/jdt/internal/journalservice"
	"github.com/starford/jdt/internal/mcpserver"
	"github.com/starford/jdt/internal/sse"
	"github.com/starford/jdt/internal/storage"
)

// components are the long-lived pieces shared by every command.
type components struct {
	store *exceptions.Store
	db    *index.DB
	svc   *journalservice.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		// Initialize structured JSON logger.
		app.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: app.config.App.LogLevel,
		}))
	}
	slog.SetDefault(app.logger)
	return app, nil
}

// build opens the exception store and the index, runs the initial sync and
// wires the journal service. pub may be nil.
func build(ctx context.Context, cfg *Config, logger *slog.Logger, pub journalservice.Publisher) (*components, error) {
	files, err := storage.NewFS(cfg.Exceptions.Dir())
	if err != nil {
		return nil, fmt.Errorf("init exceptions storage: %w", err)
	}
	store := exceptions.NewStore(files, cfg.Exceptions.File(),
		exceptions.WithOperator(cfg.Journal.Operator))
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("init exceptions store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	// Run initial sync.
	if err := index.SyncExceptions(ctx, db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	client := github.NewClient(github.Options{
		BaseURL:     cfg.GitHub.BaseURL,
		Token:       cfg.GitHub.Token,
		PageSize:    cfg.GitHub.PageSize,
		PageTimeout: cfg.GitHub.PageTimeout,
		Logger:      logger,
	})

	svcOpts := []journalservice.Option{
		journalservice.WithIndex(db),
		journalservice.WithLogger(logger),
		journalservice.WithDefaults(journalservice.Defaults{
			RepoURL: cfg.Journal.RepoURL,
			Branch:  cfg.Journal.Branch,
			Since:   cfg.Journal.Since,
		}),
	}
	if pub != nil {
		svcOpts = append(svcOpts, journalservice.WithPublisher(pub))
	}

	return &components{
		store: store,
		db:    db,
		svc:   journalservice.NewService(client, store, svcOpts...),
	}, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("exceptions_path", cfg.Exceptions.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("repo_url", cfg.Journal.RepoURL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := build(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer c.db.Close()

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := c.db.Count(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"index unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","subscribers":%d}`, broker.ClientCount())
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reindex and notify pages when the exceptions file changes behind our back.
	if cfg.Exceptions.Watch {
		storePath, err := c.store.Path()
		if err != nil {
			return fmt.Errorf("resolve exceptions path: %w", err)
		}
		g.Go(func() error {
			return index.Watch(gCtx, storePath, logger, func() {
				if err := index.SyncExceptions(gCtx, c.db, c.store, logger); err != nil {
					logger.Warn("exceptions resync failed", slog.String("error", err.Error()))
				}
				broker.PublishExceptionEvent(sse.EventExceptionsChanged, "")
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
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

// RunReport builds one journal and prints it in the named format.
func RunReport(ctx context.Context, q journalservice.Query, formatName string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	c, err := build(ctx, app.config, app.logger, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	rep, err := c.svc.Report(ctx, q)
	if err != nil {
		return err
	}
	return format.Write(app.out, formatName, rep)
}

// RunMCP serves the journal tools over stdio until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	c, err := build(ctx, app.config, app.logger, nil)
	if err != nil {
		return err
	}
	defer c.db.Close()

	app.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, app.version).ServeStdio()
}
