// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/pinboard/internal/api"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/snapshotservice"
	"github.com/starford/pinboard/internal/sse"
	"github.com/starford/pinboard/internal/storage"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// backend is the storage shared by every entry point.
type backend struct {
	db      *snapshot.DB
	imports storage.Provider
	exports storage.Provider
	svc     *snapshotservice.Service
}

func (b *backend) Close() error { return b.db.Close() }

// openBackend opens the snapshot database and the import and export
// directories, then imports any snapshot files that changed since the last run.
func openBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*backend, error) {
	imports, err := storage.NewFS(cfg.Snapshots.ImportDir)
	if err != nil {
		return nil, fmt.Errorf("init import dir: %w", err)
	}
	exports, err := storage.NewFS(cfg.Snapshots.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("init export dir: %w", err)
	}

	db, err := snapshot.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init snapshot db: %w", err)
	}

	if imported, err := snapshot.Sync(ctx, db, imports, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else if len(imported) > 0 {
		logger.Info("initial sync imported snapshots", slog.Int("count", len(imported)))
	}

	return &backend{
		db:      db,
		imports: imports,
		exports: exports,
		svc:     snapshotservice.NewService(db, exports),
	}, nil
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// Run starts the HTTP server, the import watcher and the event broker.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput(os.Stdout), cfg.App.LogLevel)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("import_dir", cfg.Snapshots.ImportDir),
		slog.String("export_dir", cfg.Snapshots.ExportDir),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	// SSE broker.
	broker := sse.NewBroker(cfg.Snapshots.EventsThrottle)
	defer broker.Close()
	b.svc.OnEvent(broker.PublishSnapshotEvent)

	apiRouter := api.NewRouter(b.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Import snapshot files dropped into the import directory.
	g.Go(func() error {
		err := snapshot.Watch(gCtx, b.db, b.imports, logger.With("component", "watcher"), func(s snapshot.Snapshot) {
			broker.PublishSnapshotEvent(sse.EventSnapshotImported, s.ViewID)
		})
		if err != nil {
			logger.Error("import watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

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
		defer signal.Stop(quit)

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
