package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/starford/pinboard/internal/mcpserver"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/playground"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/storage"
	"github.com/starford/pinboard/internal/tui"
)

// RunMCP serves the assistant tools over stdio. Stdout carries the protocol,
// so logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(app.logOutput(os.Stderr), cfg.App.LogLevel)
	slog.SetDefault(logger)

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	logger.Info("MCP server starting", slog.String("sqlite_path", cfg.SQLite.Path))
	if err := mcpserver.New(b.svc).ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunTUI opens the terminal playground. Snapshots are saved through the API
// when snapshots.server_url is set and straight to SQLite otherwise.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logOut := app.logWriter
	if logOut == nil {
		f, err := os.OpenFile(cfg.TUI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open tui log: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := newLogger(logOut, cfg.App.LogLevel)
	slog.SetDefault(logger)

	exports, err := storage.NewFS(cfg.Snapshots.ExportDir)
	if err != nil {
		return fmt.Errorf("init export dir: %w", err)
	}

	var store snapshot.Store
	if cfg.Snapshots.ServerURL != "" {
		store = snapshot.NewClient(cfg.Snapshots.ServerURL, cfg.Auth.Token, nil, logger)
	} else {
		db, err := snapshot.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("init snapshot db: %w", err)
		}
		defer db.Close()
		store = db
	}

	pg := playground.New(
		playground.WithConfig(cfg.Playground()),
		playground.WithLogger(logger.With("component", "playground")),
	)
	meta := playground.Meta{
		SessionID: uuid.NewString(),
		UserID:    cfg.TUI.UserID,
		ViewID:    cfg.TUI.ViewID,
	}
	logger.Info("TUI starting",
		slog.String("session_id", meta.SessionID),
		slog.String("user_id", meta.UserID),
		slog.String("view_id", meta.ViewID),
		slog.Bool("remote", cfg.Snapshots.ServerURL != ""))

	return tui.Run(ctx, tui.Options{
		Playground: pg,
		Store:      store,
		Exports:    exports,
		Meta:       meta,
		Widgets:    cfg.TUI.ElementRefs(),
		Datasets:   cfg.TUI.Datasets(),
		CellPx:     models.Size{Width: cfg.TUI.CellWidth, Height: cfg.TUI.CellHeight},
		Logger:     logger.With("component", "tui"),
	})
}

// Export renders the stored snapshot id to PNG and returns the file path.
// An empty out writes into the export directory under a generated name.
func Export(ctx context.Context, id, out string, scale float64, opts ...Option) (string, error) {
	app, err := newApplication(opts)
	if err != nil {
		return "", err
	}
	cfg := app.config

	logger := newLogger(app.logOutput(os.Stderr), cfg.App.LogLevel)
	slog.SetDefault(logger)

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer b.Close()

	ro := render.DefaultOptions()
	if scale > 0 {
		ro.Scale = scale
	}

	if out == "" {
		rel, err := b.svc.ExportPNG(ctx, id, "", ro)
		if err != nil {
			return "", err
		}
		return filepath.Join(b.exports.Root(), rel), nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	if err := b.svc.RenderPNG(ctx, id, f, ro); err != nil {
		f.Close()
		os.Remove(out)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	logger.Info("snapshot exported", slog.String("id", id), slog.String("path", out))
	return out, nil
}
