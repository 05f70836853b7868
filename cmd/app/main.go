package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/pinboard/internal"
	pkgconfig "github.com/starford/pinboard/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

func tui(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v := cmd.String("user"); v != "" {
		cfg.TUI.UserID = v
	}
	if v := cmd.String("view"); v != "" {
		cfg.TUI.ViewID = v
	}
	if v := cmd.String("server"); v != "" {
		cfg.Snapshots.ServerURL = v
	}

	if err := internal.RunTUI(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("tui run error: %w", err)
	}
	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: %s export <snapshot-id>", cmd.Root().Name)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, err := internal.Export(ctx, id, cmd.String("out"), cmd.Float("scale"), internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("export error: %w", err)
	}
	fmt.Fprintln(cmd.Root().Writer, path)
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "pinboard",
		Usage:  "Annotation playground for dashboards: sticky notes, widgets and connections on a snapped grid",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the snapshot API, the import watcher and the event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the assistant tools over MCP stdio",
				Action: mcp,
			},
			{
				Name:   "tui",
				Usage:  "Open the playground in the terminal",
				Action: tui,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "User id snapshots are saved under"},
					&cli.StringFlag{Name: "view", Usage: "Dashboard view id"},
					&cli.StringFlag{Name: "server", Usage: "Snapshot API base URL, e.g. http://localhost:8080/api", Sources: cli.EnvVars("PINBOARD_SERVER_URL")},
				},
			},
			{
				Name:      "export",
				Usage:     "Render a stored snapshot to PNG",
				ArgsUsage: "<snapshot-id>",
				Action:    export,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file; defaults to a generated name in the export directory"},
					&cli.FloatFlag{Name: "scale", Usage: "Pixels per canvas pixel", Value: 0.25},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Run(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
