package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/compass/internal"
	pkgconfig "github.com/starford/compass/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
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
		internal.WithVersion(version),
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
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func monitors(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ListMonitors(ctx, internal.WithConfig(cfg), internal.WithPlain(cmd.Bool("plain")))
}

func report(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("usage: compass report <monitor-id>")
	}
	id, err := strconv.ParseInt(cmd.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid monitor id %q", cmd.Args().First())
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ShowReport(ctx, id, cmd.Bool("run"),
		internal.WithConfig(cfg),
		internal.WithPlain(cmd.Bool("plain")))
}

func plainFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "plain",
		Usage:   "Disable colors and styling",
		Sources: cli.EnvVars("COMPASS_PLAIN"),
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "compass",
		Usage:   "Web client, MCP server and terminal viewer for monitor reports with linked citations",
		Version: version,
		Action:  serve,
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
				Usage:  "Serve the web UI, the JSON API and the event stream",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "monitors",
				Usage:  "List monitors",
				Flags:  []cli.Flag{plainFlag()},
				Action: monitors,
			},
			{
				Name:      "report",
				Usage:     "Show the latest report of a monitor",
				ArgsUsage: "<monitor-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "run",
						Usage: "Run the monitor first",
					},
					plainFlag(),
				},
				Action: report,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
