package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/console"
	"github.com/starford/compass/internal/mcpserver"
	"github.com/starford/compass/internal/monitorapi"
	"github.com/starford/compass/internal/monitorservice"
	"github.com/starford/compass/internal/reportcache"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.out == nil {
		app.out = os.Stdout
	}
	if app.version == "" {
		app.version = "dev"
	}
	return app, nil
}

// stderrLogger is used by commands that own stdout.
func (a *application) stderrLogger() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// buildService wires the backend client, the report caches and the service.
// The returned cleanup closes the snapshot database.
func buildService(cfg *Config, pub monitorservice.Publisher, logger *slog.Logger) (*monitorservice.Service, func(), error) {
	client := monitorapi.New(monitorapi.Config{
		BaseURL:      cfg.API.BaseURL,
		Token:        cfg.API.Token,
		IAPAssertion: cfg.API.IAPAssertion,
		Timeout:      cfg.API.Timeout,
		UserAgent:    cfg.API.UserAgent,
	})

	cleanup := func() {}
	reports := reportcache.NewLayered(reportcache.NewMemory(cfg.Cache.ReportTTL), nil)
	if cfg.Cache.SnapshotPath != "" {
		snapshots, err := reportcache.OpenSnapshots(cfg.Cache.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("init report snapshots: %w", err)
		}
		reports.Snapshots = snapshots
		cleanup = func() {
			if err := snapshots.Close(); err != nil {
				logger.Warn("close report snapshots failed", slog.String("error", err.Error()))
			}
		}
	}

	svc := monitorservice.New(client, reports, pub, monitorservice.Config{
		MonitorsTTL:    cfg.Cache.MonitorsTTL,
		RunMinInterval: cfg.Run.MinInterval,
		RunBurst:       cfg.Run.Burst,
	}, logger)
	return svc, cleanup, nil
}

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.stderrLogger()
	slog.SetDefault(logger)

	svc, cleanup, err := buildService(app.config, nil, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("MCP server starting", slog.String("backend_url", app.config.API.BaseURL))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// ListMonitors prints the monitor table.
func ListMonitors(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, cleanup, err := buildService(app.config, nil, app.stderrLogger())
	if err != nil {
		return err
	}
	defer cleanup()

	monitors, err := svc.ListMonitors(ctx)
	if err != nil {
		return err
	}
	return console.RenderMonitors(app.out, monitors, console.Options{Plain: app.plain})
}

// ShowReport prints the latest report of a monitor, running it first when run is set.
func ShowReport(ctx context.Context, id int64, run bool, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, cleanup, err := buildService(app.config, nil, app.stderrLogger())
	if err != nil {
		return err
	}
	defer cleanup()

	var view *monitorservice.ReportView
	if run {
		view, err = svc.RunMonitor(ctx, id)
	} else {
		view, err = svc.LatestReport(ctx, id)
	}
	if errors.Is(err, apperr.ErrNotFound) && !run {
		_, werr := io.WriteString(app.out, "No report available. Run the monitor to generate one.\n")
		return werr
	}
	if err != nil {
		return err
	}

	// The header is cosmetic; a failed lookup still prints the report.
	m, _ := svc.Monitor(ctx, id)
	return console.RenderReport(app.out, m, view, console.Options{Plain: app.plain})
}
