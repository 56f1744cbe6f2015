package monitorapi

import (
	"context"
	"net/http"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/models"
)

// ListMonitors returns every monitor visible to the caller.
func (c *Client) ListMonitors(ctx context.Context) ([]models.Monitor, error) {
	var out []models.Monitor
	if err := c.do(ctx, http.MethodGet, "/api/monitors", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Monitor{}
	}
	return out, nil
}

// CreateMonitor creates a monitor. The backend also triggers its first run.
func (c *Client) CreateMonitor(ctx context.Context, req models.CreateMonitorRequest) (models.CreateMonitorResponse, error) {
	var out models.CreateMonitorResponse
	if err := c.do(ctx, http.MethodPost, "/api/monitors", req, &out); err != nil {
		return models.CreateMonitorResponse{}, err
	}
	return out, nil
}

// DeleteMonitor removes a monitor together with its schedule and reports.
func (c *Client) DeleteMonitor(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, monitorPath(id, ""), nil, nil)
}

// LatestReport fetches the most recent report of a monitor.
func (c *Client) LatestReport(ctx context.Context, id int64) (*models.Report, error) {
	return c.report(ctx, http.MethodGet, monitorPath(id, "/report"))
}

// RunMonitor runs a monitor now and returns the fresh report.
func (c *Client) RunMonitor(ctx context.Context, id int64) (*models.Report, error) {
	return c.report(ctx, http.MethodPost, monitorPath(id, "/run"))
}

func (c *Client) report(ctx context.Context, method, path string) (*models.Report, error) {
	var env models.ReportEnvelope
	if err := c.do(ctx, method, path, nil, &env); err != nil {
		return nil, err
	}
	if env.Report == nil {
		return nil, apperr.ErrNotFound
	}
	if env.Report.Sources == nil {
		env.Report.Sources = models.SourceList{}
	}
	return env.Report, nil
}
