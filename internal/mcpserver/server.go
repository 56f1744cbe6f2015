// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Compass monitors and reports to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/console"
	"github.com/starford/compass/internal/monitorservice"
)

const citationFormatURI = "compass://citation-format"

// Server wraps the MCP server with Compass tools.
type Server struct {
	mcp *server.MCPServer
	svc *monitorservice.Service
}

// New creates a new MCP server with all Compass tools registered.
func New(svc *monitorservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Compass",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_monitors",
		mcp.WithDescription("List all monitors with their organizations, areas of interest and schedule."),
	), s.listMonitors)

	s.mcp.AddTool(mcp.NewTool("create_monitor",
		mcp.WithDescription("Create a monitor. The service runs it once right away and then on its schedule."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Monitor name")),
		mcp.WithString("organizations", mcp.Required(), mcp.Description("Comma-separated organizations to track")),
		mcp.WithString("areas_of_interest", mcp.Required(), mcp.Description("Comma-separated areas of interest")),
		mcp.WithNumber("recency_days", mcp.Description("How many days back to look (default 14)")),
		mcp.WithString("schedule", mcp.Description("daily, weekly or monthly (default weekly)"),
			mcp.Enum("daily", "weekly", "monthly")),
	), s.createMonitor)

	s.mcp.AddTool(mcp.NewTool("delete_monitor",
		mcp.WithDescription("Delete a monitor together with its schedule and reports."),
		mcp.WithNumber("monitor_id", mcp.Required(), mcp.Description("Monitor id")),
	), s.deleteMonitor)

	s.mcp.AddTool(mcp.NewTool("get_report",
		mcp.WithDescription("Return the latest report of a monitor as Markdown with linked citations. "+
			"See the compass://citation-format resource for the marker grammar."),
		mcp.WithNumber("monitor_id", mcp.Required(), mcp.Description("Monitor id")),
	), s.getReport)

	s.mcp.AddTool(mcp.NewTool("run_monitor",
		mcp.WithDescription("Run a monitor now and return the fresh report as Markdown."),
		mcp.WithNumber("monitor_id", mcp.Required(), mcp.Description("Monitor id")),
	), s.runMonitor)

	s.mcp.AddResource(
		mcp.NewResource(citationFormatURI, "Citation Format",
			mcp.WithResourceDescription("How [Source N] markers in report summaries resolve to sources."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCitationFormat,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listMonitors(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	monitors, err := s.svc.ListMonitors(ctx)
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.MarshalIndent(monitors, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createMonitor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	form := monitorservice.MonitorForm{
		Name:            argString(args, "name"),
		Organizations:   argList(args, "organizations"),
		AreasOfInterest: argList(args, "areas_of_interest"),
		RecencyDays:     argString(args, "recency_days"),
		Schedule:        argString(args, "schedule"),
	}
	create, err := monitorservice.ParseForm(form)
	if err != nil {
		return toolError(err), nil
	}
	id, err := s.svc.CreateMonitor(ctx, create)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created monitor %d", id)), nil
}

func (s *Server) deleteMonitor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := monitorID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteMonitor(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted monitor %d", id)), nil
}

func (s *Server) getReport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := monitorID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.LatestReport(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultText("No report available. Run the monitor to generate one."), nil
	}
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(console.ReportMarkdown(view)), nil
}

func (s *Server) runMonitor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := monitorID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.RunMonitor(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(console.ReportMarkdown(view)), nil
}

func (s *Server) readCitationFormat(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      citationFormatURI,
			MIMEType: "text/markdown",
			Text:     CitationFormat,
		},
	}, nil
}

func toolError(err error) *mcp.CallToolResult {
	var fe *monitorservice.FormError
	switch {
	case errors.As(err, &fe):
		return mcp.NewToolResultError(fe.Error())
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("monitor not found")
	case errors.Is(err, apperr.ErrRateLimited):
		return mcp.NewToolResultError("monitor was run recently, try again later")
	case errors.Is(err, apperr.ErrUnavailable):
		return mcp.NewToolResultError("monitor service unavailable")
	}
	return mcp.NewToolResultError(err.Error())
}

func monitorID(req mcp.CallToolRequest) (int64, error) {
	raw, ok := req.GetArguments()["monitor_id"]
	if !ok {
		return 0, fmt.Errorf("required argument %q not found", "monitor_id")
	}
	var id int64
	switch v := raw.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("monitor_id must be a whole number")
		}
		id = int64(v)
	case int:
		id = int64(v)
	case int64:
		id = v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("monitor_id must be a whole number")
		}
		id = n
	default:
		return 0, fmt.Errorf("monitor_id must be a number")
	}
	if id <= 0 {
		return 0, fmt.Errorf("monitor_id must be positive")
	}
	return id, nil
}

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// argList accepts a comma-separated string or an array of strings.
func argList(args map[string]any, key string) string {
	items, ok := args[key].([]any)
	if !ok {
		return argString(args, key)
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}
