package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorapi"
	"github.com/starford/compass/internal/monitorservice"
	"github.com/starford/compass/internal/reportcache"
	"github.com/starford/compass/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	client := monitorapi.New(monitorapi.Config{BaseURL: b.URL(), Timeout: 5 * time.Second})
	caches := reportcache.NewLayered(reportcache.NewMemory(time.Minute), nil)
	svc := monitorservice.New(client, caches, nil, monitorservice.Config{}, nil)
	return New(svc, "test"), b
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// Handlers are called directly; mcp-go has no in-process call helper.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "list_monitors":
		result, err = srv.listMonitors(ctx, req)
	case "create_monitor":
		result, err = srv.createMonitor(ctx, req)
	case "delete_monitor":
		result, err = srv.deleteMonitor(ctx, req)
	case "get_report":
		result, err = srv.getReport(ctx, req)
	case "run_monitor":
		result, err = srv.runMonitor(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndListMonitors(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_monitor", map[string]any{
		"name":              "Cloud",
		"organizations":     []any{"Acme", "Globex"},
		"areas_of_interest": "AI, Chips",
		"recency_days":      float64(7),
	})
	if r.IsError || resultText(r) != "created monitor 1" {
		t.Fatalf("create result = %q", resultText(r))
	}

	text := resultText(callTool(t, srv, "list_monitors", map[string]any{}))
	for _, want := range []string{`"name": "Cloud"`, `"Globex"`, `"Chips"`, `"recency_days": 7`, `"schedule": "weekly"`} {
		if !strings.Contains(text, want) {
			t.Errorf("list missing %s in %s", want, text)
		}
	}
}

func TestCreateMonitor_Invalid(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "create_monitor", map[string]any{"name": "x", "organizations": "", "areas_of_interest": "a"})
	if !r.IsError {
		t.Fatal("expected error")
	}
	if !strings.Contains(resultText(r), "organizations") {
		t.Errorf("error = %q", resultText(r))
	}
}

func TestRunAndGetReport(t *testing.T) {
	srv, b := testServer(t)
	b.AddMonitor(models.Monitor{Name: "Acme", Organizations: []string{"Acme", "Globex"}})

	r := callTool(t, srv, "get_report", map[string]any{"monitor_id": float64(1)})
	if resultText(r) != "No report available. Run the monitor to generate one." {
		t.Errorf("get before run = %q", resultText(r))
	}

	r = callTool(t, srv, "run_monitor", map[string]any{"monitor_id": "1"})
	if r.IsError {
		t.Fatalf("run error: %s", resultText(r))
	}
	text := resultText(r)
	for _, want := range []string{
		`[\[Source 1\]](<https://news.example/1/1>)`,
		"1. [Acme update](<https://news.example/1/1>)",
		"2. [Globex update](<https://news.example/1/2>)",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q in:\n%s", want, text)
		}
	}

	if got := resultText(callTool(t, srv, "get_report", map[string]any{"monitor_id": float64(1)})); got != text {
		t.Errorf("get_report after run differs:\n%s", got)
	}
}

func TestMonitorIDValidation(t *testing.T) {
	srv, _ := testServer(t)
	for _, args := range []map[string]any{
		{},
		{"monitor_id": 1.5},
		{"monitor_id": "abc"},
		{"monitor_id": float64(0)},
		{"monitor_id": true},
	} {
		if r := callTool(t, srv, "get_report", args); !r.IsError {
			t.Errorf("args %v: expected error", args)
		}
	}
}

func TestDeleteMonitor(t *testing.T) {
	srv, b := testServer(t)
	b.AddMonitor(models.Monitor{Name: "a"})

	if r := callTool(t, srv, "delete_monitor", map[string]any{"monitor_id": float64(1)}); r.IsError {
		t.Fatalf("delete error: %s", resultText(r))
	}
	r := callTool(t, srv, "delete_monitor", map[string]any{"monitor_id": float64(1)})
	if !r.IsError || resultText(r) != "monitor not found" {
		t.Errorf("second delete = %q", resultText(r))
	}
}

func TestCitationFormatResource(t *testing.T) {
	srv, _ := testServer(t)
	contents, err := srv.readCitationFormat(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != "compass://citation-format" || !strings.Contains(tc.Text, "[Source ") {
		t.Errorf("resource = %+v", contents[0])
	}
}
