package monitorapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/testutil"
)

func newClient(b *testutil.Backend) *Client {
	return New(Config{BaseURL: b.URL() + "/", Token: "secret", Timeout: 5 * time.Second})
}

func TestCreateAndListMonitors(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newClient(b)
	ctx := context.Background()

	resp, err := c.CreateMonitor(ctx, models.CreateMonitorRequest{
		Name:            "Cloud accounts",
		Organizations:   []string{"Acme", "Globex"},
		AreasOfInterest: []string{"AI"},
		RecencyDays:     14,
		Schedule:        models.ScheduleWeekly,
	})
	if err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	if resp.MonitorID != 1 {
		t.Errorf("monitor id = %d, want 1", resp.MonitorID)
	}

	list, err := c.ListMonitors(ctx)
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Cloud accounts" || len(list[0].Organizations) != 2 {
		t.Errorf("list = %#v", list)
	}
	if got := b.LastHeaders().Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestListMonitors_EmptyIsNonNil(t *testing.T) {
	b := testutil.NewBackend(t)
	list, err := newClient(b).ListMonitors(context.Background())
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("list = %#v, want empty", list)
	}
}

func TestRunAndLatestReport(t *testing.T) {
	b := testutil.NewBackend(t)
	b.SourcesAsString = true
	id := b.AddMonitor(models.Monitor{Name: "M", Organizations: []string{"Acme", "Globex"}})
	c := newClient(b)
	ctx := context.Background()

	if _, err := c.LatestReport(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("LatestReport before run err = %v, want ErrNotFound", err)
	}

	rep, err := c.RunMonitor(ctx, id)
	if err != nil {
		t.Fatalf("RunMonitor: %v", err)
	}
	if len(rep.Sources) != 2 || rep.Sources[1].URL == "" {
		t.Errorf("sources = %#v", rep.Sources)
	}

	latest, err := c.LatestReport(ctx, id)
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if latest.Summary != rep.Summary {
		t.Errorf("latest summary = %q, want %q", latest.Summary, rep.Summary)
	}
}

func TestDeleteMonitor(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddMonitor(models.Monitor{Name: "M"})
	c := newClient(b)
	if err := c.DeleteMonitor(context.Background(), id); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}
	if err := c.DeleteMonitor(context.Background(), id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, apperr.ErrInvalidInput},
		{http.StatusUnauthorized, apperr.ErrUnauthorized},
		{http.StatusForbidden, apperr.ErrUnauthorized},
		{http.StatusNotFound, apperr.ErrNotFound},
		{http.StatusTooManyRequests, apperr.ErrRateLimited},
		{http.StatusInternalServerError, apperr.ErrUnavailable},
		{http.StatusBadGateway, apperr.ErrUnavailable},
	}
	for _, tt := range tests {
		b := testutil.NewBackend(t)
		b.FailWith(tt.status)
		_, err := newClient(b).ListMonitors(context.Background())
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: err = %v, want %v", tt.status, err, tt.want)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != tt.status {
			t.Errorf("status %d: not an APIError: %v", tt.status, err)
		}
		if apiErr != nil && apiErr.Message != http.StatusText(tt.status) {
			t.Errorf("status %d: message = %q", tt.status, apiErr.Message)
		}
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(Config{BaseURL: url, Timeout: time.Second}).ListMonitors(context.Background())
	if !IsUnavailable(err) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestAssertionFromContextWins(t *testing.T) {
	b := testutil.NewBackend(t)
	c := New(Config{BaseURL: b.URL(), IAPAssertion: "static"})

	if _, err := c.ListMonitors(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := b.LastHeaders().Get(IAPHeader); got != "static" {
		t.Errorf("static assertion = %q", got)
	}

	ctx := WithAssertion(context.Background(), "from-browser")
	if _, err := c.ListMonitors(ctx); err != nil {
		t.Fatal(err)
	}
	if got := b.LastHeaders().Get(IAPHeader); got != "from-browser" {
		t.Errorf("forwarded assertion = %q", got)
	}
}

func TestForwardAssertion(t *testing.T) {
	var got string
	h := ForwardAssertion(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = AssertionFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(IAPHeader, "alice-jwt")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "alice-jwt" {
		t.Errorf("assertion = %q, want alice-jwt", got)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got != "" {
		t.Errorf("assertion without header = %q, want empty", got)
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL}).LatestReport(context.Background(), 3)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Message != "upstream exploded" {
		t.Errorf("message = %q", apiErr.Message)
	}
}
