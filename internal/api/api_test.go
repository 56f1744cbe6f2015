package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorapi"
	"github.com/starford/compass/internal/monitorservice"
	"github.com/starford/compass/internal/reportcache"
	"github.com/starford/compass/internal/testutil"
)

// testEnv wires a fake backend, the service and the router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*testutil.Backend, http.Handler) {
	t.Helper()
	return testEnvWithConfig(t, authToken, monitorservice.Config{})
}

func testEnvWithConfig(t *testing.T, authToken string, cfg monitorservice.Config) (*testutil.Backend, http.Handler) {
	t.Helper()
	b := testutil.NewBackend(t)
	client := monitorapi.New(monitorapi.Config{BaseURL: b.URL(), Timeout: 5 * time.Second})
	caches := reportcache.NewLayered(reportcache.NewMemory(time.Minute), testutil.TestSnapshots(t))
	svc := monitorservice.New(client, caches, nil, cfg, nil)
	return b, NewRouter(svc, authToken != "", authToken, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCreateAndListMonitors(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/monitors",
		`{"name":"Cloud","organizations":"Acme, Globex","areas_of_interest":["AI"],"recency_days":"30"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created models.CreateMonitorResponse
	_ = json.NewDecoder(w.Body).Decode(&created)
	if created.MonitorID != 1 {
		t.Errorf("monitor_id = %d", created.MonitorID)
	}

	w = do(t, router, http.MethodGet, "/monitors", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	var list []models.Monitor
	_ = json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	m := list[0]
	if len(m.Organizations) != 2 || m.RecencyDays != 30 || m.Schedule != models.ScheduleWeekly {
		t.Errorf("monitor = %+v", m)
	}
}

func TestListMonitors_EmptyArray(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodGet, "/monitors", "", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestCreateMonitor_ValidationFields(t *testing.T) {
	_, router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/monitors", `{"name":"","organizations":[],"areas_of_interest":"","schedule":"hourly"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp errResponse
	_ = json.NewDecoder(w.Body).Decode(&resp)
	for _, f := range []string{"name", "organizations", "areas_of_interest", "schedule"} {
		if resp.Fields[f] == "" {
			t.Errorf("missing field error %q in %v", f, resp.Fields)
		}
	}

	w = do(t, router, http.MethodPost, "/monitors", `{"name":"x","organizations":"a","areas_of_interest":"b","recency_days":"soon"}`, nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "recency_days") {
		t.Errorf("recency: status = %d body = %s", w.Code, w.Body.String())
	}

	w = do(t, router, http.MethodPost, "/monitors", `{not json`, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json status = %d", w.Code)
	}
}

func TestRunAndGetReport(t *testing.T) {
	b, router := testEnv(t, "")
	id := b.AddMonitor(models.Monitor{Name: "Acme", Organizations: []string{"Acme", "Globex"}})
	b.SourcesAsString = true

	w := do(t, router, http.MethodGet, "/monitors/1/report", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("report before run status = %d", w.Code)
	}

	w = do(t, router, http.MethodPost, "/monitors/1/run", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("run status = %d, body = %s", w.Code, w.Body.String())
	}
	var run ReportResponse
	_ = json.NewDecoder(w.Body).Decode(&run)
	if run.MonitorID != id || len(run.Report.Sources) != 2 {
		t.Errorf("run = %+v", run)
	}
	if len(run.Segments) == 0 || run.Segments[1].URL != "https://news.example/1/1" {
		t.Errorf("segments = %+v", run.Segments)
	}

	w = do(t, router, http.MethodGet, "/monitors/1/report", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	w = do(t, router, http.MethodGet, "/monitors/1/report", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Errorf("conditional get status = %d, want 304", w.Code)
	}
	w = do(t, router, http.MethodGet, "/monitors/1/report", "", map[string]string{"If-None-Match": `"other"`})
	if w.Code != http.StatusOK {
		t.Errorf("mismatched etag status = %d, want 200", w.Code)
	}
}

func TestRunMonitor_RateLimited(t *testing.T) {
	b, router := testEnvWithConfig(t, "", monitorservice.Config{RunMinInterval: time.Hour, RunBurst: 1})
	b.AddMonitor(models.Monitor{Name: "a", Organizations: []string{"x"}})

	if w := do(t, router, http.MethodPost, "/monitors/1/run", "", nil); w.Code != http.StatusOK {
		t.Fatalf("first run status = %d", w.Code)
	}
	w := do(t, router, http.MethodPost, "/monitors/1/run", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second run status = %d, want 429", w.Code)
	}
	// One token per hour: the wait is close to the full interval.
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 3500 || secs > 3600 {
		t.Errorf("Retry-After = %q, want about 3600", w.Header().Get("Retry-After"))
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&apperr.RateLimitError{RetryAfter: 90 * time.Second}, "90"},
		{&apperr.RateLimitError{RetryAfter: 1500 * time.Millisecond}, "2"},
		{&apperr.RateLimitError{}, "1"},
		{apperr.ErrRateLimited, "1"},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.err); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestBackendUnavailable(t *testing.T) {
	b, router := testEnv(t, "")
	b.FailWith(http.StatusInternalServerError)
	w := do(t, router, http.MethodGet, "/monitors", "", nil)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestDeleteMonitor(t *testing.T) {
	b, router := testEnv(t, "")
	b.AddMonitor(models.Monitor{Name: "a"})

	if w := do(t, router, http.MethodDelete, "/monitors/1", "", nil); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/monitors/1", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/monitors/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", w.Code)
	}
}

func TestAuthModeToken(t *testing.T) {
	_, router := testEnv(t, "s3cret")

	if w := do(t, router, http.MethodGet, "/monitors", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/monitors", "", map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/monitors", "", map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusOK {
		t.Errorf("valid token status = %d, want 200", w.Code)
	}
}

func TestForwardsAssertion(t *testing.T) {
	b, router := testEnv(t, "")
	do(t, router, http.MethodGet, "/monitors", "", map[string]string{monitorapi.IAPHeader: "jwt-from-proxy"})
	if got := b.LastHeaders().Get(monitorapi.IAPHeader); got != "jwt-from-proxy" {
		t.Errorf("forwarded assertion = %q", got)
	}
}

func TestBackendUnauthorized(t *testing.T) {
	b, router := testEnv(t, "")
	b.FailWith(http.StatusUnauthorized)
	w := do(t, router, http.MethodGet, "/monitors", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestEtagMatches(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{`"abc"`, true},
		{`W/"abc"`, true},
		{`"x", "abc"`, true},
		{`*`, true},
		{`"abd"`, false},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, "abc"); got != tt.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}
