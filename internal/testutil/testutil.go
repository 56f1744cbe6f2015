// Package testutil provides shared test helpers: a fake monitor backend and
// a temporary snapshot database.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/reportcache"
)

// TestSnapshots creates a temporary snapshot database that is automatically cleaned up.
func TestSnapshots(t *testing.T) *reportcache.Snapshots {
	t.Helper()
	dbFile, err := os.CreateTemp("", "compass-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := reportcache.OpenSnapshots(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Backend is an in-memory stand-in for the monitor backend.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	nextID   int64
	monitors map[int64]models.Monitor
	reports  map[int64]models.Report
	runs     map[int64]int
	failWith int
	headers  http.Header

	// RunFunc builds the report for a run. Defaults to DefaultReport.
	RunFunc func(m models.Monitor, run int) models.Report
	// SourcesAsString serializes sources as a JSON string, the way the
	// backend stores them.
	SourcesAsString bool
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		nextID:   1,
		monitors: make(map[int64]models.Monitor),
		reports:  make(map[int64]models.Report),
		runs:     make(map[int64]int),
	}

	r := chi.NewRouter()
	r.Use(b.guard)
	r.Get("/api/monitors", b.list)
	r.Post("/api/monitors", b.create)
	r.Delete("/api/monitors/{id}", b.delete)
	r.Get("/api/monitors/{id}/report", b.report)
	r.Post("/api/monitors/{id}/run", b.run)

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend.
func (b *Backend) URL() string {
	return b.Server.URL
}

// AddMonitor stores a monitor directly and returns its id.
func (b *Backend) AddMonitor(m models.Monitor) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	m.ID = b.nextID
	b.nextID++
	b.monitors[m.ID] = m
	return m.ID
}

// SetReport stores the latest report of a monitor.
func (b *Backend) SetReport(id int64, r models.Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports[id] = r
}

// FailWith makes every request answer with status until reset with 0.
func (b *Backend) FailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWith = status
}

// Runs returns how many times the monitor was run.
func (b *Backend) Runs(id int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs[id]
}

// LastHeaders returns the headers of the most recent request.
func (b *Backend) LastHeaders() http.Header {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.headers.Clone()
}

// DefaultReport cites the first two sources of a generated list.
func DefaultReport(m models.Monitor, run int) models.Report {
	sources := models.SourceList{}
	for i, org := range m.Organizations {
		sources = append(sources, models.Source{
			Title: org + " update",
			URL:   fmt.Sprintf("https://news.example/%d/%d", m.ID, i+1),
		})
	}
	return models.Report{
		Summary: fmt.Sprintf("Run %d for %s: expansion announced [Source 1]; hiring slowed [Source 2].", run, m.Name),
		Sources: sources,
	}
}

func (b *Backend) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.headers = r.Header.Clone()
		status := b.failWith
		b.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) list(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	out := make([]models.Monitor, 0, len(b.monitors))
	for id := int64(1); id < b.nextID; id++ {
		if m, ok := b.monitors[id]; ok {
			out = append(out, m)
		}
	}
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
		return
	}
	id := b.AddMonitor(models.Monitor{
		Name:            req.Name,
		Organizations:   req.Organizations,
		AreasOfInterest: req.AreasOfInterest,
		RecencyDays:     req.RecencyDays,
		Schedule:        req.Schedule,
	})
	writeJSON(w, http.StatusCreated, models.CreateMonitorResponse{MonitorID: id})
}

func (b *Backend) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	delete(b.monitors, id)
	delete(b.reports, id)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Monitor deleted"})
}

func (b *Backend) report(w http.ResponseWriter, r *http.Request) {
	id, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	rep, found := b.reports[id]
	b.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"report": nil})
		return
	}
	b.writeReport(w, rep)
}

func (b *Backend) run(w http.ResponseWriter, r *http.Request) {
	id, ok := b.lookup(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	b.runs[id]++
	n := b.runs[id]
	m := b.monitors[id]
	fn := b.RunFunc
	b.mu.Unlock()

	if fn == nil {
		fn = DefaultReport
	}
	rep := fn(m, n)
	b.SetReport(id, rep)
	b.writeReport(w, rep)
}

func (b *Backend) writeReport(w http.ResponseWriter, rep models.Report) {
	var sources any = rep.Sources
	if b.SourcesAsString {
		raw, _ := json.Marshal(rep.Sources)
		sources = string(raw)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report": map[string]any{
			"summary": rep.Summary,
			"sources": sources,
		},
	})
}

func (b *Backend) lookup(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return 0, false
	}
	b.mu.Lock()
	_, ok := b.monitors[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Monitor not found or access denied"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
