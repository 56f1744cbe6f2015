// Package monitorservice coordinates the monitor backend, the report caches
// and the event broker. Every surface (JSON API, web pages, MCP tools and
// terminal commands) goes through it.
package monitorservice

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/checksum"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorapi"
	"github.com/starford/compass/internal/reportcache"
	"github.com/starford/compass/internal/sse"
)

// API is the subset of the backend client the service needs.
type API interface {
	ListMonitors(ctx context.Context) ([]models.Monitor, error)
	CreateMonitor(ctx context.Context, req models.CreateMonitorRequest) (models.CreateMonitorResponse, error)
	DeleteMonitor(ctx context.Context, id int64) error
	LatestReport(ctx context.Context, id int64) (*models.Report, error)
	RunMonitor(ctx context.Context, id int64) (*models.Report, error)
}

// Publisher receives monitor and run events.
type Publisher interface {
	PublishMonitorEvent(kind string, data sse.MonitorEvent)
}

// Config tunes caching and run limits.
type Config struct {
	// MonitorsTTL is how long the monitor list is served from memory.
	MonitorsTTL time.Duration
	// RunMinInterval is the minimum spacing between runs of one monitor.
	// Zero disables the limit.
	RunMinInterval time.Duration
	RunBurst       int
}

func listKey(scope string) string {
	return "monitors/" + scope
}

// scopeOf identifies the caller whose backend identity is used for ctx.
// Requests carrying a forwarded IAP assertion are scoped by its digest;
// all others share the empty scope of the configured identity. Anything
// cached from a backend answer is kept under the scope that received it.
func scopeOf(ctx context.Context) string {
	a := monitorapi.AssertionFrom(ctx)
	if a == "" {
		return ""
	}
	return checksum.Sum([]byte(a))[:32]
}

// Service is safe for concurrent use.
type Service struct {
	api     API
	reports *reportcache.Layered
	pub     Publisher
	logger  *slog.Logger
	cfg     Config

	lists *gocache.Cache
	runs  singleflight.Group

	mu       sync.Mutex
	limiters map[reportcache.Key]*rate.Limiter
}

// New creates a Service. pub and logger may be nil.
func New(api API, reports *reportcache.Layered, pub Publisher, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reports == nil {
		reports = reportcache.NewLayered(reportcache.NewMemory(time.Minute), nil)
	}
	if cfg.RunBurst <= 0 {
		cfg.RunBurst = 1
	}
	return &Service{
		api:      api,
		reports:  reports,
		pub:      pub,
		logger:   logger,
		cfg:      cfg,
		lists:    gocache.New(cfg.MonitorsTTL, time.Minute),
		limiters: make(map[reportcache.Key]*rate.Limiter),
	}
}

// ListMonitors returns the caller's monitors, served from memory for
// MonitorsTTL. Callers own the returned slice.
func (s *Service) ListMonitors(ctx context.Context) ([]models.Monitor, error) {
	scope := scopeOf(ctx)
	if s.cfg.MonitorsTTL > 0 {
		if v, ok := s.lists.Get(listKey(scope)); ok {
			return cloneMonitors(v.([]models.Monitor)), nil
		}
	}
	monitors, err := s.api.ListMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("monitorservice: list: %w", err)
	}
	if s.cfg.MonitorsTTL > 0 {
		s.lists.SetDefault(listKey(scope), cloneMonitors(monitors))
	}
	s.pruneSnapshots(scope, monitors)
	return monitors, nil
}

func cloneMonitors(in []models.Monitor) []models.Monitor {
	out := make([]models.Monitor, len(in))
	for i, m := range in {
		out[i] = cloneMonitor(m)
	}
	return out
}

func cloneMonitor(m models.Monitor) models.Monitor {
	m.Organizations = slices.Clone(m.Organizations)
	m.AreasOfInterest = slices.Clone(m.AreasOfInterest)
	if m.LastRunAt != nil {
		t := *m.LastRunAt
		m.LastRunAt = &t
	}
	return m
}

// Monitor returns one monitor by id.
func (s *Service) Monitor(ctx context.Context, id int64) (*models.Monitor, error) {
	monitors, err := s.ListMonitors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range monitors {
		if monitors[i].ID == id {
			return &monitors[i], nil
		}
	}
	return nil, fmt.Errorf("monitorservice: monitor %d: %w", id, apperr.ErrNotFound)
}

// CreateMonitor validates req and creates the monitor. The backend runs a
// new monitor once right away.
func (s *Service) CreateMonitor(ctx context.Context, req models.CreateMonitorRequest) (int64, error) {
	req = normalize(req)
	if err := validateRequest(req); err != nil {
		return 0, err
	}
	resp, err := s.api.CreateMonitor(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("monitorservice: create: %w", err)
	}
	s.lists.Delete(listKey(scopeOf(ctx)))
	s.logger.Info("monitor created",
		slog.Int64("monitor_id", resp.MonitorID),
		slog.String("name", req.Name))
	s.publish(sse.MonitorCreated, sse.MonitorEvent{MonitorID: resp.MonitorID})
	return resp.MonitorID, nil
}

// DeleteMonitor deletes the monitor and forgets its cached reports.
func (s *Service) DeleteMonitor(ctx context.Context, id int64) error {
	if err := s.api.DeleteMonitor(ctx, id); err != nil {
		return fmt.Errorf("monitorservice: delete %d: %w", id, err)
	}
	key := reportcache.Key{Scope: scopeOf(ctx), MonitorID: id}
	s.lists.Delete(listKey(key.Scope))
	if err := s.reports.Delete(key); err != nil {
		s.logger.Warn("drop report snapshot failed",
			slog.Int64("monitor_id", id),
			slog.String("error", err.Error()))
	}
	s.mu.Lock()
	delete(s.limiters, key)
	s.mu.Unlock()

	s.logger.Info("monitor deleted", slog.Int64("monitor_id", id))
	s.publish(sse.MonitorDeleted, sse.MonitorEvent{MonitorID: id})
	return nil
}

func (s *Service) publish(kind string, ev sse.MonitorEvent) {
	if s.pub != nil {
		s.pub.PublishMonitorEvent(kind, ev)
	}
}

type pruner interface {
	Prune(scope string, keep map[int64]struct{}) (int, error)
}

// pruneSnapshots drops the scope's snapshots of monitors deleted elsewhere.
// A list only speaks for the scope that fetched it.
func (s *Service) pruneSnapshots(scope string, monitors []models.Monitor) {
	p, ok := s.reports.Snapshots.(pruner)
	if !ok {
		return
	}
	keep := make(map[int64]struct{}, len(monitors))
	for _, m := range monitors {
		keep[m.ID] = struct{}{}
	}
	n, err := p.Prune(scope, keep)
	if err != nil {
		s.logger.Warn("prune report snapshots failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		s.logger.Debug("pruned report snapshots", slog.Int("count", n))
	}
}
