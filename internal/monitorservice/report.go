package monitorservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/checksum"
	"github.com/starford/compass/internal/citation"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/reportcache"
	"github.com/starford/compass/internal/sse"
)

// ReportView is a report ready for display.
type ReportView struct {
	MonitorID int64
	Summary   string
	Sources   models.SourceList
	Segments  []citation.Segment
	// Cited lists the 1-based source numbers the summary links to.
	Cited     []int
	Checksum  string
	FetchedAt time.Time
	// Stale is set when the backend was unavailable and the view comes from
	// the last snapshot.
	Stale bool
}

func newView(id int64, e *reportcache.Entry, stale bool) *ReportView {
	segs := citation.Render(e.Report.Summary, e.Report.Citations())
	// The entry is shared with the cache.
	sources := slices.Clone(e.Report.Sources)
	if sources == nil {
		sources = models.SourceList{}
	}
	return &ReportView{
		MonitorID: id,
		Summary:   e.Report.Summary,
		Sources:   sources,
		Segments:  segs,
		Cited:     citation.Resolved(segs),
		Checksum:  checksum.Report(e.Report),
		FetchedAt: e.FetchedAt,
		Stale:     stale,
	}
}

// LatestReport returns the most recent report of a monitor: from memory when
// fresh, otherwise from the backend. If the backend is unavailable the last
// snapshot is returned with Stale set.
func (s *Service) LatestReport(ctx context.Context, id int64) (*ReportView, error) {
	key := reportcache.Key{Scope: scopeOf(ctx), MonitorID: id}
	if e, ok := s.reports.Get(key); ok {
		return newView(id, e, false), nil
	}

	rep, err := s.api.LatestReport(ctx, id)
	if err == nil {
		e := s.remember(key, rep)
		return newView(id, &e, false), nil
	}
	if errors.Is(err, apperr.ErrUnavailable) {
		if e, ok := s.reports.Fallback(key); ok {
			s.logger.Warn("backend unavailable, serving report snapshot",
				slog.Int64("monitor_id", id),
				slog.String("error", err.Error()))
			return newView(id, e, true), nil
		}
	}
	return nil, fmt.Errorf("monitorservice: report %d: %w", id, err)
}

// RunMonitor runs a monitor now. Concurrent calls by the same caller for
// the same monitor share one backend run; runs beyond the per-monitor rate
// fail with an *apperr.RateLimitError.
func (s *Service) RunMonitor(ctx context.Context, id int64) (*ReportView, error) {
	key := reportcache.Key{Scope: scopeOf(ctx), MonitorID: id}
	// The shared run must not die with whichever caller started it.
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := s.runs.Do(key.String(), func() (any, error) {
		return s.run(runCtx, key)
	})
	if shared {
		s.logger.Debug("run coalesced", slog.Int64("monitor_id", id))
	}
	if err != nil {
		return nil, err
	}
	return v.(*ReportView), nil
}

func (s *Service) run(ctx context.Context, key reportcache.Key) (*ReportView, error) {
	id := key.MonitorID
	if wait := s.reserveRun(key); wait > 0 {
		return nil, fmt.Errorf("monitorservice: run %d: %w", id, &apperr.RateLimitError{RetryAfter: wait})
	}

	s.publish(sse.RunStarted, sse.MonitorEvent{MonitorID: id})
	started := time.Now()

	rep, err := s.api.RunMonitor(ctx, id)
	if err != nil {
		s.logger.Warn("monitor run failed",
			slog.Int64("monitor_id", id),
			slog.String("error", err.Error()))
		s.publish(sse.RunFailed, sse.MonitorEvent{MonitorID: id, Error: err.Error()})
		return nil, fmt.Errorf("monitorservice: run %d: %w", id, err)
	}

	e := s.remember(key, rep)
	s.lists.Delete(listKey(key.Scope))
	s.logger.Info("monitor run completed",
		slog.Int64("monitor_id", id),
		slog.Int("sources", len(rep.Sources)),
		slog.Duration("took", time.Since(started)))
	s.publish(sse.RunCompleted, sse.MonitorEvent{MonitorID: id})
	return newView(id, &e, false), nil
}

// remember replaces the cached report of a monitor.
func (s *Service) remember(key reportcache.Key, rep *models.Report) reportcache.Entry {
	e := reportcache.Entry{Report: rep, FetchedAt: time.Now().UTC()}
	if err := s.reports.Put(key, e); err != nil {
		s.logger.Warn("save report snapshot failed",
			slog.Int64("monitor_id", key.MonitorID),
			slog.String("error", err.Error()))
	}
	return e
}

// reserveRun takes a run token for key. It returns zero when the run may
// start now, otherwise how long until it may, leaving the tokens untouched.
func (s *Service) reserveRun(key reportcache.Key) time.Duration {
	now := time.Now()
	r := s.limiter(key).ReserveN(now, 1)
	if !r.OK() {
		return s.cfg.RunMinInterval
	}
	wait := r.DelayFrom(now)
	if wait > 0 {
		r.CancelAt(now)
	}
	return wait
}

func (s *Service) limiter(key reportcache.Key) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[key]
	if !ok {
		limit := rate.Inf
		if s.cfg.RunMinInterval > 0 {
			limit = rate.Every(s.cfg.RunMinInterval)
		}
		l = rate.NewLimiter(limit, s.cfg.RunBurst)
		s.limiters[key] = l
	}
	return l
}
