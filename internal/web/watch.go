package web

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// WatchTemplates re-parses t whenever a template file in its directory
// changes, until ctx is cancelled. It returns immediately for the embedded
// set.
func WatchTemplates(ctx context.Context, t *Templates, logger *slog.Logger) error {
	if t.Dir() == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(t.Dir()); err != nil {
		return err
	}
	logger.Info("templates watcher: started", slog.String("dir", t.Dir()))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("templates watcher: stopped")
			return nil

		case <-timerCh:
			timerCh = nil
			if err := t.Reload(); err != nil {
				logger.Warn("templates watcher: reload failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("templates watcher: reloaded")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".html" {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			timerCh = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("templates watcher: error", slog.String("error", err.Error()))
		}
	}
}
