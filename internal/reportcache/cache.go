// Package reportcache keeps recently fetched reports: a short-lived
// in-memory cache for freshness and a SQLite snapshot of the last good report
// per caller scope and monitor for when the backend is down.
package reportcache

import (
	"strconv"
	"time"

	"github.com/starford/compass/internal/models"
)

// Entry is a cached report. Reports are replaced wholesale, never mutated.
type Entry struct {
	Report    *models.Report
	FetchedAt time.Time
}

// Key names a cached report. Scope identifies the caller the backend
// answered; reports fetched for one scope are never served to another.
// The empty scope is the server's own configured identity.
type Key struct {
	Scope     string
	MonitorID int64
}

func (k Key) String() string {
	return k.Scope + "/" + strconv.FormatInt(k.MonitorID, 10)
}

// Cache stores the latest report per scope and monitor.
type Cache interface {
	Get(k Key) (*Entry, bool)
	Put(k Key, e Entry) error
	Delete(k Key) error
}

var (
	_ Cache = (*Memory)(nil)
	_ Cache = (*Snapshots)(nil)
	_ Cache = (*Layered)(nil)
)
