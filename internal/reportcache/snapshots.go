package reportcache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/compass/internal/checksum"
	"github.com/starford/compass/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS report_snapshots (
	scope      TEXT NOT NULL DEFAULT '',
	monitor_id INTEGER NOT NULL,
	summary    TEXT NOT NULL DEFAULT '',
	sources    TEXT NOT NULL DEFAULT '[]',
	checksum   TEXT NOT NULL DEFAULT '',
	fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (scope, monitor_id)
);
`

// Snapshots keeps the last good report per scope and monitor in SQLite.
type Snapshots struct {
	conn *sql.DB
}

// OpenSnapshots opens (or creates) the snapshot database and applies the schema.
func OpenSnapshots(dsn string) (*Snapshots, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("reportcache: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reportcache: ping: %w", err)
	}
	// Snapshots are disposable: a table from before scopes existed is dropped.
	if _, err := conn.Exec(`SELECT scope FROM report_snapshots LIMIT 0`); err != nil {
		if _, err := conn.Exec(`DROP TABLE IF EXISTS report_snapshots`); err != nil {
			conn.Close()
			return nil, fmt.Errorf("reportcache: drop old schema: %w", err)
		}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reportcache: apply schema: %w", err)
	}
	return &Snapshots{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Snapshots) Close() error {
	return s.conn.Close()
}

// Load returns the snapshot for k, or (nil, nil) when there is none.
func (s *Snapshots) Load(k Key) (*Entry, error) {
	var (
		summary, sources, sum string
		fetchedAt             time.Time
	)
	err := s.conn.QueryRow(
		`SELECT summary, sources, checksum, fetched_at FROM report_snapshots WHERE scope = ? AND monitor_id = ?`,
		k.Scope, k.MonitorID,
	).Scan(&summary, &sources, &sum, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reportcache: load %s: %w", k, err)
	}

	rep := &models.Report{Summary: summary}
	if err := json.Unmarshal([]byte(sources), &rep.Sources); err != nil {
		return nil, fmt.Errorf("reportcache: decode sources %s: %w", k, err)
	}
	if checksum.Report(rep) != sum {
		return nil, fmt.Errorf("reportcache: snapshot %s: checksum mismatch", k)
	}
	return &Entry{Report: rep, FetchedAt: fetchedAt.UTC()}, nil
}

// Get implements Cache. Read failures count as a miss.
func (s *Snapshots) Get(k Key) (*Entry, bool) {
	e, err := s.Load(k)
	if err != nil || e == nil {
		return nil, false
	}
	return e, true
}

// Put replaces the snapshot for k.
func (s *Snapshots) Put(k Key, e Entry) error {
	if e.Report == nil {
		return fmt.Errorf("reportcache: put %s: nil report", k)
	}
	src := e.Report.Sources
	if src == nil {
		src = models.SourceList{}
	}
	sources, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("reportcache: encode sources: %w", err)
	}
	fetchedAt := e.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	_, err = s.conn.Exec(`
		INSERT INTO report_snapshots (scope, monitor_id, summary, sources, checksum, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(scope, monitor_id) DO UPDATE SET
			summary    = excluded.summary,
			sources    = excluded.sources,
			checksum   = excluded.checksum,
			fetched_at = excluded.fetched_at
	`, k.Scope, k.MonitorID, e.Report.Summary, string(sources), checksum.Report(e.Report), fetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("reportcache: put %s: %w", k, err)
	}
	return nil
}

// Delete removes the snapshot for k.
func (s *Snapshots) Delete(k Key) error {
	if _, err := s.conn.Exec(`DELETE FROM report_snapshots WHERE scope = ? AND monitor_id = ?`, k.Scope, k.MonitorID); err != nil {
		return fmt.Errorf("reportcache: delete %s: %w", k, err)
	}
	return nil
}

// Prune deletes the snapshots of scope whose monitor is not in keep and
// returns how many rows were removed. Other scopes are untouched.
func (s *Snapshots) Prune(scope string, keep map[int64]struct{}) (int, error) {
	rows, err := s.conn.Query(`SELECT monitor_id FROM report_snapshots WHERE scope = ?`, scope)
	if err != nil {
		return 0, fmt.Errorf("reportcache: prune: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("reportcache: prune: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range stale {
		if _, err := tx.Exec(`DELETE FROM report_snapshots WHERE scope = ? AND monitor_id = ?`, scope, id); err != nil {
			return 0, fmt.Errorf("reportcache: prune %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("reportcache: prune commit: %w", err)
	}
	return len(stale), nil
}
