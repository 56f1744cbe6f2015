// Package models defines the records exchanged with the monitor backend.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/compass/internal/citation"
)

// Schedule is how often the backend runs a monitor on its own.
type Schedule string

const (
	ScheduleDaily   Schedule = "daily"
	ScheduleWeekly  Schedule = "weekly"
	ScheduleMonthly Schedule = "monthly"
)

// Schedules lists the accepted schedules in display order.
var Schedules = []Schedule{ScheduleDaily, ScheduleWeekly, ScheduleMonthly}

// DefaultRecencyDays is the recency window used when none is given.
const DefaultRecencyDays = 14

// Monitor is a saved watch configuration.
type Monitor struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Organizations   []string   `json:"organizations"`
	AreasOfInterest []string   `json:"areas_of_interest"`
	RecencyDays     int        `json:"recency_days"`
	Schedule        Schedule   `json:"schedule"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
}

// CreateMonitorRequest is the body of POST /api/monitors.
type CreateMonitorRequest struct {
	Name            string   `json:"name"`
	Organizations   []string `json:"organizations"`
	AreasOfInterest []string `json:"areas_of_interest"`
	RecencyDays     int      `json:"recency_days"`
	Schedule        Schedule `json:"schedule"`
}

// CreateMonitorResponse is returned by the backend after a monitor is created.
type CreateMonitorResponse struct {
	MonitorID int64 `json:"monitor_id"`
}

// Report is the output of one monitor run.
type Report struct {
	Summary string     `json:"summary"`
	Sources SourceList `json:"sources"`
}

// Citations returns the report sources in renderer form.
func (r *Report) Citations() []citation.Source {
	if r == nil {
		return nil
	}
	out := make([]citation.Source, len(r.Sources))
	for i, s := range r.Sources {
		out[i] = citation.Source{Title: s.Title, URL: s.URL}
	}
	return out
}

// ReportEnvelope wraps a report the way the backend returns it.
type ReportEnvelope struct {
	Report *Report `json:"report"`
}

// Source is one cited article.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// SourceList is an ordered source list. The backend keeps sources as
// serialized JSON text, so both an array and a string holding an array
// decode.
type SourceList []Source

// UnmarshalJSON implements json.Unmarshaler.
func (l *SourceList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = SourceList{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("sources: %w", err)
		}
		if raw == "" {
			*l = SourceList{}
			return nil
		}
		data = []byte(raw)
	}
	var items []Source
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	if items == nil {
		items = []Source{}
	}
	*l = items
	return nil
}
