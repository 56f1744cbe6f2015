package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/starford/compass/internal/citation"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorservice"
)

// CreateMonitorRequest is the request body for creating a monitor. Lists may
// be JSON arrays or comma-separated strings; recency_days may be a number or
// a numeric string.
type CreateMonitorRequest struct {
	Name            string     `json:"name"`
	Organizations   stringList `json:"organizations"`
	AreasOfInterest stringList `json:"areas_of_interest"`
	RecencyDays     flexInt    `json:"recency_days"`
	Schedule        string     `json:"schedule"`
}

type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = monitorservice.SplitList(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// flexInt keeps the raw text so a non-numeric value can be reported per field.
type flexInt struct {
	Value int
	Raw   string
	Bad   bool
}

func (n *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	n.Raw = raw
	v, err := strconv.Atoi(raw)
	if err != nil {
		n.Bad = true
		return nil
	}
	n.Value = v
	return nil
}

// CreateMonitorResponse mirrors the backend's create response.
type CreateMonitorResponse = models.CreateMonitorResponse

// ReportBody is the report as stored by the backend.
type ReportBody struct {
	Summary string            `json:"summary"`
	Sources models.SourceList `json:"sources"`
}

// ReportResponse is a report plus its rendered citation segments.
type ReportResponse struct {
	MonitorID int64              `json:"monitor_id"`
	Report    ReportBody         `json:"report"`
	Segments  []citation.Segment `json:"segments"`
	Cited     []int              `json:"cited"`
	Stale     bool               `json:"stale"`
	FetchedAt time.Time          `json:"fetched_at"`
}

func newReportResponse(v *monitorservice.ReportView) ReportResponse {
	segs := v.Segments
	if segs == nil {
		segs = []citation.Segment{}
	}
	cited := v.Cited
	if cited == nil {
		cited = []int{}
	}
	return ReportResponse{
		MonitorID: v.MonitorID,
		Report:    ReportBody{Summary: v.Summary, Sources: v.Sources},
		Segments:  segs,
		Cited:     cited,
		Stale:     v.Stale,
		FetchedAt: v.FetchedAt,
	}
}
