package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *monitorservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *monitorservice.Service) *Handler {
	return &Handler{svc: svc}
}

// monitorID parses the {id} URL parameter.
func monitorID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ListMonitors handles GET /api/monitors.
func (h *Handler) ListMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := h.svc.ListMonitors(r.Context())
	if err != nil {
		writeError(w, "list monitors", err)
		return
	}
	writeJSON(w, http.StatusOK, monitors)
}

// CreateMonitor handles POST /api/monitors.
func (h *Handler) CreateMonitor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var body CreateMonitorRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if body.RecencyDays.Bad {
		writeJSON(w, http.StatusBadRequest, errResponse{
			Error:  "invalid input",
			Fields: map[string]string{"recency_days": "must be a whole number"},
		})
		return
	}

	id, err := h.svc.CreateMonitor(r.Context(), models.CreateMonitorRequest{
		Name:            body.Name,
		Organizations:   body.Organizations,
		AreasOfInterest: body.AreasOfInterest,
		RecencyDays:     body.RecencyDays.Value,
		Schedule:        models.Schedule(strings.ToLower(strings.TrimSpace(body.Schedule))),
	})
	if err != nil {
		writeError(w, "create monitor", err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateMonitorResponse{MonitorID: id})
}

// DeleteMonitor handles DELETE /api/monitors/{id}.
func (h *Handler) DeleteMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid monitor id"))
		return
	}
	if err := h.svc.DeleteMonitor(r.Context(), id); err != nil {
		writeError(w, "delete monitor", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Monitor deleted"})
}

// LatestReport handles GET /api/monitors/{id}/report.
// The response carries an ETag; a matching If-None-Match yields 304.
func (h *Handler) LatestReport(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid monitor id"))
		return
	}
	view, err := h.svc.LatestReport(r.Context(), id)
	if err != nil {
		writeError(w, "get report", err)
		return
	}

	etag := `"` + view.Checksum + `"`
	w.Header().Set("ETag", etag)
	if view.Stale {
		w.Header().Set("Cache-Control", "no-store")
	}
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, view.Checksum) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(view))
}

// RunMonitor handles POST /api/monitors/{id}/run.
func (h *Handler) RunMonitor(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid monitor id"))
		return
	}
	view, err := h.svc.RunMonitor(r.Context(), id)
	if err != nil {
		writeError(w, "run monitor", err)
		return
	}
	slog.Debug("monitor run served", slog.Int64("monitor_id", id))
	w.Header().Set("ETag", `"`+view.Checksum+`"`)
	writeJSON(w, http.StatusOK, newReportResponse(view))
}

// etagMatches reports whether an If-None-Match header names checksum.
func etagMatches(header, checksum string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "*" {
			return true
		}
		part = strings.TrimPrefix(part, "W/")
		if strings.Trim(part, `"`) == checksum {
			return true
		}
	}
	return false
}
