package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/compass/internal/apperr"
	"github.com/starford/compass/internal/models"
	"github.com/starford/compass/internal/monitorapi"
	"github.com/starford/compass/internal/monitorservice"
)

// Handler serves the HTML pages.
type Handler struct {
	svc    *monitorservice.Service
	tpl    *Templates
	auth   Auth
	logger *slog.Logger
}

type pageData struct {
	Title     string
	Error     string
	MonitorID int64

	Monitors []models.Monitor

	Monitor *models.Monitor
	View    *monitorservice.ReportView

	Form      monitorservice.MonitorForm
	Fields    map[string]string
	Schedules []models.Schedule

	// Next is where the sign-in form returns to.
	Next string
	// SignOut shows the sign-out button.
	SignOut bool
	// Quiet skips the live-reload script.
	Quiet bool
}

// NewRouter creates the page router. events, if non-nil, is mounted at
// GET /events for live reloads. Cross-origin form posts are refused; with
// auth enabled every page except the sign-in form needs a session.
func NewRouter(svc *monitorservice.Service, tpl *Templates, auth Auth, events http.Handler, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, tpl: tpl, auth: auth, logger: logger}

	r := chi.NewRouter()
	r.Use(http.NewCrossOriginProtection().Handler)
	r.Use(monitorapi.ForwardAssertion)

	r.Get("/login", h.LoginForm)
	r.Post("/login", h.LoginSubmit)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Get("/", h.Dashboard)
		r.Get("/create", h.CreateForm)
		r.Post("/create", h.CreateSubmit)
		r.Get("/report/{id}", h.Report)
		r.Post("/report/{id}/run", h.Run)
		r.Post("/report/{id}/delete", h.Delete)
		if events != nil {
			r.Get("/events", events.ServeHTTP)
		}
	})
	return r
}

// LoginForm handles GET /login.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Enabled {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, "login", pageData{
		Title: "Sign In",
		Next:  localPath(r.URL.Query().Get("next")),
		Quiet: true,
	})
}

// LoginSubmit handles POST /login.
func (h *Handler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Enabled {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	next := localPath(r.PostFormValue("next"))
	if !h.auth.tokenOK(r.PostFormValue("token")) {
		h.logger.Warn("page sign-in rejected", slog.String("remote_addr", r.RemoteAddr))
		h.render(w, http.StatusUnauthorized, "login", pageData{
			Title: "Sign In",
			Error: "Invalid access token.",
			Next:  next,
			Quiet: true,
		})
		return
	}
	h.auth.setSession(w, r, time.Now())
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	clearSession(w)
	target := "/"
	if h.auth.Enabled {
		target = "/login"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Dashboard handles GET /.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData{Title: "Monitors"}
	status := http.StatusOK
	monitors, err := h.svc.ListMonitors(r.Context())
	if err != nil {
		status, data.Error = h.describe("list monitors", err)
	}
	data.Monitors = monitors
	h.render(w, status, "dashboard", data)
}

// CreateForm handles GET /create.
func (h *Handler) CreateForm(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "create", pageData{
		Title: "Create New Monitor",
		Form: monitorservice.MonitorForm{
			RecencyDays: strconv.Itoa(models.DefaultRecencyDays),
			Schedule:    string(models.ScheduleWeekly),
		},
		Schedules: models.Schedules,
	})
}

// CreateSubmit handles POST /create.
func (h *Handler) CreateSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	form := monitorservice.MonitorForm{
		Name:            r.PostFormValue("name"),
		Organizations:   r.PostFormValue("organizations"),
		AreasOfInterest: r.PostFormValue("areas_of_interest"),
		RecencyDays:     r.PostFormValue("recency_days"),
		Schedule:        r.PostFormValue("schedule"),
	}
	data := pageData{Title: "Create New Monitor", Form: form, Schedules: models.Schedules}

	req, err := monitorservice.ParseForm(form)
	if err == nil {
		_, err = h.svc.CreateMonitor(r.Context(), req)
	}
	if err != nil {
		var fe *monitorservice.FormError
		if errors.As(err, &fe) {
			data.Fields = fe.Fields
			data.Error = "Please correct the highlighted fields."
			h.render(w, http.StatusBadRequest, "create", data)
			return
		}
		var status int
		status, data.Error = h.describe("create monitor", err)
		h.render(w, status, "create", data)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Report handles GET /report/{id}.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	data := pageData{Title: "Latest Report", MonitorID: id}
	status := http.StatusOK

	if m, err := h.svc.Monitor(r.Context(), id); err == nil {
		data.Monitor = m
	}

	view, err := h.svc.LatestReport(r.Context(), id)
	switch {
	case err == nil:
		data.View = view
	case errors.Is(err, apperr.ErrNotFound):
		// No report yet; the page offers a run.
	default:
		status, data.Error = h.describe("get report", err)
	}
	h.render(w, status, "report", data)
}

// Run handles POST /report/{id}/run.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	view, err := h.svc.RunMonitor(r.Context(), id)
	if err != nil {
		data := pageData{Title: "Latest Report", MonitorID: id}
		if m, mErr := h.svc.Monitor(r.Context(), id); mErr == nil {
			data.Monitor = m
		}
		if prev, pErr := h.svc.LatestReport(r.Context(), id); pErr == nil {
			data.View = prev
		}
		var status int
		status, data.Error = h.describe("run monitor", err)
		h.render(w, status, "report", data)
		return
	}
	h.logger.Debug("run finished from page", slog.Int64("monitor_id", view.MonitorID))
	http.Redirect(w, r, "/report/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

// Delete handles POST /report/{id}/delete.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := monitorID(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.svc.DeleteMonitor(r.Context(), id); err != nil {
		status, msg := h.describe("delete monitor", err)
		h.render(w, status, "report", pageData{Title: "Latest Report", MonitorID: id, Error: msg})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data pageData) {
	data.SignOut = h.auth.Enabled && name != "login"
	if err := h.tpl.Render(w, status, name, data); err != nil {
		h.logger.Error("render page failed", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// describe turns a service error into a status code and a message for the page.
func (h *Handler) describe(op string, err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "Monitor not found."
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "You are not allowed to access this monitor."
	case errors.Is(err, apperr.ErrRateLimited):
		return http.StatusTooManyRequests, "This monitor was run recently. Try again later."
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, "The request was rejected: " + err.Error()
	case errors.Is(err, apperr.ErrUnavailable):
		h.logger.Warn(op+" failed", slog.String("error", err.Error()))
		return http.StatusBadGateway, "The monitor service is unavailable. Try again later."
	default:
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		return http.StatusInternalServerError, "Something went wrong."
	}
}

func monitorID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
