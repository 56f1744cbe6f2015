package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/compass/internal/monitorapi"
	"github.com/starford/compass/internal/monitorservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *monitorservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(http.NewCrossOriginProtection().Handler)
	r.Use(AuthMiddleware(authEnabled, token))
	r.Use(monitorapi.ForwardAssertion)

	r.Get("/monitors", h.ListMonitors)
	r.Post("/monitors", h.CreateMonitor)
	r.Delete("/monitors/{id}", h.DeleteMonitor)
	r.Get("/monitors/{id}/report", h.LatestReport)
	r.Post("/monitors/{id}/run", h.RunMonitor)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
