package api

import (
	"net/http"

	"tunehall/internal/auth"
	"tunehall/internal/media"
	"tunehall/internal/storage"
)

type Handler struct {
	Store               storage.Repository
	Sessions            *auth.SessionManager
	Media               *media.Resolver
	SessionCookiePolicy SessionCookiePolicy
}

func NewHandler(store storage.Repository, sessions *auth.SessionManager) *Handler {
	if sessions == nil {
		sessions = auth.NewSessionManager(auth.DefaultTTL)
	}
	return &Handler{
		Store:    store,
		Sessions: sessions,
		Media:    media.NewResolver(store),
	}
}

func (h *Handler) sessionManager() *auth.SessionManager {
	if h.Sessions == nil {
		h.Sessions = auth.NewSessionManager(auth.DefaultTTL)
	}
	return h.Sessions
}

func (h *Handler) mediaResolver() *media.Resolver {
	if h.Media == nil {
		h.Media = media.NewResolver(h.Store)
	}
	return h.Media
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	type serviceStatus struct {
		Component string `json:"component"`
		Status    string `json:"status"`
	}
	checks := make([]serviceStatus, 0, 2)
	status := "ok"

	datastoreStatus := "ok"
	if h.Store == nil {
		datastoreStatus = "unconfigured"
	} else if err := h.Store.Ping(r.Context()); err != nil {
		datastoreStatus = "unreachable"
	}
	checks = append(checks, serviceStatus{Component: "datastore", Status: datastoreStatus})

	sessionStatus := "ok"
	if err := h.sessionManager().Ping(r.Context()); err != nil {
		sessionStatus = "unreachable"
	}
	checks = append(checks, serviceStatus{Component: "sessions", Status: sessionStatus})

	for _, check := range checks {
		if check.Status != "ok" {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"services": checks,
	})
}

// NotFound is the JSON fallback for unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "page not found"})
}
