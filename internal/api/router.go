package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jdt/internal/journalservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *journalservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/report", h.Report)

	// Exceptions.
	r.Get("/exceptions", h.ListExceptions)
	r.Post("/exceptions", h.SubmitException)
	r.Put("/exceptions/{id}", h.UpdateException)

	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
