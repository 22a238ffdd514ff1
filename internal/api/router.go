package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notelog/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.SearchNotes)
	r.Post("/notes", h.CreateNote)
	r.Put("/notes/{ts}", h.UpdateNote)
	r.Delete("/notes/{ts}", h.DeleteNote)

	r.Get("/words", h.Words)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
