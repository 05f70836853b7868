package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/pinboard/internal/snapshotservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *snapshotservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/snapshots", h.ListSnapshots)
	r.Post("/snapshots", h.CreateSnapshot)
	r.Get("/snapshots/{id}", h.GetSnapshot)
	r.Get("/snapshots/{id}/connections", h.SnapshotConnections)
	r.Get("/snapshots/{id}/png", h.SnapshotPNG)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
