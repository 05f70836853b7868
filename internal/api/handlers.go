package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/snapshotservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *snapshotservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *snapshotservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListSnapshots handles GET /api/snapshots.
//
//	@Summary		List the newest snapshots, optionally filtered
//	@Tags			snapshots
//	@Produce		json
//	@Param			sessionId	query		string	false	"Filter by session"
//	@Param			userId		query		string	false	"Filter by user"
//	@Param			viewId		query		string	false	"Filter by view"
//	@Success		200			{object}	SnapshotListResponse
//	@Security		BearerAuth
//	@Router			/snapshots [get]
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := snapshot.Filter{
		SessionID: q.Get("sessionId"),
		UserID:    q.Get("userId"),
		ViewID:    q.Get("viewId"),
	}
	items, err := h.svc.List(r.Context(), f)
	if err != nil {
		slog.Error("list snapshots failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SnapshotListResponse{Success: true, Snapshots: items})
}

// CreateSnapshot handles POST /api/snapshots.
//
//	@Summary		Save a playground snapshot as the next version of its view
//	@Tags			snapshots
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSnapshotRequest	true	"Snapshot to save"
//	@Success		201		{object}	CreateSnapshotResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots [post]
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req CreateSnapshotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.Create(r.Context(), snapshot.Snapshot{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		ViewID:    req.ViewID,
		Timestamp: req.Timestamp,
		Payload:   req.Payload,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrInvalidSnapshot):
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("version conflict, retry"))
		default:
			slog.Error("create snapshot failed",
				slog.String("user_id", req.UserID),
				slog.String("view_id", req.ViewID),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// GetSnapshot handles GET /api/snapshots/{id}.
//
//	@Summary		Get a single snapshot by id
//	@Tags			snapshots
//	@Produce		json
//	@Param			id	path		string	true	"Snapshot id"
//	@Success		200	{object}	snapshot.Snapshot
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots/{id} [get]
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get snapshot failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// SnapshotConnections handles GET /api/snapshots/{id}/connections.
//
//	@Summary		List a snapshot's connections with resolved endpoints
//	@Tags			snapshots
//	@Produce		json
//	@Param			id	path		string	true	"Snapshot id"
//	@Success		200	{object}	ConnectionsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots/{id}/connections [get]
func (h *Handler) SnapshotConnections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conns, err := h.svc.Connections(r.Context(), id)
	if err != nil {
		h.fail(w, "snapshot connections failed", id, err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionsResponse{Success: true, Connections: conns})
}

// SnapshotPNG handles GET /api/snapshots/{id}/png.
//
//	@Summary		Render a snapshot to PNG
//	@Tags			snapshots
//	@Produce		png
//	@Param			id		path	string	true	"Snapshot id"
//	@Param			scale	query	number	false	"Pixels per canvas pixel"
//	@Success		200		"PNG image"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snapshots/{id}/png [get]
func (h *Handler) SnapshotPNG(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	opts := render.DefaultOptions()
	if raw := r.URL.Query().Get("scale"); raw != "" {
		scale, err := strconv.ParseFloat(raw, 64)
		if err != nil || scale <= 0 || scale > 4 {
			writeJSON(w, http.StatusBadRequest, errorBody("scale must be in (0, 4]"))
			return
		}
		opts.Scale = scale
	}
	var buf bytes.Buffer
	if err := h.svc.RenderPNG(r.Context(), id, &buf, opts); err != nil {
		h.fail(w, "render snapshot failed", id, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, msg, id string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrInvalidSnapshot):
		writeJSON(w, http.StatusBadRequest, errorBody("snapshot payload is not a playground document"))
	default:
		slog.Error(msg, slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
