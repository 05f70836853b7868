// Package snapshotservice is the domain layer shared by the HTTP API and the
// MCP server: it saves and lists playground snapshots, summarises their
// contents and renders them to PNG.
package snapshotservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/notetext"
	"github.com/starford/pinboard/internal/playground"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/storage"
)

// Summary counts what a snapshot contains.
type Summary struct {
	Notes        int      `json:"notes"`
	Elements     int      `json:"elements"`
	Connections  int      `json:"connections"`
	HasAssistant bool     `json:"hasAssistant"`
	NoteTitles   []string `json:"noteTitles"`
	Skipped      int      `json:"skipped,omitempty"`
}

// ListItem is a stored snapshot together with a summary of its payload.
type ListItem struct {
	snapshot.Snapshot
	Summary Summary `json:"summary"`
}

// Endpoint is one resolved end of a connection.
type Endpoint struct {
	ID       string            `json:"id"`
	Type     models.EntityType `json:"type"`
	Position models.Edge       `json:"position,omitempty"`
	Label    string            `json:"label"`
	Content  string            `json:"content,omitempty"`
}

// ConnectionDetail is a connection with both endpoints resolved.
type ConnectionDetail struct {
	ID       string   `json:"id"`
	Implicit bool     `json:"implicit"`
	Source   Endpoint `json:"source"`
	Target   Endpoint `json:"target"`
}

// EventFunc is notified after a snapshot is created.
type EventFunc func(kind, viewID string)

// Service coordinates snapshot persistence and rendering.
type Service struct {
	store   snapshot.Store
	exports storage.Provider
	onEvent EventFunc
	logger  *slog.Logger
}

// NewService creates a new snapshot service. exports may be nil when PNG
// exports are not written to disk.
func NewService(store snapshot.Store, exports storage.Provider) *Service {
	return &Service{store: store, exports: exports, logger: slog.Default()}
}

// OnEvent registers fn to be told about created snapshots.
func (s *Service) OnEvent(fn EventFunc) { s.onEvent = fn }

// ExportRoot returns the absolute exports directory, or "" when none is
// configured.
func (s *Service) ExportRoot() string {
	if s.exports == nil {
		return ""
	}
	return s.exports.Root()
}

// Create validates and saves a snapshot.
func (s *Service) Create(ctx context.Context, snap snapshot.Snapshot) (snapshot.CreateResult, error) {
	if err := snap.Validate(); err != nil {
		return snapshot.CreateResult{}, fmt.Errorf("%w: %v", apperr.ErrInvalidSnapshot, err)
	}
	res, err := s.store.Create(ctx, snap)
	if err != nil {
		return snapshot.CreateResult{}, err
	}
	if s.onEvent != nil {
		s.onEvent("snapshot.created", snap.ViewID)
	}
	return res, nil
}

// List returns summaries of the newest snapshots matching f.
func (s *Service) List(ctx context.Context, f snapshot.Filter) ([]ListItem, error) {
	snaps, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	items := make([]ListItem, len(snaps))
	for i, snap := range snaps {
		items[i] = ListItem{Snapshot: snap, Summary: summarize(snap.Payload)}
	}
	return items, nil
}

// Get returns one snapshot.
func (s *Service) Get(ctx context.Context, id string) (*snapshot.Snapshot, error) {
	return s.store.Get(ctx, id)
}

// Summary decodes a snapshot and counts its contents.
func (s *Service) Summary(ctx context.Context, id string) (Summary, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	return summarize(snap.Payload), nil
}

func summarize(payload []byte) Summary {
	doc, err := snapshot.DecodeDocument(payload)
	if err != nil {
		return Summary{NoteTitles: []string{}}
	}
	titles := make([]string, 0, len(doc.Notes))
	for _, n := range doc.Notes {
		if t := notetext.Title(n.Content); t != "" {
			titles = append(titles, t)
		}
	}
	return Summary{
		Notes:        len(doc.Notes),
		Elements:     len(doc.Elements),
		Connections:  len(doc.Connections),
		HasAssistant: doc.Assistant != nil,
		NoteTitles:   titles,
		Skipped:      doc.Skipped,
	}
}

// load restores a stored snapshot into a fresh, headless playground.
func (s *Service) load(ctx context.Context, id string) (*snapshot.Snapshot, *playground.Controller, error) {
	snap, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	pg := playground.New(playground.WithLogger(s.logger))
	if _, err := pg.Load(*snap); err != nil {
		return nil, nil, err
	}
	return snap, pg, nil
}

// Connections lists the manual connections and implicit links of a snapshot
// with both endpoints resolved to readable labels.
func (s *Service) Connections(ctx context.Context, id string) ([]ConnectionDetail, error) {
	_, pg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]ConnectionDetail, 0)
	for _, c := range pg.Graph().Connections() {
		out = append(out, ConnectionDetail{
			ID:     c.ID,
			Source: endpoint(pg, c.SourceID, c.SourceType, c.SourcePosition),
			Target: endpoint(pg, c.TargetID, c.TargetType, c.TargetPosition),
		})
	}
	for _, n := range pg.Store().Notes() {
		if !n.IsLinked || n.LinkedElementID == "" {
			continue
		}
		out = append(out, ConnectionDetail{
			Implicit: true,
			Source:   endpoint(pg, n.ID, models.EntityNote, ""),
			Target:   endpoint(pg, n.LinkedElementID, models.EntityElement, ""),
		})
	}
	return out, nil
}

func endpoint(pg *playground.Controller, id string, t models.EntityType, pos models.Edge) Endpoint {
	ep := Endpoint{ID: id, Type: t, Position: pos, Label: id}
	switch t {
	case models.EntityNote:
		if n, ok := pg.Store().Note(id); ok {
			ep.Content = n.Content
			if title := notetext.Title(n.Content); title != "" {
				ep.Label = title
			}
		}
	case models.EntityElement:
		if e, ok := pg.Store().Element(id); ok && e.ElementName != "" {
			ep.Label = e.ElementName
		}
	case models.EntityAssistant:
		ep.Label = "AI assistant"
	}
	return ep
}

// RenderPNG rasterises a stored snapshot into w.
func (s *Service) RenderPNG(ctx context.Context, id string, w io.Writer, opts render.Options) error {
	_, pg, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return render.PNG(w, pg.Scene(), opts)
}

// ExportPNG renders a stored snapshot into the exports directory and returns
// the relative path written. An empty name uses ExportName. Existing files
// are never overwritten.
func (s *Service) ExportPNG(ctx context.Context, id, name string, opts render.Options) (string, error) {
	if s.exports == nil {
		return "", fmt.Errorf("snapshotservice: no export directory configured")
	}
	snap, pg, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	path := name
	if path == "" {
		path = ExportName(snap)
	}
	if _, err := s.exports.Read(path); err == nil {
		return "", fmt.Errorf("snapshotservice: export %s: %w", path, apperr.ErrAlreadyExists)
	}
	var buf bytes.Buffer
	if err := render.PNG(&buf, pg.Scene(), opts); err != nil {
		return "", err
	}
	if err := s.exports.Write(path, buf.Bytes()); err != nil {
		return "", err
	}
	s.logger.Info("snapshot exported", slog.String("id", id), slog.String("path", path))
	return path, nil
}

// ExportName is the file name used for a snapshot's PNG export.
func ExportName(snap *snapshot.Snapshot) string {
	view := snap.ViewID
	if view == "" {
		view = "view"
	}
	return fmt.Sprintf("%s-v%d-%s.png", safeName(view), snap.Version, shortID(snap.ID))
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
