package playground

import (
	"fmt"
	"log/slog"

	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/viewport"
)

// Meta identifies who saved a snapshot and for which view.
type Meta struct {
	SessionID string
	UserID    string
	ViewID    string
}

// RestoreReport summarises a Restore.
type RestoreReport struct {
	Notes       int
	Elements    int
	Assistant   bool
	Connections int
	// Skipped counts records dropped because they were malformed or
	// referenced entities that did not load.
	Skipped int
}

// Document captures the current playground state.
func (c *Controller) Document() snapshot.Document {
	t := c.viewport.Transform()
	canvas := c.store.CanvasSize()
	doc := snapshot.Document{
		FormatVersion: snapshot.FormatVersion,
		Notes:         c.store.Notes(),
		Elements:      c.store.Elements(),
		Connections:   c.graph.Connections(),
		Viewport:      snapshot.Viewport{Scale: t.Scale, TranslateX: t.TranslateX, TranslateY: t.TranslateY},
		Dashboard: snapshot.Dashboard{
			MeasuredHeight: c.store.MeasuredHeight(),
			CanvasWidth:    canvas.Width,
			CanvasHeight:   canvas.Height,
		},
	}
	if a, ok := c.store.Assistant(); ok {
		doc.Assistant = &a
	}
	return doc
}

// Snapshot encodes the current state into a snapshot ready for a store.
func (c *Controller) Snapshot(meta Meta) (snapshot.Snapshot, error) {
	payload, err := c.Document().Encode()
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	return snapshot.Snapshot{
		SessionID: meta.SessionID,
		UserID:    meta.UserID,
		ViewID:    meta.ViewID,
		Timestamp: c.now(),
		Payload:   payload,
	}, nil
}

// Restore replaces the playground state with doc. Records that cannot be
// installed are skipped one at a time; the rest of the document still loads.
// Any active gesture is cancelled first.
func (c *Controller) Restore(doc snapshot.Document) RestoreReport {
	c.Dispatch(drag.Cancel{})
	rep := RestoreReport{Skipped: doc.Skipped}

	c.graph.Restore(nil)
	c.store.Reset()

	canvas := c.store.CanvasSize()
	if (canvas.Width <= 0 || canvas.Height <= 0) && doc.Dashboard.CanvasWidth > 0 && doc.Dashboard.CanvasHeight > 0 {
		c.store.SetCanvasSize(doc.Dashboard.CanvasWidth, doc.Dashboard.CanvasHeight)
	}
	c.store.SetMeasuredHeight(doc.Dashboard.MeasuredHeight)

	for _, n := range doc.Notes {
		if c.store.Exists(n.ID, models.EntityNote) {
			rep.Skipped++
			continue
		}
		if err := c.store.PutNote(n); err != nil {
			c.logger.Debug("restore: note skipped", slog.String("error", err.Error()))
			rep.Skipped++
			continue
		}
		rep.Notes++
	}
	for _, e := range doc.Elements {
		if _, dup := c.store.Element(e.ID); dup {
			rep.Skipped++
			continue
		}
		if err := c.store.PutElement(e); err != nil {
			c.logger.Debug("restore: element skipped", slog.String("error", err.Error()))
			rep.Skipped++
			continue
		}
		rep.Elements++
	}
	if doc.Assistant != nil {
		if err := c.store.PutAssistant(*doc.Assistant); err != nil {
			c.logger.Debug("restore: assistant skipped", slog.String("error", err.Error()))
			rep.Skipped++
		} else {
			rep.Assistant = true
		}
	}

	skipped := c.graph.Restore(doc.Connections)
	rep.Skipped += skipped
	rep.Connections = len(doc.Connections) - skipped
	c.reconcileLinks()

	if doc.Viewport.Scale > 0 {
		c.viewport.SetTransform(viewport.Transform{
			Scale:      doc.Viewport.Scale,
			TranslateX: doc.Viewport.TranslateX,
			TranslateY: doc.Viewport.TranslateY,
		})
	}
	c.layout.Mount(c.now())

	c.logger.Info("playground restored",
		slog.Int("notes", rep.Notes),
		slog.Int("elements", rep.Elements),
		slog.Int("connections", rep.Connections),
		slog.Int("skipped", rep.Skipped))
	return rep
}

// reconcileLinks brings every note's IsLinked flag and the assistant's
// connected set in line with the restored connections.
func (c *Controller) reconcileLinks() {
	for _, n := range c.store.Notes() {
		linked := n.LinkedElementID != "" || len(c.graph.ConnectionsOf(n.ID)) > 0
		if linked != n.IsLinked {
			_ = c.store.SetNoteLink(n.ID, n.LinkedElementID, linked)
		}
	}
	a, ok := c.store.Assistant()
	if !ok {
		return
	}
	for _, ref := range a.Connected {
		if !c.store.Exists(ref.ID, ref.Type) {
			_ = c.store.DisconnectAssistant(ref.ID)
		}
	}
}

// Load decodes a stored snapshot and restores it.
func (c *Controller) Load(s snapshot.Snapshot) (RestoreReport, error) {
	doc, err := snapshot.DecodeDocument(s.Payload)
	if err != nil {
		return RestoreReport{}, fmt.Errorf("playground: load %s: %w", s.ID, err)
	}
	return c.Restore(doc), nil
}

// Scene returns what a raster export draws.
func (c *Controller) Scene() render.Scene {
	scene := render.Scene{
		CellSize:   c.store.Grid().CellSize,
		Dashboard:  c.store.Dashboard(),
		Notes:      c.store.Notes(),
		Elements:   c.store.Elements(),
		Connectors: c.Connectors(c.layout),
	}
	if a, ok := c.store.Assistant(); ok {
		scene.Assistant = &a
	}
	return scene
}
