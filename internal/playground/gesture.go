package playground

import (
	"log/slog"
	"math"
	"time"

	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/layout"
	"github.com/starford/pinboard/internal/models"
)

// KeyEscape is the only key the playground itself reacts to.
const KeyEscape = "esc"

type target struct {
	id   string
	kind models.EntityType
	rect models.Rect
}

// targets lists hit-testable entities, topmost first.
func (c *Controller) targets() []target {
	var out []target
	if a, ok := c.store.Assistant(); ok {
		if r, ok := c.layout.Measure(a.ID); ok {
			out = append(out, target{a.ID, models.EntityAssistant, r})
		}
	}
	notes := c.store.Notes()
	for i := len(notes) - 1; i >= 0; i-- {
		if r, ok := c.layout.Measure(notes[i].ID); ok {
			out = append(out, target{notes[i].ID, models.EntityNote, r})
		}
	}
	elements := c.store.Elements()
	for i := len(elements) - 1; i >= 0; i-- {
		if r, ok := c.layout.Measure(elements[i].ID); ok {
			out = append(out, target{elements[i].ID, models.EntityElement, r})
		}
	}
	return out
}

// HitTest classifies the screen point p: a connection node, a resize band or
// body of the topmost entity under it, or bare canvas.
func (c *Controller) HitTest(p models.Point) drag.Hit {
	at := c.viewport.ScreenToCanvas(p)
	scale := c.viewport.Scale()
	if scale <= 0 {
		scale = 1
	}
	tol := c.cfg.HitTolerance / scale

	for _, t := range c.targets() {
		for _, edge := range models.Edges {
			node := layout.NodePoint(t.rect, edge)
			if math.Hypot(at.X-node.X, at.Y-node.Y) <= tol {
				return drag.Hit{Kind: drag.HitConnectionNode, EntityID: t.id, EntityType: t.kind, Edge: edge}
			}
		}
		r := t.rect
		if !(models.Rect{X: r.X, Y: r.Y, Width: r.Width + tol, Height: r.Height + tol}).Contains(at) {
			continue
		}
		right := at.X >= r.X+r.Width-tol
		bottom := at.Y >= r.Y+r.Height-tol
		switch {
		case right && bottom:
			return drag.Hit{Kind: drag.HitResizeHandle, EntityID: t.id, EntityType: t.kind, Resize: drag.ResizeCorner}
		case right:
			return drag.Hit{Kind: drag.HitResizeHandle, EntityID: t.id, EntityType: t.kind, Resize: drag.ResizeRight}
		case bottom:
			return drag.Hit{Kind: drag.HitResizeHandle, EntityID: t.id, EntityType: t.kind, Resize: drag.ResizeBottom}
		}
		return drag.Hit{Kind: drag.HitMoveHandle, EntityID: t.id, EntityType: t.kind}
	}
	return drag.Hit{Kind: drag.HitCanvas}
}

// PointerDown starts a gesture at the screen point p.
func (c *Controller) PointerDown(p models.Point) {
	c.Dispatch(drag.PointerDown{At: p, Hit: c.HitTest(p)})
}

// PointerMove feeds a pointer position to the active gesture.
func (c *Controller) PointerMove(p models.Point) {
	c.Dispatch(drag.PointerMove{At: p})
}

// PointerUp ends the active gesture at p.
func (c *Controller) PointerUp(p models.Point) {
	up := drag.PointerUp{At: p}
	if c.gestures.State().Kind == drag.Connecting {
		if hit := c.HitTest(p); hit.Kind == drag.HitConnectionNode {
			up.Over = &hit
		}
	}
	c.Dispatch(up)
}

// Key handles a keyboard key. It reports whether the key was consumed.
func (c *Controller) Key(key string) bool {
	if key != KeyEscape || c.gestures.State().Kind == drag.Idle {
		return false
	}
	c.Dispatch(drag.Cancel{})
	return true
}

// Dispatch runs ev through the gesture controller and applies the effects.
// Hosts that do their own hit-testing call it directly.
func (c *Controller) Dispatch(ev drag.Event) {
	now := c.now()
	c.apply(c.gestures.Handle(ev, now), now)
}

// Tick advances time-driven state: parked pointer moves, the recentre
// animation, the layout safety poll and message expiry. It reports whether
// anything visible changed.
func (c *Controller) Tick(now time.Time) bool {
	changed := false
	before := c.gestures.State()
	if effects := c.gestures.Flush(now, false); len(effects) > 0 || c.gestures.State() != before {
		c.apply(effects, now)
		changed = true
	}
	if c.viewport.Animating() {
		c.viewport.Advance(now)
		changed = true
	}
	if c.layout.Tick(now) {
		changed = true
	}
	if c.message.Text != "" && !now.Before(c.messageUntil) {
		c.message = drag.Message{}
		changed = true
	}
	return changed
}

func (c *Controller) apply(effects []drag.Effect, now time.Time) {
	rejected := false
	for _, eff := range effects {
		switch e := eff.(type) {
		case drag.SetPanEnabled:
			c.viewport.SetPanEnabled(e.Enabled)
		case drag.PanStart:
			c.viewport.PanStart(now)
		case drag.PanBy:
			c.viewport.PanBy(e.DX, e.DY, now)
		case drag.PanStop:
			c.viewport.PanStop(now)
		case drag.Commit:
			c.commit(e)
		case drag.AddConnection:
			src, dst := e.Connection, e.Connection
			if !c.store.Exists(src.SourceID, src.SourceType) || !c.store.Exists(dst.TargetID, dst.TargetType) {
				rejected = true
				c.message = drag.Message{Text: drag.MsgInvalid}
				c.messageUntil = now.Add(c.cfg.MessageTTL)
				c.logger.Warn("connection dropped: endpoint missing",
					slog.String("source", src.SourceID),
					slog.String("target", dst.TargetID))
				continue
			}
			conn := c.graph.Add(e.Connection)
			c.logger.Info("connection created",
				slog.String("id", conn.ID),
				slog.String("source", conn.SourceID),
				slog.String("target", conn.TargetID))
		case drag.Message:
			if rejected && e.Success {
				continue
			}
			c.message = e
			c.messageUntil = now.Add(c.cfg.MessageTTL)
		}
	}
}

func (c *Controller) commit(e drag.Commit) {
	var err error
	switch e.Type {
	case models.EntityNote:
		if e.Resize {
			err = c.store.ResizeNote(e.ID, e.Geometry.Width, e.Geometry.Height)
		} else {
			err = c.store.MoveNote(e.ID, e.Geometry.Cell())
		}
	case models.EntityElement:
		if e.Resize {
			err = c.store.ResizeElement(e.ID, e.Geometry.Width, e.Geometry.Height)
		} else {
			err = c.store.MoveElement(e.ID, e.Geometry.Cell())
		}
	case models.EntityAssistant:
		if e.Resize {
			err = c.store.ResizeAssistant(e.Geometry.Width, e.Geometry.Height)
		} else {
			err = c.store.MoveAssistant(e.Geometry.Cell())
		}
	}
	if err != nil {
		c.logger.Warn("gesture commit dropped", slog.String("id", e.ID), slog.String("error", err.Error()))
		return
	}
	c.logger.Info("gesture committed",
		slog.String("id", e.ID),
		slog.String("type", string(e.Type)),
		slog.Bool("resize", e.Resize),
		slog.Int("row", e.Geometry.Row),
		slog.Int("col", e.Geometry.Col),
		slog.Int("width", e.Geometry.Width),
		slog.Int("height", e.Geometry.Height))
}

// --- queries ---

// State returns the current gesture state.
func (c *Controller) State() drag.State { return c.gestures.State() }

// Proposal returns the uncommitted geometry of the entity being moved or
// resized.
func (c *Controller) Proposal() (drag.Geometry, bool) {
	s := c.gestures.State()
	if !s.Kind.Moving() && !s.Kind.Resizing() {
		return drag.Geometry{}, false
	}
	return s.Proposal, true
}

// Preview returns the live connector drawn while connecting.
func (c *Controller) Preview() (layout.Connector, bool) {
	s := c.gestures.State()
	if s.Kind != drag.Connecting {
		return layout.Connector{}, false
	}
	r, ok := c.layout.Measure(s.Source.ID)
	if !ok {
		return layout.Connector{}, false
	}
	return layout.Preview(r, s.Source.Position, s.Preview), true
}

// Message returns the transient gesture message if it has not expired.
func (c *Controller) Message(now time.Time) (drag.Message, bool) {
	if c.message.Text == "" || !now.Before(c.messageUntil) {
		return drag.Message{}, false
	}
	return c.message, true
}

// ValidDropTarget reports whether releasing the active connection on the
// given entity would create a connection.
func (c *Controller) ValidDropTarget(id string, t models.EntityType) bool {
	s := c.gestures.State()
	if s.Kind != drag.Connecting || s.Source.ID == id {
		return false
	}
	return c.graph.Validate(s.Source.ID, s.Source.Type, id, t)
}

// Connectors returns every drawable connector, manual and implicit, measured
// through p. A nil provider uses the playground's own layout cache.
func (c *Controller) Connectors(p layout.Provider) []layout.Connector {
	if p == nil {
		p = c.layout
	}
	out := layout.Connectors(c.graph.Connections(), p)
	return append(out, layout.ImplicitConnectors(c.store.Notes(), p)...)
}
