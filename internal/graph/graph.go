// Package graph maintains manual connections between playground entities and
// the link bookkeeping that must stay consistent with them: note link flags
// and the assistant's connected set.
package graph

import (
	"log/slog"

	"github.com/starford/pinboard/internal/entity"
	"github.com/starford/pinboard/internal/models"
)

// LinkSource reports where a note's element link comes from.
type LinkSource string

const (
	LinkAutomatic LinkSource = "automatic"
	LinkManual    LinkSource = "manual"
)

// LinkInfo is the element a note is linked to.
type LinkInfo struct {
	ElementID string     `json:"elementId"`
	Source    LinkSource `json:"source"`
}

// Graph stores manual connections over an entity store.
type Graph struct {
	store  *entity.Store
	conns  []models.Connection
	logger *slog.Logger
}

// New returns an empty graph bound to store. Deleting an entity from store
// purges every connection that touches it.
func New(store *entity.Store, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Graph{store: store, logger: logger.With("component", "graph")}
	store.OnDelete(func(id string, _ models.EntityType) {
		g.PurgeEntity(id)
	})
	return g
}

// Len returns the number of manual connections.
func (g *Graph) Len() int { return len(g.conns) }

// Connections returns a copy of every manual connection in insertion order.
func (g *Graph) Connections() []models.Connection {
	return append([]models.Connection(nil), g.conns...)
}

// Connection returns the connection with the given id.
func (g *Graph) Connection(id string) (models.Connection, bool) {
	for _, c := range g.conns {
		if c.ID == id {
			return c, true
		}
	}
	return models.Connection{}, false
}

// ConnectionsOf returns the connections touching id.
func (g *Graph) ConnectionsOf(id string) []models.Connection {
	var out []models.Connection
	for _, c := range g.conns {
		if c.Touches(id) {
			out = append(out, c)
		}
	}
	return out
}

// Validate reports whether a connection between the two endpoints may be
// created. The result does not depend on endpoint order.
func (g *Graph) Validate(sourceID string, sourceType models.EntityType, targetID string, targetType models.EntityType) bool {
	if sourceType == models.EntityElement && targetType == models.EntityElement {
		return false
	}
	if sourceType == models.EntityAssistant && targetType == models.EntityAssistant {
		return false
	}
	if sourceID == targetID {
		return false
	}
	for _, c := range g.conns {
		if c.SamePair(sourceID, targetID) {
			return false
		}
	}
	if g.hasImplicitLink(sourceID, sourceType, targetID, targetType) ||
		g.hasImplicitLink(targetID, targetType, sourceID, sourceType) {
		return false
	}
	if a, ok := g.store.Assistant(); ok {
		if sourceType == models.EntityAssistant && sourceID == a.ID && a.HasConnected(targetID, targetType) {
			return false
		}
		if targetType == models.EntityAssistant && targetID == a.ID && a.HasConnected(sourceID, sourceType) {
			return false
		}
	}
	return true
}

func (g *Graph) hasImplicitLink(noteID string, noteType models.EntityType, elementID string, elementType models.EntityType) bool {
	if noteType != models.EntityNote || elementType != models.EntityElement {
		return false
	}
	n, ok := g.store.Note(noteID)
	return ok && n.LinkedElementID != "" && n.LinkedElementID == elementID
}

// Add appends c without validating it. Production callers validate first.
// Note endpoints are flagged as linked and assistant endpoints register the
// opposite entity in their connected set.
func (g *Graph) Add(c models.Connection) models.Connection {
	if c.ID == "" {
		c.ID = g.store.NewID("connection")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = g.store.Now()
	}
	g.conns = append(g.conns, c)

	g.markLinked(c.SourceID, c.SourceType)
	g.markLinked(c.TargetID, c.TargetType)

	if c.SourceType == models.EntityAssistant && c.TargetType != models.EntityAssistant {
		_ = g.store.ConnectAssistant(models.ConnectedRef{ID: c.TargetID, Type: c.TargetType})
	}
	if c.TargetType == models.EntityAssistant && c.SourceType != models.EntityAssistant {
		_ = g.store.ConnectAssistant(models.ConnectedRef{ID: c.SourceID, Type: c.SourceType})
	}

	g.logger.Debug("connection added",
		slog.String("id", c.ID),
		slog.String("source", c.SourceID),
		slog.String("target", c.TargetID))
	return c
}

func (g *Graph) markLinked(id string, t models.EntityType) {
	if t != models.EntityNote {
		return
	}
	n, ok := g.store.Note(id)
	if !ok || n.IsLinked {
		return
	}
	_ = g.store.SetNoteLink(id, n.LinkedElementID, true)
}

// Remove deletes the connection with the given id and cascades to its
// endpoints. It reports whether a connection was removed.
func (g *Graph) Remove(connectionID string) bool {
	idx := -1
	for i, c := range g.conns {
		if c.ID == connectionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	removed := g.conns[idx]
	g.conns = append(g.conns[:idx], g.conns[idx+1:]...)

	g.cascade(removed, removed.SourceID, removed.SourceType)
	g.cascade(removed, removed.TargetID, removed.TargetType)

	g.logger.Debug("connection removed", slog.String("id", connectionID))
	return true
}

func (g *Graph) cascade(removed models.Connection, id string, t models.EntityType) {
	otherID, otherType := removed.Other(id)
	switch t {
	case models.EntityNote:
		n, ok := g.store.Note(id)
		if !ok {
			return
		}
		hasOther := len(g.ConnectionsOf(id)) > 0
		if !hasOther && n.LinkedElementID == "" {
			_ = g.store.SetNoteLink(id, "", false)
			return
		}
		if otherType == models.EntityElement && otherID == n.LinkedElementID {
			_ = g.store.SetNoteLink(id, "", hasOther)
		}
	case models.EntityAssistant:
		if a, ok := g.store.Assistant(); ok && a.ID == id {
			_ = g.store.DisconnectAssistant(otherID)
		}
	}
}

// LinkNoteToElement sets the implicit link of a note.
func (g *Graph) LinkNoteToElement(noteID, elementID string) error {
	return g.store.SetNoteLink(noteID, elementID, true)
}

// RemoveImplicitLink clears a note's implicit link fields directly. Unlike
// Remove it does not look for other connections before clearing IsLinked.
func (g *Graph) RemoveImplicitLink(noteID string) error {
	return g.store.SetNoteLink(noteID, "", false)
}

// PurgeEntity removes every connection touching id and drops implicit links
// and assistant entries that reference it.
func (g *Graph) PurgeEntity(id string) {
	for _, c := range g.ConnectionsOf(id) {
		g.Remove(c.ID)
	}
	for _, n := range g.store.Notes() {
		if n.LinkedElementID == id {
			_ = g.store.SetNoteLink(n.ID, "", len(g.ConnectionsOf(n.ID)) > 0)
		}
	}
	if a, ok := g.store.Assistant(); ok && a.ID != id {
		_ = g.store.DisconnectAssistant(id)
	}
}

// IsElementLinked reports whether any note links to elementID, implicitly or
// through a manual connection.
func (g *Graph) IsElementLinked(elementID string) bool {
	for _, n := range g.store.Notes() {
		if n.IsLinked && n.LinkedElementID == elementID {
			return true
		}
	}
	for _, c := range g.conns {
		if (c.SourceID == elementID && c.SourceType == models.EntityElement) ||
			(c.TargetID == elementID && c.TargetType == models.EntityElement) {
			return true
		}
	}
	return false
}

// LinkedElementInfo returns the element a note is linked to. The implicit
// link takes precedence over the first manual note-element connection.
func (g *Graph) LinkedElementInfo(noteID string) (LinkInfo, bool) {
	n, ok := g.store.Note(noteID)
	if !ok {
		return LinkInfo{}, false
	}
	if n.IsLinked && n.LinkedElementID != "" {
		return LinkInfo{ElementID: n.LinkedElementID, Source: LinkAutomatic}, true
	}
	for _, c := range g.conns {
		if c.SourceID == noteID && c.SourceType == models.EntityNote && c.TargetType == models.EntityElement {
			return LinkInfo{ElementID: c.TargetID, Source: LinkManual}, true
		}
		if c.TargetID == noteID && c.TargetType == models.EntityNote && c.SourceType == models.EntityElement {
			return LinkInfo{ElementID: c.SourceID, Source: LinkManual}, true
		}
	}
	return LinkInfo{}, false
}

// Restore replaces the connection list, dropping entries whose endpoints are
// missing or which break a topology rule. It returns how many were skipped.
func (g *Graph) Restore(conns []models.Connection) int {
	g.conns = nil
	skipped := 0
	for _, c := range conns {
		if c.ID == "" || !c.SourceType.Valid() || !c.TargetType.Valid() ||
			!g.store.Exists(c.SourceID, c.SourceType) || !g.store.Exists(c.TargetID, c.TargetType) {
			skipped++
			continue
		}
		if !g.validTopology(c) {
			skipped++
			continue
		}
		g.conns = append(g.conns, c)
	}
	return skipped
}

func (g *Graph) validTopology(c models.Connection) bool {
	if c.SourceID == c.TargetID {
		return false
	}
	if c.SourceType == c.TargetType && c.SourceType != models.EntityNote {
		return false
	}
	for _, existing := range g.conns {
		if existing.SamePair(c.SourceID, c.TargetID) {
			return false
		}
	}
	return true
}
