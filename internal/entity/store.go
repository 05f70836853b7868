// Package entity owns the canonical position and size of every placed entity:
// sticky notes, dropped dashboard elements and the assistant singleton, plus
// the derived dashboard placement.
package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
)

// ChangeKind classifies a store mutation.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
	ChangeLayout  ChangeKind = "layout"
)

// Change describes one committed mutation.
type Change struct {
	Kind     ChangeKind
	ID       string
	Type     models.EntityType
	Revision uint64
}

// DeleteHook runs before an entity is removed from the store.
type DeleteHook func(id string, t models.EntityType)

// Store holds the playground entities. It is not safe for concurrent use; all
// mutations happen on the single event-handling goroutine.
type Store struct {
	grid  grid.Model
	now   func() time.Time
	newID func(prefix string) string

	notes     []*models.Note
	elements  []*models.DroppedElement
	assistant *models.AIAssistant

	canvas         models.Size
	measuredHeight float64
	dashboard      grid.Placement

	revision    uint64
	observers   []func(Change)
	deleteHooks []DeleteHook
}

// Option configures a Store.
type Option func(*Store)

// WithGrid overrides the grid geometry.
func WithGrid(m grid.Model) Option {
	return func(s *Store) { s.grid = m }
}

// WithClock overrides the time source used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides ID generation.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewID returns a random id with the given kind prefix.
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		grid:  grid.Default(),
		now:   time.Now,
		newID: NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dashboard = s.grid.ComputeDashboardPlacement(0, 0, 0)
	return s
}

// Grid returns the grid model the store places entities on.
func (s *Store) Grid() grid.Model { return s.grid }

// NewID generates an id using the store's generator.
func (s *Store) NewID(prefix string) string { return s.newID(prefix) }

// Now returns the store clock's current time.
func (s *Store) Now() time.Time { return s.now() }

// Revision increases by one on every committed mutation.
func (s *Store) Revision() uint64 { return s.revision }

// Observe registers fn to be called after every mutation.
func (s *Store) Observe(fn func(Change)) {
	s.observers = append(s.observers, fn)
}

// OnDelete registers a hook run before any entity is deleted.
func (s *Store) OnDelete(h DeleteHook) {
	s.deleteHooks = append(s.deleteHooks, h)
}

func (s *Store) emit(kind ChangeKind, id string, t models.EntityType) {
	s.revision++
	ch := Change{Kind: kind, ID: id, Type: t, Revision: s.revision}
	for _, fn := range s.observers {
		fn(ch)
	}
}

func (s *Store) beforeDelete(id string, t models.EntityType) {
	for _, h := range s.deleteHooks {
		h(id, t)
	}
}

// --- dashboard ---

// SetCanvasSize records the rendering surface size and recomputes the
// dashboard placement when it changed.
func (s *Store) SetCanvasSize(width, height float64) {
	if s.canvas.Width == width && s.canvas.Height == height {
		return
	}
	s.canvas = models.Size{Width: width, Height: height}
	s.recomputeDashboard()
}

// SetMeasuredHeight records the dashboard's rendered content height.
func (s *Store) SetMeasuredHeight(h float64) {
	if s.measuredHeight == h {
		return
	}
	s.measuredHeight = h
	s.recomputeDashboard()
}

func (s *Store) recomputeDashboard() {
	s.dashboard = s.grid.ComputeDashboardPlacement(s.canvas.Width, s.canvas.Height, s.measuredHeight)
	s.emit(ChangeLayout, "", "")
}

// CanvasSize returns the last recorded canvas size.
func (s *Store) CanvasSize() models.Size { return s.canvas }

// MeasuredHeight returns the last recorded dashboard content height.
func (s *Store) MeasuredHeight() float64 { return s.measuredHeight }

// Dashboard returns the derived dashboard placement.
func (s *Store) Dashboard() grid.Placement { return s.dashboard }

// Occupancy returns the occupied cells, skipping excludingID.
func (s *Store) Occupancy(excludingID string) grid.Set {
	areas := make([]grid.Area, 0, len(s.notes)+len(s.elements))
	for _, n := range s.notes {
		areas = append(areas, grid.Area{ID: n.ID, Row: n.Row, Col: n.Col, Width: n.Width, Height: n.Height})
	}
	for _, e := range s.elements {
		areas = append(areas, grid.Area{ID: e.ID, Row: e.Row, Col: e.Col, Width: e.Width, Height: e.Height})
	}
	return s.grid.ComputeOccupancy(s.dashboard, areas, excludingID)
}

// Exists reports whether an entity with the given id and type is present.
func (s *Store) Exists(id string, t models.EntityType) bool {
	switch t {
	case models.EntityNote:
		return s.findNote(id) != nil
	case models.EntityElement:
		return s.findElement(id) != nil
	case models.EntityAssistant:
		return s.assistant != nil && s.assistant.ID == id
	}
	return false
}

// TypeOf returns the type of the entity with the given id.
func (s *Store) TypeOf(id string) (models.EntityType, bool) {
	switch {
	case s.findNote(id) != nil:
		return models.EntityNote, true
	case s.findElement(id) != nil:
		return models.EntityElement, true
	case s.assistant != nil && s.assistant.ID == id:
		return models.EntityAssistant, true
	}
	return "", false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func (s *Store) place(c grid.Cell) (row, col int, x, y float64) {
	c.Row = max(0, c.Row)
	c.Col = max(0, c.Col)
	x, y = s.grid.CellToPixel(c)
	return c.Row, c.Col, x, y
}

func notFound(kind, id string) error {
	return fmt.Errorf("entity: %s %q: %w", kind, id, apperr.ErrNotFound)
}

// Reset removes every entity without running delete hooks. Dashboard
// geometry is kept.
func (s *Store) Reset() {
	s.notes = nil
	s.elements = nil
	s.assistant = nil
	s.emit(ChangeDeleted, "", "")
}

func cloneConnected(in []models.ConnectedRef) []models.ConnectedRef {
	return slices.Clone(in)
}
