package entity

import (
	"fmt"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
)

func (s *Store) findElement(id string) *models.DroppedElement {
	for _, e := range s.elements {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// DropElement places a copy of a dashboard widget with its top-left at c.
func (s *Store) DropElement(ref models.ElementRef, c grid.Cell) (models.DroppedElement, error) {
	if ref.ElementID == "" {
		return models.DroppedElement{}, fmt.Errorf("entity: drop element: empty element id")
	}
	row, col, x, y := s.place(c)
	e := &models.DroppedElement{
		ID:          s.newID("element"),
		ElementID:   ref.ElementID,
		ElementName: ref.ElementName,
		ElementType: ref.ElementType,
		VegaSpec:    ref.VegaSpec,
		Row:         row,
		Col:         col,
		X:           x,
		Y:           y,
		Width:       models.ElementDefaultWidth,
		Height:      models.ElementDefaultHeight,
	}
	s.elements = append(s.elements, e)
	s.emit(ChangeCreated, e.ID, models.EntityElement)
	return *e, nil
}

// PutElement inserts or replaces a fully formed element, as read from a snapshot.
func (s *Store) PutElement(e models.DroppedElement) error {
	if e.ID == "" || e.ElementID == "" {
		return fmt.Errorf("entity: put element: missing id: %w", apperr.ErrInvalidSnapshot)
	}
	if e.Row < 0 || e.Col < 0 {
		return fmt.Errorf("entity: put element %q: negative cell: %w", e.ID, apperr.ErrInvalidSnapshot)
	}
	e.Width = clamp(e.Width, models.ElementMinWidth, models.ElementMaxSize)
	e.Height = clamp(e.Height, models.ElementMinHeight, models.ElementMaxSize)
	e.X, e.Y = s.grid.CellToPixel(grid.Cell{Row: e.Row, Col: e.Col})
	if existing := s.findElement(e.ID); existing != nil {
		*existing = e
		s.emit(ChangeUpdated, e.ID, models.EntityElement)
		return nil
	}
	cp := e
	s.elements = append(s.elements, &cp)
	s.emit(ChangeCreated, e.ID, models.EntityElement)
	return nil
}

// Element returns a copy of the dropped element with the given id.
func (s *Store) Element(id string) (models.DroppedElement, bool) {
	e := s.findElement(id)
	if e == nil {
		return models.DroppedElement{}, false
	}
	return *e, true
}

// Elements returns copies of every dropped element in drop order.
func (s *Store) Elements() []models.DroppedElement {
	out := make([]models.DroppedElement, len(s.elements))
	for i, e := range s.elements {
		out[i] = *e
	}
	return out
}

// MoveElement moves an element's top-left corner to c.
func (s *Store) MoveElement(id string, c grid.Cell) error {
	e := s.findElement(id)
	if e == nil {
		return notFound("element", id)
	}
	e.Row, e.Col, e.X, e.Y = s.place(c)
	s.emit(ChangeUpdated, id, models.EntityElement)
	return nil
}

// ResizeElement sets an element's size in cells, clamped to the allowed range.
func (s *Store) ResizeElement(id string, width, height int) error {
	e := s.findElement(id)
	if e == nil {
		return notFound("element", id)
	}
	e.Width = clamp(width, models.ElementMinWidth, models.ElementMaxSize)
	e.Height = clamp(height, models.ElementMinHeight, models.ElementMaxSize)
	s.emit(ChangeUpdated, id, models.EntityElement)
	return nil
}

// DeleteElement removes an element after running the delete hooks.
func (s *Store) DeleteElement(id string) error {
	if s.findElement(id) == nil {
		return notFound("element", id)
	}
	s.beforeDelete(id, models.EntityElement)
	for i, e := range s.elements {
		if e.ID == id {
			s.elements = append(s.elements[:i], s.elements[i+1:]...)
			break
		}
	}
	s.emit(ChangeDeleted, id, models.EntityElement)
	return nil
}
