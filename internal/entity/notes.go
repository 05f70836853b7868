package entity

import (
	"fmt"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
)

func (s *Store) findNote(id string) *models.Note {
	for _, n := range s.notes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// CreateNote places a default-sized note at cell. Dashboard cells are
// reserved; other entities may be overlapped. A non-empty linkedElementID
// creates the note with an implicit link to that element.
func (s *Store) CreateNote(c grid.Cell, linkedElementID string) (models.Note, error) {
	if !grid.IsFree(s.dashboard, nil, c, false) {
		return models.Note{}, fmt.Errorf("entity: create note at %s: %w", c.Key(), apperr.ErrCellOccupied)
	}
	row, col, x, y := s.place(c)
	n := &models.Note{
		ID:              s.newID("note"),
		Row:             row,
		Col:             col,
		X:               x,
		Y:               y,
		Width:           models.NoteDefaultWidth,
		Height:          models.NoteDefaultHeight,
		CreatedAt:       s.now(),
		LinkedElementID: linkedElementID,
		IsLinked:        linkedElementID != "",
	}
	s.notes = append(s.notes, n)
	s.emit(ChangeCreated, n.ID, models.EntityNote)
	return *n, nil
}

// PutNote inserts or replaces a fully formed note, as read from a snapshot.
func (s *Store) PutNote(n models.Note) error {
	if n.ID == "" {
		return fmt.Errorf("entity: put note: empty id: %w", apperr.ErrInvalidSnapshot)
	}
	if n.Row < 0 || n.Col < 0 {
		return fmt.Errorf("entity: put note %q: negative cell: %w", n.ID, apperr.ErrInvalidSnapshot)
	}
	n.Width = clamp(n.Width, models.NoteMinSize, models.NoteMaxSize)
	n.Height = clamp(n.Height, models.NoteMinSize, models.NoteMaxSize)
	n.X, n.Y = s.grid.CellToPixel(grid.Cell{Row: n.Row, Col: n.Col})
	if existing := s.findNote(n.ID); existing != nil {
		*existing = n
		s.emit(ChangeUpdated, n.ID, models.EntityNote)
		return nil
	}
	cp := n
	s.notes = append(s.notes, &cp)
	s.emit(ChangeCreated, n.ID, models.EntityNote)
	return nil
}

// Note returns a copy of the note with the given id.
func (s *Store) Note(id string) (models.Note, bool) {
	n := s.findNote(id)
	if n == nil {
		return models.Note{}, false
	}
	return *n, true
}

// Notes returns copies of every note in creation order.
func (s *Store) Notes() []models.Note {
	out := make([]models.Note, len(s.notes))
	for i, n := range s.notes {
		out[i] = *n
	}
	return out
}

// UpdateNoteText replaces a note's content.
func (s *Store) UpdateNoteText(id, content string) error {
	n := s.findNote(id)
	if n == nil {
		return notFound("note", id)
	}
	n.Content = content
	s.emit(ChangeUpdated, id, models.EntityNote)
	return nil
}

// SetNoteTheme switches a note between the light and dark theme.
func (s *Store) SetNoteTheme(id string, dark bool) error {
	n := s.findNote(id)
	if n == nil {
		return notFound("note", id)
	}
	n.IsDark = dark
	s.emit(ChangeUpdated, id, models.EntityNote)
	return nil
}

// MoveNote moves a note's top-left corner to c, clamped to the grid origin.
func (s *Store) MoveNote(id string, c grid.Cell) error {
	n := s.findNote(id)
	if n == nil {
		return notFound("note", id)
	}
	n.Row, n.Col, n.X, n.Y = s.place(c)
	s.emit(ChangeUpdated, id, models.EntityNote)
	return nil
}

// ResizeNote sets a note's size in cells, clamped to the allowed range.
func (s *Store) ResizeNote(id string, width, height int) error {
	n := s.findNote(id)
	if n == nil {
		return notFound("note", id)
	}
	n.Width = clamp(width, models.NoteMinSize, models.NoteMaxSize)
	n.Height = clamp(height, models.NoteMinSize, models.NoteMaxSize)
	s.emit(ChangeUpdated, id, models.EntityNote)
	return nil
}

// SetNoteLink writes a note's implicit link fields verbatim.
func (s *Store) SetNoteLink(id, elementID string, linked bool) error {
	n := s.findNote(id)
	if n == nil {
		return notFound("note", id)
	}
	if n.LinkedElementID == elementID && n.IsLinked == linked {
		return nil
	}
	n.LinkedElementID = elementID
	n.IsLinked = linked
	s.emit(ChangeUpdated, id, models.EntityNote)
	return nil
}

// DeleteNote removes a note after running the delete hooks.
func (s *Store) DeleteNote(id string) error {
	idx := -1
	for i, n := range s.notes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("note", id)
	}
	s.beforeDelete(id, models.EntityNote)
	// Hooks may have mutated s.notes; look the index up again.
	for i, n := range s.notes {
		if n.ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			break
		}
	}
	s.emit(ChangeDeleted, id, models.EntityNote)
	return nil
}
