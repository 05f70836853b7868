package entity

import (
	"fmt"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
)

// CreateAssistant places the assistant panel at c. Only one assistant may
// exist per dashboard.
func (s *Store) CreateAssistant(c grid.Cell) (models.AIAssistant, error) {
	if s.assistant != nil {
		return models.AIAssistant{}, fmt.Errorf("entity: create assistant: %w", apperr.ErrAssistantExists)
	}
	row, col, x, y := s.place(c)
	s.assistant = &models.AIAssistant{
		ID:        s.newID("ai-assistant"),
		Row:       row,
		Col:       col,
		X:         x,
		Y:         y,
		Width:     models.AssistantDefaultWidth,
		Height:    models.AssistantDefaultHeight,
		CreatedAt: s.now(),
		Connected: []models.ConnectedRef{},
	}
	s.emit(ChangeCreated, s.assistant.ID, models.EntityAssistant)
	a, _ := s.Assistant()
	return a, nil
}

// PutAssistant installs a fully formed assistant, as read from a snapshot,
// replacing any existing one.
func (s *Store) PutAssistant(a models.AIAssistant) error {
	if a.ID == "" {
		return fmt.Errorf("entity: put assistant: empty id: %w", apperr.ErrInvalidSnapshot)
	}
	if a.Row < 0 || a.Col < 0 {
		return fmt.Errorf("entity: put assistant: negative cell: %w", apperr.ErrInvalidSnapshot)
	}
	a.Width = clamp(a.Width, models.AssistantMinWidth, models.AssistantMaxWidth)
	a.Height = clamp(a.Height, models.AssistantMinHeight, models.AssistantMaxHeight)
	a.X, a.Y = s.grid.CellToPixel(grid.Cell{Row: a.Row, Col: a.Col})

	connected := make([]models.ConnectedRef, 0, len(a.Connected))
	for _, ref := range a.Connected {
		if ref.ID == "" || !ref.Type.Valid() || ref.Type == models.EntityAssistant {
			continue
		}
		if !containsRef(connected, ref) {
			connected = append(connected, ref)
		}
	}
	a.Connected = connected
	s.assistant = &a
	s.emit(ChangeCreated, a.ID, models.EntityAssistant)
	return nil
}

// Assistant returns a copy of the assistant, or false when none exists.
func (s *Store) Assistant() (models.AIAssistant, bool) {
	if s.assistant == nil {
		return models.AIAssistant{}, false
	}
	a := *s.assistant
	a.Connected = cloneConnected(s.assistant.Connected)
	a.ChatHistory = append([]models.ChatMessage(nil), s.assistant.ChatHistory...)
	return a, true
}

func (s *Store) requireAssistant() (*models.AIAssistant, error) {
	if s.assistant == nil {
		return nil, fmt.Errorf("entity: assistant: %w", apperr.ErrNotFound)
	}
	return s.assistant, nil
}

// MoveAssistant moves the assistant's top-left corner to c.
func (s *Store) MoveAssistant(c grid.Cell) error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	a.Row, a.Col, a.X, a.Y = s.place(c)
	s.emit(ChangeUpdated, a.ID, models.EntityAssistant)
	return nil
}

// ResizeAssistant sets the assistant's size in cells, clamped to the allowed range.
func (s *Store) ResizeAssistant(width, height int) error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	a.Width = clamp(width, models.AssistantMinWidth, models.AssistantMaxWidth)
	a.Height = clamp(height, models.AssistantMinHeight, models.AssistantMaxHeight)
	s.emit(ChangeUpdated, a.ID, models.EntityAssistant)
	return nil
}

// SetAssistantContext toggles the context panel of the assistant.
func (s *Store) SetAssistantContext(show bool) error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	a.ShowContext = show
	s.emit(ChangeUpdated, a.ID, models.EntityAssistant)
	return nil
}

// AppendChat records a chat turn on the assistant.
func (s *Store) AppendChat(role, content string) error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	a.ChatHistory = append(a.ChatHistory, models.ChatMessage{Role: role, Content: content, At: s.now()})
	s.emit(ChangeUpdated, a.ID, models.EntityAssistant)
	return nil
}

func containsRef(refs []models.ConnectedRef, ref models.ConnectedRef) bool {
	for _, r := range refs {
		if r.ID == ref.ID && r.Type == ref.Type {
			return true
		}
	}
	return false
}

// ConnectAssistant adds ref to the assistant's connected set. Duplicates by
// (id, type) and references to another assistant are ignored.
func (s *Store) ConnectAssistant(ref models.ConnectedRef) error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	if ref.Type == models.EntityAssistant || containsRef(a.Connected, ref) {
		return nil
	}
	a.Connected = append(a.Connected, ref)
	s.emit(ChangeUpdated, a.ID, models.EntityAssistant)
	return nil
}

// DisconnectAssistant removes every entry for id from the connected set.
func (s *Store) DisconnectAssistant(id string) error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	kept := a.Connected[:0]
	for _, r := range a.Connected {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(a.Connected) {
		return nil
	}
	a.Connected = kept
	s.emit(ChangeUpdated, a.ID, models.EntityAssistant)
	return nil
}

// DeleteAssistant removes the assistant after running the delete hooks.
func (s *Store) DeleteAssistant() error {
	a, err := s.requireAssistant()
	if err != nil {
		return err
	}
	s.beforeDelete(a.ID, models.EntityAssistant)
	s.assistant = nil
	s.emit(ChangeDeleted, a.ID, models.EntityAssistant)
	return nil
}
