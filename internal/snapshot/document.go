package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/models"
)

// FormatVersion is written into every encoded Document.
const FormatVersion = 1

// Viewport is the persisted pan and zoom state.
type Viewport struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

// Dashboard is the persisted dashboard geometry input.
type Dashboard struct {
	MeasuredHeight float64 `json:"measuredHeight"`
	CanvasWidth    float64 `json:"canvasWidth"`
	CanvasHeight   float64 `json:"canvasHeight"`
}

// Document is the payload a playground writes into a Snapshot.
type Document struct {
	FormatVersion int                     `json:"formatVersion"`
	Notes         []models.Note           `json:"notes"`
	Elements      []models.DroppedElement `json:"droppedElements"`
	Assistant     *models.AIAssistant     `json:"aiAssistant,omitempty"`
	Connections   []models.Connection     `json:"connections"`
	Viewport      Viewport                `json:"viewport"`
	Dashboard     Dashboard               `json:"dashboard"`

	// Skipped counts records DecodeDocument could not decode.
	Skipped int `json:"-"`
}

// Encode marshals d with the current format version.
func (d Document) Encode() (json.RawMessage, error) {
	d.FormatVersion = FormatVersion
	if d.Notes == nil {
		d.Notes = []models.Note{}
	}
	if d.Elements == nil {
		d.Elements = []models.DroppedElement{}
	}
	if d.Connections == nil {
		d.Connections = []models.Connection{}
	}
	buf, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode document: %w", err)
	}
	return buf, nil
}

type rawDocument struct {
	FormatVersion int               `json:"formatVersion"`
	Notes         []json.RawMessage `json:"notes"`
	Elements      []json.RawMessage `json:"droppedElements"`
	Assistant     json.RawMessage   `json:"aiAssistant"`
	Connections   []json.RawMessage `json:"connections"`
	Viewport      json.RawMessage   `json:"viewport"`
	Dashboard     json.RawMessage   `json:"dashboard"`
}

// DecodeDocument parses a snapshot payload. Records that fail to decode are
// dropped one by one and counted in Skipped; only a payload that is not a
// JSON object at all is an error.
func DecodeDocument(payload []byte) (Document, error) {
	var raw rawDocument
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Document{}, fmt.Errorf("snapshot: decode document: %w", apperr.ErrInvalidSnapshot)
	}

	doc := Document{FormatVersion: raw.FormatVersion}
	doc.Notes = decodeEach[models.Note](raw.Notes, &doc.Skipped)
	doc.Elements = decodeEach[models.DroppedElement](raw.Elements, &doc.Skipped)
	doc.Connections = decodeEach[models.Connection](raw.Connections, &doc.Skipped)

	if len(raw.Assistant) > 0 && string(raw.Assistant) != "null" {
		var a models.AIAssistant
		if err := json.Unmarshal(raw.Assistant, &a); err != nil {
			doc.Skipped++
		} else {
			doc.Assistant = &a
		}
	}
	if len(raw.Viewport) > 0 {
		if err := json.Unmarshal(raw.Viewport, &doc.Viewport); err != nil {
			doc.Skipped++
			doc.Viewport = Viewport{}
		}
	}
	if len(raw.Dashboard) > 0 {
		if err := json.Unmarshal(raw.Dashboard, &doc.Dashboard); err != nil {
			doc.Skipped++
			doc.Dashboard = Dashboard{}
		}
	}
	return doc, nil
}

func decodeEach[T any](items []json.RawMessage, skipped *int) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			*skipped++
			continue
		}
		out = append(out, v)
	}
	return out
}
