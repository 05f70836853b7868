// Package drag implements the pointer gesture state machine. Step is a pure
// transition function; Controller adds pointer-move throttling on top of it.
package drag

import (
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
)

// Kind is the active gesture mode.
type Kind int

const (
	Idle Kind = iota
	Panning
	MovingNote
	ResizingNote
	MovingElement
	ResizingElement
	MovingAssistant
	ResizingAssistant
	Connecting
)

var kindNames = [...]string{
	Idle:              "idle",
	Panning:           "panning",
	MovingNote:        "moving-note",
	ResizingNote:      "resizing-note",
	MovingElement:     "moving-element",
	ResizingElement:   "resizing-element",
	MovingAssistant:   "moving-assistant",
	ResizingAssistant: "resizing-assistant",
	Connecting:        "connecting",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Moving reports whether k moves an entity.
func (k Kind) Moving() bool {
	return k == MovingNote || k == MovingElement || k == MovingAssistant
}

// Resizing reports whether k resizes an entity.
func (k Kind) Resizing() bool {
	return k == ResizingNote || k == ResizingElement || k == ResizingAssistant
}

// Exclusive reports whether k owns the pointer and disables canvas panning.
func (k Kind) Exclusive() bool {
	return k.Moving() || k.Resizing() || k == Connecting
}

// HitKind classifies what a pointer-down landed on.
type HitKind int

const (
	HitCanvas HitKind = iota
	HitMoveHandle
	HitResizeHandle
	HitConnectionNode
)

// ResizeEdge is the handle dragged during a resize.
type ResizeEdge string

const (
	ResizeRight  ResizeEdge = "right"
	ResizeBottom ResizeEdge = "bottom"
	ResizeCorner ResizeEdge = "corner"
)

func (e ResizeEdge) horizontal() bool { return e == ResizeRight || e == ResizeCorner }
func (e ResizeEdge) vertical() bool   { return e == ResizeBottom || e == ResizeCorner }

// Hit is the result of hit-testing a pointer position.
type Hit struct {
	Kind       HitKind
	EntityID   string
	EntityType models.EntityType
	Edge       models.Edge
	Resize     ResizeEdge
}

// Geometry is an entity footprint in cells.
type Geometry struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Cell returns the top-left cell.
func (g Geometry) Cell() grid.Cell { return grid.Cell{Row: g.Row, Col: g.Col} }

// Endpoint is one end of a pending connection.
type Endpoint struct {
	ID       string            `json:"id"`
	Type     models.EntityType `json:"type"`
	Position models.Edge       `json:"position"`
}

// State is the gesture state. The zero value is Idle.
type State struct {
	Kind       Kind
	TargetID   string
	TargetType models.EntityType
	Resize     ResizeEdge

	// Origin and Pointer are screen-space pointer positions.
	Origin  models.Point
	Pointer models.Point

	Start    Geometry
	Proposal Geometry

	Source  Endpoint
	Preview models.Point
}

// Event is a pointer or keyboard input.
type Event interface{ event() }

// PointerDown starts a gesture at screen point At.
type PointerDown struct {
	At  models.Point
	Hit Hit
}

// PointerMove reports a new screen pointer position.
type PointerMove struct {
	At models.Point
}

// PointerUp ends a gesture. Over is the hit under the pointer, if any.
type PointerUp struct {
	At   models.Point
	Over *Hit
}

// Cancel aborts the active gesture (Escape).
type Cancel struct{}

func (PointerDown) event() {}
func (PointerMove) event() {}
func (PointerUp) event()   {}
func (Cancel) event()      {}

// Effect is a side effect requested by a transition.
type Effect interface{ effect() }

// SetPanEnabled toggles canvas panning.
type SetPanEnabled struct{ Enabled bool }

// PanStart begins a canvas pan.
type PanStart struct{}

// PanBy translates the canvas by a screen delta.
type PanBy struct{ DX, DY float64 }

// PanStop ends a canvas pan.
type PanStop struct{}

// Commit writes a finished move or resize to the entity store.
type Commit struct {
	ID       string
	Type     models.EntityType
	Resize   bool
	Geometry Geometry
}

// AddConnection records a validated connection.
type AddConnection struct{ Connection models.Connection }

// Message is a transient user-facing notice.
type Message struct {
	Text    string
	Success bool
}

func (SetPanEnabled) effect() {}
func (PanStart) effect()      {}
func (PanBy) effect()         {}
func (PanStop) effect()       {}
func (Commit) effect()        {}
func (AddConnection) effect() {}
func (Message) effect()       {}

// Env is the read-only view of the playground a transition needs.
type Env interface {
	Grid() grid.Model
	Scale() float64
	ScreenToCanvas(p models.Point) models.Point
	Geometry(id string, t models.EntityType) (Geometry, bool)
	Validate(sourceID string, sourceType models.EntityType, targetID string, targetType models.EntityType) bool
}

// Feedback texts.
const (
	MsgConnected          = "Connection created!"
	MsgAssistantConnected = "AI assistant connection created!"
	MsgInvalid            = "Invalid connection - check connection rules"
	MsgCancelled          = "Connection cancelled - release over a connection node"
)
