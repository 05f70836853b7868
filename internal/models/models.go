// Package models defines the domain types for the pinboard playground.
package models

import (
	"encoding/json"
	"time"
)

// EntityType identifies the kind of entity on either end of a connection.
type EntityType string

const (
	EntityNote      EntityType = "note"
	EntityElement   EntityType = "element"
	EntityAssistant EntityType = "ai-assistant"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityNote, EntityElement, EntityAssistant:
		return true
	}
	return false
}

// Edge is the side of an entity a connection node sits on.
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeRight  Edge = "right"
	EdgeBottom Edge = "bottom"
	EdgeLeft   Edge = "left"
)

// Edges lists every edge in clockwise order starting at the top.
var Edges = []Edge{EdgeTop, EdgeRight, EdgeBottom, EdgeLeft}

// Valid reports whether e is a known edge.
func (e Edge) Valid() bool {
	switch e {
	case EdgeTop, EdgeRight, EdgeBottom, EdgeLeft:
		return true
	}
	return false
}

// Default and minimum sizes, in cells.
const (
	NoteDefaultWidth  = 2
	NoteDefaultHeight = 2
	NoteMinSize       = 1
	NoteMaxSize       = 200

	ElementDefaultWidth  = 60
	ElementDefaultHeight = 40
	ElementMinWidth      = 40
	ElementMinHeight     = 30
	ElementMaxSize       = 400

	AssistantDefaultWidth  = 100
	AssistantDefaultHeight = 70
	AssistantMinWidth      = 80
	AssistantMinHeight     = 60
	AssistantMaxWidth      = 400
	AssistantMaxHeight     = 300
)

// Note is a sticky note placed on the grid.
type Note struct {
	ID              string    `json:"id"`
	Row             int       `json:"row"`
	Col             int       `json:"col"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Content         string    `json:"content"`
	IsDark          bool      `json:"isDark"`
	CreatedAt       time.Time `json:"createdAt"`
	LinkedElementID string    `json:"linkedElementId,omitempty"`
	IsLinked        bool      `json:"isLinked"`
}

// DroppedElement is a copy of a dashboard widget placed on the grid.
type DroppedElement struct {
	ID          string          `json:"id"`
	ElementID   string          `json:"elementId"`
	ElementName string          `json:"elementName"`
	ElementType string          `json:"elementType"`
	Row         int             `json:"row"`
	Col         int             `json:"col"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Width       int             `json:"width"`
	Height      int             `json:"height"`
	VegaSpec    json.RawMessage `json:"vegaSpec,omitempty"`
}

// ElementRef describes the dashboard widget being duplicated by a drop.
type ElementRef struct {
	ElementID   string          `json:"elementId"`
	ElementName string          `json:"elementName"`
	ElementType string          `json:"elementType"`
	VegaSpec    json.RawMessage `json:"vegaSpec,omitempty"`
}

// ConnectedRef is an entry in the assistant's connected set.
type ConnectedRef struct {
	ID   string     `json:"id"`
	Type EntityType `json:"type"`
}

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// AIAssistant is the singleton assistant panel.
type AIAssistant struct {
	ID          string         `json:"id"`
	Row         int            `json:"row"`
	Col         int            `json:"col"`
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	CreatedAt   time.Time      `json:"createdAt"`
	Connected   []ConnectedRef `json:"connectedElements"`
	ChatHistory []ChatMessage  `json:"chatHistory,omitempty"`
	ShowContext bool           `json:"showContext"`
}

// HasConnected reports whether ref is in the assistant's connected set.
func (a *AIAssistant) HasConnected(id string, t EntityType) bool {
	for _, c := range a.Connected {
		if c.ID == id && c.Type == t {
			return true
		}
	}
	return false
}

// Connection is a manual, user-drawn edge. Source and target roles are kept
// for rendering; validity treats the pair as unordered.
type Connection struct {
	ID             string     `json:"id"`
	SourceID       string     `json:"sourceId"`
	SourceType     EntityType `json:"sourceType"`
	SourcePosition Edge       `json:"sourcePosition"`
	TargetID       string     `json:"targetId"`
	TargetType     EntityType `json:"targetType"`
	TargetPosition Edge       `json:"targetPosition"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Touches reports whether id is either endpoint.
func (c Connection) Touches(id string) bool {
	return c.SourceID == id || c.TargetID == id
}

// Other returns the endpoint opposite id.
func (c Connection) Other(id string) (string, EntityType) {
	if c.SourceID == id {
		return c.TargetID, c.TargetType
	}
	return c.SourceID, c.SourceType
}

// SamePair reports whether c joins a and b in either order.
func (c Connection) SamePair(a, b string) bool {
	return (c.SourceID == a && c.TargetID == b) || (c.SourceID == b && c.TargetID == a)
}

// Point is a pixel position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a pixel size.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned pixel rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the rectangle's midpoint.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width && p.Y >= r.Y && p.Y <= r.Y+r.Height
}
