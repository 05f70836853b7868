package drag

import (
	"math"

	"github.com/starford/pinboard/internal/models"
)

type limits struct {
	minW, minH int
	maxW, maxH int
}

func limitsFor(t models.EntityType) limits {
	switch t {
	case models.EntityElement:
		return limits{models.ElementMinWidth, models.ElementMinHeight, models.ElementMaxSize, models.ElementMaxSize}
	case models.EntityAssistant:
		return limits{models.AssistantMinWidth, models.AssistantMinHeight, models.AssistantMaxWidth, models.AssistantMaxHeight}
	default:
		return limits{models.NoteMinSize, models.NoteMinSize, models.NoteMaxSize, models.NoteMaxSize}
	}
}

// snap converts a canvas pixel offset to cells. Dropped elements floor like
// their drop target; notes and the assistant round to the nearest cell.
func snap(t models.EntityType, px float64, cell int) int {
	v := px / float64(cell)
	if t == models.EntityElement {
		return int(math.Floor(v))
	}
	return int(math.Round(v))
}

func gestureKind(h Hit) (Kind, bool) {
	switch h.Kind {
	case HitMoveHandle:
		switch h.EntityType {
		case models.EntityNote:
			return MovingNote, true
		case models.EntityElement:
			return MovingElement, true
		case models.EntityAssistant:
			return MovingAssistant, true
		}
	case HitResizeHandle:
		switch h.EntityType {
		case models.EntityNote:
			return ResizingNote, true
		case models.EntityElement:
			return ResizingElement, true
		case models.EntityAssistant:
			return ResizingAssistant, true
		}
	case HitConnectionNode:
		return Connecting, h.EntityType.Valid() && h.Edge.Valid()
	case HitCanvas:
		return Panning, true
	}
	return Idle, false
}

// Step applies ev to s and returns the next state with the effects to run.
// Step never mutates anything; effects are the only way a transition reaches
// the playground.
func Step(s State, ev Event, env Env) (State, []Effect) {
	switch e := ev.(type) {
	case PointerDown:
		return pointerDown(s, e, env)
	case PointerMove:
		return pointerMove(s, e, env)
	case PointerUp:
		return pointerUp(s, e, env)
	case Cancel:
		return cancel(s)
	}
	return s, nil
}

func pointerDown(s State, e PointerDown, env Env) (State, []Effect) {
	if s.Kind != Idle {
		return s, nil
	}
	kind, ok := gestureKind(e.Hit)
	if !ok {
		return s, nil
	}

	next := State{Kind: kind, Origin: e.At, Pointer: e.At}
	switch {
	case kind == Panning:
		return next, []Effect{PanStart{}}

	case kind == Connecting:
		next.Source = Endpoint{ID: e.Hit.EntityID, Type: e.Hit.EntityType, Position: e.Hit.Edge}
		next.Preview = env.ScreenToCanvas(e.At)
		return next, []Effect{SetPanEnabled{Enabled: false}}

	default:
		geo, found := env.Geometry(e.Hit.EntityID, e.Hit.EntityType)
		if !found {
			return s, nil
		}
		next.TargetID = e.Hit.EntityID
		next.TargetType = e.Hit.EntityType
		next.Start = geo
		next.Proposal = geo
		if kind.Resizing() {
			next.Resize = e.Hit.Resize
			if next.Resize == "" {
				next.Resize = ResizeCorner
			}
		}
		return next, []Effect{SetPanEnabled{Enabled: false}}
	}
}

func pointerMove(s State, e PointerMove, env Env) (State, []Effect) {
	switch {
	case s.Kind == Idle:
		return s, nil

	case s.Kind == Panning:
		dx, dy := e.At.X-s.Pointer.X, e.At.Y-s.Pointer.Y
		s.Pointer = e.At
		if dx == 0 && dy == 0 {
			return s, nil
		}
		return s, []Effect{PanBy{DX: dx, DY: dy}}

	case s.Kind == Connecting:
		s.Pointer = e.At
		s.Preview = env.ScreenToCanvas(e.At)
		return s, nil
	}

	s.Pointer = e.At
	s.Proposal = propose(s, env)
	return s, nil
}

// propose computes the snapped geometry for the current pointer. The pointer
// delta is divided by the zoom scale before it is added to the start position.
func propose(s State, env Env) Geometry {
	scale := env.Scale()
	if scale <= 0 {
		scale = 1
	}
	cell := env.Grid().CellSize
	dx := (s.Pointer.X - s.Origin.X) / scale
	dy := (s.Pointer.Y - s.Origin.Y) / scale

	p := s.Start
	if s.Kind.Moving() {
		x := float64(s.Start.Col*cell) + dx
		y := float64(s.Start.Row*cell) + dy
		p.Col = max(0, snap(s.TargetType, x, cell))
		p.Row = max(0, snap(s.TargetType, y, cell))
		return p
	}

	lim := limitsFor(s.TargetType)
	if s.Resize.horizontal() {
		p.Width = max(lim.minW, min(lim.maxW, s.Start.Width+snap(s.TargetType, dx, cell)))
	}
	if s.Resize.vertical() {
		p.Height = max(lim.minH, min(lim.maxH, s.Start.Height+snap(s.TargetType, dy, cell)))
	}
	return p
}

func pointerUp(s State, e PointerUp, env Env) (State, []Effect) {
	switch {
	case s.Kind == Idle:
		return s, nil

	case s.Kind == Panning:
		return State{}, []Effect{PanStop{}}

	case s.Kind == Connecting:
		return State{}, append(connect(s, e, env), SetPanEnabled{Enabled: true})
	}

	effects := make([]Effect, 0, 2)
	if s.Proposal != s.Start {
		effects = append(effects, Commit{
			ID:       s.TargetID,
			Type:     s.TargetType,
			Resize:   s.Kind.Resizing(),
			Geometry: s.Proposal,
		})
	}
	return State{}, append(effects, SetPanEnabled{Enabled: true})
}

func connect(s State, e PointerUp, env Env) []Effect {
	if e.Over == nil || e.Over.Kind != HitConnectionNode || e.Over.EntityID == "" {
		return []Effect{Message{Text: MsgCancelled}}
	}
	src, dst := s.Source, e.Over
	if !env.Validate(src.ID, src.Type, dst.EntityID, dst.EntityType) {
		return []Effect{Message{Text: MsgInvalid}}
	}
	msg := MsgConnected
	if src.Type == models.EntityAssistant || dst.EntityType == models.EntityAssistant {
		msg = MsgAssistantConnected
	}
	return []Effect{
		AddConnection{Connection: models.Connection{
			SourceID:       src.ID,
			SourceType:     src.Type,
			SourcePosition: src.Position,
			TargetID:       dst.EntityID,
			TargetType:     dst.EntityType,
			TargetPosition: dst.Edge,
		}},
		Message{Text: msg, Success: true},
	}
}

func cancel(s State) (State, []Effect) {
	switch {
	case s.Kind == Idle:
		return s, nil
	case s.Kind == Panning:
		return State{}, []Effect{PanStop{}}
	}
	return State{}, []Effect{SetPanEnabled{Enabled: true}}
}
