package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/layout"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/notetext"
	"github.com/starford/pinboard/internal/render"
)

// termRect is an inclusive rectangle of terminal cells.
type termRect struct {
	col0, row0, col1, row1 int
}

func (r termRect) contains(col, row int) bool {
	return col >= r.col0 && col <= r.col1 && row >= r.row0 && row <= r.row1
}

func (r termRect) midCol() int { return (r.col0 + r.col1) / 2 }
func (r termRect) midRow() int { return (r.row0 + r.row1) / 2 }

// node returns the terminal cell of the connection node on edge e.
func (r termRect) node(e models.Edge) (col, row int) {
	switch e {
	case models.EdgeTop:
		return r.midCol(), r.row0
	case models.EdgeBottom:
		return r.midCol(), r.row1
	case models.EdgeLeft:
		return r.col0, r.midRow()
	default:
		return r.col1, r.midRow()
	}
}

// box is an entity as laid out on the terminal.
type box struct {
	id     string
	kind   models.EntityType
	r      termRect
	title  string
	detail string
	dark   bool
}

// screen converts a terminal cell to the screen pixel at its centre.
func (m *Model) screen(col, row int) models.Point {
	return models.Point{
		X: (float64(col) + 0.5) * m.cellPx.Width,
		Y: (float64(row) + 0.5) * m.cellPx.Height,
	}
}

// termCell converts a screen pixel to a terminal cell.
func (m *Model) termCell(p models.Point) (col, row int) {
	return int(math.Floor(p.X / m.cellPx.Width)), int(math.Floor(p.Y / m.cellPx.Height))
}

// termRectOf maps a canvas rectangle through the viewport onto terminal
// cells. Every box is at least three columns by two rows so its handles stay
// reachable at low zoom.
func (m *Model) termRectOf(r models.Rect) termRect {
	vp := m.pg.Viewport()
	tl := vp.CanvasToScreen(models.Point{X: r.X, Y: r.Y})
	br := vp.CanvasToScreen(models.Point{X: r.X + r.Width, Y: r.Y + r.Height})
	out := termRect{
		col0: int(math.Floor(tl.X / m.cellPx.Width)),
		row0: int(math.Floor(tl.Y / m.cellPx.Height)),
	}
	out.col1 = max(out.col0+2, int(math.Ceil(br.X/m.cellPx.Width))-1)
	out.row1 = max(out.row0+1, int(math.Ceil(br.Y/m.cellPx.Height))-1)
	return out
}

// rectOf returns the canvas rectangle of an entity, using the uncommitted
// proposal while it is being moved or resized.
func (m *Model) rectOf(id string) (models.Rect, bool) {
	s := m.pg.State()
	if (s.Kind.Moving() || s.Kind.Resizing()) && s.TargetID == id {
		cell := float64(m.pg.Store().Grid().CellSize)
		p := s.Proposal
		return models.Rect{
			X:      float64(p.Col) * cell,
			Y:      float64(p.Row) * cell,
			Width:  float64(p.Width) * cell,
			Height: float64(p.Height) * cell,
		}, true
	}
	return m.pg.Layout().Measure(id)
}

// boxes lays out every entity in paint order: elements, notes, assistant.
func (m *Model) boxes() []box {
	var out []box
	store := m.pg.Store()
	for _, e := range store.Elements() {
		if r, ok := m.rectOf(e.ID); ok {
			out = append(out, box{id: e.ID, kind: models.EntityElement, r: m.termRectOf(r), title: e.ElementName, detail: m.elementDetail(e)})
		}
	}
	for _, n := range store.Notes() {
		r, ok := m.rectOf(n.ID)
		if !ok {
			continue
		}
		text := notetext.Parse(n.Content)
		title := text.Title
		if title == "" {
			title = "(empty)"
		}
		var tags []string
		for _, t := range text.Tags {
			tags = append(tags, "#"+t)
		}
		out = append(out, box{
			id:     n.ID,
			kind:   models.EntityNote,
			r:      m.termRectOf(r),
			title:  title,
			detail: strings.Join(tags, " "),
			dark:   n.IsDark,
		})
	}
	if a, ok := store.Assistant(); ok {
		if r, ok := m.rectOf(a.ID); ok {
			out = append(out, box{id: a.ID, kind: models.EntityAssistant, r: m.termRectOf(r), title: "AI assistant"})
		}
	}
	return out
}

// elementDetail renders the element body through the playground's widget
// renderer. Without a renderable the element type is shown.
func (m *Model) elementDetail(e models.DroppedElement) string {
	switch body := m.pg.ElementBody(e.ID, m.data[e.ElementID]).(type) {
	case render.Summary:
		return fmt.Sprintf("%d rows: %s", body.Rows, strings.Join(body.Columns, ", "))
	case fmt.Stringer:
		return body.String()
	case string:
		if body != "" {
			return body
		}
	}
	return e.ElementType
}

// hitTest classifies the terminal cell (col, row) against the topmost box:
// its bottom-right glyph is the resize handle, the edge midpoints are
// connection nodes and the rest of the box is the move handle.
func (m *Model) hitTest(col, row int) drag.Hit {
	bs := m.boxes()
	for i := len(bs) - 1; i >= 0; i-- {
		b := bs[i]
		if !b.r.contains(col, row) {
			continue
		}
		hit := drag.Hit{EntityID: b.id, EntityType: b.kind}
		if col == b.r.col1 && row == b.r.row1 {
			hit.Kind = drag.HitResizeHandle
			hit.Resize = drag.ResizeCorner
			return hit
		}
		for _, e := range models.Edges {
			if c, r := b.r.node(e); c == col && r == row {
				hit.Kind = drag.HitConnectionNode
				hit.Edge = e
				return hit
			}
		}
		hit.Kind = drag.HitMoveHandle
		return hit
	}
	return drag.Hit{Kind: drag.HitCanvas}
}

// dropTarget resolves the connection end under (col, row). Releasing
// anywhere on a box attaches to its nearest node.
func (m *Model) dropTarget(col, row int) *drag.Hit {
	bs := m.boxes()
	for i := len(bs) - 1; i >= 0; i-- {
		b := bs[i]
		if !b.r.contains(col, row) {
			continue
		}
		best, bestD := models.EdgeTop, math.MaxInt
		for _, e := range models.Edges {
			c, r := b.r.node(e)
			if d := abs(c-col) + abs(r-row); d < bestD {
				best, bestD = e, d
			}
		}
		return &drag.Hit{Kind: drag.HitConnectionNode, EntityID: b.id, EntityType: b.kind, Edge: best}
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// cursorCell returns the grid cell under the keyboard/mouse cursor.
func (m *Model) cursorCell() grid.Cell {
	p := m.pg.Viewport().ScreenToCanvas(m.screen(m.cursorX, m.cursorY))
	return m.pg.Store().Grid().PixelToCell(p.X, p.Y)
}

type borderSet struct {
	tl, tr, bl, br, h, v rune
}

var (
	noteBorder      = borderSet{'┌', '┐', '└', '┘', '─', '│'}
	darkNoteBorder  = borderSet{'┏', '┓', '┗', '┛', '━', '┃'}
	elementBorder   = borderSet{'╔', '╗', '╚', '╝', '═', '║'}
	assistantBorder = borderSet{'╭', '╮', '╰', '╯', '─', '│'}
	selectedBorder  = borderSet{'#', '#', '#', '#', '#', '#'}
)

const (
	glyphNode      = '◦'
	glyphDropNode  = '●'
	glyphResize    = '◢'
	glyphConnector = '·'
	glyphPreview   = '∘'
	glyphDashboard = '░'
	glyphCursor    = '╳'
	connectorSteps = 96
)

// render paints the playground into width×height runes.
func (m *Model) render(width, height int) []string {
	canvas := make([][]rune, height)
	for y := range canvas {
		canvas[y] = []rune(strings.Repeat(" ", width))
	}
	set := func(col, row int, r rune) {
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = r
		}
	}
	text := func(col, row, maxW int, s string) {
		i := 0
		for _, r := range s {
			if i >= maxW {
				break
			}
			set(col+i, row, r)
			i++
		}
	}

	d := m.pg.Store().Dashboard()
	if d.Width > 0 && d.Height > 0 {
		dr := m.termRectOf(models.Rect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height})
		for row := dr.row0; row <= dr.row1; row++ {
			for col := dr.col0; col <= dr.col1; col++ {
				if row == dr.row0 || row == dr.row1 || col == dr.col0 || col == dr.col1 {
					set(col, row, glyphDashboard)
				}
			}
		}
		text(dr.col0+2, dr.row0, dr.col1-dr.col0-3, " dashboard ")
	}

	vp := m.pg.Viewport()
	plot := func(c layout.Connector, glyph rune) {
		for i := 0; i <= connectorSteps; i++ {
			col, row := m.termCell(vp.CanvasToScreen(c.At(float64(i) / connectorSteps)))
			set(col, row, glyph)
		}
	}
	for _, c := range m.pg.Connectors(nil) {
		plot(c, glyphConnector)
	}
	if c, ok := m.pg.Preview(); ok {
		plot(c, glyphPreview)
	}

	s := m.pg.State()
	for _, b := range m.boxes() {
		bs := noteBorder
		switch {
		case s.TargetID == b.id || m.selectedID == b.id:
			bs = selectedBorder
		case b.kind == models.EntityElement:
			bs = elementBorder
		case b.kind == models.EntityAssistant:
			bs = assistantBorder
		case b.dark:
			bs = darkNoteBorder
		}
		r := b.r
		for row := r.row0; row <= r.row1; row++ {
			for col := r.col0; col <= r.col1; col++ {
				var g rune = ' '
				switch {
				case row == r.row0 && col == r.col0:
					g = bs.tl
				case row == r.row0 && col == r.col1:
					g = bs.tr
				case row == r.row1 && col == r.col0:
					g = bs.bl
				case row == r.row1 && col == r.col1:
					g = bs.br
				case row == r.row0 || row == r.row1:
					g = bs.h
				case col == r.col0 || col == r.col1:
					g = bs.v
				}
				set(col, row, g)
			}
		}
		inner := r.col1 - r.col0 - 1
		if r.row1-r.row0 >= 2 {
			text(r.col0+1, r.row0+1, inner, b.title)
			if r.row1-r.row0 >= 3 {
				text(r.col0+1, r.row0+2, inner, b.detail)
			}
		} else {
			text(r.col0+1, r.row0, inner, b.title)
		}

		node := glyphNode
		if m.pg.ValidDropTarget(b.id, b.kind) {
			node = glyphDropNode
		}
		for _, e := range models.Edges {
			col, row := r.node(e)
			set(col, row, node)
		}
		set(r.col1, r.row1, glyphResize)
	}

	if m.showCursor && m.cursorY < height && m.cursorX < width && canvas[m.cursorY][m.cursorX] == ' ' {
		canvas[m.cursorY][m.cursorX] = glyphCursor
	}

	lines := make([]string, height)
	for i, row := range canvas {
		lines[i] = string(row)
	}
	return lines
}
