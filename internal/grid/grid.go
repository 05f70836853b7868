// Package grid implements the snapped cell grid shared by the dashboard and
// every entity placed around it: dashboard placement, pixel/cell conversion
// and occupancy sets.
package grid

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Defaults used when a Model is not configured explicitly.
const (
	CellSize               = 5
	DashboardWidth         = 1600
	DefaultDashboardHeight = 1600
)

// Cell is one (row, col) unit of the grid.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Key returns the canonical "row-col" form.
func (c Cell) Key() string {
	return strconv.Itoa(c.Row) + "-" + strconv.Itoa(c.Col)
}

func (c Cell) String() string { return c.Key() }

// ParseKey parses a "row-col" key.
func ParseKey(key string) (Cell, error) {
	row, col, ok := strings.Cut(key, "-")
	if !ok {
		return Cell{}, fmt.Errorf("grid: parse key %q: missing separator", key)
	}
	r, err := strconv.Atoi(row)
	if err != nil {
		return Cell{}, fmt.Errorf("grid: parse key %q: %w", key, err)
	}
	c, err := strconv.Atoi(col)
	if err != nil {
		return Cell{}, fmt.Errorf("grid: parse key %q: %w", key, err)
	}
	return Cell{Row: r, Col: c}, nil
}

// Bounds is an inclusive rectangle of cells.
type Bounds struct {
	StartRow int `json:"startRow"`
	EndRow   int `json:"endRow"`
	StartCol int `json:"startCol"`
	EndCol   int `json:"endCol"`
}

// Contains reports whether c lies inside b.
func (b Bounds) Contains(c Cell) bool {
	return c.Row >= b.StartRow && c.Row <= b.EndRow && c.Col >= b.StartCol && c.Col <= b.EndCol
}

// Empty reports whether b covers no cells.
func (b Bounds) Empty() bool {
	return b.EndRow < b.StartRow || b.EndCol < b.StartCol
}

// Placement is the derived position of the dashboard on the grid.
type Placement struct {
	Bounds    Bounds  `json:"bounds"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	CellsWide int     `json:"cellsWide"`
	CellsHigh int     `json:"cellsHigh"`
}

// Center returns the pixel centre of the dashboard.
func (p Placement) Center() (x, y float64) {
	return p.X + p.Width/2, p.Y + p.Height/2
}

// Area is the rectangular footprint of a placed entity in cells.
type Area struct {
	ID     string
	Row    int
	Col    int
	Width  int
	Height int
}

// Model carries the grid geometry. The zero value is not usable; use Default.
type Model struct {
	CellSize       int
	DashboardWidth float64
	DefaultHeight  float64
}

// Default returns the model built from the package constants.
func Default() Model {
	return Model{
		CellSize:       CellSize,
		DashboardWidth: DashboardWidth,
		DefaultHeight:  DefaultDashboardHeight,
	}
}

// Dimensions returns the number of whole rows and columns that fit the canvas.
func (m Model) Dimensions(canvasW, canvasH float64) (rows, cols int) {
	cell := float64(m.CellSize)
	return int(math.Floor(canvasH / cell)), int(math.Floor(canvasW / cell))
}

// ComputeDashboardPlacement centres the dashboard's cell span on the canvas
// grid. A non-positive measuredHeight falls back to the default estimate.
func (m Model) ComputeDashboardPlacement(canvasW, canvasH, measuredHeight float64) Placement {
	cell := float64(m.CellSize)
	rows, cols := m.Dimensions(canvasW, canvasH)

	height := measuredHeight
	if height <= 0 {
		height = m.DefaultHeight
	}

	cellsWide := int(math.Ceil(m.DashboardWidth / cell))
	cellsHigh := int(math.Ceil(height / cell))

	startRow := max(0, rows/2-cellsHigh/2)
	startCol := max(0, cols/2-cellsWide/2)
	endRow := min(rows-1, startRow+cellsHigh-1)
	endCol := min(cols-1, startCol+cellsWide-1)

	return Placement{
		Bounds: Bounds{
			StartRow: startRow,
			EndRow:   endRow,
			StartCol: startCol,
			EndCol:   endCol,
		},
		X:         float64(startCol)*cell + (float64(cellsWide)*cell-m.DashboardWidth)/2,
		Y:         float64(startRow)*cell + (float64(cellsHigh)*cell-height)/2,
		Width:     m.DashboardWidth,
		Height:    height,
		CellsWide: cellsWide,
		CellsHigh: cellsHigh,
	}
}

// PixelToCell floors a pixel position to the cell containing it.
func (m Model) PixelToCell(x, y float64) Cell {
	cell := float64(m.CellSize)
	return Cell{Row: int(math.Floor(y / cell)), Col: int(math.Floor(x / cell))}
}

// CellToPixel returns the top-left pixel of c.
func (m Model) CellToPixel(c Cell) (x, y float64) {
	return float64(c.Col * m.CellSize), float64(c.Row * m.CellSize)
}

// SnapToCell rounds a pixel position to the nearest cell boundary.
func (m Model) SnapToCell(x, y float64) Cell {
	cell := float64(m.CellSize)
	return Cell{Row: int(math.Round(y / cell)), Col: int(math.Round(x / cell))}
}

// Cells converts a pixel length to a whole number of cells, rounding to nearest.
func (m Model) Cells(px float64) int {
	return int(math.Round(px / float64(m.CellSize)))
}

// ComputeOccupancy unions the dashboard cells with every area's cells.
// The area whose ID equals excludingID is skipped so a dragged entity does not
// block its own preview.
func (m Model) ComputeOccupancy(dashboard Placement, areas []Area, excludingID string) Set {
	occ := make(Set)
	if !dashboard.Bounds.Empty() {
		b := dashboard.Bounds
		occ.AddRect(b.StartRow, b.StartCol, b.EndCol-b.StartCol+1, b.EndRow-b.StartRow+1)
	}
	for _, a := range areas {
		if excludingID != "" && a.ID == excludingID {
			continue
		}
		occ.AddRect(a.Row, a.Col, a.Width, a.Height)
	}
	return occ
}

// Set is a set of occupied cells.
type Set map[Cell]struct{}

// Add marks c as occupied.
func (s Set) Add(c Cell) { s[c] = struct{}{} }

// AddRect marks width x height cells starting at (row, col).
func (s Set) AddRect(row, col, width, height int) {
	for r := row; r < row+height; r++ {
		for c := col; c < col+width; c++ {
			s[Cell{Row: r, Col: c}] = struct{}{}
		}
	}
}

// Has reports whether c is occupied.
func (s Set) Has(c Cell) bool {
	_, ok := s[c]
	return ok
}

// HasKey reports whether the cell with the given "row-col" key is occupied.
func (s Set) HasKey(key string) bool {
	c, err := ParseKey(key)
	if err != nil {
		return false
	}
	return s.Has(c)
}

// Len returns the number of occupied cells.
func (s Set) Len() int { return len(s) }

// Keys returns the sorted "row-col" keys.
func (s Set) Keys() []string {
	cells := make([]Cell, 0, len(s))
	for c := range s {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})
	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = c.Key()
	}
	return keys
}

// IsFree reports whether c can host a newly placed note. Dashboard cells are
// always reserved; other occupied cells only block when strict is set.
func IsFree(dashboard Placement, occ Set, c Cell, strict bool) bool {
	if c.Row < 0 || c.Col < 0 {
		return false
	}
	if dashboard.Bounds.Contains(c) {
		return false
	}
	if strict {
		return !occ.Has(c)
	}
	return true
}
