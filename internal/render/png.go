package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/layout"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/notetext"
)

// ErrEmptyScene is returned when there is nothing to draw.
var ErrEmptyScene = errors.New("render: nothing to export")

// Scene is everything drawn by an export, in canvas pixels.
type Scene struct {
	CellSize   int
	Dashboard  grid.Placement
	Notes      []models.Note
	Elements   []models.DroppedElement
	Assistant  *models.AIAssistant
	Connectors []layout.Connector
}

// Options control the raster output.
type Options struct {
	Scale    float64
	Padding  float64
	FontSize float64
}

// DefaultOptions returns a quarter-scale export with a small margin.
func DefaultOptions() Options {
	return Options{Scale: 0.25, Padding: 40, FontSize: 12}
}

var (
	colBackground = color.White
	colDashboard  = color.RGBA{R: 0xe5, G: 0xe7, B: 0xeb, A: 0xff}
	colNote       = color.RGBA{R: 0xfe, G: 0xf0, B: 0x8a, A: 0xff}
	colNoteDark   = color.RGBA{R: 0x37, G: 0x41, B: 0x51, A: 0xff}
	colElement    = color.RGBA{R: 0xdb, G: 0xea, B: 0xfe, A: 0xff}
	colAssistant  = color.RGBA{R: 0xed, G: 0xe9, B: 0xfe, A: 0xff}
	colStroke     = color.Black
	colConnector  = color.RGBA{R: 0x25, G: 0x63, B: 0xeb, A: 0xff}
	colImplicit   = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
)

type bounds struct{ minX, minY, maxX, maxY float64 }

func (b *bounds) add(r models.Rect) {
	b.minX = math.Min(b.minX, r.X)
	b.minY = math.Min(b.minY, r.Y)
	b.maxX = math.Max(b.maxX, r.X+r.Width)
	b.maxY = math.Max(b.maxY, r.Y+r.Height)
}

func (s Scene) rect(row, col, w, h int) models.Rect {
	c := float64(s.CellSize)
	return models.Rect{X: float64(col) * c, Y: float64(row) * c, Width: float64(w) * c, Height: float64(h) * c}
}

func (s Scene) dashboardRect() (models.Rect, bool) {
	d := s.Dashboard
	if d.Bounds.Empty() || d.Width <= 0 || d.Height <= 0 {
		return models.Rect{}, false
	}
	return models.Rect{X: d.X, Y: d.Y, Width: d.Width, Height: d.Height}, true
}

func (s Scene) extent() (bounds, bool) {
	b := bounds{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	found := false
	if r, ok := s.dashboardRect(); ok {
		b.add(r)
		found = true
	}
	for _, n := range s.Notes {
		b.add(s.rect(n.Row, n.Col, n.Width, n.Height))
		found = true
	}
	for _, e := range s.Elements {
		b.add(s.rect(e.Row, e.Col, e.Width, e.Height))
		found = true
	}
	if a := s.Assistant; a != nil {
		b.add(s.rect(a.Row, a.Col, a.Width, a.Height))
		found = true
	}
	return b, found
}

// PNG rasterises scene and writes it to w.
func PNG(w io.Writer, scene Scene, opts Options) error {
	dc, err := draw(scene, opts)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

// WritePNG rasterises scene into the file at path.
func WritePNG(path string, scene Scene, opts Options) error {
	dc, err := draw(scene, opts)
	if err != nil {
		return err
	}
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("render: save %s: %w", path, err)
	}
	return nil
}

func draw(scene Scene, opts Options) (*gg.Context, error) {
	if scene.CellSize <= 0 {
		scene.CellSize = grid.CellSize
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	ext, ok := scene.extent()
	if !ok {
		return nil, ErrEmptyScene
	}

	width := int(math.Ceil((ext.maxX-ext.minX)*opts.Scale + 2*opts.Padding))
	height := int(math.Ceil((ext.maxY-ext.minY)*opts.Scale + 2*opts.Padding))

	dc := gg.NewContext(width, height)
	dc.SetColor(colBackground)
	dc.Clear()

	ttf, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: parse font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(ttf, &truetype.Options{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	}))

	// Canvas pixels to image pixels.
	dc.Translate(opts.Padding, opts.Padding)
	tx := func(x float64) float64 { return (x - ext.minX) * opts.Scale }
	ty := func(y float64) float64 { return (y - ext.minY) * opts.Scale }
	box := func(r models.Rect, fill color.Color) {
		dc.DrawRectangle(tx(r.X), ty(r.Y), r.Width*opts.Scale, r.Height*opts.Scale)
		dc.SetColor(fill)
		dc.FillPreserve()
		dc.SetColor(colStroke)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
	label := func(r models.Rect, text string, c color.Color) {
		if text == "" {
			return
		}
		dc.SetColor(c)
		dc.DrawStringWrapped(text, tx(r.X)+4, ty(r.Y)+4, 0, 0, math.Max(r.Width*opts.Scale-8, 1), 1.2, gg.AlignLeft)
	}

	if r, ok := scene.dashboardRect(); ok {
		box(r, colDashboard)
		label(r, "dashboard", colStroke)
	}

	for _, c := range scene.Connectors {
		dc.MoveTo(tx(c.From.X), ty(c.From.Y))
		dc.CubicTo(tx(c.C1.X), ty(c.C1.Y), tx(c.C2.X), ty(c.C2.Y), tx(c.To.X), ty(c.To.Y))
		if c.Implicit {
			dc.SetColor(colImplicit)
			dc.SetDash(4, 3)
		} else {
			dc.SetColor(colConnector)
			dc.SetDash()
		}
		dc.SetLineWidth(2)
		dc.Stroke()
	}
	dc.SetDash()

	for _, e := range scene.Elements {
		r := scene.rect(e.Row, e.Col, e.Width, e.Height)
		box(r, colElement)
		name := e.ElementName
		if name == "" {
			name = e.ElementID
		}
		label(r, name, colStroke)
	}
	if a := scene.Assistant; a != nil {
		r := scene.rect(a.Row, a.Col, a.Width, a.Height)
		box(r, colAssistant)
		label(r, "AI assistant", colStroke)
	}
	for _, n := range scene.Notes {
		r := scene.rect(n.Row, n.Col, n.Width, n.Height)
		fill, ink := color.Color(colNote), color.Color(colStroke)
		if n.IsDark {
			fill, ink = colNoteDark, color.White
		}
		box(r, fill)
		label(r, notetext.Title(n.Content), ink)
	}
	return dc, nil
}
