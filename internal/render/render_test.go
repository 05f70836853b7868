package render

import (
	"bytes"
	"errors"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/layout"
	"github.com/starford/pinboard/internal/models"
)

func testScene() Scene {
	return Scene{
		CellSize:  grid.CellSize,
		Dashboard: grid.Default().ComputeDashboardPlacement(4000, 3000, 1000),
		Notes: []models.Note{
			{ID: "n1", Row: 10, Col: 10, Width: 20, Height: 20, Content: "look here"},
			{ID: "n2", Row: 40, Col: 10, Width: 20, Height: 20, IsDark: true},
		},
		Elements:  []models.DroppedElement{{ID: "e1", ElementID: "chart", Row: 100, Col: 10, Width: 60, Height: 40}},
		Assistant: &models.AIAssistant{ID: "a", Row: 10, Col: 600, Width: 100, Height: 70},
		Connectors: []layout.Connector{
			layout.Curve(models.Point{X: 150, Y: 100}, models.EdgeRight, models.Point{X: 3000, Y: 100}, models.EdgeLeft),
		},
	}
}

func TestPNG_Encodes(t *testing.T) {
	var buf bytes.Buffer
	if err := PNG(&buf, testScene(), DefaultOptions()); err != nil {
		t.Fatalf("PNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() <= 80 || img.Bounds().Dy() <= 80 {
		t.Errorf("image too small: %v", img.Bounds())
	}
}

func TestPNG_EmptyScene(t *testing.T) {
	err := PNG(&bytes.Buffer{}, Scene{}, DefaultOptions())
	if !errors.Is(err, ErrEmptyScene) {
		t.Fatalf("err = %v, want ErrEmptyScene", err)
	}
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.png")
	if err := WritePNG(path, testScene(), DefaultOptions()); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
}

func TestSummaryRenderer(t *testing.T) {
	if got := SummaryRenderer.Render("x", nil); got != nil {
		t.Errorf("empty dataset should render nil, got %v", got)
	}
	got := SummaryRenderer.Render("chart", Dataset{{"b": 1, "a": 2}, {"c": 3}})
	s, ok := got.(Summary)
	if !ok {
		t.Fatalf("got %T", got)
	}
	if s.Rows != 2 || len(s.Columns) != 3 || s.Columns[0] != "a" {
		t.Errorf("summary = %+v", s)
	}
}
