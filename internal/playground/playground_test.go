package playground

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/graph"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newPlayground(t *testing.T) (*Controller, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	cfg := DefaultConfig()
	cfg.HitTolerance = 2
	pg := New(
		WithConfig(cfg),
		WithClock(clk.now),
		WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s-%d", prefix, seq)
		}),
	)
	pg.Resize(4000, 3000)
	return pg, clk
}

// bigNote places a 10x10 note at (5,5): canvas rect (25,25)-(75,75).
func bigNote(t *testing.T, pg *Controller) models.Note {
	t.Helper()
	n, err := pg.PlaceNote(grid.Cell{Row: 5, Col: 5})
	require.NoError(t, err)
	require.NoError(t, pg.Store().ResizeNote(n.ID, 10, 10))
	n, _ = pg.Store().Note(n.ID)
	return n
}

func screen(pg *Controller, x, y float64) models.Point {
	return pg.Viewport().CanvasToScreen(models.Point{X: x, Y: y})
}

func TestPlaceNote_Occupancy(t *testing.T) {
	pg, _ := newPlayground(t)
	_, err := pg.PlaceNote(grid.Cell{Row: 10, Col: 10})
	require.NoError(t, err)

	occ := pg.Occupancy()
	for _, key := range []string{"10-10", "10-11", "11-10", "11-11"} {
		assert.True(t, occ.HasKey(key), key)
	}
	assert.False(t, occ.HasKey("12-12"))
	assert.False(t, occ.HasKey("9-10"))
}

func TestPlaceNoteAt_DashboardReserved(t *testing.T) {
	pg, _ := newPlayground(t)
	d := pg.Store().Dashboard()
	_, placed, err := pg.PlaceNoteAt(screen(pg, d.X+100, d.Y+100))
	assert.False(t, placed)
	assert.ErrorIs(t, err, apperr.ErrCellOccupied)
	assert.Empty(t, pg.Store().Notes())
}

func TestPlaceNoteAt_UsesZoom(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n, placed, err := pg.PlaceNoteAt(models.Point{X: 25, Y: 50})
	require.NoError(t, err)
	require.True(t, placed)
	assert.Equal(t, 20, n.Row)
	assert.Equal(t, 10, n.Col)
}

func TestHitTest(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)

	hit := pg.HitTest(screen(pg, 50, 50))
	assert.Equal(t, drag.HitMoveHandle, hit.Kind)
	assert.Equal(t, n.ID, hit.EntityID)

	hit = pg.HitTest(screen(pg, 75, 50))
	assert.Equal(t, drag.HitConnectionNode, hit.Kind)
	assert.Equal(t, models.EdgeRight, hit.Edge)

	hit = pg.HitTest(screen(pg, 74, 74))
	assert.Equal(t, drag.HitResizeHandle, hit.Kind)
	assert.Equal(t, drag.ResizeCorner, hit.Resize)

	hit = pg.HitTest(screen(pg, 500, 500))
	assert.Equal(t, drag.HitCanvas, hit.Kind)
}

func TestMoveNote_ZoomCorrected(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)

	start := screen(pg, 50, 50)
	pg.PointerDown(start)
	require.Equal(t, drag.MovingNote, pg.State().Kind)
	assert.False(t, pg.Viewport().PanEnabled())

	pg.PointerMove(models.Point{X: start.X + 40, Y: start.Y})
	proposal, ok := pg.Proposal()
	require.True(t, ok)
	assert.Equal(t, 5+16, proposal.Col, "40px / 0.5 scale / 5px cells")

	stored, _ := pg.Store().Note(n.ID)
	assert.Equal(t, 5, stored.Col, "nothing committed before pointer-up")

	pg.PointerUp(models.Point{X: start.X + 40, Y: start.Y})
	assert.Equal(t, drag.Idle, pg.State().Kind)
	assert.True(t, pg.Viewport().PanEnabled())
	stored, _ = pg.Store().Note(n.ID)
	assert.Equal(t, 21, stored.Col)
	assert.Equal(t, 5, stored.Row)
}

func TestResizeNote_Gesture(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)

	start := screen(pg, 74, 74)
	pg.PointerDown(start)
	require.Equal(t, drag.ResizingNote, pg.State().Kind)
	pg.PointerMove(models.Point{X: start.X + 20, Y: start.Y + 20})
	pg.PointerUp(models.Point{X: start.X + 20, Y: start.Y + 20})

	stored, _ := pg.Store().Note(n.ID)
	assert.Equal(t, 18, stored.Width)
	assert.Equal(t, 18, stored.Height)
}

func TestEscapeDiscardsMove(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)
	rev := pg.Store().Revision()

	start := screen(pg, 50, 50)
	pg.PointerDown(start)
	pg.PointerMove(models.Point{X: start.X + 100, Y: start.Y + 100})
	assert.True(t, pg.Key(KeyEscape))

	assert.Equal(t, drag.Idle, pg.State().Kind)
	assert.True(t, pg.Viewport().PanEnabled())
	stored, _ := pg.Store().Note(n.ID)
	assert.Equal(t, n.Row, stored.Row)
	assert.Equal(t, n.Col, stored.Col)
	assert.Equal(t, rev, pg.Store().Revision())
	assert.False(t, pg.Key(KeyEscape), "idle escape is not consumed")
}

func TestConnectGesture(t *testing.T) {
	pg, clk := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)
	e, err := pg.DropElement(models.ElementRef{ElementID: "revenue", ElementName: "Revenue"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)

	pg.PointerDown(screen(pg, 75, 50))
	require.Equal(t, drag.Connecting, pg.State().Kind)
	assert.True(t, pg.ValidDropTarget(e.ID, models.EntityElement))
	assert.False(t, pg.ValidDropTarget(n.ID, models.EntityNote))

	target := screen(pg, 200, 125)
	pg.PointerMove(target)
	preview, ok := pg.Preview()
	require.True(t, ok)
	assert.InDelta(t, 200, preview.To.X, 0.001)
	assert.InDelta(t, 125, preview.To.Y, 0.001)

	pg.PointerUp(target)
	assert.Equal(t, drag.Idle, pg.State().Kind)
	require.Equal(t, 1, pg.Graph().Len())

	info, ok := pg.LinkedElementInfo(n.ID)
	require.True(t, ok)
	assert.Equal(t, graph.LinkInfo{ElementID: e.ID, Source: graph.LinkManual}, info)
	assert.True(t, pg.IsElementLinked(e.ID))

	msg, ok := pg.Message(clk.now())
	require.True(t, ok)
	assert.Equal(t, drag.MsgConnected, msg.Text)
	assert.True(t, msg.Success)

	assert.Len(t, pg.Connectors(nil), 1)

	clk.advance(2 * time.Second)
	assert.True(t, pg.Tick(clk.now()))
	_, ok = pg.Message(clk.now())
	assert.False(t, ok)
}

func TestConnectGesture_SourceDeletedMidGesture(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)
	_, err := pg.DropElement(models.ElementRef{ElementID: "revenue", ElementName: "Revenue"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)

	pg.PointerDown(screen(pg, 75, 50))
	require.Equal(t, drag.Connecting, pg.State().Kind)
	require.NoError(t, pg.DeleteNote(n.ID))
	assert.Equal(t, drag.Idle, pg.State().Kind)
	assert.True(t, pg.Viewport().PanEnabled())

	pg.PointerUp(screen(pg, 200, 125))
	assert.Equal(t, 0, pg.Graph().Len())
}

func TestMoveGesture_TargetDeletedMidGesture(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	n := bigNote(t, pg)
	other, err := pg.PlaceNote(grid.Cell{Row: 30, Col: 30})
	require.NoError(t, err)

	pg.PointerDown(screen(pg, 50, 50))
	require.Equal(t, drag.MovingNote, pg.State().Kind)
	require.NoError(t, pg.DeleteNote(other.ID))
	assert.Equal(t, drag.MovingNote, pg.State().Kind)

	require.NoError(t, pg.DeleteNote(n.ID))
	assert.Equal(t, drag.Idle, pg.State().Kind)
}

func TestApply_AddConnectionNeedsBothEndpoints(t *testing.T) {
	pg, clk := newPlayground(t)
	e, err := pg.DropElement(models.ElementRef{ElementID: "revenue", ElementName: "Revenue"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)

	pg.apply([]drag.Effect{
		drag.AddConnection{Connection: models.Connection{
			SourceID:       "note-gone",
			SourceType:     models.EntityNote,
			SourcePosition: models.EdgeRight,
			TargetID:       e.ID,
			TargetType:     models.EntityElement,
			TargetPosition: models.EdgeLeft,
		}},
		drag.Message{Text: drag.MsgConnected, Success: true},
	}, clk.now())

	assert.Equal(t, 0, pg.Graph().Len())
	msg, ok := pg.Message(clk.now())
	require.True(t, ok)
	assert.Equal(t, drag.MsgInvalid, msg.Text)
	assert.False(t, msg.Success)
}

func TestConnectGesture_ReleaseOnEmptySpace(t *testing.T) {
	pg, clk := newPlayground(t)
	pg.SetZoom(0.5)
	bigNote(t, pg)

	pg.PointerDown(screen(pg, 75, 50))
	pg.PointerUp(screen(pg, 900, 900))

	assert.Equal(t, 0, pg.Graph().Len())
	msg, ok := pg.Message(clk.now())
	require.True(t, ok)
	assert.Equal(t, drag.MsgCancelled, msg.Text)
	assert.False(t, msg.Success)
}

func TestConnectGesture_EscapeCancels(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(0.5)
	bigNote(t, pg)

	pg.PointerDown(screen(pg, 75, 50))
	require.Equal(t, drag.Connecting, pg.State().Kind)
	pg.Key(KeyEscape)

	assert.Equal(t, drag.Idle, pg.State().Kind)
	assert.Equal(t, 0, pg.Graph().Len())
	_, ok := pg.Preview()
	assert.False(t, ok)
}

func TestRemoveConnection_ClearsLinks(t *testing.T) {
	pg, _ := newPlayground(t)
	n := bigNote(t, pg)
	e, _ := pg.DropElement(models.ElementRef{ElementID: "revenue"}, grid.Cell{Row: 5, Col: 40})
	c := pg.Graph().Add(models.Connection{
		SourceID: n.ID, SourceType: models.EntityNote, SourcePosition: models.EdgeRight,
		TargetID: e.ID, TargetType: models.EntityElement, TargetPosition: models.EdgeLeft,
	})

	assert.True(t, pg.RemoveConnection(c.ID))
	assert.False(t, pg.IsElementLinked(e.ID))
	_, ok := pg.LinkedElementInfo(n.ID)
	assert.False(t, ok)
	stored, _ := pg.Store().Note(n.ID)
	assert.False(t, stored.IsLinked)
	assert.Empty(t, stored.LinkedElementID)
}

func TestDeleteNote_PurgesConnections(t *testing.T) {
	pg, _ := newPlayground(t)
	n := bigNote(t, pg)
	e, _ := pg.DropElement(models.ElementRef{ElementID: "revenue"}, grid.Cell{Row: 5, Col: 40})
	pg.Graph().Add(models.Connection{
		SourceID: n.ID, SourceType: models.EntityNote, SourcePosition: models.EdgeRight,
		TargetID: e.ID, TargetType: models.EntityElement, TargetPosition: models.EdgeLeft,
	})

	require.NoError(t, pg.DeleteNote(n.ID))
	assert.Equal(t, 0, pg.Graph().Len())
	assert.False(t, pg.IsElementLinked(e.ID))
}

func TestPan_BlocksPlacementUntilSettled(t *testing.T) {
	pg, clk := newPlayground(t)
	pg.PointerDown(models.Point{X: 10, Y: 10})
	require.Equal(t, drag.Panning, pg.State().Kind)
	pg.PointerMove(models.Point{X: 30, Y: 50})
	pg.PointerUp(models.Point{X: 30, Y: 50})

	tr := pg.Viewport().Transform()
	assert.Equal(t, 20.0, tr.TranslateX)
	assert.Equal(t, 40.0, tr.TranslateY)

	_, placed, err := pg.PlaceNoteAt(models.Point{X: 100, Y: 100})
	require.NoError(t, err)
	assert.False(t, placed, "click during pan settle is ignored")

	clk.advance(200 * time.Millisecond)
	_, placed, err = pg.PlaceNoteAt(models.Point{X: 100, Y: 100})
	require.NoError(t, err)
	assert.True(t, placed)
}

func TestThrottledMoveFlushedOnTick(t *testing.T) {
	pg, clk := newPlayground(t)
	pg.SetZoom(1)
	n := bigNote(t, pg)

	start := screen(pg, 50, 50)
	pg.PointerDown(start)
	pg.PointerMove(models.Point{X: start.X + 10, Y: start.Y})
	pg.PointerMove(models.Point{X: start.X + 50, Y: start.Y})
	p, _ := pg.Proposal()
	assert.Equal(t, n.Col+2, p.Col, "second move parked inside the interval")

	clk.advance(drag.DefaultMoveInterval)
	assert.True(t, pg.Tick(clk.now()))
	p, _ = pg.Proposal()
	assert.Equal(t, n.Col+10, p.Col)
}

func TestZoomStaysInRange(t *testing.T) {
	pg, _ := newPlayground(t)
	for range 20 {
		pg.ZoomOut()
	}
	assert.InDelta(t, 0.15, pg.Viewport().Scale(), 1e-9)
	for range 20 {
		pg.ZoomIn()
	}
	assert.InDelta(t, 2.0, pg.Viewport().Scale(), 1e-9)
}

func TestSetZoom_NaNKeepsScale(t *testing.T) {
	pg, _ := newPlayground(t)
	pg.SetZoom(1.5)
	pg.SetZoom(math.NaN())
	assert.InDelta(t, 1.5, pg.Viewport().Scale(), 1e-9)
}

func TestElementBody_UsesRenderer(t *testing.T) {
	var gotID string
	var gotRows int
	pg := New(WithRenderer(render.RendererFunc(func(elementID string, data render.Dataset) render.Renderable {
		gotID, gotRows = elementID, len(data)
		return nil
	})))
	pg.Resize(4000, 3000)
	e, err := pg.DropElement(models.ElementRef{ElementID: "revenue", ElementName: "Revenue"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)

	body := pg.ElementBody(e.ID, render.Dataset{{"v": 1}, {"v": 2}})
	assert.Nil(t, body)
	assert.Equal(t, "revenue", gotID)
	assert.Equal(t, 2, gotRows)

	assert.Nil(t, pg.ElementBody("element-missing", nil))
}

func TestElementBody_DefaultSummary(t *testing.T) {
	pg, _ := newPlayground(t)
	e, err := pg.DropElement(models.ElementRef{ElementID: "revenue", ElementName: "Revenue"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)

	body := pg.ElementBody(e.ID, render.Dataset{{"month": "2025-06", "value": 3}})
	assert.Equal(t, render.Summary{ElementID: "revenue", Rows: 1, Columns: []string{"month", "value"}}, body)
	assert.Nil(t, pg.ElementBody(e.ID, nil))
}

func TestResetView_Animates(t *testing.T) {
	pg, clk := newPlayground(t)
	pg.SetViewportSize(1000, 800)
	pg.SetZoom(1.5)
	pg.ResetView()
	require.True(t, pg.Viewport().Animating())

	clk.advance(time.Second)
	pg.Tick(clk.now())
	assert.False(t, pg.Viewport().Animating())
	assert.InDelta(t, 0.8, pg.Viewport().Scale(), 1e-9)

	cx, cy := pg.Store().Dashboard().Center()
	centre := pg.Viewport().CanvasToScreen(models.Point{X: cx, Y: cy})
	assert.InDelta(t, 500, centre.X, 1e-6)
	assert.InDelta(t, 400, centre.Y, 1e-6)
}

func TestFocusDashboard_CapsZoom(t *testing.T) {
	pg, clk := newPlayground(t)
	pg.SetViewportSize(1000, 800)
	pg.SetZoom(1.5)
	pg.FocusDashboard()
	clk.advance(time.Second)
	pg.Tick(clk.now())
	assert.InDelta(t, 0.4, pg.Viewport().Scale(), 1e-9)

	cx, cy := pg.Store().Dashboard().Center()
	centre := pg.Viewport().CanvasToScreen(models.Point{X: cx, Y: cy})
	assert.InDelta(t, 500, centre.X, 1e-6)
	assert.InDelta(t, 350, centre.Y, 1e-6)

	pg.SetZoom(0.2)
	pg.FocusDashboard()
	clk.advance(time.Second)
	pg.Tick(clk.now())
	assert.InDelta(t, 0.2, pg.Viewport().Scale(), 1e-9)
}

func TestSnapshotRoundTrip(t *testing.T) {
	pg, _ := newPlayground(t)
	n := bigNote(t, pg)
	require.NoError(t, pg.EditNote(n.ID, "# Churn\nlooks high"))
	require.NoError(t, pg.ToggleTheme(n.ID))
	e, _ := pg.DropElement(models.ElementRef{ElementID: "revenue"}, grid.Cell{Row: 5, Col: 40})
	a, err := pg.CreateAssistant(grid.Cell{Row: 80, Col: 5})
	require.NoError(t, err)
	pg.Graph().Add(models.Connection{
		SourceID: n.ID, SourceType: models.EntityNote, SourcePosition: models.EdgeRight,
		TargetID: e.ID, TargetType: models.EntityElement, TargetPosition: models.EdgeLeft,
	})
	pg.Graph().Add(models.Connection{
		SourceID: a.ID, SourceType: models.EntityAssistant, SourcePosition: models.EdgeTop,
		TargetID: e.ID, TargetType: models.EntityElement, TargetPosition: models.EdgeBottom,
	})
	pg.SetZoom(1.2)

	snap, err := pg.Snapshot(Meta{UserID: "u1", ViewID: "v1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", snap.UserID)

	other, _ := newPlayground(t)
	rep, err := other.Load(snap)
	require.NoError(t, err)
	assert.Equal(t, RestoreReport{Notes: 1, Elements: 1, Assistant: true, Connections: 2}, rep)

	got, ok := other.Store().Note(n.ID)
	require.True(t, ok)
	assert.Equal(t, "# Churn\nlooks high", got.Content)
	assert.True(t, got.IsDark)
	assert.True(t, got.IsLinked)
	assert.True(t, other.IsElementLinked(e.ID))
	restored, _ := other.Store().Assistant()
	assert.True(t, restored.HasConnected(e.ID, models.EntityElement))
	assert.InDelta(t, 1.2, other.Viewport().Scale(), 1e-9)
}

func TestRestore_PartialLoad(t *testing.T) {
	payload := json.RawMessage(`{
		"notes":[
			{"id":"note-a","row":2,"col":2,"width":2,"height":2,"isLinked":true},
			{"id":"","row":1,"col":1},
			{"id":"note-b","row":-4,"col":1},
			"garbage"
		],
		"droppedElements":[{"id":"el-a","elementId":"w","row":10,"col":10,"width":60,"height":40}],
		"connections":[
			{"id":"c1","sourceId":"note-a","sourceType":"note","targetId":"el-a","targetType":"element"},
			{"id":"c2","sourceId":"note-a","sourceType":"note","targetId":"ghost","targetType":"note"},
			{"id":"c3","sourceId":"el-a","sourceType":"note","targetId":"note-a","targetType":"element"}
		]
	}`)
	pg, _ := newPlayground(t)
	rep, err := pg.Load(snapshot.Snapshot{ID: "s1", Payload: payload})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Notes)
	assert.Equal(t, 1, rep.Elements)
	assert.Equal(t, 1, rep.Connections)
	assert.Equal(t, 5, rep.Skipped)
	assert.True(t, pg.IsElementLinked("el-a"))
}

func TestRestore_RepairsStaleLinkFlag(t *testing.T) {
	payload := json.RawMessage(`{"notes":[{"id":"note-a","row":2,"col":2,"width":2,"height":2,"isLinked":true}]}`)
	pg, _ := newPlayground(t)
	_, err := pg.Load(snapshot.Snapshot{Payload: payload})
	require.NoError(t, err)
	n, _ := pg.Store().Note("note-a")
	assert.False(t, n.IsLinked)
}

func TestLoad_RejectsNonObject(t *testing.T) {
	pg, _ := newPlayground(t)
	_, err := pg.Load(snapshot.Snapshot{Payload: json.RawMessage(`42`)})
	assert.ErrorIs(t, err, apperr.ErrInvalidSnapshot)
}

func TestScene(t *testing.T) {
	pg, _ := newPlayground(t)
	n := bigNote(t, pg)
	require.NoError(t, pg.LinkNoteToElement(n.ID, "el-missing"))
	e, _ := pg.DropElement(models.ElementRef{ElementID: "revenue"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, pg.LinkNoteToElement(n.ID, e.ID))

	scene := pg.Scene()
	assert.Len(t, scene.Notes, 1)
	assert.Len(t, scene.Elements, 1)
	require.Len(t, scene.Connectors, 1)
	assert.True(t, scene.Connectors[0].Implicit)
}
