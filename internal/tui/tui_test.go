package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/playground"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/testutil"
	"github.com/starford/pinboard/internal/viewport"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// memStore is an in-memory snapshot.Store.
type memStore struct {
	mu    sync.Mutex
	snaps []snapshot.Snapshot
}

func (s *memStore) Create(_ context.Context, snap snapshot.Snapshot) (snapshot.CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version := 1
	for _, existing := range s.snaps {
		if existing.UserID == snap.UserID && existing.ViewID == snap.ViewID && existing.Version >= version {
			version = existing.Version + 1
		}
	}
	snap.ID = fmt.Sprintf("snap-%d", len(s.snaps)+1)
	snap.Version = version
	s.snaps = append(s.snaps, snap)
	return snapshot.CreateResult{Success: true, ID: snap.ID, Version: version}, nil
}

func (s *memStore) List(_ context.Context, f snapshot.Filter) ([]snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []snapshot.Snapshot
	for i := len(s.snaps) - 1; i >= 0; i-- {
		snap := s.snaps[i]
		if (f.UserID == "" || snap.UserID == f.UserID) && (f.ViewID == "" || snap.ViewID == f.ViewID) {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.snaps {
		if snap.ID == id {
			return &snap, nil
		}
	}
	return nil, apperr.ErrNotFound
}

type fixture struct {
	m      *Model
	pg     *playground.Controller
	clk    *clock
	copied string
}

// newFixture builds a 120x42 terminal model at zoom 1 with 8x16 pixel cells.
func newFixture(t *testing.T, opts Options, pgOpts ...playground.Option) *fixture {
	t.Helper()
	f := &fixture{clk: &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}}
	seq := 0
	f.pg = playground.New(append([]playground.Option{
		playground.WithClock(f.clk.now),
		playground.WithLogger(testutil.Logger()),
		playground.WithIDGenerator(func(prefix string) string {
			seq++
			return fmt.Sprintf("%s-%d", prefix, seq)
		}),
	}, pgOpts...)...)
	opts.Playground = f.pg
	opts.Now = f.clk.now
	opts.Logger = testutil.Logger()
	opts.CellPx = models.Size{Width: 8, Height: 16}
	opts.Clipboard = func(s string) error {
		f.copied = s
		return nil
	}
	f.m = New(opts)
	f.m.Update(tea.WindowSizeMsg{Width: 120, Height: 42})
	f.pg.Viewport().SetTransform(viewport.Transform{Scale: 1})
	return f
}

// bigNote places a 10x10 note at (5,5). On the terminal it spans
// columns 3..9 and rows 1..4.
func (f *fixture) bigNote(t *testing.T, content string) models.Note {
	t.Helper()
	n, err := f.pg.PlaceNote(grid.Cell{Row: 5, Col: 5})
	require.NoError(t, err)
	require.NoError(t, f.pg.Store().ResizeNote(n.ID, 10, 10))
	if content != "" {
		require.NoError(t, f.pg.EditNote(n.ID, content))
	}
	n, _ = f.pg.Store().Note(n.ID)
	return n
}

func (f *fixture) box(t *testing.T, id string) box {
	t.Helper()
	for _, b := range f.m.boxes() {
		if b.id == id {
			return b
		}
	}
	t.Fatalf("no box for %s", id)
	return box{}
}

func (f *fixture) press(col, row int) {
	f.m.Update(tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
}

func (f *fixture) motion(col, row int) {
	f.m.Update(tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
}

func (f *fixture) release(col, row int) {
	f.m.Update(tea.MouseMsg{X: col, Y: row, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (f *fixture) keys(keys ...tea.KeyMsg) tea.Cmd {
	var last tea.Cmd
	for _, k := range keys {
		_, last = f.m.Update(k)
	}
	return last
}

func TestBoxLayout(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")

	b := f.box(t, n.ID)
	assert.Equal(t, termRect{col0: 3, row0: 1, col1: 9, row1: 4}, b.r)
	assert.Equal(t, models.EntityNote, b.kind)
	assert.Equal(t, "(empty)", b.title)
}

func TestBoxLayout_MinimumSize(t *testing.T) {
	f := newFixture(t, Options{})
	n, err := f.pg.PlaceNote(grid.Cell{Row: 5, Col: 5})
	require.NoError(t, err)

	b := f.box(t, n.ID)
	assert.GreaterOrEqual(t, b.r.col1-b.r.col0, 2)
	assert.GreaterOrEqual(t, b.r.row1-b.r.row0, 1)
}

func TestHitTest(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")
	b := f.box(t, n.ID)

	body := f.m.hitTest(5, 3)
	assert.Equal(t, drag.HitMoveHandle, body.Kind)
	assert.Equal(t, n.ID, body.EntityID)
	assert.Equal(t, models.EntityNote, body.EntityType)

	corner := f.m.hitTest(b.r.col1, b.r.row1)
	assert.Equal(t, drag.HitResizeHandle, corner.Kind)
	assert.Equal(t, drag.ResizeCorner, corner.Resize)

	for _, e := range models.Edges {
		col, row := b.r.node(e)
		hit := f.m.hitTest(col, row)
		assert.Equal(t, drag.HitConnectionNode, hit.Kind, "edge %s", e)
		assert.Equal(t, e, hit.Edge)
	}

	assert.Equal(t, drag.HitCanvas, f.m.hitTest(100, 30).Kind)
}

func TestMouse_MoveNote(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")

	f.press(5, 3)
	assert.Equal(t, drag.MovingNote, f.pg.State().Kind)
	assert.Equal(t, n.ID, f.m.selectedID)

	// 4 columns and 1 row is 32x16 px: 6.4 and 3.2 cells, rounded.
	f.motion(9, 4)
	f.release(9, 4)

	assert.Equal(t, drag.Idle, f.pg.State().Kind)
	moved, ok := f.pg.Store().Note(n.ID)
	require.True(t, ok)
	assert.Equal(t, 11, moved.Col)
	assert.Equal(t, 8, moved.Row)
}

func TestMouse_ResizeNote(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")
	b := f.box(t, n.ID)

	f.press(b.r.col1, b.r.row1)
	assert.Equal(t, drag.ResizingNote, f.pg.State().Kind)
	f.motion(b.r.col1+4, b.r.row1+1)
	f.release(b.r.col1+4, b.r.row1+1)

	resized, _ := f.pg.Store().Note(n.ID)
	assert.Equal(t, 16, resized.Width)
	assert.Equal(t, 13, resized.Height)
}

func TestMouse_ConnectNoteToElement(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")
	e, err := f.pg.DropElement(models.ElementRef{ElementID: "w-1", ElementName: "Revenue", ElementType: "chart"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)
	eb := f.box(t, e.ID)

	col, row := f.box(t, n.ID).r.node(models.EdgeRight)
	f.press(col, row)
	require.Equal(t, drag.Connecting, f.pg.State().Kind)
	assert.True(t, f.pg.ValidDropTarget(e.ID, models.EntityElement))

	// Release inside the element near its left edge.
	target := eb.r.col0 + 2
	f.motion(target, eb.r.midRow())
	f.release(target, eb.r.midRow())

	conns := f.pg.Graph().Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, n.ID, conns[0].SourceID)
	assert.Equal(t, models.EdgeRight, conns[0].SourcePosition)
	assert.Equal(t, e.ID, conns[0].TargetID)
	assert.Equal(t, models.EdgeLeft, conns[0].TargetPosition)

	msg, ok := f.pg.Message(f.clk.now())
	require.True(t, ok)
	assert.Equal(t, drag.MsgConnected, msg.Text)
	assert.Contains(t, f.m.View(), drag.MsgConnected)
}

func TestMouse_ConnectReleasedOnCanvasCancels(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")

	col, row := f.box(t, n.ID).r.node(models.EdgeBottom)
	f.press(col, row)
	f.release(100, 30)

	assert.Zero(t, f.pg.Graph().Len())
	msg, ok := f.pg.Message(f.clk.now())
	require.True(t, ok)
	assert.Equal(t, drag.MsgCancelled, msg.Text)
}

func TestMouse_PanCanvas(t *testing.T) {
	f := newFixture(t, Options{})

	f.press(100, 30)
	assert.Equal(t, drag.Panning, f.pg.State().Kind)
	f.motion(104, 31)
	f.release(104, 31)

	tr := f.pg.Viewport().Transform()
	assert.InDelta(t, 32, tr.TranslateX, 1e-9)
	assert.InDelta(t, 16, tr.TranslateY, 1e-9)
	assert.Equal(t, drag.Idle, f.pg.State().Kind)
}

func TestMouse_WheelZooms(t *testing.T) {
	f := newFixture(t, Options{})
	f.m.Update(tea.MouseMsg{X: 10, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	assert.InDelta(t, 1.1, f.pg.Viewport().Scale(), 1e-9)
	f.m.Update(tea.MouseMsg{X: 10, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	assert.InDelta(t, 1.0, f.pg.Viewport().Scale(), 1e-9)
}

func TestEscapeCancelsGesture(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")

	f.press(5, 3)
	f.motion(9, 4)
	f.keys(tea.KeyMsg{Type: tea.KeyEscape})

	assert.Equal(t, drag.Idle, f.pg.State().Kind)
	unmoved, _ := f.pg.Store().Note(n.ID)
	assert.Equal(t, 5, unmoved.Col)
	assert.Equal(t, n.ID, f.m.selectedID, "escape during a gesture keeps the selection")

	f.keys(tea.KeyMsg{Type: tea.KeyEscape})
	assert.Empty(t, f.m.selectedID)
}

func TestKeys_NoteLifecycle(t *testing.T) {
	f := newFixture(t, Options{})

	f.m.Update(tea.MouseMsg{X: 20, Y: 10, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone})
	f.keys(runes("n"))

	notes := f.pg.Store().Notes()
	require.Len(t, notes, 1)
	// Cell (20,10) centres on screen pixel (164,168).
	assert.Equal(t, 32, notes[0].Col)
	assert.Equal(t, 33, notes[0].Row)
	assert.Equal(t, notes[0].ID, f.m.selectedID)

	f.keys(runes("e"))
	require.Equal(t, notes[0].ID, f.m.editingID)
	f.keys(runes("ship it #q3"), tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Empty(t, f.m.editingID)

	n, _ := f.pg.Store().Note(notes[0].ID)
	assert.Equal(t, "ship it #q3", n.Content)

	f.keys(runes("t"))
	n, _ = f.pg.Store().Note(n.ID)
	assert.True(t, n.IsDark)

	f.keys(runes("y"))
	assert.Equal(t, "ship it #q3", f.copied)

	f.keys(runes("d"))
	assert.Empty(t, f.pg.Store().Notes())
	assert.Empty(t, f.m.selectedID)
}

func TestKeys_EditCancel(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "original")
	f.press(5, 3)
	f.release(5, 3)

	f.keys(runes("e"), runes(" changed"), tea.KeyMsg{Type: tea.KeyEscape})
	assert.Empty(t, f.m.editingID)
	kept, _ := f.pg.Store().Note(n.ID)
	assert.Equal(t, "original", kept.Content)
}

func TestKeys_NoteCommandsNeedSelection(t *testing.T) {
	f := newFixture(t, Options{})
	f.keys(runes("t"))
	assert.Contains(t, f.m.statusLine(), "Select a note first")
}

func TestKeys_WidgetAndAssistant(t *testing.T) {
	widgets := []models.ElementRef{
		{ElementID: "w-revenue", ElementName: "Revenue", ElementType: "chart"},
		{ElementID: "w-users", ElementName: "Users", ElementType: "table"},
	}
	f := newFixture(t, Options{Widgets: widgets})

	f.m.Update(tea.MouseMsg{X: 20, Y: 10, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone})
	f.keys(runes("w"))
	els := f.pg.Store().Elements()
	require.Len(t, els, 1)
	assert.Equal(t, "Revenue", els[0].ElementName)
	assert.Equal(t, els[0].ID, f.m.selectedID)

	f.m.Update(tea.MouseMsg{X: 100, Y: 30, Action: tea.MouseActionMotion, Button: tea.MouseButtonNone})
	f.keys(runes("a"))
	a, ok := f.pg.Store().Assistant()
	require.True(t, ok)
	assert.Equal(t, a.ID, f.m.selectedID)

	f.keys(runes("a"))
	assert.Contains(t, f.m.statusLine(), "already on the canvas")

	f.keys(runes("d"))
	_, ok = f.pg.Store().Assistant()
	assert.False(t, ok)
}

func TestBoxes_ElementBodyFromDataset(t *testing.T) {
	f := newFixture(t, Options{Datasets: map[string]render.Dataset{
		"widget-revenue": {
			{"month": "2025-05", "value": 1},
			{"month": "2025-06", "value": 2},
		},
	}})
	rev, err := f.pg.DropElement(models.ElementRef{ElementID: "widget-revenue", ElementName: "Revenue", ElementType: "chart"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)
	empty, err := f.pg.DropElement(models.ElementRef{ElementID: "widget-signups", ElementName: "Signups", ElementType: "chart"}, grid.Cell{Row: 5, Col: 120})
	require.NoError(t, err)

	assert.Equal(t, "2 rows: month, value", f.box(t, rev.ID).detail)
	assert.Equal(t, "chart", f.box(t, empty.ID).detail)
}

func TestBoxes_ElementBodyCustomRenderer(t *testing.T) {
	var seen []string
	r := render.RendererFunc(func(elementID string, _ render.Dataset) render.Renderable {
		seen = append(seen, elementID)
		if elementID == "widget-table" {
			return nil
		}
		return "sparkline"
	})
	f := newFixture(t, Options{}, playground.WithRenderer(r))
	chart, err := f.pg.DropElement(models.ElementRef{ElementID: "widget-chart", ElementName: "Chart", ElementType: "chart"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)
	table, err := f.pg.DropElement(models.ElementRef{ElementID: "widget-table", ElementName: "Table", ElementType: "table"}, grid.Cell{Row: 5, Col: 120})
	require.NoError(t, err)

	assert.Equal(t, "sparkline", f.box(t, chart.ID).detail)
	assert.Equal(t, "table", f.box(t, table.ID).detail)
	assert.Contains(t, seen, "widget-chart")
	assert.Contains(t, seen, "widget-table")
}

func TestKeys_DisconnectAndUnlink(t *testing.T) {
	f := newFixture(t, Options{})
	n := f.bigNote(t, "")
	e, err := f.pg.DropElement(models.ElementRef{ElementID: "w-1", ElementName: "Revenue", ElementType: "chart"}, grid.Cell{Row: 5, Col: 40})
	require.NoError(t, err)
	linked, err := f.pg.PlaceLinkedNote(grid.Cell{Row: 30, Col: 5}, e.ID)
	require.NoError(t, err)
	f.pg.Graph().Add(models.Connection{
		SourceID: n.ID, SourceType: models.EntityNote, SourcePosition: models.EdgeRight,
		TargetID: e.ID, TargetType: models.EntityElement, TargetPosition: models.EdgeLeft,
	})
	require.Equal(t, 1, f.pg.Graph().Len())

	f.press(5, 3)
	f.release(5, 3)
	f.keys(runes("x"))
	assert.Zero(t, f.pg.Graph().Len())

	f.m.selectedID, f.m.selectedType = linked.ID, models.EntityNote
	f.keys(runes("u"))
	after, _ := f.pg.Store().Note(linked.ID)
	assert.False(t, after.IsLinked)
	assert.Empty(t, after.LinkedElementID)
}

func TestKeys_Zoom(t *testing.T) {
	f := newFixture(t, Options{})
	f.keys(runes("+"))
	assert.InDelta(t, 1.2, f.pg.Viewport().Scale(), 1e-9)
	f.keys(runes("-"), runes("-"))
	assert.InDelta(t, 0.8, f.pg.Viewport().Scale(), 1e-9)
	f.keys(runes("0"))
	assert.True(t, f.pg.Viewport().Animating())
}

func TestKeys_FocusDashboard(t *testing.T) {
	f := newFixture(t, Options{})
	f.keys(runes("f"))
	require.True(t, f.pg.Viewport().Animating())

	f.clk.t = f.clk.t.Add(2 * time.Second)
	f.pg.Tick(f.clk.now())
	assert.InDelta(t, 0.4, f.pg.Viewport().Scale(), 1e-9)
}

func TestSaveAndLoadLatest(t *testing.T) {
	store := &memStore{}
	meta := playground.Meta{SessionID: "s-1", UserID: "alice", ViewID: "sales"}
	f := newFixture(t, Options{Store: store, Meta: meta})
	f.bigNote(t, "# Launch plan")

	cmd := f.keys(runes("s"))
	require.NotNil(t, cmd)
	f.m.Update(cmd())
	assert.Equal(t, 1, f.m.version)
	assert.Contains(t, f.m.statusLine(), "Saved sales v1")

	g := newFixture(t, Options{Store: store, Meta: meta})
	load := g.m.loadLatest()
	require.NotNil(t, load)
	g.m.Update(load())

	notes := g.pg.Store().Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, "# Launch plan", notes[0].Content)
	assert.Equal(t, 1, g.m.version)
	assert.Contains(t, g.m.statusLine(), "sales v1")
}

func TestSave_NoStore(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Nil(t, f.keys(runes("s")))
	assert.Contains(t, f.m.statusLine(), "No snapshot store configured")
}

func TestLoadLatest_EmptyStore(t *testing.T) {
	f := newFixture(t, Options{Store: &memStore{}, Meta: playground.Meta{UserID: "u", ViewID: "v"}})
	f.m.Update(f.m.loadLatest()())
	assert.Empty(t, f.pg.Store().Notes())
	assert.Zero(t, f.m.version)
}

func TestExportPNG(t *testing.T) {
	dir, exports := testutil.TestDir(t)
	f := newFixture(t, Options{Exports: exports, Meta: playground.Meta{ViewID: "q3 board"}})
	f.bigNote(t, "# Launch plan")

	cmd := f.keys(runes("p"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(exportedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.Equal(t, filepath.Join(dir, "q3_board-20250601-090000.png"), msg.path)

	data, err := os.ReadFile(msg.path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\x89PNG"))

	f.m.Update(msg)
	assert.Contains(t, f.m.statusLine(), "Exported")
}

func TestView(t *testing.T) {
	f := newFixture(t, Options{Meta: playground.Meta{ViewID: "sales"}})
	n := f.bigNote(t, "# Plan\nship #q3")
	require.NoError(t, f.pg.Store().ResizeNote(n.ID, 30, 10))

	view := f.m.View()
	lines := strings.Split(view, "\n")
	assert.Len(t, lines, 42)
	assert.Contains(t, view, "Plan")
	assert.Contains(t, view, "#q3")
	assert.Contains(t, view, "zoom 100%")
	assert.Contains(t, view, "1 notes 0 elements 0 links")
	assert.Contains(t, view, "idle")
}

func TestView_Editing(t *testing.T) {
	f := newFixture(t, Options{})
	f.bigNote(t, "draft")
	f.press(5, 3)
	f.release(5, 3)
	f.keys(runes("e"))
	assert.Contains(t, f.m.View(), "Editing note")
}

func TestExportName(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "sales-20250601-093005.png", exportName("sales", at))
	assert.Equal(t, "q3_board_-20250601-093005.png", exportName("q3 board!", at))
	assert.Equal(t, "view-20250601-093005.png", exportName("", at))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "hel…", truncate("hello", 4))
	assert.Equal(t, "h", truncate("hello", 1))
	assert.Equal(t, "", truncate("hello", 0))
}
