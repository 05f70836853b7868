// Package tui is a terminal host for the playground. Terminal cells map to
// screen pixels through CellPx, so every gesture runs through the same
// viewport and drag state machine a pointer host would use.
package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/playground"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/snapshot"
	"github.com/starford/pinboard/internal/storage"
)

const (
	tickInterval = 50 * time.Millisecond
	storeTimeout = 10 * time.Second
	noticeTTL    = 3 * time.Second
	wheelFactor  = 1.1
	chromeRows   = 2
)

// Options configures a Model.
type Options struct {
	Playground *playground.Controller
	// Store loads the latest snapshot on start and receives saves. Nil
	// disables both.
	Store snapshot.Store
	// Exports receives PNG renders. Nil disables export.
	Exports storage.Provider
	Meta    playground.Meta
	// Widgets is the catalogue cycled through when dropping elements.
	Widgets []models.ElementRef
	// Datasets holds widget data keyed by element id. Dropped element
	// bodies are rendered from it.
	Datasets map[string]render.Dataset
	// CellPx is the screen size of one terminal cell.
	CellPx models.Size
	// Canvas is the playground canvas size in pixels.
	Canvas    models.Size
	Clipboard func(string) error
	Logger    *slog.Logger
	Now       func() time.Time
}

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
)

const helpText = "n note  e edit  t theme  d delete  w widget  a assistant  u unlink  x disconnect  +/- zoom  0 reset  f focus  s save  y copy  p png  q quit"

// Model is the bubbletea model.
type Model struct {
	pg      *playground.Controller
	store   snapshot.Store
	exports storage.Provider
	meta    playground.Meta
	widgets []models.ElementRef
	data    map[string]render.Dataset
	copy    func(string) error
	now     func() time.Time
	logger  *slog.Logger

	cellPx        models.Size
	width, height int
	sized         bool

	cursorX, cursorY int
	showCursor       bool

	selectedID   string
	selectedType models.EntityType
	nextWidget   int
	version      int

	editingID string
	editor    textarea.Model

	notice      drag.Message
	noticeUntil time.Time
}

type (
	tickMsg   time.Time
	loadedMsg   struct {
		snap *snapshot.Snapshot
		err  error
	}
	savedMsg struct {
		res snapshot.CreateResult
		err error
	}
	exportedMsg struct {
		path string
		err  error
	}
)

// New returns a Model driving opts.Playground.
func New(opts Options) *Model {
	if opts.Playground == nil {
		opts.Playground = playground.New()
	}
	if opts.CellPx.Width <= 0 || opts.CellPx.Height <= 0 {
		opts.CellPx = models.Size{Width: 8, Height: 16}
	}
	if opts.Canvas.Width <= 0 || opts.Canvas.Height <= 0 {
		opts.Canvas = models.Size{Width: 4000, Height: 3000}
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ta := textarea.New()
	ta.Placeholder = "Write a note... (#tags, [[element]] mentions)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	opts.Playground.Resize(opts.Canvas.Width, opts.Canvas.Height)
	return &Model{
		pg:      opts.Playground,
		store:   opts.Store,
		exports: opts.Exports,
		meta:    opts.Meta,
		widgets: opts.Widgets,
		data:    opts.Datasets,
		copy:    opts.Clipboard,
		now:     opts.Now,
		logger:  opts.Logger,
		cellPx:  opts.CellPx,
		editor:  ta,
	}
}

// Run starts the program with mouse cell motion on the alternate screen and
// blocks until it exits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), m.loadLatest())
}

func (m *Model) loadLatest() tea.Cmd {
	if m.store == nil {
		return nil
	}
	store, f := m.store, snapshot.Filter{UserID: m.meta.UserID, ViewID: m.meta.ViewID}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		list, err := store.List(ctx, f)
		if err != nil || len(list) == 0 {
			return loadedMsg{err: err}
		}
		return loadedMsg{snap: &list[0]}
	}
}

func (m *Model) canvasRows() int { return max(m.height-chromeRows, 1) }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.pg.SetViewportSize(float64(m.width)*m.cellPx.Width, float64(m.canvasRows())*m.cellPx.Height)
		m.editor.SetWidth(max(m.width-2, 10))
		m.editor.SetHeight(max(m.canvasRows()-2, 3))
		if !m.sized {
			m.sized = true
			m.pg.ResetView()
		}
		return m, nil

	case tickMsg:
		m.pg.Tick(time.Time(msg))
		return m, tick()

	case loadedMsg:
		m.onLoaded(msg)
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.logger.Error("save snapshot", slog.String("error", msg.err.Error()))
			m.notify("Save failed: "+msg.err.Error(), false)
			return m, nil
		}
		m.version = msg.res.Version
		m.notify(fmt.Sprintf("Saved %s v%d", m.meta.ViewID, msg.res.Version), true)
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.logger.Error("export png", slog.String("error", msg.err.Error()))
			m.notify("Export failed: "+msg.err.Error(), false)
			return m, nil
		}
		m.notify("Exported "+msg.path, true)
		return m, nil

	case tea.MouseMsg:
		if m.editingID == "" {
			m.mouse(msg)
		}
		return m, nil

	case tea.KeyMsg:
		if m.editingID != "" {
			return m, m.editKey(msg)
		}
		return m, m.key(msg)
	}
	return m, nil
}

func (m *Model) onLoaded(msg loadedMsg) {
	if msg.err != nil {
		m.logger.Warn("load latest snapshot", slog.String("error", msg.err.Error()))
		m.notify("Could not load snapshot: "+msg.err.Error(), false)
		return
	}
	if msg.snap == nil {
		return
	}
	rep, err := m.pg.Load(*msg.snap)
	if err != nil {
		m.logger.Warn("restore snapshot", slog.String("id", msg.snap.ID), slog.String("error", err.Error()))
		m.notify("Could not restore snapshot: "+err.Error(), false)
		return
	}
	m.version = msg.snap.Version
	m.logger.Info("snapshot restored",
		slog.String("id", msg.snap.ID),
		slog.Int("version", msg.snap.Version),
		slog.Int("notes", rep.Notes),
		slog.Int("elements", rep.Elements),
		slog.Int("skipped", rep.Skipped))
	m.notify(fmt.Sprintf("Loaded v%d: %d notes, %d elements", msg.snap.Version, rep.Notes, rep.Elements), true)
}

func (m *Model) mouse(msg tea.MouseMsg) {
	m.cursorX, m.cursorY = msg.X, msg.Y
	m.showCursor = false
	at := m.screen(msg.X, msg.Y)
	inCanvas := msg.Y < m.canvasRows()

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.pg.ZoomAt(wheelFactor, at)
	case msg.Button == tea.MouseButtonWheelDown:
		m.pg.ZoomAt(1/wheelFactor, at)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && inCanvas:
		hit := m.hitTest(msg.X, msg.Y)
		m.selectedID, m.selectedType = hit.EntityID, hit.EntityType
		m.pg.Dispatch(drag.PointerDown{At: at, Hit: hit})
	case msg.Action == tea.MouseActionMotion:
		if m.pg.State().Kind != drag.Idle {
			m.pg.Dispatch(drag.PointerMove{At: at})
		}
	case msg.Action == tea.MouseActionRelease:
		if m.pg.State().Kind == drag.Idle {
			return
		}
		var over *drag.Hit
		if m.pg.State().Kind == drag.Connecting && inCanvas {
			over = m.dropTarget(msg.X, msg.Y)
		}
		m.pg.Dispatch(drag.PointerUp{At: at, Over: over})
	}
}

func (m *Model) key(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "esc":
		if !m.pg.Key(playground.KeyEscape) {
			m.selectedID, m.selectedType = "", ""
		}
	case "up", "k":
		m.moveCursor(0, -1)
	case "down", "j":
		m.moveCursor(0, 1)
	case "left", "h":
		m.moveCursor(-1, 0)
	case "right", "l":
		m.moveCursor(1, 0)
	case "n":
		m.placeNote()
	case "e":
		return m.startEdit()
	case "t":
		if n, ok := m.selectedNote(); ok {
			m.report(m.pg.ToggleTheme(n.ID), "")
		}
	case "d":
		m.deleteSelected()
	case "w":
		m.dropWidget()
	case "a":
		m.createAssistant()
	case "u":
		if n, ok := m.selectedNote(); ok && n.IsLinked && n.LinkedElementID != "" {
			m.report(m.pg.Unlink(n.ID), "Note unlinked")
		}
	case "x":
		m.disconnectSelected()
	case "+", "=":
		m.pg.ZoomIn()
	case "-":
		m.pg.ZoomOut()
	case "0":
		m.pg.ResetView()
	case "f":
		m.pg.FocusDashboard()
	case "s":
		return m.save()
	case "y":
		m.copySelected()
	case "p":
		return m.export()
	}
	return nil
}

func (m *Model) moveCursor(dx, dy int) {
	m.cursorX = min(max(m.cursorX+dx, 0), max(m.width-1, 0))
	m.cursorY = min(max(m.cursorY+dy, 0), m.canvasRows()-1)
	m.showCursor = true
}

func (m *Model) notify(text string, ok bool) {
	m.notice = drag.Message{Text: text, Success: ok}
	m.noticeUntil = m.now().Add(noticeTTL)
}

// report shows err, or success when err is nil and success is not empty.
func (m *Model) report(err error, success string) {
	switch {
	case err != nil:
		m.notify(err.Error(), false)
	case success != "":
		m.notify(success, true)
	}
}

func (m *Model) selectedNote() (models.Note, bool) {
	if m.selectedType != models.EntityNote {
		m.notify("Select a note first", false)
		return models.Note{}, false
	}
	n, ok := m.pg.Store().Note(m.selectedID)
	if !ok {
		m.selectedID, m.selectedType = "", ""
		m.notify("Select a note first", false)
	}
	return n, ok
}

func (m *Model) placeNote() {
	n, placed, err := m.pg.PlaceNoteAt(m.screen(m.cursorX, m.cursorY))
	switch {
	case err != nil:
		m.notify("Cannot place a note here: "+err.Error(), false)
	case placed:
		m.selectedID, m.selectedType = n.ID, models.EntityNote
	}
}

func (m *Model) startEdit() tea.Cmd {
	n, ok := m.selectedNote()
	if !ok {
		return nil
	}
	m.editingID = n.ID
	m.editor.SetValue(n.Content)
	return m.editor.Focus()
}

func (m *Model) editKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+s":
		m.report(m.pg.EditNote(m.editingID, m.editor.Value()), "Note saved")
		m.stopEdit()
		return nil
	case "esc":
		m.stopEdit()
		return nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return cmd
}

func (m *Model) stopEdit() {
	m.editingID = ""
	m.editor.Blur()
	m.editor.Reset()
}

func (m *Model) deleteSelected() {
	var err error
	switch m.selectedType {
	case models.EntityNote:
		err = m.pg.DeleteNote(m.selectedID)
	case models.EntityElement:
		err = m.pg.DeleteElement(m.selectedID)
	case models.EntityAssistant:
		err = m.pg.DeleteAssistant()
	default:
		m.notify("Nothing selected", false)
		return
	}
	m.selectedID, m.selectedType = "", ""
	m.report(err, "Deleted")
}

func (m *Model) disconnectSelected() {
	if m.selectedID == "" {
		m.notify("Nothing selected", false)
		return
	}
	conns := m.pg.Graph().ConnectionsOf(m.selectedID)
	for _, c := range conns {
		m.pg.RemoveConnection(c.ID)
	}
	m.notify(fmt.Sprintf("Removed %d connections", len(conns)), true)
}

func (m *Model) dropWidget() {
	if len(m.widgets) == 0 {
		m.notify("No widgets configured", false)
		return
	}
	ref := m.widgets[m.nextWidget%len(m.widgets)]
	m.nextWidget++
	e, err := m.pg.DropElement(ref, m.cursorCell())
	if err != nil {
		m.notify("Cannot drop widget: "+err.Error(), false)
		return
	}
	m.selectedID, m.selectedType = e.ID, models.EntityElement
}

func (m *Model) createAssistant() {
	a, err := m.pg.CreateAssistant(m.cursorCell())
	if errors.Is(err, apperr.ErrAssistantExists) {
		m.notify("The AI assistant is already on the canvas", false)
		return
	}
	if err != nil {
		m.notify(err.Error(), false)
		return
	}
	m.selectedID, m.selectedType = a.ID, models.EntityAssistant
}

func (m *Model) copySelected() {
	n, ok := m.selectedNote()
	if !ok {
		return
	}
	if err := m.copy(n.Content); err != nil {
		m.logger.Warn("clipboard", slog.String("error", err.Error()))
		m.notify("Clipboard unavailable", false)
		return
	}
	m.notify("Note copied", true)
}

func (m *Model) save() tea.Cmd {
	if m.store == nil {
		m.notify("No snapshot store configured", false)
		return nil
	}
	snap, err := m.pg.Snapshot(m.meta)
	if err != nil {
		m.notify("Save failed: "+err.Error(), false)
		return nil
	}
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		res, err := store.Create(ctx, snap)
		return savedMsg{res: res, err: err}
	}
}

// exportName names a terminal export after the view and the wall clock.
func exportName(viewID string, now time.Time) string {
	view := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, viewID)
	if view == "" {
		view = "view"
	}
	return fmt.Sprintf("%s-%s.png", view, now.UTC().Format("20060102-150405"))
}

func (m *Model) export() tea.Cmd {
	if m.exports == nil {
		m.notify("No export directory configured", false)
		return nil
	}
	scene, exports := m.pg.Scene(), m.exports
	name := exportName(m.meta.ViewID, m.now())
	return func() tea.Msg {
		var buf bytes.Buffer
		if err := render.PNG(&buf, scene, render.DefaultOptions()); err != nil {
			return exportedMsg{err: err}
		}
		if err := exports.Write(name, buf.Bytes()); err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{path: filepath.Join(exports.Root(), name)}
	}
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "starting..."
	}
	if m.editingID != "" {
		return titleStyle.Render("Editing note") + helpStyle.Render("  ctrl+s save  esc cancel") + "\n\n" + m.editor.View()
	}
	lines := m.render(m.width, m.canvasRows())
	return strings.Join(lines, "\n") + "\n" + m.statusLine() + "\n" + helpStyle.Render(truncate(helpText, m.width))
}

func (m *Model) statusLine() string {
	store := m.pg.Store()
	view := m.meta.ViewID
	if view == "" {
		view = "scratch"
	}
	if m.version > 0 {
		view = fmt.Sprintf("%s v%d", view, m.version)
	}
	left := statusStyle.Render(fmt.Sprintf(" %s | zoom %d%% | %d notes %d elements %d links | %s ",
		view,
		int(m.pg.Viewport().Scale()*100+0.5),
		len(store.Notes()),
		len(store.Elements()),
		m.pg.Graph().Len(),
		m.pg.State().Kind))

	msg, ok := m.pg.Message(m.now())
	if !ok && m.notice.Text != "" && m.now().Before(m.noticeUntil) {
		msg, ok = m.notice, true
	}
	if !ok {
		return left
	}
	style := errStyle
	if msg.Success {
		style = okStyle
	}
	room := m.width - lipgloss.Width(left) - 1
	if room <= 0 {
		return left
	}
	return left + " " + style.Render(truncate(msg.Text, room))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-1]) + "…"
}
