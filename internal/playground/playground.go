// Package playground combines the entity store, connection graph, viewport
// and gesture controller into the single object a host drives. Hosts pass
// the Controller (or one of its narrow interfaces) to the views that need
// it; nothing here is global.
package playground

import (
	"log/slog"
	"time"

	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/entity"
	"github.com/starford/pinboard/internal/graph"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/layout"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/viewport"
)

// Config holds the tunables of a playground.
type Config struct {
	Grid     grid.Model
	Viewport viewport.Config

	// MoveInterval rate-limits pointer moves during a gesture.
	MoveInterval time.Duration
	// MessageTTL is how long a gesture message stays visible.
	MessageTTL time.Duration
	// LayoutPoll is the safety-net interval for re-measuring entities.
	LayoutPoll time.Duration
	// HitTolerance is the screen-pixel radius of connection nodes and the
	// width of resize bands.
	HitTolerance float64
}

// DefaultConfig returns the stock playground configuration.
func DefaultConfig() Config {
	return Config{
		Grid:         grid.Default(),
		Viewport:     viewport.DefaultConfig(),
		MoveInterval: drag.DefaultMoveInterval,
		MessageTTL:   2 * time.Second,
		LayoutPoll:   time.Second,
		HitTolerance: 8,
	}
}

// Controller is one playground instance. It is not safe for concurrent use:
// every command and query runs on the host's event goroutine.
type Controller struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger

	store    *entity.Store
	graph    *graph.Graph
	viewport *viewport.Viewport
	gestures *drag.Controller
	layout   *layout.Poller
	renderer render.WidgetRenderer

	viewportSize models.Size
	message      drag.Message
	messageUntil time.Time
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	cfg      Config
	now      func() time.Time
	newID    func(prefix string) string
	logger   *slog.Logger
	widgets  layout.WidgetRegistry
	renderer render.WidgetRenderer
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator sets the entity id generator.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(o *options) { o.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithWidgets registers the dashboard widget rectangles so connectors can
// attach to widgets that were never dropped onto the grid.
func WithWidgets(w layout.WidgetRegistry) Option {
	return func(o *options) { o.widgets = w }
}

// WithRenderer sets the widget renderer used for dropped element bodies.
func WithRenderer(r render.WidgetRenderer) Option {
	return func(o *options) { o.renderer = r }
}

// New builds an empty playground.
func New(opts ...Option) *Controller {
	o := options{
		cfg:      DefaultConfig(),
		now:      time.Now,
		newID:    entity.NewID,
		logger:   slog.Default(),
		renderer: render.SummaryRenderer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("component", "playground")

	c := &Controller{
		cfg:      o.cfg,
		now:      o.now,
		logger:   logger,
		renderer: o.renderer,
	}
	c.store = entity.New(
		entity.WithGrid(o.cfg.Grid),
		entity.WithClock(o.now),
		entity.WithIDGenerator(o.newID),
	)
	c.graph = graph.New(c.store, logger)
	c.viewport = viewport.New(o.cfg.Viewport)
	c.gestures = drag.NewController(env{c}, o.cfg.MoveInterval, logger)
	c.layout = layout.NewPoller(layout.NewModelProvider(c.store, o.widgets), c.entityIDs, o.cfg.LayoutPoll, logger)
	c.layout.Watch(c.store)
	c.layout.Mount(o.now())
	c.store.OnDelete(c.cancelGestureOn)
	return c
}

// cancelGestureOn abandons the running gesture when the entity it moves,
// resizes or connects from is deleted underneath it.
func (c *Controller) cancelGestureOn(id string, _ models.EntityType) {
	s := c.gestures.State()
	if s.Kind == drag.Idle || (s.TargetID != id && s.Source.ID != id) {
		return
	}
	c.logger.Debug("gesture cancelled: entity deleted", slog.String("id", id))
	c.Dispatch(drag.Cancel{})
}

// Store exposes the entity store for read access by views.
func (c *Controller) Store() *entity.Store { return c.store }

// Graph exposes the connection graph for read access by views.
func (c *Controller) Graph() *graph.Graph { return c.graph }

// Viewport exposes the viewport for read access by views.
func (c *Controller) Viewport() *viewport.Viewport { return c.viewport }

// Layout returns the measurement provider connectors are drawn from.
func (c *Controller) Layout() layout.Provider { return c.layout }

// Config returns the playground configuration.
func (c *Controller) Config() Config { return c.cfg }

func (c *Controller) entityIDs() []string {
	ids := make([]string, 0)
	for _, n := range c.store.Notes() {
		ids = append(ids, n.ID)
	}
	for _, e := range c.store.Elements() {
		ids = append(ids, e.ID)
	}
	if a, ok := c.store.Assistant(); ok {
		ids = append(ids, a.ID)
	}
	for _, n := range c.store.Notes() {
		if n.LinkedElementID != "" {
			ids = append(ids, n.LinkedElementID)
		}
	}
	for _, conn := range c.graph.Connections() {
		ids = append(ids, conn.SourceID, conn.TargetID)
	}
	return ids
}

// env adapts the controller to drag.Env.
type env struct{ c *Controller }

func (e env) Grid() grid.Model { return e.c.store.Grid() }

func (e env) Scale() float64 { return e.c.viewport.Scale() }

func (e env) ScreenToCanvas(p models.Point) models.Point { return e.c.viewport.ScreenToCanvas(p) }

func (e env) Geometry(id string, t models.EntityType) (drag.Geometry, bool) {
	return e.c.geometry(id, t)
}

func (e env) Validate(sourceID string, sourceType models.EntityType, targetID string, targetType models.EntityType) bool {
	return e.c.graph.Validate(sourceID, sourceType, targetID, targetType)
}

func (c *Controller) geometry(id string, t models.EntityType) (drag.Geometry, bool) {
	switch t {
	case models.EntityNote:
		if n, ok := c.store.Note(id); ok {
			return drag.Geometry{Row: n.Row, Col: n.Col, Width: n.Width, Height: n.Height}, true
		}
	case models.EntityElement:
		if e, ok := c.store.Element(id); ok {
			return drag.Geometry{Row: e.Row, Col: e.Col, Width: e.Width, Height: e.Height}, true
		}
	case models.EntityAssistant:
		if a, ok := c.store.Assistant(); ok && a.ID == id {
			return drag.Geometry{Row: a.Row, Col: a.Col, Width: a.Width, Height: a.Height}, true
		}
	}
	return drag.Geometry{}, false
}
