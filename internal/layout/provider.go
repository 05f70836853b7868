// Package layout answers geometry queries for placed entities and derives
// the connector curves drawn between them.
package layout

import (
	"log/slog"
	"time"

	"github.com/starford/pinboard/internal/entity"
	"github.com/starford/pinboard/internal/models"
)

// Provider measures an entity in canvas pixels. A false result means the
// entity has no geometry right now and its connectors are skipped.
type Provider interface {
	Measure(id string) (models.Rect, bool)
}

// WidgetRegistry returns the rectangle of a dashboard widget relative to the
// dashboard's top-left corner.
type WidgetRegistry interface {
	WidgetRect(elementID string) (models.Rect, bool)
}

// StaticWidgets is a fixed WidgetRegistry, typically loaded from a layout file.
type StaticWidgets map[string]models.Rect

// WidgetRect implements WidgetRegistry.
func (w StaticWidgets) WidgetRect(id string) (models.Rect, bool) {
	r, ok := w[id]
	return r, ok
}

// ModelProvider reads rectangles straight from the entity store.
type ModelProvider struct {
	store   *entity.Store
	widgets WidgetRegistry
}

// NewModelProvider returns a provider over store. widgets may be nil.
func NewModelProvider(store *entity.Store, widgets WidgetRegistry) *ModelProvider {
	return &ModelProvider{store: store, widgets: widgets}
}

// Measure implements Provider.
func (p *ModelProvider) Measure(id string) (models.Rect, bool) {
	cell := float64(p.store.Grid().CellSize)
	if n, ok := p.store.Note(id); ok {
		return models.Rect{X: n.X, Y: n.Y, Width: float64(n.Width) * cell, Height: float64(n.Height) * cell}, true
	}
	if e, ok := p.store.Element(id); ok {
		return models.Rect{X: e.X, Y: e.Y, Width: float64(e.Width) * cell, Height: float64(e.Height) * cell}, true
	}
	if a, ok := p.store.Assistant(); ok && a.ID == id {
		return models.Rect{X: a.X, Y: a.Y, Width: float64(a.Width) * cell, Height: float64(a.Height) * cell}, true
	}
	if p.widgets != nil {
		if r, ok := p.widgets.WidgetRect(id); ok {
			d := p.store.Dashboard()
			return models.Rect{X: d.X + r.X, Y: d.Y + r.Y, Width: r.Width, Height: r.Height}, true
		}
	}
	return models.Rect{}, false
}

// Poller caches measurements from a source provider and refreshes them only
// at checkpoints: Mount, store mutations and a coarse periodic Tick. It is
// driven from the event loop and is not safe for concurrent use.
type Poller struct {
	source   Provider
	ids      func() []string
	interval time.Duration
	logger   *slog.Logger

	rects       map[string]models.Rect
	lastRefresh time.Time
}

// NewPoller returns a poller that measures every id returned by ids.
func NewPoller(source Provider, ids func() []string, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:   source,
		ids:      ids,
		interval: interval,
		logger:   logger.With("component", "layout"),
		rects:    make(map[string]models.Rect),
	}
}

// Mount takes the initial measurement.
func (p *Poller) Mount(now time.Time) { p.refresh(now) }

// Watch refreshes the cache after every store mutation.
func (p *Poller) Watch(store *entity.Store) {
	store.Observe(func(entity.Change) { p.refresh(store.Now()) })
}

// Tick refreshes the cache when the poll interval has elapsed since the last
// refresh. It reports whether a refresh happened.
func (p *Poller) Tick(now time.Time) bool {
	if p.interval <= 0 || now.Sub(p.lastRefresh) < p.interval {
		return false
	}
	p.refresh(now)
	p.logger.Debug("layout refreshed", slog.Int("entities", len(p.rects)))
	return true
}

func (p *Poller) refresh(now time.Time) {
	ids := p.ids()
	next := make(map[string]models.Rect, len(ids))
	for _, id := range ids {
		if r, ok := p.source.Measure(id); ok {
			next[id] = r
		}
	}
	p.rects = next
	p.lastRefresh = now
}

// Measure implements Provider using the cached rectangles.
func (p *Poller) Measure(id string) (models.Rect, bool) {
	r, ok := p.rects[id]
	return r, ok
}
