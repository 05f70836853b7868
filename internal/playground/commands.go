package playground

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/starford/pinboard/internal/apperr"
	"github.com/starford/pinboard/internal/drag"
	"github.com/starford/pinboard/internal/graph"
	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/viewport"
)

// --- notes ---

// PlaceNote creates a note with its top-left corner at cell.
func (c *Controller) PlaceNote(cell grid.Cell) (models.Note, error) {
	n, err := c.store.CreateNote(cell, "")
	if err != nil {
		return models.Note{}, err
	}
	c.logger.Info("note placed", slog.String("id", n.ID), slog.String("cell", cell.Key()))
	return n, nil
}

// PlaceNoteAt creates a note under the screen point p. Clicks that land while
// the canvas is panning or settling are ignored and return ok=false.
func (c *Controller) PlaceNoteAt(p models.Point) (models.Note, bool, error) {
	if c.viewport.IsPanning(c.now()) || c.gestures.State().Kind != drag.Idle {
		return models.Note{}, false, nil
	}
	canvas := c.viewport.ScreenToCanvas(p)
	n, err := c.PlaceNote(c.store.Grid().PixelToCell(canvas.X, canvas.Y))
	if err != nil {
		return models.Note{}, false, err
	}
	return n, true, nil
}

// PlaceLinkedNote creates a note implicitly linked to a dashboard element.
func (c *Controller) PlaceLinkedNote(cell grid.Cell, elementID string) (models.Note, error) {
	n, err := c.store.CreateNote(cell, elementID)
	if err != nil {
		return models.Note{}, err
	}
	c.logger.Info("linked note placed", slog.String("id", n.ID), slog.String("element_id", elementID))
	return n, nil
}

// EditNote replaces a note's text.
func (c *Controller) EditNote(id, content string) error {
	return c.store.UpdateNoteText(id, content)
}

// ToggleTheme flips a note between light and dark.
func (c *Controller) ToggleTheme(id string) error {
	n, ok := c.store.Note(id)
	if !ok {
		return fmt.Errorf("playground: toggle theme %q: %w", id, apperr.ErrNotFound)
	}
	return c.store.SetNoteTheme(id, !n.IsDark)
}

// DeleteNote removes a note together with every connection touching it.
func (c *Controller) DeleteNote(id string) error {
	if err := c.store.DeleteNote(id); err != nil {
		return err
	}
	c.logger.Info("note deleted", slog.String("id", id))
	return nil
}

// --- elements ---

// DropElement places a copy of a dashboard widget at cell.
func (c *Controller) DropElement(ref models.ElementRef, cell grid.Cell) (models.DroppedElement, error) {
	e, err := c.store.DropElement(ref, cell)
	if err != nil {
		return models.DroppedElement{}, err
	}
	c.logger.Info("element dropped", slog.String("id", e.ID), slog.String("element_id", ref.ElementID))
	return e, nil
}

// DeleteElement removes a dropped element and its connections.
func (c *Controller) DeleteElement(id string) error {
	if err := c.store.DeleteElement(id); err != nil {
		return err
	}
	c.logger.Info("element deleted", slog.String("id", id))
	return nil
}

// ElementBody renders a dropped element's widget with data. A nil result
// means the renderer has nothing to show.
func (c *Controller) ElementBody(id string, data render.Dataset) render.Renderable {
	e, ok := c.store.Element(id)
	if !ok || c.renderer == nil {
		return nil
	}
	return c.renderer.Render(e.ElementID, data)
}

// --- assistant ---

// CreateAssistant places the assistant panel at cell.
func (c *Controller) CreateAssistant(cell grid.Cell) (models.AIAssistant, error) {
	a, err := c.store.CreateAssistant(cell)
	if err != nil {
		return models.AIAssistant{}, err
	}
	c.logger.Info("assistant created", slog.String("id", a.ID))
	return a, nil
}

// DeleteAssistant removes the assistant and its connections.
func (c *Controller) DeleteAssistant() error {
	return c.store.DeleteAssistant()
}

// --- links ---

// LinkNoteToElement sets a note's implicit element link.
func (c *Controller) LinkNoteToElement(noteID, elementID string) error {
	return c.graph.LinkNoteToElement(noteID, elementID)
}

// Unlink clears a note's implicit link.
func (c *Controller) Unlink(noteID string) error {
	return c.graph.RemoveImplicitLink(noteID)
}

// RemoveConnection deletes a manual connection. It reports whether one was
// removed.
func (c *Controller) RemoveConnection(id string) bool {
	ok := c.graph.Remove(id)
	if ok {
		c.logger.Info("connection removed", slog.String("id", id))
	}
	return ok
}

// IsElementLinked reports whether any note links to elementID.
func (c *Controller) IsElementLinked(elementID string) bool {
	return c.graph.IsElementLinked(elementID)
}

// LinkedElementInfo returns the element a note is linked to.
func (c *Controller) LinkedElementInfo(noteID string) (graph.LinkInfo, bool) {
	return c.graph.LinkedElementInfo(noteID)
}

// --- geometry ---

// Resize records the host's canvas size in pixels.
func (c *Controller) Resize(width, height float64) {
	c.store.SetCanvasSize(width, height)
}

// MeasureDashboard records the dashboard's rendered content height.
func (c *Controller) MeasureDashboard(height float64) {
	c.store.SetMeasuredHeight(height)
}

// Occupancy returns the occupied cells, excluding the entity being dragged.
func (c *Controller) Occupancy() grid.Set {
	return c.store.Occupancy(c.gestures.State().TargetID)
}

// --- viewport ---

// SetViewportSize records the visible screen area. Until it is set the
// canvas size is used.
func (c *Controller) SetViewportSize(width, height float64) {
	c.viewportSize = models.Size{Width: width, Height: height}
}

// ResetView animates the dashboard back into the centre of the viewport.
func (c *Controller) ResetView() {
	size := c.viewportSize
	if size.Width <= 0 || size.Height <= 0 {
		size = c.store.CanvasSize()
	}
	c.viewport.ResetView(size, c.store.Dashboard(), c.now())
}

// FocusDashboard zooms out so the whole dashboard is visible for linking.
// The current zoom is kept when it is already below the link scale.
func (c *Controller) FocusDashboard() {
	size := c.viewportSize
	if size.Width <= 0 || size.Height <= 0 {
		size = c.store.CanvasSize()
	}
	scale := math.Min(c.viewport.Transform().Scale, viewport.LinkScale)
	c.viewport.FocusDashboard(size, c.store.Dashboard(), scale, c.now())
}

// ZoomIn zooms in by the configured step.
func (c *Controller) ZoomIn() { c.viewport.ZoomIn(0) }

// ZoomOut zooms out by the configured step.
func (c *Controller) ZoomOut() { c.viewport.ZoomOut(0) }

// SetZoom sets the zoom factor, clamped.
func (c *Controller) SetZoom(scale float64) { c.viewport.SetZoom(scale) }

// ZoomAt zooms by factor around a screen point.
func (c *Controller) ZoomAt(factor float64, anchor models.Point) { c.viewport.ZoomAt(factor, anchor) }
