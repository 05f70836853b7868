// Package render is the boundary to widget rendering and the raster export of
// a playground scene.
package render

import "slices"

// Dataset is the opaque row set a widget is rendered from.
type Dataset []map[string]any

// Renderable is whatever a WidgetRenderer produces. The playground never
// inspects it.
type Renderable any

// WidgetRenderer draws the body of a dropped dashboard element. A nil result
// means the element has nothing to show.
type WidgetRenderer interface {
	Render(elementID string, data Dataset) Renderable
}

// RendererFunc adapts a function to WidgetRenderer.
type RendererFunc func(elementID string, data Dataset) Renderable

// Render implements WidgetRenderer.
func (f RendererFunc) Render(elementID string, data Dataset) Renderable {
	return f(elementID, data)
}

// Summary is the Renderable produced by SummaryRenderer.
type Summary struct {
	ElementID string
	Rows      int
	Columns   []string
}

// SummaryRenderer renders a dataset as a row/column summary. It is the
// fallback used by hosts without a chart engine.
var SummaryRenderer = RendererFunc(func(elementID string, data Dataset) Renderable {
	if len(data) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var cols []string
	for _, row := range data {
		for k := range row {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return Summary{ElementID: elementID, Rows: len(data), Columns: cols}
})
