package layout

import (
	"fmt"
	"math"

	"github.com/starford/pinboard/internal/models"
)

// Connector geometry constants.
const (
	ControlRatio       = 0.4
	MaxControlDistance = 100.0
	NoteNodeInset      = 5.0
)

// Node is a connection node on the edge of an entity.
type Node struct {
	Edge  models.Edge  `json:"edge"`
	Point models.Point `json:"point"`
}

// NodePoint returns the midpoint of the given side of r.
func NodePoint(r models.Rect, e models.Edge) models.Point {
	switch e {
	case models.EdgeTop:
		return models.Point{X: r.X + r.Width/2, Y: r.Y}
	case models.EdgeRight:
		return models.Point{X: r.X + r.Width, Y: r.Y + r.Height/2}
	case models.EdgeBottom:
		return models.Point{X: r.X + r.Width/2, Y: r.Y + r.Height}
	case models.EdgeLeft:
		return models.Point{X: r.X, Y: r.Y + r.Height/2}
	}
	return r.Center()
}

// EdgeNodes returns the four side-midpoint nodes of r.
func EdgeNodes(r models.Rect) []Node {
	nodes := make([]Node, len(models.Edges))
	for i, e := range models.Edges {
		nodes[i] = Node{Edge: e, Point: NodePoint(r, e)}
	}
	return nodes
}

// noteNodes pulls each node inward to clear the note's header and padding.
func noteNodes(r models.Rect) []Node {
	nodes := EdgeNodes(r)
	for i := range nodes {
		switch nodes[i].Edge {
		case models.EdgeTop:
			nodes[i].Point.Y += NoteNodeInset
		case models.EdgeBottom:
			nodes[i].Point.Y -= NoteNodeInset
		case models.EdgeLeft:
			nodes[i].Point.X += NoteNodeInset
		case models.EdgeRight:
			nodes[i].Point.X -= NoteNodeInset
		}
	}
	return nodes
}

// Closest returns the pair of nodes, one from each set, with the smallest
// distance between them.
func Closest(a, b []Node) (Node, Node, bool) {
	best := math.Inf(1)
	var na, nb Node
	found := false
	for _, x := range a {
		for _, y := range b {
			d := math.Hypot(y.Point.X-x.Point.X, y.Point.Y-x.Point.Y)
			if d < best {
				best, na, nb, found = d, x, y, true
			}
		}
	}
	return na, nb, found
}

// Connector is a cubic bezier between two connection nodes.
type Connector struct {
	ConnectionID string       `json:"connectionId,omitempty"`
	Implicit     bool         `json:"implicit,omitempty"`
	From         models.Point `json:"from"`
	To           models.Point `json:"to"`
	FromEdge     models.Edge  `json:"fromEdge"`
	ToEdge       models.Edge  `json:"toEdge"`
	C1           models.Point `json:"c1"`
	C2           models.Point `json:"c2"`
}

func control(p models.Point, e models.Edge, d float64) models.Point {
	switch e {
	case models.EdgeTop:
		p.Y -= d
	case models.EdgeBottom:
		p.Y += d
	case models.EdgeLeft:
		p.X -= d
	case models.EdgeRight:
		p.X += d
	}
	return p
}

// Curve builds the bezier from one node to another. Control points extend
// along each edge's outward normal by min(0.4*distance, 100).
func Curve(from models.Point, fromEdge models.Edge, to models.Point, toEdge models.Edge) Connector {
	d := math.Min(math.Hypot(to.X-from.X, to.Y-from.Y)*ControlRatio, MaxControlDistance)
	return Connector{
		From:     from,
		To:       to,
		FromEdge: fromEdge,
		ToEdge:   toEdge,
		C1:       control(from, fromEdge, d),
		C2:       control(to, toEdge, d),
	}
}

// Path renders the connector as an SVG path string.
func (c Connector) Path() string {
	return fmt.Sprintf("M %.2f %.2f C %.2f %.2f, %.2f %.2f, %.2f %.2f",
		c.From.X, c.From.Y, c.C1.X, c.C1.Y, c.C2.X, c.C2.Y, c.To.X, c.To.Y)
}

// At evaluates the curve at t in [0, 1].
func (c Connector) At(t float64) models.Point {
	u := 1 - t
	a, b, cc, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return models.Point{
		X: a*c.From.X + b*c.C1.X + cc*c.C2.X + d*c.To.X,
		Y: a*c.From.Y + b*c.C1.Y + cc*c.C2.Y + d*c.To.Y,
	}
}

// Connectors builds one curve per manual connection, using the stored edge
// positions. Connections with an unmeasured endpoint are omitted.
func Connectors(conns []models.Connection, p Provider) []Connector {
	out := make([]Connector, 0, len(conns))
	for _, c := range conns {
		src, ok := p.Measure(c.SourceID)
		if !ok {
			continue
		}
		dst, ok := p.Measure(c.TargetID)
		if !ok {
			continue
		}
		curve := Curve(NodePoint(src, c.SourcePosition), c.SourcePosition, NodePoint(dst, c.TargetPosition), c.TargetPosition)
		curve.ConnectionID = c.ID
		out = append(out, curve)
	}
	return out
}

// ImplicitConnectors draws each note's implicit element link between the
// closest pair of edge nodes.
func ImplicitConnectors(notes []models.Note, p Provider) []Connector {
	var out []Connector
	for _, n := range notes {
		if !n.IsLinked || n.LinkedElementID == "" {
			continue
		}
		nr, ok := p.Measure(n.ID)
		if !ok {
			continue
		}
		er, ok := p.Measure(n.LinkedElementID)
		if !ok {
			continue
		}
		a, b, ok := Closest(noteNodes(nr), EdgeNodes(er))
		if !ok {
			continue
		}
		curve := Curve(a.Point, a.Edge, b.Point, b.Edge)
		curve.Implicit = true
		out = append(out, curve)
	}
	return out
}

// Preview builds the live curve from a source node to the pointer. The loose
// end has no edge so its control point sits on the pointer itself.
func Preview(source models.Rect, edge models.Edge, pointer models.Point) Connector {
	return Curve(NodePoint(source, edge), edge, pointer, "")
}
