// Package viewport implements the canvas-wide zoom/pan transform.
package viewport

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
)

// LinkScale caps the zoom while a note is being linked to the dashboard.
const LinkScale = 0.4

const focusLift = 50.0

// Config holds viewport limits and timings.
type Config struct {
	MinScale          float64
	MaxScale          float64
	DefaultScale      float64
	ZoomStep          float64
	PanSettle         time.Duration
	AnimationDuration time.Duration
}

// DefaultConfig returns the stock viewport configuration.
func DefaultConfig() Config {
	return Config{
		MinScale:          0.15,
		MaxScale:          2.0,
		DefaultScale:      0.8,
		ZoomStep:          0.2,
		PanSettle:         100 * time.Millisecond,
		AnimationDuration: 500 * time.Millisecond,
	}
}

// Transform is the screen = canvas*scale + translate mapping.
type Transform struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translateX"`
	TranslateY float64 `json:"translateY"`
}

type animation struct {
	from  Transform
	to    Transform
	start time.Time
}

// Viewport tracks the current transform, panning state and any running
// recentre animation. Time is passed in explicitly so callers control it.
type Viewport struct {
	cfg Config
	cur Transform

	panEnabled bool
	panActive  bool
	lastPan    time.Time

	anim *animation
}

// New returns a viewport at the default scale with no translation.
func New(cfg Config) *Viewport {
	return &Viewport{
		cfg:        cfg,
		cur:        Transform{Scale: clamp(cfg.DefaultScale, cfg.MinScale, cfg.MaxScale)},
		panEnabled: true,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Config returns the viewport configuration.
func (v *Viewport) Config() Config { return v.cfg }

// Transform returns the current transform.
func (v *Viewport) Transform() Transform { return v.cur }

// Scale returns the current zoom factor.
func (v *Viewport) Scale() float64 { return v.cur.Scale }

// SetTransform installs t directly, clamping the scale. Non-finite
// components keep their current value.
func (v *Viewport) SetTransform(t Transform) {
	v.anim = nil
	if !finite(t.Scale) {
		t.Scale = v.cur.Scale
	}
	if !finite(t.TranslateX, t.TranslateY) {
		t.TranslateX, t.TranslateY = v.cur.TranslateX, v.cur.TranslateY
	}
	t.Scale = clamp(t.Scale, v.cfg.MinScale, v.cfg.MaxScale)
	v.cur = t
}

// SetZoom sets the scale, clamped to the configured range. A non-finite
// target is ignored.
func (v *Viewport) SetZoom(target float64) {
	if !finite(target) {
		return
	}
	v.anim = nil
	v.cur.Scale = clamp(target, v.cfg.MinScale, v.cfg.MaxScale)
}

// ZoomIn increases the scale by step; a non-positive step uses the default.
func (v *Viewport) ZoomIn(step float64) {
	if !finite(step) {
		return
	}
	if step <= 0 {
		step = v.cfg.ZoomStep
	}
	v.SetZoom(v.cur.Scale + step)
}

// ZoomOut decreases the scale by step; a non-positive step uses the default.
func (v *Viewport) ZoomOut(step float64) {
	if !finite(step) {
		return
	}
	if step <= 0 {
		step = v.cfg.ZoomStep
	}
	v.SetZoom(v.cur.Scale - step)
}

// ZoomAt multiplies the scale by factor keeping the screen point anchor fixed.
func (v *Viewport) ZoomAt(factor float64, anchor models.Point) {
	if !finite(factor, anchor.X, anchor.Y) || factor <= 0 {
		return
	}
	v.anim = nil
	next := clamp(v.cur.Scale*factor, v.cfg.MinScale, v.cfg.MaxScale)
	ratio := next / v.cur.Scale
	v.cur.TranslateX = anchor.X - (anchor.X-v.cur.TranslateX)*ratio
	v.cur.TranslateY = anchor.Y - (anchor.Y-v.cur.TranslateY)*ratio
	v.cur.Scale = next
}

// ResetView animates the transform so the dashboard centre sits in the
// middle of the viewport at the default scale.
func (v *Viewport) ResetView(viewport models.Size, dashboard grid.Placement, now time.Time) {
	cx, cy := dashboard.Center()
	v.FocusOn(viewport, models.Point{X: cx, Y: cy}, v.cfg.DefaultScale, now)
}

// FocusOn animates the transform so the canvas point target is centred at
// the given scale.
func (v *Viewport) FocusOn(viewport models.Size, target models.Point, scale float64, now time.Time) {
	if !finite(scale, target.X, target.Y, viewport.Width, viewport.Height) {
		return
	}
	scale = clamp(scale, v.cfg.MinScale, v.cfg.MaxScale)
	to := Transform{
		Scale:      scale,
		TranslateX: viewport.Width/2 - target.X*scale,
		TranslateY: viewport.Height/2 - target.Y*scale,
	}
	if v.cfg.AnimationDuration <= 0 {
		v.cur = to
		v.anim = nil
		return
	}
	v.anim = &animation{from: v.cur, to: to, start: now}
}

// FocusDashboard zooms out to show the whole dashboard while a note is being
// linked. The dashboard centre lands 50 px above the viewport centre.
func (v *Viewport) FocusDashboard(viewport models.Size, dashboard grid.Placement, scale float64, now time.Time) {
	cx, cy := dashboard.Center()
	scale = clamp(scale, v.cfg.MinScale, v.cfg.MaxScale)
	v.FocusOn(viewport, models.Point{X: cx, Y: cy + focusLift/scale}, scale, now)
}

// Animating reports whether a recentre animation is in progress.
func (v *Viewport) Animating() bool { return v.anim != nil }

// Advance moves a running animation to now and returns the transform.
func (v *Viewport) Advance(now time.Time) Transform {
	if v.anim == nil {
		return v.cur
	}
	progress := float64(now.Sub(v.anim.start)) / float64(v.cfg.AnimationDuration)
	if progress >= 1 {
		v.cur = v.anim.to
		v.anim = nil
		return v.cur
	}
	progress = math.Max(0, progress)
	eased := progress * progress * progress
	lerp := func(a, b float64) float64 { return a + (b-a)*eased }
	v.cur = Transform{
		Scale:      lerp(v.anim.from.Scale, v.anim.to.Scale),
		TranslateX: lerp(v.anim.from.TranslateX, v.anim.to.TranslateX),
		TranslateY: lerp(v.anim.from.TranslateY, v.anim.to.TranslateY),
	}
	return v.cur
}

// SetPanEnabled toggles canvas panning. Gestures disable it while they own
// the pointer.
func (v *Viewport) SetPanEnabled(enabled bool) {
	v.panEnabled = enabled
	if !enabled {
		v.panActive = false
	}
}

// PanEnabled reports whether canvas panning is allowed.
func (v *Viewport) PanEnabled() bool { return v.panEnabled }

// PanStart marks the beginning of a pan gesture.
func (v *Viewport) PanStart(now time.Time) {
	if !v.panEnabled {
		return
	}
	v.anim = nil
	v.panActive = true
	v.lastPan = now
}

// PanBy translates the canvas by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64, now time.Time) {
	if !v.panEnabled || !finite(dx, dy) {
		return
	}
	v.anim = nil
	v.cur.TranslateX += dx
	v.cur.TranslateY += dy
	v.panActive = true
	v.lastPan = now
}

// PanStop marks the end of a pan gesture.
func (v *Viewport) PanStop(now time.Time) {
	if !v.panActive {
		return
	}
	v.panActive = false
	v.lastPan = now
}

// IsPanning is true during a pan and for the settle delay after it stops.
func (v *Viewport) IsPanning(now time.Time) bool {
	if v.panActive {
		return true
	}
	if v.lastPan.IsZero() {
		return false
	}
	return now.Sub(v.lastPan) < v.cfg.PanSettle
}

// Matrix returns the 3x3 homogeneous canvas-to-screen matrix.
func (v *Viewport) Matrix() *mat.Dense {
	t := v.cur
	return mat.NewDense(3, 3, []float64{
		t.Scale, 0, t.TranslateX,
		0, t.Scale, t.TranslateY,
		0, 0, 1,
	})
}

func apply(m mat.Matrix, p models.Point) models.Point {
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(3, []float64{p.X, p.Y, 1}))
	return models.Point{X: out.AtVec(0), Y: out.AtVec(1)}
}

// CanvasToScreen maps a canvas point to screen space.
func (v *Viewport) CanvasToScreen(p models.Point) models.Point {
	return apply(v.Matrix(), p)
}

// ScreenToCanvas maps a screen point back to canvas space.
func (v *Viewport) ScreenToCanvas(p models.Point) models.Point {
	var inv mat.Dense
	if err := inv.Inverse(v.Matrix()); err != nil {
		// Scale is clamped above zero so the matrix is always invertible.
		return p
	}
	return apply(&inv, p)
}

// ScaleDelta converts a screen-space pointer delta into canvas pixels.
func (v *Viewport) ScaleDelta(dx, dy float64) (float64, float64) {
	return dx / v.cur.Scale, dy / v.cur.Scale
}
