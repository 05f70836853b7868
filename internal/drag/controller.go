package drag

import (
	"log/slog"
	"time"
)

// DefaultMoveInterval is the minimum spacing between processed pointer moves.
const DefaultMoveInterval = 30 * time.Millisecond

// Controller owns the gesture state and rate-limits pointer moves. Moves
// arriving inside the interval are parked; the newest parked move is applied
// on the next Flush or before any pointer-up.
type Controller struct {
	env      Env
	interval time.Duration
	logger   *slog.Logger

	state    State
	lastMove time.Time
	pending  *PointerMove
}

// NewController returns an idle controller.
func NewController(env Env, interval time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		env:      env,
		interval: interval,
		logger:   logger.With("component", "drag"),
	}
}

// State returns the current gesture state.
func (c *Controller) State() State { return c.state }

// Handle feeds ev through the state machine at time now.
func (c *Controller) Handle(ev Event, now time.Time) []Effect {
	switch e := ev.(type) {
	case PointerMove:
		if c.interval > 0 && !c.lastMove.IsZero() && now.Sub(c.lastMove) < c.interval {
			c.pending = &e
			return nil
		}
		c.pending = nil
		c.lastMove = now
		return c.step(e)

	case PointerUp:
		effects := c.Flush(now, true)
		return append(effects, c.step(e)...)

	case Cancel:
		c.pending = nil
		return c.step(e)

	case PointerDown:
		c.pending = nil
		c.lastMove = time.Time{}
		return c.step(e)
	}
	return c.step(ev)
}

// Flush applies a parked pointer move once the interval has elapsed, or
// unconditionally when force is set.
func (c *Controller) Flush(now time.Time, force bool) []Effect {
	if c.pending == nil {
		return nil
	}
	if !force && now.Sub(c.lastMove) < c.interval {
		return nil
	}
	move := *c.pending
	c.pending = nil
	c.lastMove = now
	return c.step(move)
}

func (c *Controller) step(ev Event) []Effect {
	prev := c.state.Kind
	next, effects := Step(c.state, ev, c.env)
	c.state = next
	if next.Kind != prev {
		c.logger.Debug("gesture transition",
			slog.String("from", prev.String()),
			slog.String("to", next.Kind.String()))
	}
	return effects
}
