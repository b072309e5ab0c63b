package cycle

import (
	"context"
	"sync"
	"time"
)

// Clock schedules the control loop against absolute deadlines.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until t or until ctx is done, returning ctx.Err()
	// in the latter case. A deadline in the past returns immediately.
	SleepUntil(ctx context.Context, t time.Time) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// VirtualClock is a simulated clock that only moves when slept on or
// advanced. Hooks registered with OnAdvance see every interval the clock
// moves through, which is how a simulated plant is stepped in lockstep
// with the controller.
type VirtualClock struct {
	mu    sync.Mutex
	now   time.Time
	hooks []func(from, to time.Time)
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// OnAdvance registers fn to run after every forward move of the clock.
func (c *VirtualClock) OnAdvance(fn func(from, to time.Time)) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

func (c *VirtualClock) SleepUntil(ctx context.Context, t time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.advanceTo(t)
	return nil
}

// Advance moves the clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) {
	c.advanceTo(c.Now().Add(d))
}

func (c *VirtualClock) advanceTo(t time.Time) {
	c.mu.Lock()
	from := c.now
	if !t.After(from) {
		c.mu.Unlock()
		return
	}
	c.now = t
	hooks := append([]func(from, to time.Time){}, c.hooks...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(from, t)
	}
}

// PacedClock runs a VirtualClock at Speed times wall-clock rate, for
// watching a simulation live.
type PacedClock struct {
	*VirtualClock
	Speed float64
}

func (c PacedClock) SleepUntil(ctx context.Context, t time.Time) error {
	if d := t.Sub(c.Now()); d > 0 && c.Speed > 0 {
		wall := time.Duration(float64(d) / c.Speed)
		if err := (SystemClock{}).SleepUntil(ctx, time.Now().Add(wall)); err != nil {
			return err
		}
	}
	return c.VirtualClock.SleepUntil(ctx, t)
}
