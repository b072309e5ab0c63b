// Package cascade couples one position loop to the two pressure loops of
// an antagonistic muscle pair.
package cascade

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/pamjoint/internal/control"
)

// ErrBaseBias indicates a non-finite nominal pressure.
var ErrBaseBias = errors.New("cascade: base bias must be finite")

// Config gathers the construction parameters of the three loops.
type Config struct {
	Outer    control.Config
	InnerA   control.Config
	InnerB   control.Config
	BaseBias float64
}

// Coordinator owns the outer position loop and both inner pressure loops.
// The outer output is a pressure delta that is split symmetrically around
// BaseBias: muscle A is asked for base+delta and muscle B for base-delta.
type Coordinator struct {
	outer    *control.PID
	innerA   *control.PID
	innerB   *control.PID
	baseBias float64
	delta    float64
}

func New(cfg Config) (*Coordinator, error) {
	if math.IsNaN(cfg.BaseBias) || math.IsInf(cfg.BaseBias, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrBaseBias, cfg.BaseBias)
	}
	outer, err := control.NewPID(cfg.Outer)
	if err != nil {
		return nil, fmt.Errorf("outer loop: %w", err)
	}
	innerA, err := control.NewPID(cfg.InnerA)
	if err != nil {
		return nil, fmt.Errorf("inner loop A: %w", err)
	}
	innerB, err := control.NewPID(cfg.InnerB)
	if err != nil {
		return nil, fmt.Errorf("inner loop B: %w", err)
	}
	return &Coordinator{
		outer:    outer,
		innerA:   innerA,
		innerB:   innerB,
		baseBias: cfg.BaseBias,
	}, nil
}

// SetTargetAngle sets the outer setpoint. It is read by the next Tick.
func (c *Coordinator) SetTargetAngle(angle float64) {
	c.outer.SetSetpoint(angle)
}

func (c *Coordinator) TargetAngle() float64 { return c.outer.Setpoint() }

// Tick runs one cascade cycle and returns the raw duty requests for the
// two inlet valves, each already clamped to its inner loop bounds.
func (c *Coordinator) Tick(filteredAngle, pressureA, pressureB float64) (dutyA, dutyB float64) {
	c.delta = c.outer.Compute(filteredAngle)

	c.innerA.SetSetpoint(c.baseBias + c.delta)
	c.innerB.SetSetpoint(c.baseBias - c.delta)

	dutyA = c.innerA.Compute(pressureA)
	dutyB = c.innerB.Compute(pressureB)
	return dutyA, dutyB
}

// Setpoints returns the inner pressure targets computed by the last Tick.
func (c *Coordinator) Setpoints() (a, b float64) {
	return c.innerA.Setpoint(), c.innerB.Setpoint()
}

// Delta returns the outer loop output of the last Tick.
func (c *Coordinator) Delta() float64 { return c.delta }

func (c *Coordinator) BaseBias() float64 { return c.baseBias }

// Reset clears the integral and derivative history of all three loops.
// The target angle is kept.
func (c *Coordinator) Reset() {
	c.outer.Reset()
	c.innerA.Reset()
	c.innerB.Reset()
	c.delta = 0
}

// Loops exposes the three controllers read-only for telemetry.
func (c *Coordinator) Loops() (outer, innerA, innerB control.Terms) {
	return c.outer.Terms(), c.innerA.Terms(), c.innerB.Terms()
}
