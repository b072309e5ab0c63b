package control

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvertedBounds indicates an output envelope with min > max.
	ErrInvertedBounds = errors.New("control: output min exceeds output max")

	// ErrIntegralBound indicates a negative or NaN integral bound.
	ErrIntegralBound = errors.New("control: integral bound must be non-negative")

	// ErrDeadZone indicates a negative or NaN dead zone.
	ErrDeadZone = errors.New("control: dead zone must be non-negative")

	// ErrGain indicates a gain that is NaN or infinite.
	ErrGain = errors.New("control: gains must be finite")
)

type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Config is the construction-time parameter set of a PID loop.
type Config struct {
	Gains
	OutputMin     float64
	OutputMax     float64
	IntegralBound float64
	DeadZone      float64
}

// Validate reports the first misconfiguration found in c.
func (c Config) Validate() error {
	for _, g := range []float64{c.Kp, c.Ki, c.Kd} {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return fmt.Errorf("%w: kp=%v ki=%v kd=%v", ErrGain, c.Kp, c.Ki, c.Kd)
		}
	}
	if math.IsNaN(c.OutputMin) || math.IsNaN(c.OutputMax) || c.OutputMin > c.OutputMax {
		return fmt.Errorf("%w: [%v, %v]", ErrInvertedBounds, c.OutputMin, c.OutputMax)
	}
	if !(c.IntegralBound >= 0) {
		return fmt.Errorf("%w: got %v", ErrIntegralBound, c.IntegralBound)
	}
	if !(c.DeadZone >= 0) {
		return fmt.Errorf("%w: got %v", ErrDeadZone, c.DeadZone)
	}
	return nil
}

// DefaultIntegralBound is half the output range, the bound used when a
// loop does not configure one explicitly.
func DefaultIntegralBound(min, max float64) float64 {
	return (max - min) * 0.5
}

// Terms holds the individual contributions of the most recent Compute call.
type Terms struct {
	P     float64
	I     float64
	D     float64
	Error float64
}

type PID struct {
	cfg      Config
	setpoint float64
	integral float64
	prevErr  float64
	last     Terms
}

func NewPID(cfg Config) (*PID, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg}, nil
}

func (p *PID) SetSetpoint(sp float64) { p.setpoint = sp }
func (p *PID) Setpoint() float64      { return p.setpoint }
func (p *PID) Integral() float64      { return p.integral }
func (p *PID) Terms() Terms           { return p.last }
func (p *PID) Config() Config         { return p.cfg }

// Compute runs one cycle of the control law against a measurement and
// returns the clamped output.
func (p *PID) Compute(measured float64) float64 {
	err := p.setpoint - measured

	inDeadZone := err > -p.cfg.DeadZone && err < p.cfg.DeadZone
	if inDeadZone {
		err = 0
	}

	// The zeroed error still integrates so a plant held just outside the
	// dead zone keeps winding up towards the target.
	p.integral = clamp(p.integral+err, -p.cfg.IntegralBound, p.cfg.IntegralBound)

	derivative := err - p.prevErr
	// No 0 - prevErr kick on entering the zone: D is silent throughout it.
	if inDeadZone {
		derivative = 0
	}

	p.last = Terms{
		P:     p.cfg.Kp * err,
		I:     p.cfg.Ki * p.integral,
		D:     p.cfg.Kd * derivative,
		Error: err,
	}
	out := clamp(p.last.P+p.last.I+p.last.D, p.cfg.OutputMin, p.cfg.OutputMax)

	p.prevErr = err
	return out
}

// Reset clears integral and derivative state. Gains, bounds and setpoint are kept.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.last = Terms{}
}

// Params returns the loop parameters for telemetry.
func (p *PID) Params() map[string]float64 {
	return map[string]float64{
		"Kp":       p.cfg.Kp,
		"Ki":       p.cfg.Ki,
		"Kd":       p.cfg.Kd,
		"Setpoint": p.setpoint,
		"DeadZone": p.cfg.DeadZone,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
