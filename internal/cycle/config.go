package cycle

import (
	"fmt"
	"time"

	"github.com/san-kum/pamjoint/internal/cascade"
	"github.com/san-kum/pamjoint/internal/control"
	"github.com/san-kum/pamjoint/internal/hal"
)

// FailSafe selects what a cycle writes when a sensor read fails.
type FailSafe string

const (
	// FailSafeHold writes nothing; the last duty stays latched.
	FailSafeHold FailSafe = "hold"
	// FailSafeDuty writes Config.FailSafeDuty to both inlet valves.
	FailSafeDuty FailSafe = "duty"
)

// EstimatorConfig are the scalar Kalman parameters in sensor counts.
type EstimatorConfig struct {
	Initial          float64
	Covariance       float64
	ProcessNoise     float64
	MeasurementNoise float64
}

// Channels maps loop inputs and outputs to device channels.
type Channels struct {
	Angle     int
	PressureA int
	PressureB int
	ValveA    int
	ValveB    int
}

type Config struct {
	Period      time.Duration
	ReadTimeout time.Duration

	FailSafe       FailSafe
	FailSafeDuty   uint32
	FaultThreshold int

	AngleModulus int
	Channels     Channels
	Estimator    EstimatorConfig
	Cascade      cascade.Config

	// CommandQueue is the capacity of the external command queue.
	CommandQueue int
}

// DefaultConfig returns the tuned defaults for the reference joint: 50 Hz,
// outer loop in degrees producing a pressure delta in kPa, inner loops
// producing a 13-bit inlet duty.
func DefaultConfig() Config {
	outer := control.Config{
		Gains:     control.Gains{Kp: 2, Ki: 0.1, Kd: 0.5},
		OutputMin: -150,
		OutputMax: 150,
		DeadZone:  1,
	}
	outer.IntegralBound = control.DefaultIntegralBound(outer.OutputMin, outer.OutputMax)

	inner := control.Config{
		Gains:     control.Gains{Kp: 15, Ki: 0.5},
		OutputMin: 0,
		OutputMax: hal.MaxDuty,
	}
	inner.IntegralBound = control.DefaultIntegralBound(inner.OutputMin, inner.OutputMax)

	return Config{
		Period:         20 * time.Millisecond,
		ReadTimeout:    5 * time.Millisecond,
		FailSafe:       FailSafeHold,
		FaultThreshold: 5,
		AngleModulus:   hal.AngleModulus,
		Channels: Channels{
			Angle:     0,
			PressureA: 0,
			PressureB: 1,
			ValveA:    hal.ValveAIn,
			ValveB:    hal.ValveBIn,
		},
		Estimator: EstimatorConfig{
			Initial:          0,
			Covariance:       2,
			ProcessNoise:     1,
			MeasurementNoise: 1,
		},
		Cascade: cascade.Config{
			Outer:    outer,
			InnerA:   inner,
			InnerB:   inner,
			BaseBias: 300,
		},
		CommandQueue: 16,
	}
}

// Validate checks the driver settings. Loop and estimator parameters are
// checked by their own constructors.
func (c Config) Validate() error {
	if c.Period <= 0 {
		return fmt.Errorf("%w: %v", ErrPeriod, c.Period)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: %v", ErrReadTimeout, c.ReadTimeout)
	}
	switch c.FailSafe {
	case FailSafeHold, FailSafeDuty:
	default:
		return fmt.Errorf("%w: %q", ErrFailSafe, c.FailSafe)
	}
	if c.FailSafeDuty > hal.MaxDuty {
		return fmt.Errorf("%w: %d", ErrFailSafeDuty, c.FailSafeDuty)
	}
	if c.FaultThreshold < 1 {
		return fmt.Errorf("%w: %d", ErrThreshold, c.FaultThreshold)
	}
	if c.AngleModulus <= 0 {
		return fmt.Errorf("%w: %d", cascade.ErrModulus, c.AngleModulus)
	}
	ch := c.Channels
	if ch.Angle < 0 || ch.PressureA < 0 || ch.PressureB < 0 || ch.PressureA == ch.PressureB {
		return fmt.Errorf("%w: sensors %+v", ErrChannels, ch)
	}
	if ch.ValveA < 0 || ch.ValveA >= hal.NumValves || ch.ValveB < 0 || ch.ValveB >= hal.NumValves || ch.ValveA == ch.ValveB {
		return fmt.Errorf("%w: valves %d and %d", ErrChannels, ch.ValveA, ch.ValveB)
	}
	return nil
}
