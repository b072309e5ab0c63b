package plant

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/pamjoint/internal/hal"
)

var ErrParams = errors.New("plant: invalid parameters")

type Params struct {
	// Muscle pneumatics.
	FillRate        float64 // a, 1/s at full inlet duty
	LeakRate        float64 // c, 1/s
	InitialPressure float64 // kPa in both muscles

	// Joint mechanics.
	NaturalFreq  float64 // w, rad/s
	Damping      float64 // zeta
	Gain         float64 // g, degrees per kPa of pressure difference
	InitialAngle float64 // degrees

	// Supply reservoir.
	SupplyPressure float64 // kPa at start
	SupplyMax      float64 // kPa ceiling of the compressor
	PumpRate       float64 // kPa/s with the relay on
	DrawRate       float64 // kPa/s drawn per fully open inlet
	SwitchLow      float64 // switch closes below this, kPa
	SwitchHigh     float64 // switch opens above this, kPa

	// Sensors.
	ZeroRaw       uint16  // encoder count at theta = 0
	AngleNoise    float64 // counts, standard deviation
	PressureNoise float64 // kPa, standard deviation
	DropoutRate   float64 // probability a read fails
	Seed          int64

	Integrator string
	SubStep    time.Duration
}

// DefaultParams is a joint with a ~4 Hz mechanical mode, a 600 kPa supply
// and an encoder mounted so that the rest position sits next to the wrap
// point.
func DefaultParams() Params {
	return Params{
		FillRate:        8,
		LeakRate:        1.5,
		InitialPressure: 0,

		NaturalFreq: 25,
		Damping:     0.8,
		Gain:        0.5,

		SupplyPressure: 600,
		SupplyMax:      700,
		PumpRate:       150,
		DrawRate:       20,
		SwitchLow:      550,
		SwitchHigh:     650,

		ZeroRaw:       4090,
		AngleNoise:    2,
		PressureNoise: 1,
		DropoutRate:   0,
		Seed:          1,

		Integrator: "rk4",
		SubStep:    time.Millisecond,
	}
}

func (p Params) Validate() error {
	switch {
	case p.FillRate <= 0 || p.LeakRate < 0:
		return fmt.Errorf("%w: fill rate %v, leak rate %v", ErrParams, p.FillRate, p.LeakRate)
	case p.NaturalFreq <= 0 || p.Damping < 0:
		return fmt.Errorf("%w: natural frequency %v, damping %v", ErrParams, p.NaturalFreq, p.Damping)
	case p.SupplyPressure < 0 || p.SupplyMax < p.SupplyPressure:
		return fmt.Errorf("%w: supply %v exceeds max %v", ErrParams, p.SupplyPressure, p.SupplyMax)
	case p.SwitchLow > p.SwitchHigh:
		return fmt.Errorf("%w: switch band [%v, %v]", ErrParams, p.SwitchLow, p.SwitchHigh)
	case int(p.ZeroRaw) >= hal.AngleModulus:
		return fmt.Errorf("%w: zero raw %d", ErrParams, p.ZeroRaw)
	case p.AngleNoise < 0 || p.PressureNoise < 0:
		return fmt.Errorf("%w: negative noise", ErrParams)
	case p.DropoutRate < 0 || p.DropoutRate > 1:
		return fmt.Errorf("%w: dropout rate %v", ErrParams, p.DropoutRate)
	case p.SubStep <= 0:
		return fmt.Errorf("%w: sub-step %v", ErrParams, p.SubStep)
	}
	return nil
}
