package cascade

import (
	"errors"
	"fmt"
	"math"
)

// ErrModulus indicates a non-positive sensor modulus.
var ErrModulus = errors.New("cascade: angle modulus must be positive")

// Reference converts raw modular angle counts into a signed angle relative
// to a captured zero point.
type Reference struct {
	modulus float64
	zero    float64
	set     bool
}

func NewReference(modulus int) (*Reference, error) {
	if modulus <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrModulus, modulus)
	}
	return &Reference{modulus: float64(modulus)}, nil
}

// Capture stores raw as the new zero point.
func (r *Reference) Capture(raw float64) {
	r.zero = math.Mod(raw, r.modulus)
	if r.zero < 0 {
		r.zero += r.modulus
	}
	r.set = true
}

func (r *Reference) IsSet() bool      { return r.set }
func (r *Reference) Zero() float64    { return r.zero }
func (r *Reference) Modulus() float64 { return r.modulus }

// Relative returns the shortest signed distance in counts from the zero
// point to raw.
func (r *Reference) Relative(raw float64) float64 {
	return Wrap(raw-r.zero, r.modulus)
}

// Degrees converts a count distance to degrees.
func (r *Reference) Degrees(counts float64) float64 {
	return counts * 360 / r.modulus
}

// Counts converts degrees to a count distance.
func (r *Reference) Counts(deg float64) float64 {
	return deg * r.modulus / 360
}

// Unwrap returns the representative of raw that lies closest to near, so a
// filter tracking near does not see a full-range jump when the sensor
// crosses its wrap point.
func (r *Reference) Unwrap(raw, near float64) float64 {
	return near + Wrap(raw-near, r.modulus)
}

// Wrap folds diff into [-modulus/2, modulus/2].
func Wrap(diff, modulus float64) float64 {
	half := modulus / 2
	if diff > modulus || diff < -modulus {
		diff = math.Mod(diff, modulus)
	}
	if diff > half {
		diff -= modulus
	} else if diff < -half {
		diff += modulus
	}
	return diff
}
