// Package integrators provides fixed-step ODE solvers for the simulated
// plant.
package integrators

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is an ODE dx/dt = f(x, u, t) with u held constant over a step.
type System interface {
	Derive(x State, u []float64, t float64) State
}

type Stepper interface {
	Step(sys System, x State, u []float64, t, dt float64) State
}

// New returns the stepper registered under name ("rk4" or "euler").
func New(name string) (Stepper, error) {
	switch name {
	case "rk4", "":
		return NewRK4(), nil
	case "euler":
		return NewEuler(), nil
	default:
		return nil, fmt.Errorf("integrators: unknown method %q", name)
	}
}
