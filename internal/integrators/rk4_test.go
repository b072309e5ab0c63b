package integrators

import (
	"math"
	"testing"
)

type oscillator struct{}

func (oscillator) Derive(x State, u []float64, t float64) State {
	return State{x[1], -x[0]}
}

// firstOrderLag is dp/dt = a*u*(s-p) - c*p, the muscle fill model.
type firstOrderLag struct{ a, c, s float64 }

func (f firstOrderLag) Derive(x State, u []float64, t float64) State {
	return State{f.a*u[0]*(f.s-x[0]) - f.c*x[0]}
}

func TestRK4Accuracy(t *testing.T) {
	integ := NewRK4()

	x := State{1.0, 0.0}
	dt := 0.01
	steps := 100
	for i := 0; i < steps; i++ {
		x = integ.Step(oscillator{}, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestFirstOrderLagSteadyState(t *testing.T) {
	sys := firstOrderLag{a: 8, c: 1.5, s: 600}
	u := []float64{0.5}
	// p* = a u s / (a u + c)
	want := 8 * 0.5 * 600 / (8*0.5 + 1.5)

	tests := []struct {
		name string
		step Stepper
		tol  float64
	}{
		{"rk4", NewRK4(), 1e-6},
		{"euler", NewEuler(), 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := State{0}
			for i := 0; i < 10000; i++ {
				x = tt.step.Step(sys, x, u, float64(i)*1e-3, 1e-3)
			}
			if math.Abs(x[0]-want) > tt.tol*want {
				t.Errorf("expected %.4f, got %.4f", want, x[0])
			}
		})
	}
}

func TestRK4MoreAccurateThanEuler(t *testing.T) {
	sys := firstOrderLag{a: 8, c: 1.5, s: 600}
	u := []float64{1}
	// closed form from p(0)=0: p* (1 - e^{-(a+c) t})
	k := 8.0 + 1.5
	exact := 8 * 600 / k * (1 - math.Exp(-k*0.1))

	rk, eu := State{0}, State{0}
	for i := 0; i < 10; i++ {
		rk = NewRK4().Step(sys, rk, u, 0, 0.01)
		eu = NewEuler().Step(sys, eu, u, 0, 0.01)
	}
	if math.Abs(rk[0]-exact) >= math.Abs(eu[0]-exact) {
		t.Errorf("rk4 error %g not below euler error %g", math.Abs(rk[0]-exact), math.Abs(eu[0]-exact))
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "rk4", "euler"} {
		if _, err := New(name); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("verlet"); err == nil {
		t.Error("expected unknown method to fail")
	}
}

func TestStateIsValid(t *testing.T) {
	if !(State{1, 2}).IsValid() {
		t.Error("finite state reported invalid")
	}
	if (State{1, math.NaN()}).IsValid() || (State{math.Inf(-1)}).IsValid() {
		t.Error("non-finite state reported valid")
	}
	s := State{1, 2}
	c := s.Clone()
	c[0] = 9
	if s[0] != 1 {
		t.Error("Clone shares storage")
	}
}
