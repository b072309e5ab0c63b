package integrators

// Euler is the explicit first-order method.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys System, x State, u []float64, t, dt float64) State {
	dx := sys.Derive(x, u, t)
	result := make(State, len(x))
	for i := range x {
		result[i] = x[i] + dt*dx[i]
	}
	return result
}
