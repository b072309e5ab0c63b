package plant

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/hal"
	"github.com/san-kum/pamjoint/internal/integrators"
)

const (
	idxPA = iota
	idxPB
	idxTheta
	idxOmega
	idxSupply
	stateDim
)

// Joint is the simulated muscle pair. All methods are safe for concurrent
// use.
type Joint struct {
	mu      sync.Mutex
	p       Params
	stepper integrators.Stepper
	rng     *rand.Rand

	x       integrators.State
	duty    [hal.NumValves]uint32
	relay   bool
	low     bool
	elapsed time.Duration
}

func New(p Params) (*Joint, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	stepper, err := integrators.New(p.Integrator)
	if err != nil {
		return nil, fmt.Errorf("plant: %w", err)
	}

	x := make(integrators.State, stateDim)
	x[idxPA] = p.InitialPressure
	x[idxPB] = p.InitialPressure
	x[idxTheta] = p.InitialAngle
	x[idxSupply] = p.SupplyPressure

	return &Joint{
		p:       p,
		stepper: stepper,
		rng:     rand.New(rand.NewSource(p.Seed)),
		x:       x,
		low:     p.SupplyPressure < p.SwitchLow,
	}, nil
}

// Derive is the plant ODE. u holds the four valve duty fractions in
// channel order followed by the compressor relay state.
func (j *Joint) Derive(x integrators.State, u []float64, t float64) integrators.State {
	p := j.p
	dx := make(integrators.State, stateDim)

	supply := x[idxSupply]
	dx[idxPA] = p.FillRate*u[hal.ValveAIn]*math.Max(supply-x[idxPA], 0) -
		p.LeakRate*x[idxPA] - p.FillRate*u[hal.ValveAOut]*x[idxPA]
	dx[idxPB] = p.FillRate*u[hal.ValveBIn]*math.Max(supply-x[idxPB], 0) -
		p.LeakRate*x[idxPB] - p.FillRate*u[hal.ValveBOut]*x[idxPB]

	w := p.NaturalFreq
	dx[idxTheta] = x[idxOmega]
	dx[idxOmega] = w*w*(p.Gain*(x[idxPA]-x[idxPB])-x[idxTheta]) - 2*p.Damping*w*x[idxOmega]

	dx[idxSupply] = p.PumpRate*u[hal.NumValves] - p.DrawRate*(u[hal.ValveAIn]+u[hal.ValveBIn])
	return dx
}

// Advance integrates the plant over d in sub-steps, holding the valve and
// relay inputs constant.
func (j *Joint) Advance(d time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()

	u := make([]float64, hal.NumValves+1)
	for ch, duty := range j.duty {
		u[ch] = float64(duty) / hal.MaxDuty
	}
	if j.relay {
		u[hal.NumValves] = 1
	}

	for d > 0 {
		h := min(j.p.SubStep, d)
		next := j.stepper.Step(j, j.x, u, j.elapsed.Seconds(), h.Seconds())
		if !next.IsValid() {
			// a non-finite step leaves the state untouched
			break
		}
		next[idxPA] = math.Max(next[idxPA], 0)
		next[idxPB] = math.Max(next[idxPB], 0)
		next[idxSupply] = math.Min(math.Max(next[idxSupply], 0), j.p.SupplyMax)
		j.x = next
		j.elapsed += h
		d -= h
	}
}

// Attach steps the plant whenever clock moves.
func (j *Joint) Attach(clock *cycle.VirtualClock) {
	clock.OnAdvance(func(from, to time.Time) { j.Advance(to.Sub(from)) })
}

// Devices exposes the joint as the driver's hardware.
func (j *Joint) Devices() cycle.Devices {
	return cycle.Devices{Angle: j, Pressure: j, Actuator: j}
}

func (j *Joint) dropped(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return j.p.DropoutRate > 0 && j.rng.Float64() < j.p.DropoutRate
}

func (j *Joint) ReadAngle(ctx context.Context, channel int) (uint16, error) {
	if channel != 0 {
		return 0, fmt.Errorf("plant: %w: angle %d", hal.ErrChannel, channel)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.dropped(ctx) {
		return 0, hal.ErrTimeout
	}

	counts := float64(j.p.ZeroRaw) + j.x[idxTheta]*hal.AngleModulus/360 + j.rng.NormFloat64()*j.p.AngleNoise
	raw := math.Mod(math.Round(counts), hal.AngleModulus)
	if raw < 0 {
		raw += hal.AngleModulus
	}
	return uint16(raw), nil
}

func (j *Joint) ReadPressure(ctx context.Context, channel int) (float64, error) {
	var idx int
	switch channel {
	case 0:
		idx = idxPA
	case 1:
		idx = idxPB
	default:
		return 0, fmt.Errorf("plant: %w: pressure %d", hal.ErrChannel, channel)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.dropped(ctx) {
		return 0, hal.ErrTimeout
	}
	return math.Max(j.x[idx]+j.rng.NormFloat64()*j.p.PressureNoise, 0), nil
}

func (j *Joint) WriteActuator(channel int, duty uint32) error {
	if channel < 0 || channel >= hal.NumValves {
		return fmt.Errorf("plant: %w: valve %d", hal.ErrChannel, channel)
	}
	j.mu.Lock()
	j.duty[channel] = hal.ClampDuty(duty)
	j.mu.Unlock()
	return nil
}

// PressureLow models the reservoir switch, closing below SwitchLow and
// opening above SwitchHigh.
func (j *Joint) PressureLow() (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch s := j.x[idxSupply]; {
	case s < j.p.SwitchLow:
		j.low = true
	case s > j.p.SwitchHigh:
		j.low = false
	}
	return j.low, nil
}

// SetDropoutRate changes the probability that a sensor read fails.
func (j *Joint) SetDropoutRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("%w: dropout rate %v", ErrParams, rate)
	}
	j.mu.Lock()
	j.p.DropoutRate = rate
	j.mu.Unlock()
	return nil
}

func (j *Joint) SetRelay(on bool) error {
	j.mu.Lock()
	j.relay = on
	j.mu.Unlock()
	return nil
}

// Truth is the noiseless plant state.
type Truth struct {
	Elapsed   time.Duration
	Angle     float64
	Rate      float64
	PressureA float64
	PressureB float64
	Supply    float64
	Relay     bool
	Duty      [hal.NumValves]uint32
}

func (j *Joint) Truth() Truth {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Truth{
		Elapsed:   j.elapsed,
		Angle:     j.x[idxTheta],
		Rate:      j.x[idxOmega],
		PressureA: j.x[idxPA],
		PressureB: j.x[idxPB],
		Supply:    j.x[idxSupply],
		Relay:     j.relay,
		Duty:      j.duty,
	}
}
