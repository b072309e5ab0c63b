package plant

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/hal"
	"github.com/san-kum/pamjoint/internal/pump"
)

func quietParams() Params {
	p := DefaultParams()
	p.AngleNoise = 0
	p.PressureNoise = 0
	return p
}

func mustJoint(t *testing.T, p Params) *Joint {
	t.Helper()
	j, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return j
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"fill rate", func(p *Params) { p.FillRate = 0 }},
		{"leak", func(p *Params) { p.LeakRate = -1 }},
		{"frequency", func(p *Params) { p.NaturalFreq = 0 }},
		{"supply", func(p *Params) { p.SupplyMax = p.SupplyPressure - 1 }},
		{"switch band", func(p *Params) { p.SwitchLow = p.SwitchHigh + 1 }},
		{"zero", func(p *Params) { p.ZeroRaw = hal.AngleModulus }},
		{"noise", func(p *Params) { p.AngleNoise = -1 }},
		{"dropout", func(p *Params) { p.DropoutRate = 1.5 }},
		{"sub-step", func(p *Params) { p.SubStep = 0 }},
	}
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); !errors.Is(err, ErrParams) {
				t.Errorf("expected ErrParams, got %v", err)
			}
		})
	}

	p := DefaultParams()
	p.Integrator = "leapfrog"
	if _, err := New(p); err == nil {
		t.Error("expected unknown integrator to be rejected")
	}
}

func TestEqualPressuresHoldCentre(t *testing.T) {
	j := mustJoint(t, quietParams())
	_ = j.WriteActuator(hal.ValveAIn, 2000)
	_ = j.WriteActuator(hal.ValveBIn, 2000)
	j.Advance(2 * time.Second)

	truth := j.Truth()
	if math.Abs(truth.Angle) > 1e-9 {
		t.Errorf("expected joint at rest, got %v deg", truth.Angle)
	}
	if truth.PressureA <= 0 || math.Abs(truth.PressureA-truth.PressureB) > 1e-9 {
		t.Errorf("expected equal positive pressures, got %v/%v", truth.PressureA, truth.PressureB)
	}
	if truth.Elapsed != 2*time.Second {
		t.Errorf("expected 2s elapsed, got %v", truth.Elapsed)
	}
}

func TestMusclePressureSteadyState(t *testing.T) {
	p := quietParams()
	p.DrawRate = 0
	j := mustJoint(t, p)
	_ = j.WriteActuator(hal.ValveAIn, hal.MaxDuty)
	j.Advance(3 * time.Second)

	// a s / (a + c) with the inlet fully open
	want := p.FillRate * p.SupplyPressure / (p.FillRate + p.LeakRate)
	if got := j.Truth().PressureA; math.Abs(got-want) > 0.5 {
		t.Errorf("expected %.1f kPa, got %.1f", want, got)
	}
}

func TestDifferentialPressureMovesJoint(t *testing.T) {
	p := quietParams()
	p.DrawRate = 0
	j := mustJoint(t, p)
	_ = j.WriteActuator(hal.ValveAIn, 3000)
	j.Advance(3 * time.Second)

	truth := j.Truth()
	want := j.p.Gain * (truth.PressureA - truth.PressureB)
	if truth.Angle <= 0 {
		t.Fatalf("expected positive angle, got %v", truth.Angle)
	}
	if math.Abs(truth.Angle-want) > 0.5 {
		t.Errorf("expected equilibrium near %.2f deg, got %.2f", want, truth.Angle)
	}
}

func TestExhaustValveVents(t *testing.T) {
	p := quietParams()
	p.InitialPressure = 300
	p.LeakRate = 0
	j := mustJoint(t, p)
	_ = j.WriteActuator(hal.ValveAOut, hal.MaxDuty)
	_ = j.WriteActuator(hal.ValveBOut, hal.MaxDuty)
	j.Advance(time.Second)

	truth := j.Truth()
	if truth.PressureA > 1 || truth.PressureB > 1 {
		t.Errorf("expected muscles vented, got %v/%v", truth.PressureA, truth.PressureB)
	}
}

func TestAngleSensorWrap(t *testing.T) {
	p := quietParams()
	p.InitialAngle = 2
	j := mustJoint(t, p)

	raw, err := j.ReadAngle(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	// 4090 + 2 deg * 4096/360 = 4112.76 -> 4113 mod 4096
	if raw != 17 {
		t.Errorf("expected raw 17 across the wrap point, got %d", raw)
	}
}

func TestPressureSensorChannels(t *testing.T) {
	p := quietParams()
	p.InitialPressure = 120
	j := mustJoint(t, p)

	for ch := 0; ch < 2; ch++ {
		got, err := j.ReadPressure(context.Background(), ch)
		if err != nil || got != 120 {
			t.Errorf("channel %d: expected 120, got %v (%v)", ch, got, err)
		}
	}
	if _, err := j.ReadPressure(context.Background(), 2); !errors.Is(err, hal.ErrChannel) {
		t.Errorf("expected ErrChannel, got %v", err)
	}
	if _, err := j.ReadAngle(context.Background(), 1); !errors.Is(err, hal.ErrChannel) {
		t.Errorf("expected ErrChannel, got %v", err)
	}
	if err := j.WriteActuator(hal.NumValves, 1); !errors.Is(err, hal.ErrChannel) {
		t.Errorf("expected ErrChannel, got %v", err)
	}
}

func TestDropouts(t *testing.T) {
	p := DefaultParams()
	p.DropoutRate = 1
	j := mustJoint(t, p)

	if _, err := j.ReadAngle(context.Background(), 0); !errors.Is(err, hal.ErrUnavailable) {
		t.Errorf("expected unavailable angle, got %v", err)
	}
	if v, err := j.ReadPressure(context.Background(), 0); !errors.Is(err, hal.ErrUnavailable) || v != 0 {
		t.Errorf("expected unavailable pressure, got %v (%v)", v, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := mustJoint(t, DefaultParams())
	if _, err := q.ReadAngle(ctx, 0); !errors.Is(err, hal.ErrTimeout) {
		t.Errorf("expected timeout on expired context, got %v", err)
	}
}

func TestSeededNoiseIsDeterministic(t *testing.T) {
	a := mustJoint(t, DefaultParams())
	b := mustJoint(t, DefaultParams())
	for i := 0; i < 50; i++ {
		ra, _ := a.ReadAngle(context.Background(), 0)
		rb, _ := b.ReadAngle(context.Background(), 0)
		if ra != rb {
			t.Fatalf("read %d: same seed diverged: %d vs %d", i, ra, rb)
		}
	}
}

func TestReservoirHysteresis(t *testing.T) {
	p := quietParams()
	p.SupplyPressure = 560
	j := mustJoint(t, p)

	if low, _ := j.PressureLow(); low {
		t.Fatal("560 kPa is inside the band, switch should start open")
	}

	// drain below the low threshold with both inlets open
	_ = j.WriteActuator(hal.ValveAIn, hal.MaxDuty)
	_ = j.WriteActuator(hal.ValveBIn, hal.MaxDuty)
	j.Advance(time.Second)
	if low, _ := j.PressureLow(); !low {
		t.Fatalf("expected switch closed at %.1f kPa", j.Truth().Supply)
	}

	_ = j.WriteActuator(hal.ValveAIn, 0)
	_ = j.WriteActuator(hal.ValveBIn, 0)
	_ = j.SetRelay(true)
	j.Advance(200 * time.Millisecond)
	if low, _ := j.PressureLow(); !low {
		t.Errorf("inside the band the switch should stay closed at %.1f kPa", j.Truth().Supply)
	}

	j.Advance(time.Second)
	if low, _ := j.PressureLow(); low {
		t.Errorf("expected switch open at %.1f kPa", j.Truth().Supply)
	}
	if s := j.Truth().Supply; s > p.SupplyMax {
		t.Errorf("supply %v above ceiling %v", s, p.SupplyMax)
	}
}

func TestAttachStepsWithClock(t *testing.T) {
	j := mustJoint(t, quietParams())
	clock := cycle.NewVirtualClock(time.Unix(0, 0))
	j.Attach(clock)

	_ = clock.SleepUntil(context.Background(), time.Unix(0, 0).Add(20*time.Millisecond))
	clock.Advance(30 * time.Millisecond)

	if got := j.Truth().Elapsed; got != 50*time.Millisecond {
		t.Errorf("expected 50ms of plant time, got %v", got)
	}
}

func TestSetDropoutRate(t *testing.T) {
	j := mustJoint(t, quietParams())
	if err := j.SetDropoutRate(1.5); !errors.Is(err, ErrParams) {
		t.Errorf("expected ErrParams, got %v", err)
	}
	if err := j.SetDropoutRate(1); err != nil {
		t.Fatalf("SetDropoutRate: %v", err)
	}
	if _, err := j.ReadAngle(context.Background(), 0); !errors.Is(err, hal.ErrTimeout) {
		t.Errorf("expected dropout, got %v", err)
	}
	if err := j.SetDropoutRate(0); err != nil {
		t.Fatalf("SetDropoutRate: %v", err)
	}
	if _, err := j.ReadAngle(context.Background(), 0); err != nil {
		t.Errorf("expected a sample after clearing dropout, got %v", err)
	}
}

func TestSimulationStep(t *testing.T) {
	sim, err := NewSimulation(quietParams(), cycle.DefaultConfig(), 0, nil)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	start := sim.Virtual.Now()

	for i := 1; i <= 3; i++ {
		r, err := sim.Step(context.Background())
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if r.Cycle != uint64(i) {
			t.Errorf("expected cycle %d, got %d", i, r.Cycle)
		}
	}
	if got := sim.Virtual.Now().Sub(start); got != 60*time.Millisecond {
		t.Errorf("expected 60ms of virtual time, got %v", got)
	}
	if got := sim.Joint.Truth().Elapsed; got != 60*time.Millisecond {
		t.Errorf("expected plant at 60ms, got %v", got)
	}
}

type brokenSwitch struct{}

func (brokenSwitch) PressureLow() (bool, error) { return false, errors.New("switch open circuit") }

func TestSimulationLogsPumpErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	sim, err := NewSimulation(quietParams(), cycle.DefaultConfig(), 0, logger)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	sim.Pump, err = pump.NewMaintainer(brokenSwitch{}, sim.Joint, 20*time.Millisecond, sim.Virtual, log.New(io.Discard))
	if err != nil {
		t.Fatalf("NewMaintainer: %v", err)
	}

	if _, err := sim.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !strings.Contains(buf.String(), "pump step") || !strings.Contains(buf.String(), "switch open circuit") {
		t.Errorf("expected pump error to be logged, got %q", buf.String())
	}
	if sim.Joint.Truth().Relay {
		t.Error("expected relay off after a failed switch read")
	}
}
