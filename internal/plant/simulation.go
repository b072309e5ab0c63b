package plant

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/pump"
)

// Simulation wires a Joint, a cycle.Driver and a pump.Maintainer to one
// virtual clock. The maintainer is stepped after every control cycle on the
// driver goroutine.
type Simulation struct {
	Virtual *cycle.VirtualClock
	Joint   *Joint
	Driver  *cycle.Driver
	Pump    *pump.Maintainer

	logger *log.Logger
}

// NewSimulation builds a closed-loop simulation. speed > 0 paces virtual
// time against the wall clock; otherwise the simulation runs as fast as it
// can.
func NewSimulation(p Params, cfg cycle.Config, speed float64, logger *log.Logger) (*Simulation, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	joint, err := New(p)
	if err != nil {
		return nil, err
	}

	virtual := cycle.NewVirtualClock(time.Unix(0, 0).UTC())
	joint.Attach(virtual)

	var clock cycle.Clock = virtual
	if speed > 0 {
		clock = cycle.PacedClock{VirtualClock: virtual, Speed: speed}
	}

	driver, err := cycle.New(cfg, joint.Devices(), clock, logger.WithPrefix("driver"))
	if err != nil {
		return nil, fmt.Errorf("plant: %w", err)
	}
	maint, err := pump.NewMaintainer(joint, joint, cfg.Period, virtual, logger.WithPrefix("pump"))
	if err != nil {
		return nil, fmt.Errorf("plant: %w", err)
	}
	sim := &Simulation{Virtual: virtual, Joint: joint, Driver: driver, Pump: maint, logger: logger}
	driver.AddObserver(cycle.ObserverFunc(func(cycle.Report) { sim.stepPump() }))
	return sim, nil
}

func (s *Simulation) stepPump() {
	if err := s.Pump.Step(); err != nil {
		s.logger.Debug("pump step", "err", err)
	}
}

// Run advances the simulation by d of virtual time, rounded down to whole
// periods. A d shorter than one period runs nothing.
func (s *Simulation) Run(ctx context.Context, d time.Duration) error {
	n := int(d / s.Driver.Config().Period)
	if n <= 0 {
		return ctx.Err()
	}
	return s.Driver.RunCycles(ctx, n)
}

// Step runs one control cycle and then advances virtual time by one
// period. It is the single-cycle form of Run for callers that own the
// schedule themselves.
func (s *Simulation) Step(ctx context.Context) (cycle.Report, error) {
	r, err := s.Driver.Tick(ctx)
	s.Virtual.Advance(s.Driver.Config().Period)
	return r, err
}
