// Package experiment runs the controller against the simulated joint:
// single runs, scripted scenarios and parallel gain searches.
package experiment

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/pamjoint/internal/config"
	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/metrics"
	"github.com/san-kum/pamjoint/internal/plant"
	"github.com/san-kum/pamjoint/internal/storage"
)

// SettleBand is the settling tolerance in degrees.
const SettleBand = 2.0

// Step changes the running simulation at a point in virtual time.
type Step struct {
	At      time.Duration `yaml:"at"`
	Target  *float64      `yaml:"target,omitempty"`
	Dropout *float64      `yaml:"dropout,omitempty"`
	Zero    bool          `yaml:"zero,omitempty"`
}

type Result struct {
	Reports []cycle.Report
	Metrics map[string]float64
	Stats   cycle.Stats
	Truth   plant.Truth
}

type Experiment struct {
	cfg    *config.Config
	steps  []Step
	logger *log.Logger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg, logger: log.New(io.Discard)}
}

// WithSteps schedules steps, applied in time order.
func (e *Experiment) WithSteps(steps []Step) *Experiment {
	e.steps = append([]Step(nil), steps...)
	sort.SliceStable(e.steps, func(i, j int) bool { return e.steps[i].At < e.steps[j].At })
	return e
}

func (e *Experiment) WithLogger(logger *log.Logger) *Experiment {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Run simulates Config.Duration of virtual time. On cancellation the
// partial result is returned along with ctx.Err().
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: a simulation needs a positive duration", config.ErrDuration)
	}
	sim, err := plant.NewSimulation(e.cfg.Plant.Params(), e.cfg.Cycle(), e.cfg.Plant.Speed, e.logger)
	if err != nil {
		return nil, err
	}
	rec := storage.NewRecorder(0)
	collector := metrics.Standard(SettleBand)
	sim.Driver.AddObserver(rec)
	sim.Driver.AddObserver(collector)

	if err := sim.Driver.SetTargetAngle(e.cfg.Target); err != nil {
		return nil, err
	}

	runErr := e.run(ctx, sim)
	return &Result{
		Reports: rec.Reports(),
		Metrics: collector.Values(),
		Stats:   sim.Driver.Stats(),
		Truth:   sim.Joint.Truth(),
	}, runErr
}

func (e *Experiment) run(ctx context.Context, sim *plant.Simulation) error {
	var elapsed time.Duration
	for i, st := range e.steps {
		if st.At > e.cfg.Duration {
			break
		}
		if err := sim.Run(ctx, st.At-elapsed); err != nil {
			return err
		}
		elapsed = st.At
		if err := apply(sim, st); err != nil {
			return fmt.Errorf("experiment: step %d: %w", i+1, err)
		}
		e.logger.Info("step applied", "at", st.At, "step", i+1)
	}
	return sim.Run(ctx, e.cfg.Duration-elapsed)
}

func apply(sim *plant.Simulation, st Step) error {
	if st.Target != nil {
		if err := sim.Driver.SetTargetAngle(*st.Target); err != nil {
			return err
		}
	}
	if st.Dropout != nil {
		if err := sim.Joint.SetDropoutRate(*st.Dropout); err != nil {
			return err
		}
	}
	if st.Zero {
		return sim.Driver.ZeroReference()
	}
	return nil
}
