package cycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/san-kum/pamjoint/internal/cascade"
	"github.com/san-kum/pamjoint/internal/estimator"
	"github.com/san-kum/pamjoint/internal/hal"
)

// Devices are the hardware capabilities the driver consumes.
type Devices struct {
	Angle    hal.AngleReader
	Pressure hal.PressureReader
	Actuator hal.ActuatorWriter
}

// Stats are running counters of the driver.
type Stats struct {
	Cycles   uint64
	Skipped  uint64
	Overruns uint64
	Missed   uint64
}

type command func(d *Driver)

type Driver struct {
	cfg    Config
	dev    Devices
	clock  Clock
	logger *log.Logger

	filter    *estimator.Kalman
	reference *cascade.Reference
	coord     *cascade.Coordinator

	commands  chan command
	observers []Observer

	seeded      bool
	zeroPending bool
	failures    [numSensors]int
	faulted     SensorSet
	pressure    [2]float64
	duty        [2]uint32
	stats       Stats
}

// New builds a driver. A nil clock means SystemClock; a nil logger
// discards output.
func New(cfg Config, dev Devices, clock Clock, logger *log.Logger) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dev.Angle == nil || dev.Pressure == nil || dev.Actuator == nil {
		return nil, ErrNoDevice
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	e := cfg.Estimator
	filter, err := estimator.New(e.Initial, e.Covariance, e.ProcessNoise, e.MeasurementNoise)
	if err != nil {
		return nil, fmt.Errorf("cycle: %w", err)
	}
	reference, err := cascade.NewReference(cfg.AngleModulus)
	if err != nil {
		return nil, fmt.Errorf("cycle: %w", err)
	}
	coord, err := cascade.New(cfg.Cascade)
	if err != nil {
		return nil, fmt.Errorf("cycle: %w", err)
	}

	queue := cfg.CommandQueue
	if queue < 1 {
		queue = 1
	}
	return &Driver{
		cfg:       cfg,
		dev:       dev,
		clock:     clock,
		logger:    logger,
		filter:    filter,
		reference: reference,
		coord:     coord,
		commands:  make(chan command, queue),
	}, nil
}

// AddObserver registers o for every report. It must not be called while
// the driver is running.
func (d *Driver) AddObserver(o Observer) { d.observers = append(d.observers, o) }

func (d *Driver) Config() Config { return d.cfg }

// Stats and Faulted are only safe to call from the driver goroutine or
// after Run returns.
func (d *Driver) Stats() Stats { return d.stats }

func (d *Driver) Faulted() SensorSet { return d.faulted }

// SetTargetAngle queues a new joint target in degrees relative to the zero
// reference. It is applied at the start of the next cycle.
func (d *Driver) SetTargetAngle(angle float64) error {
	if math.IsNaN(angle) || math.IsInf(angle, 0) {
		return fmt.Errorf("cycle: target angle %v is not finite", angle)
	}
	return d.post(func(d *Driver) {
		d.coord.SetTargetAngle(angle)
		d.logger.Info("target set", "degrees", angle)
	})
}

// ZeroReference queues a capture of the next raw angle sample as the zero
// point.
func (d *Driver) ZeroReference() error {
	return d.post(func(d *Driver) { d.zeroPending = true })
}

func (d *Driver) post(c command) error {
	select {
	case d.commands <- c:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Driver) drain() {
	for {
		select {
		case c := <-d.commands:
			c(d)
		default:
			return
		}
	}
}

// Tick runs exactly one control cycle. The returned error joins every
// sensor and actuator failure of the cycle; the report is valid either way.
func (d *Driver) Tick(ctx context.Context) (Report, error) {
	d.drain()

	start := d.clock.Now()
	d.stats.Cycles++
	r := Report{Cycle: d.stats.Cycles, Time: start}

	ch := d.cfg.Channels
	channels := [numSensors]int{ch.Angle, ch.PressureA, ch.PressureB}
	raw, angleErr := d.readAngle(ctx, ch.Angle)
	pA, errA := d.readPressure(ctx, ch.PressureA)
	pB, errB := d.readPressure(ctx, ch.PressureB)
	readErrs := [numSensors]error{angleErr, errA, errB}

	var errs []error
	recovered := false
	for s := Sensor(0); s < numSensors; s++ {
		if err := readErrs[s]; err != nil {
			r.Failed = r.Failed.With(s)
			errs = append(errs, &SensorError{Sensor: s, Channel: channels[s], Err: err})
			d.failures[s]++
			switch {
			case d.failures[s] == d.cfg.FaultThreshold:
				d.faulted = d.faulted.With(s)
				d.logger.Error("sensor faulted, closing dependent valves", "sensor", s, "failures", d.failures[s], "err", err)
			case d.failures[s] < d.cfg.FaultThreshold:
				d.logger.Warn("sensor read failed", "sensor", s, "failures", d.failures[s], "err", err)
			default:
				d.logger.Debug("sensor still failing", "sensor", s, "failures", d.failures[s])
			}
			continue
		}
		d.failures[s] = 0
		if d.faulted.Has(s) {
			d.faulted = d.faulted.Without(s)
			recovered = true
			if s == SensorAngle {
				d.seeded = false
			}
			d.logger.Info("sensor recovered", "sensor", s)
		}
	}
	r.Faulted = d.faulted
	if recovered {
		d.coord.Reset()
	}

	if angleErr == nil {
		d.observeAngle(raw)
		r.RawAngle = raw
	}
	if errA == nil {
		d.pressure[0] = pA
	}
	if errB == nil {
		d.pressure[1] = pB
	}
	r.PressureA, r.PressureB = d.pressure[0], d.pressure[1]
	if d.reference.IsSet() {
		r.Filtered = d.filter.Estimate()
		r.Angle = d.reference.Degrees(d.reference.Relative(r.Filtered))
	}

	if r.Failed.Empty() {
		dutyA, dutyB := d.coord.Tick(r.Angle, pA, pB)
		errs = append(errs, d.setDuty(0, quantize(dutyA)), d.setDuty(1, quantize(dutyB)))
		r.Written = true
	} else {
		d.stats.Skipped++
		r.Skipped = true
		r.Written, errs = d.failSafe(errs)
	}

	r.Target = d.coord.TargetAngle()
	r.SetpointA, r.SetpointB = d.coord.Setpoints()
	r.Delta = d.coord.Delta()
	r.DutyA, r.DutyB = d.duty[0], d.duty[1]

	r.Latency = d.clock.Now().Sub(start)
	if r.Latency > d.cfg.Period {
		r.Overrun = true
		d.stats.Overruns++
	}

	d.logger.Debug("cycle",
		"n", r.Cycle,
		"angle", r.Angle,
		"target", r.Target,
		"pa", r.PressureA,
		"pb", r.PressureB,
		"duty_a", r.DutyA,
		"duty_b", r.DutyB,
		"skipped", r.Skipped,
	)
	for _, o := range d.observers {
		o.OnCycle(r)
	}
	return r, errors.Join(errs...)
}

// observeAngle folds a valid raw sample into the zero reference and the
// estimator. Samples are unwrapped next to the current estimate so the
// filter never sees the encoder's wrap point.
func (d *Driver) observeAngle(raw uint16) {
	z := float64(raw)
	if d.zeroPending || !d.reference.IsSet() {
		d.reference.Capture(z)
		d.zeroPending = false
		d.logger.Info("zero reference captured", "raw", raw)
	}
	if !d.seeded {
		d.filter.Reinitialize(z, d.cfg.Estimator.Covariance)
		d.seeded = true
	}
	d.filter.Update(d.reference.Unwrap(z, d.filter.Estimate()))
}

func (d *Driver) failSafe(errs []error) (bool, []error) {
	faultA := d.faulted.Has(SensorAngle) || d.faulted.Has(SensorPressureA)
	faultB := d.faulted.Has(SensorAngle) || d.faulted.Has(SensorPressureB)

	written := false
	for i, fault := range [2]bool{faultA, faultB} {
		switch {
		case fault:
			errs = append(errs, d.setDuty(i, 0))
		case d.cfg.FailSafe == FailSafeDuty:
			errs = append(errs, d.setDuty(i, d.cfg.FailSafeDuty))
		default:
			continue
		}
		written = true
	}
	return written, errs
}

func (d *Driver) setDuty(i int, duty uint32) error {
	channel := d.cfg.Channels.ValveA
	if i == 1 {
		channel = d.cfg.Channels.ValveB
	}
	if err := d.dev.Actuator.WriteActuator(channel, duty); err != nil {
		d.logger.Error("valve write failed", "channel", channel, "err", err)
		return fmt.Errorf("cycle: write valve %d: %w", channel, err)
	}
	d.duty[i] = duty
	return nil
}

func (d *Driver) readAngle(ctx context.Context, channel int) (uint16, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()
	raw, err := d.dev.Angle.ReadAngle(ctx, channel)
	if err != nil {
		return 0, err
	}
	if int(raw) >= d.cfg.AngleModulus {
		return 0, fmt.Errorf("%w: raw angle %d", hal.ErrMalformed, raw)
	}
	return raw, nil
}

func (d *Driver) readPressure(ctx context.Context, channel int) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	defer cancel()
	p, err := d.dev.Pressure.ReadPressure(ctx, channel)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: pressure %v", hal.ErrMalformed, p)
	}
	return p, nil
}

// quantize rounds a controller output to a valve duty in [0, MaxDuty].
func quantize(v float64) uint32 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= hal.MaxDuty:
		return hal.MaxDuty
	default:
		return uint32(math.Round(v))
	}
}

// Run ticks every Config.Period until ctx is done and returns ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	return d.RunCycles(ctx, 0)
}

// RunCycles is Run bounded to n cycles; n <= 0 means no bound. Deadlines
// are absolute, so jitter in one cycle does not shift the next. A cycle
// that finishes past its successor's deadline re-anchors the schedule
// rather than running a catch-up burst.
func (d *Driver) RunCycles(ctx context.Context, n int) error {
	d.logger.Info("control loop started", "period", d.cfg.Period, "fail_safe", d.cfg.FailSafe)
	next := d.clock.Now()
	for i := 0; n <= 0 || i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := d.Tick(ctx); err != nil {
			d.logger.Debug("cycle degraded", "err", err)
		}

		next = next.Add(d.cfg.Period)
		if now := d.clock.Now(); now.After(next) {
			d.stats.Missed++
			d.logger.Warn("missed cycle deadline", "late", now.Sub(next), "cycle", d.stats.Cycles)
			next = now
		}
		if err := d.clock.SleepUntil(ctx, next); err != nil {
			return err
		}
	}
	return nil
}
