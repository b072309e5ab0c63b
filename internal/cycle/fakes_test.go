package cycle

import (
	"context"
	"time"

	"github.com/san-kum/pamjoint/internal/hal"
)

type fakeAngle struct {
	raw   uint16
	err   error
	reads int
	// delay advances clock on every read, simulating a slow bus
	clock *VirtualClock
	delay time.Duration
}

func (f *fakeAngle) ReadAngle(ctx context.Context, channel int) (uint16, error) {
	f.reads++
	if f.clock != nil {
		f.clock.Advance(f.delay)
	}
	if f.err != nil {
		return 0, f.err
	}
	return f.raw, nil
}

type fakePressure struct {
	values map[int]float64
	errs   map[int]error
}

func newFakePressure(a, b float64) *fakePressure {
	return &fakePressure{
		values: map[int]float64{0: a, 1: b},
		errs:   map[int]error{},
	}
}

func (f *fakePressure) ReadPressure(ctx context.Context, channel int) (float64, error) {
	if err := f.errs[channel]; err != nil {
		return 0, err
	}
	return f.values[channel], nil
}

type write struct {
	channel int
	duty    uint32
}

type fakeValves struct {
	writes []write
	duty   [hal.NumValves]uint32
	err    error
}

func (f *fakeValves) WriteActuator(channel int, duty uint32) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, write{channel, duty})
	f.duty[channel] = hal.ClampDuty(duty)
	return nil
}

type rig struct {
	angle    *fakeAngle
	pressure *fakePressure
	valves   *fakeValves
	clock    *VirtualClock
	driver   *Driver
	reports  []Report
}

func newRig(cfg Config) (*rig, error) {
	r := &rig{
		angle:    &fakeAngle{raw: 2000},
		pressure: newFakePressure(300, 300),
		valves:   &fakeValves{},
		clock:    NewVirtualClock(time.Unix(0, 0)),
	}
	d, err := New(cfg, Devices{Angle: r.angle, Pressure: r.pressure, Actuator: r.valves}, r.clock, nil)
	if err != nil {
		return nil, err
	}
	d.AddObserver(ObserverFunc(func(rep Report) { r.reports = append(r.reports, rep) }))
	r.driver = d
	return r, nil
}
