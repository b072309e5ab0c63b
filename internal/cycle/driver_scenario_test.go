package cycle_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/hal"
)

type stubAngle struct {
	raw uint16
	err error
}

func (s *stubAngle) ReadAngle(ctx context.Context, channel int) (uint16, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.raw, nil
}

type stubPressure struct {
	values [2]float64
}

func (s *stubPressure) ReadPressure(ctx context.Context, channel int) (float64, error) {
	return s.values[channel], nil
}

// flakyPressure fails every nth read of one channel.
type flakyPressure struct {
	*stubPressure
	channel int
	every   int
	reads   int
}

func (f *flakyPressure) ReadPressure(ctx context.Context, channel int) (float64, error) {
	if channel == f.channel {
		f.reads++
		if f.reads%f.every == 0 {
			return 0, hal.ErrTimeout
		}
	}
	return f.stubPressure.ReadPressure(ctx, channel)
}

type stubValves struct {
	writes int
	duty   [hal.NumValves]uint32
}

func (s *stubValves) WriteActuator(channel int, duty uint32) error {
	s.writes++
	s.duty[channel] = hal.ClampDuty(duty)
	return nil
}

type bench struct {
	angle    *stubAngle
	pressure *stubPressure
	valves   *stubValves
	clock    *cycle.VirtualClock
	driver   *cycle.Driver
}

func newBench(cfg cycle.Config, pressure hal.PressureReader) (*bench, error) {
	b := &bench{
		angle:    &stubAngle{raw: 2000},
		pressure: &stubPressure{values: [2]float64{300, 300}},
		valves:   &stubValves{},
		clock:    cycle.NewVirtualClock(time.Unix(0, 0)),
	}
	if pressure == nil {
		pressure = b.pressure
	}
	d, err := cycle.New(cfg, cycle.Devices{Angle: b.angle, Pressure: pressure, Actuator: b.valves}, b.clock, nil)
	if err != nil {
		return nil, err
	}
	b.driver = d
	return b, nil
}

var _ = Describe("Driver", func() {
	var (
		cfg     cycle.Config
		r       *bench
		reports []cycle.Report
	)

	BeforeEach(func() {
		cfg = cycle.DefaultConfig()
		cfg.FaultThreshold = 3
		var err error
		r, err = newBench(cfg, nil)
		Expect(err).NotTo(HaveOccurred())
		reports = nil
		r.driver.AddObserver(cycle.ObserverFunc(func(rep cycle.Report) { reports = append(reports, rep) }))
	})

	Context("with healthy sensors", func() {
		It("runs the cascade exactly once per period", func() {
			Expect(r.driver.RunCycles(context.Background(), 100)).To(Succeed())

			Expect(reports).To(HaveLen(100))
			for i, rep := range reports {
				Expect(rep.Cycle).To(Equal(uint64(i + 1)))
				Expect(rep.Skipped).To(BeFalse())
			}
			Expect(r.valves.writes).To(Equal(200))
			Expect(r.clock.Now().Sub(time.Unix(0, 0))).To(Equal(100 * cfg.Period))
		})

		It("keeps the inner setpoints symmetric about the base bias", func() {
			Expect(r.driver.SetTargetAngle(25)).To(Succeed())
			r.angle.raw = 2050
			Expect(r.driver.RunCycles(context.Background(), 20)).To(Succeed())

			for _, rep := range reports {
				Expect(rep.SetpointA - cfg.Cascade.BaseBias).To(BeNumerically("~", rep.Delta, 1e-9))
				Expect(cfg.Cascade.BaseBias - rep.SetpointB).To(BeNumerically("~", rep.Delta, 1e-9))
			}
		})
	})

	Context("with an intermittent pressure transducer", func() {
		BeforeEach(func() {
			flaky := &flakyPressure{stubPressure: r.pressure, channel: 1, every: 4}
			var err error
			r, err = newBench(cfg, flaky)
			Expect(err).NotTo(HaveOccurred())
			r.driver.AddObserver(cycle.ObserverFunc(func(rep cycle.Report) { reports = append(reports, rep) }))
		})

		It("skips only the cycles with a failed read and never escalates", func() {
			Expect(r.driver.RunCycles(context.Background(), 40)).To(Succeed())

			skipped := 0
			for _, rep := range reports {
				Expect(rep.Faulted.Empty()).To(BeTrue())
				if rep.Skipped {
					skipped++
					Expect(rep.Failed.Has(cycle.SensorPressureB)).To(BeTrue())
				}
			}
			Expect(skipped).To(Equal(10))
			Expect(r.driver.Stats().Skipped).To(BeEquivalentTo(10))
		})
	})

	Context("with a dead angle sensor", func() {
		BeforeEach(func() {
			Expect(r.driver.SetTargetAngle(-15)).To(Succeed())
			Expect(r.driver.RunCycles(context.Background(), 5)).To(Succeed())
			r.angle.err = hal.ErrTimeout
		})

		It("closes both inlet valves once the threshold is reached", func() {
			Expect(r.driver.RunCycles(context.Background(), cfg.FaultThreshold)).To(Succeed())

			last := reports[len(reports)-1]
			Expect(last.Faulted.Has(cycle.SensorAngle)).To(BeTrue())
			Expect(r.valves.duty[hal.ValveAIn]).To(BeZero())
			Expect(r.valves.duty[hal.ValveBIn]).To(BeZero())
		})

		It("resumes control when the sensor answers again", func() {
			Expect(r.driver.RunCycles(context.Background(), 10)).To(Succeed())
			r.angle.err = nil
			Expect(r.driver.RunCycles(context.Background(), 1)).To(Succeed())

			last := reports[len(reports)-1]
			Expect(last.Faulted.Empty()).To(BeTrue())
			Expect(last.Skipped).To(BeFalse())
			Expect(last.Written).To(BeTrue())
		})
	})
})
