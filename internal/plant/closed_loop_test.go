package plant_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/plant"
)

// simConfig is the driver tuned for the simulated joint: the outer
// integrator needs room to supply the full steady-state pressure delta.
func simConfig() cycle.Config {
	cfg := cycle.DefaultConfig()
	cfg.Cascade.Outer.IntegralBound = 1500
	return cfg
}

var _ = Describe("Closed loop on the simulated joint", func() {
	var (
		params  plant.Params
		cfg     cycle.Config
		sim     *plant.Simulation
		reports []cycle.Report
	)

	BeforeEach(func() {
		params = plant.DefaultParams()
		cfg = simConfig()
		reports = nil
	})

	JustBeforeEach(func() {
		var err error
		sim, err = plant.NewSimulation(params, cfg, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		sim.Driver.AddObserver(cycle.ObserverFunc(func(r cycle.Report) { reports = append(reports, r) }))
	})

	settle := func(target float64) {
		ctx := context.Background()
		Expect(sim.Run(ctx, 2*time.Second)).To(Succeed())
		Expect(sim.Driver.SetTargetAngle(target)).To(Succeed())
		Expect(sim.Run(ctx, 8*time.Second)).To(Succeed())
	}

	tail := func(d time.Duration) []cycle.Report {
		n := int(d / cfg.Period)
		return reports[len(reports)-n:]
	}

	It("holds the zero position before a target is given", func() {
		Expect(sim.Run(context.Background(), 2*time.Second)).To(Succeed())

		Expect(reports).To(HaveLen(100))
		Expect(sim.Joint.Truth().Angle).To(BeNumerically("~", 0, 1))
	})

	It("reaches a 30 degree target across the encoder wrap point", func() {
		settle(30)

		var sum float64
		window := tail(2 * time.Second)
		for _, r := range window {
			sum += r.Angle
			Expect(r.Skipped).To(BeFalse())
		}
		mean := sum / float64(len(window))
		Expect(mean).To(BeNumerically("~", 30, 2))
		Expect(sim.Joint.Truth().Angle).To(BeNumerically("~", 30, 3))
	})

	It("drives the muscles antagonistically", func() {
		settle(-20)

		last := reports[len(reports)-1]
		Expect(last.SetpointA).To(BeNumerically("<", cfg.Cascade.BaseBias))
		Expect(last.SetpointB).To(BeNumerically(">", cfg.Cascade.BaseBias))
		truth := sim.Joint.Truth()
		Expect(truth.PressureB).To(BeNumerically(">", truth.PressureA))
		Expect(truth.Angle).To(BeNumerically("~", -20, 3))
	})

	It("keeps the supply reservoir inside its switching band", func() {
		settle(30)

		truth := sim.Joint.Truth()
		Expect(truth.Supply).To(BeNumerically(">", params.SwitchLow-50))
		Expect(truth.Supply).To(BeNumerically("<=", params.SupplyMax))
	})

	Context("with lossy sensors", func() {
		BeforeEach(func() {
			params.DropoutRate = 0.05
		})

		It("skips degraded cycles and still converges", func() {
			settle(30)

			skipped := 0
			for _, r := range reports {
				if r.Skipped {
					skipped++
				}
				Expect(r.Faulted.Empty()).To(BeTrue())
			}
			Expect(skipped).To(BeNumerically(">", 0))
			Expect(sim.Joint.Truth().Angle).To(BeNumerically("~", 30, 3))
		})
	})

	Context("with a fail-safe duty", func() {
		BeforeEach(func() {
			cfg.FailSafe = cycle.FailSafeDuty
			cfg.FailSafeDuty = 0
			params.DropoutRate = 1
		})

		It("never opens the inlets without sensor data", func() {
			Expect(sim.Run(context.Background(), time.Second)).To(Succeed())

			for _, r := range reports {
				Expect(r.Skipped).To(BeTrue())
				Expect(r.DutyA).To(BeZero())
				Expect(r.DutyB).To(BeZero())
			}
			Expect(sim.Driver.Faulted().Has(cycle.SensorAngle)).To(BeTrue())
		})
	})
})
