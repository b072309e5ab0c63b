// Package plant simulates an antagonistic pneumatic-muscle joint so the
// control pipeline can run without hardware.
//
// A [Joint] integrates five states: the two muscle pressures, the joint
// angle and rate, and the supply reservoir pressure. It implements the hal
// interfaces (angle and pressure sensors with seeded noise and dropouts,
// the valve bank) plus the reservoir switch and compressor relay used by
// the pump maintainer.
//
// # Model
//
// Muscle pressure rises through the inlet valve and falls through leakage
// and the exhaust valve:
//
//	dp/dt = a*u_in*(p_s - p) - c*p - a*u_out*p
//
// The joint is a damped second-order system pulled toward an equilibrium
// proportional to the pressure difference:
//
//	theta'' = w^2 (g (p_A - p_B) - theta) - 2 zeta w theta'
//
// # Usage
//
//	clock := cycle.NewVirtualClock(time.Unix(0, 0))
//	joint, _ := plant.New(plant.DefaultParams())
//	joint.Attach(clock)
//	driver, _ := cycle.New(cfg, joint.Devices(), clock, logger)
package plant
