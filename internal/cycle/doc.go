// Package cycle runs the joint controller at a fixed period.
//
// A [Driver] owns every piece of mutable control state: the angle
// estimator, the zero reference and the cascade coordinator. Each cycle it
// reads one angle and two pressures, runs the cascade once and writes both
// inlet duties. Commands from other goroutines ([Driver.SetTargetAngle],
// [Driver.ZeroReference]) are queued and applied by the owning goroutine at
// the start of the next cycle.
//
// # Usage
//
//	d, err := cycle.New(cycle.DefaultConfig(), cycle.Devices{
//		Angle:    encoder,
//		Pressure: transducer,
//		Actuator: valves,
//	}, cycle.SystemClock{}, logger)
//	if err != nil {
//		return err
//	}
//	d.SetTargetAngle(30)
//	err = d.Run(ctx)
//
// # Sensor faults
//
// A failed read skips the cascade for that cycle and applies the configured
// [FailSafe]. After Config.FaultThreshold consecutive failures of one
// sensor, the valves that depend on it are closed until the sensor reads
// successfully again, at which point all loops are reset.
package cycle
