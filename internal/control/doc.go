// Package control provides the discrete-time feedback law used by every
// loop of the joint cascade.
//
// [PID] is a per-cycle PID controller with:
//
//   - a dead zone that zeroes small errors to stop valve chatter
//   - an integral accumulator clamped after every accumulation
//   - output clamping to a fixed [min, max] envelope
//
// Gains are expressed per control cycle: the derivative is a plain
// first difference and the integral a plain sum, so changing the cycle
// period requires retuning.
//
// # Usage
//
//	pid, err := control.NewPID(control.Config{
//		Gains:     control.Gains{Kp: 2, Ki: 0.1, Kd: 0.5},
//		OutputMin: -150, OutputMax: 150,
//		IntegralBound: control.DefaultIntegralBound(-150, 150),
//		DeadZone:  1,
//	})
//	pid.SetSetpoint(30)
//	u := pid.Compute(measured) // once per cycle
package control
