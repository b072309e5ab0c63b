// Package hal defines the hardware capabilities consumed by the control
// pipeline and the error vocabulary used to report sensor faults.
//
// The control code only sees three narrow interfaces:
//
//   - [AngleReader]: raw absolute-position samples from a multiplexed encoder
//   - [PressureReader]: muscle pressures from a multiplexed transducer
//   - [ActuatorWriter]: inlet/outlet valve duty commands
//
// Concrete implementations live in the subpackages (as5600, pressure,
// valve, pump, mux) for Raspberry Pi class hosts, and in package plant for
// simulation. A failed read always returns an error matching
// [ErrUnavailable]; implementations never substitute a zero reading.
package hal
