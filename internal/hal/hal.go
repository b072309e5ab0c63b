package hal

import (
	"context"
	"errors"
	"fmt"
)

const (
	// AngleModulus is the wrap point of the 12-bit absolute encoder.
	AngleModulus = 4096

	// MaxDuty is the largest valve duty value (13-bit PWM resolution).
	MaxDuty = 8191
)

// Valve channel layout of the muscle pair.
const (
	ValveAIn = iota
	ValveAOut
	ValveBIn
	ValveBOut
	NumValves
)

var (
	// ErrUnavailable matches every sensor read failure.
	ErrUnavailable = errors.New("hal: sensor unavailable")

	// ErrTimeout indicates the device did not answer before the deadline.
	ErrTimeout = fmt.Errorf("%w: timeout", ErrUnavailable)

	// ErrChecksum indicates a frame whose checksum trailer did not match.
	ErrChecksum = fmt.Errorf("%w: checksum mismatch", ErrUnavailable)

	// ErrMalformed indicates a frame with a bad header or length.
	ErrMalformed = fmt.Errorf("%w: malformed frame", ErrUnavailable)

	// ErrBus indicates a transport-level failure on the sensor bus.
	ErrBus = fmt.Errorf("%w: bus error", ErrUnavailable)

	// ErrChannel indicates a channel index outside the device range.
	ErrChannel = errors.New("hal: channel out of range")
)

type AngleReader interface {
	ReadAngle(ctx context.Context, channel int) (uint16, error)
}

type PressureReader interface {
	ReadPressure(ctx context.Context, channel int) (float64, error)
}

type ActuatorWriter interface {
	WriteActuator(channel int, duty uint32) error
}

// Selector routes a shared bus to one of several multiplexed devices.
type Selector interface {
	Select(channel int) error
}

// ClampDuty limits a duty request to [0, MaxDuty].
func ClampDuty(duty uint32) uint32 {
	if duty > MaxDuty {
		return MaxDuty
	}
	return duty
}

// BusError wraps a transport error so that it matches ErrBus and
// ErrUnavailable while keeping the underlying cause.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("hal: %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() []error {
	return []error{ErrBus, e.Err}
}

// FrameError describes a rejected device frame. It matches the sentinel in
// Err (ErrChecksum or ErrMalformed) and through it ErrUnavailable.
type FrameError struct {
	Frame  []byte
	Reason string
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("hal: frame % x: %s", e.Frame, e.Reason)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
