package cycle

import "time"

// Report describes one control cycle.
type Report struct {
	Cycle uint64
	Time  time.Time

	RawAngle uint16
	// Filtered is the estimator output in unwrapped sensor counts.
	Filtered float64
	// Angle is the filtered angle relative to the zero reference, degrees.
	Angle  float64
	Target float64

	PressureA float64
	PressureB float64
	SetpointA float64
	SetpointB float64
	Delta     float64

	DutyA uint32
	DutyB uint32
	// Written is false when the fail-safe held the previous duties.
	Written bool

	// Skipped is set when the cascade did not run this cycle.
	Skipped bool
	// Failed lists sensors whose read failed this cycle.
	Failed SensorSet
	// Faulted lists sensors past the fault threshold.
	Faulted SensorSet

	Latency time.Duration
	Overrun bool
}

// Observer receives every cycle report on the driver goroutine.
type Observer interface {
	OnCycle(r Report)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r Report)

func (f ObserverFunc) OnCycle(r Report) { f(r) }
