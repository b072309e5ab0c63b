package cycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPeriod       = errors.New("cycle: period must be positive")
	ErrReadTimeout  = errors.New("cycle: read timeout must be positive")
	ErrFailSafe     = errors.New("cycle: unknown fail-safe policy")
	ErrThreshold    = errors.New("cycle: fault threshold must be at least 1")
	ErrChannels     = errors.New("cycle: invalid channel assignment")
	ErrNoDevice     = errors.New("cycle: device not provided")
	ErrQueueFull    = errors.New("cycle: command queue full")
	ErrFailSafeDuty = errors.New("cycle: fail-safe duty out of range")
)

// Sensor identifies one of the three inputs of the control loop.
type Sensor uint8

const (
	SensorAngle Sensor = iota
	SensorPressureA
	SensorPressureB
	numSensors
)

func (s Sensor) String() string {
	switch s {
	case SensorAngle:
		return "angle"
	case SensorPressureA:
		return "pressure_a"
	case SensorPressureB:
		return "pressure_b"
	default:
		return fmt.Sprintf("sensor(%d)", uint8(s))
	}
}

// SensorSet is a bit set of sensors.
type SensorSet uint8

func (s SensorSet) Has(sensor Sensor) bool { return s&(1<<sensor) != 0 }

func (s SensorSet) With(sensor Sensor) SensorSet { return s | 1<<sensor }

func (s SensorSet) Without(sensor Sensor) SensorSet { return s &^ (1 << sensor) }

func (s SensorSet) Empty() bool { return s == 0 }

// String lists the members joined by '|', or "" for the empty set.
func (s SensorSet) String() string {
	var names []string
	for sensor := Sensor(0); sensor < numSensors; sensor++ {
		if s.Has(sensor) {
			names = append(names, sensor.String())
		}
	}
	return strings.Join(names, "|")
}

// ParseSensorSet is the inverse of SensorSet.String.
func ParseSensorSet(text string) (SensorSet, error) {
	var set SensorSet
	if text == "" {
		return set, nil
	}
	for _, name := range strings.Split(text, "|") {
		found := false
		for sensor := Sensor(0); sensor < numSensors; sensor++ {
			if sensor.String() == name {
				set = set.With(sensor)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("cycle: unknown sensor %q", name)
		}
	}
	return set, nil
}

// SensorError records a failed read. Err matches hal.ErrUnavailable for
// device failures.
type SensorError struct {
	Sensor  Sensor
	Channel int
	Err     error
}

func (e *SensorError) Error() string {
	return fmt.Sprintf("cycle: %s sensor (channel %d): %v", e.Sensor, e.Channel, e.Err)
}

func (e *SensorError) Unwrap() error {
	return e.Err
}
