// Package pump drives the compressor relay and reads the reservoir
// pressure switch.
package pump

import (
	"github.com/stianeikeland/go-rpio/v4"
)

// Input is the subset of rpio.Pin used for the pressure switch.
type Input interface {
	Read() rpio.State
}

// Output is the subset of rpio.Pin used for the relay.
type Output interface {
	High()
	Low()
}

// Hardware pairs the relay with a normally-closed pressure switch wired to
// ground: the switch conducts (reads low) while reservoir pressure is low.
type Hardware struct {
	relay    Output
	pressure Input
}

func New(relay Output, pressure Input) *Hardware {
	relay.Low()
	return &Hardware{relay: relay, pressure: pressure}
}

// NewGPIO configures the relay pin as an output (off) and the switch pin
// as an input with pull-up. rpio.Open must have been called.
func NewGPIO(relayPin, switchPin int) *Hardware {
	relay := rpio.Pin(relayPin)
	relay.Output()
	sw := rpio.Pin(switchPin)
	sw.Input()
	sw.PullUp()
	return New(relay, sw)
}

// PressureLow reports whether the reservoir needs topping up.
func (h *Hardware) PressureLow() (bool, error) {
	return h.pressure.Read() == rpio.Low, nil
}

func (h *Hardware) SetRelay(on bool) error {
	if on {
		h.relay.High()
	} else {
		h.relay.Low()
	}
	return nil
}
