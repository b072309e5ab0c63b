// Package mux drives a 3-bit analog multiplexer (74HC4051 style) from
// three GPIO address lines.
package mux

import (
	"fmt"

	"github.com/san-kum/pamjoint/internal/hal"
	"github.com/stianeikeland/go-rpio/v4"
)

// Channels is the number of addressable inputs.
const Channels = 8

// Pin is the subset of rpio.Pin used to drive an address line.
type Pin interface {
	High()
	Low()
}

type Selector struct {
	pins    [3]Pin
	current int
}

// New returns a selector over address lines A, B and C (least significant
// first). The channel is unknown until the first Select.
func New(a, b, c Pin) *Selector {
	return &Selector{pins: [3]Pin{a, b, c}, current: -1}
}

// NewGPIO configures three BCM pins as outputs and returns a selector over
// them. rpio.Open must have been called.
func NewGPIO(a, b, c int) *Selector {
	var pins [3]Pin
	for i, n := range []int{a, b, c} {
		p := rpio.Pin(n)
		p.Output()
		p.Low()
		pins[i] = p
	}
	return New(pins[0], pins[1], pins[2])
}

// Select drives the address lines for channel. Re-selecting the current
// channel is a no-op.
func (s *Selector) Select(channel int) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("mux: %w: %d", hal.ErrChannel, channel)
	}
	if channel == s.current {
		return nil
	}
	for i, p := range s.pins {
		if (channel>>i)&1 == 1 {
			p.High()
		} else {
			p.Low()
		}
	}
	s.current = channel
	return nil
}

// Current returns the selected channel, or -1 before the first Select.
func (s *Selector) Current() int {
	return s.current
}
