// Package valve drives the four solenoid valves of the muscle pair with
// hardware PWM.
package valve

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"

	"github.com/san-kum/pamjoint/internal/hal"
)

const (
	// FrequencyHz is the valve PWM carrier frequency.
	FrequencyHz = 50

	cycleLen = hal.MaxDuty + 1
)

// PWM is the subset of rpio.Pin used for a valve output.
type PWM interface {
	DutyCycle(dutyLen, cycleLen uint32)
}

// Bank maps valve channels (hal.ValveAIn .. hal.ValveBOut) to PWM outputs.
type Bank struct {
	pins [hal.NumValves]PWM
	duty [hal.NumValves]uint32
}

// New returns a bank with every valve closed.
func New(pins [hal.NumValves]PWM) *Bank {
	b := &Bank{pins: pins}
	for ch := range pins {
		b.pins[ch].DutyCycle(0, cycleLen)
	}
	return b
}

// NewGPIO configures four BCM pins for hardware PWM at FrequencyHz with
// 13-bit resolution. rpio.Open must have been called.
func NewGPIO(pins [hal.NumValves]int) *Bank {
	var out [hal.NumValves]PWM
	for i, n := range pins {
		p := rpio.Pin(n)
		p.Mode(rpio.Pwm)
		p.Freq(FrequencyHz * cycleLen)
		out[i] = p
	}
	return New(out)
}

// WriteActuator sets the duty of one valve; values above hal.MaxDuty are
// clamped.
func (b *Bank) WriteActuator(channel int, duty uint32) error {
	if channel < 0 || channel >= hal.NumValves {
		return fmt.Errorf("valve: %w: %d", hal.ErrChannel, channel)
	}
	duty = hal.ClampDuty(duty)
	b.pins[channel].DutyCycle(duty, cycleLen)
	b.duty[channel] = duty
	return nil
}

func (b *Bank) OpenFull(channel int) error {
	return b.WriteActuator(channel, hal.MaxDuty)
}

func (b *Bank) CloseFull(channel int) error {
	return b.WriteActuator(channel, 0)
}

// CloseAll closes every valve, returning the first error.
func (b *Bank) CloseAll() error {
	for ch := 0; ch < hal.NumValves; ch++ {
		if err := b.CloseFull(ch); err != nil {
			return err
		}
	}
	return nil
}

// Duty returns the last duty written to channel.
func (b *Bank) Duty(channel int) uint32 {
	if channel < 0 || channel >= hal.NumValves {
		return 0
	}
	return b.duty[channel]
}
