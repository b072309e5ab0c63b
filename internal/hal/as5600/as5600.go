// Package as5600 reads the AMS AS5600 12-bit magnetic rotary encoder over
// Linux i2c-dev, optionally behind a multiplexer.
package as5600

import (
	"context"
	"fmt"

	"golang.org/x/exp/io/i2c"

	"github.com/san-kum/pamjoint/internal/hal"
)

const (
	Address = 0x36

	// RegRawAngle is the high byte of the RAW ANGLE register pair.
	RegRawAngle = 0x0E

	angleMask = 0x0FFF
)

// Bus is the register access used by the sensor; *i2c.Device satisfies it.
type Bus interface {
	ReadReg(reg byte, buf []byte) error
	Close() error
}

type Sensor struct {
	bus Bus
	mux hal.Selector

	// inflight holds a token while a transfer is outstanding, so a read
	// abandoned on timeout is never overlapped by the next one.
	inflight chan struct{}
}

// Open opens the encoder on an i2c-dev node such as /dev/i2c-1. mux may be
// nil when only one encoder is wired.
func Open(dev string, mux hal.Selector) (*Sensor, error) {
	d, err := i2c.Open(&i2c.Devfs{Dev: dev}, Address)
	if err != nil {
		return nil, fmt.Errorf("as5600: open %s: %w", dev, err)
	}
	return New(d, mux), nil
}

func New(bus Bus, mux hal.Selector) *Sensor {
	return &Sensor{
		bus:      bus,
		mux:      mux,
		inflight: make(chan struct{}, 1),
	}
}

type result struct {
	raw uint16
	err error
}

// ReadAngle selects channel and returns the raw 12-bit angle. The transfer
// is abandoned with hal.ErrTimeout when ctx expires first.
func (s *Sensor) ReadAngle(ctx context.Context, channel int) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, hal.ErrTimeout
	}
	select {
	case s.inflight <- struct{}{}:
	default:
		return 0, fmt.Errorf("%w: previous transfer pending", hal.ErrTimeout)
	}

	if s.mux != nil {
		if err := s.mux.Select(channel); err != nil {
			<-s.inflight
			return 0, err
		}
	}

	done := make(chan result, 1)
	go func() {
		defer func() { <-s.inflight }()
		buf := make([]byte, 2)
		if err := s.bus.ReadReg(RegRawAngle, buf); err != nil {
			done <- result{err: &hal.BusError{Op: "as5600 read", Err: err}}
			return
		}
		done <- result{raw: Decode(buf)}
	}()

	select {
	case r := <-done:
		return r.raw, r.err
	case <-ctx.Done():
		return 0, hal.ErrTimeout
	}
}

func (s *Sensor) Close() error {
	return s.bus.Close()
}

// Decode assembles the big-endian register pair into a 12-bit angle.
func Decode(buf []byte) uint16 {
	return (uint16(buf[0])<<8 | uint16(buf[1])) & angleMask
}
