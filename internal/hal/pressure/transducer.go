// Package pressure talks to the muscle pressure transducers over a shared
// UART, one transducer per multiplexer channel.
package pressure

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/san-kum/pamjoint/internal/hal"
)

const (
	BaudRate = 9600

	// DefaultTimeout bounds a read when the context carries no deadline.
	DefaultTimeout = 100 * time.Millisecond
)

// Port is the serial port surface used by the transducer; serial.Port
// satisfies it.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

type Transducer struct {
	port Port
	mux  hal.Selector
	buf  [maxResponseLen]byte
}

// Open opens the UART at 9600 8N1. mux may be nil for a single transducer.
func Open(name string, mux hal.Selector) (*Transducer, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("pressure: open %s: %w", name, err)
	}
	return New(port, mux), nil
}

func New(port Port, mux hal.Selector) *Transducer {
	return &Transducer{port: port, mux: mux}
}

// ReadPressure selects channel, sends a pressure request and waits for the
// response until the context deadline.
func (t *Transducer) ReadPressure(ctx context.Context, channel int) (float64, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultTimeout)
	}

	if t.mux != nil {
		if err := t.mux.Select(channel); err != nil {
			return 0, err
		}
	}
	// drop bytes left over from an earlier abandoned exchange
	if err := t.port.ResetInputBuffer(); err != nil {
		return 0, &hal.BusError{Op: "pressure reset", Err: err}
	}
	if _, err := t.port.Write(EncodeRequest(CmdPressure)); err != nil {
		return 0, &hal.BusError{Op: "pressure write", Err: err}
	}

	frame, err := t.readFrame(ctx, deadline)
	if err != nil {
		return 0, err
	}
	return DecodeResponse(frame)
}

func (t *Transducer) readFrame(ctx context.Context, deadline time.Time) ([]byte, error) {
	n, want := 0, minResponseLen
	for n < want {
		if ctx.Err() != nil {
			return nil, hal.ErrTimeout
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, hal.ErrTimeout
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return nil, &hal.BusError{Op: "pressure timeout", Err: err}
		}
		m, err := t.port.Read(t.buf[n:want])
		if err != nil {
			return nil, &hal.BusError{Op: "pressure read", Err: err}
		}
		if m == 0 {
			return nil, hal.ErrTimeout
		}
		if n == 0 && t.buf[0] != ResponseHeader {
			return nil, &hal.FrameError{Frame: append([]byte(nil), t.buf[:m]...), Reason: "bad header", Err: hal.ErrMalformed}
		}
		n += m
		if n >= 2 {
			l := int(t.buf[1])
			if l < minResponseLen || l > maxResponseLen {
				return nil, &hal.FrameError{Frame: append([]byte(nil), t.buf[:n]...), Reason: fmt.Sprintf("bad length %d", l), Err: hal.ErrMalformed}
			}
			want = l
		}
	}
	return append([]byte(nil), t.buf[:n]...), nil
}

func (t *Transducer) Close() error {
	return t.port.Close()
}
