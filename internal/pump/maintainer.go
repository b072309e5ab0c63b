// Package pump keeps the supply reservoir pressurised by cycling the
// compressor relay from a pressure switch.
package pump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/pamjoint/internal/cycle"
)

// DefaultPeriod is how often the switch is polled.
const DefaultPeriod = 100 * time.Millisecond

var ErrPeriod = errors.New("pump: period must be positive")

type Switch interface {
	PressureLow() (bool, error)
}

type Relay interface {
	SetRelay(on bool) error
}

// Maintainer polls the reservoir switch and drives the relay: on while
// pressure is low, off otherwise. A switch that cannot be read turns the
// relay off.
type Maintainer struct {
	sw     Switch
	relay  Relay
	period time.Duration
	clock  cycle.Clock
	logger *log.Logger

	running bool
	started bool
}

func NewMaintainer(sw Switch, relay Relay, period time.Duration, clock cycle.Clock, logger *log.Logger) (*Maintainer, error) {
	if period <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrPeriod, period)
	}
	if clock == nil {
		clock = cycle.SystemClock{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Maintainer{sw: sw, relay: relay, period: period, clock: clock, logger: logger}, nil
}

// Step polls the switch once and writes the relay.
func (m *Maintainer) Step() error {
	low, err := m.sw.PressureLow()
	if err != nil {
		m.logger.Error("pressure switch read failed, stopping compressor", "err", err)
		low = false
	}
	if !m.started || low != m.running {
		if low {
			m.logger.Info("reservoir pressure low, compressor on")
		} else {
			m.logger.Info("reservoir pressure ok, compressor off")
		}
	}
	m.started = true
	m.running = low

	if werr := m.relay.SetRelay(low); werr != nil {
		return errors.Join(err, fmt.Errorf("pump: relay: %w", werr))
	}
	return err
}

// Running reports the last relay state written.
func (m *Maintainer) Running() bool { return m.running }

// Run steps every period until ctx is done, then switches the compressor
// off and returns ctx.Err().
func (m *Maintainer) Run(ctx context.Context) error {
	next := m.clock.Now()
	for {
		if err := m.Step(); err != nil {
			m.logger.Debug("pump step", "err", err)
		}
		next = next.Add(m.period)
		if now := m.clock.Now(); now.After(next) {
			next = now
		}
		if err := m.clock.SleepUntil(ctx, next); err != nil {
			if rerr := m.relay.SetRelay(false); rerr != nil {
				m.logger.Error("compressor shutdown failed", "err", rerr)
			}
			m.running = false
			return err
		}
	}
}
