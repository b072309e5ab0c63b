// Package metrics scores control runs from the per-cycle reports of a
// cycle.Driver.
package metrics

import (
	"github.com/san-kum/pamjoint/internal/cycle"
)

type Metric interface {
	Name() string
	Observe(r cycle.Report)
	Value() float64
	Reset()
}

// Collector fans every report out to a set of metrics. It implements
// cycle.Observer.
type Collector struct {
	metrics []Metric
}

func NewCollector(m ...Metric) *Collector {
	return &Collector{metrics: m}
}

// Standard returns the default metric set for a run.
func Standard(band float64) *Collector {
	return NewCollector(
		NewTrackingRMS(),
		NewControlEffort(),
		NewFaultRate(),
		NewOverruns(),
		NewSettlingTime(band),
	)
}

func (c *Collector) Add(m Metric) { c.metrics = append(c.metrics, m) }

func (c *Collector) OnCycle(r cycle.Report) {
	for _, m := range c.metrics {
		m.Observe(r)
	}
}

func (c *Collector) Values() map[string]float64 {
	out := make(map[string]float64, len(c.metrics))
	for _, m := range c.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (c *Collector) Reset() {
	for _, m := range c.metrics {
		m.Reset()
	}
}
