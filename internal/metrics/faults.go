package metrics

import (
	"github.com/san-kum/pamjoint/internal/cycle"
)

// FaultRate is the fraction of cycles skipped because of a sensor failure.
type FaultRate struct {
	name    string
	skipped int
	samples int
}

func NewFaultRate() *FaultRate {
	return &FaultRate{
		name: "fault_rate",
	}
}

func (f *FaultRate) Name() string {
	return f.name
}

func (f *FaultRate) Observe(r cycle.Report) {
	f.samples++
	if r.Skipped {
		f.skipped++
	}
}

func (f *FaultRate) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return float64(f.skipped) / float64(f.samples)
}

func (f *FaultRate) Reset() {
	f.skipped = 0
	f.samples = 0
}

// Overruns counts cycles that took longer than the period.
type Overruns struct {
	name  string
	count int
}

func NewOverruns() *Overruns {
	return &Overruns{name: "overruns"}
}

func (o *Overruns) Name() string { return o.name }

func (o *Overruns) Observe(r cycle.Report) {
	if r.Overrun {
		o.count++
	}
}

func (o *Overruns) Value() float64 { return float64(o.count) }

func (o *Overruns) Reset() { o.count = 0 }
