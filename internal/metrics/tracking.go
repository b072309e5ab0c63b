package metrics

import (
	"math"
	"time"

	"github.com/san-kum/pamjoint/internal/cycle"
)

// TrackingRMS is the root-mean-square angle error over cycles where the
// cascade ran.
type TrackingRMS struct {
	name    string
	sumSq   float64
	samples int
}

func NewTrackingRMS() *TrackingRMS {
	return &TrackingRMS{name: "tracking_rms_deg"}
}

func (t *TrackingRMS) Name() string { return t.name }

func (t *TrackingRMS) Observe(r cycle.Report) {
	if r.Skipped {
		return
	}
	e := r.Target - r.Angle
	t.sumSq += e * e
	t.samples++
}

func (t *TrackingRMS) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return math.Sqrt(t.sumSq / float64(t.samples))
}

func (t *TrackingRMS) Reset() {
	t.sumSq = 0
	t.samples = 0
}

// SettlingTime is the time from the latest target change until the angle
// entered and stayed within band degrees of it. It is -1 while unsettled.
type SettlingTime struct {
	name    string
	band    float64
	target  float64
	changed time.Time
	entered time.Time
	inside  bool
	started bool
}

func NewSettlingTime(band float64) *SettlingTime {
	return &SettlingTime{name: "settling_time_s", band: band}
}

func (s *SettlingTime) Name() string { return s.name }

func (s *SettlingTime) Observe(r cycle.Report) {
	if !s.started || r.Target != s.target {
		s.started = true
		s.target = r.Target
		s.changed = r.Time
		s.inside = false
	}
	if r.Skipped {
		return
	}
	within := math.Abs(r.Target-r.Angle) <= s.band
	switch {
	case within && !s.inside:
		s.inside = true
		s.entered = r.Time
	case !within:
		s.inside = false
	}
}

func (s *SettlingTime) Value() float64 {
	if !s.inside {
		return -1
	}
	return s.entered.Sub(s.changed).Seconds()
}

func (s *SettlingTime) Reset() {
	*s = SettlingTime{name: s.name, band: s.band}
}
