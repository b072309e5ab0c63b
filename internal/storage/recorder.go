package storage

import (
	"sync"

	"github.com/san-kum/pamjoint/internal/cycle"
)

// Recorder is a cycle.Observer that keeps every report in memory. A
// positive limit keeps only the most recent reports.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	reports []cycle.Report
}

func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) OnCycle(rep cycle.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	if r.limit > 0 && len(r.reports) > r.limit {
		r.reports = append(r.reports[:0], r.reports[len(r.reports)-r.limit:]...)
	}
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []cycle.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]cycle.Report, len(r.reports))
	copy(out, r.reports)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}
