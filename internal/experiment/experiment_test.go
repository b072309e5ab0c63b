package experiment

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/pamjoint/internal/config"
)

func shortConfig(d time.Duration) *config.Config {
	cfg := config.GetPreset("sim")
	cfg.Duration = d
	return cfg
}

func TestRun(t *testing.T) {
	res, err := New(shortConfig(time.Second)).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Reports) != 50 {
		t.Fatalf("expected 50 reports, got %d", len(res.Reports))
	}
	if res.Stats.Cycles != 50 {
		t.Errorf("expected 50 cycles, got %d", res.Stats.Cycles)
	}
	if _, ok := res.Metrics["tracking_rms_deg"]; !ok {
		t.Errorf("missing tracking_rms_deg in %v", res.Metrics)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New(shortConfig(time.Second)).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res == nil {
		t.Fatal("expected partial result")
	}
}

func TestStepsApplyInOrder(t *testing.T) {
	ten, one := 10.0, 1.0
	steps := []Step{
		{At: 600 * time.Millisecond, Dropout: &one},
		{At: 200 * time.Millisecond, Target: &ten},
	}
	cfg := shortConfig(time.Second)
	cfg.Target = 0

	res, err := New(cfg).WithSteps(steps).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := res.Reports
	if len(r) != 50 {
		t.Fatalf("expected 50 reports, got %d", len(r))
	}
	if r[9].Target != 0 || r[10].Target != 10 {
		t.Errorf("expected target change at cycle 10, got %v then %v", r[9].Target, r[10].Target)
	}
	if r[29].Skipped {
		t.Error("expected cycle 29 to run before dropout")
	}
	for _, rep := range r[30:] {
		if !rep.Skipped {
			t.Fatalf("expected every cycle after dropout to be skipped, cycle %d ran", rep.Cycle)
		}
	}
}

func TestStepPastDurationIgnored(t *testing.T) {
	ten := 10.0
	cfg := shortConfig(200 * time.Millisecond)
	cfg.Target = 0
	res, err := New(cfg).WithSteps([]Step{{At: time.Second, Target: &ten}}).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, rep := range res.Reports {
		if rep.Target != 0 {
			t.Fatalf("expected target 0 throughout, got %v", rep.Target)
		}
	}
}

const scenarioYAML = `
name: step-and-drop
preset: sim
target: 0
duration: 1s
steps:
  - at: 200ms
    target: 10
  - at: 600ms
    dropout: 1
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(scenarioYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Name != "step-and-drop" || len(s.Steps) != 2 {
		t.Fatalf("unexpected scenario %+v", s)
	}
	if s.Steps[0].At != 200*time.Millisecond || *s.Steps[0].Target != 10 {
		t.Errorf("unexpected first step %+v", s.Steps[0])
	}

	cfg, err := s.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Duration != time.Second || cfg.Target != 0 {
		t.Errorf("expected overrides applied, got duration %v target %v", cfg.Duration, cfg.Target)
	}

	res, err := s.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Reports[10].Target != 10 {
		t.Errorf("expected target 10 at cycle 10, got %v", res.Reports[10].Target)
	}
}

func TestParseScenarioErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "steps: ["},
		{"unknown preset", "preset: nope\nsteps: []"},
		{"negative at", "steps:\n  - at: -1s\n    target: 1"},
		{"empty step", "steps:\n  - at: 1s"},
		{"bad dropout", "steps:\n  - at: 1s\n    dropout: 2"},
		{"negative duration", "duration: -1s\nsteps: []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			if !errors.Is(err, ErrScenario) {
				t.Errorf("expected ErrScenario, got %v", err)
			}
		})
	}
}

func TestParseAxis(t *testing.T) {
	tests := []struct {
		in     string
		name   string
		values []float64
		ok     bool
	}{
		{"outer.kp=1,2,4", "outer.kp", []float64{1, 2, 4}, true},
		{"inner.ki=0:0.3:0.1", "inner.ki", []float64{0, 0.1, 0.2, 0.3}, true},
		{"base_bias=100", "base_bias", []float64{100}, true},
		{"outer.kp", "", nil, false},
		{"outer.kp=", "", nil, false},
		{"bogus=1", "", nil, false},
		{"outer.kp=a,b", "", nil, false},
		{"outer.kp=3:1:1", "", nil, false},
		{"outer.kp=0:1:0", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			name, values, err := ParseAxis(tt.in)
			if (err == nil) != tt.ok {
				t.Fatalf("expected ok=%v, got err %v", tt.ok, err)
			}
			if !tt.ok {
				return
			}
			if name != tt.name {
				t.Errorf("expected name %s, got %s", tt.name, name)
			}
			if len(values) != len(tt.values) {
				t.Fatalf("expected %v, got %v", tt.values, values)
			}
			for i := range values {
				if math.Abs(values[i]-tt.values[i]) > 1e-9 {
					t.Errorf("value %d: expected %v, got %v", i, tt.values[i], values[i])
				}
			}
		})
	}
}

func TestGridSearchCandidates(t *testing.T) {
	g, err := NewGridSearch([]string{"outer.kp", "outer.ki"}, [][]float64{{1, 2, 3}, {0, 1}})
	if err != nil {
		t.Fatal(err)
	}
	c := g.Candidates()
	if len(c) != 6 {
		t.Fatalf("expected 6 candidates, got %d", len(c))
	}
	if c[0]["outer.kp"] != 1 || c[0]["outer.ki"] != 0 || c[5]["outer.kp"] != 3 || c[5]["outer.ki"] != 1 {
		t.Errorf("unexpected ordering: first %v last %v", c[0], c[5])
	}
}

func TestNewGridSearchErrors(t *testing.T) {
	if _, err := NewGridSearch([]string{"nope"}, [][]float64{{1}}); !errors.Is(err, ErrParam) {
		t.Errorf("expected ErrParam, got %v", err)
	}
	if _, err := NewGridSearch([]string{"outer.kp"}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if _, err := NewGridSearch([]string{"outer.kp"}, [][]float64{{}}); err == nil {
		t.Error("expected empty range error")
	}
}

func TestGridSearchSearch(t *testing.T) {
	base := shortConfig(time.Second)
	g, err := NewGridSearch([]string{"outer.kp", "inner.kp"}, [][]float64{{0, 2}, {0.2, math.NaN()}})
	if err != nil {
		t.Fatal(err)
	}
	g.Workers = 2

	results, err := g.Search(context.Background(), base, "tracking_rms_deg")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score < results[i-1].Score {
			t.Errorf("results not sorted at %d: %v < %v", i, results[i].Score, results[i-1].Score)
		}
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
			if !math.IsInf(r.Score, 1) {
				t.Errorf("expected failed candidate to score +Inf, got %v", r.Score)
			}
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 failed candidates, got %d", failed)
	}
	if base.Outer.Kp == 0 || base.InnerA.Kp == 0.2 {
		t.Error("search modified the base config")
	}
}

func TestGridSearchUnknownMetric(t *testing.T) {
	g, _ := NewGridSearch([]string{"base_bias"}, [][]float64{{100}})
	results, err := g.Search(context.Background(), shortConfig(100*time.Millisecond), "nope")
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Err == nil {
		t.Error("expected missing metric error")
	}
}

func TestParams(t *testing.T) {
	p := Params()
	if len(p) != 8 || p[0] != "base_bias" {
		t.Errorf("unexpected params %v", p)
	}
}

func TestStepsAtBoundaries(t *testing.T) {
	five, ten := 5.0, 10.0
	cfg := shortConfig(200 * time.Millisecond)
	cfg.Target = 0
	steps := []Step{
		{At: 0, Target: &five},
		{At: 200 * time.Millisecond, Target: &ten},
	}

	res, err := New(cfg).WithSteps(steps).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Reports) != 10 {
		t.Fatalf("expected 10 reports, got %d", len(res.Reports))
	}
	if res.Reports[0].Target != 5 {
		t.Errorf("expected step at 0 applied to the first cycle, got %v", res.Reports[0].Target)
	}
}

func TestRunNeedsDuration(t *testing.T) {
	_, err := New(shortConfig(0)).Run(context.Background())
	if !errors.Is(err, config.ErrDuration) {
		t.Errorf("expected ErrDuration, got %v", err)
	}
}
