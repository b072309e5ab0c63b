package experiment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/san-kum/pamjoint/internal/config"
)

var ErrParam = errors.New("experiment: unknown tuning parameter")

var setters = map[string]func(*config.Config, float64){
	"outer.kp":        func(c *config.Config, v float64) { c.Outer.Kp = v },
	"outer.ki":        func(c *config.Config, v float64) { c.Outer.Ki = v },
	"outer.kd":        func(c *config.Config, v float64) { c.Outer.Kd = v },
	"outer.dead_zone": func(c *config.Config, v float64) { c.Outer.DeadZone = v },
	"inner.kp": func(c *config.Config, v float64) {
		c.InnerA.Kp, c.InnerB.Kp = v, v
	},
	"inner.ki": func(c *config.Config, v float64) {
		c.InnerA.Ki, c.InnerB.Ki = v, v
	},
	"inner.kd": func(c *config.Config, v float64) {
		c.InnerA.Kd, c.InnerB.Kd = v, v
	},
	"base_bias": func(c *config.Config, v float64) { c.BaseBias = v },
}

// Params lists the tunable parameter names.
func Params() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseAxis parses "name=v1,v2,..." or "name=start:stop:step" (inclusive).
func ParseAxis(s string) (string, []float64, error) {
	name, spec, ok := strings.Cut(s, "=")
	if !ok || spec == "" {
		return "", nil, fmt.Errorf("experiment: axis %q: want name=values", s)
	}
	name = strings.TrimSpace(name)
	if _, ok := setters[name]; !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrParam, name)
	}

	if parts := strings.Split(spec, ":"); len(parts) == 3 {
		var r [3]float64
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return "", nil, fmt.Errorf("experiment: axis %s: %w", name, err)
			}
			r[i] = v
		}
		start, stop, step := r[0], r[1], r[2]
		if step <= 0 || stop < start {
			return "", nil, fmt.Errorf("experiment: axis %s: bad range %s", name, spec)
		}
		var values []float64
		n := int(math.Floor((stop-start)/step+1e-9)) + 1
		for i := 0; i < n; i++ {
			values = append(values, start+float64(i)*step)
		}
		return name, values, nil
	}

	var values []float64
	for _, p := range strings.Split(spec, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", nil, fmt.Errorf("experiment: axis %s: %w", name, err)
		}
		values = append(values, v)
	}
	return name, values, nil
}

// Candidate is one point of a grid search.
type Candidate struct {
	Params  map[string]float64
	Score   float64
	Metrics map[string]float64
	Err     error
}

// GridSearch evaluates every combination of parameter values against the
// simulated joint and ranks them by a metric, lower is better.
type GridSearch struct {
	names   []string
	ranges  [][]float64
	Workers int
}

func NewGridSearch(names []string, ranges [][]float64) (*GridSearch, error) {
	if len(names) != len(ranges) {
		return nil, fmt.Errorf("experiment: %d parameters but %d ranges", len(names), len(ranges))
	}
	for i, name := range names {
		if _, ok := setters[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrParam, name)
		}
		if len(ranges[i]) == 0 {
			return nil, fmt.Errorf("experiment: parameter %s has no values", name)
		}
	}
	return &GridSearch{names: names, ranges: ranges}, nil
}

// Candidates returns the cartesian product of the parameter ranges.
func (g *GridSearch) Candidates() []map[string]float64 {
	var out []map[string]float64
	g.generate(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) generate(idx int, current map[string]float64, out *[]map[string]float64) {
	if idx == len(g.names) {
		cp := make(map[string]float64, len(current))
		for k, v := range current {
			cp[k] = v
		}
		*out = append(*out, cp)
		return
	}
	for _, v := range g.ranges[idx] {
		current[g.names[idx]] = v
		g.generate(idx+1, current, out)
	}
}

// Search runs every candidate on a copy of base and returns them sorted by
// the named metric. Candidates that fail to build or run score +Inf.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, metric string) ([]Candidate, error) {
	params := g.Candidates()
	results := make([]Candidate, len(params))

	workers := g.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = evaluate(ctx, base, params[i], metric)
			}
		}()
	}

feed:
	for i := range params {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	return results, nil
}

func evaluate(ctx context.Context, base *config.Config, params map[string]float64, metric string) Candidate {
	c := Candidate{Params: params, Score: math.Inf(1)}

	cfg := base.Clone()
	cfg.Plant.Speed = 0
	for name, v := range params {
		setters[name](cfg, v)
	}
	if err := cfg.ValidateSim(); err != nil {
		c.Err = err
		return c
	}

	res, err := New(cfg).Run(ctx)
	if err != nil {
		c.Err = err
		return c
	}
	c.Metrics = res.Metrics
	score, ok := res.Metrics[metric]
	if !ok {
		c.Err = fmt.Errorf("experiment: no metric %q", metric)
		return c
	}
	if !math.IsNaN(score) {
		c.Score = score
	}
	return c
}
