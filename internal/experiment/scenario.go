package experiment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pamjoint/internal/config"
)

var ErrScenario = errors.New("experiment: invalid scenario")

// Scenario is a scripted simulation loaded from YAML:
//
//	name: step-and-drop
//	preset: sim
//	duration: 6s
//	steps:
//	  - at: 2s
//	    target: -20
//	  - at: 4s
//	    dropout: 1
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Preset      string        `yaml:"preset,omitempty"`
	Target      *float64      `yaml:"target,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`
	Steps       []Step        `yaml:"steps"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScenario, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) Validate() error {
	if s.Preset != "" && config.GetPreset(s.Preset) == nil {
		return fmt.Errorf("%w: unknown preset %q", ErrScenario, s.Preset)
	}
	if s.Duration < 0 {
		return fmt.Errorf("%w: negative duration %v", ErrScenario, s.Duration)
	}
	for i, st := range s.Steps {
		if st.At < 0 {
			return fmt.Errorf("%w: step %d at %v", ErrScenario, i+1, st.At)
		}
		if st.Target == nil && st.Dropout == nil && !st.Zero {
			return fmt.Errorf("%w: step %d does nothing", ErrScenario, i+1)
		}
		if st.Dropout != nil && (*st.Dropout < 0 || *st.Dropout > 1) {
			return fmt.Errorf("%w: step %d dropout %v", ErrScenario, i+1, *st.Dropout)
		}
	}
	return nil
}

// Config resolves the scenario's preset (sim when unset) and applies its
// overrides.
func (s *Scenario) Config() (*config.Config, error) {
	name := s.Preset
	if name == "" {
		name = "sim"
	}
	cfg := config.GetPreset(name)
	if cfg == nil {
		return nil, fmt.Errorf("%w: unknown preset %q", ErrScenario, name)
	}
	if s.Target != nil {
		cfg.Target = *s.Target
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	return cfg, cfg.ValidateSim()
}

// Run executes the scenario. cfg overrides the scenario's own
// configuration when non-nil.
func (s *Scenario) Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	if cfg == nil {
		var err error
		if cfg, err = s.Config(); err != nil {
			return nil, err
		}
	}
	return New(cfg).WithSteps(s.Steps).Run(ctx)
}
