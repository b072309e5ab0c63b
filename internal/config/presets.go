package config

import (
	"sort"
	"time"

	"github.com/san-kum/pamjoint/internal/cycle"
)

// SimIntegralBound is the outer-loop integral bound the simulated joint
// needs to hold a steady angle against its own stiffness.
const SimIntegralBound = 1500

type Preset struct {
	Description string
	apply       func(*Config)
}

var Presets = map[string]Preset{
	"hardware": {
		Description: "reference joint on the Raspberry Pi, tuned firmware defaults",
		apply:       func(*Config) {},
	},
	"sim": {
		Description: "simulated joint tracking 30 degrees",
		apply: func(c *Config) {
			simLoop(c)
			c.Target = 30
		},
	},
	"sim-antagonist": {
		Description: "simulated joint driven to -20 degrees by muscle B",
		apply: func(c *Config) {
			simLoop(c)
			c.Target = -20
		},
	},
	"sim-dropout": {
		Description: "simulated joint with 5% sensor dropout",
		apply: func(c *Config) {
			simLoop(c)
			c.Target = 30
			c.Duration = 15 * time.Second
			c.Plant.DropoutRate = 0.05
		},
	},
	"sim-failsafe": {
		Description: "dead angle sensor with the duty fail-safe closing both inlets",
		apply: func(c *Config) {
			simLoop(c)
			c.Target = 30
			c.Duration = 2 * time.Second
			c.Driver.FailSafe = string(cycle.FailSafeDuty)
			c.Driver.FailSafeDuty = 0
			c.Plant.DropoutRate = 1
		},
	},
	"sim-euler": {
		Description: "simulated joint integrated with forward Euler",
		apply: func(c *Config) {
			simLoop(c)
			c.Target = 30
			c.Plant.Integrator = "euler"
			c.Plant.SubStep = 100 * time.Microsecond
		},
	},
}

func simLoop(c *Config) {
	bound := float64(SimIntegralBound)
	c.Outer.IntegralBound = &bound
	c.Duration = 10 * time.Second
}

// GetPreset returns a fresh configuration for the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
