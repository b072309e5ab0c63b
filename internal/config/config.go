package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/pamjoint/internal/cascade"
	"github.com/san-kum/pamjoint/internal/control"
	"github.com/san-kum/pamjoint/internal/cycle"
	"github.com/san-kum/pamjoint/internal/hal"
	"github.com/san-kum/pamjoint/internal/plant"
)

const (
	DefaultDuration = 10 * time.Second
	DefaultStoreDir = "runs"
	DefaultI2C      = "/dev/i2c-1"
	DefaultSerial   = "/dev/ttyAMA0"
)

var ErrDuration = errors.New("config: invalid duration")

type Config struct {
	Driver    DriverConfig    `yaml:"driver"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Outer     LoopConfig      `yaml:"outer"`
	InnerA    LoopConfig      `yaml:"inner_a"`
	InnerB    LoopConfig      `yaml:"inner_b"`
	BaseBias  float64         `yaml:"base_bias"`
	Target    float64         `yaml:"target"`
	Channels  ChannelConfig   `yaml:"channels"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Pump      PumpConfig      `yaml:"pump"`
	Plant     PlantConfig     `yaml:"plant"`
	// Duration bounds a run; 0 runs the hardware loop until interrupted.
	Duration  time.Duration   `yaml:"duration"`
	StoreDir  string          `yaml:"store_dir"`
}

type DriverConfig struct {
	Period         time.Duration `yaml:"period"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	FailSafe       string        `yaml:"fail_safe"`
	FailSafeDuty   uint32        `yaml:"fail_safe_duty"`
	FaultThreshold int           `yaml:"fault_threshold"`
	CommandQueue   int           `yaml:"command_queue"`
}

type EstimatorConfig struct {
	Initial          float64 `yaml:"initial"`
	Covariance       float64 `yaml:"covariance"`
	ProcessNoise     float64 `yaml:"process_noise"`
	MeasurementNoise float64 `yaml:"measurement_noise"`
}

// LoopConfig is one PID loop. A missing integral_bound means half the
// output range.
type LoopConfig struct {
	Kp            float64  `yaml:"kp"`
	Ki            float64  `yaml:"ki"`
	Kd            float64  `yaml:"kd"`
	OutputMin     float64  `yaml:"output_min"`
	OutputMax     float64  `yaml:"output_max"`
	IntegralBound *float64 `yaml:"integral_bound,omitempty"`
	DeadZone      float64  `yaml:"dead_zone"`
}

type ChannelConfig struct {
	Angle     int `yaml:"angle"`
	PressureA int `yaml:"pressure_a"`
	PressureB int `yaml:"pressure_b"`
	ValveA    int `yaml:"valve_a"`
	ValveB    int `yaml:"valve_b"`
}

// HardwareConfig holds BCM pin numbers and device paths for the Linux host.
type HardwareConfig struct {
	I2CDevice   string             `yaml:"i2c_device"`
	SerialPort  string             `yaml:"serial_port"`
	AngleMux    [3]int             `yaml:"angle_mux,flow"`
	PressureMux [3]int             `yaml:"pressure_mux,flow"`
	Valves      [hal.NumValves]int `yaml:"valves,flow"`
	RelayPin    int                `yaml:"relay_pin"`
	SwitchPin   int                `yaml:"switch_pin"`
}

type PumpConfig struct {
	Enabled bool          `yaml:"enabled"`
	Period  time.Duration `yaml:"period"`
}

// PlantConfig parameterises the simulated joint used by sim and live.
type PlantConfig struct {
	FillRate        float64       `yaml:"fill_rate"`
	LeakRate        float64       `yaml:"leak_rate"`
	InitialPressure float64       `yaml:"initial_pressure"`
	NaturalFreq     float64       `yaml:"natural_freq"`
	Damping         float64       `yaml:"damping"`
	Gain            float64       `yaml:"gain"`
	InitialAngle    float64       `yaml:"initial_angle"`
	SupplyPressure  float64       `yaml:"supply_pressure"`
	SupplyMax       float64       `yaml:"supply_max"`
	PumpRate        float64       `yaml:"pump_rate"`
	DrawRate        float64       `yaml:"draw_rate"`
	SwitchLow       float64       `yaml:"switch_low"`
	SwitchHigh      float64       `yaml:"switch_high"`
	ZeroRaw         uint16        `yaml:"zero_raw"`
	AngleNoise      float64       `yaml:"angle_noise"`
	PressureNoise   float64       `yaml:"pressure_noise"`
	DropoutRate     float64       `yaml:"dropout_rate"`
	Seed            int64         `yaml:"seed"`
	Integrator      string        `yaml:"integrator"`
	SubStep         time.Duration `yaml:"sub_step"`
	// Speed paces virtual time against the wall clock; 0 runs unpaced.
	Speed float64 `yaml:"speed"`
}

func DefaultConfig() *Config {
	cc := cycle.DefaultConfig()
	p := plant.DefaultParams()
	return &Config{
		Driver: DriverConfig{
			Period:         cc.Period,
			ReadTimeout:    cc.ReadTimeout,
			FailSafe:       string(cc.FailSafe),
			FailSafeDuty:   cc.FailSafeDuty,
			FaultThreshold: cc.FaultThreshold,
			CommandQueue:   cc.CommandQueue,
		},
		Estimator: EstimatorConfig(cc.Estimator),
		Outer:     loopFrom(cc.Cascade.Outer),
		InnerA:    loopFrom(cc.Cascade.InnerA),
		InnerB:    loopFrom(cc.Cascade.InnerB),
		BaseBias:  cc.Cascade.BaseBias,
		Channels:  ChannelConfig(cc.Channels),
		Hardware: HardwareConfig{
			I2CDevice:   DefaultI2C,
			SerialPort:  DefaultSerial,
			AngleMux:    [3]int{5, 6, 16},
			PressureMux: [3]int{17, 27, 22},
			Valves:      [hal.NumValves]int{12, 13, 18, 19},
			RelayPin:    23,
			SwitchPin:   24,
		},
		Pump: PumpConfig{
			Enabled: true,
			Period:  100 * time.Millisecond,
		},
		Plant:    plantFrom(p),
		Duration: DefaultDuration,
		StoreDir: DefaultStoreDir,
	}
}

// loopFrom leaves IntegralBound unset when it is the half-range default,
// so a file that only moves the output range gets a matching bound.
func loopFrom(c control.Config) LoopConfig {
	l := LoopConfig{
		Kp:        c.Kp,
		Ki:        c.Ki,
		Kd:        c.Kd,
		OutputMin: c.OutputMin,
		OutputMax: c.OutputMax,
		DeadZone:  c.DeadZone,
	}
	if c.IntegralBound != control.DefaultIntegralBound(c.OutputMin, c.OutputMax) {
		bound := c.IntegralBound
		l.IntegralBound = &bound
	}
	return l
}

// Control converts the loop to its controller form.
func (l LoopConfig) Control() control.Config {
	c := control.Config{
		Gains:     control.Gains{Kp: l.Kp, Ki: l.Ki, Kd: l.Kd},
		OutputMin: l.OutputMin,
		OutputMax: l.OutputMax,
		DeadZone:  l.DeadZone,
	}
	if l.IntegralBound != nil {
		c.IntegralBound = *l.IntegralBound
	} else {
		c.IntegralBound = control.DefaultIntegralBound(l.OutputMin, l.OutputMax)
	}
	return c
}

func plantFrom(p plant.Params) PlantConfig {
	return PlantConfig{
		FillRate:        p.FillRate,
		LeakRate:        p.LeakRate,
		InitialPressure: p.InitialPressure,
		NaturalFreq:     p.NaturalFreq,
		Damping:         p.Damping,
		Gain:            p.Gain,
		InitialAngle:    p.InitialAngle,
		SupplyPressure:  p.SupplyPressure,
		SupplyMax:       p.SupplyMax,
		PumpRate:        p.PumpRate,
		DrawRate:        p.DrawRate,
		SwitchLow:       p.SwitchLow,
		SwitchHigh:      p.SwitchHigh,
		ZeroRaw:         p.ZeroRaw,
		AngleNoise:      p.AngleNoise,
		PressureNoise:   p.PressureNoise,
		DropoutRate:     p.DropoutRate,
		Seed:            p.Seed,
		Integrator:      p.Integrator,
		SubStep:         p.SubStep,
	}
}

// Params converts the section to simulator parameters.
func (p PlantConfig) Params() plant.Params {
	return plant.Params{
		FillRate:        p.FillRate,
		LeakRate:        p.LeakRate,
		InitialPressure: p.InitialPressure,
		NaturalFreq:     p.NaturalFreq,
		Damping:         p.Damping,
		Gain:            p.Gain,
		InitialAngle:    p.InitialAngle,
		SupplyPressure:  p.SupplyPressure,
		SupplyMax:       p.SupplyMax,
		PumpRate:        p.PumpRate,
		DrawRate:        p.DrawRate,
		SwitchLow:       p.SwitchLow,
		SwitchHigh:      p.SwitchHigh,
		ZeroRaw:         p.ZeroRaw,
		AngleNoise:      p.AngleNoise,
		PressureNoise:   p.PressureNoise,
		DropoutRate:     p.DropoutRate,
		Seed:            p.Seed,
		Integrator:      p.Integrator,
		SubStep:         p.SubStep,
	}
}

// Cycle builds the driver configuration.
func (c *Config) Cycle() cycle.Config {
	return cycle.Config{
		Period:         c.Driver.Period,
		ReadTimeout:    c.Driver.ReadTimeout,
		FailSafe:       cycle.FailSafe(c.Driver.FailSafe),
		FailSafeDuty:   c.Driver.FailSafeDuty,
		FaultThreshold: c.Driver.FaultThreshold,
		AngleModulus:   hal.AngleModulus,
		Channels:       cycle.Channels(c.Channels),
		Estimator:      cycle.EstimatorConfig(c.Estimator),
		Cascade: cascade.Config{
			Outer:    c.Outer.Control(),
			InnerA:   c.InnerA.Control(),
			InnerB:   c.InnerB.Control(),
			BaseBias: c.BaseBias,
		},
		CommandQueue: c.Driver.CommandQueue,
	}
}

// Validate checks every section that has a validator of its own.
func (c *Config) Validate() error {
	if err := c.Cycle().Validate(); err != nil {
		return err
	}
	for name, l := range map[string]LoopConfig{"outer": c.Outer, "inner_a": c.InnerA, "inner_b": c.InnerB} {
		if err := l.Control().Validate(); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if err := c.Plant.Params().Validate(); err != nil {
		return fmt.Errorf("config: plant: %w", err)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: %v is negative", ErrDuration, c.Duration)
	}
	return nil
}

// ValidateSim is Validate plus the simulation requirement of a bounded
// run. A zero Duration is only meaningful on hardware, where it means run
// until interrupted.
func (c *Config) ValidateSim() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Duration == 0 {
		return fmt.Errorf("%w: a simulation needs a positive duration", ErrDuration)
	}
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Outer.IntegralBound = cloneBound(c.Outer.IntegralBound)
	out.InnerA.IntegralBound = cloneBound(c.InnerA.IntegralBound)
	out.InnerB.IntegralBound = cloneBound(c.InnerB.IntegralBound)
	return &out
}

func cloneBound(b *float64) *float64 {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
