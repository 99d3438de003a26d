// Package config loads the service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/controls"
	"driver-controls/internal/event"
	"driver-controls/internal/hardware"
	"driver-controls/internal/logger"
)

type Config struct {
	// InstanceID tags fault records; generated when unset.
	InstanceID string         `yaml:"instance_id"`
	Redis      RedisConfig    `yaml:"redis"`
	Log        LogConfig      `yaml:"log"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Queue      QueueConfig    `yaml:"queue"`
	Timers     TimersConfig   `yaml:"timers"`
	Arbiter    ArbiterConfig  `yaml:"arbiter"`
	GPIO       GPIOConfig     `yaml:"gpio"`
	Throttle   ThrottleConfig `yaml:"throttle"`
	Drive      DriveConfig    `yaml:"drive"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	// Listen is the HTTP address; empty disables the server.
	Listen string `yaml:"listen"`
}

type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

type TimersConfig struct {
	Slots int `yaml:"slots"`
}

type ArbiterConfig struct {
	Capacity int    `yaml:"capacity"`
	Mode     string `yaml:"mode"`
}

type GPIOConfig struct {
	Chip     string         `yaml:"chip"`
	Debounce time.Duration  `yaml:"debounce"`
	Inputs   []InputConfig  `yaml:"inputs"`
	Outputs  []OutputConfig `yaml:"outputs"`
}

// InputConfig names the events raised by one input line.
type InputConfig struct {
	Name      string `yaml:"name"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
	Level     bool   `yaml:"level"`
	Press     string `yaml:"press"`
	Release   string `yaml:"release"`
	Data      uint16 `yaml:"data"`
	// Priority is highest, high, normal or low; empty means normal.
	Priority string `yaml:"priority"`
}

type OutputConfig struct {
	Name    string `yaml:"name"`
	Line    int    `yaml:"line"`
	Initial bool   `yaml:"initial"`
}

type ThrottleConfig struct {
	// Device is the IIO device; empty disables the throttle.
	Device               string        `yaml:"device"`
	Period               time.Duration `yaml:"period"`
	hardware.Calibration `yaml:",inline"`
}

type DriveConfig struct {
	UpdatePeriod time.Duration `yaml:"update_period"`
}

func Default() *Config {
	return &Config{
		InstanceID: uuid.NewString(),
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Listen: ":9105"},
		Queue:   QueueConfig{Capacity: event.DefaultCapacity},
		Timers:  TimersConfig{Slots: 16},
		Arbiter: ArbiterConfig{
			Capacity: arbiter.DefaultCapacity,
			Mode:     arbiter.Exhaustive.String(),
		},
		GPIO: GPIOConfig{
			Chip:     "gpiochip0",
			Debounce: hardware.DefaultDebounce,
			Inputs: []InputConfig{
				{Name: "power", Line: 0, ActiveLow: true, Press: "power_button"},
				{Name: "bps", Line: 1, Press: "bps_fault", Priority: "highest"},
				{Name: "mech_brake", Line: 2, ActiveLow: true, Level: true, Press: "mech_brake_pressed", Release: "mech_brake_released"},
				{Name: "direction_forward", Line: 3, ActiveLow: true, Level: true, Press: "direction_drive", Release: "direction_neutral"},
				{Name: "direction_reverse", Line: 4, ActiveLow: true, Level: true, Press: "direction_reverse", Release: "direction_neutral"},
				{Name: "cruise_on", Line: 5, ActiveLow: true, Press: "cruise_on"},
				{Name: "cruise_set", Line: 6, ActiveLow: true, Press: "cruise_set"},
				{Name: "cruise_resume", Line: 7, ActiveLow: true, Press: "cruise_resume"},
				{Name: "cruise_cancel", Line: 8, ActiveLow: true, Press: "cruise_cancel"},
				{Name: "cruise_plus", Line: 9, ActiveLow: true, Press: "cruise_speed_plus"},
				{Name: "cruise_minus", Line: 10, ActiveLow: true, Press: "cruise_speed_minus"},
				{Name: "turn_left", Line: 11, ActiveLow: true, Level: true, Press: "turn_signal_left", Release: "turn_signal_none"},
				{Name: "turn_right", Line: 12, ActiveLow: true, Level: true, Press: "turn_signal_right", Release: "turn_signal_none"},
				{Name: "hazards", Line: 13, ActiveLow: true, Press: "hazards_pressed", Release: "hazards_released"},
				{Name: "low_beams", Line: 14, ActiveLow: true, Press: "lowbeams"},
				{Name: "drl", Line: 15, ActiveLow: true, Press: "drl"},
				{Name: "high_beam", Line: 16, ActiveLow: true, Press: "highbeam_pressed", Release: "highbeam_released"},
			},
			Outputs: []OutputConfig{
				{Name: controls.LineBrakeLight, Line: 20},
			},
		},
		Throttle: ThrottleConfig{
			Device: "iio:device0",
			Period: hardware.DefaultThrottlePeriod,
			Calibration: hardware.Calibration{
				MainChannel:      0,
				SecondaryChannel: 1,
				Brake:            hardware.Range{Min: 200, Max: 1199},
				Coast:            hardware.Range{Min: 1200, Max: 1599},
				Accel:            hardware.Range{Min: 1600, Max: 3800},
				Main:             hardware.Line{FullBrake: 200, FullAccel: 3800},
				Secondary:        hardware.Line{FullBrake: 100, FullAccel: 1900},
				Tolerance:        100,
			},
		},
		Drive: DriveConfig{UpdatePeriod: controls.DefaultDrivePeriod},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis.port %d out of range", c.Redis.Port))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Queue.Capacity <= 0 {
		errs = append(errs, errors.New("queue.capacity must be positive"))
	}
	if c.Timers.Slots <= 0 {
		errs = append(errs, errors.New("timers.slots must be positive"))
	}
	if c.Arbiter.Capacity <= 0 {
		errs = append(errs, errors.New("arbiter.capacity must be positive"))
	}
	if _, err := arbiter.ParseDispatchMode(c.Arbiter.Mode); err != nil {
		errs = append(errs, fmt.Errorf("arbiter.mode: %w", err))
	}
	if c.Drive.UpdatePeriod <= 0 {
		errs = append(errs, errors.New("drive.update_period must be positive"))
	}
	if c.GPIO.Debounce < 0 {
		errs = append(errs, errors.New("gpio.debounce must not be negative"))
	}

	lines := make(map[int]string)
	claim := func(line int, name string) {
		if prev, ok := lines[line]; ok {
			errs = append(errs, fmt.Errorf("gpio line %d used by %s and %s", line, prev, name))
			return
		}
		lines[line] = name
	}
	for _, in := range c.GPIO.Inputs {
		claim(in.Line, in.Name)
		if _, err := in.events(); err != nil {
			errs = append(errs, fmt.Errorf("gpio input %s: %w", in.Name, err))
		}
	}
	for _, out := range c.GPIO.Outputs {
		claim(out.Line, out.Name)
	}

	if c.Throttle.Device != "" {
		if err := c.Throttle.Calibration.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("throttle: %w", err))
		}
	}

	return errors.Join(errs...)
}

func lookup(name string) (event.ID, error) {
	if name == "" {
		return 0, nil
	}
	id, ok := controls.LookupEvent(name)
	if !ok {
		return 0, fmt.Errorf("unknown event %q", name)
	}
	return id, nil
}

func (in InputConfig) events() (hardware.InputLine, error) {
	press, err := lookup(in.Press)
	if err != nil {
		return hardware.InputLine{}, err
	}
	release, err := lookup(in.Release)
	if err != nil {
		return hardware.InputLine{}, err
	}
	prio, err := event.ParsePriority(in.Priority)
	if err != nil {
		return hardware.InputLine{}, err
	}
	return hardware.InputLine{
		Name:      in.Name,
		Offset:    in.Line,
		ActiveLow: in.ActiveLow,
		Level:     in.Level,
		Press:     press,
		Release:   release,
		Data:      in.Data,
		Priority:  prio,
	}, nil
}

// LogLevel returns the parsed log level, defaulting to info.
func (c *Config) LogLevel() logger.LogLevel {
	lvl, _ := logger.ParseLevel(c.Log.Level)
	return lvl
}

func (c *Config) DispatchMode() arbiter.DispatchMode {
	m, _ := arbiter.ParseDispatchMode(c.Arbiter.Mode)
	return m
}

// Hardware resolves event names into a hardware configuration.
func (c *Config) Hardware() (hardware.Config, error) {
	hw := hardware.Config{
		Chip:           c.GPIO.Chip,
		Debounce:       c.GPIO.Debounce,
		ADCDevice:      c.Throttle.Device,
		Throttle:       c.Throttle.Calibration,
		ThrottlePeriod: c.Throttle.Period,
		ThrottleEvents: hardware.ThrottleEvents{
			Brake: controls.PedalBrake,
			Coast: controls.PedalCoast,
			Accel: controls.PedalAccel,
			Fault: controls.PedalFault,
		},
	}
	for _, in := range c.GPIO.Inputs {
		line, err := in.events()
		if err != nil {
			return hardware.Config{}, fmt.Errorf("gpio input %s: %w", in.Name, err)
		}
		hw.Inputs = append(hw.Inputs, line)
	}
	for _, out := range c.GPIO.Outputs {
		hw.Outputs = append(hw.Outputs, hardware.OutputLine{
			Name:    out.Name,
			Offset:  out.Line,
			Initial: out.Initial,
		})
	}
	return hw, nil
}
