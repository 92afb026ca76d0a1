// Package config loads run configurations and assembles the simulated
// platform: an Akita engine, an accelerator device, and the host driver.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/snnstage/emu"
	"github.com/sarchlab/snnstage/snn"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SNNSTAGE_"

// Device kinds.
const (
	DeviceEmu  = "emu"
	DeviceCore = "core"
)

// RunConfig is the configuration shared by the command-line tools.
type RunConfig struct {
	Exports string `yaml:"exports"`
	Windows string `yaml:"windows"`
	Output  string `yaml:"output"`

	Device    string `yaml:"device"`
	Backend   string `yaml:"backend"`
	Narrowing string `yaml:"narrowing"`

	// Integer threshold overrides. Zero keeps the exported value.
	ThresholdHidden int16 `yaml:"th_h"`
	ThresholdOutput int16 `yaml:"th_o"`

	Vectors  int    `yaml:"vectors"`
	MaxPolls int    `yaml:"max_polls"`
	Workers  int    `yaml:"workers"`
	LogLevel string `yaml:"log_level"`
	Monitor  bool   `yaml:"monitor"`
}

// Default returns the configuration used when no file is given.
func Default() RunConfig {
	return RunConfig{
		Exports:   "exports",
		Output:    "fpga/sim/vectors",
		Device:    DeviceEmu,
		Backend:   emu.BackendFixed.String(),
		Narrowing: snn.NarrowWrap.String(),
		Vectors:   20,
		MaxPolls:  100000,
		Workers:   4,
		LogLevel:  "warn",
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// ApplyEnv loads envFile, when it exists, into the process environment and
// then applies every SNNSTAGE_* variable.
func (c *RunConfig) ApplyEnv(envFile string) error {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("EXPORTS", &c.Exports)
	str("WINDOWS", &c.Windows)
	str("OUTPUT", &c.Output)
	str("DEVICE", &c.Device)
	str("BACKEND", &c.Backend)
	str("NARROWING", &c.Narrowing)
	str("LOG_LEVEL", &c.LogLevel)

	for key, dst := range map[string]*int{
		"VECTORS":   &c.Vectors,
		"MAX_POLLS": &c.MaxPolls,
		"WORKERS":   &c.Workers,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "MONITOR"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sMONITOR: %w", EnvPrefix, err)
		}
		c.Monitor = b
	}

	return c.Validate()
}

// Validate checks the enumerated fields.
func (c RunConfig) Validate() error {
	switch c.Device {
	case DeviceEmu, DeviceCore:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}

	if _, err := emu.ParseBackend(c.Backend); err != nil {
		return err
	}
	if _, err := snn.ParseNarrowPolicy(c.Narrowing); err != nil {
		return err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}

	return nil
}

// BackendKind returns the parsed backend.
func (c RunConfig) BackendKind() emu.Backend {
	b, _ := emu.ParseBackend(c.Backend)
	return b
}

// Apply overrides the engine parameters of m with the configured narrowing
// policy and thresholds.
func (c RunConfig) Apply(m snn.Model) (snn.Model, error) {
	policy, err := snn.ParseNarrowPolicy(c.Narrowing)
	if err != nil {
		return m, err
	}
	m.Params.Narrowing = policy

	if c.ThresholdHidden != 0 {
		m.Params.ThresholdHidden = c.ThresholdHidden
	}
	if c.ThresholdOutput != 0 {
		m.Params.ThresholdOutput = c.ThresholdOutput
	}

	return m, m.Validate()
}

// Level returns the configured log level.
func (c RunConfig) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel parses a slog level name. "trace" selects emu.LevelTrace.
func ParseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return emu.LevelTrace, nil
	}

	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("unknown log level %q", s)
	}

	return l, nil
}
