package config

import (
	"fmt"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/snnstage/api"
	"github.com/sarchlab/snnstage/core"
	"github.com/sarchlab/snnstage/emu"
	"github.com/sarchlab/snnstage/mmio"
	"github.com/sarchlab/snnstage/snn"
)

// Device is an accelerator model that can be loaded with a network.
type Device interface {
	mmio.Device
	LoadModel(m snn.Model) error
	State() mmio.State
	Registers() *emu.RegisterFile
}

// Platform is a driver connected to a loaded device.
type Platform struct {
	Engine  sim.Engine
	Device  Device
	Driver  api.Driver
	Monitor *monitoring.Monitor
}

// PlatformBuilder can build platforms.
type PlatformBuilder struct {
	freq    sim.Freq
	cfg     RunConfig
	monitor *monitoring.Monitor
}

// MakePlatformBuilder returns a builder with the default configuration.
func MakePlatformBuilder() PlatformBuilder {
	return PlatformBuilder{
		freq: 1 * sim.GHz,
		cfg:  Default(),
	}
}

// WithFreq sets the frequency of the driver and the device.
func (b PlatformBuilder) WithFreq(freq sim.Freq) PlatformBuilder {
	b.freq = freq
	return b
}

// WithConfig sets the run configuration.
func (b PlatformBuilder) WithConfig(cfg RunConfig) PlatformBuilder {
	b.cfg = cfg
	return b
}

// WithMonitor registers the engine and components with a monitor.
func (b PlatformBuilder) WithMonitor(monitor *monitoring.Monitor) PlatformBuilder {
	b.monitor = monitor
	return b
}

// Build creates the platform and loads m into the device.
func (b PlatformBuilder) Build(name string, m snn.Model) (*Platform, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if m.Params.Outputs > mmio.NumCountRegs {
		return nil, fmt.Errorf("build %s: %d outputs, device exposes %d counters",
			name, m.Params.Outputs, mmio.NumCountRegs)
	}

	engine := sim.NewSerialEngine()
	if b.monitor != nil {
		b.monitor.RegisterEngine(engine)
	}

	driver := api.DriverBuilder{}.
		WithEngine(engine).
		WithFreq(b.freq).
		WithMaxPolls(b.cfg.MaxPolls).
		Build(name + ".Driver")

	var dev Device
	switch b.cfg.Device {
	case DeviceCore:
		acc := core.NewBuilder().
			WithEngine(engine).
			WithFreq(b.freq).
			WithShape(m.Params.Shape).
			WithBackend(b.cfg.BackendKind()).
			Build(name + ".Accelerator")
		if b.monitor != nil {
			b.monitor.RegisterComponent(acc)
		}
		dev = acc
	default:
		dev = emu.MakeBuilder().
			WithShape(m.Params.Shape).
			WithBackend(b.cfg.BackendKind()).
			Build(name + ".Emulator")
	}

	if err := dev.LoadModel(m); err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}

	driver.RegisterDevice(dev)
	if b.monitor != nil {
		b.monitor.RegisterComponent(driver)
	}

	return &Platform{
		Engine:  engine,
		Device:  dev,
		Driver:  driver,
		Monitor: b.monitor,
	}, nil
}
