package api

import "github.com/sarchlab/akita/v4/sim"

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	engine   sim.Engine
	freq     sim.Freq
	maxPolls int
}

// WithEngine sets the engine.
func (b DriverBuilder) WithEngine(engine sim.Engine) DriverBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the driver.
func (b DriverBuilder) WithFreq(freq sim.Freq) DriverBuilder {
	b.freq = freq
	return b
}

// WithMaxPolls sets the STATUS poll budget of each inference.
func (b DriverBuilder) WithMaxPolls(n int) DriverBuilder {
	b.maxPolls = n
	return b
}

// Build create a driver.
func (b DriverBuilder) Build(name string) Driver {
	d := &driverImpl{
		maxPolls: b.maxPolls,
	}
	if d.maxPolls <= 0 {
		d.maxPolls = DefaultMaxPolls
	}

	d.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, d)

	return d
}
