package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/snnstage/emu"
	"github.com/sarchlab/snnstage/snn"
)

// Builder can create new accelerators.
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	shape   snn.Shape
	backend emu.Backend
}

// NewBuilder returns a builder with the reference topology.
func NewBuilder() Builder {
	return Builder{
		freq:  1 * sim.GHz,
		shape: snn.DefaultParams().Shape,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the accelerator.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithShape sets the topology.
func (b Builder) WithShape(shape snn.Shape) Builder {
	b.shape = shape
	return b
}

// WithBackend selects the numeric engine used by LoadModel.
func (b Builder) WithBackend(backend emu.Backend) Builder {
	b.backend = backend
	return b
}

// Build creates an accelerator.
func (b Builder) Build(name string) *Accelerator {
	if b.engine == nil {
		panic("accelerator needs an engine")
	}

	a := &Accelerator{
		cyclesPerStep: b.shape.Hidden + b.shape.Outputs,
	}

	a.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, a)
	a.dev = emu.MakeBuilder().
		WithShape(b.shape).
		WithBackend(b.backend).
		WithExecutor(a).
		Build(name)

	return a
}
