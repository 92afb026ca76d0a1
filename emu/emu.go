// Package emu emulates the register and stream interface of the SNN
// accelerator. START runs inference synchronously: when WriteReg returns,
// STATUS already reads DONE or ERR.
package emu

import (
	"fmt"

	"github.com/sarchlab/snnstage/mmio"
	"github.com/sarchlab/snnstage/snn"
)

// Backend selects the numeric engine that serves START.
type Backend int

const (
	// BackendFixed runs the bit-exact integer engine.
	BackendFixed Backend = iota
	// BackendFloat runs the float engine over dequantized weights.
	BackendFloat
)

// String returns the backend name used in configuration files.
func (b Backend) String() string {
	switch b {
	case BackendFixed:
		return "fixed"
	case BackendFloat:
		return "float"
	default:
		panic("invalid backend")
	}
}

// ParseBackend parses "fixed" or "float". The empty string is fixed.
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "", "fixed":
		return BackendFixed, nil
	case "float":
		return BackendFloat, nil
	default:
		return BackendFixed, fmt.Errorf("unknown backend %q", s)
	}
}

// Executor runs a validated frame. The emulator has already dequeued the
// frame and set BUSY when Execute is called; the executor must eventually
// call Emulator.Commit unless it is aborted by a reset first.
type Executor interface {
	Execute(e *Emulator, frame []uint32)
	Abort()
}

// syncExecutor finishes the frame before returning.
type syncExecutor struct{}

func (syncExecutor) Execute(e *Emulator, frame []uint32) {
	inf := e.engine.Begin()
	for _, w := range frame {
		inf.Step(snn.Mask(w))
	}

	e.Commit(inf.Result(), e.LatencyOf(len(frame)), e.PopCountOf(frame))
}

func (syncExecutor) Abort() {}

// Emulator models one accelerator instance. It is not safe for concurrent
// use; the hardware it models has a single host.
type Emulator struct {
	name    string
	shape   snn.Shape
	backend Backend

	regs   RegisterFile
	fifo   StreamFIFO
	engine snn.Engine
	exec   Executor
}

// Builder creates emulators.
type Builder struct {
	shape    snn.Shape
	backend  Backend
	executor Executor
}

// MakeBuilder returns a builder with the reference topology.
func MakeBuilder() Builder {
	return Builder{
		shape:   snn.DefaultParams().Shape,
		backend: BackendFixed,
	}
}

// WithShape sets the topology reported by N_IN/N_HIDDEN/N_OUT and the reset
// value of WINDOW_LEN.
func (b Builder) WithShape(shape snn.Shape) Builder {
	b.shape = shape
	return b
}

// WithBackend selects the engine built by LoadModel.
func (b Builder) WithBackend(backend Backend) Builder {
	b.backend = backend
	return b
}

// WithExecutor replaces the synchronous executor.
func (b Builder) WithExecutor(exec Executor) Builder {
	b.executor = exec
	return b
}

// Build creates an emulator with no model loaded.
func (b Builder) Build(name string) *Emulator {
	if b.shape.Outputs > mmio.NumCountRegs {
		panic(fmt.Sprintf("emulator supports at most %d outputs, got %d",
			mmio.NumCountRegs, b.shape.Outputs))
	}

	e := &Emulator{
		name:    name,
		shape:   b.shape,
		backend: b.backend,
		exec:    b.executor,
	}
	if e.exec == nil {
		e.exec = syncExecutor{}
	}

	e.regs.Set(mmio.WindowLen, uint32(b.shape.WindowLen))
	e.regs.Set(mmio.NIn, uint32(b.shape.Inputs))
	e.regs.Set(mmio.NHidden, uint32(b.shape.Hidden))
	e.regs.Set(mmio.NOut, uint32(b.shape.Outputs))

	return e
}

// Name returns the emulator name.
func (e *Emulator) Name() string { return e.name }

// SetExecutor replaces the executor. Used by components that wrap the
// emulator and need a reference to it first.
func (e *Emulator) SetExecutor(exec Executor) {
	e.exec = exec
}

// LoadModel builds the configured backend's engine from a quantized model.
func (e *Emulator) LoadModel(m snn.Model) error {
	var (
		eng snn.Engine
		err error
	)

	switch e.backend {
	case BackendFixed:
		eng, err = m.FixedEngine()
	case BackendFloat:
		eng, err = m.DequantizedEngine()
	}
	if err != nil {
		return fmt.Errorf("load model into %s: %w", e.name, err)
	}

	return e.LoadEngine(eng)
}

// LoadEngine installs an engine directly. Its topology must match the
// emulator's.
func (e *Emulator) LoadEngine(eng snn.Engine) error {
	s := eng.Shape()
	if s.Inputs != e.shape.Inputs ||
		s.Hidden != e.shape.Hidden ||
		s.Outputs != e.shape.Outputs {
		return fmt.Errorf("%w: engine is %d-%d-%d, %s is %d-%d-%d",
			snn.ErrShapeMismatch,
			s.Inputs, s.Hidden, s.Outputs,
			e.name,
			e.shape.Inputs, e.shape.Hidden, e.shape.Outputs)
	}

	e.engine = eng
	Trace("Emulator", "Behavior", "LoadEngine", "Name", e.name)

	return nil
}

// Loaded reports whether an engine is installed.
func (e *Emulator) Loaded() bool { return e.engine != nil }

// Engine returns the installed engine, or nil.
func (e *Emulator) Engine() snn.Engine { return e.engine }

// ReadReg returns the register at offset. Unmapped offsets read as zero.
func (e *Emulator) ReadReg(offset uint32) uint32 {
	r, ok := mmio.RegAt(offset)
	if !ok {
		return 0
	}
	return e.regs.Get(r)
}

// WriteReg writes a register. Only CONTROL and WINDOW_LEN are writable by
// the host; writes elsewhere are dropped.
func (e *Emulator) WriteReg(offset uint32, value uint32) {
	r, ok := mmio.RegAt(offset)
	if !ok {
		Trace("Emulator", "Behavior", "UnmappedWrite",
			"Name", e.name, "Offset", offset)
		return
	}

	switch r {
	case mmio.Control:
		if value&mmio.CtrlReset != 0 {
			e.Reset()
		}
		if value&mmio.CtrlStart != 0 {
			e.start()
		}
		e.regs.Set(mmio.Control, value)
	case mmio.WindowLen:
		e.regs.Set(mmio.WindowLen, value)
	default:
		Trace("Emulator", "Behavior", "ReadOnlyWrite",
			"Name", e.name, "Reg", r.Name(), "Value", value)
	}
}

// StreamSend queues spike-mask words.
func (e *Emulator) StreamSend(words ...uint32) {
	e.fifo.Push(words...)

	rx := uint64(e.regs.Get(mmio.WordsRx)) + uint64(len(words))
	if rx > 0xFFFFFFFF {
		rx = 0xFFFFFFFF
	}
	e.regs.Set(mmio.WordsRx, uint32(rx))
}

// Reset clears the stream FIFO, STATUS and all result registers.
func (e *Emulator) Reset() {
	e.exec.Abort()
	e.fifo.Clear()
	e.regs.ClearResults()

	Trace("Emulator", "Behavior", "Reset", "Name", e.name)
}

// State returns the protocol state.
func (e *Emulator) State() mmio.State {
	return mmio.StateOf(e.regs.Get(mmio.Status))
}

// Pending returns the number of queued stream words.
func (e *Emulator) Pending() int {
	return e.fifo.Len()
}

// Registers exposes the register file for inspection.
func (e *Emulator) Registers() *RegisterFile {
	return &e.regs
}

func (e *Emulator) start() {
	if e.State() == mmio.Busy {
		Trace("Emulator", "Behavior", "StartWhileBusy", "Name", e.name)
		return
	}

	if e.engine == nil {
		e.fail("NoModel")
		return
	}

	n := int(e.regs.Get(mmio.WindowLen))
	if e.fifo.Len() < n {
		e.fail("ShortStream", "Queued", e.fifo.Len(), "WindowLen", n)
		return
	}

	frame := e.fifo.Pop(n)
	e.regs.Set(mmio.Status, mmio.StsBusy)

	Trace("Emulator", "Behavior", "Start",
		"Name", e.name, "WindowLen", n, "Remaining", e.fifo.Len())

	e.exec.Execute(e, frame)
}

// fail sets ERR and leaves every result register as it was.
func (e *Emulator) fail(reason string, args ...any) {
	e.regs.Set(mmio.Status, mmio.StsErr)

	kv := append([]any{"Behavior", "Error", "Reason", reason, "Name", e.name},
		args...)
	Trace("Emulator", kv...)
}

// Commit writes a finished inference into the result registers and sets
// DONE.
func (e *Emulator) Commit(res snn.Result, latency, pop uint32) {
	e.regs.Commit(res, latency, pop)

	Trace("Emulator", "Behavior", "Done",
		"Name", e.name,
		"Class", res.Class,
		"Counts", res.Counts,
		"Overflows", res.Overflows)
}

// LatencyOf returns the synthetic latency of a frame of the given length.
func (e *Emulator) LatencyOf(steps int) uint32 {
	s := e.shape
	s.WindowLen = steps
	return uint32(s.LatencyCycles())
}

// PopCountOf returns the number of significant spike bits in a frame.
func (e *Emulator) PopCountOf(frame []uint32) uint32 {
	var pop int
	for _, w := range frame {
		pop += snn.Mask(w).PopCount(e.shape.Inputs)
	}
	return uint32(pop)
}

// Shape returns the topology the emulator reports.
func (e *Emulator) Shape() snn.Shape { return e.shape }
