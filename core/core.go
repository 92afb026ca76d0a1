// Package core models the SNN accelerator at cycle level. It answers the same
// register and stream protocol as the emulator, but START only latches the
// frame: the datapath then retires one timestep every Nh+No cycles and
// STATUS stays BUSY until the last one commits.
package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/snnstage/emu"
	"github.com/sarchlab/snnstage/mmio"
	"github.com/sarchlab/snnstage/snn"
)

// Accelerator is a ticking SNN accelerator.
type Accelerator struct {
	*sim.TickingComponent

	dev *emu.Emulator
	run *frameRun

	cyclesPerStep int
}

type frameRun struct {
	frame []uint32
	inf   snn.Inference

	next   int
	wait   int
	cycles int
}

// ReadReg returns the register at offset.
func (a *Accelerator) ReadReg(offset uint32) uint32 {
	return a.dev.ReadReg(offset)
}

// WriteReg writes a register. START latches a frame and schedules the
// datapath; RESET drops any frame in flight.
func (a *Accelerator) WriteReg(offset uint32, value uint32) {
	a.dev.WriteReg(offset, value)
}

// StreamSend queues spike-mask words.
func (a *Accelerator) StreamSend(words ...uint32) {
	a.dev.StreamSend(words...)
}

// LoadModel installs a quantized model.
func (a *Accelerator) LoadModel(m snn.Model) error {
	return a.dev.LoadModel(m)
}

// LoadEngine installs an engine directly.
func (a *Accelerator) LoadEngine(eng snn.Engine) error {
	return a.dev.LoadEngine(eng)
}

// State returns the protocol state.
func (a *Accelerator) State() mmio.State {
	return a.dev.State()
}

// Pending returns the number of queued stream words.
func (a *Accelerator) Pending() int {
	return a.dev.Pending()
}

// Registers exposes the register file for inspection.
func (a *Accelerator) Registers() *emu.RegisterFile {
	return a.dev.Registers()
}

// Execute latches a frame. It is called by the register front end after
// START has dequeued the frame and set BUSY.
func (a *Accelerator) Execute(e *emu.Emulator, frame []uint32) {
	if len(frame) == 0 {
		e.Commit(e.Engine().Begin().Result(), 0, 0)
		return
	}

	a.run = &frameRun{
		frame: frame,
		inf:   e.Engine().Begin(),
		wait:  a.cyclesPerStep,
	}

	emu.Trace("Accelerator",
		"Behavior", "Latch",
		"Time", float64(a.Engine.CurrentTime()*1e9),
		"Name", a.Name(),
		"Steps", len(frame))

	a.TickLater()
}

// Abort drops the frame in flight.
func (a *Accelerator) Abort() {
	if a.run == nil {
		return
	}

	emu.Trace("Accelerator",
		"Behavior", "Abort",
		"Time", float64(a.Engine.CurrentTime()*1e9),
		"Name", a.Name(),
		"Retired", a.run.next)

	a.run = nil
}

// Tick advances the datapath by one cycle.
func (a *Accelerator) Tick() (madeProgress bool) {
	r := a.run
	if r == nil {
		return false
	}

	r.cycles++
	r.wait--
	if r.wait > 0 {
		return true
	}

	r.inf.Step(snn.Mask(r.frame[r.next]))
	r.next++
	r.wait = a.cyclesPerStep

	if r.next == len(r.frame) {
		a.retire(r)
	}

	return true
}

func (a *Accelerator) retire(r *frameRun) {
	a.run = nil
	a.dev.Commit(r.inf.Result(), uint32(r.cycles), a.dev.PopCountOf(r.frame))

	emu.Trace("Accelerator",
		"Behavior", "Retire",
		"Time", float64(a.Engine.CurrentTime()*1e9),
		"Name", a.Name(),
		"Cycles", r.cycles)
}
