// Package api defines the host driver of the SNN accelerator.
package api

import (
	"errors"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/snnstage/mmio"
)

// DefaultMaxPolls is the STATUS poll budget of one inference.
const DefaultMaxPolls = 100000

// ErrDeviceFault is reported when the device answers START with ERR. The
// device keeps working after a RESET.
var ErrDeviceFault = errors.New("device reported ERR")

// Driver provides the interface to control an accelerator.
type Driver interface {
	sim.Component

	// RegisterDevice sets the device that the driver controls.
	RegisterDevice(device mmio.Device)

	// Reset queues a RESET of the device.
	Reset()

	// SetWindowLen queues a write of WINDOW_LEN.
	SetWindowLen(n uint32)

	// Infer queues one inference. The driver waits for the device to leave
	// BUSY, streams the masks, writes START and polls STATUS; the outcome is
	// stored in out once the task finishes. A device that stays BUSY for the
	// whole poll budget is reset before the masks are streamed.
	Infer(masks []uint32, out *Result)

	// Run runs all the tasks that have been added to the driver.
	Run()
}

// Result is what the host reads back after an inference.
type Result struct {
	Class    int
	Counts   []uint32
	ConfQ15  uint32
	Latency  uint32
	WordsRx  uint32
	TotalPop uint32

	// Polls is the number of STATUS reads after START.
	Polls int

	// Waits is the number of STATUS reads spent waiting for an earlier frame
	// to leave BUSY before streaming.
	Waits int

	// Preempted is set when the device stayed BUSY for the whole poll budget
	// and was reset before this inference was streamed.
	Preempted bool

	// Unconfirmed is set when the poll budget ran out before DONE. The
	// registers were read anyway.
	Unconfirmed bool

	Err error
}

// Confidence decodes CONF_Q15.
func (r Result) Confidence() float64 {
	return float64(r.ConfQ15) / (1 << 15)
}

type task interface {
	run(d *driverImpl) bool
	isFinished() bool
}

type driverImpl struct {
	*sim.TickingComponent

	device   mmio.Device
	maxPolls int

	tasks []task
}

// Tick runs the driver for one cycle. Tasks run strictly in order because
// the device has a single stream and register file.
func (d *driverImpl) Tick() (madeProgress bool) {
	if len(d.tasks) == 0 {
		return false
	}

	madeProgress = d.tasks[0].run(d)

	if d.tasks[0].isFinished() {
		d.tasks = d.tasks[1:]
		madeProgress = true
	}

	return madeProgress
}

// RegisterDevice sets the device that the driver controls.
func (d *driverImpl) RegisterDevice(device mmio.Device) {
	d.device = device
}

func (d *driverImpl) Reset() {
	d.tasks = append(d.tasks, &regWriteTask{
		offset: mmio.OffControl,
		value:  mmio.CtrlReset,
	})
}

func (d *driverImpl) SetWindowLen(n uint32) {
	d.tasks = append(d.tasks, &regWriteTask{
		offset: mmio.OffWindowLen,
		value:  n,
	})
}

func (d *driverImpl) Infer(masks []uint32, out *Result) {
	d.tasks = append(d.tasks, &inferTask{
		words: masks,
		out:   out,
	})
}

// Run runs all the tasks in the driver.
func (d *driverImpl) Run() {
	if d.device == nil {
		panic("no device registered")
	}

	d.TickNow()
	d.Engine.Run()
}

type regWriteTask struct {
	offset, value uint32
	done          bool
}

func (t *regWriteTask) run(d *driverImpl) bool {
	d.device.WriteReg(t.offset, t.value)
	t.done = true

	return true
}

func (t *regWriteTask) isFinished() bool { return t.done }

type inferStage int

const (
	stageWait inferStage = iota
	stageStream
	stageStart
	stagePoll
	stageCollect
	stageDone
)

type inferTask struct {
	words []uint32
	out   *Result
	stage inferStage
}

func (t *inferTask) isFinished() bool { return t.stage == stageDone }

func (t *inferTask) run(d *driverImpl) bool {
	switch t.stage {
	case stageWait:
		t.wait(d)
	case stageStream:
		d.device.StreamSend(t.words...)
		t.stage = stageStart
	case stageStart:
		waits, preempted := t.out.Waits, t.out.Preempted
		*t.out = Result{Waits: waits, Preempted: preempted}
		d.device.WriteReg(mmio.OffControl, mmio.CtrlStart)
		t.stage = stagePoll
	case stagePoll:
		t.poll(d)
	case stageCollect:
		t.collect(d)
		t.stage = stageDone
	}

	return true
}

// wait holds the stream back while an earlier frame is still in flight. A
// START written while BUSY is dropped by the device, and the next DONE would
// belong to the earlier frame.
func (t *inferTask) wait(d *driverImpl) {
	status := d.device.ReadReg(mmio.OffStatus)
	if mmio.StateOf(status) != mmio.Busy {
		t.stage = stageStream
		return
	}

	t.out.Waits++
	if t.out.Waits < d.maxPolls {
		return
	}

	slog.Warn("device still busy, resetting before the next window",
		"Driver", d.Name(), "Waits", t.out.Waits)

	d.device.WriteReg(mmio.OffControl, mmio.CtrlReset)
	t.out.Preempted = true
	t.stage = stageStream
}

func (t *inferTask) poll(d *driverImpl) {
	status := d.device.ReadReg(mmio.OffStatus)
	t.out.Polls++

	switch mmio.StateOf(status) {
	case mmio.Done:
		t.stage = stageCollect
	case mmio.Err:
		t.out.Err = ErrDeviceFault
		t.stage = stageDone

		slog.Warn("device reported ERR",
			"Driver", d.Name(), "Polls", t.out.Polls)
	default:
		if t.out.Polls >= d.maxPolls {
			t.out.Unconfirmed = true
			t.stage = stageCollect

			slog.Warn("device did not assert DONE",
				"Driver", d.Name(), "Polls", t.out.Polls, "Status", status)
		}
	}
}

func (t *inferTask) collect(d *driverImpl) {
	n := int(d.device.ReadReg(mmio.OffNOut))
	if n > mmio.NumCountRegs {
		n = mmio.NumCountRegs
	}

	t.out.Class = int(d.device.ReadReg(mmio.OffResultClass))
	t.out.Counts = make([]uint32, n)
	for i := range t.out.Counts {
		t.out.Counts[i] = d.device.ReadReg(mmio.CountReg(i).Offset())
	}
	t.out.ConfQ15 = d.device.ReadReg(mmio.OffConfQ15)
	t.out.Latency = d.device.ReadReg(mmio.OffLatencyCycles)
	t.out.WordsRx = d.device.ReadReg(mmio.OffWordsRx)
	t.out.TotalPop = d.device.ReadReg(mmio.OffTotalPop)
}

// SpikesToMasks packs a [T][C] spike raster into stream words.
func SpikesToMasks(spikes [][]bool) []uint32 {
	words := make([]uint32, len(spikes))
	for t, row := range spikes {
		for ch, s := range row {
			if s && ch < 32 {
				words[t] |= 1 << uint(ch)
			}
		}
	}
	return words
}
