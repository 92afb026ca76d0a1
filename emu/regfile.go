package emu

import (
	"math"

	"github.com/sarchlab/snnstage/mmio"
	"github.com/sarchlab/snnstage/snn"
)

// RegisterFile holds every accelerator register, indexed by mmio.Reg.
type RegisterFile struct {
	regs [mmio.NumRegs]uint32
}

// Get returns the value of r.
func (f *RegisterFile) Get(r mmio.Reg) uint32 {
	return f.regs[r]
}

// Set stores v into r.
func (f *RegisterFile) Set(r mmio.Reg, v uint32) {
	f.regs[r] = v
}

// ClearResults zeroes STATUS and every register produced by an inference.
// CONTROL, WINDOW_LEN and the topology registers keep their values.
func (f *RegisterFile) ClearResults() {
	for _, r := range []mmio.Reg{
		mmio.Status,
		mmio.ResultClass,
		mmio.Count0, mmio.Count1, mmio.Count2,
		mmio.ConfQ15,
		mmio.LatencyCycles,
		mmio.WordsRx,
		mmio.TotalPop,
	} {
		f.regs[r] = 0
	}
}

// Commit writes an inference result and sets DONE.
func (f *RegisterFile) Commit(res snn.Result, latency, pop uint32) {
	f.regs[mmio.ResultClass] = uint32(res.Class)
	for i := 0; i < mmio.NumCountRegs; i++ {
		var c uint32
		if i < len(res.Counts) {
			c = res.Counts[i]
		}
		f.regs[mmio.CountReg(i)] = c
	}
	f.regs[mmio.ConfQ15] = ConfQ15(res.Confidence())
	f.regs[mmio.LatencyCycles] = latency
	f.regs[mmio.TotalPop] = pop
	f.regs[mmio.Status] = mmio.StsDone
}

// ConfQ15 encodes a confidence in [0, 1] as unsigned Q1.15, clamped to
// [0, 32767].
func ConfQ15(conf float64) uint32 {
	q := math.Round(conf * (1 << 15))
	if q < 0 {
		return 0
	}
	if q > (1<<15)-1 {
		return (1 << 15) - 1
	}
	return uint32(q)
}

// StreamFIFO queues spike-mask words until START consumes them.
type StreamFIFO struct {
	words []uint32
}

// Push appends words.
func (q *StreamFIFO) Push(words ...uint32) {
	q.words = append(q.words, words...)
}

// Len returns the number of queued words.
func (q *StreamFIFO) Len() int {
	return len(q.words)
}

// Pop removes and returns the first n words. It panics if fewer are queued.
func (q *StreamFIFO) Pop(n int) []uint32 {
	if n > len(q.words) {
		panic("stream FIFO underflow")
	}

	frame := make([]uint32, n)
	copy(frame, q.words[:n])
	q.words = append(q.words[:0], q.words[n:]...)

	return frame
}

// Peek returns a copy of the queued words.
func (q *StreamFIFO) Peek() []uint32 {
	return append([]uint32(nil), q.words...)
}

// Clear drops every queued word.
func (q *StreamFIFO) Clear() {
	q.words = q.words[:0]
}
