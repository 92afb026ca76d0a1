package snn

// FixedPointEngine is the integer LIF forward pass that the RTL implements.
// Weights are int8, membrane potentials int16, and all arithmetic goes
// through 32-bit intermediates before being narrowed under the configured
// NarrowPolicy.
//
// The engine holds no mutable state; every inference owns its potentials,
// so one engine may serve many inferences.
type FixedPointEngine struct {
	w1, w2 Int8Matrix
	p      Params
}

// NewFixedPointEngine validates the parameters and weight shapes.
func NewFixedPointEngine(w1, w2 Int8Matrix, p Params) (*FixedPointEngine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := CheckShapes(w1.Rows(), w1.Cols(), w2.Rows(), w2.Cols(),
		p.Shape); err != nil {
		return nil, err
	}

	return &FixedPointEngine{w1: w1, w2: w2, p: p}, nil
}

// Shape returns the engine topology.
func (e *FixedPointEngine) Shape() Shape { return e.p.Shape }

// Params returns the engine parameters.
func (e *FixedPointEngine) Params() Params { return e.p }

// Infer runs the first WindowLen timesteps of w.
func (e *FixedPointEngine) Infer(w Window) Result {
	inf := e.begin()

	w = w.Truncate(e.p.WindowLen)
	for t := 0; t < w.Len(); t++ {
		inf.step(w.At(t))
	}

	return inf.Result()
}

// Trace runs the window like Infer and records every timestep.
func (e *FixedPointEngine) Trace(w Window) (Result, []StepTrace) {
	inf := e.begin()

	w = w.Truncate(e.p.WindowLen)
	traces := make([]StepTrace, 0, w.Len())
	for t := 0; t < w.Len(); t++ {
		traces = append(traces, inf.StepTrace(w.At(t)))
	}

	return inf.Result(), traces
}

// Begin starts a step-wise inference. The caller decides how many steps to
// run; Infer stops at WindowLen.
func (e *FixedPointEngine) Begin() Inference {
	return e.begin()
}

func (e *FixedPointEngine) begin() *FixedInference {
	return &FixedInference{
		e: e,
		hidden: fixedLayer{
			v:         make([]int16, e.p.Hidden),
			leakShift: uint(e.p.LeakShiftHidden),
			threshold: e.p.ThresholdHidden,
		},
		output: fixedLayer{
			v:         make([]int16, e.p.Outputs),
			leakShift: uint(e.p.LeakShiftOutput),
			threshold: e.p.ThresholdOutput,
		},
		ih:      make([]int16, e.p.Hidden),
		io:      make([]int16, e.p.Outputs),
		hSpikes: make([]bool, e.p.Hidden),
		oSpikes: make([]bool, e.p.Outputs),
		counts:  make([]uint32, e.p.Outputs),
	}
}

// StepTrace records one timestep of a fixed-point inference.
type StepTrace struct {
	T            int
	Mask         Mask
	HiddenSpikes []bool
	OutputSpikes []bool
	Hidden       []int16
	Output       []int16
}

// HiddenBits packs the first 64 hidden spikes into a bitmap.
func (s StepTrace) HiddenBits() uint64 {
	var b uint64
	for i, sp := range s.HiddenSpikes {
		if i >= 64 {
			break
		}
		if sp {
			b |= 1 << uint(i)
		}
	}
	return b
}

// HiddenPopCount returns the number of hidden neurons that fired.
func (s StepTrace) HiddenPopCount() int {
	n := 0
	for _, sp := range s.HiddenSpikes {
		if sp {
			n++
		}
	}
	return n
}

type fixedLayer struct {
	v         []int16
	leakShift uint
	threshold int16
}

// asr16 is the sign-preserving right shift of a 16-bit state, done on a
// 32-bit value so the shift never sees a narrow operand.
func asr16(v int16, shift uint) int16 {
	return int16(int32(v) >> shift)
}

// update leaks, integrates and fires every neuron of the layer.
func (l *fixedLayer) update(
	input []int16,
	spikes []bool,
	policy NarrowPolicy,
	overflows *int,
) {
	for n, v := range l.v {
		leaked := policy.narrow(int32(v)-int32(asr16(v, l.leakShift)), overflows)
		vNew := policy.narrow(int32(leaked)+int32(input[n]), overflows)

		if vNew >= l.threshold {
			spikes[n] = true
			l.v[n] = 0
		} else {
			spikes[n] = false
			l.v[n] = vNew
		}
	}
}

// accumulate adds a weight row into dst, narrowing after every add.
func accumulate(dst []int16, row []int8, policy NarrowPolicy, overflows *int) {
	for j, w := range row {
		dst[j] = policy.narrow(int32(dst[j])+int32(w), overflows)
	}
}

// FixedInference is one window in progress on a FixedPointEngine.
type FixedInference struct {
	e *FixedPointEngine

	hidden, output fixedLayer
	ih, io         []int16
	hSpikes        []bool
	oSpikes        []bool
	counts         []uint32

	steps     int
	overflows int
}

// Step advances the inference by one timestep.
func (f *FixedInference) Step(m Mask) {
	f.step(m)
}

// StepTrace advances by one timestep and returns a snapshot of it.
func (f *FixedInference) StepTrace(m Mask) StepTrace {
	t := f.steps
	m = m.Significant(f.e.p.Inputs)
	f.step(m)

	return StepTrace{
		T:            t,
		Mask:         m,
		HiddenSpikes: append([]bool(nil), f.hSpikes...),
		OutputSpikes: append([]bool(nil), f.oSpikes...),
		Hidden:       append([]int16(nil), f.hidden.v...),
		Output:       append([]int16(nil), f.output.v...),
	}
}

func (f *FixedInference) step(m Mask) {
	p := f.e.p
	m = m.Significant(p.Inputs)

	for i := range f.ih {
		f.ih[i] = 0
	}
	for ch := 0; ch < p.Inputs; ch++ {
		if m.Active(ch) {
			accumulate(f.ih, f.e.w1.row(ch), p.Narrowing, &f.overflows)
		}
	}
	f.hidden.update(f.ih, f.hSpikes, p.Narrowing, &f.overflows)

	for i := range f.io {
		f.io[i] = 0
	}
	for hn, spiked := range f.hSpikes {
		if spiked {
			accumulate(f.io, f.e.w2.row(hn), p.Narrowing, &f.overflows)
		}
	}
	f.output.update(f.io, f.oSpikes, p.Narrowing, &f.overflows)

	for on, spiked := range f.oSpikes {
		if spiked {
			f.counts[on]++
		}
	}

	f.steps++
}

// Steps returns the number of timesteps processed so far.
func (f *FixedInference) Steps() int { return f.steps }

// Result returns the classification for the timesteps processed so far.
func (f *FixedInference) Result() Result {
	counts := append([]uint32(nil), f.counts...)
	return Result{
		Class:     Argmax(counts),
		Counts:    counts,
		Overflows: f.overflows,
	}
}
