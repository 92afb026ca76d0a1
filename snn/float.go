package snn

// FloatEngine runs the LIF network in float32. It is the oracle that
// measures how far quantization and fixed-point leak arithmetic move the
// classification; it is not a deployment target.
type FloatEngine struct {
	w1, w2 FloatMatrix
	p      FloatParams

	alphaHidden float32
	alphaOutput float32
}

// NewFloatEngine validates the parameters and weight shapes.
func NewFloatEngine(w1, w2 FloatMatrix, p FloatParams) (*FloatEngine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := CheckShapes(w1.Rows(), w1.Cols(), w2.Rows(), w2.Cols(),
		p.Shape); err != nil {
		return nil, err
	}

	return &FloatEngine{
		w1:          w1,
		w2:          w2,
		p:           p,
		alphaHidden: ShiftToAlpha(p.LeakShiftHidden),
		alphaOutput: ShiftToAlpha(p.LeakShiftOutput),
	}, nil
}

// Shape returns the engine topology.
func (e *FloatEngine) Shape() Shape { return e.p.Shape }

// Params returns the engine parameters.
func (e *FloatEngine) Params() FloatParams { return e.p }

// Infer runs the first WindowLen timesteps of w.
func (e *FloatEngine) Infer(w Window) Result {
	inf := e.begin()

	w = w.Truncate(e.p.WindowLen)
	for t := 0; t < w.Len(); t++ {
		inf.Step(w.At(t))
	}

	return inf.Result()
}

// Begin starts a step-wise inference.
func (e *FloatEngine) Begin() Inference {
	return e.begin()
}

func (e *FloatEngine) begin() *floatInference {
	return &floatInference{
		e:       e,
		vh:      make([]float32, e.p.Hidden),
		vo:      make([]float32, e.p.Outputs),
		ih:      make([]float32, e.p.Hidden),
		io:      make([]float32, e.p.Outputs),
		hSpikes: make([]bool, e.p.Hidden),
		counts:  make([]uint32, e.p.Outputs),
	}
}

type floatInference struct {
	e *FloatEngine

	vh, vo  []float32
	ih, io  []float32
	hSpikes []bool
	counts  []uint32
	steps   int
}

func (f *floatInference) Step(m Mask) {
	p := f.e.p
	m = m.Significant(p.Inputs)

	for i := range f.ih {
		f.ih[i] = 0
	}
	for ch := 0; ch < p.Inputs; ch++ {
		if !m.Active(ch) {
			continue
		}
		for j, w := range f.e.w1.row(ch) {
			f.ih[j] += w
		}
	}

	for n := range f.vh {
		v := f.e.alphaHidden*f.vh[n] + f.ih[n]
		if v >= p.ThresholdHidden {
			f.hSpikes[n] = true
			f.vh[n] = 0
		} else {
			f.hSpikes[n] = false
			f.vh[n] = v
		}
	}

	for i := range f.io {
		f.io[i] = 0
	}
	for hn, spiked := range f.hSpikes {
		if !spiked {
			continue
		}
		for j, w := range f.e.w2.row(hn) {
			f.io[j] += w
		}
	}

	for n := range f.vo {
		v := f.e.alphaOutput*f.vo[n] + f.io[n]
		if v >= p.ThresholdOutput {
			f.counts[n]++
			f.vo[n] = 0
		} else {
			f.vo[n] = v
		}
	}

	f.steps++
}

func (f *floatInference) Steps() int { return f.steps }

func (f *floatInference) Result() Result {
	counts := append([]uint32(nil), f.counts...)
	return Result{Class: Argmax(counts), Counts: counts}
}
