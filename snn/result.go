package snn

// Result is the outcome of one window.
type Result struct {
	Class  int
	Counts []uint32

	// Overflows counts the 16-bit narrowings whose 32-bit value did not fit.
	// It is always zero for the floating-point engine.
	Overflows int
}

// Total returns the sum of all class counts.
func (r Result) Total() uint64 {
	var s uint64
	for _, c := range r.Counts {
		s += uint64(c)
	}
	return s
}

// Confidence returns counts[class] / sum(counts), or 0 when nothing fired.
func (r Result) Confidence() float64 {
	total := r.Total()
	if total == 0 || r.Class >= len(r.Counts) {
		return 0
	}
	return float64(r.Counts[r.Class]) / float64(total)
}

// ConfidenceQ8 returns the confidence as (counts[class] << 8) / sum, the
// Q0.8 value computed by the integer datapath.
func (r Result) ConfidenceQ8() uint32 {
	total := r.Total()
	if total == 0 {
		total = 1
	}
	if r.Class >= len(r.Counts) {
		return 0
	}
	return uint32((uint64(r.Counts[r.Class]) << 8) / total)
}

// Argmax returns the index of the first maximum.
func Argmax(counts []uint32) int {
	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return best
}

// Inference is a window being processed one timestep at a time.
type Inference interface {
	Step(m Mask)
	Steps() int
	Result() Result
}

// Engine runs whole windows or step-wise inferences.
type Engine interface {
	Shape() Shape
	Infer(w Window) Result
	Begin() Inference
}
