package verify

import (
	"errors"
	"log/slog"

	"github.com/sourcegraph/conc/pool"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/snn"
)

// ErrNoSamples is returned when there is nothing to verify.
var ErrNoSamples = errors.New("no samples to verify")

// MaxMismatches is the number of disagreeing samples recorded per link.
const MaxMismatches = 5

// Backend identifies one numeric rendition of the network.
type Backend int

const (
	// BackendTrained is the prediction of the trained float model, read
	// from the MODEL field of a window.
	BackendTrained Backend = iota
	// BackendFloatOriginal is the float engine over the unquantized weights.
	BackendFloatOriginal
	// BackendFloatQuantized is the float engine over dequantized weights.
	BackendFloatQuantized
	// BackendFixed is the bit-exact integer engine.
	BackendFixed

	numBackends
)

// String returns the backend name used in reports.
func (b Backend) String() string {
	switch b {
	case BackendTrained:
		return "trained"
	case BackendFloatOriginal:
		return "float-orig"
	case BackendFloatQuantized:
		return "float-quant"
	case BackendFixed:
		return "fixed"
	default:
		panic("invalid backend")
	}
}

// Verifier runs samples through every available backend and measures how
// often adjacent backends agree.
type Verifier struct {
	model   snn.Model
	workers int

	original  *snn.FloatEngine
	quantized *snn.FloatEngine
	fixed     *snn.FixedPointEngine
}

// VerifierBuilder can build verifiers.
type VerifierBuilder struct {
	workers int
	w1, w2  *snn.FloatMatrix
}

// MakeVerifierBuilder returns a builder with four workers and no original
// weights.
func MakeVerifierBuilder() VerifierBuilder {
	return VerifierBuilder{workers: 4}
}

// WithWorkers sets the number of windows evaluated concurrently.
func (b VerifierBuilder) WithWorkers(n int) VerifierBuilder {
	b.workers = n
	return b
}

// WithOriginalWeights enables the float-orig backend.
func (b VerifierBuilder) WithOriginalWeights(w1, w2 snn.FloatMatrix) VerifierBuilder {
	b.w1, b.w2 = &w1, &w2
	return b
}

// Build creates the engines of every enabled backend.
func (b VerifierBuilder) Build(m snn.Model) (*Verifier, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	v := &Verifier{model: m, workers: max(b.workers, 1)}

	var err error
	if v.fixed, err = m.FixedEngine(); err != nil {
		return nil, err
	}
	if v.quantized, err = m.DequantizedEngine(); err != nil {
		return nil, err
	}
	if b.w1 != nil {
		v.original, err = snn.NewFloatEngine(*b.w1, *b.w2, m.FloatParams)
		if err != nil {
			return nil, err
		}
	}

	return v, nil
}

// outcome holds the result of one sample on every backend. Missing backends
// are nil.
type outcome [numBackends]*snn.Result

// Verify evaluates every sample and grades the backend chain.
func (v *Verifier) Verify(samples []artifact.Vector) (*Report, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	outcomes := make([]outcome, len(samples))

	p := pool.New().WithMaxGoroutines(v.workers)
	for i, s := range samples {
		p.Go(func() {
			outcomes[i] = v.evaluate(s)
		})
	}
	p.Wait()

	r := v.report(samples, outcomes)

	slog.Info("verified backend chain",
		"Samples", len(samples),
		"Links", len(r.Links),
		"Ready", r.Ready())

	return r, nil
}

func (v *Verifier) evaluate(s artifact.Vector) outcome {
	var o outcome

	w := s.Window()

	if s.Model != artifact.NoLabel {
		o[BackendTrained] = &snn.Result{Class: s.Model}
	}
	if v.original != nil {
		res := v.original.Infer(w)
		o[BackendFloatOriginal] = &res
	}

	q := v.quantized.Infer(w)
	o[BackendFloatQuantized] = &q

	f := v.fixed.Infer(w)
	o[BackendFixed] = &f

	return o
}

func (v *Verifier) report(samples []artifact.Vector, outcomes []outcome) *Report {
	r := &Report{
		Samples: len(samples),
		Params:  v.model.Params,
	}

	present := v.backends(outcomes)
	for _, b := range present {
		r.Accuracy = append(r.Accuracy, accuracy(b, samples, outcomes))
	}

	for i := 1; i < len(present); i++ {
		r.Links = append(r.Links,
			compare(present[i-1], present[i], samples, outcomes))
	}

	if len(present) > 2 {
		first, last := present[0], present[len(present)-1]
		l := compare(first, last, samples, outcomes)
		l.EndToEnd = true
		l.Severity = SevInfo
		r.Links = append(r.Links, l)
	}

	for i, o := range outcomes {
		n := o[BackendFixed].Overflows
		if n == 0 {
			continue
		}
		r.Overflows += n
		r.OverflowSamples = append(r.OverflowSamples, samples[i].ID)
	}

	return r
}

// backends lists the backends that produced a result for at least one
// sample, in chain order.
func (v *Verifier) backends(outcomes []outcome) []Backend {
	var out []Backend

	for b := Backend(0); b < numBackends; b++ {
		for _, o := range outcomes {
			if o[b] != nil {
				out = append(out, b)
				break
			}
		}
	}

	return out
}

func accuracy(b Backend, samples []artifact.Vector, outcomes []outcome) Accuracy {
	a := Accuracy{Backend: b}

	for i, s := range samples {
		res := outcomes[i][b]
		if res == nil || s.Label == artifact.NoLabel {
			continue
		}

		a.Labelled++
		if res.Class == s.Label {
			a.Correct++
		}
	}

	return a
}

func compare(from, to Backend, samples []artifact.Vector, outcomes []outcome) Link {
	l := Link{From: from, To: to}

	for i, s := range samples {
		a, b := outcomes[i][from], outcomes[i][to]
		if a == nil || b == nil {
			continue
		}

		l.Compared++
		if a.Class == b.Class {
			l.Agreed++
			continue
		}

		if len(l.Mismatches) < MaxMismatches {
			l.Mismatches = append(l.Mismatches, Mismatch{
				ID:         s.ID,
				Label:      s.Label,
				FromClass:  a.Class,
				ToClass:    b.Class,
				FromCounts: a.Counts,
				ToCounts:   b.Counts,
			})
		}
	}

	l.Severity = grade(from, to, l.Agreement())

	return l
}

// grade maps an agreement rate to a severity. The trained-to-float-orig link
// needs 0.999 to pass; the quantization link never fails.
func grade(from, to Backend, agreement float64) Severity {
	switch {
	case from == BackendTrained && to == BackendFloatOriginal:
		if agreement < 0.999 {
			return SevFail
		}
		return SevPass
	case from == BackendFloatOriginal && to == BackendFloatQuantized:
		if agreement < 0.95 {
			return SevWarn
		}
		return SevPass
	default:
		return Grade(agreement)
	}
}

// Grade applies the standard agreement thresholds.
func Grade(agreement float64) Severity {
	switch {
	case agreement >= 0.95:
		return SevPass
	case agreement >= 0.90:
		return SevWarn
	default:
		return SevFail
	}
}
