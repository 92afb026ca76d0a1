package verify

import (
	"fmt"
	"io"
	"slices"

	"github.com/sarchlab/snnstage/api"
	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/config"
	"github.com/sarchlab/snnstage/mmio"
)

// EvalResult summarizes windows classified through the host driver.
type EvalResult struct {
	Samples     int
	Labelled    int
	Correct     int
	Faults      int
	Unconfirmed int

	// Confidences holds the decoded CONF_Q15 of every window that did not
	// fault.
	Confidences []float64

	Results []api.Result
}

// Accuracy returns Correct / Labelled, or 0 without labels.
func (r EvalResult) Accuracy() float64 {
	if r.Labelled == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Labelled)
}

// MeanConfidence returns the mean confidence, or 0.
func (r EvalResult) MeanConfidence() float64 {
	if len(r.Confidences) == 0 {
		return 0
	}

	var sum float64
	for _, c := range r.Confidences {
		sum += c
	}
	return sum / float64(len(r.Confidences))
}

// MedianConfidence returns the median confidence, or 0.
func (r EvalResult) MedianConfidence() float64 {
	n := len(r.Confidences)
	if n == 0 {
		return 0
	}

	s := slices.Clone(r.Confidences)
	slices.Sort(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Write prints the evaluation summary.
func (r EvalResult) Write(w io.Writer) {
	fmt.Fprintf(w, "[EMULATOR EVAL] N=%d\n", r.Samples)
	fmt.Fprintf(w, "  acc = %.3f (%d/%d labelled)\n",
		r.Accuracy(), r.Correct, r.Labelled)
	fmt.Fprintf(w, "  conf(mean)=%.3f conf(median)=%.3f\n",
		r.MeanConfidence(), r.MedianConfidence())
	if r.Faults > 0 || r.Unconfirmed > 0 {
		fmt.Fprintf(w, "  faults=%d unconfirmed=%d\n", r.Faults, r.Unconfirmed)
	}
}

// EvaluatePlatform classifies every sample through the platform's driver.
// The device is reset before each window; windows are cut to WINDOW_LEN.
func EvaluatePlatform(p *config.Platform, samples []artifact.Vector) EvalResult {
	windowLen := int(p.Device.Registers().Get(mmio.WindowLen))

	r := EvalResult{
		Samples: len(samples),
		Results: make([]api.Result, len(samples)),
	}

	for i, s := range samples {
		p.Driver.Reset()
		p.Driver.Infer(s.Window().Truncate(windowLen).Words(), &r.Results[i])
	}
	p.Driver.Run()

	for i, s := range samples {
		res := r.Results[i]

		if res.Unconfirmed {
			r.Unconfirmed++
		}
		if res.Err != nil {
			r.Faults++
		} else {
			r.Confidences = append(r.Confidences, res.Confidence())
		}

		if s.Label == artifact.NoLabel {
			continue
		}
		r.Labelled++
		if res.Err == nil && res.Class == s.Label {
			r.Correct++
		}
	}

	return r
}
