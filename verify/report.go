package verify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/snnstage/snn"
)

// Severity grades a finding.
type Severity int

const (
	SevPass Severity = iota
	SevWarn
	SevFail
	// SevInfo marks figures that are reported but not graded.
	SevInfo
)

// String returns the severity tag.
func (s Severity) String() string {
	switch s {
	case SevPass:
		return "PASS"
	case SevWarn:
		return "WARN"
	case SevFail:
		return "FAIL"
	case SevInfo:
		return "INFO"
	default:
		panic("invalid severity")
	}
}

// Accuracy is the label accuracy of one backend.
type Accuracy struct {
	Backend  Backend
	Labelled int
	Correct  int
}

// Rate returns Correct / Labelled, or 0 without labels.
func (a Accuracy) Rate() float64 {
	if a.Labelled == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Labelled)
}

// Mismatch is one sample on which two backends disagree.
type Mismatch struct {
	ID    int
	Label int

	FromClass  int
	ToClass    int
	FromCounts []uint32
	ToCounts   []uint32
}

// Link is the agreement between two backends.
type Link struct {
	From, To Backend

	Compared int
	Agreed   int
	Severity Severity

	// EndToEnd marks the comparison of the first and last backend.
	EndToEnd bool

	Mismatches []Mismatch
}

// Agreement returns Agreed / Compared, or 0 when nothing was compared.
func (l Link) Agreement() float64 {
	if l.Compared == 0 {
		return 0
	}
	return float64(l.Agreed) / float64(l.Compared)
}

// Name returns "from -> to".
func (l Link) Name() string {
	return fmt.Sprintf("%s -> %s", l.From, l.To)
}

// Report is the outcome of a verification run.
type Report struct {
	Samples int
	Params  snn.Params

	Accuracy []Accuracy
	Links    []Link

	// Overflows is the number of 16-bit narrowings of the integer engine
	// that did not fit, summed over all samples.
	Overflows       int
	OverflowSamples []int
}

// Ready reports whether no link failed.
func (r *Report) Ready() bool {
	for _, l := range r.Links {
		if l.Severity == SevFail {
			return false
		}
	}
	return true
}

// Worst returns the most severe graded link result.
func (r *Report) Worst() Severity {
	worst := SevPass
	for _, l := range r.Links {
		if l.Severity != SevInfo && l.Severity > worst {
			worst = l.Severity
		}
	}
	return worst
}

// Write renders the report.
func (r *Report) Write(w io.Writer) {
	separator := strings.Repeat("=", 60)
	dash := strings.Repeat("-", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "SNN BIT-EXACT VERIFICATION REPORT")
	fmt.Fprintln(w, separator)

	p := r.Params
	fmt.Fprintf(w, "\nSamples: %d\n", r.Samples)
	fmt.Fprintf(w, "Network: %d-%d-%d, window %d\n",
		p.Inputs, p.Hidden, p.Outputs, p.WindowLen)
	fmt.Fprintf(w, "Integer params: th_h=%d th_o=%d leak_h=%d leak_o=%d narrowing=%s\n",
		p.ThresholdHidden, p.ThresholdOutput,
		p.LeakShiftHidden, p.LeakShiftOutput, p.Narrowing)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "ACCURACY")
	fmt.Fprintln(w, separator)
	r.writeAccuracy(w)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "AGREEMENT")
	fmt.Fprintln(w, separator)
	r.writeLinks(w)

	for _, l := range r.Links {
		if len(l.Mismatches) == 0 || l.EndToEnd {
			continue
		}

		fmt.Fprintf(w, "\nMISMATCHES %s (first %d):\n", l.Name(), len(l.Mismatches))
		fmt.Fprintln(w, dash)
		for _, m := range l.Mismatches {
			fmt.Fprintf(w, "  idx=%d true=%d %s=%d %s=%d",
				m.ID, m.Label, l.From, m.FromClass, l.To, m.ToClass)
			if m.FromCounts != nil {
				fmt.Fprintf(w, " %s_counts=%v", l.From, m.FromCounts)
			}
			if m.ToCounts != nil {
				fmt.Fprintf(w, " %s_counts=%v", l.To, m.ToCounts)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "INTEGER DATAPATH")
	fmt.Fprintln(w, separator)
	if r.Overflows == 0 {
		fmt.Fprintln(w, "✓ No 16-bit overflow")
	} else {
		fmt.Fprintf(w, "⚠ %d narrowing overflows (%s) in %d samples: %v\n",
			r.Overflows, p.Narrowing, len(r.OverflowSamples), r.OverflowSamples)
		fmt.Fprintln(w, "  The RTL must use the same narrowing policy.")
	}

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "RECOMMENDATION")
	fmt.Fprintln(w, separator)
	r.writeVerdict(w)

	fmt.Fprintln(w)
}

func (r *Report) writeAccuracy(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Backend", "Labelled", "Correct", "Accuracy"})

	for _, a := range r.Accuracy {
		acc := "-"
		if a.Labelled > 0 {
			acc = fmt.Sprintf("%.4f", a.Rate())
		}
		t.AppendRow(table.Row{a.Backend, a.Labelled, a.Correct, acc})
	}

	t.Render()
}

func (r *Report) writeLinks(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Link", "Compared", "Agreed", "Agreement", "Grade"})

	for _, l := range r.Links {
		name := l.Name()
		if l.EndToEnd {
			name += " (end-to-end)"
		}
		t.AppendRow(table.Row{
			name,
			l.Compared,
			l.Agreed,
			fmt.Sprintf("%.4f", l.Agreement()),
			l.Severity,
		})
	}

	t.Render()
}

func (r *Report) writeVerdict(w io.Writer) {
	switch {
	case !r.Ready():
		fmt.Fprintln(w, "✗ FIX issues above before proceeding to RTL")
		for _, l := range r.Links {
			if l.Severity != SevFail {
				continue
			}
			fmt.Fprintf(w, "  %s agreement %.4f\n", l.Name(), l.Agreement())
		}
		fmt.Fprintln(w, "Check:")
		fmt.Fprintln(w, "  1. Threshold scaling between the float and integer domains")
		fmt.Fprintln(w, "  2. Leak-shift arithmetic (arithmetic shift, 16-bit state)")
		fmt.Fprintln(w, "  3. Weight shapes and row-major order of the exports")
	case r.Worst() == SevWarn:
		fmt.Fprintln(w, "⚠ READY for RTL development with warnings")
		fmt.Fprintln(w, "Golden-int is the reference for FPGA.")
	default:
		fmt.Fprintln(w, "✓ READY for RTL development")
		fmt.Fprintln(w, "Golden-int is the reference for FPGA.")
	}
}

// SaveToFile writes the report to a file.
func (r *Report) SaveToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.Write(file)
	return nil
}
