package verify

import (
	"fmt"
	"io"
	"slices"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/snn"
)

// VectorMismatch is a golden vector that the engine no longer reproduces.
type VectorMismatch struct {
	ID       int
	Expected snn.Result
	Got      snn.Result
}

// CheckResult is the outcome of re-running a golden vector file.
type CheckResult struct {
	Checked int
	// Skipped counts blocks without an expected result.
	Skipped    int
	Mismatches []VectorMismatch
}

// Passed reports whether every checked vector matched.
func (c CheckResult) Passed() bool {
	return len(c.Mismatches) == 0
}

// CheckVectors runs every golden vector through eng and compares class and
// counts.
func CheckVectors(eng snn.Engine, vecs []artifact.Vector) CheckResult {
	var c CheckResult

	for _, v := range vecs {
		if v.Expected == nil {
			c.Skipped++
			continue
		}

		c.Checked++
		got := eng.Infer(v.Window())
		if got.Class != v.Expected.Class ||
			!slices.Equal(got.Counts, v.Expected.Counts) {
			c.Mismatches = append(c.Mismatches, VectorMismatch{
				ID:       v.ID,
				Expected: *v.Expected,
				Got:      got,
			})
		}
	}

	return c
}

// Write prints a summary and one line per mismatch.
func (c CheckResult) Write(w io.Writer) {
	fmt.Fprintf(w, "Checked %d vectors, skipped %d, %d mismatches\n",
		c.Checked, c.Skipped, len(c.Mismatches))

	for _, m := range c.Mismatches {
		fmt.Fprintf(w, "  TEST %d: expected class=%d counts=%v, got class=%d counts=%v\n",
			m.ID, m.Expected.Class, m.Expected.Counts, m.Got.Class, m.Got.Counts)
	}
}
