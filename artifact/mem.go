package artifact

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/sarchlab/snnstage/snn"
)

// WriteSpikeMem writes one %08X word per timestep.
func WriteSpikeMem(w io.Writer, label string, words []uint32) error {
	bw := bufio.NewWriter(w)

	if label != "" {
		fmt.Fprintf(bw, "// %s: %d words (32-bit spike masks)\n", label, len(words))
	}
	for _, word := range words {
		fmt.Fprintf(bw, "%08X\n", word)
	}

	return bw.Flush()
}

// WriteExpectedMem writes the predicted class followed by every count.
func WriteExpectedMem(w io.Writer, label string, res snn.Result) error {
	bw := bufio.NewWriter(w)

	if label != "" {
		fmt.Fprintf(bw, "// %s\n", label)
	}
	fmt.Fprintf(bw, "// predicted_class=%d counts=%s\n",
		res.Class, formatCounts(res.Counts))
	writeExpected(bw, res)

	return bw.Flush()
}

func writeExpected(w io.Writer, res snn.Result) {
	fmt.Fprintf(w, "%08X\n", res.Class)
	for _, c := range res.Counts {
		fmt.Fprintf(w, "%08X\n", c)
	}
}

// Case is one named stimulus with its golden result.
type Case struct {
	Name   string
	Words  []uint32
	Result snn.Result
}

// WriteAllSpikes concatenates the spike words of every case, each preceded
// by a // TC<i> marker.
func WriteAllSpikes(w io.Writer, windowLen int, cases []Case) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "// %d test cases x %d words each\n", len(cases), windowLen)
	for i, c := range cases {
		fmt.Fprintf(bw, "// TC%d: %s\n", i, c.Name)
		for _, word := range c.Words {
			fmt.Fprintf(bw, "%08X\n", word)
		}
	}

	return bw.Flush()
}

// WriteAllExpected concatenates the expected results of every case.
func WriteAllExpected(w io.Writer, cases []Case) error {
	bw := bufio.NewWriter(w)

	n := 0
	if len(cases) > 0 {
		n = len(cases[0].Result.Counts)
	}
	fmt.Fprintf(bw, "// %d test cases: class, %d counts\n", len(cases), n)
	for _, c := range cases {
		fmt.Fprintf(bw, "// %s\n", c.Name)
		writeExpected(bw, c.Result)
	}

	return bw.Flush()
}

// ReadWords reads a $readmemh image of 32-bit words.
func ReadWords(r io.Reader) ([]uint32, error) {
	var out []uint32

	err := scanLines(r, func(lineNo int, line string) error {
		v, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
		}
		out = append(out, uint32(v))
		return nil
	})

	return out, err
}

func formatCounts(counts []uint32) string {
	s := "["
	for i, c := range counts {
		if i > 0 {
			s += ","
		}
		s += strconv.FormatUint(uint64(c), 10)
	}
	return s + "]"
}
