package artifact

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/snnstage/snn"
)

// NoLabel marks a vector without a ground-truth label or model prediction.
const NoLabel = -1

// Vector is one block of a vector file. Golden TEST blocks carry the
// expected integer result; WINDOW blocks carry a label and, optionally, the
// trained model's prediction.
type Vector struct {
	ID    int
	Label int
	Model int

	Expected *snn.Result
	Masks    []uint32
}

// Window returns the masks as a spike window.
func (v Vector) Window() snn.Window {
	return snn.WindowFromWords(v.Masks)
}

// WriteVectors writes golden TEST blocks with a # header describing p.
// Every vector must carry an expected result.
func WriteVectors(w io.Writer, p snn.Params, vecs []Vector) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Golden test vectors for RTL simulation")
	fmt.Fprintln(bw, "# Format: one test case per block")
	fmt.Fprintf(bw, "# WINDOW_LEN=%d, N_IN=%d\n", p.WindowLen, p.Inputs)
	fmt.Fprintf(bw, "# TH_H=%d, TH_O=%d, LEAK_H=%d, LEAK_O=%d\n",
		p.ThresholdHidden, p.ThresholdOutput,
		p.LeakShiftHidden, p.LeakShiftOutput)
	fmt.Fprintln(bw, "#")
	fmt.Fprintln(bw, "# Each test case:")
	fmt.Fprintln(bw, "#   TEST <id> LABEL <true_label> EXPECTED_CLASS <pred> COUNTS <c0> <c1> ...")
	fmt.Fprintf(bw, "#   MASK <hex_mask>   (one per timestep, %d lines)\n", p.WindowLen)
	fmt.Fprintln(bw, "#   END")
	fmt.Fprintln(bw, "#")
	fmt.Fprintln(bw)

	for _, v := range vecs {
		if v.Expected == nil {
			return fmt.Errorf("vector %d has no expected result", v.ID)
		}

		fmt.Fprintf(bw, "TEST %d LABEL %d EXPECTED_CLASS %d COUNTS",
			v.ID, v.Label, v.Expected.Class)
		for _, c := range v.Expected.Counts {
			fmt.Fprintf(bw, " %d", c)
		}
		fmt.Fprintln(bw)

		for _, m := range v.Masks {
			fmt.Fprintf(bw, "MASK %03X\n", m)
		}
		fmt.Fprintln(bw, "END")
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// WriteWindows writes WINDOW blocks, the input format for labelled samples.
func WriteWindows(w io.Writer, vecs []Vector) error {
	bw := bufio.NewWriter(w)

	for _, v := range vecs {
		fmt.Fprintf(bw, "WINDOW %d LABEL %d", v.ID, v.Label)
		if v.Model != NoLabel {
			fmt.Fprintf(bw, " MODEL %d", v.Model)
		}
		fmt.Fprintln(bw)

		for _, m := range v.Masks {
			fmt.Fprintf(bw, "MASK %03X\n", m)
		}
		fmt.Fprintln(bw, "END")
	}

	return bw.Flush()
}

// ParseVectors reads TEST and WINDOW blocks. Lines starting with # and
// blank lines are skipped.
func ParseVectors(r io.Reader) ([]Vector, error) {
	var (
		out    []Vector
		cur    *Vector
		lineNo int
	)

	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: line %d: %s", ErrFormat, lineNo,
			fmt.Sprintf(format, args...))
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "TEST", "WINDOW":
			if cur != nil {
				return nil, fail("%s inside an open block", fields[0])
			}
			v, err := parseHeader(fields)
			if err != nil {
				return nil, fail("%v", err)
			}
			cur = &v
		case "MASK":
			if cur == nil {
				return nil, fail("MASK outside a block")
			}
			if len(fields) != 2 {
				return nil, fail("MASK needs one value")
			}
			m, err := strconv.ParseUint(fields[1], 16, 32)
			if err != nil {
				return nil, fail("%v", err)
			}
			cur.Masks = append(cur.Masks, uint32(m))
		case "END":
			if cur == nil {
				return nil, fail("END outside a block")
			}
			out = append(out, *cur)
			cur = nil
		default:
			return nil, fail("unknown keyword %q", fields[0])
		}
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, fmt.Errorf("%w: block %d not terminated", ErrFormat, cur.ID)
	}

	return out, nil
}

func parseHeader(fields []string) (Vector, error) {
	v := Vector{Label: NoLabel, Model: NoLabel}

	if len(fields) < 2 {
		return v, fmt.Errorf("%s needs an id", fields[0])
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return v, err
	}
	v.ID = id

	rest := fields[2:]
	for len(rest) > 0 {
		key := rest[0]
		rest = rest[1:]

		switch key {
		case "LABEL", "MODEL", "EXPECTED_CLASS":
			if len(rest) == 0 {
				return v, fmt.Errorf("%s needs a value", key)
			}
			n, err := strconv.Atoi(rest[0])
			if err != nil {
				return v, err
			}
			rest = rest[1:]

			switch key {
			case "LABEL":
				v.Label = n
			case "MODEL":
				v.Model = n
			default:
				if v.Expected == nil {
					v.Expected = &snn.Result{}
				}
				v.Expected.Class = n
			}
		case "COUNTS":
			if v.Expected == nil {
				v.Expected = &snn.Result{}
			}
			for len(rest) > 0 {
				c, err := strconv.ParseUint(rest[0], 10, 32)
				if err != nil {
					break
				}
				v.Expected.Counts = append(v.Expected.Counts, uint32(c))
				rest = rest[1:]
			}
		default:
			return v, fmt.Errorf("unknown field %q", key)
		}
	}

	if fields[0] == "TEST" && v.Expected == nil {
		return v, fmt.Errorf("TEST %d has no expected result", v.ID)
	}

	return v, nil
}
