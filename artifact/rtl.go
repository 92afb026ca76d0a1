package artifact

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sarchlab/snnstage/snn"
)

// RTLParams is the content of params_rtl.json: the integer configuration the
// RTL testbench is built with.
type RTLParams struct {
	NIn        int   `json:"n_in"`
	NHidden    int   `json:"n_hidden"`
	NOut       int   `json:"n_out"`
	WindowLen  int   `json:"window_len"`
	LeakHShift int   `json:"leak_h_shift"`
	LeakOShift int   `json:"leak_o_shift"`
	ThH        int16 `json:"th_h"`
	ThO        int16 `json:"th_o"`
}

// RTLParamsOf converts engine parameters.
func RTLParamsOf(p snn.Params) RTLParams {
	return RTLParams{
		NIn:        p.Inputs,
		NHidden:    p.Hidden,
		NOut:       p.Outputs,
		WindowLen:  p.WindowLen,
		LeakHShift: p.LeakShiftHidden,
		LeakOShift: p.LeakShiftOutput,
		ThH:        p.ThresholdHidden,
		ThO:        p.ThresholdOutput,
	}
}

// WriteRTLParams writes params_rtl.json.
func WriteRTLParams(w io.Writer, p snn.Params) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(RTLParamsOf(p))
}

// WriteVerilogParams writes the fpga_params.vh parameter header. The scales
// are emitted as comments only.
func WriteVerilogParams(w io.Writer, p snn.Params, w1Scale, w2Scale float32) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "// Generated by snn-vectors. Do not edit.")
	fmt.Fprintln(bw)
	fmt.Fprintf(bw, "parameter N_IN       = %d;\n", p.Inputs)
	fmt.Fprintf(bw, "parameter N_HIDDEN   = %d;\n", p.Hidden)
	fmt.Fprintf(bw, "parameter N_OUT      = %d;\n", p.Outputs)
	fmt.Fprintf(bw, "parameter WINDOW_LEN = %d;\n", p.WindowLen)
	fmt.Fprintf(bw, "parameter LEAK_H     = %d;  // bit-shift for hidden leak\n", p.LeakShiftHidden)
	fmt.Fprintf(bw, "parameter LEAK_O     = %d;  // bit-shift for output leak\n", p.LeakShiftOutput)
	fmt.Fprintf(bw, "parameter TH_H       = %d;  // hidden threshold (int)\n", p.ThresholdHidden)
	fmt.Fprintf(bw, "parameter TH_O       = %d;  // output threshold (int)\n", p.ThresholdOutput)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "// Weight memory sizes")
	fmt.Fprintf(bw, "parameter W1_DEPTH   = %d;  // %d x %d\n",
		p.Inputs*p.Hidden, p.Inputs, p.Hidden)
	fmt.Fprintf(bw, "parameter W2_DEPTH   = %d;  // %d x %d\n",
		p.Hidden*p.Outputs, p.Hidden, p.Outputs)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "// Scales (reference only, not used in RTL)")
	fmt.Fprintf(bw, "// W1 scale = %.8f\n", w1Scale)
	fmt.Fprintf(bw, "// W2 scale = %.8f\n", w2Scale)

	return bw.Flush()
}

// WriteTrace writes a per-timestep dump of a fixed-point inference.
func WriteTrace(
	w io.Writer,
	name string,
	p snn.Params,
	res snn.Result,
	traces []snn.StepTrace,
) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Test case: %s\n", name)
	fmt.Fprintf(bw, "Params: th_h=%d th_o=%d leak_h=%d leak_o=%d\n",
		p.ThresholdHidden, p.ThresholdOutput,
		p.LeakShiftHidden, p.LeakShiftOutput)
	fmt.Fprintf(bw, "Result: class=%d counts=%s overflows=%d\n\n",
		res.Class, formatCounts(res.Counts), res.Overflows)

	for _, tr := range traces {
		fmt.Fprintf(bw, "--- t=%d mask=0x%03X ---\n", tr.T, uint32(tr.Mask))
		fmt.Fprintf(bw, "  hidden_spikes = 0x%08X (popcount=%d)\n",
			tr.HiddenBits(), tr.HiddenPopCount())
		fmt.Fprintf(bw, "  output_spikes = %s\n", formatBools(tr.OutputSpikes))

		head := tr.Hidden
		if len(head) > 4 {
			head = head[:4]
		}
		fmt.Fprintf(bw, "  Vh_after[0:4] = %v\n", head)
		fmt.Fprintf(bw, "  Vo_after = %v\n", tr.Output)
	}

	return bw.Flush()
}

func formatBools(bs []bool) string {
	s := "["
	for i, b := range bs {
		if i > 0 {
			s += ","
		}
		if b {
			s += "1"
		} else {
			s += "0"
		}
	}
	return s + "]"
}

type floatWeights struct {
	W1 [][]float32 `json:"W1"`
	W2 [][]float32 `json:"W2"`
}

// LoadFloatWeights reads weights_float.json, the unquantized weights of the
// trained model.
func LoadFloatWeights(path string) (w1, w2 snn.FloatMatrix, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return w1, w2, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return w1, w2, err
	}

	var fw floatWeights
	if err := json.Unmarshal(data, &fw); err != nil {
		return w1, w2, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}

	if w1, err = snn.FloatMatrixFromRows(fw.W1); err != nil {
		return w1, w2, fmt.Errorf("%s: W1: %w", path, err)
	}
	if w2, err = snn.FloatMatrixFromRows(fw.W2); err != nil {
		return w1, w2, fmt.Errorf("%s: W2: %w", path, err)
	}

	return w1, w2, nil
}

// WriteFloatWeights writes weights_float.json.
func WriteFloatWeights(path string, w1, w2 snn.FloatMatrix) error {
	fw := floatWeights{W1: toRows(w1), W2: toRows(w2)}

	data, err := json.Marshal(fw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func toRows(m snn.FloatMatrix) [][]float32 {
	rows := make([][]float32, m.Rows())
	for r := range rows {
		rows[r] = make([]float32, m.Cols())
		for c := range rows[r] {
			rows[r][c] = m.At(r, c)
		}
	}
	return rows
}
