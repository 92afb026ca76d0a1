package verify

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sarchlab/snnstage/artifact"
	"github.com/sarchlab/snnstage/snn"
)

// Bundle file names.
const (
	W1MemFile       = "w1.mem"
	W2MemFile       = "w2.mem"
	W1COEFile       = "w1.coe"
	W2COEFile       = "w2.coe"
	VerilogFile     = "fpga_params.vh"
	RTLParamsFile   = "params_rtl.json"
	VectorsFile     = "test_vectors.txt"
	AllSpikesFile   = "all_spikes.mem"
	AllExpectedFile = "all_expected.mem"
	SpikesFile      = "spikes.mem"
	ExpectedFile    = "expected.mem"
	TraceFile       = "trace.txt"
)

// TracedCase is a stimulus pattern with its golden result and the
// per-timestep state of the integer engine.
type TracedCase struct {
	artifact.Case
	Traces []snn.StepTrace
}

type bundleFile struct {
	name  string
	write func(w io.Writer) error
}

// Generator runs the integer engine to produce golden vectors.
type Generator struct {
	model  snn.Model
	engine *snn.FixedPointEngine
}

// NewGenerator builds the integer engine of m.
func NewGenerator(m snn.Model) (*Generator, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	eng, err := m.FixedEngine()
	if err != nil {
		return nil, err
	}

	return &Generator{model: m, engine: eng}, nil
}

// Engine returns the integer engine.
func (g *Generator) Engine() *snn.FixedPointEngine { return g.engine }

// Cases runs every pattern with tracing enabled.
func (g *Generator) Cases(patterns []Pattern) []TracedCase {
	out := make([]TracedCase, 0, len(patterns))

	for _, p := range patterns {
		w := p.Window.Truncate(g.engine.Params().WindowLen)
		res, traces := g.engine.Trace(w)

		out = append(out, TracedCase{
			Case: artifact.Case{
				Name:   p.Name,
				Words:  w.Words(),
				Result: res,
			},
			Traces: traces,
		})
	}

	return out
}

// Golden returns copies of the samples with the expected integer result
// attached and the masks cut to the window length.
func (g *Generator) Golden(samples []artifact.Vector) []artifact.Vector {
	out := make([]artifact.Vector, len(samples))

	for i, s := range samples {
		w := s.Window().Truncate(g.engine.Params().WindowLen)
		res := g.engine.Infer(w)

		s.Masks = w.Words()
		s.Expected = &res
		out[i] = s
	}

	return out
}

// WriteBundle writes the weight images, the parameter files, one directory
// per case and, when vecs is not empty, the golden vector file.
func (g *Generator) WriteBundle(
	dir string,
	cases []TracedCase,
	vecs []artifact.Vector,
) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	p := g.engine.Params()
	w1, w2 := g.model.W1.Matrix(), g.model.W2.Matrix()

	files := []bundleFile{
		{W1MemFile, func(w io.Writer) error {
			return artifact.WriteMem(w, w1,
				fmt.Sprintf("W1[%d,%d]", w1.Rows(), w1.Cols()))
		}},
		{W2MemFile, func(w io.Writer) error {
			return artifact.WriteMem(w, w2,
				fmt.Sprintf("W2[%d,%d]", w2.Rows(), w2.Cols()))
		}},
		{W1COEFile, func(w io.Writer) error { return artifact.WriteCOE(w, w1) }},
		{W2COEFile, func(w io.Writer) error { return artifact.WriteCOE(w, w2) }},
		{VerilogFile, func(w io.Writer) error {
			return artifact.WriteVerilogParams(w, p,
				g.model.W1.Scale(), g.model.W2.Scale())
		}},
		{RTLParamsFile, func(w io.Writer) error { return artifact.WriteRTLParams(w, p) }},
	}

	if len(cases) > 0 {
		plain := make([]artifact.Case, len(cases))
		for i, c := range cases {
			plain[i] = c.Case
		}

		files = append(files,
			bundleFile{AllSpikesFile, func(w io.Writer) error {
				return artifact.WriteAllSpikes(w, p.WindowLen, plain)
			}},
			bundleFile{AllExpectedFile, func(w io.Writer) error {
				return artifact.WriteAllExpected(w, plain)
			}},
		)
	}

	if len(vecs) > 0 {
		files = append(files, bundleFile{VectorsFile, func(w io.Writer) error {
			return artifact.WriteVectors(w, p, vecs)
		}})
	}

	for _, f := range files {
		if err := create(filepath.Join(dir, f.name), f.write); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
	}

	for _, c := range cases {
		if err := g.writeCase(dir, c); err != nil {
			return fmt.Errorf("write bundle: %w", err)
		}
	}

	slog.Info("wrote vector bundle",
		"Dir", dir, "Cases", len(cases), "Vectors", len(vecs))

	return nil
}

func (g *Generator) writeCase(dir string, c TracedCase) error {
	caseDir := filepath.Join(dir, c.Name)
	if err := os.MkdirAll(caseDir, 0o755); err != nil {
		return err
	}

	err := create(filepath.Join(caseDir, SpikesFile), func(w io.Writer) error {
		return artifact.WriteSpikeMem(w, c.Name, c.Words)
	})
	if err != nil {
		return err
	}

	err = create(filepath.Join(caseDir, ExpectedFile), func(w io.Writer) error {
		return artifact.WriteExpectedMem(w, c.Name, c.Result)
	})
	if err != nil {
		return err
	}

	return create(filepath.Join(caseDir, TraceFile), func(w io.Writer) error {
		return artifact.WriteTrace(w, c.Name, g.engine.Params(), c.Result, c.Traces)
	})
}

func create(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := write(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
