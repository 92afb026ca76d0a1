// Package artifact reads and writes the files exchanged with the training
// pipeline and the RTL flow: the params.json descriptor, int8 weight
// images, spike and expected-result memories, and golden vector files.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sarchlab/snnstage/quant"
	"github.com/sarchlab/snnstage/snn"
)

// Artifact errors.
var (
	ErrMissingArtifact = errors.New("missing artifact")
	ErrFormat          = errors.New("malformed artifact")
)

// File names inside an exports directory.
const (
	DescriptorFile   = "params.json"
	W1HexFile        = "weights_w1.hex"
	W2HexFile        = "weights_w2.hex"
	FloatWeightsFile = "weights_float.json"
)

// SNNConfig is the snn_config block of the descriptor. Thresholds are in the
// float domain of the trained model.
type SNNConfig struct {
	NIn        int     `json:"n_in"`
	NHidden    int     `json:"n_hidden"`
	NOut       int     `json:"n_out"`
	WindowLen  int     `json:"window_len"`
	LeakHShift int     `json:"leak_h_shift"`
	LeakOShift int     `json:"leak_o_shift"`
	ThH        float64 `json:"th_h"`
	ThO        float64 `json:"th_o"`
}

// QuantInfo is the quant block of the descriptor.
type QuantInfo struct {
	W1Scale float64 `json:"w1_scale"`
	W2Scale float64 `json:"w2_scale"`
	Format  string  `json:"format"`
	Note    string  `json:"note,omitempty"`
}

// Shapes is the shapes block of the descriptor.
type Shapes struct {
	W1 [2]int `json:"W1"`
	W2 [2]int `json:"W2"`
}

// IntThresholds overrides the thresholds derived from the float ones.
type IntThresholds struct {
	ThH int16 `json:"th_h"`
	ThO int16 `json:"th_o"`
}

// Descriptor is the content of params.json.
type Descriptor struct {
	SNN           SNNConfig      `json:"snn_config"`
	Classes       []string       `json:"classes,omitempty"`
	Features      []string       `json:"features,omitempty"`
	Quant         QuantInfo      `json:"quant"`
	Shapes        Shapes         `json:"shapes"`
	IntThresholds *IntThresholds `json:"int_thresholds,omitempty"`
}

// LoadDescriptor reads and checks a params.json file.
func LoadDescriptor(path string) (Descriptor, error) {
	var d Descriptor

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return d, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return d, err
	}

	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: %s: %v", ErrFormat, path, err)
	}

	if d.Quant.W1Scale <= 0 || d.Quant.W2Scale <= 0 {
		return d, fmt.Errorf("%w: %s: non-positive weight scale", ErrFormat, path)
	}

	return d, nil
}

// WriteDescriptor writes d as indented JSON.
func WriteDescriptor(path string, d Descriptor) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Params returns the integer-domain engine parameters. Thresholds come from
// int_thresholds when present, otherwise from th / scale.
func (d Descriptor) Params() snn.Params {
	p := snn.Params{
		Shape:           d.shape(),
		LeakShiftHidden: d.SNN.LeakHShift,
		LeakShiftOutput: d.SNN.LeakOShift,
		ThresholdHidden: quant.IntThreshold(float32(d.SNN.ThH), float32(d.Quant.W1Scale)),
		ThresholdOutput: quant.IntThreshold(float32(d.SNN.ThO), float32(d.Quant.W2Scale)),
	}

	if d.IntThresholds != nil {
		p.ThresholdHidden = d.IntThresholds.ThH
		p.ThresholdOutput = d.IntThresholds.ThO
	}

	return p
}

// FloatParams returns the float-domain engine parameters.
func (d Descriptor) FloatParams() snn.FloatParams {
	return snn.FloatParams{
		Shape:           d.shape(),
		LeakShiftHidden: d.SNN.LeakHShift,
		LeakShiftOutput: d.SNN.LeakOShift,
		ThresholdHidden: float32(d.SNN.ThH),
		ThresholdOutput: float32(d.SNN.ThO),
	}
}

func (d Descriptor) shape() snn.Shape {
	s := snn.Shape{
		Inputs:    d.SNN.NIn,
		Hidden:    d.SNN.NHidden,
		Outputs:   d.SNN.NOut,
		WindowLen: d.SNN.WindowLen,
	}

	// Older exports only carry the weight shapes.
	if s.Inputs == 0 {
		s.Inputs = d.Shapes.W1[0]
	}
	if s.Hidden == 0 {
		s.Hidden = d.Shapes.W1[1]
	}
	if s.Outputs == 0 {
		s.Outputs = d.Shapes.W2[1]
	}

	return s
}

// DescriptorOf builds the descriptor of a model.
func DescriptorOf(m snn.Model) Descriptor {
	q1, q2 := m.W1.Matrix(), m.W2.Matrix()

	return Descriptor{
		SNN: SNNConfig{
			NIn:        m.Params.Inputs,
			NHidden:    m.Params.Hidden,
			NOut:       m.Params.Outputs,
			WindowLen:  m.Params.WindowLen,
			LeakHShift: m.Params.LeakShiftHidden,
			LeakOShift: m.Params.LeakShiftOutput,
			ThH:        float64(m.FloatParams.ThresholdHidden),
			ThO:        float64(m.FloatParams.ThresholdOutput),
		},
		Classes:  m.Classes,
		Features: m.Features,
		Quant: QuantInfo{
			W1Scale: float64(m.W1.Scale()),
			W2Scale: float64(m.W2.Scale()),
			Format:  "int8",
			Note:    "float ~= int8 * scale",
		},
		Shapes: Shapes{
			W1: [2]int{q1.Rows(), q1.Cols()},
			W2: [2]int{q2.Rows(), q2.Cols()},
		},
		IntThresholds: &IntThresholds{
			ThH: m.Params.ThresholdHidden,
			ThO: m.Params.ThresholdOutput,
		},
	}
}

// LoadModel reads params.json and both weight images from dir.
func LoadModel(dir string) (snn.Model, error) {
	d, err := LoadDescriptor(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return snn.Model{}, err
	}

	p := d.Params()

	w1, err := ReadWeights(filepath.Join(dir, W1HexFile), p.Inputs, p.Hidden)
	if err != nil {
		return snn.Model{}, err
	}

	w2, err := ReadWeights(filepath.Join(dir, W2HexFile), p.Hidden, p.Outputs)
	if err != nil {
		return snn.Model{}, err
	}

	m := snn.Model{
		W1:          snn.NewQuantizedMatrix(w1, float32(d.Quant.W1Scale)),
		W2:          snn.NewQuantizedMatrix(w2, float32(d.Quant.W2Scale)),
		Params:      p,
		FloatParams: d.FloatParams(),
		Classes:     d.Classes,
		Features:    d.Features,
	}

	if err := m.Validate(); err != nil {
		return snn.Model{}, fmt.Errorf("%s: %w", dir, err)
	}

	return m, nil
}

// SaveModel writes params.json and both weight images into dir.
func SaveModel(dir string, m snn.Model) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := WriteDescriptor(filepath.Join(dir, DescriptorFile),
		DescriptorOf(m)); err != nil {
		return err
	}

	if err := writeFile(filepath.Join(dir, W1HexFile), func(f *os.File) error {
		return WriteHex(f, m.W1.Matrix())
	}); err != nil {
		return err
	}

	return writeFile(filepath.Join(dir, W2HexFile), func(f *os.File) error {
		return WriteHex(f, m.W2.Matrix())
	})
}

func writeFile(path string, fill func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := fill(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
