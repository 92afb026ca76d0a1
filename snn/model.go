package snn

// Model is a quantized network as exported by the training pipeline: both
// weight matrices with their scales and the parameters of each numeric
// domain.
type Model struct {
	W1 QuantizedMatrix
	W2 QuantizedMatrix

	Params      Params
	FloatParams FloatParams

	Classes  []string
	Features []string
}

// Validate checks both parameter sets against the weight shapes.
func (m Model) Validate() error {
	if err := m.Params.Validate(); err != nil {
		return err
	}
	if err := m.FloatParams.Validate(); err != nil {
		return err
	}

	q1, q2 := m.W1.Matrix(), m.W2.Matrix()
	return CheckShapes(q1.Rows(), q1.Cols(), q2.Rows(), q2.Cols(), m.Params.Shape)
}

// FixedEngine builds the integer engine over the int8 weights.
func (m Model) FixedEngine() (*FixedPointEngine, error) {
	return NewFixedPointEngine(m.W1.Matrix(), m.W2.Matrix(), m.Params)
}

// DequantizedEngine builds the float engine over the dequantized weights.
func (m Model) DequantizedEngine() (*FloatEngine, error) {
	return NewFloatEngine(m.W1.Dequantize(), m.W2.Dequantize(), m.FloatParams)
}
