package snn

import (
	"fmt"
	"math"
)

// NarrowPolicy decides what happens when a 32-bit intermediate does not fit
// the 16-bit membrane state.
type NarrowPolicy int

const (
	// NarrowWrap truncates to the low 16 bits (two's complement wraparound).
	NarrowWrap NarrowPolicy = iota
	// NarrowSaturate clamps to the int16 range.
	NarrowSaturate
)

// String returns the policy name used in configuration files.
func (p NarrowPolicy) String() string {
	switch p {
	case NarrowWrap:
		return "wrap"
	case NarrowSaturate:
		return "saturate"
	default:
		panic("invalid narrow policy")
	}
}

// ParseNarrowPolicy parses "wrap" or "saturate". The empty string is wrap.
func ParseNarrowPolicy(s string) (NarrowPolicy, error) {
	switch s {
	case "", "wrap":
		return NarrowWrap, nil
	case "saturate":
		return NarrowSaturate, nil
	default:
		return NarrowWrap, fmt.Errorf("%w: unknown narrow policy %q",
			ErrInvalidParams, s)
	}
}

// narrow converts v to int16 under the policy. Out-of-range values are
// counted in overflows whatever the policy does with them.
func (p NarrowPolicy) narrow(v int32, overflows *int) int16 {
	if v >= math.MinInt16 && v <= math.MaxInt16 {
		return int16(v)
	}

	*overflows++

	if p == NarrowSaturate {
		if v > 0 {
			return math.MaxInt16
		}
		return math.MinInt16
	}

	return int16(v)
}

// Shape is the topology shared by both engines.
type Shape struct {
	Inputs    int
	Hidden    int
	Outputs   int
	WindowLen int
}

func (s Shape) validate() error {
	if s.Inputs <= 0 || s.Inputs > 32 {
		return fmt.Errorf("%w: input count %d not in [1, 32]",
			ErrInvalidParams, s.Inputs)
	}
	if s.Hidden <= 0 {
		return fmt.Errorf("%w: hidden count %d", ErrInvalidParams, s.Hidden)
	}
	if s.Outputs <= 0 {
		return fmt.Errorf("%w: output count %d", ErrInvalidParams, s.Outputs)
	}
	if s.WindowLen < 0 {
		return fmt.Errorf("%w: window length %d", ErrInvalidParams, s.WindowLen)
	}
	return nil
}

// LatencyCycles is the synthetic cycle estimate of one window: every
// timestep visits each hidden and output neuron once.
func (s Shape) LatencyCycles() int {
	return s.WindowLen * (s.Hidden + s.Outputs)
}

// Params configures the fixed-point engine. Thresholds are in the integer
// domain of the int8 weights.
type Params struct {
	Shape

	LeakShiftHidden int
	LeakShiftOutput int
	ThresholdHidden int16
	ThresholdOutput int16

	Narrowing NarrowPolicy
}

// DefaultParams returns the reference 12-32-3 configuration.
func DefaultParams() Params {
	return Params{
		Shape: Shape{
			Inputs:    12,
			Hidden:    32,
			Outputs:   3,
			WindowLen: 10,
		},
		LeakShiftHidden: 4,
		LeakShiftOutput: 4,
		ThresholdHidden: 64,
		ThresholdOutput: 64,
		Narrowing:       NarrowWrap,
	}
}

// Validate reports configuration errors.
func (p Params) Validate() error {
	if err := p.Shape.validate(); err != nil {
		return err
	}
	if err := validateShift(p.LeakShiftHidden); err != nil {
		return err
	}
	if err := validateShift(p.LeakShiftOutput); err != nil {
		return err
	}
	if p.Narrowing != NarrowWrap && p.Narrowing != NarrowSaturate {
		return fmt.Errorf("%w: narrow policy %d", ErrInvalidParams, p.Narrowing)
	}
	return nil
}

func validateShift(s int) error {
	if s < 0 || s > 15 {
		return fmt.Errorf("%w: leak shift %d not in [0, 15]",
			ErrInvalidParams, s)
	}
	return nil
}

// FloatParams configures the floating-point reference engine.
type FloatParams struct {
	Shape

	LeakShiftHidden int
	LeakShiftOutput int
	ThresholdHidden float32
	ThresholdOutput float32
}

// DefaultFloatParams returns the reference configuration with unit
// thresholds.
func DefaultFloatParams() FloatParams {
	p := DefaultParams()
	return FloatParams{
		Shape:           p.Shape,
		LeakShiftHidden: p.LeakShiftHidden,
		LeakShiftOutput: p.LeakShiftOutput,
		ThresholdHidden: 1,
		ThresholdOutput: 1,
	}
}

// Validate reports configuration errors.
func (p FloatParams) Validate() error {
	if err := p.Shape.validate(); err != nil {
		return err
	}
	if err := validateShift(p.LeakShiftHidden); err != nil {
		return err
	}
	return validateShift(p.LeakShiftOutput)
}

// ShiftToAlpha converts a leak shift into the multiplicative decay
// 1 - 2^-shift. Shifts below 1 are treated as 1.
func ShiftToAlpha(shift int) float32 {
	if shift < 1 {
		shift = 1
	}
	return float32(1.0 - 1.0/math.Exp2(float64(shift)))
}

// CheckShapes verifies that the two weight matrices match the topology.
func CheckShapes(w1Rows, w1Cols, w2Rows, w2Cols int, s Shape) error {
	if w1Rows != s.Inputs || w1Cols != s.Hidden {
		return fmt.Errorf("%w: W1 is %dx%d, want %dx%d",
			ErrShapeMismatch, w1Rows, w1Cols, s.Inputs, s.Hidden)
	}
	if w2Rows != s.Hidden || w2Cols != s.Outputs {
		return fmt.Errorf("%w: W2 is %dx%d, want %dx%d",
			ErrShapeMismatch, w2Rows, w2Cols, s.Hidden, s.Outputs)
	}
	return nil
}
