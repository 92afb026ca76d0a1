// Package quant implements the symmetric int8 quantization used to move the
// trained float weights onto the accelerator.
package quant

import (
	"math"

	"github.com/sarchlab/snnstage/snn"
)

const (
	// QMax is the largest magnitude an int8 weight may take. -128 is never
	// produced so that the range stays symmetric.
	QMax = 127

	// zeroEps is the largest |w| that still counts as an all-zero matrix.
	zeroEps = 1e-12
)

// Quantize computes scale = max|w| / 127 (1 for an all-zero matrix) and
// q = clamp(round(w / scale), -127, 127).
func Quantize(w snn.FloatMatrix) snn.QuantizedMatrix {
	flat := w.Flat()

	var maxAbs float64
	for _, v := range flat {
		maxAbs = math.Max(maxAbs, math.Abs(float64(v)))
	}

	scale := float32(1.0)
	if maxAbs > zeroEps {
		scale = float32(maxAbs / QMax)
	}

	q := make([]int8, len(flat))
	for i, v := range flat {
		q[i] = quantizeOne(v, scale)
	}

	m, err := snn.NewInt8Matrix(w.Rows(), w.Cols(), q)
	if err != nil {
		panic(err)
	}

	return snn.NewQuantizedMatrix(m, scale)
}

func quantizeOne(v, scale float32) int8 {
	r := math.RoundToEven(float64(v / scale))
	if r > QMax {
		r = QMax
	}
	if r < -QMax {
		r = -QMax
	}
	return int8(r)
}

// IntThreshold converts a float threshold into the integer domain of a
// layer whose weights carry the given scale: max(1, round(th / scale)),
// clamped to int16.
func IntThreshold(th, scale float32) int16 {
	if scale <= 0 {
		scale = 1
	}

	r := math.RoundToEven(float64(th / scale))
	if r < 1 {
		r = 1
	}
	if r > math.MaxInt16 {
		r = math.MaxInt16
	}

	return int16(r)
}

// Error summarizes the reconstruction error of a quantized matrix.
type Error struct {
	MaxAbs  float64
	MeanAbs float64
}

// Stats compares the original matrix with its dequantized form.
func Stats(orig snn.FloatMatrix, q snn.QuantizedMatrix) Error {
	a := orig.Flat()
	b := q.Dequantize().Flat()
	if len(a) == 0 || len(a) != len(b) {
		return Error{}
	}

	var e Error
	for i := range a {
		d := math.Abs(float64(a[i] - b[i]))
		e.MaxAbs = math.Max(e.MaxAbs, d)
		e.MeanAbs += d
	}
	e.MeanAbs /= float64(len(a))

	return e
}
