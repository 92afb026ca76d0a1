// Package testmodel provides a small deterministic 12-32-3 network whose
// responses to the standard stimulus patterns are known exactly.
//
// Hidden neurons 0-15 listen to channels 0-4 and vote for class 1; hidden
// neurons 16-31 listen to channels 5-11, vote for class 2 and inhibit
// class 1. A window with every channel active lands on class 2, a window
// with only channels 0-4 active lands on class 1.
package testmodel

import "github.com/sarchlab/snnstage/snn"

// Scale is the quantization scale of both weight matrices.
const Scale float32 = 0.01

// W1 returns the 12x32 input weights.
func W1() snn.Int8Matrix {
	rows := make([][]int8, 12)
	for ch := range rows {
		rows[ch] = make([]int8, 32)
		for n := range rows[ch] {
			rows[ch][n] = int8(w1(ch, n))
		}
	}
	return must(snn.Int8MatrixFromRows(rows))
}

// W2 returns the 32x3 output weights.
func W2() snn.Int8Matrix {
	rows := make([][]int8, 32)
	for n := range rows {
		rows[n] = make([]int8, 3)
		for o := range rows[n] {
			rows[n][o] = int8(w2(n, o))
		}
	}
	return must(snn.Int8MatrixFromRows(rows))
}

func w1(ch, n int) int {
	if n < 16 {
		if ch < 5 {
			return 20 + (ch*7+n*3)%11
		}
		return -((ch + n) % 9)
	}
	if ch >= 5 {
		return 12 + (ch*5+n)%13
	}
	return (n-ch)%7 - 3
}

func w2(n, o int) int {
	if n < 16 {
		return [3]int{-10 + n%4, 30 + n%5, 5 - n%6}[o]
	}
	return [3]int{2 * (n % 3), -40 - n%3, 40 + n%7}[o]
}

// Engine returns the fixed-point engine with the reference parameters.
func Engine() *snn.FixedPointEngine {
	return must(snn.NewFixedPointEngine(W1(), W2(), snn.DefaultParams()))
}

// Model returns the network as a quantized model. The float thresholds are
// the integer ones times Scale.
func Model() snn.Model {
	fp := snn.DefaultFloatParams()
	fp.ThresholdHidden = 64 * Scale
	fp.ThresholdOutput = 64 * Scale

	return snn.Model{
		W1:          snn.NewQuantizedMatrix(W1(), Scale),
		W2:          snn.NewQuantizedMatrix(W2(), Scale),
		Params:      snn.DefaultParams(),
		FloatParams: fp,
		Classes:     []string{"idle", "low", "high"},
	}
}

// Repeat returns a window of n copies of m.
func Repeat(m snn.Mask, n int) snn.Window {
	masks := make([]snn.Mask, n)
	for i := range masks {
		masks[i] = m
	}
	return snn.NewWindow(masks...)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
