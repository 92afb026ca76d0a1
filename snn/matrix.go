package snn

import "fmt"

// Int8Matrix is a row-major matrix of signed 8-bit weights, laid out
// [inputs][outputs]. It is never mutated after construction.
type Int8Matrix struct {
	rows, cols int
	data       []int8
}

// NewInt8Matrix creates a matrix from row-major data. The data is copied.
func NewInt8Matrix(rows, cols int, data []int8) (Int8Matrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return Int8Matrix{}, fmt.Errorf("%w: %d values for %dx%d matrix",
			ErrShapeMismatch, len(data), rows, cols)
	}

	m := Int8Matrix{rows: rows, cols: cols, data: make([]int8, len(data))}
	copy(m.data, data)

	return m, nil
}

// Int8MatrixFromRows creates a matrix from a slice of equally long rows.
func Int8MatrixFromRows(rows [][]int8) (Int8Matrix, error) {
	if len(rows) == 0 {
		return Int8Matrix{}, nil
	}

	cols := len(rows[0])
	data := make([]int8, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Int8Matrix{}, fmt.Errorf("%w: row %d has %d values, want %d",
				ErrShapeMismatch, i, len(r), cols)
		}
		data = append(data, r...)
	}

	return Int8Matrix{rows: len(rows), cols: cols, data: data}, nil
}

// Rows returns the number of rows (inputs).
func (m Int8Matrix) Rows() int { return m.rows }

// Cols returns the number of columns (outputs).
func (m Int8Matrix) Cols() int { return m.cols }

// At returns the weight at row r, column c.
func (m Int8Matrix) At(r, c int) int8 {
	return m.data[r*m.cols+c]
}

// row returns the backing row without copying. Callers must not modify it.
func (m Int8Matrix) row(r int) []int8 {
	return m.data[r*m.cols : (r+1)*m.cols]
}

// Flat returns a copy of the row-major data.
func (m Int8Matrix) Flat() []int8 {
	out := make([]int8, len(m.data))
	copy(out, m.data)
	return out
}

// FloatMatrix is a row-major float32 matrix with the same layout as
// Int8Matrix.
type FloatMatrix struct {
	rows, cols int
	data       []float32
}

// NewFloatMatrix creates a matrix from row-major data. The data is copied.
func NewFloatMatrix(rows, cols int, data []float32) (FloatMatrix, error) {
	if rows < 0 || cols < 0 || len(data) != rows*cols {
		return FloatMatrix{}, fmt.Errorf("%w: %d values for %dx%d matrix",
			ErrShapeMismatch, len(data), rows, cols)
	}

	m := FloatMatrix{rows: rows, cols: cols, data: make([]float32, len(data))}
	copy(m.data, data)

	return m, nil
}

// FloatMatrixFromRows creates a matrix from a slice of equally long rows.
func FloatMatrixFromRows(rows [][]float32) (FloatMatrix, error) {
	if len(rows) == 0 {
		return FloatMatrix{}, nil
	}

	cols := len(rows[0])
	data := make([]float32, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return FloatMatrix{}, fmt.Errorf("%w: row %d has %d values, want %d",
				ErrShapeMismatch, i, len(r), cols)
		}
		data = append(data, r...)
	}

	return FloatMatrix{rows: len(rows), cols: cols, data: data}, nil
}

// Rows returns the number of rows.
func (m FloatMatrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m FloatMatrix) Cols() int { return m.cols }

// At returns the value at row r, column c.
func (m FloatMatrix) At(r, c int) float32 {
	return m.data[r*m.cols+c]
}

func (m FloatMatrix) row(r int) []float32 {
	return m.data[r*m.cols : (r+1)*m.cols]
}

// Flat returns a copy of the row-major data.
func (m FloatMatrix) Flat() []float32 {
	out := make([]float32, len(m.data))
	copy(out, m.data)
	return out
}

// QuantizedMatrix pairs an int8 matrix with its scale so that
// float ≈ int8 * scale. The pair is immutable; the scale cannot drift away
// from the matrix it was computed for.
type QuantizedMatrix struct {
	q     Int8Matrix
	scale float32
}

// NewQuantizedMatrix binds a matrix to its scale.
func NewQuantizedMatrix(q Int8Matrix, scale float32) QuantizedMatrix {
	return QuantizedMatrix{q: q, scale: scale}
}

// Matrix returns the int8 matrix.
func (m QuantizedMatrix) Matrix() Int8Matrix { return m.q }

// Scale returns the quantization scale.
func (m QuantizedMatrix) Scale() float32 { return m.scale }

// Dequantize returns q * scale as a float matrix.
func (m QuantizedMatrix) Dequantize() FloatMatrix {
	out := FloatMatrix{
		rows: m.q.rows,
		cols: m.q.cols,
		data: make([]float32, len(m.q.data)),
	}
	for i, v := range m.q.data {
		out.data[i] = float32(v) * m.scale
	}
	return out
}
