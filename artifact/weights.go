package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sarchlab/snnstage/snn"
)

// ReadWeights reads a rows x cols int8 weight image. Files ending in .coe are
// read as Vivado coefficient files, anything else as one hex byte per line.
func ReadWeights(path string, rows, cols int) (snn.Int8Matrix, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return snn.Int8Matrix{}, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	if err != nil {
		return snn.Int8Matrix{}, err
	}
	defer f.Close()

	var data []int8
	if strings.EqualFold(filepath.Ext(path), ".coe") {
		data, err = ParseCOE(f)
	} else {
		data, err = ParseHex(f)
	}
	if err != nil {
		return snn.Int8Matrix{}, fmt.Errorf("%s: %w", path, err)
	}

	m, err := snn.NewInt8Matrix(rows, cols, data)
	if err != nil {
		return snn.Int8Matrix{}, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// ParseHex reads two's complement bytes, one per line. Blank lines and //
// comments are skipped.
func ParseHex(r io.Reader) ([]int8, error) {
	var out []int8

	err := scanLines(r, func(lineNo int, line string) error {
		b, err := parseByte(line)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
		}
		out = append(out, b)
		return nil
	})

	return out, err
}

// ParseCOE reads a memory_initialization_vector of hex bytes.
func ParseCOE(r io.Reader) ([]int8, error) {
	var (
		out     []int8
		inVec   bool
		radixOK bool
	)

	err := scanLines(r, func(lineNo int, line string) error {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "memory_initialization_radix"):
			radixOK = strings.TrimSuffix(afterEq(lower), ";") == "16"
			return nil
		case strings.HasPrefix(lower, "memory_initialization_vector"):
			inVec = true
			line = afterEq(line)
			if line == "" {
				return nil
			}
		}

		if !inVec {
			return fmt.Errorf("%w: line %d: data before vector", ErrFormat, lineNo)
		}

		for _, tok := range strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ';' || c == ' ' || c == '\t'
		}) {
			b, err := parseByte(tok)
			if err != nil {
				return fmt.Errorf("%w: line %d: %v", ErrFormat, lineNo, err)
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !radixOK {
		return nil, fmt.Errorf("%w: radix 16 required", ErrFormat)
	}

	return out, nil
}

func afterEq(s string) string {
	_, v, _ := strings.Cut(s, "=")
	return strings.TrimSpace(v)
}

func parseByte(s string) (int8, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return int8(uint8(v)), nil
}

// scanLines calls fn with every non-empty line, stripped of // comments.
func scanLines(r io.Reader, fn func(lineNo int, line string) error) error {
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := sc.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := fn(lineNo, line); err != nil {
			return err
		}
	}

	return sc.Err()
}

// WriteHex writes the bare one-byte-per-line image used in exports.
func WriteHex(w io.Writer, m snn.Int8Matrix) error {
	return WriteMem(w, m, "")
}

// WriteMem writes a $readmemh image: an optional // header, then %02X per
// byte in row-major order.
func WriteMem(w io.Writer, m snn.Int8Matrix, label string) error {
	bw := bufio.NewWriter(w)

	if label != "" {
		fmt.Fprintf(bw, "// %s: shape=[%d, %d], row-major, int8 two's complement\n",
			label, m.Rows(), m.Cols())
	}
	for _, v := range m.Flat() {
		fmt.Fprintf(bw, "%02X\n", uint8(v))
	}

	return bw.Flush()
}

// WriteCOE writes a Vivado block RAM coefficient file.
func WriteCOE(w io.Writer, m snn.Int8Matrix) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "memory_initialization_radix=16;")
	fmt.Fprintln(bw, "memory_initialization_vector=")

	flat := m.Flat()
	for i, v := range flat {
		sep := ","
		if i == len(flat)-1 {
			sep = ";"
		}
		fmt.Fprintf(bw, "%02X%s\n", uint8(v), sep)
	}

	return bw.Flush()
}
