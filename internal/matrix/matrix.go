// Package matrix holds the row-major feature matrices passed between the
// extraction pipeline, the artifact cache and the classifier.
//
// Unlike gonum's mat.Dense a Matrix may have zero rows, which is what an
// empty test split produces.
package matrix

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when matrices that must be row-aligned are not.
var ErrShapeMismatch = errors.New("matrix shape mismatch")

type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// New returns a zero-filled rows x cols matrix.
func New(rows, cols int) Matrix {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("matrix: negative dimensions %dx%d", rows, cols))
	}
	return Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Row returns row i without copying.
func (m Matrix) Row(i int) []float64 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// SetRow copies v into row i.
func (m Matrix) SetRow(i int, v []float64) error {
	if i < 0 || i >= m.Rows {
		return fmt.Errorf("row %d out of range [0, %d)", i, m.Rows)
	}
	if len(v) != m.Cols {
		return fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, i, len(v), m.Cols)
	}
	copy(m.Row(i), v)
	return nil
}

func (m Matrix) Empty() bool {
	return m.Rows == 0
}

func (m Matrix) Equal(o Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Dense returns a gonum view sharing m's storage, or nil for an empty matrix.
func (m Matrix) Dense() *mat.Dense {
	if m.Rows == 0 || m.Cols == 0 {
		return nil
	}
	return mat.NewDense(m.Rows, m.Cols, m.Data)
}

// FromRows builds a matrix from equal-length rows. A nil or empty slice
// yields a 0 x cols matrix.
func FromRows(rows [][]float64, cols int) (Matrix, error) {
	m := New(len(rows), cols)
	for i, r := range rows {
		if err := m.SetRow(i, r); err != nil {
			return Matrix{}, err
		}
	}
	return m, nil
}

// HStack concatenates matrices column-wise. All inputs must have the same
// number of rows.
func HStack(ms ...Matrix) (Matrix, error) {
	if len(ms) == 0 {
		return Matrix{}, errors.New("nothing to stack")
	}
	rows, cols := ms[0].Rows, 0
	for i, m := range ms {
		if m.Rows != rows {
			return Matrix{}, fmt.Errorf("%w: block %d has %d rows, block 0 has %d", ErrShapeMismatch, i, m.Rows, rows)
		}
		cols += m.Cols
	}

	out := New(rows, cols)
	for r := 0; r < rows; r++ {
		dst := out.Row(r)
		off := 0
		for _, m := range ms {
			copy(dst[off:], m.Row(r))
			off += m.Cols
		}
	}
	return out, nil
}

// wireMatrix is the gob payload; Matrix itself implements
// encoding.BinaryMarshaler and would recurse.
type wireMatrix struct {
	Rows int
	Cols int
	Data []float64
}

// MarshalBinary gob-encodes the matrix for the artifact cache.
func (m Matrix) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wireMatrix(m)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Matrix) UnmarshalBinary(data []byte) error {
	var decoded wireMatrix
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&decoded); err != nil {
		return err
	}
	if len(decoded.Data) != decoded.Rows*decoded.Cols {
		return fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(decoded.Data), decoded.Rows, decoded.Cols)
	}
	if decoded.Data == nil {
		decoded.Data = []float64{}
	}
	*m = Matrix(decoded)
	return nil
}

// Shape implements the artifact store's shape reporting.
func (m Matrix) Shape() (rows, cols int) {
	return m.Rows, m.Cols
}
