package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHStackKeepsRowAlignment(t *testing.T) {
	a, err := FromRows([][]float64{{1, 2}, {3, 4}}, 2)
	require.NoError(t, err)
	b, err := FromRows([][]float64{{5}, {6}}, 1)
	require.NoError(t, err)

	out, err := HStack(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Rows)
	assert.Equal(t, 3, out.Cols)
	assert.Equal(t, []float64{1, 2, 5}, out.Row(0))
	assert.Equal(t, []float64{3, 4, 6}, out.Row(1))
}

// Matrices computed from different image lists must not be concatenated.
func TestHStackRejectsRowMismatch(t *testing.T) {
	a := New(20, 52)
	b := New(19, 14)

	_, err := HStack(a, b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestHStackEmptyRows(t *testing.T) {
	out, err := HStack(New(0, 52), New(0, 14), New(0, 2))
	require.NoError(t, err)
	assert.True(t, out.Empty())
	assert.Equal(t, 68, out.Cols)
	assert.Nil(t, out.Dense())
}

func TestSetRowChecksWidth(t *testing.T) {
	m := New(2, 3)
	assert.ErrorIs(t, m.SetRow(0, []float64{1, 2}), ErrShapeMismatch)
	assert.Error(t, m.SetRow(2, []float64{1, 2, 3}))
	require.NoError(t, m.SetRow(1, []float64{7, 8, 9}))
	assert.Equal(t, 8.0, m.Dense().At(1, 1))
}

func TestBinaryEncoding(t *testing.T) {
	m, err := FromRows([][]float64{{0.5, -1}, {2, 3}}, 2)
	require.NoError(t, err)

	data, err := m.MarshalBinary()
	require.NoError(t, err)

	var got Matrix
	require.NoError(t, got.UnmarshalBinary(data))
	assert.True(t, m.Equal(got))

	assert.Error(t, got.UnmarshalBinary([]byte("not gob")))
}

func TestBinaryEncodingEmpty(t *testing.T) {
	data, err := New(0, 14).MarshalBinary()
	require.NoError(t, err)

	var got Matrix
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, 0, got.Rows)
	assert.Equal(t, 14, got.Cols)
}
