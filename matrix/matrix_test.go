package matrix

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustFromArray(t *testing.T, a [][]float64) *Matrix {
	t.Helper()
	m, err := FromArray(a)
	require.NoError(t, err)
	return m
}

func TestFromArrayShape(t *testing.T) {
	m := mustFromArray(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, m.ToArray())

	_, err := FromArray([][]float64{{1, 2}, {3}})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = FromArray(nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAddSubtractRoundTrip(t *testing.T) {
	a := Random(4, 3, -5, 5)
	b := Random(4, 3, -5, 5)
	sum, err := a.Add(b)
	require.NoError(t, err)
	back, err := sum.Subtract(b)
	require.NoError(t, err)
	assert.True(t, back.EqualApprox(a, 1e-12))
}

func TestBinaryOpsDoNotMutateOperands(t *testing.T) {
	a := mustFromArray(t, [][]float64{{1, 2}, {3, 4}})
	b := mustFromArray(t, [][]float64{{5, 6}, {7, 8}})
	aCopy, bCopy := a.Clone(), b.Clone()

	_, err := a.Add(b)
	require.NoError(t, err)
	_, err = a.Multiply(b)
	require.NoError(t, err)
	_, err = a.HadamardProduct(b)
	require.NoError(t, err)
	a.MultiplyScalar(3)
	a.Transpose()

	assert.True(t, a.Equal(aCopy))
	assert.True(t, b.Equal(bCopy))
}

func TestShapeMismatch(t *testing.T) {
	a := New(2, 3)
	b := New(3, 2)

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = a.Subtract(b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = a.HadamardProduct(b)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = a.Multiply(New(2, 2))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = a.Multiply(b)
	assert.NoError(t, err)
}

func TestMultiply(t *testing.T) {
	a := mustFromArray(t, [][]float64{{1, 2}, {3, 4}})
	b := mustFromArray(t, [][]float64{{5, 6}, {7, 8}})
	c, err := a.Multiply(b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{19, 22}, {43, 50}}, c.ToArray())
}

func TestIdentityMultiply(t *testing.T) {
	a := Random(3, 5, -1, 1)
	got, err := Identity(3).Multiply(a)
	require.NoError(t, err)
	assert.True(t, got.Equal(a))
}

func TestTransposeTwice(t *testing.T) {
	a := Random(2, 7, -1, 1)
	tt := a.Transpose()
	assert.Equal(t, 7, tt.Rows())
	assert.Equal(t, 2, tt.Cols())
	assert.True(t, tt.Transpose().Equal(a))
}

func TestGetSetBounds(t *testing.T) {
	m := New(2, 2)
	require.NoError(t, m.Set(1, 1, 9))
	v, err := m.Get(1, 1)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	_, err = m.Get(2, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.ErrorIs(t, m.Set(0, -1, 1), ErrIndexOutOfRange)
}

func TestScalarOpsAndMap(t *testing.T) {
	m := mustFromArray(t, [][]float64{{1, -2}, {0, 4}})
	assert.Equal(t, [][]float64{{2, -4}, {0, 8}}, m.MultiplyScalar(2).ToArray())
	assert.Equal(t, [][]float64{{2, -1}, {1, 5}}, m.AddScalar(1).ToArray())

	idx := m.Map(func(_ float64, i, j int) float64 { return float64(i*10 + j) })
	assert.Equal(t, [][]float64{{0, 1}, {10, 11}}, idx.ToArray())

	var visited []float64
	m.ForEach(func(v float64, _, _ int) { visited = append(visited, v) })
	assert.Equal(t, []float64{1, -2, 0, 4}, visited)
}

func TestRandomizeRange(t *testing.T) {
	m := Random(20, 20, -0.5, 0.25)
	m.ForEach(func(v float64, _, _ int) {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.LessOrEqual(t, v, 0.25)
	})
}

func TestFactories(t *testing.T) {
	assert.Equal(t, 6.0, Ones(2, 3).Sum())
	assert.Equal(t, 0.0, Zeros(2, 3).Sum())
	assert.Equal(t, 3.0, Identity(3).Sum())
}

func TestColumnSumsAndBroadcast(t *testing.T) {
	m := mustFromArray(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, [][]float64{{5, 7, 9}}, m.ColumnSums().ToArray())

	bias := mustFromArray(t, [][]float64{{10, 20, 30}})
	out, err := m.AddRowVector(bias)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{11, 22, 33}, {14, 25, 36}}, out.ToArray())

	_, err = m.AddRowVector(New(1, 2))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestRowSelection(t *testing.T) {
	m := mustFromArray(t, [][]float64{{1, 2}, {3, 4}, {5, 6}})
	s, err := m.SliceRows(1, 3)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3, 4}, {5, 6}}, s.ToArray())

	sel, err := m.SelectRows([]int{2, 0})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5, 6}, {1, 2}}, sel.ToArray())

	_, err = m.SelectRows([]int{3})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, 1, m.ArgMaxRow(0))
}
