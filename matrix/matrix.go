// Package matrix provides the dense 2D numeric array used throughout the
// network engine. A Matrix is backed by a gonum mat.Dense and is immutable by
// convention: every operation returns a new Matrix and leaves its operands
// untouched. Set and Randomize are the only mutating methods.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Matrix is a rows×cols array of float64 values.
type Matrix struct {
	d *mat.Dense
}

// New returns a zero-filled rows×cols matrix. It panics if either dimension
// is not positive.
func New(rows, cols int) *Matrix {
	return &Matrix{d: mat.NewDense(rows, cols, nil)}
}

// NewWithData wraps a row-major slice of length rows*cols. The slice is copied.
func NewWithData(rows, cols int, data []float64) (*Matrix, error) {
	if rows <= 0 || cols <= 0 || len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for %dx%d", ErrShapeMismatch, len(data), rows, cols)
	}
	return &Matrix{d: mat.NewDense(rows, cols, append([]float64(nil), data...))}, nil
}

// Zeros is an alias for New.
func Zeros(rows, cols int) *Matrix {
	return New(rows, cols)
}

// Ones returns a rows×cols matrix with every cell set to 1.
func Ones(rows, cols int) *Matrix {
	return Fill(rows, cols, 1)
}

// Fill returns a rows×cols matrix with every cell set to v.
func Fill(rows, cols int, v float64) *Matrix {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = v
	}
	return &Matrix{d: mat.NewDense(rows, cols, data)}
}

// Identity returns the n×n identity matrix.
func Identity(n int) *Matrix {
	m := New(n, n)
	for i := 0; i < n; i++ {
		m.d.Set(i, i, 1)
	}
	return m
}

// Random returns a rows×cols matrix filled i.i.d. uniform in [min, max].
func Random(rows, cols int, min, max float64) *Matrix {
	m := New(rows, cols)
	m.Randomize(min, max)
	return m
}

// FromArray builds a matrix from a non-empty rectangular 2D slice.
func FromArray(a [][]float64) (*Matrix, error) {
	if len(a) == 0 || len(a[0]) == 0 {
		return nil, fmt.Errorf("%w: empty array", ErrShapeMismatch)
	}
	rows, cols := len(a), len(a[0])
	data := make([]float64, 0, rows*cols)
	for i, row := range a {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return &Matrix{d: mat.NewDense(rows, cols, data)}, nil
}

// FromRow returns a 1×len(v) matrix.
func FromRow(v []float64) (*Matrix, error) {
	return NewWithData(1, len(v), v)
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	r, _ := m.d.Dims()
	return r
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	_, c := m.d.Dims()
	return c
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (int, int) {
	return m.d.Dims()
}

// Size returns rows*cols.
func (m *Matrix) Size() int {
	r, c := m.d.Dims()
	return r * c
}

func (m *Matrix) inBounds(i, j int) bool {
	r, c := m.d.Dims()
	return i >= 0 && i < r && j >= 0 && j < c
}

// Get returns the value at (i, j).
func (m *Matrix) Get(i, j int) (float64, error) {
	if !m.inBounds(i, j) {
		return 0, fmt.Errorf("%w: (%d, %d) in %dx%d", ErrIndexOutOfRange, i, j, m.Rows(), m.Cols())
	}
	return m.d.At(i, j), nil
}

// Set writes v at (i, j).
func (m *Matrix) Set(i, j int, v float64) error {
	if !m.inBounds(i, j) {
		return fmt.Errorf("%w: (%d, %d) in %dx%d", ErrIndexOutOfRange, i, j, m.Rows(), m.Cols())
	}
	m.d.Set(i, j, v)
	return nil
}

// At returns the value at (i, j) without an error return. It panics on an
// invalid index, like mat.Dense.
func (m *Matrix) At(i, j int) float64 {
	return m.d.At(i, j)
}

func (m *Matrix) sameShape(o *Matrix, op string) error {
	r1, c1 := m.d.Dims()
	r2, c2 := o.d.Dims()
	if r1 != r2 || c1 != c2 {
		return fmt.Errorf("%w: %s %dx%d and %dx%d", ErrShapeMismatch, op, r1, c1, r2, c2)
	}
	return nil
}

// Add returns m + o.
func (m *Matrix) Add(o *Matrix) (*Matrix, error) {
	if err := m.sameShape(o, "add"); err != nil {
		return nil, err
	}
	out := New(m.Dims())
	out.d.Add(m.d, o.d)
	return out, nil
}

// Subtract returns m - o.
func (m *Matrix) Subtract(o *Matrix) (*Matrix, error) {
	if err := m.sameShape(o, "subtract"); err != nil {
		return nil, err
	}
	out := New(m.Dims())
	out.d.Sub(m.d, o.d)
	return out, nil
}

// Multiply returns the matrix product m·o. It requires m.Cols() == o.Rows().
func (m *Matrix) Multiply(o *Matrix) (*Matrix, error) {
	r, k := m.d.Dims()
	k2, c := o.d.Dims()
	if k != k2 {
		return nil, fmt.Errorf("%w: multiply %dx%d by %dx%d", ErrShapeMismatch, r, k, k2, c)
	}
	out := New(r, c)
	out.d.Mul(m.d, o.d)
	return out, nil
}

// HadamardProduct returns the element-wise product of m and o.
func (m *Matrix) HadamardProduct(o *Matrix) (*Matrix, error) {
	if err := m.sameShape(o, "hadamard"); err != nil {
		return nil, err
	}
	out := New(m.Dims())
	out.d.MulElem(m.d, o.d)
	return out, nil
}

// Transpose returns mᵗ.
func (m *Matrix) Transpose() *Matrix {
	return &Matrix{d: mat.DenseCopyOf(m.d.T())}
}

// MultiplyScalar returns s*m.
func (m *Matrix) MultiplyScalar(s float64) *Matrix {
	out := New(m.Dims())
	out.d.Scale(s, m.d)
	return out
}

// AddScalar returns m with s added to every cell.
func (m *Matrix) AddScalar(s float64) *Matrix {
	return m.Map(func(v float64, _, _ int) float64 { return v + s })
}

// Map returns a new matrix with fn applied to every cell.
func (m *Matrix) Map(fn func(v float64, i, j int) float64) *Matrix {
	out := New(m.Dims())
	out.d.Apply(func(i, j int, v float64) float64 { return fn(v, i, j) }, m.d)
	return out
}

// ForEach calls fn for every cell in row-major order.
func (m *Matrix) ForEach(fn func(v float64, i, j int)) {
	r, c := m.d.Dims()
	for i := 0; i < r; i++ {
		for j, v := range m.d.RawRowView(i)[:c] {
			fn(v, i, j)
		}
	}
}

// Randomize fills every cell in place with i.i.d. uniform samples in [min, max].
func (m *Matrix) Randomize(min, max float64) {
	dist := distuv.Uniform{Min: min, Max: max}
	r, c := m.d.Dims()
	for i := 0; i < r; i++ {
		row := m.d.RawRowView(i)
		for j := 0; j < c; j++ {
			row[j] = dist.Rand()
		}
	}
}

// Clone returns a deep copy of m.
func (m *Matrix) Clone() *Matrix {
	return &Matrix{d: mat.DenseCopyOf(m.d)}
}

// ToArray returns a copy of the cells as a 2D slice.
func (m *Matrix) ToArray() [][]float64 {
	r, c := m.d.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = append([]float64(nil), m.d.RawRowView(i)[:c]...)
	}
	return out
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.d)
}

// RawRow returns row i without copying. Writes through it mutate m.
func (m *Matrix) RawRow(i int) []float64 {
	_, c := m.d.Dims()
	return m.d.RawRowView(i)[:c]
}

// SliceRows returns a copy of rows [from, to).
func (m *Matrix) SliceRows(from, to int) (*Matrix, error) {
	r, c := m.d.Dims()
	if from < 0 || to > r || from >= to {
		return nil, fmt.Errorf("%w: rows [%d, %d) of %d", ErrIndexOutOfRange, from, to, r)
	}
	return &Matrix{d: mat.DenseCopyOf(m.d.Slice(from, to, 0, c))}, nil
}

// SelectRows returns a new matrix made of the given rows, in order.
func (m *Matrix) SelectRows(idx []int) (*Matrix, error) {
	r, c := m.d.Dims()
	if len(idx) == 0 {
		return nil, fmt.Errorf("%w: no rows selected", ErrShapeMismatch)
	}
	out := New(len(idx), c)
	for k, i := range idx {
		if i < 0 || i >= r {
			return nil, fmt.Errorf("%w: row %d of %d", ErrIndexOutOfRange, i, r)
		}
		out.d.SetRow(k, m.d.RawRowView(i)[:c])
	}
	return out, nil
}

// ColumnSums returns a 1×cols matrix holding the sum of each column.
func (m *Matrix) ColumnSums() *Matrix {
	r, c := m.d.Dims()
	out := New(1, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		out.d.Set(0, j, floats.Sum(mat.Col(col, j, m.d)))
	}
	return out
}

// AddRowVector adds the 1×cols matrix v to every row of m.
func (m *Matrix) AddRowVector(v *Matrix) (*Matrix, error) {
	r, c := m.d.Dims()
	vr, vc := v.d.Dims()
	if vr != 1 || vc != c {
		return nil, fmt.Errorf("%w: broadcast %dx%d over %dx%d", ErrShapeMismatch, vr, vc, r, c)
	}
	out := m.Clone()
	bias := v.d.RawRowView(0)[:c]
	for i := 0; i < r; i++ {
		floats.Add(out.d.RawRowView(i)[:c], bias)
	}
	return out, nil
}

// Sum returns the sum of all cells.
func (m *Matrix) Sum() float64 {
	return mat.Sum(m.d)
}

// ArgMaxRow returns the column index of the largest value in row i.
func (m *Matrix) ArgMaxRow(i int) int {
	return floats.MaxIdx(m.RawRow(i))
}

// Equal reports whether m and o have the same shape and identical cells.
func (m *Matrix) Equal(o *Matrix) bool {
	return mat.Equal(m.d, o.d)
}

// EqualApprox reports whether m and o have the same shape and every cell
// differs by at most tol (absolute or relative).
func (m *Matrix) EqualApprox(o *Matrix, tol float64) bool {
	return mat.EqualApprox(m.d, o.d, tol)
}

// String formats the matrix with gonum's formatter.
func (m *Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.d, mat.Squeeze()))
}
