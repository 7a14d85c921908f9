package layers

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

// recorder captures the gradients a layer hands to its optimizer and leaves
// the parameters untouched.
type recorder struct {
	grads map[string]*matrix.Matrix
}

func newRecorder() *recorder { return &recorder{grads: map[string]*matrix.Matrix{}} }

func (r *recorder) UpdateWeights(key string, w, g *matrix.Matrix) (*matrix.Matrix, error) {
	r.grads[key] = g.Clone()
	return w.Clone(), nil
}
func (r *recorder) LearningRate() float64 { return 0 }
func (r *recorder) SetLearningRate(float64) {}
func (r *recorder) Config() optim.Config  { return optim.Config{} }

var fdSettings = &fd.Settings{Formula: fd.Central, Step: 1e-6}

// probe returns sum(forward(x) ⊙ r), whose gradient w.r.t. the output is r.
func probe(t *testing.T, l Layer, x, r *matrix.Matrix) float64 {
	t.Helper()
	out, err := l.Forward(x)
	require.NoError(t, err)
	p, err := out.HadamardProduct(r)
	require.NoError(t, err)
	return p.Sum()
}

func flatten(a [][]float64) []float64 {
	var out []float64
	for _, row := range a {
		out = append(out, row...)
	}
	return out
}

func numericInputGrad(t *testing.T, l Layer, x, r *matrix.Matrix) []float64 {
	rows, cols := x.Dims()
	return fd.Gradient(nil, func(v []float64) float64 {
		in, err := matrix.NewWithData(rows, cols, v)
		require.NoError(t, err)
		return probe(t, l, in, r)
	}, flatten(x.ToArray()), fdSettings)
}

func numericParamGrad(t *testing.T, l Layer, x, r *matrix.Matrix, key string) []float64 {
	base := l.Weights()
	rows, cols := len(base[key]), len(base[key][0])
	defer func() { require.NoError(t, l.SetWeights(base)) }()

	return fd.Gradient(nil, func(v []float64) float64 {
		w := make(map[string][][]float64, len(base))
		for k, a := range base {
			w[k] = a
		}
		p, err := matrix.NewWithData(rows, cols, v)
		require.NoError(t, err)
		w[key] = p.ToArray()
		require.NoError(t, l.SetWeights(w))
		return probe(t, l, x, r)
	}, flatten(base[key]), fdSettings)
}

// checkGradients compares Backward against central differences for the
// input and for every parameter of l.
func checkGradients(t *testing.T, l Layer, x *matrix.Matrix) {
	t.Helper()
	l.Initialize()
	out, err := l.Forward(x)
	require.NoError(t, err)
	r := matrix.Random(out.Rows(), out.Cols(), -1, 1)

	rec := newRecorder()
	dx, err := l.Backward(r, rec)
	require.NoError(t, err)

	require.InDeltaSlice(t, numericInputGrad(t, l, x, r), flatten(dx.ToArray()), 1e-5, "input gradient")
	for key := range l.Weights() {
		g, ok := rec.grads[l.ID()+"/"+key]
		require.True(t, ok, "no gradient recorded for %s", key)
		require.InDeltaSlice(t, numericParamGrad(t, l, x, r, key), flatten(g.ToArray()), 1e-5, key)
	}
}
