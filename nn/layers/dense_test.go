package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

func newDense(t *testing.T, in, units int, act ActivationType) *Dense {
	t.Helper()
	d, err := NewDense(Config{ID: "d", InputShape: Shape{in}, Units: units, Activation: act})
	require.NoError(t, err)
	return d
}

func TestDenseInitialize(t *testing.T) {
	d := newDense(t, 6, 4, Sigmoid)
	d.Initialize()
	w := d.Weights()
	limit := 1.0 / 2.2360679775 // sqrt(2/10)
	for _, row := range w["weights"] {
		for _, v := range row {
			assert.LessOrEqual(t, v, limit+1e-12)
			assert.GreaterOrEqual(t, v, -limit-1e-12)
		}
	}
	assert.Equal(t, [][]float64{{0, 0, 0, 0}}, w["biases"])

	before := d.Weights()
	d.Initialize()
	assert.Equal(t, before, d.Weights(), "second Initialize is a no-op")
}

func TestDenseLinearForwardIsProduct(t *testing.T) {
	d := newDense(t, 3, 2, Linear)
	weights := [][]float64{{1, 0}, {0, 1}, {2, -1}}
	require.NoError(t, d.SetWeights(map[string][][]float64{
		"weights": weights,
		"biases":  {{0, 0}},
	}))
	x, err := matrix.FromArray([][]float64{{1, 2, 3}, {-1, 0, 4}})
	require.NoError(t, err)
	w, _ := matrix.FromArray(weights)
	want, err := x.Multiply(w)
	require.NoError(t, err)

	out, err := d.Forward(x)
	require.NoError(t, err)
	assert.True(t, out.Equal(want))
}

func TestDenseBiasBroadcast(t *testing.T) {
	d := newDense(t, 1, 2, Linear)
	require.NoError(t, d.SetWeights(map[string][][]float64{
		"weights": {{1, 1}},
		"biases":  {{0.5, -0.5}},
	}))
	x, _ := matrix.FromArray([][]float64{{1}, {2}})
	out, err := d.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1.5, 0.5}, {2.5, 1.5}}, out.ToArray())
}

func TestDenseGradients(t *testing.T) {
	for _, act := range []ActivationType{Linear, Sigmoid, Tanh} {
		t.Run(string(act), func(t *testing.T) {
			d := newDense(t, 4, 3, act)
			checkGradients(t, d, matrix.Random(2, 4, -1, 1))
		})
	}
}

func TestDenseBackwardUsesPreUpdateWeights(t *testing.T) {
	d := newDense(t, 2, 1, Linear)
	require.NoError(t, d.SetWeights(map[string][][]float64{
		"weights": {{2}, {3}},
		"biases":  {{0}},
	}))
	x, _ := matrix.FromArray([][]float64{{1, 1}})
	_, err := d.Forward(x)
	require.NoError(t, err)

	g, _ := matrix.FromArray([][]float64{{1}})
	dx, err := d.Backward(g, optim.NewSGD(0.5))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 3}}, dx.ToArray())

	w := d.Weights()
	assert.Equal(t, [][]float64{{1.5}, {2.5}}, w["weights"])
	assert.Equal(t, [][]float64{{-0.5}}, w["biases"])
}

func TestDenseShapeErrors(t *testing.T) {
	d := newDense(t, 3, 2, ReLU)
	_, err := d.Forward(matrix.New(1, 4))
	assert.ErrorIs(t, err, matrix.ErrShapeMismatch)

	_, err = d.Forward(matrix.New(1, 3))
	require.NoError(t, err)
	_, err = d.Backward(matrix.New(1, 3), optim.NewSGD(0.1))
	assert.ErrorIs(t, err, matrix.ErrShapeMismatch)
}

func TestDenseSetWeightsValidation(t *testing.T) {
	d := newDense(t, 2, 2, Linear)
	d.Initialize()
	before := d.Weights()

	err := d.SetWeights(map[string][][]float64{"weights": {{1, 2}, {3, 4}}})
	assert.ErrorIs(t, err, ErrValidation)
	err = d.SetWeights(map[string][][]float64{"weights": {{1, 2}}, "biases": {{0, 0}}})
	assert.ErrorIs(t, err, ErrValidation)
	err = d.SetWeights(map[string][][]float64{"weights": {{1, 2}, {3}}, "biases": {{0, 0}}})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Equal(t, before, d.Weights(), "failed SetWeights leaves parameters intact")
}

func TestNewDenseValidation(t *testing.T) {
	_, err := NewDense(Config{InputShape: Shape{3}})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewDense(Config{Units: 2})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewDense(Config{InputShape: Shape{3}, Units: 2, Activation: "gelu"})
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	d, err := NewDense(Config{InputShape: Shape{4, 4, 1}, Units: 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{2}, d.OutputShape())
	assert.NotEmpty(t, d.ID())
}
