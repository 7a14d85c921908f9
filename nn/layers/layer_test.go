package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

func allLayerConfigs() []Config {
	return []Config{
		{Type: TypeInput, InputShape: Shape{4, 4, 1}},
		{Type: TypeDense, InputShape: Shape{16}, Units: 3, Activation: ReLU},
		{Type: TypeConvolutional, InputShape: Shape{4, 4, 1}, Filters: 2, KernelSize: []int{3}},
		{Type: TypePooling, InputShape: Shape{4, 4, 1}},
		{Type: TypeFlatten, InputShape: Shape{4, 4, 1}},
	}
}

func TestBackwardBeforeForward(t *testing.T) {
	for _, cfg := range allLayerConfigs() {
		t.Run(string(cfg.Type), func(t *testing.T) {
			l, err := New(cfg)
			require.NoError(t, err)
			l.Initialize()
			g := matrix.New(1, l.OutputShape().Size())
			_, err = l.Backward(g, optim.NewSGD(0.1))
			assert.ErrorIs(t, err, ErrNoForwardPass)
		})
	}
}

func TestPassThroughLayers(t *testing.T) {
	for _, typ := range []Type{TypeInput, TypeFlatten} {
		l, err := New(Config{Type: typ, InputShape: Shape{2, 2, 1}})
		require.NoError(t, err)
		x := matrix.Random(2, 4, -1, 1)
		y, err := l.Forward(x)
		require.NoError(t, err)
		assert.True(t, y.Equal(x))
		g := matrix.Random(2, 4, -1, 1)
		dx, err := l.Backward(g, optim.NewSGD(1))
		require.NoError(t, err)
		assert.True(t, dx.Equal(g))
		assert.Empty(t, l.Weights())
		assert.ErrorIs(t, l.SetWeights(map[string][][]float64{"x": {{1}}}), ErrValidation)
	}
	f, _ := NewFlatten(Config{InputShape: Shape{2, 3, 4}})
	assert.Equal(t, Shape{24}, f.OutputShape())
}

func TestParamCount(t *testing.T) {
	want := []int{0, 16*3 + 3, 2*3*3*1 + 2, 0, 0}
	for i, cfg := range allLayerConfigs() {
		l, err := New(cfg)
		require.NoError(t, err)
		assert.Equal(t, want[i], ParamCount(l), "%s", cfg.Type)
	}

	d, err := NewDense(Config{InputShape: Shape{16}, Units: 3})
	require.NoError(t, err)
	assert.Equal(t, 51, ParamCount(d))
	assert.Nil(t, d.weights, "counting must not initialize")
	n := 0
	for _, p := range d.Weights() {
		n += len(p) * len(p[0])
	}
	assert.Equal(t, ParamCount(d), n)
}

func TestFactoryUnknownType(t *testing.T) {
	_, err := New(Config{Type: "dropout", InputShape: Shape{3}})
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestJSONRoundTrip(t *testing.T) {
	for _, cfg := range allLayerConfigs() {
		l, err := New(cfg)
		require.NoError(t, err)
		l.Initialize()

		data, err := ToJSON(l)
		require.NoError(t, err)
		back, err := FromJSON(data)
		require.NoError(t, err)

		assert.Equal(t, l.ID(), back.ID())
		assert.Equal(t, l.Type(), back.Type())
		assert.Equal(t, l.OutputShape(), back.OutputShape())
		assert.Equal(t, l.Weights(), back.Weights())
	}
	_, err := FromJSON([]byte(`{"type":`))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestShape(t *testing.T) {
	assert.Equal(t, 0, Shape{}.Size())
	assert.Equal(t, 12, Shape{2, 3, 2}.Size())
	assert.True(t, Shape{1, 2}.Equal(Shape{1, 2}))
	assert.False(t, Shape{1, 2}.Equal(Shape{2}))
	assert.Equal(t, "[28x28x1]", Shape{28, 28, 1}.String())
}
