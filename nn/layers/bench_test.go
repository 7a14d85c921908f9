package layers

import (
	"testing"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

func benchLayer(b *testing.B, l Layer, batch int) {
	b.Helper()
	x := matrix.Random(batch, l.InputShape().Size(), 0, 1)
	g := matrix.Random(batch, l.OutputShape().Size(), -1, 1)
	opt := optim.NewSGD(0.01)
	l.Initialize()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := l.Forward(x); err != nil {
			b.Fatal(err)
		}
		if _, err := l.Backward(g, opt); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDense784x128(b *testing.B) {
	d, err := NewDense(Config{InputShape: Shape{784}, Units: 128, Activation: ReLU})
	if err != nil {
		b.Fatal(err)
	}
	benchLayer(b, d, 32)
}

func BenchmarkConv2D_28x28x1_8x3x3(b *testing.B) {
	c, err := NewConv2D(Config{InputShape: Shape{28, 28, 1}, Filters: 8, KernelSize: []int{3}, Padding: PaddingSame, Activation: ReLU})
	if err != nil {
		b.Fatal(err)
	}
	benchLayer(b, c, 8)
}

func BenchmarkMaxPool2D_28x28x8(b *testing.B) {
	p, err := NewPool2D(Config{InputShape: Shape{28, 28, 8}})
	if err != nil {
		b.Fatal(err)
	}
	benchLayer(b, p, 8)
}
