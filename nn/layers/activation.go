package layers

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"neuralimg/matrix"
)

// ActivationType names an activation function.
type ActivationType string

const (
	ActivationNone ActivationType = ""
	Sigmoid        ActivationType = "sigmoid"
	ReLU           ActivationType = "relu"
	Tanh           ActivationType = "tanh"
	Softmax        ActivationType = "softmax"
	Linear         ActivationType = "linear"
)

// Activation is a stateless element-wise (or, for Softmax, row-wise)
// function together with its derivative. Backward(x) is the derivative
// evaluated at the pre-activation x.
type Activation interface {
	Type() ActivationType
	Forward(x float64) (float64, error)
	Backward(x float64) (float64, error)
	ForwardMatrix(m *matrix.Matrix) *matrix.Matrix
	BackwardMatrix(m *matrix.Matrix) *matrix.Matrix
}

// NewActivation returns the shared instance for t. ActivationNone maps to Linear.
func NewActivation(t ActivationType) (Activation, error) {
	switch t {
	case Sigmoid:
		return SigmoidActivation{}, nil
	case ReLU:
		return ReLUActivation{}, nil
	case Tanh:
		return TanhActivation{}, nil
	case Softmax:
		return SoftmaxActivation{}, nil
	case Linear, ActivationNone:
		return LinearActivation{}, nil
	default:
		return nil, fmt.Errorf("%w: activation %q", ErrUnsupportedOperation, t)
	}
}

type elementwise func(float64) float64

func (f elementwise) apply(m *matrix.Matrix) *matrix.Matrix {
	return m.Map(func(v float64, _, _ int) float64 { return f(v) })
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// SigmoidActivation is σ(x) = 1/(1+e^-x).
type SigmoidActivation struct{}

func (SigmoidActivation) Type() ActivationType { return Sigmoid }

func (SigmoidActivation) Forward(x float64) (float64, error) { return sigmoid(x), nil }

func (SigmoidActivation) Backward(x float64) (float64, error) { return sigmoidPrime(x), nil }

func sigmoidPrime(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

func (SigmoidActivation) ForwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return elementwise(sigmoid).apply(m)
}

func (SigmoidActivation) BackwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return elementwise(sigmoidPrime).apply(m)
}

// ReLUActivation is max(0, x). Its derivative at 0 is 0.
type ReLUActivation struct{}

func (ReLUActivation) Type() ActivationType { return ReLU }

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func reluPrime(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (ReLUActivation) Forward(x float64) (float64, error) { return relu(x), nil }

func (ReLUActivation) Backward(x float64) (float64, error) { return reluPrime(x), nil }

func (ReLUActivation) ForwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return elementwise(relu).apply(m)
}

func (ReLUActivation) BackwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return elementwise(reluPrime).apply(m)
}

// TanhActivation is tanh(x).
type TanhActivation struct{}

func (TanhActivation) Type() ActivationType { return Tanh }

func tanhPrime(x float64) float64 {
	t := math.Tanh(x)
	return 1 - t*t
}

func (TanhActivation) Forward(x float64) (float64, error) { return math.Tanh(x), nil }

func (TanhActivation) Backward(x float64) (float64, error) { return tanhPrime(x), nil }

func (TanhActivation) ForwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return elementwise(math.Tanh).apply(m)
}

func (TanhActivation) BackwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return elementwise(tanhPrime).apply(m)
}

// LinearActivation is the identity.
type LinearActivation struct{}

func (LinearActivation) Type() ActivationType { return Linear }

func (LinearActivation) Forward(x float64) (float64, error) { return x, nil }

func (LinearActivation) Backward(float64) (float64, error) { return 1, nil }

func (LinearActivation) ForwardMatrix(m *matrix.Matrix) *matrix.Matrix { return m.Clone() }

func (LinearActivation) BackwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return matrix.Ones(m.Dims())
}

// SoftmaxActivation normalizes each row into a probability distribution.
// It has no scalar form. Its BackwardMatrix is all ones: the softmax
// Jacobian is folded into the Cross-Entropy gradient, which is taken with
// respect to the logits, so the layer passes that gradient through.
type SoftmaxActivation struct{}

func (SoftmaxActivation) Type() ActivationType { return Softmax }

func (SoftmaxActivation) Forward(float64) (float64, error) {
	return 0, fmt.Errorf("%w: softmax has no scalar forward", ErrUnsupportedOperation)
}

func (SoftmaxActivation) Backward(float64) (float64, error) {
	return 0, fmt.Errorf("%w: softmax has no scalar derivative", ErrUnsupportedOperation)
}

// ForwardMatrix subtracts each row's max before exponentiating.
func (SoftmaxActivation) ForwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	out := m.Clone()
	for i := 0; i < out.Rows(); i++ {
		SoftmaxVector(out.RawRow(i))
	}
	return out
}

func (SoftmaxActivation) BackwardMatrix(m *matrix.Matrix) *matrix.Matrix {
	return matrix.Ones(m.Dims())
}

// SoftmaxVector normalizes v in place.
func SoftmaxVector(v []float64) {
	maxV := floats.Max(v)
	for j := range v {
		v[j] = math.Exp(v[j] - maxV)
	}
	floats.Scale(1/floats.Sum(v), v)
}
