package optim

import "neuralimg/matrix"

// DefaultLearningRate is used when a zero learning rate is configured.
const DefaultLearningRate = 0.01

// SGD implements plain stochastic gradient descent:
//
//	param = param - lr * gradient
//
// It keeps no per-parameter state.
type SGD struct {
	lr float64
}

// NewSGD creates an SGD optimizer. A non-positive lr selects DefaultLearningRate.
func NewSGD(lr float64) *SGD {
	if lr <= 0 {
		lr = DefaultLearningRate
	}
	return &SGD{lr: lr}
}

// UpdateWeights returns weights - lr*gradients.
func (s *SGD) UpdateWeights(_ string, weights, gradients *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkShapes(weights, gradients); err != nil {
		return nil, err
	}
	return weights.Subtract(gradients.MultiplyScalar(s.lr))
}

func (s *SGD) LearningRate() float64 { return s.lr }

func (s *SGD) SetLearningRate(lr float64) { s.lr = lr }

func (s *SGD) Config() Config {
	return Config{Type: TypeSGD, LearningRate: s.lr}
}
