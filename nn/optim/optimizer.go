// Package optim implements the parameter update rules shared by every layer
// of a model.
package optim

import (
	"errors"
	"fmt"

	"neuralimg/matrix"
)

// ErrUnsupportedOptimizer is returned by New for an unknown optimizer type.
var ErrUnsupportedOptimizer = errors.New("optim: unsupported optimizer")

// Type names an optimizer variant.
type Type string

const (
	TypeSGD  Type = "sgd"
	TypeAdam Type = "adam"
)

// Config is the persisted description of an optimizer.
type Config struct {
	Type         Type    `json:"type"`
	LearningRate float64 `json:"learningRate"`
	Beta1        float64 `json:"beta1,omitempty"`
	Beta2        float64 `json:"beta2,omitempty"`
	Epsilon      float64 `json:"epsilon,omitempty"`
}

// Optimizer turns a parameter and its gradient into the updated parameter.
//
// key identifies the parameter (for example "dense_1/weights") so that
// stateful optimizers can keep per-parameter memory; SGD ignores it.
// UpdateWeights never mutates its arguments.
type Optimizer interface {
	UpdateWeights(key string, weights, gradients *matrix.Matrix) (*matrix.Matrix, error)
	LearningRate() float64
	SetLearningRate(lr float64)
	Config() Config
}

// New builds an optimizer from its config. Zero fields take the variant's defaults.
func New(cfg Config) (Optimizer, error) {
	switch cfg.Type {
	case TypeSGD, "":
		return NewSGD(cfg.LearningRate), nil
	case TypeAdam:
		return NewAdam(AdamConfig{
			LR:      cfg.LearningRate,
			Beta1:   cfg.Beta1,
			Beta2:   cfg.Beta2,
			Epsilon: cfg.Epsilon,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOptimizer, cfg.Type)
	}
}

func checkShapes(weights, gradients *matrix.Matrix) error {
	wr, wc := weights.Dims()
	gr, gc := gradients.Dims()
	if wr != gr || wc != gc {
		return fmt.Errorf("%w: weights %dx%d, gradients %dx%d", matrix.ErrShapeMismatch, wr, wc, gr, gc)
	}
	return nil
}
