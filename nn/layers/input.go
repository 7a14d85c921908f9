package layers

import (
	"fmt"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

// Input is the pass-through entry layer. It only declares the sample shape.
type Input struct {
	cfg       Config
	forwarded bool
}

// NewInput creates an input layer for samples of the given shape.
func NewInput(cfg Config) (*Input, error) {
	if cfg.InputShape.Size() <= 0 {
		return nil, fmt.Errorf("%w: input layer needs a positive inputShape, got %v", ErrValidation, cfg.InputShape)
	}
	if cfg.ID == "" {
		cfg.ID = newID(TypeInput)
	}
	cfg.Type = TypeInput
	return &Input{cfg: cfg}, nil
}

func (l *Input) ID() string             { return l.cfg.ID }
func (l *Input) Type() Type             { return TypeInput }
func (l *Input) InputShape() Shape      { return l.cfg.InputShape }
func (l *Input) OutputShape() Shape     { return l.cfg.InputShape }
func (l *Input) Activation() Activation { return nil }
func (l *Input) Initialize()            {}
func (l *Input) Config() Config         { return l.cfg }

func (l *Input) Forward(input *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInput(l.cfg.ID, input, l.cfg.InputShape.Size()); err != nil {
		return nil, err
	}
	l.forwarded = true
	return input.Clone(), nil
}

func (l *Input) Backward(outputGradient *matrix.Matrix, _ optim.Optimizer) (*matrix.Matrix, error) {
	if !l.forwarded {
		return nil, fmt.Errorf("%s: %w", l.cfg.ID, ErrNoForwardPass)
	}
	return outputGradient.Clone(), nil
}

func (l *Input) Weights() map[string][][]float64 { return map[string][][]float64{} }

func (l *Input) SetWeights(weights map[string][][]float64) error {
	return checkNoWeights(l.cfg.ID, weights)
}
