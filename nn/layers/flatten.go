package layers

import (
	"fmt"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

// Flatten marks the transition from a volume to flat features. Rows are
// already flat, so forward and backward copy data through unchanged.
type Flatten struct {
	cfg       Config
	forwarded bool
}

// NewFlatten creates a flatten layer for inputs of cfg.InputShape.
func NewFlatten(cfg Config) (*Flatten, error) {
	if cfg.InputShape.Size() <= 0 {
		return nil, fmt.Errorf("%w: flatten layer needs a positive inputShape, got %v", ErrValidation, cfg.InputShape)
	}
	if cfg.ID == "" {
		cfg.ID = newID(TypeFlatten)
	}
	cfg.Type = TypeFlatten
	return &Flatten{cfg: cfg}, nil
}

func (f *Flatten) ID() string             { return f.cfg.ID }
func (f *Flatten) Type() Type             { return TypeFlatten }
func (f *Flatten) InputShape() Shape      { return f.cfg.InputShape }
func (f *Flatten) OutputShape() Shape     { return Shape{f.cfg.InputShape.Size()} }
func (f *Flatten) Activation() Activation { return nil }
func (f *Flatten) Initialize()            {}
func (f *Flatten) Config() Config         { return f.cfg }

func (f *Flatten) Forward(x *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInput(f.cfg.ID, x, f.cfg.InputShape.Size()); err != nil {
		return nil, err
	}
	f.forwarded = true
	return x.Clone(), nil
}

func (f *Flatten) Backward(g *matrix.Matrix, _ optim.Optimizer) (*matrix.Matrix, error) {
	if !f.forwarded {
		return nil, fmt.Errorf("%s: %w", f.cfg.ID, ErrNoForwardPass)
	}
	return g.Clone(), nil
}

func (f *Flatten) Weights() map[string][][]float64 { return map[string][][]float64{} }

func (f *Flatten) SetWeights(weights map[string][][]float64) error {
	return checkNoWeights(f.cfg.ID, weights)
}
