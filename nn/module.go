package nn

import (
	"fmt"

	"neuralimg/matrix"
	"neuralimg/nn/layers"
	"neuralimg/nn/optim"
)

// Sequential chains layers in order.
type Sequential struct {
	Layers []layers.Layer
}

// Initialize initializes every layer. Layers ignore repeated calls.
func (s *Sequential) Initialize() {
	for _, l := range s.Layers {
		l.Initialize()
	}
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *matrix.Matrix) (*matrix.Matrix, error) {
	out := x
	for i, l := range s.Layers {
		var err error
		out, err = l.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d forward: %w", i, err)
		}
	}
	return out, nil
}

// Backward applies Backward in reverse order, threading the gradient from
// the output back to the input.
func (s *Sequential) Backward(grad *matrix.Matrix, opt optim.Optimizer) (*matrix.Matrix, error) {
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		var err error
		out, err = s.Layers[i].Backward(out, opt)
		if err != nil {
			return nil, fmt.Errorf("layer %d backward: %w", i, err)
		}
	}
	return out, nil
}

// Last returns the output layer, or nil for an empty chain.
func (s *Sequential) Last() layers.Layer {
	if len(s.Layers) == 0 {
		return nil
	}
	return s.Layers[len(s.Layers)-1]
}
