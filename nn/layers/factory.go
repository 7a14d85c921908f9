package layers

import (
	"encoding/json"
	"fmt"
)

// New builds the layer variant named by cfg.Type.
func New(cfg Config) (Layer, error) {
	switch cfg.Type {
	case TypeInput:
		return NewInput(cfg)
	case TypeDense:
		return NewDense(cfg)
	case TypeConvolutional:
		return NewConv2D(cfg)
	case TypePooling:
		return NewPool2D(cfg)
	case TypeFlatten:
		return NewFlatten(cfg)
	default:
		return nil, fmt.Errorf("%w: layer type %q", ErrUnsupportedOperation, cfg.Type)
	}
}

type encoded struct {
	Config
	Weights map[string][][]float64 `json:"weights,omitempty"`
}

// ToJSON encodes a layer's config and current weights.
func ToJSON(l Layer) ([]byte, error) {
	return json.Marshal(encoded{Config: l.Config(), Weights: l.Weights()})
}

// FromJSON rebuilds a layer written by ToJSON. A payload without weights
// yields an uninitialized layer.
func FromJSON(data []byte) (Layer, error) {
	var e encoded
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: decode layer: %v", ErrValidation, err)
	}
	l, err := New(e.Config)
	if err != nil {
		return nil, err
	}
	if len(e.Weights) > 0 {
		if err := l.SetWeights(e.Weights); err != nil {
			return nil, err
		}
	}
	return l, nil
}
