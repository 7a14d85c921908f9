// Package layers implements the building blocks of a model: the Layer
// contract, its Input, Dense, Convolutional, Pooling and Flatten variants,
// and the activation functions they apply.
//
// Every layer consumes and produces batch×features matrices. Volumes are
// flattened channel-last: feature (y*width+x)*channels+c holds pixel (y, x)
// of channel c.
package layers

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

// Type identifies a layer variant.
type Type string

const (
	TypeInput         Type = "input"
	TypeDense         Type = "dense"
	TypeConvolutional Type = "convolutional"
	TypePooling       Type = "pooling"
	TypeFlatten       Type = "flatten"
)

// Padding selects how a convolution treats borders.
type Padding string

const (
	PaddingValid Padding = "valid"
	PaddingSame  Padding = "same"
)

// PoolMode selects the reduction applied by a pooling layer.
type PoolMode string

const (
	PoolMax     PoolMode = "max"
	PoolAverage PoolMode = "avg"
)

// Shape is the per-sample shape of a layer's input or output: [features]
// for flat data, [height, width, channels] for volumes.
type Shape []int

// Size returns the number of features a sample of this shape flattens to.
func (s Shape) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Equal reports whether s and o have identical dimensions.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, "x") + "]"
}

// Config describes a layer. It is what a layer serializes to and what New
// builds a layer from. Fields irrelevant to a Type are ignored.
type Config struct {
	ID         string         `json:"id,omitempty"`
	Type       Type           `json:"type"`
	InputShape Shape          `json:"inputShape,omitempty"`
	Units      int            `json:"units,omitempty"`
	Activation ActivationType `json:"activation,omitempty"`
	Filters    int            `json:"filters,omitempty"`
	KernelSize []int          `json:"kernelSize,omitempty"`
	Strides    []int          `json:"strides,omitempty"`
	Padding    Padding        `json:"padding,omitempty"`
	PoolSize   []int          `json:"poolSize,omitempty"`
	PoolMode   PoolMode       `json:"poolMode,omitempty"`
}

// Layer is the contract every layer variant implements.
//
// Forward caches whatever Backward needs. Backward computes the parameter
// gradients, hands each parameter and its gradient to the optimizer, stores
// the result and returns the gradient with respect to the layer's input,
// computed with the pre-update parameters. A layer's parameters are written
// only by its own Backward and SetWeights.
type Layer interface {
	ID() string
	Type() Type
	InputShape() Shape
	OutputShape() Shape
	// Activation returns nil for layers that apply none.
	Activation() Activation
	// Initialize allocates and randomizes parameters. A second call is a no-op.
	Initialize()
	Forward(input *matrix.Matrix) (*matrix.Matrix, error)
	Backward(outputGradient *matrix.Matrix, opt optim.Optimizer) (*matrix.Matrix, error)
	// Weights returns a named snapshot of the parameters.
	Weights() map[string][][]float64
	SetWeights(weights map[string][][]float64) error
	Config() Config
}

// ParamCount returns the number of trainable parameters of l, derived from
// its shapes so the layer is never initialized by asking.
func ParamCount(l Layer) int {
	switch v := l.(type) {
	case *Dense:
		return v.inputSize*v.units + v.units
	case *Conv2D:
		return v.filters*v.kh*v.kw*v.inC + v.filters
	default:
		return 0
	}
}

func newID(t Type) string {
	return string(t) + "_" + uuid.NewString()[:8]
}

// pair reads a one- or two-element spatial parameter, defaulting to def.
func pair(name string, v []int, def int) (int, int, error) {
	switch len(v) {
	case 0:
		return def, def, nil
	case 1:
		v = []int{v[0], v[0]}
	case 2:
	default:
		return 0, 0, fmt.Errorf("%w: %s must have 1 or 2 values, got %v", ErrValidation, name, v)
	}
	if v[0] <= 0 || v[1] <= 0 {
		return 0, 0, fmt.Errorf("%w: %s must be positive, got %v", ErrValidation, name, v)
	}
	return v[0], v[1], nil
}

func checkInput(id string, input *matrix.Matrix, size int) error {
	if input.Cols() != size {
		return fmt.Errorf("%s: %w: input has %d features, want %d", id, matrix.ErrShapeMismatch, input.Cols(), size)
	}
	return nil
}

// paramFromArray validates a persisted parameter against the expected shape.
func paramFromArray(weights map[string][][]float64, key string, rows, cols int) (*matrix.Matrix, error) {
	a, ok := weights[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrValidation, key)
	}
	m, err := matrix.FromArray(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrValidation, key, err)
	}
	if m.Rows() != rows || m.Cols() != cols {
		return nil, fmt.Errorf("%w: %q is %dx%d, want %dx%d", ErrValidation, key, m.Rows(), m.Cols(), rows, cols)
	}
	return m, nil
}

func checkNoWeights(id string, weights map[string][][]float64) error {
	if len(weights) != 0 {
		return fmt.Errorf("%s: %w: layer has no parameters, got %d entries", id, ErrValidation, len(weights))
	}
	return nil
}
