package layers

import (
	"fmt"
	"math"

	"neuralimg/matrix"
	"neuralimg/nn/optim"
)

// Dense is a fully-connected layer: y = act(x·W + b).
//
// W is inputSize×units and Xavier/Glorot-initialized, b is 1×units and
// starts at zero.
type Dense struct {
	cfg        Config
	inputSize  int
	units      int
	activation Activation

	weights *matrix.Matrix
	biases  *matrix.Matrix

	// cached by Forward for Backward
	lastInput  *matrix.Matrix
	lastPreAct *matrix.Matrix
}

// NewDense creates a dense layer. cfg.InputShape may be a volume; it is
// consumed flattened.
func NewDense(cfg Config) (*Dense, error) {
	if cfg.Units <= 0 {
		return nil, fmt.Errorf("%w: dense layer needs positive units, got %d", ErrValidation, cfg.Units)
	}
	if cfg.InputShape.Size() <= 0 {
		return nil, fmt.Errorf("%w: dense layer needs a positive inputShape, got %v", ErrValidation, cfg.InputShape)
	}
	act, err := NewActivation(cfg.Activation)
	if err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = newID(TypeDense)
	}
	cfg.Type = TypeDense
	return &Dense{
		cfg:        cfg,
		inputSize:  cfg.InputShape.Size(),
		units:      cfg.Units,
		activation: act,
	}, nil
}

func (d *Dense) ID() string             { return d.cfg.ID }
func (d *Dense) Type() Type             { return TypeDense }
func (d *Dense) InputShape() Shape      { return d.cfg.InputShape }
func (d *Dense) OutputShape() Shape     { return Shape{d.units} }
func (d *Dense) Activation() Activation { return d.activation }
func (d *Dense) Config() Config         { return d.cfg }

// Initialize draws W uniform in [-s, s] with s = sqrt(2/(in+out)).
func (d *Dense) Initialize() {
	if d.weights != nil {
		return
	}
	s := math.Sqrt(2 / float64(d.inputSize+d.units))
	d.weights = matrix.Random(d.inputSize, d.units, -s, s)
	d.biases = matrix.New(1, d.units)
}

// Forward computes act(input·W + b) for a batch×inputSize input.
func (d *Dense) Forward(input *matrix.Matrix) (*matrix.Matrix, error) {
	if err := checkInput(d.cfg.ID, input, d.inputSize); err != nil {
		return nil, err
	}
	d.Initialize()

	wx, err := input.Multiply(d.weights)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.cfg.ID, err)
	}
	preAct, err := wx.AddRowVector(d.biases)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.cfg.ID, err)
	}
	d.lastInput = input.Clone()
	d.lastPreAct = preAct
	return d.activation.ForwardMatrix(preAct), nil
}

// Backward takes dL/dy (batch×units) and returns dL/dx (batch×inputSize).
func (d *Dense) Backward(outputGradient *matrix.Matrix, opt optim.Optimizer) (*matrix.Matrix, error) {
	if d.lastInput == nil {
		return nil, fmt.Errorf("%s: %w", d.cfg.ID, ErrNoForwardPass)
	}
	delta, err := outputGradient.HadamardProduct(d.activation.BackwardMatrix(d.lastPreAct))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.cfg.ID, err)
	}
	weightsGrad, err := d.lastInput.Transpose().Multiply(delta)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.cfg.ID, err)
	}
	biasesGrad := delta.ColumnSums()

	// dL/dx uses the weights as they were during the forward pass.
	inputGrad, err := delta.Multiply(d.weights.Transpose())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.cfg.ID, err)
	}

	weights, err := opt.UpdateWeights(d.cfg.ID+"/weights", d.weights, weightsGrad)
	if err != nil {
		return nil, fmt.Errorf("%s: update weights: %w", d.cfg.ID, err)
	}
	biases, err := opt.UpdateWeights(d.cfg.ID+"/biases", d.biases, biasesGrad)
	if err != nil {
		return nil, fmt.Errorf("%s: update biases: %w", d.cfg.ID, err)
	}
	d.weights, d.biases = weights, biases
	return inputGrad, nil
}

// Weights returns {"weights": in×units, "biases": 1×units}.
func (d *Dense) Weights() map[string][][]float64 {
	d.Initialize()
	return map[string][][]float64{
		"weights": d.weights.ToArray(),
		"biases":  d.biases.ToArray(),
	}
}

// SetWeights replaces both parameters. Nothing changes if either is invalid.
func (d *Dense) SetWeights(weights map[string][][]float64) error {
	w, err := paramFromArray(weights, "weights", d.inputSize, d.units)
	if err != nil {
		return fmt.Errorf("%s: %w", d.cfg.ID, err)
	}
	b, err := paramFromArray(weights, "biases", 1, d.units)
	if err != nil {
		return fmt.Errorf("%s: %w", d.cfg.ID, err)
	}
	d.weights, d.biases = w, b
	return nil
}
