package nn

import (
	"fmt"
	"math"

	"neuralimg/matrix"
)

// LossType names a loss function.
type LossType string

const (
	LossMSE          LossType = "mse"
	LossCrossEntropy LossType = "cross_entropy"
)

// crossEntropyEpsilon keeps log away from 0 and 1.
const crossEntropyEpsilon = 1e-15

// Loss scores a batch of predictions against targets of the same shape.
// Gradient returns dL/dprediction already averaged over the batch.
type Loss interface {
	Type() LossType
	Compute(predictions, targets *matrix.Matrix) (float64, error)
	Gradient(predictions, targets *matrix.Matrix) (*matrix.Matrix, error)
}

// NewLoss returns the loss named by t.
func NewLoss(t LossType) (Loss, error) {
	switch t {
	case LossMSE:
		return MSE{}, nil
	case LossCrossEntropy:
		return CrossEntropy{}, nil
	default:
		return nil, fmt.Errorf("%w: loss %q", ErrUnsupportedOperation, t)
	}
}

// MSE is the mean of squared differences over every element.
type MSE struct{}

func (MSE) Type() LossType { return LossMSE }

func (MSE) Compute(predictions, targets *matrix.Matrix) (float64, error) {
	diff, err := predictions.Subtract(targets)
	if err != nil {
		return 0, fmt.Errorf("mse: %w", err)
	}
	sq, err := diff.HadamardProduct(diff)
	if err != nil {
		return 0, fmt.Errorf("mse: %w", err)
	}
	return sq.Sum() / float64(diff.Size()), nil
}

// Gradient returns 2*(prediction-target)/n with n the element count.
func (MSE) Gradient(predictions, targets *matrix.Matrix) (*matrix.Matrix, error) {
	diff, err := predictions.Subtract(targets)
	if err != nil {
		return nil, fmt.Errorf("mse: %w", err)
	}
	return diff.MultiplyScalar(2 / float64(diff.Size())), nil
}

// CrossEntropy is the categorical cross-entropy of softmax probabilities
// against one-hot targets, averaged over the batch.
//
// Its gradient is the combined softmax+cross-entropy gradient with respect
// to the logits, so it must only follow a Softmax output layer.
type CrossEntropy struct{}

func (CrossEntropy) Type() LossType { return LossCrossEntropy }

func (CrossEntropy) Compute(predictions, targets *matrix.Matrix) (float64, error) {
	pr, pc := predictions.Dims()
	tr, tc := targets.Dims()
	if pr != tr || pc != tc {
		return 0, fmt.Errorf("cross entropy: %w: predictions %dx%d, targets %dx%d", matrix.ErrShapeMismatch, pr, pc, tr, tc)
	}
	var total float64
	for i := 0; i < pr; i++ {
		p, t := predictions.RawRow(i), targets.RawRow(i)
		for j := range p {
			if t[j] == 0 {
				continue
			}
			total += t[j] * math.Log(clip(p[j]))
		}
	}
	return -total / float64(pr), nil
}

// Gradient returns (prediction-target)/batch.
func (CrossEntropy) Gradient(predictions, targets *matrix.Matrix) (*matrix.Matrix, error) {
	diff, err := predictions.Subtract(targets)
	if err != nil {
		return nil, fmt.Errorf("cross entropy: %w", err)
	}
	return diff.MultiplyScalar(1 / float64(diff.Rows())), nil
}

func clip(p float64) float64 {
	return math.Min(math.Max(p, crossEntropyEpsilon), 1-crossEntropyEpsilon)
}
