package nn

import "neuralimg/nn/layers"

// The model reports layer failures with the layer package's sentinels so
// callers only need to import nn to test for them with errors.Is.
var (
	ErrValidation           = layers.ErrValidation
	ErrNoForwardPass        = layers.ErrNoForwardPass
	ErrUnsupportedOperation = layers.ErrUnsupportedOperation
)
