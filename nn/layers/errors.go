package layers

import "errors"

var (
	// ErrNoForwardPass is returned by Backward when no forward pass was cached.
	ErrNoForwardPass = errors.New("no cached forward pass")
	// ErrUnsupportedOperation signals a configuration bug: an unknown layer or
	// activation type, or a scalar call on Softmax.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrValidation is returned for malformed layer configs and weight payloads.
	ErrValidation = errors.New("validation failed")
)
