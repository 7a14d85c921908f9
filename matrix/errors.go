package matrix

import "errors"

var (
	// ErrShapeMismatch is returned when operand dimensions are incompatible.
	ErrShapeMismatch = errors.New("matrix: shape mismatch")
	// ErrIndexOutOfRange is returned by bounds-checked accessors.
	ErrIndexOutOfRange = errors.New("matrix: index out of range")
)
