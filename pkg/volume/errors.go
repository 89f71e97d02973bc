package volume

import "errors"

// ErrShapeMismatch reports that a buffer, shape, or axis-order description is
// inconsistent with the number of elements it is supposed to describe.
var ErrShapeMismatch = errors.New("volume: shape mismatch")
