package datadoc

import "errors"

var (
	// ErrDimensionMismatch reports coordinates, crop bounds or subset
	// selections that do not fit the document's volume.
	ErrDimensionMismatch = errors.New("datadoc: dimension mismatch")

	// ErrComplexUnsupported reports an operation that would have to
	// interpolate complex samples, which the resampler does not do.
	ErrComplexUnsupported = errors.New("datadoc: complex data cannot be resampled")
)
