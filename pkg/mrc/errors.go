package mrc

import "errors"

var (
	// ErrBadHeader reports a file whose header fails the sanity checks under
	// both byte orders, or whose fields are internally inconsistent.
	ErrBadHeader = errors.New("mrc: unreadable header")

	// ErrUnsupportedMode reports a pixel mode this package cannot decode.
	ErrUnsupportedMode = errors.New("mrc: unsupported pixel mode")
)
