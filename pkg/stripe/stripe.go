package stripe

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrComplexData reports a file whose pixels are complex; stripe removal
	// works on real intensities only.
	ErrComplexData = errors.New("stripe: complex pixel data")

	// ErrBadPlane reports a plane buffer that does not match its dimensions.
	ErrBadPlane = errors.New("stripe: plane size mismatch")
)

// Mode selects the stripe direction to suppress.
type Mode int

const (
	// Horizontal removes stripes that run along X, i.e. rows of constant
	// bias: the spectrum column kx = 0 holds exactly the components that do
	// not vary across a row.
	Horizontal Mode = iota

	// Vertical removes stripes that run along Y by zeroing the ky = 0 row.
	Vertical
)

func (m Mode) String() string {
	switch m {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name from configuration or a flag.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "horizontal":
		return Horizontal, nil
	case "vertical":
		return Vertical, nil
	}
	return 0, fmt.Errorf("stripe: unknown mode %q (want horizontal or vertical)", s)
}

// Filter suppresses stripes in one plane of ny rows by nx columns, returning
// a new plane. Zeroing a full spectrum line destroys the DC level along with
// the stripes, so the mean of what was removed is added back: a stripe-free
// plane therefore comes back unchanged up to rounding.
func Filter(plane []float64, ny, nx int, mode Mode) ([]float64, error) {
	if len(plane) != ny*nx {
		return nil, fmt.Errorf("%d pixels do not fill %dx%d: %w", len(plane), ny, nx, ErrBadPlane)
	}

	coeff := fft2(plane, ny, nx)
	switch mode {
	case Horizontal:
		for y := 0; y < ny; y++ {
			coeff[y*nx] = 0
		}
	case Vertical:
		for x := 0; x < nx; x++ {
			coeff[x] = 0
		}
	default:
		return nil, fmt.Errorf("stripe: unknown mode %d", mode)
	}
	filtered := ifft2(coeff, ny, nx)

	residual := make([]float64, len(plane))
	for i := range residual {
		residual[i] = plane[i] - filtered[i]
	}
	offset := stat.Mean(residual, nil)
	for i := range filtered {
		filtered[i] += offset
	}
	return filtered, nil
}
