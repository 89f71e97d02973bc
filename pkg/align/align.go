// Package align models per-wavelength alignment of an image stack: a
// translation in pixels, a rotation about the Z axis in degrees, and a
// uniform scale factor. Each parameter set expands to a 4x4 homogeneous
// matrix acting on (x, y, z, 1) column vectors; resampling walks the output
// grid and pulls source coordinates through the inverse matrix.
package align

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularTransform reports alignment parameters whose matrix cannot be
// inverted, which happens exactly when the zoom factor is zero.
var ErrSingularTransform = errors.New("align: singular transform")

// Params is one wavelength's alignment. The zero value is NOT the identity;
// use Identity for that (zoom must be 1).
type Params struct {
	DX    float64 `yaml:"dx"`
	DY    float64 `yaml:"dy"`
	DZ    float64 `yaml:"dz"`
	Angle float64 `yaml:"angle"` // degrees, about the Z axis
	Zoom  float64 `yaml:"zoom"`
}

// Identity returns parameters that leave the stack untouched.
func Identity() Params { return Params{Zoom: 1} }

// IsIdentity reports whether applying p would change nothing.
func (p Params) IsIdentity() bool {
	return p.DX == 0 && p.DY == 0 && p.DZ == 0 && p.Angle == 0 && p.Zoom == 1
}

func (p Params) String() string {
	return fmt.Sprintf("dx=%g dy=%g dz=%g angle=%g zoom=%g", p.DX, p.DY, p.DZ, p.Angle, p.Zoom)
}

// Matrix expands p into its 4x4 transform. The zoom factor scales the whole
// matrix, translation column and homogeneous row included; the inverse used
// for resampling cancels the shared factor, so only the ratio of the rotation
// block to the homogeneous 1 matters.
func (p Params) Matrix() *mat.Dense {
	theta := p.Angle * math.Pi / 180
	sin, cos := math.Sincos(theta)
	m := mat.NewDense(4, 4, []float64{
		cos, sin, 0, p.DX,
		-sin, cos, 0, p.DY,
		0, 0, 1, p.DZ,
		0, 0, 0, 1,
	})
	m.Scale(p.Zoom, m)
	return m
}

// Model stores alignment parameters per wavelength together with cached
// forward and inverse matrices. Setting a wavelength's parameters drops that
// wavelength's cache entries.
type Model struct {
	params []Params
	fwd    []*mat.Dense
	inv    []*mat.Dense
}

// NewModel returns a model for numWavelengths wavelengths, all identity.
func NewModel(numWavelengths int) *Model {
	m := &Model{
		params: make([]Params, numWavelengths),
		fwd:    make([]*mat.Dense, numWavelengths),
		inv:    make([]*mat.Dense, numWavelengths),
	}
	for i := range m.params {
		m.params[i] = Identity()
	}
	return m
}

// NumWavelengths returns the number of parameter rows.
func (m *Model) NumWavelengths() int { return len(m.params) }

// Get returns wavelength w's parameters.
func (m *Model) Get(w int) Params { return m.params[w] }

// Set replaces wavelength w's parameters and invalidates its cached matrices.
func (m *Model) Set(w int, p Params) {
	m.params[w] = p
	m.fwd[w] = nil
	m.inv[w] = nil
}

// All returns a copy of every wavelength's parameters.
func (m *Model) All() []Params { return append([]Params(nil), m.params...) }

// MatrixFor returns the cached forward matrix of wavelength w.
func (m *Model) MatrixFor(w int) *mat.Dense {
	if m.fwd[w] == nil {
		m.fwd[w] = m.params[w].Matrix()
	}
	return m.fwd[w]
}

// InverseFor returns the cached inverse matrix of wavelength w.
func (m *Model) InverseFor(w int) (*mat.Dense, error) {
	if m.inv[w] != nil {
		return m.inv[w], nil
	}
	if m.params[w].Zoom == 0 {
		return nil, fmt.Errorf("wavelength %d: zoom is zero: %w", w, ErrSingularTransform)
	}
	var inv mat.Dense
	if err := inv.Inverse(m.MatrixFor(w)); err != nil {
		return nil, fmt.Errorf("wavelength %d: %v: %w", w, err, ErrSingularTransform)
	}
	m.inv[w] = &inv
	return m.inv[w], nil
}

// HasTransform reports whether any wavelength's parameters are non-identity.
func (m *Model) HasTransform() bool {
	for _, p := range m.params {
		if !p.IsIdentity() {
			return true
		}
	}
	return false
}

// HasZMotion reports whether any wavelength translates along Z, which export
// silently drops for single-section stacks.
func (m *Model) HasZMotion() bool {
	for _, p := range m.params {
		if p.DZ != 0 {
			return true
		}
	}
	return false
}
