// Package mrc reads and writes MRC / DeltaVision image stacks: the fixed
// 1024-byte header, the optional extended header, and the raw pixel sections
// that follow. Multi-wavelength, multi-timepoint files store their section
// interleaving in the header's ImgSequence field; this package exposes the
// resulting axis ordering so callers can normalize the data.
package mrc

import (
	"fmt"

	"mrcstack/pkg/volume"
)

// HeaderSize is the fixed size of the main header in bytes.
const HeaderSize = 1024

// Pixel modes understood by this package. Other modes exist in the wild
// (signed bytes, packed complex int16) but are not supported here.
const (
	ModeUint8     = 0
	ModeInt16     = 1
	ModeFloat32   = 2
	ModeComplex64 = 4
	ModeUint16    = 6
)

// Section interleavings named by the ImgSequence header field.
const (
	SeqZTW = 0 // wavelength slowest, then time, then Z
	SeqWZT = 1 // time slowest, then Z, then wavelength
	SeqZWT = 2 // time slowest, then wavelength, then Z
)

// Header is the main MRC/DeltaVision header. The field order and widths
// match the on-disk layout exactly, so the struct can be read and written
// with encoding/binary in one call.
type Header struct {
	Num         [3]int32   // image size: X, Y, total sections
	PixelType   int32      // pixel mode, see Mode constants
	Mst         [3]int32   // index of first col/row/section
	M           [3]int32   // pixel sampling intervals
	D           [3]float32 // pixel spacing in microns: X, Y, Z
	Angle       [3]float32 // cell angles
	Axis        [3]int32   // axis to column/row/section mapping
	Mmm1        [3]float32 // min, max, mean of first wavelength
	Type        int16
	Nspg        int16
	Next        int32 // extended header size in bytes
	DVID        int16
	Blank       [30]byte
	NumIntegers int16 // per-section int32 count in the extended header
	NumFloats   int16 // per-section float32 count in the extended header
	Sub         int16
	Zfac        int16
	Mm2         [2]float32 // min, max of second wavelength
	Mm3         [2]float32
	Mm4         [2]float32
	ImageType   int16
	LensNum     int16
	N1          int16
	N2          int16
	V1          int16
	V2          int16
	Mm5         [2]float32
	NumTimes    int16
	ImgSequence int16 // section interleaving, see Seq constants
	Tilt        [3]float32
	NumWaves    int16
	Wave        [5]int16 // wavelength values in nm
	Zxy0        [3]float32
	NumTitles   int32
	Title       [10][80]byte
}

// NumW returns the wavelength count, treating the zero value of a plain MRC
// file as one wavelength.
func (h *Header) NumW() int {
	if h.NumWaves < 1 {
		return 1
	}
	return int(h.NumWaves)
}

// NumT returns the timepoint count, treating zero as one.
func (h *Header) NumT() int {
	if h.NumTimes < 1 {
		return 1
	}
	return int(h.NumTimes)
}

// NumZ returns the Z depth of a single (wavelength, timepoint) volume. It
// errors when the section count is not an exact multiple of the wavelength
// and timepoint counts.
func (h *Header) NumZ() (int, error) {
	per := h.NumW() * h.NumT()
	nz := int(h.Num[2]) / per
	if nz*per != int(h.Num[2]) {
		return 0, fmt.Errorf("%d sections do not divide into %d wavelengths × %d timepoints: %w",
			h.Num[2], h.NumW(), h.NumT(), ErrBadHeader)
	}
	return nz, nil
}

// Dtype maps the header's pixel mode onto a volume dtype.
func (h *Header) Dtype() (volume.Dtype, error) {
	switch h.PixelType {
	case ModeUint8:
		return volume.Uint8, nil
	case ModeInt16:
		return volume.Int16, nil
	case ModeFloat32:
		return volume.Float32, nil
	case ModeComplex64:
		return volume.Complex64, nil
	case ModeUint16:
		return volume.Uint16, nil
	}
	return 0, fmt.Errorf("pixel mode %d: %w", h.PixelType, ErrUnsupportedMode)
}

// ModeFor returns the pixel mode that stores the given dtype.
func ModeFor(d volume.Dtype) (int32, error) {
	switch d {
	case volume.Uint8:
		return ModeUint8, nil
	case volume.Int16:
		return ModeInt16, nil
	case volume.Float32:
		return ModeFloat32, nil
	case volume.Complex64:
		return ModeComplex64, nil
	case volume.Uint16:
		return ModeUint16, nil
	}
	return 0, fmt.Errorf("dtype %v: %w", d, ErrUnsupportedMode)
}

// AxisOrder returns the storage axis ordering (slowest axis first) implied by
// ImgSequence, with singleton wavelength and time axes dropped the way the
// reader drops them.
func (h *Header) AxisOrder() (string, error) {
	var order string
	switch h.ImgSequence {
	case SeqZTW:
		order = "wtzyx"
	case SeqWZT:
		order = "tzwyx"
	case SeqZWT:
		order = "twzyx"
	default:
		return "", fmt.Errorf("image sequence %d: %w", h.ImgSequence, ErrBadHeader)
	}
	if h.NumT() == 1 {
		order = dropAxis(order, 't')
	}
	if h.NumW() == 1 {
		order = dropAxis(order, 'w')
	}
	return order, nil
}

// Shape returns the per-axis lengths matching AxisOrder, slowest axis first.
func (h *Header) Shape() ([]int, error) {
	order, err := h.AxisOrder()
	if err != nil {
		return nil, err
	}
	nz, err := h.NumZ()
	if err != nil {
		return nil, err
	}
	shape := make([]int, 0, len(order))
	for i := 0; i < len(order); i++ {
		switch order[i] {
		case 'w':
			shape = append(shape, h.NumW())
		case 't':
			shape = append(shape, h.NumT())
		case 'z':
			shape = append(shape, nz)
		case 'y':
			shape = append(shape, int(h.Num[1]))
		case 'x':
			shape = append(shape, int(h.Num[0]))
		}
	}
	return shape, nil
}

// Size returns the canonical five-axis lengths (wavelength, time, Z, Y, X).
func (h *Header) Size() ([5]int, error) {
	nz, err := h.NumZ()
	if err != nil {
		return [5]int{}, err
	}
	return [5]int{h.NumW(), h.NumT(), nz, int(h.Num[1]), int(h.Num[0])}, nil
}

// DataSize returns the pixel data size in bytes.
func (h *Header) DataSize() (int64, error) {
	d, err := h.Dtype()
	if err != nil {
		return 0, err
	}
	return int64(h.Num[0]) * int64(h.Num[1]) * int64(h.Num[2]) * int64(d.Size()), nil
}

// ExtendedHeaderIndex returns the per-section record index in the extended
// header for the given timepoint, wavelength and Z position, honoring the
// header's section interleaving.
func (h *Header) ExtendedHeaderIndex(t, w, z int) (int, error) {
	nz, err := h.NumZ()
	if err != nil {
		return 0, err
	}
	nw := h.NumW()
	switch h.ImgSequence {
	case SeqZTW:
		return w*h.NumT()*nz + t*nz + z, nil
	case SeqWZT:
		return t*nz*nw + z*nw + w, nil
	case SeqZWT:
		return t*nw*nz + w*nz + z, nil
	}
	return 0, fmt.Errorf("image sequence %d: %w", h.ImgSequence, ErrBadHeader)
}

// SetTitle stores s in title slot i, padded with NULs and truncated to 80
// bytes, bumping NumTitles when the slot is beyond the current count.
func (h *Header) SetTitle(i int, s string) {
	if i < 0 || i >= len(h.Title) {
		return
	}
	var row [80]byte
	copy(row[:], s)
	h.Title[i] = row
	if int32(i) >= h.NumTitles {
		h.NumTitles = int32(i) + 1
	}
}

func dropAxis(order string, axis byte) string {
	for i := 0; i < len(order); i++ {
		if order[i] == axis {
			return order[:i] + order[i+1:]
		}
	}
	return order
}
