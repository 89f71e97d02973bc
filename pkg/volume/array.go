// Package volume provides the dense n-dimensional pixel array that backs a
// data document, together with the axis normalization that maps on-disk
// storage orderings onto the canonical (wavelength, time, Z, Y, X) layout.
package volume

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Dtype identifies the pixel type of an Array. The set is closed and matches
// the MRC pixel modes this package supports.
type Dtype int

const (
	Uint8 Dtype = iota
	Int16
	Float32
	Complex64
	Uint16
)

// Size returns the number of bytes one element occupies on disk.
func (d Dtype) Size() int {
	switch d {
	case Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Float32:
		return 4
	case Complex64:
		return 8
	}
	return 0
}

// IsComplex reports whether the dtype stores complex samples.
func (d Dtype) IsComplex() bool { return d == Complex64 }

func (d Dtype) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Float32:
		return "float32"
	case Complex64:
		return "complex64"
	case Uint16:
		return "uint16"
	}
	return fmt.Sprintf("Dtype(%d)", int(d))
}

// Array is a dense array over one of the supported pixel types. The backing
// data is a single flat slice in row-major order (the last axis varies
// fastest). Exactly one of the typed backings is non-nil.
type Array struct {
	dtype Dtype
	shape []int

	u8  []uint8
	i16 []int16
	f32 []float32
	c64 []complex64
	u16 []uint16
}

// New allocates a zeroed array of the given dtype and shape.
func New(dtype Dtype, shape ...int) *Array {
	n := numElements(shape)
	a := &Array{dtype: dtype, shape: append([]int(nil), shape...)}
	switch dtype {
	case Uint8:
		a.u8 = make([]uint8, n)
	case Int16:
		a.i16 = make([]int16, n)
	case Float32:
		a.f32 = make([]float32, n)
	case Complex64:
		a.c64 = make([]complex64, n)
	case Uint16:
		a.u16 = make([]uint16, n)
	}
	return a
}

// NewUint8 wraps data (without copying) as an array of the given shape.
func NewUint8(data []uint8, shape ...int) (*Array, error) {
	if err := checkLen(len(data), shape); err != nil {
		return nil, err
	}
	return &Array{dtype: Uint8, shape: append([]int(nil), shape...), u8: data}, nil
}

// NewInt16 wraps data (without copying) as an array of the given shape.
func NewInt16(data []int16, shape ...int) (*Array, error) {
	if err := checkLen(len(data), shape); err != nil {
		return nil, err
	}
	return &Array{dtype: Int16, shape: append([]int(nil), shape...), i16: data}, nil
}

// NewFloat32 wraps data (without copying) as an array of the given shape.
func NewFloat32(data []float32, shape ...int) (*Array, error) {
	if err := checkLen(len(data), shape); err != nil {
		return nil, err
	}
	return &Array{dtype: Float32, shape: append([]int(nil), shape...), f32: data}, nil
}

// NewComplex64 wraps data (without copying) as an array of the given shape.
func NewComplex64(data []complex64, shape ...int) (*Array, error) {
	if err := checkLen(len(data), shape); err != nil {
		return nil, err
	}
	return &Array{dtype: Complex64, shape: append([]int(nil), shape...), c64: data}, nil
}

// NewUint16 wraps data (without copying) as an array of the given shape.
func NewUint16(data []uint16, shape ...int) (*Array, error) {
	if err := checkLen(len(data), shape); err != nil {
		return nil, err
	}
	return &Array{dtype: Uint16, shape: append([]int(nil), shape...), u16: data}, nil
}

// FromBytes decodes raw pixel bytes in the given byte order into a typed
// array of the given shape.
func FromBytes(dtype Dtype, order binary.ByteOrder, raw []byte, shape ...int) (*Array, error) {
	n := numElements(shape)
	if len(raw) != n*dtype.Size() {
		return nil, fmt.Errorf("%d bytes cannot hold %d %s elements: %w",
			len(raw), n, dtype, ErrShapeMismatch)
	}
	a := New(dtype, shape...)
	switch dtype {
	case Uint8:
		copy(a.u8, raw)
	case Int16:
		for i := range a.i16 {
			a.i16[i] = int16(order.Uint16(raw[2*i:]))
		}
	case Uint16:
		for i := range a.u16 {
			a.u16[i] = order.Uint16(raw[2*i:])
		}
	case Float32:
		for i := range a.f32 {
			a.f32[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
	case Complex64:
		for i := range a.c64 {
			re := math.Float32frombits(order.Uint32(raw[8*i:]))
			im := math.Float32frombits(order.Uint32(raw[8*i+4:]))
			a.c64[i] = complex(re, im)
		}
	}
	return a, nil
}

// Dtype returns the array's pixel type.
func (a *Array) Dtype() Dtype { return a.dtype }

// Shape returns a copy of the per-axis lengths.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// Rank returns the number of axes.
func (a *Array) Rank() int { return len(a.shape) }

// Len returns the total element count.
func (a *Array) Len() int { return numElements(a.shape) }

// WithShape returns a view of the same backing data under a different shape.
// The element count must be unchanged.
func (a *Array) WithShape(shape ...int) (*Array, error) {
	if numElements(shape) != a.Len() {
		return nil, fmt.Errorf("reshape %v to %v: %w", a.shape, shape, ErrShapeMismatch)
	}
	b := *a
	b.shape = append([]int(nil), shape...)
	return &b, nil
}

// Strides returns the row-major stride (in elements) of each axis.
func (a *Array) Strides() []int { return strides(a.shape) }

// AtFlat returns the element at flat index i as a float64. Complex elements
// yield their real part; use ComplexAtFlat to read both components.
func (a *Array) AtFlat(i int) float64 {
	switch a.dtype {
	case Uint8:
		return float64(a.u8[i])
	case Int16:
		return float64(a.i16[i])
	case Float32:
		return float64(a.f32[i])
	case Complex64:
		return float64(real(a.c64[i]))
	case Uint16:
		return float64(a.u16[i])
	}
	return 0
}

// ComplexAtFlat returns the element at flat index i as a complex128. Real
// dtypes yield a zero imaginary part.
func (a *Array) ComplexAtFlat(i int) complex128 {
	if a.dtype == Complex64 {
		return complex128(a.c64[i])
	}
	return complex(a.AtFlat(i), 0)
}

// AppendFloats appends the elements in the flat range [lo, hi) to dst as
// float64 and returns the extended slice. Complex elements contribute their
// real part.
func (a *Array) AppendFloats(dst []float64, lo, hi int) []float64 {
	switch a.dtype {
	case Uint8:
		for _, v := range a.u8[lo:hi] {
			dst = append(dst, float64(v))
		}
	case Int16:
		for _, v := range a.i16[lo:hi] {
			dst = append(dst, float64(v))
		}
	case Float32:
		for _, v := range a.f32[lo:hi] {
			dst = append(dst, float64(v))
		}
	case Complex64:
		for _, v := range a.c64[lo:hi] {
			dst = append(dst, float64(real(v)))
		}
	case Uint16:
		for _, v := range a.u16[lo:hi] {
			dst = append(dst, float64(v))
		}
	}
	return dst
}

// Uint8s returns the backing slice for a Uint8 array, or nil.
func (a *Array) Uint8s() []uint8 { return a.u8 }

// Int16s returns the backing slice for an Int16 array, or nil.
func (a *Array) Int16s() []int16 { return a.i16 }

// Float32s returns the backing slice for a Float32 array, or nil.
func (a *Array) Float32s() []float32 { return a.f32 }

// Complex64s returns the backing slice for a Complex64 array, or nil.
func (a *Array) Complex64s() []complex64 { return a.c64 }

// Uint16s returns the backing slice for a Uint16 array, or nil.
func (a *Array) Uint16s() []uint16 { return a.u16 }

// CopyElem copies element si of src into element di of dst. Both arrays must
// share a dtype.
func CopyElem(dst *Array, di int, src *Array, si int) {
	switch dst.dtype {
	case Uint8:
		dst.u8[di] = src.u8[si]
	case Int16:
		dst.i16[di] = src.i16[si]
	case Float32:
		dst.f32[di] = src.f32[si]
	case Complex64:
		dst.c64[di] = src.c64[si]
	case Uint16:
		dst.u16[di] = src.u16[si]
	}
}

func numElements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func checkLen(have int, shape []int) error {
	if want := numElements(shape); have != want {
		return fmt.Errorf("%d elements cannot fill shape %v (%d elements): %w",
			have, shape, want, ErrShapeMismatch)
	}
	return nil
}
