package volume

import (
	"fmt"
	"strings"
)

// CanonicalOrder is the axis ordering every normalized array uses, slowest
// axis first: wavelength, time, Z, Y, X.
const CanonicalOrder = "wtzyx"

// NumAxes is the rank of a normalized array.
const NumAxes = len(CanonicalOrder)

// Normalize reorders raw, whose axes are laid out per order (one letter per
// axis, slowest first, drawn from "wtzyx"), into the canonical five-axis
// layout described by size. Readers drop singleton wavelength and time axes,
// so order may omit 'w' and/or 't' when the corresponding size entry is 1;
// the missing axes are restored as trailing singletons before permuting.
//
// When the data is already in canonical order the returned array shares raw's
// backing storage; otherwise the elements are copied into a new array.
func Normalize(raw *Array, order string, size [NumAxes]int) (*Array, error) {
	if n := numElements(size[:]); n != raw.Len() {
		return nil, fmt.Errorf("%d elements do not fill %v: %w", raw.Len(), size, ErrShapeMismatch)
	}

	shape := raw.Shape()
	for i, letter := range []string{"w", "t"} {
		if size[i] == 1 && !strings.Contains(order, letter) {
			shape = append(shape, 1)
			order += letter
		}
	}
	if len(order) != NumAxes || len(shape) != NumAxes {
		return nil, fmt.Errorf("axis order %q does not describe %d axes: %w",
			order, NumAxes, ErrShapeMismatch)
	}

	// ordering[i] is the axis of the padded source holding canonical axis i.
	var ordering [NumAxes]int
	identity := true
	for i := 0; i < NumAxes; i++ {
		src := strings.IndexByte(order, CanonicalOrder[i])
		if src < 0 {
			return nil, fmt.Errorf("axis order %q lacks axis %q: %w",
				order, CanonicalOrder[i], ErrShapeMismatch)
		}
		if shape[src] != size[i] {
			return nil, fmt.Errorf("axis %q has %d elements, expected %d: %w",
				CanonicalOrder[i], shape[src], size[i], ErrShapeMismatch)
		}
		ordering[i] = src
		if src != i {
			identity = false
		}
	}

	if identity {
		return raw.WithShape(size[:]...)
	}

	srcStride := strides(shape)
	var perm [NumAxes]int
	for i := 0; i < NumAxes; i++ {
		perm[i] = srcStride[ordering[i]]
	}

	dst := New(raw.dtype, size[:]...)
	switch raw.dtype {
	case Uint8:
		gather(dst.u8, raw.u8, size, perm)
	case Int16:
		gather(dst.i16, raw.i16, size, perm)
	case Float32:
		gather(dst.f32, raw.f32, size, perm)
	case Complex64:
		gather(dst.c64, raw.c64, size, perm)
	case Uint16:
		gather(dst.u16, raw.u16, size, perm)
	}
	return dst, nil
}

// gather fills dst in row-major order over shape, reading src at the offsets
// produced by the per-axis strides in stride.
func gather[T any](dst, src []T, shape, stride [NumAxes]int) {
	i := 0
	for w := 0; w < shape[0]; w++ {
		ow := w * stride[0]
		for t := 0; t < shape[1]; t++ {
			ot := ow + t*stride[1]
			for z := 0; z < shape[2]; z++ {
				oz := ot + z*stride[2]
				for y := 0; y < shape[3]; y++ {
					oy := oz + y*stride[3]
					for x := 0; x < shape[4]; x++ {
						dst[i] = src[oy+x*stride[4]]
						i++
					}
				}
			}
		}
	}
}

func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}
