package datadoc

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"mrcstack/pkg/volume"
)

// TakeSlice extracts a 2D cut through the volume. fixed pins exactly two of
// the non-wavelength axes (AxisT..AxisX) to positions; the remaining two
// axes span the output, kept in canonical order. The result always carries
// every wavelength as its leading axis.
//
// With transformed set, each wavelength's pixels are pulled through its
// inverse alignment matrix and interpolated (first order, per axis) around
// the spatial center of the volume; samples that land outside the volume
// read as the wavelength's mean intensity, and the result is float32. When
// an unfixed time axis spans the output, rows follow ascending timepoints.
// Without transformed, pixels are copied directly and keep the document's
// pixel type.
func (d *Document) TakeSlice(fixed map[int]int, transformed bool) (*volume.Array, error) {
	free, err := d.freeAxes(fixed)
	if err != nil {
		return nil, err
	}
	if transformed {
		return d.takeSliceTransformed(fixed, free)
	}
	return d.takeSliceDirect(fixed, free)
}

// TakeViewSlice extracts the 2D cut spanned by the two given axes, with the
// other axes pinned at the current view position.
func (d *Document) TakeViewSlice(spanned [2]int, transformed bool) (*volume.Array, error) {
	fixed := make(map[int]int, 2)
	for axis := AxisT; axis <= AxisX; axis++ {
		if axis != spanned[0] && axis != spanned[1] {
			fixed[axis] = d.viewIndex[axis]
		}
	}
	return d.TakeSlice(fixed, transformed)
}

// SliceShape returns the output shape (wavelengths, rows, columns) TakeSlice
// would produce for fixed.
func (d *Document) SliceShape(fixed map[int]int) ([3]int, error) {
	free, err := d.freeAxes(fixed)
	if err != nil {
		return [3]int{}, err
	}
	return [3]int{d.size[0], d.size[free[0]], d.size[free[1]]}, nil
}

func (d *Document) freeAxes(fixed map[int]int) ([2]int, error) {
	if len(fixed) != 2 {
		return [2]int{}, fmt.Errorf("%d axes fixed, want 2: %w", len(fixed), ErrDimensionMismatch)
	}
	for axis, v := range fixed {
		if axis < AxisT || axis > AxisX {
			return [2]int{}, fmt.Errorf("axis %d cannot be fixed: %w", axis, ErrDimensionMismatch)
		}
		if v < 0 || v >= d.size[axis] {
			return [2]int{}, fmt.Errorf("axis %d position %d outside [0, %d): %w",
				axis, v, d.size[axis], ErrDimensionMismatch)
		}
	}
	var free []int
	for axis := AxisT; axis <= AxisX; axis++ {
		if _, ok := fixed[axis]; !ok {
			free = append(free, axis)
		}
	}
	sort.Ints(free)
	return [2]int{free[0], free[1]}, nil
}

func (d *Document) takeSliceDirect(fixed map[int]int, free [2]int) (*volume.Array, error) {
	n0, n1 := d.size[free[0]], d.size[free[1]]
	out := volume.New(d.data.Dtype(), d.size[0], n0, n1)

	st := d.data.Strides()
	base := 0
	for axis, v := range fixed {
		base += v * st[axis]
	}
	di := 0
	for w := 0; w < d.size[0]; w++ {
		off0 := base + w*st[0]
		for i := 0; i < n0; i++ {
			off1 := off0 + i*st[free[0]]
			for j := 0; j < n1; j++ {
				volume.CopyElem(out, di, d.data, off1+j*st[free[1]])
				di++
			}
		}
	}
	return out, nil
}

func (d *Document) takeSliceTransformed(fixed map[int]int, free [2]int) (*volume.Array, error) {
	if d.data.Dtype().IsComplex() {
		return nil, fmt.Errorf("taking transformed slice: %w", ErrComplexUnsupported)
	}
	n0, n1 := d.size[free[0]], d.size[free[1]]
	total := n0 * n1
	cx := float64(d.size[AxisX]) / 2
	cy := float64(d.size[AxisY]) / 2
	cz := float64(d.size[AxisZ]) / 2

	// Spatial coordinate of every output pixel, centered. The time axis is
	// carried separately: it rides along untransformed.
	xs := make([]float64, total)
	ys := make([]float64, total)
	zs := make([]float64, total)
	ts := make([]float64, total)
	var pos [5]int
	for axis, v := range fixed {
		pos[axis] = v
	}
	p := 0
	for i := 0; i < n0; i++ {
		pos[free[0]] = i
		for j := 0; j < n1; j++ {
			pos[free[1]] = j
			xs[p] = float64(pos[AxisX]) - cx
			ys[p] = float64(pos[AxisY]) - cy
			zs[p] = float64(pos[AxisZ]) - cz
			ts[p] = float64(pos[AxisT])
			p++
		}
	}

	out := make([]float32, d.size[0]*total)
	for w := 0; w < d.size[0]; w++ {
		inv, err := d.alignment.InverseFor(w)
		if err != nil {
			return nil, err
		}
		m := matrixCoeffs(inv)
		s := d.sampler(w)
		fill := d.averages[w]
		for p := 0; p < total; p++ {
			x, y, z := xs[p], ys[p], zs[p]
			tx := m[0]*x + m[1]*y + m[2]*z + m[3] + cx
			ty := m[4]*x + m[5]*y + m[6]*z + m[7] + cy
			tz := m[8]*x + m[9]*y + m[10]*z + m[11] + cz
			out[w*total+p] = float32(s.lookup(ts[p], tz, ty, tx, fill))
		}
	}
	return volume.NewFloat32(out, d.size[0], n0, n1)
}

// ValuesAt reports, for every wavelength, which source voxel feeds the given
// canonical (t, z, y, x) position under the current alignment, returning the
// voxel values and the integer source coordinates. Coordinates that map
// outside the volume read as the wavelength's mean intensity.
func (d *Document) ValuesAt(coord [4]int) ([]float64, [][4]int, error) {
	if d.data.Dtype().IsComplex() {
		return nil, nil, fmt.Errorf("reading values through alignment: %w", ErrComplexUnsupported)
	}
	for i, v := range coord {
		if v < 0 || v >= d.size[i+1] {
			return nil, nil, fmt.Errorf("coordinate %v outside %v: %w", coord, d.size[1:], ErrDimensionMismatch)
		}
	}
	cx := float64(d.size[AxisX]) / 2
	cy := float64(d.size[AxisY]) / 2
	cz := float64(d.size[AxisZ]) / 2
	x := float64(coord[3]) - cx
	y := float64(coord[2]) - cy
	z := float64(coord[1]) - cz

	st := d.data.Strides()
	values := make([]float64, d.size[0])
	coords := make([][4]int, d.size[0])
	for w := 0; w < d.size[0]; w++ {
		inv, err := d.alignment.InverseFor(w)
		if err != nil {
			return nil, nil, err
		}
		m := matrixCoeffs(inv)
		ix := int(m[0]*x + m[1]*y + m[2]*z + m[3] + cx)
		iy := int(m[4]*x + m[5]*y + m[6]*z + m[7] + cy)
		iz := int(m[8]*x + m[9]*y + m[10]*z + m[11] + cz)
		coords[w] = [4]int{coord[0], iz, iy, ix}
		if ix >= 0 && ix < d.size[AxisX] &&
			iy >= 0 && iy < d.size[AxisY] &&
			iz >= 0 && iz < d.size[AxisZ] {
			values[w] = d.data.AtFlat(w*st[0] + coord[0]*st[1] + iz*st[2] + iy*st[3] + ix*st[4])
		} else {
			values[w] = d.averages[w]
		}
	}
	return values, coords, nil
}

// matrixCoeffs flattens the first three rows of a 4x4 matrix. Alignment
// matrices scale the homogeneous row and column together, so the fourth row
// never contributes.
func matrixCoeffs(m *mat.Dense) [12]float64 {
	var c [12]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			c[i*4+j] = m.At(i, j)
		}
	}
	return c
}

// sampler reads one wavelength's (t, z, y, x) block with first-order
// interpolation.
type sampler struct {
	arr            *volume.Array
	base           int
	nt, nz, ny, nx int
	st, sz, sy     int
}

func (d *Document) sampler(w int) sampler {
	st := d.data.Strides()
	return sampler{
		arr:  d.data,
		base: w * st[0],
		nt:   d.size[AxisT], nz: d.size[AxisZ], ny: d.size[AxisY], nx: d.size[AxisX],
		st: st[1], sz: st[2], sy: st[3],
	}
}

// lookup interpolates the block at fractional (t, z, y, x). Each axis blends
// its two nearest integer samples; corner samples outside the block read as
// fill. Integral coordinates inside the block return the stored value
// exactly.
func (s sampler) lookup(t, z, y, x, fill float64) float64 {
	it, ft := splitCoord(t)
	iz, fz := splitCoord(z)
	iy, fy := splitCoord(y)
	ix, fx := splitCoord(x)

	var acc float64
	for dt := 0; dt < 2; dt++ {
		wt := cornerWeight(ft, dt)
		if wt == 0 {
			continue
		}
		ct := it + dt
		for dz := 0; dz < 2; dz++ {
			wz := wt * cornerWeight(fz, dz)
			if wz == 0 {
				continue
			}
			cz := iz + dz
			for dy := 0; dy < 2; dy++ {
				wy := wz * cornerWeight(fy, dy)
				if wy == 0 {
					continue
				}
				cy := iy + dy
				for dx := 0; dx < 2; dx++ {
					wx := wy * cornerWeight(fx, dx)
					if wx == 0 {
						continue
					}
					cx := ix + dx
					v := fill
					if ct >= 0 && ct < s.nt && cz >= 0 && cz < s.nz &&
						cy >= 0 && cy < s.ny && cx >= 0 && cx < s.nx {
						v = s.arr.AtFlat(s.base + ct*s.st + cz*s.sz + cy*s.sy + cx)
					}
					acc += wx * v
				}
			}
		}
	}
	return acc
}

func splitCoord(c float64) (int, float64) {
	f := math.Floor(c)
	return int(f), c - f
}

func cornerWeight(frac float64, corner int) float64 {
	if corner == 0 {
		return 1 - frac
	}
	return frac
}
