package datadoc

import "fmt"

// ViewIndex returns the current view position.
func (d *Document) ViewIndex() [5]int { return d.viewIndex }

// SetViewIndex moves the view position, rejecting coordinates outside the
// volume.
func (d *Document) SetViewIndex(idx [5]int) error {
	for i, v := range idx {
		if v < 0 || v >= d.size[i] {
			return fmt.Errorf("view index %v outside %v: %w", idx, d.size, ErrDimensionMismatch)
		}
	}
	d.viewIndex = idx
	return nil
}

// MoveViewIndex shifts the view position by offset. Axes whose new position
// would leave the volume keep their old value; the others move. The updated
// position is returned.
func (d *Document) MoveViewIndex(offset [5]int) [5]int {
	for i, o := range offset {
		v := d.viewIndex[i] + o
		if v >= 0 && v < d.size[i] {
			d.viewIndex[i] = v
		}
	}
	return d.viewIndex
}

// CropBounds returns the half-open crop box [min, max).
func (d *Document) CropBounds() (min, max [5]int) { return d.cropMin, d.cropMax }

// SetCropBounds replaces the crop box, enforcing 0 <= min <= max <= size on
// every axis.
func (d *Document) SetCropBounds(min, max [5]int) error {
	for i := range min {
		if min[i] < 0 || min[i] > max[i] || max[i] > d.size[i] {
			return fmt.Errorf("crop bounds %v..%v outside %v: %w", min, max, d.size, ErrDimensionMismatch)
		}
	}
	d.cropMin, d.cropMax = min, max
	return nil
}

// ResetCropBounds restores the full-volume crop box.
func (d *Document) ResetCropBounds() {
	d.cropMin = [5]int{}
	d.cropMax = d.size
}

// MoveCropBounds shifts one face of the crop box by offset, clamping so that
// 0 <= min <= max <= size keeps holding on every axis. isMin selects the
// lower face. The updated face is returned.
func (d *Document) MoveCropBounds(offset [5]int, isMin bool) [5]int {
	if isMin {
		for i, o := range offset {
			d.cropMin[i] = clampInt(d.cropMin[i]+o, 0, d.cropMax[i])
		}
		return d.cropMin
	}
	for i, o := range offset {
		d.cropMax[i] = clampInt(d.cropMax[i]+o, d.cropMin[i], d.size[i])
	}
	return d.cropMax
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
