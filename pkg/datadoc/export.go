package datadoc

import (
	"context"
	"fmt"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"mrcstack/pkg/align"
	"mrcstack/pkg/mrc"
	"mrcstack/pkg/volume"
)

// ExportOptions selects what AlignAndCrop emits.
type ExportOptions struct {
	// Wavelengths selects source wavelengths in output order; nil keeps them
	// all. The wavelength crop axis is deliberately ignored.
	Wavelengths []int

	// Timepoints selects source timepoints in output order; nil exports the
	// cropped time range.
	Timepoints []int

	// SavePath streams the result to a new float32 file instead of returning
	// it. When it names the document's own source file, the document's handle
	// on that file is released before writing starts.
	SavePath string
}

// AlignAndCrop resamples the selected wavelengths and timepoints through
// their alignment matrices, crops the spatial axes to the current bounds,
// and either returns the result as a float32 volume in canonical order or,
// when SavePath is set, streams it to disk plane by plane without holding
// more than one working volume in memory.
//
// Wavelengths whose parameters are identity are copied exactly (complex
// data keeps its real part); any other wavelength is interpolated around
// the volume center with out-of-range samples reading zero. A Z translation
// is dropped when the stack has a single Z section, so it only takes effect
// on export targets with depth. Zero-zoom parameters and transforms of
// complex data are rejected before any work begins.
func (d *Document) AlignAndCrop(ctx context.Context, opts ExportOptions) (out *volume.Array, err error) {
	waves := opts.Wavelengths
	if waves == nil {
		waves = make([]int, d.size[0])
		for i := range waves {
			waves[i] = i
		}
	}
	times := opts.Timepoints
	if times == nil {
		times = make([]int, 0, d.cropMax[AxisT]-d.cropMin[AxisT])
		for t := d.cropMin[AxisT]; t < d.cropMax[AxisT]; t++ {
			times = append(times, t)
		}
	}
	for _, w := range waves {
		if w < 0 || w >= d.size[0] {
			return nil, fmt.Errorf("wavelength %d outside [0, %d): %w", w, d.size[0], ErrDimensionMismatch)
		}
	}
	for _, t := range times {
		if t < 0 || t >= d.size[1] {
			return nil, fmt.Errorf("timepoint %d outside [0, %d): %w", t, d.size[1], ErrDimensionMismatch)
		}
	}

	// Resolve each wavelength's inverse up front so parameter problems
	// surface before any output exists. A nil entry means plain copying.
	invs := make(map[int]*mat.Dense, len(waves))
	for _, w := range waves {
		p := d.alignment.Get(w)
		if p.DZ != 0 && d.size[AxisZ] == 1 {
			p.DZ = 0
		}
		if p.IsIdentity() {
			invs[w] = nil
			continue
		}
		if d.data.Dtype().IsComplex() {
			return nil, fmt.Errorf("wavelength %d: %w", w, ErrComplexUnsupported)
		}
		if p.Zoom == 0 {
			return nil, fmt.Errorf("wavelength %d: zoom is zero: %w", w, align.ErrSingularTransform)
		}
		var inv mat.Dense
		if ierr := inv.Inverse(p.Matrix()); ierr != nil {
			return nil, fmt.Errorf("wavelength %d: %v: %w", w, ierr, align.ErrSingularTransform)
		}
		invs[w] = &inv
	}

	nz := d.cropMax[AxisZ] - d.cropMin[AxisZ]
	ny := d.cropMax[AxisY] - d.cropMin[AxisY]
	nx := d.cropMax[AxisX] - d.cropMin[AxisX]
	volLen := nz * ny * nx
	if volLen == 0 || len(waves) == 0 || len(times) == 0 {
		return nil, fmt.Errorf("empty export selection: %w", ErrDimensionMismatch)
	}

	var writer *mrc.Writer
	var buf []float32
	if opts.SavePath != "" {
		if d.Path != "" && filepath.Clean(opts.SavePath) == filepath.Clean(d.Path) {
			if rerr := d.ReleaseSource(); rerr != nil {
				return nil, fmt.Errorf("releasing %s before rewrite: %w", d.Path, rerr)
			}
		}
		hdr := d.header
		hdr.Num = [3]int32{int32(nx), int32(ny), int32(nz * len(waves) * len(times))}
		hdr.PixelType = mrc.ModeFloat32
		hdr.NumWaves = int16(len(waves))
		hdr.NumTimes = int16(len(times))
		hdr.ImgSequence = mrc.SeqZWT
		hdr.Next = 0
		hdr.NumIntegers = 0
		hdr.NumFloats = 0
		writer, err = mrc.Create(opts.SavePath, &hdr)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := writer.Close(); cerr != nil && err == nil {
				out, err = nil, cerr
			}
		}()
	} else {
		buf = make([]float32, len(waves)*len(times)*volLen)
	}

	volBuf := make([]float32, volLen)
	done, total := 0, len(times)*len(waves)
	for ti, t := range times {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("exporting timepoint %d: %w", t, ctx.Err())
		default:
		}
		for wi, w := range waves {
			d.renderVolume(volBuf, w, t, invs[w])
			if writer != nil {
				for z := 0; z < nz; z++ {
					if werr := writer.WriteFloat32Plane(volBuf[z*ny*nx : (z+1)*ny*nx]); werr != nil {
						return nil, werr
					}
				}
			} else {
				copy(buf[(wi*len(times)+ti)*volLen:], volBuf)
			}
			done++
			d.reportProgress(done, total)
		}
	}

	if writer != nil {
		return nil, nil
	}
	return volume.NewFloat32(buf, len(waves), len(times), nz, ny, nx)
}

// renderVolume fills dst, a cropped (Z, Y, X) block in row-major order, with
// wavelength w at timepoint t. A nil inv copies source voxels exactly;
// otherwise each output voxel pulls its source position through inv around
// the spatial center of the full volume, with out-of-range samples reading
// zero.
func (d *Document) renderVolume(dst []float32, w, t int, inv *mat.Dense) {
	zmin, zmax := d.cropMin[AxisZ], d.cropMax[AxisZ]
	ymin, ymax := d.cropMin[AxisY], d.cropMax[AxisY]
	xmin, xmax := d.cropMin[AxisX], d.cropMax[AxisX]

	if inv == nil {
		st := d.data.Strides()
		base := w*st[0] + t*st[1]
		k := 0
		for z := zmin; z < zmax; z++ {
			for y := ymin; y < ymax; y++ {
				row := base + z*st[2] + y*st[3]
				for x := xmin; x < xmax; x++ {
					dst[k] = float32(d.data.AtFlat(row + x))
					k++
				}
			}
		}
		return
	}

	m := matrixCoeffs(inv)
	cx := float64(d.size[AxisX]) / 2
	cy := float64(d.size[AxisY]) / 2
	cz := float64(d.size[AxisZ]) / 2
	s := d.sampler(w)
	tc := float64(t)
	k := 0
	for z := zmin; z < zmax; z++ {
		zc := float64(z) - cz
		for y := ymin; y < ymax; y++ {
			yc := float64(y) - cy
			for x := xmin; x < xmax; x++ {
				xc := float64(x) - cx
				tx := m[0]*xc + m[1]*yc + m[2]*zc + m[3] + cx
				ty := m[4]*xc + m[5]*yc + m[6]*zc + m[7] + cy
				tz := m[8]*xc + m[9]*yc + m[10]*zc + m[11] + cz
				dst[k] = float32(s.lookup(tc, tz, ty, tx, 0))
				k++
			}
		}
	}
}
