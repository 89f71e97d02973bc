// Package datadoc ties an image stack to its edit state: the canonical
// five-axis pixel volume, per-wavelength alignment parameters, crop bounds,
// and the current view position. All geometry uses the canonical axis order
// (wavelength, time, Z, Y, X); resampling and export pull source coordinates
// through the inverse alignment matrices so the operations compose the same
// way no matter which parameters are active.
package datadoc

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"mrcstack/pkg/align"
	"mrcstack/pkg/mrc"
	"mrcstack/pkg/volume"
)

// Canonical axis numbers.
const (
	AxisW = iota
	AxisT
	AxisZ
	AxisY
	AxisX
)

// ProgressFunc receives export progress: volumes finished out of the total.
type ProgressFunc func(done, total int)

// Document is one open image stack and its edit state.
type Document struct {
	// Path is the file the document was opened from, empty for synthetic
	// documents.
	Path string

	header   mrc.Header
	data     *volume.Array // canonical (w, t, z, y, x)
	size     [5]int
	averages []float64

	alignment *align.Model

	cropMin   [5]int
	cropMax   [5]int
	viewIndex [5]int

	src      *mrc.File
	progress ProgressFunc
}

// Open reads the stack at path and wraps it in a fresh document. The file
// handle stays bound to the document until Close or ReleaseSource.
func Open(path string) (*Document, error) {
	f, err := mrc.Open(path)
	if err != nil {
		return nil, err
	}
	doc, err := fromFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return doc, nil
}

func fromFile(f *mrc.File) (*Document, error) {
	raw, err := f.ReadData()
	if err != nil {
		return nil, err
	}
	order, err := f.AxisOrder()
	if err != nil {
		return nil, err
	}
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	data, err := volume.Normalize(raw, order, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	doc, err := New(data, f.Header)
	if err != nil {
		return nil, err
	}
	doc.Path = f.Path
	doc.src = f
	return doc, nil
}

// New wraps an already canonical five-axis array in a document. The header
// provides metadata such as pixel spacing; its geometry fields are rewritten
// to match the array.
func New(data *volume.Array, header mrc.Header) (*Document, error) {
	shape := data.Shape()
	if len(shape) != 5 {
		return nil, fmt.Errorf("volume has %d axes, want 5: %w", len(shape), ErrDimensionMismatch)
	}
	var size [5]int
	copy(size[:], shape)

	mode, err := mrc.ModeFor(data.Dtype())
	if err != nil {
		return nil, err
	}
	header.Num = [3]int32{int32(size[4]), int32(size[3]), int32(size[2] * size[1] * size[0])}
	header.PixelType = mode
	header.NumWaves = int16(size[0])
	header.NumTimes = int16(size[1])

	d := &Document{header: header, data: data, size: size}
	d.alignment = align.NewModel(size[0])
	d.cropMax = size
	for i := range d.viewIndex {
		d.viewIndex[i] = size[i] / 2
	}
	d.viewIndex[AxisT] = 0
	d.computeAverages()
	return d, nil
}

// computeAverages records each wavelength's mean intensity, the fill value
// for out-of-range interpolation lookups.
func (d *Document) computeAverages() {
	stride := d.size[1] * d.size[2] * d.size[3] * d.size[4]
	d.averages = make([]float64, d.size[0])
	buf := make([]float64, 0, stride)
	for w := 0; w < d.size[0]; w++ {
		buf = d.data.AppendFloats(buf[:0], w*stride, (w+1)*stride)
		d.averages[w] = stat.Mean(buf, nil)
	}
}

// Size returns the canonical per-axis lengths.
func (d *Document) Size() [5]int { return d.size }

// Dtype returns the pixel type of the underlying volume.
func (d *Document) Dtype() volume.Dtype { return d.data.Dtype() }

// Data returns the canonical pixel volume.
func (d *Document) Data() *volume.Array { return d.data }

// Header returns a copy of the document's header.
func (d *Document) Header() mrc.Header { return d.header }

// Alignment returns the per-wavelength alignment model. Mutations through
// the model take effect on the next resample.
func (d *Document) Alignment() *align.Model { return d.alignment }

// Averages returns each wavelength's mean intensity.
func (d *Document) Averages() []float64 { return append([]float64(nil), d.averages...) }

// SetProgress installs a callback invoked as export work completes.
func (d *Document) SetProgress(fn ProgressFunc) { d.progress = fn }

func (d *Document) reportProgress(done, total int) {
	if d.progress != nil {
		d.progress(done, total)
	}
}

// PixelSpacing returns the (x, y, z) pixel spacing in microns.
func (d *Document) PixelSpacing() [3]float32 { return d.header.D }

// SetPixelSpacing overrides the (x, y, z) pixel spacing written to exported
// headers.
func (d *Document) SetPixelSpacing(dx, dy, dz float32) {
	d.header.D = [3]float32{dx, dy, dz}
}

// ToMicrons converts (x, y, z) pixel offsets to micron distances.
func (d *Document) ToMicrons(offsets [3]float64) [3]float64 {
	var out [3]float64
	for i := range out {
		out[i] = offsets[i] * float64(d.header.D[i])
	}
	return out
}

// FromMicrons converts (x, y, z) micron distances to pixel offsets.
func (d *Document) FromMicrons(microns [3]float64) [3]float64 {
	var out [3]float64
	for i := range out {
		out[i] = microns[i] / float64(d.header.D[i])
	}
	return out
}

// ReleaseSource drops the document's handle on its source file. The pixel
// data stays in memory, so the document remains fully usable; export calls
// this before overwriting the source in place.
func (d *Document) ReleaseSource() error {
	if d.src == nil {
		return nil
	}
	err := d.src.Close()
	d.src = nil
	return err
}

// Close releases the source file handle.
func (d *Document) Close() error { return d.ReleaseSource() }
