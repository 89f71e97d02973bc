package mrc

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"mrcstack/pkg/volume"
)

// Writer streams a new MRC file: the main header up front, then raw pixel
// sections appended in storage order. New files are always little-endian.
type Writer struct {
	f      *os.File
	header Header
	buf    []byte
}

// Create writes the header to a new file at path, truncating any existing
// file, and returns a Writer positioned at the start of the extended header
// (or pixel data when header.Next is zero).
func Create(path string, header *Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, header: *header}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header of %s: %w", path, err)
	}
	return w, nil
}

// WriteExtended writes the extended header block, which must match the
// header's Next size exactly. Call it before any plane writes.
func (w *Writer) WriteExtended(ext []byte) error {
	if len(ext) != int(w.header.Next) {
		return fmt.Errorf("extended header is %d bytes, header says %d: %w",
			len(ext), w.header.Next, ErrBadHeader)
	}
	if _, err := w.f.Write(ext); err != nil {
		return fmt.Errorf("writing extended header: %w", err)
	}
	return nil
}

// WriteFloat32Plane appends one XY section of float32 pixels. The header's
// pixel mode must be float32.
func (w *Writer) WriteFloat32Plane(vals []float32) error {
	if w.header.PixelType != ModeFloat32 {
		return fmt.Errorf("pixel mode %d cannot store float32 planes: %w",
			w.header.PixelType, ErrUnsupportedMode)
	}
	want := int(w.header.Num[0]) * int(w.header.Num[1])
	if len(vals) != want {
		return fmt.Errorf("plane has %d pixels, got %d values: %w",
			want, len(vals), volume.ErrShapeMismatch)
	}
	need := 4 * len(vals)
	if cap(w.buf) < need {
		w.buf = make([]byte, need)
	}
	raw := w.buf[:need]
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	if _, err := w.f.Write(raw); err != nil {
		return fmt.Errorf("writing plane: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
