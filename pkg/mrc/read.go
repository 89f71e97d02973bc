package mrc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"mrcstack/pkg/volume"
)

// File is an open MRC/DeltaVision file. The main header is embedded; the
// extended header, when present, is kept as raw bytes and decoded per section
// on demand. The underlying handle stays open until Close so planes can be
// re-read (and, for files opened with OpenRW, rewritten) at any time.
type File struct {
	Header
	ByteOrder binary.ByteOrder
	ExtHeader []byte
	Path      string

	f        *os.File
	writable bool
}

// Open opens an MRC file read-only and parses its headers.
func Open(path string) (*File, error) { return open(path, false) }

// OpenRW opens an MRC file for in-place plane rewrites.
func OpenRW(path string) (*File, error) { return open(path, true) }

func open(path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	h, order, err := DecodeHeader(raw)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	var ext []byte
	if h.Next > 0 {
		ext = make([]byte, h.Next)
		if _, err := io.ReadFull(f, ext); err != nil {
			f.Close()
			return nil, fmt.Errorf("reading extended header of %s: %w", path, err)
		}
	}
	return &File{Header: h, ByteOrder: order, ExtHeader: ext, Path: path, f: f, writable: writable}, nil
}

// DecodeHeader parses a main header from raw, trying little-endian first and
// falling back to big-endian when the little-endian reading fails the sanity
// checks. It returns the byte order that the rest of the file uses.
func DecodeHeader(raw []byte) (Header, binary.ByteOrder, error) {
	if len(raw) < HeaderSize {
		return Header{}, nil, fmt.Errorf("header needs %d bytes, have %d: %w",
			HeaderSize, len(raw), ErrBadHeader)
	}
	orders := []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}
	for _, order := range orders {
		var h Header
		if err := binary.Read(bytes.NewReader(raw[:HeaderSize]), order, &h); err != nil {
			return Header{}, nil, err
		}
		if plausible(&h) {
			return h, order, nil
		}
	}
	return Header{}, nil, fmt.Errorf("no byte order yields a sane header: %w", ErrBadHeader)
}

// plausible is the byte-order sanity check: dimensions, pixel mode, wave
// count and extended-header size of a swapped header land far outside these
// ranges.
func plausible(h *Header) bool {
	if h.Num[0] < 1 || h.Num[0] > 65536 ||
		h.Num[1] < 1 || h.Num[1] > 65536 ||
		h.Num[2] < 1 || h.Num[2] > 1<<24 {
		return false
	}
	if h.PixelType < 0 || h.PixelType > 7 {
		return false
	}
	if h.NumWaves < 0 || h.NumWaves > 5 {
		return false
	}
	if h.Next < 0 || h.Next > 1<<28 {
		return false
	}
	return true
}

// Close releases the underlying file handle. It is safe to call twice.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

func (f *File) handle() (*os.File, error) {
	if f.f == nil {
		return nil, fmt.Errorf("%s: %w", f.Path, os.ErrClosed)
	}
	return f.f, nil
}

// DataOffset returns the byte offset of the first pixel section.
func (f *File) DataOffset() int64 { return HeaderSize + int64(f.Next) }

// PlaneCount returns the number of XY sections in the file.
func (f *File) PlaneCount() int { return int(f.Num[2]) }

// PlaneSize returns the number of pixels in one XY section.
func (f *File) PlaneSize() int { return int(f.Num[0]) * int(f.Num[1]) }

// ReadData reads the whole pixel block into a typed array whose axes follow
// the header's storage ordering (see Header.AxisOrder).
func (f *File) ReadData() (*volume.Array, error) {
	h, err := f.handle()
	if err != nil {
		return nil, err
	}
	dtype, err := f.Dtype()
	if err != nil {
		return nil, err
	}
	shape, err := f.Shape()
	if err != nil {
		return nil, err
	}
	n, err := f.DataSize()
	if err != nil {
		return nil, err
	}
	raw := make([]byte, n)
	if _, err := h.ReadAt(raw, f.DataOffset()); err != nil {
		return nil, fmt.Errorf("reading pixel data of %s: %w", f.Path, err)
	}
	return volume.FromBytes(dtype, f.ByteOrder, raw, shape...)
}

func (f *File) planeOffset(p int) (int64, volume.Dtype, error) {
	dtype, err := f.Dtype()
	if err != nil {
		return 0, 0, err
	}
	if p < 0 || p >= f.PlaneCount() {
		return 0, 0, fmt.Errorf("plane %d out of range [0, %d)", p, f.PlaneCount())
	}
	off := f.DataOffset() + int64(p)*int64(f.PlaneSize())*int64(dtype.Size())
	return off, dtype, nil
}

// ReadPlaneFloats reads XY section p and converts it to float64, row-major.
// Complex data has no float representation and is rejected.
func (f *File) ReadPlaneFloats(p int) ([]float64, error) {
	h, err := f.handle()
	if err != nil {
		return nil, err
	}
	off, dtype, err := f.planeOffset(p)
	if err != nil {
		return nil, err
	}
	if dtype.IsComplex() {
		return nil, fmt.Errorf("plane %d of %s holds complex data: %w", p, f.Path, ErrUnsupportedMode)
	}
	raw := make([]byte, f.PlaneSize()*dtype.Size())
	if _, err := h.ReadAt(raw, off); err != nil {
		return nil, fmt.Errorf("reading plane %d of %s: %w", p, f.Path, err)
	}
	vals := make([]float64, f.PlaneSize())
	switch dtype {
	case volume.Uint8:
		for i := range vals {
			vals[i] = float64(raw[i])
		}
	case volume.Int16:
		for i := range vals {
			vals[i] = float64(int16(f.ByteOrder.Uint16(raw[2*i:])))
		}
	case volume.Uint16:
		for i := range vals {
			vals[i] = float64(f.ByteOrder.Uint16(raw[2*i:]))
		}
	case volume.Float32:
		for i := range vals {
			vals[i] = float64(math.Float32frombits(f.ByteOrder.Uint32(raw[4*i:])))
		}
	}
	return vals, nil
}

// WritePlaneFloats writes vals back to XY section p in the file's own pixel
// mode and byte order. Values are rounded and clamped to the target range
// when the mode is integral. The file must have been opened with OpenRW.
func (f *File) WritePlaneFloats(p int, vals []float64) error {
	h, err := f.handle()
	if err != nil {
		return err
	}
	if !f.writable {
		return fmt.Errorf("%s opened read-only", f.Path)
	}
	off, dtype, err := f.planeOffset(p)
	if err != nil {
		return err
	}
	if dtype.IsComplex() {
		return fmt.Errorf("plane %d of %s holds complex data: %w", p, f.Path, ErrUnsupportedMode)
	}
	if len(vals) != f.PlaneSize() {
		return fmt.Errorf("plane has %d pixels, got %d values: %w",
			f.PlaneSize(), len(vals), volume.ErrShapeMismatch)
	}
	raw := make([]byte, len(vals)*dtype.Size())
	switch dtype {
	case volume.Uint8:
		for i, v := range vals {
			raw[i] = uint8(clamp(v, 0, math.MaxUint8))
		}
	case volume.Int16:
		for i, v := range vals {
			f.ByteOrder.PutUint16(raw[2*i:], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
		}
	case volume.Uint16:
		for i, v := range vals {
			f.ByteOrder.PutUint16(raw[2*i:], uint16(clamp(v, 0, math.MaxUint16)))
		}
	case volume.Float32:
		for i, v := range vals {
			f.ByteOrder.PutUint32(raw[4*i:], math.Float32bits(float32(v)))
		}
	}
	if _, err := h.WriteAt(raw, off); err != nil {
		return fmt.Errorf("writing plane %d of %s: %w", p, f.Path, err)
	}
	return nil
}

// SectionFloats decodes the float block of extended-header record i. Use
// Header.ExtendedHeaderIndex to find the record of a (t, w, z) section.
func (f *File) SectionFloats(i int) ([]float32, error) {
	recSize := 4 * (int(f.NumIntegers) + int(f.NumFloats))
	if recSize == 0 {
		return nil, nil
	}
	lo := i*recSize + 4*int(f.NumIntegers)
	hi := lo + 4*int(f.NumFloats)
	if i < 0 || hi > len(f.ExtHeader) {
		return nil, fmt.Errorf("extended header record %d out of range: %w", i, ErrBadHeader)
	}
	out := make([]float32, f.NumFloats)
	for j := range out {
		out[j] = math.Float32frombits(f.ByteOrder.Uint32(f.ExtHeader[lo+4*j:]))
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
