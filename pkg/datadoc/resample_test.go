package datadoc

import (
	"errors"
	"math"
	"testing"

	"mrcstack/pkg/align"
	"mrcstack/pkg/volume"
)

func TestTakeSliceDirectKeepsDtypeAndValues(t *testing.T) {
	data := make([]int16, 2*3*4*5*6)
	for i := range data {
		data[i] = int16(i)
	}
	arr, err := volume.NewInt16(data, 2, 3, 4, 5, 6)
	if err != nil {
		t.Fatalf("NewInt16: %v", err)
	}
	doc, err := New(arr, testHeader())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := doc.TakeSlice(map[int]int{AxisT: 1, AxisZ: 2}, false)
	if err != nil {
		t.Fatalf("TakeSlice: %v", err)
	}
	if out.Dtype() != volume.Int16 {
		t.Fatalf("dtype = %v, want int16", out.Dtype())
	}
	shape := out.Shape()
	if shape[0] != 2 || shape[1] != 5 || shape[2] != 6 {
		t.Fatalf("shape = %v, want [2 5 6]", shape)
	}
	st := arr.Strides()
	for w := 0; w < 2; w++ {
		for y := 0; y < 5; y++ {
			for x := 0; x < 6; x++ {
				want := arr.AtFlat(w*st[0] + 1*st[1] + 2*st[2] + y*st[3] + x*st[4])
				if got := out.AtFlat((w*5+y)*6 + x); got != want {
					t.Fatalf("out[%d][%d][%d] = %v, want %v", w, y, x, got, want)
				}
			}
		}
	}
}

func TestTakeSliceValidatesFixedAxes(t *testing.T) {
	doc := gridDoc(t, 1, 2, 3, 4, 5, constant(0))
	cases := []map[int]int{
		{AxisT: 0},                     // too few
		{AxisT: 0, AxisZ: 0, AxisY: 0}, // too many
		{AxisW: 0, AxisT: 0},           // wavelength cannot be fixed
		{AxisT: 0, AxisZ: 3},           // out of range
	}
	for i, fixed := range cases {
		if _, err := doc.TakeSlice(fixed, false); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("case %d: err = %v, want ErrDimensionMismatch", i, err)
		}
	}
}

func TestTransformedSliceShiftsContent(t *testing.T) {
	// One bright voxel at x=5 in a 10-wide row; everything else 0.
	doc := gridDoc(t, 1, 1, 1, 1, 10, func(w, tt, z, y, x int) float32 {
		if x == 5 {
			return 100
		}
		return 0
	})
	doc.Alignment().Set(0, align.Params{DX: 2, Zoom: 1})

	out, err := doc.TakeSlice(map[int]int{AxisT: 0, AxisZ: 0}, true)
	if err != nil {
		t.Fatalf("TakeSlice: %v", err)
	}
	if out.Dtype() != volume.Float32 {
		t.Fatalf("dtype = %v, want float32", out.Dtype())
	}
	row := out.Float32s()
	if row[7] != 100 {
		t.Errorf("pixel 7 = %v, want 100 (content shifted +2)", row[7])
	}
	if row[5] != 0 {
		t.Errorf("pixel 5 = %v, want 0", row[5])
	}

	// Coordinates that map outside the row read the wavelength mean (10).
	if row[0] != 10 || row[1] != 10 {
		t.Errorf("out-of-range pixels = %v %v, want the mean 10", row[0], row[1])
	}
}

func TestTransformedSliceZoomScalesTranslation(t *testing.T) {
	// The zoom factor multiplies the whole matrix, translation included, and
	// the shared factor cancels in the inverse, leaving out = zoom*src + dx
	// about the center: the voxel at x=5 (3 left of center 8) lands 4 left of
	// center, at x=4, where the pulled-back coordinate is again integral.
	doc := gridDoc(t, 1, 1, 1, 1, 16, func(w, tt, z, y, x int) float32 {
		if x == 5 {
			return 64
		}
		return 0
	})
	doc.Alignment().Set(0, align.Params{DX: 2, Zoom: 2})

	out, err := doc.TakeSlice(map[int]int{AxisT: 0, AxisZ: 0}, true)
	if err != nil {
		t.Fatalf("TakeSlice: %v", err)
	}
	if got := out.Float32s()[4]; got != 64 {
		t.Errorf("pixel 4 = %v, want 64", got)
	}
	// One output pixel right of it, the pull-back lands halfway between the
	// bright voxel and its dark neighbor.
	if got := out.Float32s()[5]; got != 32 {
		t.Errorf("pixel 5 = %v, want 32", got)
	}
}

func TestTransformedSliceIdentityMatchesDirect(t *testing.T) {
	doc := gridDoc(t, 2, 1, 3, 4, 5, func(w, tt, z, y, x int) float32 {
		return float32(w*1000 + z*100 + y*10 + x)
	})

	direct, err := doc.TakeSlice(map[int]int{AxisT: 0, AxisZ: 1}, false)
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	transformed, err := doc.TakeSlice(map[int]int{AxisT: 0, AxisZ: 1}, true)
	if err != nil {
		t.Fatalf("transformed: %v", err)
	}
	for i := 0; i < direct.Len(); i++ {
		if d, tr := direct.AtFlat(i), transformed.AtFlat(i); math.Abs(d-tr) > 1e-4 {
			t.Fatalf("element %d: direct %v vs transformed %v", i, d, tr)
		}
	}
}

func TestTransformedSliceTimeAxisRidesAlong(t *testing.T) {
	doc := gridDoc(t, 1, 3, 1, 1, 5, func(w, tt, z, y, x int) float32 {
		return float32(tt*100 + x)
	})

	// Fixing Z and Y leaves (time, X) spanning the output, timepoints
	// ascending along the outer axis.
	out, err := doc.TakeSlice(map[int]int{AxisZ: 0, AxisY: 0}, true)
	if err != nil {
		t.Fatalf("TakeSlice: %v", err)
	}
	shape := out.Shape()
	if shape[0] != 1 || shape[1] != 3 || shape[2] != 5 {
		t.Fatalf("shape = %v, want [1 3 5]", shape)
	}
	vals := out.Float32s()
	for tt := 0; tt < 3; tt++ {
		for x := 0; x < 5; x++ {
			want := float32(tt*100 + x)
			if got := vals[tt*5+x]; got != want {
				t.Fatalf("out[%d][%d] = %v, want %v", tt, x, got, want)
			}
		}
	}
}

func TestTakeViewSliceUsesViewIndex(t *testing.T) {
	doc := gridDoc(t, 1, 2, 4, 4, 4, func(w, tt, z, y, x int) float32 {
		return float32(tt*1000 + z*100 + y*10 + x)
	})
	if err := doc.SetViewIndex([5]int{0, 1, 3, 0, 0}); err != nil {
		t.Fatalf("SetViewIndex: %v", err)
	}

	out, err := doc.TakeViewSlice([2]int{AxisY, AxisX}, false)
	if err != nil {
		t.Fatalf("TakeViewSlice: %v", err)
	}
	// Pinned at t=1, z=3 from the view index.
	if got := out.AtFlat(0); got != 1300 {
		t.Errorf("origin pixel = %v, want 1300", got)
	}
}

func TestTransformedSliceRejectsComplex(t *testing.T) {
	arr, err := volume.NewComplex64(make([]complex64, 8), 1, 1, 2, 2, 2)
	if err != nil {
		t.Fatalf("NewComplex64: %v", err)
	}
	doc, err := New(arr, testHeader())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = doc.TakeSlice(map[int]int{AxisT: 0, AxisZ: 0}, true)
	if !errors.Is(err, ErrComplexUnsupported) {
		t.Errorf("err = %v, want ErrComplexUnsupported", err)
	}
	// Direct slicing of complex data stays available.
	if _, err := doc.TakeSlice(map[int]int{AxisT: 0, AxisZ: 0}, false); err != nil {
		t.Errorf("direct slice: %v", err)
	}
}

func TestValuesAtReportsSourceCoordinates(t *testing.T) {
	doc := gridDoc(t, 2, 1, 1, 1, 10, func(w, tt, z, y, x int) float32 {
		if x == 5 {
			return 100
		}
		return 0
	})
	doc.Alignment().Set(1, align.Params{DX: 2, Zoom: 1})

	values, coords, err := doc.ValuesAt([4]int{0, 0, 0, 7})
	if err != nil {
		t.Fatalf("ValuesAt: %v", err)
	}
	// Wavelength 0 is identity: reads x=7 itself.
	if coords[0] != [4]int{0, 0, 0, 7} || values[0] != 0 {
		t.Errorf("wavelength 0: value %v at %v", values[0], coords[0])
	}
	// Wavelength 1 pulls from x=5.
	if coords[1] != [4]int{0, 0, 0, 5} {
		t.Errorf("wavelength 1 coord = %v, want x=5", coords[1])
	}
	if values[1] != 100 {
		t.Errorf("wavelength 1 value = %v, want 100", values[1])
	}
}

func TestValuesAtOutOfRangeReadsMean(t *testing.T) {
	doc := gridDoc(t, 1, 1, 1, 1, 10, func(w, tt, z, y, x int) float32 {
		if x == 5 {
			return 100
		}
		return 0
	})
	doc.Alignment().Set(0, align.Params{DX: 8, Zoom: 1})

	values, coords, err := doc.ValuesAt([4]int{0, 0, 0, 2})
	if err != nil {
		t.Fatalf("ValuesAt: %v", err)
	}
	if coords[0][3] != -6 {
		t.Errorf("coord x = %d, want -6", coords[0][3])
	}
	if values[0] != 10 {
		t.Errorf("value = %v, want the mean 10", values[0])
	}

	if _, _, err := doc.ValuesAt([4]int{0, 0, 0, 10}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestSliceShape(t *testing.T) {
	doc := gridDoc(t, 3, 2, 4, 5, 6, constant(0))
	shape, err := doc.SliceShape(map[int]int{AxisT: 0, AxisY: 0})
	if err != nil {
		t.Fatalf("SliceShape: %v", err)
	}
	if shape != [3]int{3, 4, 6} {
		t.Errorf("shape = %v, want [3 4 6]", shape)
	}
}
