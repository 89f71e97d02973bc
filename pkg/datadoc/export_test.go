package datadoc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mrcstack/pkg/align"
	"mrcstack/pkg/mrc"
	"mrcstack/pkg/volume"
)

func TestAlignAndCropCropsInMemory(t *testing.T) {
	doc := gridDoc(t, 1, 1, 4, 6, 8, func(w, tt, z, y, x int) float32 {
		return float32(z*100 + y*10 + x)
	})
	if err := doc.SetCropBounds([5]int{0, 0, 1, 2, 0}, [5]int{1, 1, 3, 5, 4}); err != nil {
		t.Fatalf("SetCropBounds: %v", err)
	}

	out, err := doc.AlignAndCrop(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("AlignAndCrop: %v", err)
	}
	shape := out.Shape()
	want := []int{1, 1, 2, 3, 4}
	for i := range want {
		if shape[i] != want[i] {
			t.Fatalf("shape = %v, want %v", shape, want)
		}
	}
	if got := out.AtFlat(0); got != 120 {
		t.Errorf("first voxel = %v, want source (z=1, y=2, x=0) = 120", got)
	}
	last := out.Len() - 1
	if got := out.AtFlat(last); got != 243 {
		t.Errorf("last voxel = %v, want source (z=2, y=4, x=3) = 243", got)
	}
}

func TestAlignAndCropAppliesTranslation(t *testing.T) {
	doc := gridDoc(t, 1, 1, 1, 1, 10, func(w, tt, z, y, x int) float32 {
		if x == 5 {
			return 100
		}
		return 0
	})
	doc.Alignment().Set(0, align.Params{DX: 2, Zoom: 1})

	out, err := doc.AlignAndCrop(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("AlignAndCrop: %v", err)
	}
	row := out.Float32s()
	if row[7] != 100 {
		t.Errorf("voxel 7 = %v, want 100", row[7])
	}
	// Unlike interactive slices, export fills out-of-range pulls with zero.
	if row[0] != 0 || row[1] != 0 {
		t.Errorf("out-of-range voxels = %v %v, want 0", row[0], row[1])
	}
}

func TestAlignAndCropDropsZShiftOnFlatStacks(t *testing.T) {
	doc := gridDoc(t, 1, 1, 1, 4, 4, func(w, tt, z, y, x int) float32 {
		return float32(y*10 + x)
	})
	doc.Alignment().Set(0, align.Params{DZ: 0.5, Zoom: 1})

	out, err := doc.AlignAndCrop(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("AlignAndCrop: %v", err)
	}
	// With the Z shift dropped the parameters collapse to identity, so the
	// voxels copy through exactly instead of blending toward the fill value.
	for i := 0; i < out.Len(); i++ {
		want := float64((i/4)*10 + i%4)
		if got := out.AtFlat(i); got != want {
			t.Fatalf("voxel %d = %v, want %v", i, got, want)
		}
	}
}

func TestAlignAndCropSubsetsIndexByPosition(t *testing.T) {
	doc := gridDoc(t, 3, 4, 2, 2, 2, func(w, tt, z, y, x int) float32 {
		return float32(w*1000 + tt*100 + z*10 + y*2 + x)
	})

	out, err := doc.AlignAndCrop(context.Background(), ExportOptions{
		Wavelengths: []int{2},
		Timepoints:  []int{3, 1},
	})
	if err != nil {
		t.Fatalf("AlignAndCrop: %v", err)
	}
	shape := out.Shape()
	if shape[0] != 1 || shape[1] != 2 {
		t.Fatalf("shape = %v, want one wavelength and two timepoints", shape)
	}
	// Output position (0, 0) holds wavelength 2, timepoint 3; (0, 1) holds
	// timepoint 1, preserving the requested order.
	if got := out.AtFlat(0); got != 2300 {
		t.Errorf("block (0,0) starts with %v, want 2300", got)
	}
	if got := out.AtFlat(8); got != 2100 {
		t.Errorf("block (0,1) starts with %v, want 2100", got)
	}
}

func TestAlignAndCropStreamsIdenticalFile(t *testing.T) {
	doc := gridDoc(t, 2, 3, 4, 5, 6, func(w, tt, z, y, x int) float32 {
		return float32(w*100000 + tt*10000 + z*1000 + y*10 + x)
	})
	doc.Alignment().Set(1, align.Params{DX: 0.5, DY: -1.25, Angle: 10, Zoom: 1.1})
	if err := doc.SetCropBounds([5]int{0, 1, 1, 0, 2}, [5]int{2, 3, 3, 5, 6}); err != nil {
		t.Fatalf("SetCropBounds: %v", err)
	}

	inMem, err := doc.AlignAndCrop(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("in-memory export: %v", err)
	}

	path := filepath.Join(t.TempDir(), "out.dv")
	if _, err := doc.AlignAndCrop(context.Background(), ExportOptions{SavePath: path}); err != nil {
		t.Fatalf("streaming export: %v", err)
	}

	f, err := mrc.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	if f.Num != [3]int32{4, 5, 2 * 2 * 2} {
		t.Errorf("Num = %v, want [4 5 8]", f.Num)
	}
	if f.PixelType != mrc.ModeFloat32 || f.NumWaves != 2 || f.NumTimes != 2 {
		t.Errorf("header = mode %d, %d waves, %d times", f.PixelType, f.NumWaves, f.NumTimes)
	}
	if f.ImgSequence != mrc.SeqZWT || f.Next != 0 {
		t.Errorf("sequence = %d next = %d, want 2 and 0", f.ImgSequence, f.Next)
	}

	arr, err := f.ReadData()
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	// The file interleaves sections time-slowest; the in-memory result is
	// wavelength-slowest. Normalizing the file's layout must reproduce the
	// in-memory volume bit for bit.
	canon, err := volume.Normalize(arr, "twzyx", [5]int{2, 2, 2, 5, 4})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := inMem.Float32s()
	got := canon.Float32s()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("voxel %d: file %v vs memory %v", i, got[i], want[i])
		}
	}
}

func TestAlignAndCropRejectsZeroZoomBeforeWriting(t *testing.T) {
	doc := gridDoc(t, 1, 1, 2, 2, 2, constant(1))
	doc.Alignment().Set(0, align.Params{Zoom: 0})

	path := filepath.Join(t.TempDir(), "never.dv")
	_, err := doc.AlignAndCrop(context.Background(), ExportOptions{SavePath: path})
	if !errors.Is(err, align.ErrSingularTransform) {
		t.Fatalf("err = %v, want ErrSingularTransform", err)
	}
	if _, serr := os.Stat(path); !errors.Is(serr, os.ErrNotExist) {
		t.Error("output file was created despite the rejected transform")
	}
}

func TestAlignAndCropComplexPolicy(t *testing.T) {
	data := make([]complex64, 8)
	for i := range data {
		data[i] = complex(float32(i), float32(-i))
	}
	arr, err := volume.NewComplex64(data, 1, 1, 2, 2, 2)
	if err != nil {
		t.Fatalf("NewComplex64: %v", err)
	}
	doc, err := New(arr, testHeader())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Identity export keeps the real part.
	out, err := doc.AlignAndCrop(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("identity export: %v", err)
	}
	for i := 0; i < 8; i++ {
		if got := out.AtFlat(i); got != float64(i) {
			t.Fatalf("voxel %d = %v, want real part %d", i, got, i)
		}
	}

	// Any active transform is rejected.
	doc.Alignment().Set(0, align.Params{DX: 1, Zoom: 1})
	if _, err := doc.AlignAndCrop(context.Background(), ExportOptions{}); !errors.Is(err, ErrComplexUnsupported) {
		t.Errorf("err = %v, want ErrComplexUnsupported", err)
	}
}

func TestAlignAndCropHonorsCancellation(t *testing.T) {
	doc := gridDoc(t, 1, 2, 2, 2, 2, constant(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := doc.AlignAndCrop(ctx, ExportOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAlignAndCropValidatesSubsets(t *testing.T) {
	doc := gridDoc(t, 2, 2, 2, 2, 2, constant(1))
	cases := []ExportOptions{
		{Wavelengths: []int{2}},
		{Wavelengths: []int{-1}},
		{Timepoints: []int{5}},
	}
	for i, opts := range cases {
		if _, err := doc.AlignAndCrop(context.Background(), opts); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("case %d: err = %v, want ErrDimensionMismatch", i, err)
		}
	}
}

func TestAlignAndCropProgress(t *testing.T) {
	doc := gridDoc(t, 2, 3, 2, 2, 2, constant(1))
	var calls []int
	doc.SetProgress(func(done, total int) {
		if total != 6 {
			t.Errorf("total = %d, want 6", total)
		}
		calls = append(calls, done)
	})
	if _, err := doc.AlignAndCrop(context.Background(), ExportOptions{}); err != nil {
		t.Fatalf("AlignAndCrop: %v", err)
	}
	if len(calls) != 6 || calls[0] != 1 || calls[5] != 6 {
		t.Errorf("progress calls = %v", calls)
	}
}
