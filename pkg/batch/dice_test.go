package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"mrcstack/pkg/align"
	"mrcstack/pkg/datadoc"
	"mrcstack/pkg/mrc"
)

func TestDiceSplitsEveryTimepoint(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "series.dv")
	writeStack(t, src, 1, 3, 2, 4, 4, func(w, tt, z, y, x int) float32 {
		return float32(tt*1000 + z*100 + y*10 + x)
	})

	doc, err := datadoc.Open(src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()
	if err := doc.SetCropBounds([5]int{0, 0, 0, 1, 1}, [5]int{1, 3, 2, 3, 3}); err != nil {
		t.Fatalf("SetCropBounds: %v", err)
	}

	outDir := t.TempDir()
	spacing := [3]float32{0.2, 0.2, 1.5}
	written, err := Dice(context.Background(), doc, DiceOptions{Dir: outDir, Spacing: &spacing})
	if err != nil {
		t.Fatalf("Dice: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("wrote %d files, want 3", len(written))
	}

	for tt, path := range written {
		want := filepath.Join(outDir, fmt.Sprintf("series.dv-t%03d", tt))
		if path != want {
			t.Fatalf("output %d = %s, want %s", tt, path, want)
		}
		f, err := mrc.Open(path)
		if err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
		if f.NumTimes != 1 || f.Num != [3]int32{2, 2, 2} {
			t.Errorf("%s: times=%d num=%v", path, f.NumTimes, f.Num)
		}
		if f.D != spacing {
			t.Errorf("%s: spacing = %v, want %v", path, f.D, spacing)
		}
		arr, err := f.ReadData()
		if err != nil {
			t.Fatalf("ReadData: %v", err)
		}
		// First voxel of timepoint tt is source (t=tt, z=0, y=1, x=1).
		if got := arr.AtFlat(0); got != float64(tt*1000+11) {
			t.Errorf("%s: first voxel = %v, want %d", path, got, tt*1000+11)
		}
		f.Close()
	}
}

func TestDiceStopsOnFirstFailure(t *testing.T) {
	doc := memDoc(t, 1, 2, 2, 2, 2, zyxValue)
	doc.Alignment().Set(0, align.Params{Zoom: 0})

	written, err := Dice(context.Background(), doc, DiceOptions{Dir: t.TempDir()})
	if !errors.Is(err, align.ErrSingularTransform) {
		t.Fatalf("err = %v, want ErrSingularTransform", err)
	}
	if len(written) != 0 {
		t.Errorf("wrote %v before failing", written)
	}
}
