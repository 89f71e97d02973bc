package stripe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"mrcstack/pkg/mrc"
)

// DefaultTag is the filename tag appended to filtered copies.
const DefaultTag = "FFS"

// OutputPath returns src with a tag inserted before the extension:
// img.dv becomes img_FFS.dv.
func OutputPath(src, tag string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + "_" + tag + ext
}

// FilterFile copies the stack at src to dst and filters every XY plane of
// the copy in place, spreading planes across workers (capped at GOMAXPROCS
// when workers is not positive). An empty dst derives the output name from
// src via OutputPath and DefaultTag. Pixels are written back in the file's
// own mode, so integer stacks are rounded and clamped rather than widened.
// The path of the filtered file is returned.
func FilterFile(ctx context.Context, src, dst string, mode Mode, workers int) (string, error) {
	if dst == "" {
		dst = OutputPath(src, DefaultTag)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Validate the source before spending time on the copy.
	probe, err := mrc.Open(src)
	if err != nil {
		return "", err
	}
	dtype, err := probe.Dtype()
	if cerr := probe.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if dtype.IsComplex() {
		return "", fmt.Errorf("%s: %w", src, ErrComplexData)
	}

	if err := copyFile(src, dst); err != nil {
		return "", err
	}

	f, err := mrc.OpenRW(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()

	ny, nx := int(f.Num[1]), int(f.Num[0])
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for p := 0; p < f.PlaneCount(); p++ {
		p := p // per-iteration copy: module targets go 1.21 loop semantics
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			plane, err := f.ReadPlaneFloats(p)
			if err != nil {
				return err
			}
			filtered, err := Filter(plane, ny, nx, mode)
			if err != nil {
				return fmt.Errorf("plane %d: %w", p, err)
			}
			return f.WritePlaneFloats(p, filtered)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
