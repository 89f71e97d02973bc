package cli

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"mrcstack/pkg/config"
	"mrcstack/pkg/datadoc"
	"mrcstack/pkg/volume"
)

type previewOpts struct {
	output     string
	plane      string
	wavelength int
	at         string
	raw        bool
	alignFile  string
	configPath string
}

// newPreviewCmd creates the preview command, which renders a 2D cut through
// a stack as a 16-bit grayscale PNG.
func newPreviewCmd() *cobra.Command {
	var opts previewOpts
	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Render a slice of a stack as a grayscale PNG",
		Long: `Preview cuts a 2D plane out of a stack and writes it as a 16-bit
grayscale PNG, scaled to the slice's own intensity range.

The plane names two of the t, z, y, x axes; rows and columns follow
canonical axis order, so "xy" renders an image plane, "xz" a side
view, and "tx" a kymograph. The remaining axes are pinned at the
view position, which defaults to the spatial center at the first
timepoint. Unless --raw is given, pixels are resampled through the
alignment transforms the same way export resamples them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output PNG path (default: source name plus plane)")
	cmd.Flags().StringVar(&opts.plane, "plane", "xy", "plane to render: two of t, z, y, x")
	cmd.Flags().IntVar(&opts.wavelength, "wavelength", -1, "wavelength position to render (-1: from config)")
	cmd.Flags().StringVar(&opts.at, "at", "", "view position as W,T,Z,Y,X (default: spatial center, first timepoint)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "copy pixels directly instead of resampling through the alignment")
	cmd.Flags().StringVar(&opts.alignFile, "align", "", "YAML file with per-wavelength alignment parameters")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML configuration file")

	return cmd
}

func runPreview(ctx context.Context, path string, opts *previewOpts) error {
	logger := loggerFromContext(ctx)
	p := newProgress(logger)

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
	}

	doc, err := datadoc.Open(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	if opts.alignFile != "" {
		if err := applyAlignFile(doc, opts.alignFile); err != nil {
			return err
		}
	}
	if opts.at != "" {
		idx, err := parseBounds(opts.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		if err := doc.SetViewIndex(idx); err != nil {
			return err
		}
	}

	spanned, err := parsePlane(opts.plane)
	if err != nil {
		return err
	}

	transformed := cfg.Preview.Transformed
	if opts.raw {
		transformed = false
	}
	logger.Debug("taking slice", "plane", opts.plane, "at", doc.ViewIndex(), "transformed", transformed)

	arr, err := doc.TakeViewSlice(spanned, transformed)
	if err != nil {
		return err
	}

	w := cfg.Preview.Wavelength
	if opts.wavelength >= 0 {
		w = opts.wavelength
	}
	if w >= arr.Shape()[0] {
		return fmt.Errorf("wavelength %d outside [0, %d)", w, arr.Shape()[0])
	}

	img := grayImage(arr, w)

	out := opts.output
	if out == "" {
		out = previewPath(path, opts.plane)
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	b := img.Bounds()
	p.done(fmt.Sprintf("Rendered %dx%d preview into %s", b.Dx(), b.Dy(), out))
	return nil
}

// axisLetters maps plane letters onto canonical axes.
var axisLetters = map[byte]int{
	't': datadoc.AxisT,
	'z': datadoc.AxisZ,
	'y': datadoc.AxisY,
	'x': datadoc.AxisX,
}

// parsePlane resolves a two-letter plane name ("xy", "xz", "tx", ...) into
// the pair of axes spanning the output. Row and column assignment follows
// canonical axis order, so "xy" and "yx" name the same plane.
func parsePlane(s string) ([2]int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] == s[1] {
		return [2]int{}, fmt.Errorf("plane %q: want two distinct letters out of t, z, y, x", s)
	}
	a, ok := axisLetters[s[0]]
	if !ok {
		return [2]int{}, fmt.Errorf("plane %q: unknown axis %q", s, string(s[0]))
	}
	b, ok := axisLetters[s[1]]
	if !ok {
		return [2]int{}, fmt.Errorf("plane %q: unknown axis %q", s, string(s[1]))
	}
	return [2]int{a, b}, nil
}

func previewPath(src, plane string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + "_" + plane + ".png"
}

// grayImage renders one wavelength of a slice as 16-bit grayscale, mapping
// the slice's own value range onto [0, 65535]. Flat slices come out black.
func grayImage(arr *volume.Array, w int) *image.Gray16 {
	shape := arr.Shape()
	rows, cols := shape[1], shape[2]
	vals := arr.AppendFloats(make([]float64, 0, rows*cols), w*rows*cols, (w+1)*rows*cols)

	lo, hi := floats.Min(vals), floats.Max(vals)
	scale := 0.0
	if hi > lo {
		scale = math.MaxUint16 / (hi - lo)
	}

	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := (vals[y*cols+x] - lo) * scale
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v))})
		}
	}
	return img
}
