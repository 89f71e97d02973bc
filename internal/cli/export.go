package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mrcstack/pkg/align"
	"mrcstack/pkg/datadoc"
)

type exportOpts struct {
	output      string
	alignFile   string
	cropMin     string
	cropMax     string
	wavelengths string
	timepoints  string
}

// newExportCmd creates the export command, which resamples a stack through
// its alignment transforms, applies the crop window, and writes the result
// as a 32-bit float DeltaVision file.
func newExportCmd() *cobra.Command {
	var opts exportOpts
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write an aligned, cropped copy of a stack",
		Long: `Export resamples a stack through per-wavelength alignment transforms,
applies the crop window, and writes the selected wavelengths and
timepoints to a new 32-bit float DeltaVision file.

Alignment parameters are read from a YAML file written by "mrcstack"
or by hand:

    wavelengths:
      - {dx: 2.5, dy: -1.0, dz: 0, angle: 0.8, zoom: 1.02}
      - {dx: 0, dy: 0, dz: 0, angle: 0, zoom: 1}

Crop bounds name all five axes in W,T,Z,Y,X order; the upper bound is
exclusive. Wavelength and timepoint selections name source positions;
when omitted, every wavelength and the cropped time range is exported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file path (required)")
	cmd.Flags().StringVar(&opts.alignFile, "align", "", "YAML file with per-wavelength alignment parameters")
	cmd.Flags().StringVar(&opts.cropMin, "crop-min", "", "lower crop bounds as W,T,Z,Y,X")
	cmd.Flags().StringVar(&opts.cropMax, "crop-max", "", "upper crop bounds as W,T,Z,Y,X, exclusive")
	cmd.Flags().StringVar(&opts.wavelengths, "wavelengths", "", "comma-separated wavelength positions to keep")
	cmd.Flags().StringVar(&opts.timepoints, "timepoints", "", "comma-separated timepoint positions to keep")
	cmd.MarkFlagRequired("output")

	return cmd
}

func runExport(ctx context.Context, path string, opts *exportOpts) error {
	logger := loggerFromContext(ctx)
	p := newProgress(logger)

	doc, err := datadoc.Open(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	size := doc.Size()
	logger.Debug("opened stack", "path", path, "size", size, "dtype", doc.Dtype())

	if opts.alignFile != "" {
		if err := applyAlignFile(doc, opts.alignFile); err != nil {
			return err
		}
	}
	if err := applyCropFlags(doc, opts.cropMin, opts.cropMax); err != nil {
		return err
	}
	waves, err := parseIntList(opts.wavelengths)
	if err != nil {
		return fmt.Errorf("--wavelengths: %w", err)
	}
	times, err := parseIntList(opts.timepoints)
	if err != nil {
		return fmt.Errorf("--timepoints: %w", err)
	}

	doc.SetProgress(func(done, total int) {
		logger.Debug("resampled volume", "done", done, "total", total)
	})

	if _, err := doc.AlignAndCrop(ctx, datadoc.ExportOptions{
		Wavelengths: waves,
		Timepoints:  times,
		SavePath:    opts.output,
	}); err != nil {
		return err
	}

	msg := fmt.Sprintf("Exported %s", opts.output)
	if fi, serr := os.Stat(opts.output); serr == nil {
		msg = fmt.Sprintf("Exported %s (%s)", opts.output, humanize.Bytes(uint64(fi.Size())))
	}
	p.done(msg)
	return nil
}

// applyAlignFile loads alignment parameters from a YAML file and applies them
// to doc's wavelengths positionally, ignoring extra rows.
func applyAlignFile(doc *datadoc.Document, path string) error {
	params, err := align.LoadParams(path)
	if err != nil {
		return err
	}
	model := doc.Alignment()
	n := min(len(params), model.NumWavelengths())
	for w := 0; w < n; w++ {
		model.Set(w, params[w])
	}
	return nil
}

func applyCropFlags(doc *datadoc.Document, minSpec, maxSpec string) error {
	if minSpec == "" && maxSpec == "" {
		return nil
	}
	lo, hi := doc.CropBounds()
	if minSpec != "" {
		b, err := parseBounds(minSpec)
		if err != nil {
			return fmt.Errorf("--crop-min: %w", err)
		}
		lo = b
	}
	if maxSpec != "" {
		b, err := parseBounds(maxSpec)
		if err != nil {
			return fmt.Errorf("--crop-max: %w", err)
		}
		hi = b
	}
	return doc.SetCropBounds(lo, hi)
}

// parseBounds parses five comma-separated axis values in W,T,Z,Y,X order.
func parseBounds(s string) ([5]int, error) {
	var b [5]int
	parts := strings.Split(s, ",")
	if len(parts) != len(b) {
		return b, fmt.Errorf("want 5 comma-separated values (W,T,Z,Y,X), got %d", len(parts))
	}
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return b, err
		}
		b[i] = v
	}
	return b, nil
}

// parseIntList parses a comma-separated integer list; empty input yields nil.
func parseIntList(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
