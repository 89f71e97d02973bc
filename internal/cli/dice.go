package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mrcstack/pkg/batch"
	"mrcstack/pkg/datadoc"
)

type diceOpts struct {
	dir       string
	alignFile string
	cropMin   string
	cropMax   string
	xySize    float64
	zSize     float64
}

// newDiceCmd creates the dice command, which splits a time series into one
// single-timepoint file per timepoint.
func newDiceCmd() *cobra.Command {
	var opts diceOpts
	cmd := &cobra.Command{
		Use:   "dice FILE",
		Short: "Split a time series into one file per timepoint",
		Long: `Dice exports every timepoint as its own single-timepoint
DeltaVision file named after the source: series.dv becomes
series.dv-t000, series.dv-t001, and so on. Alignment and the spatial
crop apply to each output; the crop's time axis is ignored.

The pixel spacing flags override the calibration written to the
output headers, which is useful when the source recorded none.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDice(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "output directory")
	cmd.Flags().StringVar(&opts.alignFile, "align", "", "YAML file with per-wavelength alignment parameters")
	cmd.Flags().StringVar(&opts.cropMin, "crop-min", "", "lower crop bounds as W,T,Z,Y,X")
	cmd.Flags().StringVar(&opts.cropMax, "crop-max", "", "upper crop bounds as W,T,Z,Y,X, exclusive")
	cmd.Flags().Float64Var(&opts.xySize, "xy-size", 0, "pixel spacing in microns for X and Y (0: keep the source value)")
	cmd.Flags().Float64Var(&opts.zSize, "z-size", 0, "pixel spacing in microns for Z (0: keep the source value)")

	return cmd
}

func runDice(ctx context.Context, path string, opts *diceOpts) error {
	logger := loggerFromContext(ctx)
	p := newProgress(logger)

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
	if err := applyCropFlags(doc, opts.cropMin, opts.cropMax); err != nil {
		return err
	}

	dopts := batch.DiceOptions{Dir: opts.dir}
	if opts.xySize > 0 || opts.zSize > 0 {
		spacing := doc.PixelSpacing()
		if opts.xySize > 0 {
			spacing[0] = float32(opts.xySize)
			spacing[1] = float32(opts.xySize)
		}
		if opts.zSize > 0 {
			spacing[2] = float32(opts.zSize)
		}
		dopts.Spacing = &spacing
	}

	written, err := batch.Dice(ctx, doc, dopts)
	for _, out := range written {
		logger.Debug("wrote timepoint", "file", out)
	}
	if err != nil {
		return err
	}
	p.done(fmt.Sprintf("Diced %d timepoints into %s", len(written), opts.dir))
	return nil
}
