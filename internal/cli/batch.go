package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mrcstack/pkg/batch"
	"mrcstack/pkg/datadoc"
)

type batchOpts struct {
	dir       string
	alignFile string
	cropMin   string
	cropMax   string
	skipCrop  bool
	skipAlign bool
}

// newBatchCmd creates the batch command, which replays one stack's crop and
// alignment parameters across many files.
func newBatchCmd() *cobra.Command {
	var opts batchOpts
	cmd := &cobra.Command{
		Use:   "batch REFERENCE FILE...",
		Short: "Replay crop and alignment across many stacks",
		Long: `Batch applies the crop window and alignment parameters configured on a
reference stack to every listed file and exports each one into the
output directory under its original name.

The crop and alignment flags edit the reference before the run. Targets
must match the reference's XY extent; the Z window slides to the
proportionally matching position in stacks of different depth, and
wavelength and time bounds clamp to what each file has. A file that
cannot take the parameters is reported and skipped; the run continues.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", ".", "output directory")
	cmd.Flags().StringVar(&opts.alignFile, "align", "", "YAML file with per-wavelength alignment parameters for the reference")
	cmd.Flags().StringVar(&opts.cropMin, "crop-min", "", "lower crop bounds as W,T,Z,Y,X for the reference")
	cmd.Flags().StringVar(&opts.cropMax, "crop-max", "", "upper crop bounds as W,T,Z,Y,X, exclusive, for the reference")
	cmd.Flags().BoolVar(&opts.skipCrop, "skip-crop", false, "do not carry the crop window onto the targets")
	cmd.Flags().BoolVar(&opts.skipAlign, "skip-align", false, "do not carry the alignment onto the targets")

	return cmd
}

func runBatch(ctx context.Context, args []string, opts *batchOpts) error {
	logger := loggerFromContext(ctx)
	p := newProgress(logger)

	ref, err := datadoc.Open(args[0])
	if err != nil {
		return err
	}
	defer ref.Close()

	if opts.alignFile != "" {
		if err := applyAlignFile(ref, opts.alignFile); err != nil {
			return err
		}
	}
	if err := applyCropFlags(ref, opts.cropMin, opts.cropMax); err != nil {
		return err
	}

	results, err := batch.Run(ctx, batch.Job{
		Reference:  ref,
		Files:      args[1:],
		Dir:        opts.dir,
		ApplyCrop:  !opts.skipCrop,
		ApplyAlign: !opts.skipAlign,
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("failed", "file", r.Path, "err", r.Err)
		} else {
			logger.Info("wrote", "file", r.Out)
		}
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	p.done(fmt.Sprintf("Processed %d files into %s", len(results), opts.dir))
	return nil
}
