package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information for the CLI.
// This is called from main with values injected at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the root command with the given context. The context is
// propagated to all subcommands and carries the logger configured from
// the --verbose flag.
func Execute(ctx context.Context) error {
	var verbose bool

	root := &cobra.Command{
		Use:   "mrcstack",
		Short: "Inspect, align, and transform MRC/DeltaVision image stacks",
		Long: `mrcstack works with multi-dimensional microscopy stacks in the
MRC/DeltaVision format. It reads stacks of up to five dimensions
(wavelength, time, Z, Y, X), applies per-wavelength alignment
transforms, crops, exports, splits time series, removes camera
stripe artifacts, and renders grayscale previews.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			logger := newLogger(os.Stderr, level)
			cmd.SetContext(withLogger(cmd.Context(), logger))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf(
		"mrcstack {{.Version}} (commit: %s, built: %s)\n", commit, date,
	))

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newInfoCmd(),
		newExportCmd(),
		newDiceCmd(),
		newBatchCmd(),
		newDestripeCmd(),
		newPreviewCmd(),
	)

	return root.ExecuteContext(ctx)
}
