package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mrcstack/pkg/mrc"
)

// newInfoCmd creates the info command, which prints the geometry and header
// fields of one or more stacks without reading their pixel data.
func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE...",
		Short: "Print stack geometry and header fields",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

func runInfo(ctx context.Context, out io.Writer, paths []string) error {
	logger := loggerFromContext(ctx)
	for i, path := range paths {
		if i > 0 {
			fmt.Fprintln(out)
		}
		f, err := mrc.Open(path)
		if err != nil {
			return err
		}
		err = printInfo(out, f)
		if err == nil && len(f.ExtHeader) > 0 && f.NumFloats > 0 {
			if vals, verr := f.SectionFloats(0); verr == nil && len(vals) > 0 {
				logger.Debug("first extended header record", "floats", vals)
			}
		}
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func printInfo(out io.Writer, f *mrc.File) error {
	size, err := f.Size()
	if err != nil {
		return err
	}
	dtype, err := f.Dtype()
	if err != nil {
		return err
	}
	dataSize, err := f.DataSize()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, f.Path)
	fmt.Fprintf(out, "  dimensions   %d x %d, %d Z, %d T, %d W\n",
		size[4], size[3], size[2], size[1], size[0])
	fmt.Fprintf(out, "  pixel type   %s (mode %d)\n", dtype, f.PixelType)
	fmt.Fprintf(out, "  spacing      %g x %g x %g um\n", f.D[0], f.D[1], f.D[2])
	fmt.Fprintf(out, "  sequence     %s\n", seqName(f.ImgSequence))
	fmt.Fprintf(out, "  byte order   %s\n", f.ByteOrder)
	fmt.Fprintf(out, "  range        [%g, %g] mean %g\n", f.Mmm1[0], f.Mmm1[1], f.Mmm1[2])
	if f.NumWaves > 0 {
		fmt.Fprintf(out, "  wavelengths  %s\n", waveList(f.Wave[:f.NumWaves]))
	}
	fmt.Fprintf(out, "  pixel data   %s\n", humanize.Bytes(uint64(dataSize)))
	if f.Next > 0 {
		fmt.Fprintf(out, "  extended     %s (%d ints + %d floats per section)\n",
			humanize.Bytes(uint64(f.Next)), f.NumIntegers, f.NumFloats)
	}
	for i := 0; i < int(f.NumTitles) && i < len(f.Title); i++ {
		title := strings.TrimRight(string(f.Title[i][:]), "\x00 ")
		if title != "" {
			fmt.Fprintf(out, "  title        %s\n", title)
		}
	}
	return nil
}

func seqName(seq int16) string {
	switch seq {
	case mrc.SeqZTW:
		return "ZTW (wavelength, time, Z)"
	case mrc.SeqWZT:
		return "WZT (time, Z, wavelength)"
	case mrc.SeqZWT:
		return "ZWT (time, wavelength, Z)"
	}
	return fmt.Sprintf("unknown (%d)", seq)
}

func waveList(waves []int16) string {
	parts := make([]string, len(waves))
	for i, w := range waves {
		parts[i] = fmt.Sprintf("%d nm", w)
	}
	return strings.Join(parts, ", ")
}
