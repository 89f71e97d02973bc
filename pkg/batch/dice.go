package batch

import (
	"context"
	"fmt"
	"path/filepath"

	"mrcstack/pkg/datadoc"
)

// DiceOptions controls how a stack is split into per-timepoint files.
type DiceOptions struct {
	// Dir receives the output files.
	Dir string

	// Spacing, when non-nil, overrides the (x, y, z) pixel spacing written
	// to every output header.
	Spacing *[3]float32
}

// Dice exports every timepoint of doc as its own single-timepoint file,
// applying the document's alignment and spatial crop to each. The time axis
// of the crop box is ignored: each output holds exactly one timepoint.
// Output names append the timepoint to the base name: img.dv-t000,
// img.dv-t001 and so on. The paths written so far are returned even when a
// timepoint fails.
func Dice(ctx context.Context, doc *datadoc.Document, opts DiceOptions) ([]string, error) {
	if opts.Spacing != nil {
		doc.SetPixelSpacing(opts.Spacing[0], opts.Spacing[1], opts.Spacing[2])
	}

	base := filepath.Base(doc.Path)
	if doc.Path == "" {
		base = "stack"
	}

	var written []string
	for t := 0; t < doc.Size()[datadoc.AxisT]; t++ {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}
		out := filepath.Join(opts.Dir, fmt.Sprintf("%s-t%03d", base, t))
		_, err := doc.AlignAndCrop(ctx, datadoc.ExportOptions{
			Timepoints: []int{t},
			SavePath:   out,
		})
		if err != nil {
			return written, fmt.Errorf("timepoint %d: %w", t, err)
		}
		written = append(written, out)
	}
	return written, nil
}
