// Package batch replays one document's edit state across many files: the
// reference's crop box and alignment parameters are carried onto each target
// stack, which is then exported alongside the original. Files that cannot
// take the parameters are reported and skipped; one bad stack does not stop
// the run.
package batch

import (
	"context"
	"fmt"
	"path/filepath"

	"mrcstack/pkg/datadoc"
)

// Job describes a batch run.
type Job struct {
	// Reference supplies the crop box and alignment parameters.
	Reference *datadoc.Document

	// Files are the stacks to process.
	Files []string

	// Dir receives the exported files, each keeping its original base name.
	Dir string

	// ApplyCrop carries the reference crop box onto each file, with the Z
	// window repositioned for stacks of different depth.
	ApplyCrop bool

	// ApplyAlign carries the reference alignment parameters onto each file,
	// matched by wavelength position.
	ApplyAlign bool
}

// Result is the outcome for one input file.
type Result struct {
	Path string // input file
	Out  string // exported file, empty on failure
	Err  error
}

// Run processes every file in the job. Per-file failures land in the
// returned results; only cancellation aborts the run early.
func Run(ctx context.Context, job Job) ([]Result, error) {
	results := make([]Result, 0, len(job.Files))
	for _, path := range job.Files {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		out, err := processFile(ctx, job, path)
		results = append(results, Result{Path: path, Out: out, Err: err})
	}
	return results, nil
}

func processFile(ctx context.Context, job Job, path string) (string, error) {
	doc, err := datadoc.Open(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	if job.ApplyCrop {
		if err := applyCrop(job.Reference, doc); err != nil {
			return "", err
		}
	}
	if job.ApplyAlign {
		applyAlign(job.Reference, doc)
	}

	out := filepath.Join(job.Dir, filepath.Base(path))
	if _, err := doc.AlignAndCrop(ctx, datadoc.ExportOptions{SavePath: out}); err != nil {
		return "", err
	}
	return out, nil
}

// applyCrop carries ref's crop box onto doc. XY extents must match exactly.
// The Z window keeps the reference's size but slides to the proportionally
// matching position when doc has a different depth; time and wavelength
// bounds clamp to what doc has.
func applyCrop(ref, doc *datadoc.Document) error {
	refSize := ref.Size()
	docSize := doc.Size()
	if refSize[datadoc.AxisY] != docSize[datadoc.AxisY] ||
		refSize[datadoc.AxisX] != docSize[datadoc.AxisX] {
		return fmt.Errorf("XY size %dx%d differs from reference %dx%d: %w",
			docSize[datadoc.AxisX], docSize[datadoc.AxisY],
			refSize[datadoc.AxisX], refSize[datadoc.AxisY],
			datadoc.ErrDimensionMismatch)
	}

	refMin, refMax := ref.CropBounds()
	min, max := refMin, refMax

	zSize := refMax[datadoc.AxisZ] - refMin[datadoc.AxisZ]
	refZ := refSize[datadoc.AxisZ]
	docZ := docSize[datadoc.AxisZ]
	if docZ != refZ {
		// Scale the window's position across the remaining slack, not the
		// window itself: a 10-deep crop stays 10 deep in a deeper stack.
		scale := 0.0
		if refZ > zSize {
			scale = float64(docZ-zSize) / float64(refZ-zSize)
		}
		minZ := int(float64(refMin[datadoc.AxisZ]) * scale)
		maxZ := minZ + zSize
		if maxZ > docZ {
			maxZ = docZ
			minZ = maxZ - zSize
		}
		if minZ < 0 {
			minZ = 0
		}
		if maxZ > docZ {
			maxZ = docZ
		}
		min[datadoc.AxisZ], max[datadoc.AxisZ] = minZ, maxZ
	}

	for _, axis := range []int{datadoc.AxisW, datadoc.AxisT} {
		if max[axis] > docSize[axis] {
			max[axis] = docSize[axis]
		}
		if min[axis] > max[axis] {
			min[axis] = max[axis]
		}
	}
	return doc.SetCropBounds(min, max)
}

// applyAlign copies the reference's parameter rows by wavelength position,
// stopping at whichever document has fewer wavelengths.
func applyAlign(ref, doc *datadoc.Document) {
	n := ref.Alignment().NumWavelengths()
	if m := doc.Alignment().NumWavelengths(); m < n {
		n = m
	}
	for w := 0; w < n; w++ {
		doc.Alignment().Set(w, ref.Alignment().Get(w))
	}
}
