// Package diffplan implements the Difference Planner (spec.md section
// 4.3, component C3): per-target-path verbatim/patched/unchanged
// classification, patch admission, and the bounded worker pool spec.md
// section 5 requires for the external Difference.compute_patch
// capability.
package diffplan

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/otaerr"
)

// PatchComputer is the external binary-diff capability
// (Difference.compute_patch) this package consumes; its implementation
// is out of scope for this engine (spec.md section 1).
type PatchComputer interface {
	ComputePatch(ctx context.Context, source, target *blobutil.FileBlob) ([]byte, error)
}

// DecisionKind is the tag of a PatchDecision (spec.md section 3).
type DecisionKind int

const (
	Unchanged DecisionKind = iota
	Verbatim
	Patched
)

// PatchDecision is one classified target path (spec.md section 3).
type PatchDecision struct {
	Kind DecisionKind
	Path string

	// Verbatim
	Size int64

	// Patched
	Target     *blobutil.FileBlob
	Source     *blobutil.FileBlob
	TargetSize int64
	PatchBytes []byte
	PatchSHA1  string
}

// Options configures one planning run.
type Options struct {
	// PatchThreshold is the size-ratio cutoff (default 0.95): a patch
	// whose byte length exceeds PatchThreshold * target size is demoted
	// to Verbatim.
	PatchThreshold float64
	// WorkerThreads bounds concurrent ComputePatch calls (default 3).
	WorkerThreads int
	// RequireVerbatim/ProhibitVerbatim are device-profile path lists
	// (spec.md section 4.3 step 1).
	RequireVerbatim  map[string]bool
	ProhibitVerbatim map[string]bool
}

// Result is C3's output.
type Result struct {
	Decisions         []PatchDecision
	LargestSourceSize int64
}

// Plan classifies every target path in sorted order (spec.md 4.3) and
// returns the accepted decisions plus the largest accepted patch's
// source size (spec.md 4.3 "Track largest_source_size").
func Plan(ctx context.Context, source, target map[string]*blobutil.FileBlob, computer PatchComputer, opts Options) (*Result, error) {
	if opts.PatchThreshold <= 0 {
		opts.PatchThreshold = 0.95
	}
	if opts.WorkerThreads <= 0 {
		opts.WorkerThreads = 3
	}

	paths := make([]string, 0, len(target))
	for p := range target {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	decisions := make([]PatchDecision, len(paths))
	needsPatch := make([]bool, len(paths))

	for i, path := range paths {
		targetBlob := target[path]
		sourceBlob, inSource := source[path]

		if opts.RequireVerbatim[path] && opts.ProhibitVerbatim[path] {
			return nil, otaerr.ConfigConflict("path %q is both required and prohibited verbatim", path)
		}

		wouldBeVerbatim := !inSource || opts.RequireVerbatim[path]

		switch {
		case wouldBeVerbatim && opts.ProhibitVerbatim[path]:
			return nil, otaerr.ConfigConflict("path %q is prohibited verbatim but would be sent verbatim", path)
		case wouldBeVerbatim:
			decisions[i] = PatchDecision{Kind: Verbatim, Path: path, Size: targetBlob.Size()}
		case blobutil.SameContent(sourceBlob, targetBlob):
			decisions[i] = PatchDecision{Kind: Unchanged, Path: path}
		default:
			decisions[i] = PatchDecision{
				Kind: Patched, Path: path,
				Target: targetBlob, Source: sourceBlob, TargetSize: targetBlob.Size(),
			}
			needsPatch[i] = true
		}
	}

	if err := computePatches(ctx, paths, decisions, needsPatch, computer, opts.WorkerThreads); err != nil {
		return nil, err
	}

	var largestSourceSize int64
	for i := range decisions {
		d := &decisions[i]
		if d.Kind != Patched {
			continue
		}
		if float64(len(d.PatchBytes)) > opts.PatchThreshold*float64(d.TargetSize) {
			*d = PatchDecision{Kind: Verbatim, Path: d.Path, Size: d.TargetSize}
			continue
		}
		d.PatchSHA1 = blobutil.NewFileBlob(d.Path+".p", d.PatchBytes).SHA1Hex()
		if d.Source.Size() > largestSourceSize {
			largestSourceSize = d.Source.Size()
		}
	}

	return &Result{Decisions: decisions, LargestSourceSize: largestSourceSize}, nil
}

// computePatches runs ComputePatch across every path flagged needsPatch
// in a bounded worker pool (spec.md section 5): independent inputs per
// worker, results gathered in the caller's sorted order before return,
// any worker error aborts the whole group.
func computePatches(ctx context.Context, paths []string, decisions []PatchDecision, needsPatch []bool, computer PatchComputer, workers int) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i := range decisions {
		if !needsPatch[i] {
			continue
		}
		i := i
		group.Go(func() error {
			d := &decisions[i]
			patch, err := computer.ComputePatch(gctx, d.Source, d.Target)
			if err != nil {
				return otaerr.External(fmt.Sprintf("compute_patch(%s)", d.Path), err)
			}
			d.PatchBytes = patch
			return nil
		})
	}

	return group.Wait()
}
