package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/osbuild/ota-composer/internal/blobutil"
)

// externalPatchComputer satisfies diffplan.PatchComputer and
// imageplan.BuildRecoveryFromBoot's patch collaborator by shelling out to
// a binary-diff helper (spec.md section 1: "the low-level binary diff
// algorithm, consumed via a Difference.compute_patch capability"). The
// helper is invoked as `binary <source> <target> <patch-out>`, the same
// three-path convention bsdiff and its descendants use.
type externalPatchComputer struct {
	binary string
}

func (c externalPatchComputer) ComputePatch(ctx context.Context, source, target *blobutil.FileBlob) ([]byte, error) {
	dir, err := os.MkdirTemp("", "ota-diff-*")
	if err != nil {
		return nil, fmt.Errorf("compute_patch: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	sourcePath := filepath.Join(dir, "source")
	targetPath := filepath.Join(dir, "target")
	patchPath := filepath.Join(dir, "patch")

	if err := os.WriteFile(sourcePath, source.Data(), 0o600); err != nil {
		return nil, fmt.Errorf("compute_patch: write source: %w", err)
	}
	if err := os.WriteFile(targetPath, target.Data(), 0o600); err != nil {
		return nil, fmt.Errorf("compute_patch: write target: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.binary, sourcePath, targetPath, patchPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("compute_patch: %s %s %s: %w: %s", c.binary, source.Path(), target.Path(), err, out)
	}

	patch, err := os.ReadFile(patchPath)
	if err != nil {
		return nil, fmt.Errorf("compute_patch: read patch: %w", err)
	}
	return patch, nil
}
