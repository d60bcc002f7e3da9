package compose

import (
	"bytes"
	"context"

	"github.com/osbuild/ota-composer/internal/metatree"
	"github.com/osbuild/ota-composer/internal/otaerr"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

// FSConfigSource resolves a tree's per-node ownership and mode, either
// from the archive's own META/filesystem_config.txt or from an external
// fs_config helper (spec.md section 4.1, "fs_config resolution").
type FSConfigSource interface {
	Resolve(ctx context.Context, tree *metatree.Tree, archive *targetfiles.Archive) error
}

// ArchiveFSConfig reads META/filesystem_config.txt from the archive
// itself; used when the archive was built with that optional metadata
// entry present (spec.md section 6.1).
type ArchiveFSConfig struct{}

func (ArchiveFSConfig) Resolve(ctx context.Context, tree *metatree.Tree, archive *targetfiles.Archive) error {
	data, err := archive.ReadEntry("META/filesystem_config.txt")
	if err != nil {
		return otaerr.InputMalformed("META/filesystem_config.txt: %v", err)
	}
	records, err := metatree.ParseFilesystemConfig(bytes.NewReader(data))
	if err != nil {
		return otaerr.InputMalformed("filesystem_config.txt: %v", err)
	}
	tree.Resolve(records)
	return nil
}

// HelperFSConfig invokes an external fs_config binary over the tree's
// full path set (spec.md section 4.1's external-helper resolution path).
type HelperFSConfig struct {
	HelperPath string
}

func (h HelperFSConfig) Resolve(ctx context.Context, tree *metatree.Tree, archive *targetfiles.Archive) error {
	paths, dirFlags := tree.AllPaths()
	records, err := metatree.RunFSConfigHelper(ctx, h.HelperPath, paths, dirFlags)
	if err != nil {
		return otaerr.External("fs_config", err)
	}
	tree.Resolve(records)
	return nil
}
