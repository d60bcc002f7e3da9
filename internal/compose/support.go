package compose

import (
	"strconv"
	"strings"

	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/config"
	"github.com/osbuild/ota-composer/internal/imageplan"
	"github.com/osbuild/ota-composer/internal/installer"
	"github.com/osbuild/ota-composer/internal/metatree"
	"github.com/osbuild/ota-composer/internal/otaerr"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

// loadMetadata reads and parses an archive's misc_info.txt and
// system/build.prop (spec.md section 6.1).
func loadMetadata(archive *targetfiles.Archive) (targetfiles.MiscInfo, targetfiles.BuildProp, error) {
	miscData, err := archive.ReadEntry("META/misc_info.txt")
	if err != nil {
		return nil, nil, otaerr.InputMalformed("META/misc_info.txt: %v", err)
	}
	buildPropData, err := archive.ReadEntry("SYSTEM/build.prop")
	if err != nil {
		return nil, nil, otaerr.InputMalformed("SYSTEM/build.prop: %v", err)
	}
	return targetfiles.ParseMiscInfo(miscData), targetfiles.ParseBuildProp(buildPropData), nil
}

// rosterOptions translates the device profile into imageplan's roster
// selection flags (spec.md section 4.4).
func rosterOptions(profile config.Profile) imageplan.RosterOptions {
	return imageplan.RosterOptions{
		UseIFWI:       profile.UseIfwi,
		UseCapsule:    profile.UseCapsule,
		UseULPMC:      profile.UseUlpmc,
		HasSilentlake: profile.HasSilentlake,
	}
}

// applyPermPlan renders a metatree permission plan as installer
// primitives against device-absolute paths.
func applyPermPlan(script *installer.Script, ops []metatree.PermOp) {
	for _, op := range ops {
		path := "/" + op.Path
		switch op.Kind {
		case metatree.SetPermRecursive:
			script.SetPermRecursive(path, op.UID, op.GID, op.DMode, op.FMode)
		case metatree.SetPerm:
			script.SetPerm(path, op.UID, op.GID, op.Mode)
		}
	}
}

// reconcileSymlinks implements spec.md section 4.5's incremental tail
// step: delete source symlinks absent from target, create target
// symlinks that are new or point elsewhere than source (invariant 6:
// never recreate a symlink identical to one already in source).
func reconcileSymlinks(script *installer.Script, source, target []targetfiles.Symlink) {
	sourceSet := make(map[targetfiles.Symlink]bool, len(source))
	sourceLinks := make(map[string]bool, len(source))
	for _, s := range source {
		sourceSet[s] = true
		sourceLinks[s.Link] = true
	}
	targetLinks := make(map[string]bool, len(target))
	for _, t := range target {
		targetLinks[t.Link] = true
	}

	var toDelete []string
	for _, s := range source {
		if !targetLinks[s.Link] {
			toDelete = append(toDelete, s.Link)
		}
	}
	if len(toDelete) > 0 {
		script.DeleteFiles(toDelete)
	}

	var toCreate []installer.SymlinkPair
	for _, t := range target {
		if sourceSet[t] {
			continue
		}
		toCreate = append(toCreate, installer.SymlinkPair{Target: t.Target, Link: t.Link})
	}
	script.MakeSymlinks(toCreate)
}

// toSymlinkPairs converts the loader's symlink records into installer
// primitive arguments.
func toSymlinkPairs(links []targetfiles.Symlink) []installer.SymlinkPair {
	pairs := make([]installer.SymlinkPair, len(links))
	for i, l := range links {
		pairs[i] = installer.SymlinkPair{Target: l.Target, Link: l.Link}
	}
	return pairs
}

// parseTimestamp parses ro.build.date.utc, tolerating its absence (older
// build assertion is then simply omitted, per spec.md 4.5 step 1).
func parseTimestamp(value string) (int64, bool) {
	if value == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// devicePath turns a tree-relative path ("system/a/b") into its
// device-absolute form ("/system/a/b").
func devicePath(path string) string {
	return "/" + strings.TrimPrefix(path, "/")
}

func valOrNil(present bool, blob *blobutil.FileBlob) *blobutil.FileBlob {
	if !present {
		return nil
	}
	return blob
}

// retouchPaths extracts the device paths a retouch list names, for
// installer.Script.ASLRRetouch (spec.md REDESIGN FLAGS: emission gated
// by configuration, default off).
func retouchPaths(entries []targetfiles.RetouchEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = "/" + e.DevicePath
	}
	return paths
}
