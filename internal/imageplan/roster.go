// Package imageplan implements the Image Planner (spec.md section 4.4,
// component C4): the named image roster, per-image skip/full-flash/patch
// decisions, boot-header parsing, and the recovery-from-boot derived
// patch.
package imageplan

import "github.com/osbuild/ota-composer/internal/blobutil"

// Name is a logical image name from the closed, ordered roster spec.md
// section 4.4 defines.
type Name string

const (
	Boot     Name = "boot"
	Recovery Name = "recovery"
	Fastboot Name = "fastboot"
	ESP      Name = "esp"
	Capsule  Name = "capsule"
	IFWI     Name = "ifwi"
	ULPMC    Name = "ulpmc"
	Silentlake Name = "silentlake"
)

// RosterOptions selects the conditional roster members (spec.md 4.4).
type RosterOptions struct {
	// UseIFWI and UseCapsule are mutually exclusive; UseIFWI wins if both
	// are set, matching "capsule or ifwi (exclusive)".
	UseIFWI    bool
	UseCapsule bool
	UseULPMC   bool
	HasSilentlake bool
}

// BuildRoster returns the fixed ordered roster per spec.md section 4.4:
// boot, recovery, fastboot, esp always; then capsule or ifwi; then ulpmc
// if enabled; then silentlake if enabled.
func BuildRoster(opts RosterOptions) []Name {
	roster := []Name{Boot, Recovery, Fastboot, ESP}
	switch {
	case opts.UseIFWI:
		roster = append(roster, IFWI)
	case opts.UseCapsule:
		roster = append(roster, Capsule)
	}
	if opts.UseULPMC {
		roster = append(roster, ULPMC)
	}
	if opts.HasSilentlake {
		roster = append(roster, Silentlake)
	}
	return roster
}

// FileNameExtension returns the archive/device file-name convention for
// a logical image name (spec.md 4.4).
func FileNameExtension(name Name) string {
	switch name {
	case IFWI, ESP:
		return ".zip"
	case Capsule, ULPMC:
		return ".bin"
	default:
		return ".img"
	}
}

// FileName returns the conventional archive-entry file name for an
// image, e.g. "boot.img".
func FileName(name Name) string {
	return string(name) + FileNameExtension(name)
}

// NamedImage is one roster entry with its resolved blobs and, for
// boot-style images, a parsed header (spec.md section 3).
type NamedImage struct {
	Name   Name
	Source *blobutil.FileBlob // may be nil
	Target *blobutil.FileBlob // may be nil
	Header *BootHeader        // left nil by every caller; BuildRecoveryFromBoot parses the header from the blob itself
}
