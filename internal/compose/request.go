package compose

import (
	"github.com/osbuild/ota-composer/internal/config"
	"github.com/osbuild/ota-composer/internal/deviceext"
	"github.com/osbuild/ota-composer/internal/diffplan"
	"github.com/osbuild/ota-composer/internal/imageplan"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

// Mode selects which ordering contract Compose follows (spec.md 4.5).
type Mode int

const (
	Full Mode = iota
	Incremental
)

// Request is one composition run's full input: the archive(s), device
// profile, and the external collaborators this engine never implements
// itself (spec.md section 1 Non-goals).
type Request struct {
	Mode Mode

	Target *targetfiles.Archive
	// Source is required and consulted only in Incremental mode.
	Source *targetfiles.Archive

	Profile config.Profile

	// PatchComputer is the external Difference.compute_patch capability
	// (spec.md section 1).
	PatchComputer diffplan.PatchComputer
	// FSConfig resolves the target (and, incrementally, source) tree's
	// per-node ownership and mode.
	FSConfig FSConfigSource
	// Hook is the device-specific extension point (spec.md 4.5 steps 2
	// and 13). Defaults to deviceext.NoOp{} if nil.
	Hook deviceext.Hook

	WipeUserData    bool
	NoPrereq        bool
	ExtraScriptText string

	// PartitionTable is the raw partition-table text used by
	// installer.FlashDispatch's "-l <name> -b <lba>" lookup; empty if no
	// partition table is in play.
	PartitionTable string

	// PartitionSizeLimits optionally bounds a roster image's accepted
	// size (spec.md section 7's SizeViolation).
	PartitionSizeLimits map[imageplan.Name]int64
}

func (r Request) hook() deviceext.Hook {
	if r.Hook != nil {
		return r.Hook
	}
	return deviceext.NoOp{}
}
