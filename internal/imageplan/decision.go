package imageplan

import "github.com/osbuild/ota-composer/internal/blobutil"

// DecisionKind is the tag of an ImageDecision (spec.md section 3).
type DecisionKind int

const (
	Skip DecisionKind = iota
	FullFlash
	IncrementalPatch
	RecoveryFromBoot
)

// ImageDecision is one classified roster image (spec.md section 3).
type ImageDecision struct {
	Kind   DecisionKind
	Name   Name
	Source *blobutil.FileBlob
	Target *blobutil.FileBlob
}

// DecideOptions carries the situational flags spec.md 4.4 rule 5 names:
// "full-images-only" applies when partitioning was requested, the
// first-boot fromgb transition is set, or the image is one of the
// always-full-flash names.
type DecideOptions struct {
	DoPartitioning bool
	FromGB         bool
	// IFWIDiffers reports whether two ifwi blobs differ meaningfully
	// (spec.md 4.4 rule 4's ifwi_differs collaborator). Only consulted
	// for Name == IFWI.
	IFWIDiffers func(source, target *blobutil.FileBlob) bool
}

// alwaysFullFlashNames is the image-name set in spec.md 4.4 rule 5.
var alwaysFullFlashNames = map[Name]bool{
	IFWI: true, Capsule: true, ULPMC: true, ESP: true,
}

// Decide classifies one roster image per spec.md section 4.4's
// first-match-wins rule list. Recovery is never decided here: callers
// must route it to the recovery-from-boot builder instead (rule 3).
func Decide(img NamedImage, opts DecideOptions) ImageDecision {
	base := ImageDecision{Name: img.Name, Source: img.Source, Target: img.Target}

	// 1. target absent -> Skip
	if img.Target == nil {
		base.Kind = Skip
		return base
	}

	// 2. source present and bytes-identical -> Skip
	if img.Source != nil && blobutil.SameContent(img.Source, img.Target) {
		base.Kind = Skip
		return base
	}

	// 3. recovery defers to RecoveryFromBoot (handled by caller).
	if img.Name == Recovery {
		base.Kind = RecoveryFromBoot
		return base
	}

	// 4. ifwi unchanged by device-specific comparison -> Skip
	if img.Name == IFWI && opts.IFWIDiffers != nil && !opts.IFWIDiffers(img.Source, img.Target) {
		base.Kind = Skip
		return base
	}

	// 5. full-images-only situations -> FullFlash
	if opts.DoPartitioning || opts.FromGB || alwaysFullFlashNames[img.Name] {
		base.Kind = FullFlash
		return base
	}

	// 6. source present -> IncrementalPatch
	if img.Source != nil {
		base.Kind = IncrementalPatch
		return base
	}

	// 7. otherwise -> FullFlash
	base.Kind = FullFlash
	return base
}
