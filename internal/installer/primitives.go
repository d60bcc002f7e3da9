package installer

// Every primitive in spec.md section 6.2 gets a typed struct implementing
// Instruction. Concrete device-side encoding is opaque to this engine;
// these types only need to be reproducible byte-for-byte given the same
// inputs (spec.md section 6.2), which a typed, field-ordered struct
// naturally gives us once the caller serializes deterministically.

type AssertDevice struct{ Device string }

func (AssertDevice) isInstruction() {}

type AssertCompatibleProduct struct{ Product string }

func (AssertCompatibleProduct) isInstruction() {}

type AssertOlderBuild struct{ Timestamp int64 }

func (AssertOlderBuild) isInstruction() {}

type AssertSomeFingerprint struct{ SourceFingerprint, TargetFingerprint string }

func (AssertSomeFingerprint) isInstruction() {}

type Mount struct{ Path string }

func (Mount) isInstruction() {}

type Unmount struct{ Path string }

func (Unmount) isInstruction() {}

type UnmountAll struct{}

func (UnmountAll) isInstruction() {}

type FormatPartition struct{ Path string }

func (FormatPartition) isInstruction() {}

type ShowProgressInstr struct {
	Fraction float64
	Duration float64
}

func (ShowProgressInstr) isInstruction() {}

type SetProgress struct{ Value float64 }

func (SetProgress) isInstruction() {}

type Print struct{ Text string }

func (Print) isInstruction() {}

type Comment struct{ Text string }

func (Comment) isInstruction() {}

type PackageExtract struct{ Name string }

func (PackageExtract) isInstruction() {}

type UnpackPackageDir struct{ Src, Dst string }

func (UnpackPackageDir) isInstruction() {}

type DeleteFiles struct{ Paths []string }

func (DeleteFiles) isInstruction() {}

type DeleteTmpImage struct{ Name string }

func (DeleteTmpImage) isInstruction() {}

type ExtractImage struct{ Name string }

func (ExtractImage) isInstruction() {}

type PatchCheck struct {
	Path             string
	TargetSHA1       string
	SourceSHA1       string
}

func (PatchCheck) isInstruction() {}

type CacheFreeSpaceCheck struct{ Bytes int64 }

func (CacheFreeSpaceCheck) isInstruction() {}

// ApplyPatch mirrors apply_patch(path, "-", target_size, target_sha1,
// source_sha1, patch_path); the literal "-" in-place source marker is
// implicit in this type (the primitive always patches a file in place).
type ApplyPatch struct {
	Path       string
	TargetSize int64
	TargetSHA1 string
	SourceSHA1 string
	PatchPath  string
}

func (ApplyPatch) isInstruction() {}

type SymlinkPair struct{ Target, Link string }

type MakeSymlinks struct{ Links []SymlinkPair }

func (MakeSymlinks) isInstruction() {}

type SetPerm struct {
	Path           string
	UID, GID, Mode int
}

func (SetPerm) isInstruction() {}

type SetPermRecursive struct {
	Path                 string
	UID, GID             int
	DMode, FMode         int
}

func (SetPermRecursive) isInstruction() {}

type FlashOSImage struct {
	Name      string
	Partition string // optional
}

func (FlashOSImage) isInstruction() {}

type FlashImageAtOffset struct {
	Name       string
	ByteOffset int64
}

func (FlashImageAtOffset) isInstruction() {}

type FlashESPUpdate struct{}

func (FlashESPUpdate) isInstruction() {}

type FlashIFWI struct{}

func (FlashIFWI) isInstruction() {}

type FlashCapsule struct{}

func (FlashCapsule) isInstruction() {}

type FlashULPMC struct{}

func (FlashULPMC) isInstruction() {}

type FlashPartitionScheme struct{}

func (FlashPartitionScheme) isInstruction() {}

type FlashBOMToken struct{}

func (FlashBOMToken) isInstruction() {}

type InvalidateOS struct{ Name string }

func (InvalidateOS) isInstruction() {}

type RestoreOS struct{ Name string }

func (RestoreOS) isInstruction() {}

type StartUpdate struct{}

func (StartUpdate) isInstruction() {}

type FinalizeUpdate struct{}

func (FinalizeUpdate) isInstruction() {}

type AppendExtra struct{ Text string }

func (AppendExtra) isInstruction() {}

// ASLRRetouch re-randomizes the load bias of every copied lib/ file
// named in Paths (spec.md REDESIGN FLAGS: "retouch primitive calls are
// present but commented out in source"). Never emitted unless a device
// profile turns it on.
type ASLRRetouch struct{ Paths []string }

func (ASLRRetouch) isInstruction() {}

// AppendScriptInstr carries a spliced-in sub-script's instructions,
// flattened at splice time by Script.AppendScript.
type AppendScriptInstr struct{ Sub []Instruction }

func (AppendScriptInstr) isInstruction() {}
