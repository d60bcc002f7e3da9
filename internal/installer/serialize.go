package installer

import (
	"encoding/json"
	"fmt"
)

// wireInstruction is the {type, data} discriminated-union shape the
// script is serialized to, mirroring the teacher's Stage{Type, Options}
// wire representation (internal/osbuild/systemd_journald_stage.go).
type wireInstruction struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Serialize renders the script deterministically as JSON: an ordered
// array of {type, data} records, one per instruction in append order,
// with AppendScriptInstr flattened into its constituent instructions so
// the wire form carries no trace of where a sub-script was spliced in.
// spec.md section 6.2 leaves the concrete encoding opaque but requires it
// be reproducible byte-for-byte given the same inputs; JSON marshaling of
// a fixed struct sequence gives that for free.
func (s *Script) Serialize() ([]byte, error) {
	wire, err := flatten(s.instructions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wire)
}

func flatten(instructions []Instruction) ([]wireInstruction, error) {
	wire := make([]wireInstruction, 0, len(instructions))
	for _, instr := range instructions {
		if sub, ok := instr.(AppendScriptInstr); ok {
			subWire, err := flatten(sub.Sub)
			if err != nil {
				return nil, err
			}
			wire = append(wire, subWire...)
			continue
		}
		data, err := json.Marshal(instr)
		if err != nil {
			return nil, fmt.Errorf("installer: marshal %T: %w", instr, err)
		}
		wire = append(wire, wireInstruction{Type: typeName(instr), Data: data})
	}
	return wire, nil
}

// typeName returns the DSL primitive name spec.md section 6.2 uses for
// each instruction type.
func typeName(i Instruction) string {
	switch i.(type) {
	case AssertDevice:
		return "assert_device"
	case AssertCompatibleProduct:
		return "assert_compatible_product"
	case AssertOlderBuild:
		return "assert_older_build"
	case AssertSomeFingerprint:
		return "assert_some_fingerprint"
	case Mount:
		return "mount"
	case Unmount:
		return "unmount"
	case UnmountAll:
		return "unmount_all"
	case FormatPartition:
		return "format_partition"
	case ShowProgressInstr:
		return "show_progress"
	case SetProgress:
		return "set_progress"
	case Print:
		return "print"
	case Comment:
		return "comment"
	case PackageExtract:
		return "package_extract"
	case UnpackPackageDir:
		return "unpack_package_dir"
	case DeleteFiles:
		return "delete_files"
	case DeleteTmpImage:
		return "delete_tmp_image"
	case ExtractImage:
		return "extract_image"
	case PatchCheck:
		return "patch_check"
	case CacheFreeSpaceCheck:
		return "cache_free_space_check"
	case ApplyPatch:
		return "apply_patch"
	case MakeSymlinks:
		return "make_symlinks"
	case SetPerm:
		return "set_perm"
	case SetPermRecursive:
		return "set_perm_recursive"
	case FlashOSImage:
		return "flash_os_image"
	case FlashImageAtOffset:
		return "flash_image_at_offset"
	case FlashESPUpdate:
		return "flash_esp_update"
	case FlashIFWI:
		return "flash_ifwi"
	case FlashCapsule:
		return "flash_capsule"
	case FlashULPMC:
		return "flash_ulpmc"
	case FlashPartitionScheme:
		return "flash_partition_scheme"
	case FlashBOMToken:
		return "flash_bom_token"
	case InvalidateOS:
		return "invalidate_os"
	case RestoreOS:
		return "restore_os"
	case StartUpdate:
		return "start_update"
	case FinalizeUpdate:
		return "finalize_update"
	case AppendExtra:
		return "append_extra"
	case ASLRRetouch:
		return "aslr_retouch"
	default:
		return fmt.Sprintf("unknown(%T)", i)
	}
}
