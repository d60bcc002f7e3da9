// Package config loads the device profile consumed by the OTA
// composition engine: the knobs that are device-specific rather than
// derived from either target-files archive. Format and default-value
// layout follow the teacher's own distro.ImageConfig defaulting
// convention (internal/distro/rhel7/distro.go's defaultDistroImageConfig).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RecoverySigRegion is the byte range within a non-ANDROID!-magic
// recovery image that is hashed for the install-recovery.sh
// --check-sha1 argument. Device-specific; spec.md Open Question (b)
// calls out the historical 512/480 default as configuration, not a
// universal constant.
type RecoverySigRegion struct {
	Offset int64 `toml:"offset"`
	Length int64 `toml:"length"`
}

// DefaultRecoverySigRegion is the historical Intel Medfield default:
// offset 512, length 480.
var DefaultRecoverySigRegion = RecoverySigRegion{Offset: 512, Length: 480}

// Profile is the device-specific configuration record for one
// composition run. Loaded from TOML; see LoadProfile.
type Profile struct {
	// Device identity, used in assert_device / assert_compatible_product.
	DeviceModel        string   `toml:"device_model"`
	CompatibleProducts []string `toml:"compatible_products"`

	// Chaabi / Intel firmware-update token flow (spec.md 4.5 step 4/7).
	ChaabiTokenRequired bool `toml:"chaabi_token_required"`

	// Partitioning (spec.md 4.4 rule 5, 4.5 step 5).
	DoPartitioning bool `toml:"do_partitioning"`

	// BIOS type; "iafw" triggers invalidate_os/restore_os bracketing
	// (spec.md 4.5 steps 6 and 13).
	BiosType string `toml:"bios_type"`

	// Optional image roster extensions (spec.md 4.4).
	HasSilentlake bool `toml:"has_silentlake"`
	UseIfwi       bool `toml:"use_ifwi"`
	UseCapsule    bool `toml:"use_capsule"`
	UseUlpmc      bool `toml:"use_ulpmc"`

	// Diff planning (spec.md 4.3).
	PatchThreshold   float64  `toml:"patch_threshold"`
	WorkerThreads    int      `toml:"worker_threads"`
	RequireVerbatim  []string `toml:"require_verbatim"`
	ProhibitVerbatim []string `toml:"prohibit_verbatim"`

	// Recovery-from-boot fallback region (spec.md Open Question b).
	RecoverySigRegion RecoverySigRegion `toml:"recovery_sig_region"`

	// ASLR retouch emission gate (spec.md 9, "cyclic mention"); default
	// false, never emitted unless explicitly turned on.
	EmitASLRRetouch bool `toml:"emit_aslr_retouch"`

	// Fingerprint assertion gate (SPEC_FULL supplemented feature);
	// default off.
	EmitFingerprintAssert bool `toml:"emit_fingerprint_assert"`

	// ExtensionsHook names an external device-specific hook binary,
	// invoked via internal/deviceext (spec.md 6.1 misc_info
	// tool_extensions key, surfaced here as explicit configuration
	// rather than an archive-embedded path).
	ExtensionsHook string `toml:"extensions_hook"`
}

// DefaultProfile returns the zero-configuration profile: no partitioning,
// no chaabi, no extra images, the historical patch threshold and worker
// count, and the Intel Medfield recovery signature fallback region.
func DefaultProfile() Profile {
	return Profile{
		PatchThreshold:    0.95,
		WorkerThreads:     3,
		RecoverySigRegion: DefaultRecoverySigRegion,
	}
}

// LoadProfile decodes a TOML device profile, filling any field the file
// omits with DefaultProfile's values.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()
	meta, err := toml.DecodeFile(path, &profile)
	if err != nil {
		return Profile{}, fmt.Errorf("decode device profile %q: %w", path, err)
	}
	if !meta.IsDefined("patch_threshold") {
		profile.PatchThreshold = 0.95
	}
	if !meta.IsDefined("worker_threads") || profile.WorkerThreads <= 0 {
		profile.WorkerThreads = 3
	}
	if !meta.IsDefined("recovery_sig_region") {
		profile.RecoverySigRegion = DefaultRecoverySigRegion
	}
	return profile, nil
}
