package targetfiles

import (
	"bufio"
	"strings"
)

// MiscInfo is the free-form key/value dictionary parsed from
// META/misc_info.txt (spec.md 6.1). Keys the core reads are named
// explicitly in spec.md; everything else passes through unused.
type MiscInfo map[string]string

// ParseMiscInfo parses "key=value" lines, one per line; blank lines and
// lines starting with "#" are ignored. Mirrors the conversion idiom of
// the teacher's internal/fdo.FromBP: an external flat dictionary turned
// into a typed accessor.
func ParseMiscInfo(contents []byte) MiscInfo {
	info := MiscInfo{}
	scanner := bufio.NewScanner(strings.NewReader(string(contents)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		info[key] = value
	}
	return info
}

// Bool reports whether key is set to a truthy value ("true", "1", "yes").
func (m MiscInfo) Bool(key string) bool {
	switch strings.ToLower(m[key]) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Get returns key's value and whether it was present.
func (m MiscInfo) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// BuildProp is the parsed contents of a system/build.prop file, used to
// read ro.build.id (the fromgb legacy transition flag, spec.md section
// 9 Open Question (c)) and other build identity fields.
type BuildProp map[string]string

// ParseBuildProp uses the same "key=value" grammar as MiscInfo.
func ParseBuildProp(contents []byte) BuildProp {
	return BuildProp(ParseMiscInfo(contents))
}

// IsGingerbread reports whether ro.build.id equals "GINGERBREAD", the
// legacy first-boot transition this engine preserves as an opaque flag
// (spec.md section 9 Open Question (c): do not infer additional
// behavior from it).
func (b BuildProp) IsGingerbread() bool {
	return b["ro.build.id"] == "GINGERBREAD"
}

// Fingerprint returns ro.build.fingerprint, used for pre-build/post-build
// manifest keys and the optional assert_some_fingerprint primitive.
func (b BuildProp) Fingerprint() string { return b["ro.build.fingerprint"] }

// Device returns ro.product.device, used for pre-device/assert_device.
func (b BuildProp) Device() string { return b["ro.product.device"] }

// Timestamp returns ro.build.date.utc, used for post-timestamp and
// assert_older_build.
func (b BuildProp) Timestamp() string { return b["ro.build.date.utc"] }
