package compose

import "strconv"

// Manifest is the metadata record spec.md section 4.6 describes, written
// by internal/otazip to META-INF/com/android/metadata.
type Manifest struct {
	PreDevice     string
	PreBuild      string
	PostBuild     string
	PostTimestamp string
	FromGB        bool

	incremental bool
}

// ToMap renders the manifest as the key/value set otazip.WriteManifest
// sorts and serializes. Full OTA carries pre-device/post-build/
// post-timestamp; incremental adds pre-build and fromgb.
func (m Manifest) ToMap() map[string]string {
	out := map[string]string{
		"pre-device":     m.PreDevice,
		"post-build":     m.PostBuild,
		"post-timestamp": m.PostTimestamp,
	}
	if m.incremental {
		out["pre-build"] = m.PreBuild
		out["fromgb"] = strconv.FormatBool(m.FromGB)
	}
	return out
}
