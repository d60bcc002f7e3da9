package compose

import (
	"archive/zip"
	"bytes"
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/config"
	"github.com/osbuild/ota-composer/internal/installer"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

type fakeOutput struct {
	entries map[string][]byte
}

func newFakeOutput() *fakeOutput { return &fakeOutput{entries: map[string][]byte{}} }

func (f *fakeOutput) WriteEntry(name string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.entries[name] = cp
	return nil
}

// noopPatchComputer returns a fixed short patch for every pair; the full
// scenarios below never call it (no recovery-from-boot present), while
// the incremental scenario uses its output as the build.prop patch.
type noopPatchComputer struct{}

func (noopPatchComputer) ComputePatch(ctx context.Context, source, target *blobutil.FileBlob) ([]byte, error) {
	return []byte("patch-bytes"), nil
}

type zipEntry struct {
	name    string
	data    []byte
	symlink bool
}

func buildArchive(t *testing.T, entries []zipEntry) *targetfiles.Archive {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	for _, e := range entries {
		if e.symlink {
			header := &zip.FileHeader{Name: e.name, Method: zip.Store}
			header.ExternalAttrs = uint32(0o120777) << 16
			w, err := zw.CreateHeader(header)
			require.NoError(t, err)
			_, err = w.Write(e.data)
			require.NoError(t, err)
			continue
		}
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	return targetfiles.Open(r)
}

func baseMetadataEntries(fingerprint, timestamp string) []zipEntry {
	return []zipEntry{
		{name: "META/misc_info.txt", data: []byte("recovery_api_version=3\n")},
		{name: "SYSTEM/build.prop", data: []byte("ro.build.fingerprint=" + fingerprint + "\nro.build.date.utc=" + timestamp + "\nro.product.device=turbot\n")},
	}
}

func testProfile() config.Profile {
	p := config.DefaultProfile()
	p.DeviceModel = "turbot"
	return p
}

func TestComposeFullEmptySystemTreeFailsProgressUnderrun(t *testing.T) {
	entries := baseMetadataEntries("target-fp", "1000")
	entries = append(entries, zipEntry{name: "META/filesystem_config.txt", data: []byte("")})
	archive := buildArchive(t, entries)
	out := newFakeOutput()

	req := Request{
		Mode:          Full,
		Target:        archive,
		Profile:       testProfile(),
		PatchComputer: noopPatchComputer{},
		FSConfig:      ArchiveFSConfig{},
	}

	_, err := Compose(context.Background(), req, out)
	require.Error(t, err)
	assert.ErrorContains(t, err, "progress underrun")
}

func TestComposeFullSingleFileAndSymlinkEmitsOneRecursivePerm(t *testing.T) {
	entries := baseMetadataEntries("target-fp", "1000")
	entries = append(entries,
		zipEntry{name: "SYSTEM/a/b.txt", data: []byte("hello")},
		zipEntry{name: "SYSTEM/a/c", data: []byte("b.txt"), symlink: true},
		// One bootable image so the step-11 budget (0.4) is spent and the
		// run ends at 1.0; with no images it stops at 0.6 and fails, as
		// the empty-tree test above shows.
		zipEntry{name: "BOOT/boot.img", data: []byte("bootimage")},
		zipEntry{name: "META/filesystem_config.txt", data: []byte(
			"system 0 0 0755\n"+
				"system/a 0 0 0755\n"+
				"system/a/b.txt 0 0 0644\n"+
				"system/build.prop 0 0 0644\n",
		)},
	)
	archive := buildArchive(t, entries)
	out := newFakeOutput()

	req := Request{
		Mode:          Full,
		Target:        archive,
		Profile:       testProfile(),
		PatchComputer: noopPatchComputer{},
		FSConfig:      ArchiveFSConfig{},
	}

	result, err := Compose(context.Background(), req, out)
	require.NoError(t, err)

	assert.Equal(t, []byte("hello"), out.entries["system/a/b.txt"])
	require.Len(t, result.Symlinks, 1)
	assert.Equal(t, targetfiles.Symlink{Target: "b.txt", Link: "/system/a/c"}, result.Symlinks[0])

	var recursiveCount int
	var sawSymlinkPrimitive bool
	for _, instr := range result.Script.Instructions() {
		switch v := instr.(type) {
		case installer.SetPermRecursive:
			recursiveCount++
			assert.Equal(t, "/system", v.Path)
			assert.Equal(t, 0, v.UID)
			assert.Equal(t, 0, v.GID)
			assert.Equal(t, 0o755, v.DMode)
			assert.Equal(t, 0o644, v.FMode)
		case installer.MakeSymlinks:
			sawSymlinkPrimitive = true
			require.Len(t, v.Links, 1)
			assert.Equal(t, "b.txt", v.Links[0].Target)
			assert.Equal(t, "/system/a/c", v.Links[0].Link)
		}
	}
	assert.Equal(t, 1, recursiveCount, "set_perm_recursive(/system, ...) must be emitted exactly once")
	assert.True(t, sawSymlinkPrimitive)

	assert.Equal(t, "turbot", result.Manifest["pre-device"])
	assert.Equal(t, "target-fp", result.Manifest["post-build"])
	_, hasPreBuild := result.Manifest["pre-build"]
	assert.False(t, hasPreBuild, "full OTA manifest must not carry pre-build")
}

func TestComposeFullEmitsASLRRetouchOnlyWhenProfileEnablesIt(t *testing.T) {
	entries := baseMetadataEntries("target-fp", "1000")
	entries = append(entries,
		zipEntry{name: "SYSTEM/lib/libfoo.so", data: []byte("nativecode")},
		zipEntry{name: "BOOT/boot.img", data: []byte("bootimage")},
		zipEntry{name: "META/filesystem_config.txt", data: []byte(
			"system 0 0 0755\n"+
				"system/lib 0 0 0755\n"+
				"system/lib/libfoo.so 0 0 0644\n"+
				"system/build.prop 0 0 0644\n",
		)},
	)
	archive := buildArchive(t, entries)

	baseReq := Request{
		Mode:          Full,
		Target:        archive,
		Profile:       testProfile(),
		PatchComputer: noopPatchComputer{},
		FSConfig:      ArchiveFSConfig{},
	}

	withoutGate, err := Compose(context.Background(), baseReq, newFakeOutput())
	require.NoError(t, err)
	assert.False(t, hasInstructionType(withoutGate.Script, installer.ASLRRetouch{}))

	gatedProfile := testProfile()
	gatedProfile.EmitASLRRetouch = true
	gatedReq := baseReq
	gatedReq.Profile = gatedProfile

	withGate, err := Compose(context.Background(), gatedReq, newFakeOutput())
	require.NoError(t, err)
	var retouch installer.ASLRRetouch
	require.True(t, findInstruction(withGate.Script, &retouch))
	assert.Equal(t, []string{"/system/lib/libfoo.so"}, retouch.Paths)
}

func hasInstructionType(script *installer.Script, want installer.Instruction) bool {
	for _, instr := range script.Instructions() {
		if reflect.TypeOf(instr) == reflect.TypeOf(want) {
			return true
		}
	}
	return false
}

func findInstruction(script *installer.Script, out *installer.ASLRRetouch) bool {
	for _, instr := range script.Instructions() {
		if v, ok := instr.(installer.ASLRRetouch); ok {
			*out = v
			return true
		}
	}
	return false
}

func TestComposeIncrementalBuildPropOnlyChangeDefersApply(t *testing.T) {
	sourceEntries := baseMetadataEntries("source-fp", "900")
	sourceEntries = append(sourceEntries,
		zipEntry{name: "SYSTEM/a/b.txt", data: []byte("hello")},
		zipEntry{name: "META/filesystem_config.txt", data: []byte(
			"system 0 0 0755\n"+
				"system/a 0 0 0755\n"+
				"system/a/b.txt 0 0 0644\n"+
				"system/build.prop 0 0 0644\n",
		)},
	)
	source := buildArchive(t, sourceEntries)

	targetEntries := baseMetadataEntries("target-fp", "1000")
	targetEntries = append(targetEntries,
		zipEntry{name: "SYSTEM/a/b.txt", data: []byte("hello")},
		zipEntry{name: "META/filesystem_config.txt", data: []byte(
			"system 0 0 0755\n"+
				"system/a 0 0 0755\n"+
				"system/a/b.txt 0 0 0644\n"+
				"system/build.prop 0 0 0644\n",
		)},
	)
	target := buildArchive(t, targetEntries)

	out := newFakeOutput()
	req := Request{
		Mode:          Incremental,
		Target:        target,
		Source:        source,
		Profile:       testProfile(),
		PatchComputer: noopPatchComputer{},
		FSConfig:      ArchiveFSConfig{},
	}

	result, err := Compose(context.Background(), req, out)
	require.NoError(t, err)

	instructions := result.Script.Instructions()
	last := instructions[len(instructions)-1]
	setPerm, ok := last.(installer.SetPerm)
	require.True(t, ok, "final primitive must be set_perm(/system/build.prop, ...)")
	assert.Equal(t, "/system/build.prop", setPerm.Path)
	assert.Equal(t, 0o644, setPerm.Mode)

	_, patched := out.entries["patch/system/build.prop.p"]
	assert.True(t, patched)

	assert.Equal(t, "turbot", result.Manifest["pre-device"])
	assert.Equal(t, "source-fp", result.Manifest["pre-build"])
	assert.Equal(t, "target-fp", result.Manifest["post-build"])
	assert.Equal(t, "false", result.Manifest["fromgb"])
}
