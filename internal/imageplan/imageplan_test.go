package imageplan

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/metatree"
)

func TestBuildRosterDefault(t *testing.T) {
	roster := BuildRoster(RosterOptions{})
	assert.Equal(t, []Name{Boot, Recovery, Fastboot, ESP}, roster)
}

func TestBuildRosterFullOptions(t *testing.T) {
	roster := BuildRoster(RosterOptions{UseIFWI: true, UseULPMC: true, HasSilentlake: true})
	assert.Equal(t, []Name{Boot, Recovery, Fastboot, ESP, IFWI, ULPMC, Silentlake}, roster)
}

func TestBuildRosterIFWIWinsOverCapsule(t *testing.T) {
	roster := BuildRoster(RosterOptions{UseIFWI: true, UseCapsule: true})
	assert.Equal(t, []Name{Boot, Recovery, Fastboot, ESP, IFWI}, roster)
}

func TestFileNameConventions(t *testing.T) {
	assert.Equal(t, "ifwi.zip", FileName(IFWI))
	assert.Equal(t, "esp.zip", FileName(ESP))
	assert.Equal(t, "capsule.bin", FileName(Capsule))
	assert.Equal(t, "ulpmc.bin", FileName(ULPMC))
	assert.Equal(t, "boot.img", FileName(Boot))
}

func TestDecideTargetAbsent(t *testing.T) {
	d := Decide(NamedImage{Name: Boot}, DecideOptions{})
	assert.Equal(t, Skip, d.Kind)
}

func TestDecideIdenticalSkip(t *testing.T) {
	blob := blobutil.NewFileBlob("boot.img", []byte("same"))
	d := Decide(NamedImage{Name: Boot, Source: blob, Target: blob}, DecideOptions{})
	assert.Equal(t, Skip, d.Kind)
}

// Boundary scenario 5: recovery image bytes identical between source and
// target skips straight past the recovery-from-boot branch (rule 2 fires
// before rule 3 ever looks at the name).
func TestDecideRecoveryIdenticalSkipsBeforeRecoveryFromBoot(t *testing.T) {
	blob := blobutil.NewFileBlob("recovery.img", []byte("unchanged"))
	d := Decide(NamedImage{Name: Recovery, Source: blob, Target: blob}, DecideOptions{})
	assert.Equal(t, Skip, d.Kind)
}

func TestDecideRecoveryDefers(t *testing.T) {
	d := Decide(NamedImage{
		Name:   Recovery,
		Source: blobutil.NewFileBlob("recovery.img", []byte("a")),
		Target: blobutil.NewFileBlob("recovery.img", []byte("b")),
	}, DecideOptions{})
	assert.Equal(t, RecoveryFromBoot, d.Kind)
}

func TestDecideFullImagesOnlyForESP(t *testing.T) {
	d := Decide(NamedImage{
		Name:   ESP,
		Source: blobutil.NewFileBlob("esp.zip", []byte("a")),
		Target: blobutil.NewFileBlob("esp.zip", []byte("b")),
	}, DecideOptions{})
	assert.Equal(t, FullFlash, d.Kind)
}

func TestDecideIncrementalWhenSourcePresent(t *testing.T) {
	d := Decide(NamedImage{
		Name:   Fastboot,
		Source: blobutil.NewFileBlob("fastboot.img", []byte("a")),
		Target: blobutil.NewFileBlob("fastboot.img", []byte("b")),
	}, DecideOptions{})
	assert.Equal(t, IncrementalPatch, d.Kind)
}

func TestDecideFullFlashWhenNoSource(t *testing.T) {
	d := Decide(NamedImage{
		Name:   Fastboot,
		Target: blobutil.NewFileBlob("fastboot.img", []byte("b")),
	}, DecideOptions{})
	assert.Equal(t, FullFlash, d.Kind)
}

func TestDecidePartitioningForcesFullFlash(t *testing.T) {
	d := Decide(NamedImage{
		Name:   Fastboot,
		Source: blobutil.NewFileBlob("fastboot.img", []byte("a")),
		Target: blobutil.NewFileBlob("fastboot.img", []byte("b")),
	}, DecideOptions{DoPartitioning: true})
	assert.Equal(t, FullFlash, d.Kind)
}

func buildAndroidImage(kernel, ramdisk, second []byte, pageSize, sigSize uint32) []byte {
	header := make([]byte, 8+9*4)
	copy(header[:8], []byte(androidMagic))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(kernel)))
	binary.LittleEndian.PutUint32(header[16:], uint32(len(ramdisk)))
	binary.LittleEndian.PutUint32(header[24:], uint32(len(second)))
	binary.LittleEndian.PutUint32(header[36:], pageSize)
	binary.LittleEndian.PutUint32(header[40:], sigSize)
	return header
}

func TestParseBootHeader(t *testing.T) {
	img := buildAndroidImage([]byte("kernel-bytes"), []byte("ramdisk-bytes"), nil, 2048, 256)
	header, ok := ParseBootHeader(img)
	require.True(t, ok)
	assert.Equal(t, uint32(len("kernel-bytes")), header.KernelSize)
	assert.Equal(t, uint32(2048), header.PageSize)
	assert.Equal(t, uint32(256), header.SigSize)
}

func TestParseBootHeaderNoMagic(t *testing.T) {
	_, ok := ParseBootHeader([]byte("not-android"))
	assert.False(t, ok)
}

func TestSignatureRegionFallback(t *testing.T) {
	offset, length, ok := SignatureRegion(BootHeader{}, false, 512, 480)
	require.True(t, ok)
	assert.Equal(t, int64(512), offset)
	assert.Equal(t, int64(480), length)
}

func TestSignatureRegionFromHeader(t *testing.T) {
	header := BootHeader{KernelSize: 4096, RamdiskSize: 2048, SecondSize: 0, PageSize: 2048, SigSize: 256}
	offset, length, ok := SignatureRegion(header, true, 512, 480)
	require.True(t, ok)
	// ceil(4096/2048)=2, ceil(2048/2048)=1, ceil(0/2048)=0, +1 => 4 pages
	assert.Equal(t, int64(4*2048), offset)
	assert.Equal(t, int64(256), length)
}

func TestSignatureRegionHeaderNoSig(t *testing.T) {
	header := BootHeader{KernelSize: 4096, PageSize: 2048, SigSize: 0}
	_, _, ok := SignatureRegion(header, true, 512, 480)
	assert.False(t, ok)
}

type stubPatcher struct{ patch []byte }

func (s stubPatcher) ComputePatch(_ context.Context, source, target *blobutil.FileBlob) ([]byte, error) {
	return s.patch, nil
}

func TestBuildRecoveryFromBootNonAndroidFallback(t *testing.T) {
	bootData := make([]byte, 1200)
	recoveryData := make([]byte, 1200)
	for i := range recoveryData {
		recoveryData[i] = byte(i % 251)
	}
	boot := blobutil.NewFileBlob("boot.img", bootData)
	recovery := blobutil.NewFileBlob("recovery.img", recoveryData)

	tree := metatree.New()
	result, err := BuildRecoveryFromBoot(context.Background(), stubPatcher{patch: []byte("patch-bytes")}, boot, recovery, tree, 512, 480)
	require.NoError(t, err)
	assert.Contains(t, result.ScriptText, "--check-sha1")
	assert.Contains(t, result.ScriptText, "--tgt-size 1200")

	_, ok := tree.Lookup(recoveryPatchTreePath)
	assert.True(t, ok)
	_, ok = tree.Lookup(installScriptTreePath)
	assert.True(t, ok)
}

// Boundary scenario 6: recovery image without ANDROID! magic -> fixed
// signature region [512, 992), 480 bytes, --check-sha1 matches that
// region's SHA-1.
func TestBuildRecoveryFromBootBoundaryScenario6(t *testing.T) {
	bootData := make([]byte, 1200)
	recoveryData := make([]byte, 1200)
	for i := range recoveryData {
		recoveryData[i] = byte(i % 251)
	}
	boot := blobutil.NewFileBlob("boot.img", bootData)
	recovery := blobutil.NewFileBlob("recovery.img", recoveryData)

	wantSum := sha1.Sum(recoveryData[512:992])
	wantHex := hex.EncodeToString(wantSum[:])

	tree := metatree.New()
	result, err := BuildRecoveryFromBoot(context.Background(), stubPatcher{patch: []byte("p")}, boot, recovery, tree, 512, 480)
	require.NoError(t, err)
	assert.Contains(t, result.ScriptText, "--check-sha1 "+wantHex)
}
