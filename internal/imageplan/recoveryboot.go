package imageplan

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/diffplan"
	"github.com/osbuild/ota-composer/internal/metatree"
	"github.com/osbuild/ota-composer/internal/otaerr"
)

// RecoveryPatchArchiveName and RecoveryInstallScriptName are the fixed
// archive paths spec.md section 4.4 names.
const (
	RecoveryPatchArchiveName  = "recovery/recovery-from-boot.p"
	RecoveryInstallScriptName = "recovery/etc/install-recovery.sh"

	recoveryPatchTreePath  = "system/recovery-from-boot.p"
	installScriptTreePath  = "system/etc/install-recovery.sh"
)

// RecoveryFromBootResult is the derived artifact spec.md section 4.4
// describes: the boot->recovery patch plus the generated
// install-recovery.sh shell script.
type RecoveryFromBootResult struct {
	PatchBytes []byte
	ScriptText string
}

// BuildRecoveryFromBoot computes the boot->recovery binary patch,
// derives the signature-check arguments, registers the two synthesized
// tree nodes, and renders install-recovery.sh. It always does this work
// and never compares against a source recovery image: callers that must
// skip an unchanged recovery (spec.md boundary scenario 5) check
// img.Source/img.Target equality before calling this, via Decide's own
// Skip rule.
func BuildRecoveryFromBoot(ctx context.Context, computer diffplan.PatchComputer, boot, recovery *blobutil.FileBlob, tree *metatree.Tree, fallbackOffset, fallbackLength int64) (*RecoveryFromBootResult, error) {
	patch, err := computer.ComputePatch(ctx, boot, recovery)
	if err != nil {
		return nil, otaerr.External("compute_patch(recovery-from-boot)", err)
	}

	tree.EnsureNode(recoveryPatchTreePath, false)
	tree.EnsureNode(installScriptTreePath, false)

	header, present := ParseBootHeader(recovery.Data())
	offset, length, regionOK := SignatureRegion(header, present, fallbackOffset, fallbackLength)

	var checkSHA1 string
	if regionOK {
		end := offset + length
		if end > int64(len(recovery.Data())) {
			end = int64(len(recovery.Data()))
		}
		if offset < end {
			sum := sha1.Sum(recovery.Data()[offset:end])
			checkSHA1 = hex.EncodeToString(sum[:])
		} else {
			regionOK = false
		}
	}

	script := renderInstallRecoveryScript(boot.SHA1Hex(), recovery.SHA1Hex(), recovery.Size(), checkSHA1, regionOK)

	return &RecoveryFromBootResult{PatchBytes: patch, ScriptText: script}, nil
}

// renderInstallRecoveryScript renders the shell script invoking
// update_recovery, per spec.md section 4.4.
func renderInstallRecoveryScript(srcSHA1, tgtSHA1 string, tgtSize int64, checkSHA1 string, haveCheck bool) string {
	args := ""
	if haveCheck {
		args += fmt.Sprintf(" --check-sha1 %s", checkSHA1)
	}
	args += fmt.Sprintf(" --src-sha1 %s --tgt-sha1 %s --tgt-size %d --patch %s",
		srcSHA1, tgtSHA1, tgtSize, RecoveryPatchArchiveName)

	return fmt.Sprintf("#!/system/bin/sh\nupdate_recovery%s\n", args)
}
