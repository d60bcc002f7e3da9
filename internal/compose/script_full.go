package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ota-composer/internal/imageplan"
	"github.com/osbuild/ota-composer/internal/installer"
	"github.com/osbuild/ota-composer/internal/metatree"
	"github.com/osbuild/ota-composer/internal/otaerr"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

// composeFull implements the full-OTA ordering contract, spec.md section
// 4.5's 14-step sequence.
func composeFull(ctx context.Context, req Request, out targetfiles.OutputWriter, logger *logrus.Entry) (*Result, error) {
	miscInfo, buildProp, err := loadMetadata(req.Target)
	if err != nil {
		return nil, err
	}

	tree := metatree.New()
	loadResult, err := targetfiles.LoadSystemFiles(req.Target, tree, nil, out)
	if err != nil {
		return nil, err
	}
	if err := req.FSConfig.Resolve(ctx, tree, req.Target); err != nil {
		return nil, err
	}

	script := installer.New()

	// 1. device asserts
	script.AssertDevice(req.Profile.DeviceModel)
	for _, product := range req.Profile.CompatibleProducts {
		script.AssertCompatibleProduct(product)
	}
	if !req.NoPrereq {
		if ts, ok := parseTimestamp(buildProp.Timestamp()); ok {
			script.AssertOlderBuild(ts)
		}
	}

	// 2. device-specific pre-hook
	if err := req.hook().PreHook(script); err != nil {
		return nil, otaerr.External("device pre-hook", err)
	}

	// 3. progress budget opens with 0.5
	script.ShowProgress(0.5, 0)

	chaabi := req.Profile.ChaabiTokenRequired
	iafw := strings.EqualFold(req.Profile.BiosType, "iafw")

	// 4.
	if chaabi {
		script.Mount("/system").StartUpdate().Unmount("/system")
	}
	// 5.
	if req.Profile.DoPartitioning {
		script.PackageExtract("partition-table").FlashPartitionScheme()
	}
	// 6.
	if iafw {
		script.InvalidateOS("boot")
	}
	// 7.
	if chaabi {
		script.PackageExtract("ifwi.zip").FlashBOMToken()
	}
	// 8.
	if req.WipeUserData {
		script.FormatPartition("/data")
	}
	// 9.
	script.FormatPartition("/system").Mount("/system")
	script.UnpackPackageDir("recovery", "/system")
	script.UnpackPackageDir("system", "/system")

	// 10. symlinks
	script.MakeSymlinks(toSymlinkPairs(loadResult.Symlinks))
	if req.Profile.EmitASLRRetouch {
		script.ASLRRetouch(retouchPaths(loadResult.Retouch))
	}

	// 11. roster images: progress is allocated only across images actually
	// present in the target archive, so an archive with no bootable
	// images at all contributes nothing to cur_progress here (spec.md
	// boundary scenario 1).
	roster := imageplan.BuildRoster(rosterOptions(req.Profile))
	present, recoveryImg, err := collectPresentImages(req.Target, roster)
	if err != nil {
		return nil, err
	}

	n := len(present)
	if recoveryImg != nil {
		n++
	}
	perImageBudget := 0.0
	if n > 0 {
		perImageBudget = 0.4 / float64(n)
	}

	var warnings *multierror.Error
	var recoveryResult *imageplan.RecoveryFromBootResult
	for _, img := range present {
		script.ShowProgress(perImageBudget, 0)

		decision := imageplan.Decide(img, imageplan.DecideOptions{DoPartitioning: req.Profile.DoPartitioning})
		switch decision.Kind {
		case imageplan.Skip:
			logger.WithField("image", img.Name).Warn("skipping unchanged or disabled image")
			warnings = multierror.Append(warnings, fmt.Errorf("image %q: skipped (unchanged or disabled)", img.Name))
		case imageplan.FullFlash:
			if limit, ok := req.PartitionSizeLimits[img.Name]; ok && img.Target.Size() > limit {
				return nil, otaerr.SizeViolation("image %q is %d bytes, exceeds partition limit %d bytes", img.Name, img.Target.Size(), limit)
			}
			if err := out.WriteEntry(imageplan.FileName(img.Name), img.Target.Data()); err != nil {
				return nil, err
			}
			script.ExtractImage(string(img.Name))
			installer.FlashDispatch(script, string(img.Name), req.PartitionTable)
			script.DeleteTmpImage(string(img.Name))
		}
	}

	if recoveryImg != nil {
		script.ShowProgress(perImageBudget, 0)
		recoveryResult, err = imageplan.BuildRecoveryFromBoot(ctx, req.PatchComputer, recoveryImg.boot, recoveryImg.recovery, tree, req.Profile.RecoverySigRegion.Offset, req.Profile.RecoverySigRegion.Length)
		if err != nil {
			return nil, err
		}
		if err := out.WriteEntry(imageplan.RecoveryPatchArchiveName, recoveryResult.PatchBytes); err != nil {
			return nil, err
		}
		if err := out.WriteEntry(imageplan.RecoveryInstallScriptName, []byte(recoveryResult.ScriptText)); err != nil {
			return nil, err
		}
	}

	// 12. permission plan
	tree.Compact()
	applyPermPlan(script, metatree.EmitPermissionPlan(tree.Root()))
	script.ShowProgress(0.1, 0)

	// 13.
	if req.ExtraScriptText != "" {
		script.AppendExtra(req.ExtraScriptText)
	}
	if chaabi {
		script.FinalizeUpdate()
	}
	script.UnmountAll()
	if iafw {
		script.RestoreOS("boot")
	}
	if err := req.hook().PostHook(script); err != nil {
		return nil, otaerr.External("device post-hook", err)
	}

	// 14. post-assert
	if script.Progress() < 0.9 {
		return nil, otaerr.ProgressUnderrun(script.Progress())
	}

	if recApiVersion, ok := miscInfo.Get("recovery_api_version"); ok && recApiVersion == "" {
		logger.Warn("target declares an empty recovery_api_version")
		warnings = multierror.Append(warnings, fmt.Errorf("misc_info: recovery_api_version is empty"))
	}

	manifest := Manifest{
		PreDevice:     req.Profile.DeviceModel,
		PostBuild:     buildProp.Fingerprint(),
		PostTimestamp: buildProp.Timestamp(),
	}

	return &Result{Script: script, Manifest: manifest.ToMap(), Symlinks: loadResult.Symlinks, Warnings: warnings}, nil
}
