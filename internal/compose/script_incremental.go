package compose

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ota-composer/internal/diffplan"
	"github.com/osbuild/ota-composer/internal/imageplan"
	"github.com/osbuild/ota-composer/internal/installer"
	"github.com/osbuild/ota-composer/internal/metatree"
	"github.com/osbuild/ota-composer/internal/otaerr"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

const buildPropPath = "system/build.prop"

// composeIncremental implements spec.md section 4.5's incremental
// ordering contract: a verify phase (0.1), a mutate phase (0.8), and a
// tail phase (0.1).
func composeIncremental(ctx context.Context, req Request, out targetfiles.OutputWriter, logger *logrus.Entry) (*Result, error) {
	if req.Source == nil {
		return nil, otaerr.InputMalformed("incremental composition requires a source archive")
	}

	_, targetBuildProp, err := loadMetadata(req.Target)
	if err != nil {
		return nil, err
	}
	_, sourceBuildProp, err := loadMetadata(req.Source)
	if err != nil {
		return nil, err
	}

	targetTree := metatree.New()
	targetLoad, err := targetfiles.LoadSystemFiles(req.Target, targetTree, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := req.FSConfig.Resolve(ctx, targetTree, req.Target); err != nil {
		return nil, err
	}

	sourceTree := metatree.New()
	sourceLoad, err := targetfiles.LoadSystemFiles(req.Source, sourceTree, nil, nil)
	if err != nil {
		return nil, err
	}

	sourceBlobs, err := targetfiles.LoadSystemBlobs(req.Source)
	if err != nil {
		return nil, err
	}
	targetBlobs, err := targetfiles.LoadSystemBlobs(req.Target)
	if err != nil {
		return nil, err
	}

	planResult, err := diffplan.Plan(ctx, sourceBlobs, targetBlobs, req.PatchComputer, diffplan.Options{
		PatchThreshold:   req.Profile.PatchThreshold,
		WorkerThreads:    req.Profile.WorkerThreads,
		RequireVerbatim:  toPathSet(req.Profile.RequireVerbatim),
		ProhibitVerbatim: toPathSet(req.Profile.ProhibitVerbatim),
	})
	if err != nil {
		return nil, err
	}

	roster := imageplan.BuildRoster(rosterOptions(req.Profile))
	imageDecisions, recoveryDecision, err := decideIncrementalImages(req, roster, sourceBuildProp.IsGingerbread())
	if err != nil {
		return nil, err
	}

	script := installer.New()
	var warnings *multierror.Error

	script.AssertDevice(req.Profile.DeviceModel)
	for _, product := range req.Profile.CompatibleProducts {
		script.AssertCompatibleProduct(product)
	}
	if fp := targetBuildProp.Fingerprint(); req.Profile.EmitFingerprintAssert && fp != "" {
		script.AssertSomeFingerprint(sourceBuildProp.Fingerprint(), fp)
	}

	if err := req.hook().PreHook(script); err != nil {
		return nil, otaerr.External("device pre-hook", err)
	}

	var deferredBuildProp *diffplan.PatchDecision
	var patched []diffplan.PatchDecision
	for _, d := range planResult.Decisions {
		if d.Kind != diffplan.Patched {
			continue
		}
		if d.Path == buildPropPath {
			d := d
			deferredBuildProp = &d
			continue
		}
		patched = append(patched, d)
	}

	var incrementalImages []imageplan.ImageDecision
	for _, dec := range imageDecisions {
		if dec.Kind == imageplan.IncrementalPatch {
			incrementalImages = append(incrementalImages, dec)
		}
	}

	if len(patched) == 0 && len(incrementalImages) == 0 && deferredBuildProp == nil && recoveryDecision == nil {
		logger.Warn("incremental composition found no differences between source and target")
		warnings = multierror.Append(warnings, fmt.Errorf("no content differs between source and target build"))
	}

	largestSourceSize := planResult.LargestSourceSize
	var totalSourceSize int64
	for _, d := range patched {
		totalSourceSize += d.Source.Size()
	}
	if deferredBuildProp != nil {
		totalSourceSize += deferredBuildProp.Source.Size()
	}
	for _, dec := range incrementalImages {
		totalSourceSize += dec.Source.Size()
		if dec.Source.Size() > largestSourceSize {
			largestSourceSize = dec.Source.Size()
		}
	}

	// verify phase: 0.1 budget.
	script.ShowProgress(0.1, 0)
	var verified int64
	verify := func(path, targetSHA1, sourceSHA1 string, size int64) {
		script.PatchCheck(devicePath(path), targetSHA1, sourceSHA1)
		verified += size
		if totalSourceSize > 0 {
			script.SetProgress(0.1 * float64(verified) / float64(totalSourceSize))
		}
	}
	for _, d := range patched {
		verify(d.Path, d.Target.SHA1Hex(), d.Source.SHA1Hex(), d.Source.Size())
	}
	if deferredBuildProp != nil {
		verify(deferredBuildProp.Path, deferredBuildProp.Target.SHA1Hex(), deferredBuildProp.Source.SHA1Hex(), deferredBuildProp.Source.Size())
	}
	for _, dec := range incrementalImages {
		script.ExtractImage(string(dec.Name))
		script.CacheFreeSpaceCheck(dec.Target.Size())
		verify(string(dec.Name), dec.Target.SHA1Hex(), dec.Source.SHA1Hex(), dec.Source.Size())
	}
	if totalSourceSize > 0 {
		script.CacheFreeSpaceCheck(largestSourceSize)
	}

	// mutate phase: 0.8 budget.
	script.ShowProgress(0.8, 0)
	for _, dec := range imageDecisions {
		if dec.Kind != imageplan.FullFlash {
			continue
		}
		if limit, ok := req.PartitionSizeLimits[dec.Name]; ok && dec.Target.Size() > limit {
			return nil, otaerr.SizeViolation("image %q is %d bytes, exceeds partition limit %d bytes", dec.Name, dec.Target.Size(), limit)
		}
		if err := out.WriteEntry(imageplan.FileName(dec.Name), dec.Target.Data()); err != nil {
			return nil, err
		}
		script.ExtractImage(string(dec.Name))
		installer.FlashDispatch(script, string(dec.Name), req.PartitionTable)
		script.DeleteTmpImage(string(dec.Name))
	}

	for _, d := range patched {
		patchPath := "patch/" + d.Path + ".p"
		if err := out.WriteEntry(patchPath, d.PatchBytes); err != nil {
			return nil, err
		}
		script.ApplyPatch(devicePath(d.Path), d.TargetSize, d.Target.SHA1Hex(), d.Source.SHA1Hex(), "/"+patchPath)
	}
	for _, d := range planResult.Decisions {
		if d.Kind != diffplan.Verbatim {
			continue
		}
		blob := targetBlobs[d.Path]
		if err := out.WriteEntry(d.Path, blob.Data()); err != nil {
			return nil, err
		}
		script.PackageExtract(d.Path)
	}

	for _, dec := range incrementalImages {
		patch, err := req.PatchComputer.ComputePatch(ctx, dec.Source, dec.Target)
		if err != nil {
			return nil, otaerr.External("compute_patch("+string(dec.Name)+")", err)
		}
		patchPath := "patch/" + string(dec.Name) + ".img.p"
		if err := out.WriteEntry(patchPath, patch); err != nil {
			return nil, err
		}
		script.ApplyPatch(devicePath(imageplan.FileName(dec.Name)), dec.Target.Size(), dec.Target.SHA1Hex(), dec.Source.SHA1Hex(), "/"+patchPath)
		installer.FlashDispatch(script, string(dec.Name), req.PartitionTable)
		script.DeleteTmpImage(string(dec.Name))
	}

	var recoveryResult *imageplan.RecoveryFromBootResult
	if recoveryDecision != nil {
		bootBlob, bootOK, err := req.Target.GetBootableImage(string(imageplan.Boot), imageplan.FileName(imageplan.Boot))
		if err != nil {
			return nil, err
		}
		if !bootOK {
			return nil, otaerr.InputMalformed("recovery-from-boot requires a target boot image")
		}
		recoveryResult, err = imageplan.BuildRecoveryFromBoot(ctx, req.PatchComputer, bootBlob, recoveryDecision.Target, targetTree, req.Profile.RecoverySigRegion.Offset, req.Profile.RecoverySigRegion.Length)
		if err != nil {
			return nil, err
		}
		if err := out.WriteEntry(imageplan.RecoveryPatchArchiveName, recoveryResult.PatchBytes); err != nil {
			return nil, err
		}
		if err := out.WriteEntry(imageplan.RecoveryInstallScriptName, []byte(recoveryResult.ScriptText)); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("recovery image unchanged from source; recovery-from-boot not invoked")
		warnings = multierror.Append(warnings, fmt.Errorf("recovery image unchanged from source; recovery-from-boot not invoked"))
	}

	// tail phase: 0.1 budget.
	script.ShowProgress(0.1, 0)
	targetTree.Compact()
	applyPermPlan(script, metatree.EmitPermissionPlan(targetTree.Root()))
	reconcileSymlinks(script, sourceLoad.Symlinks, targetLoad.Symlinks)
	if req.Profile.EmitASLRRetouch {
		script.ASLRRetouch(retouchPaths(targetLoad.Retouch))
	}
	if req.ExtraScriptText != "" {
		script.AppendExtra(req.ExtraScriptText)
	}
	if deferredBuildProp != nil {
		patchPath := "patch/" + buildPropPath + ".p"
		if err := out.WriteEntry(patchPath, deferredBuildProp.PatchBytes); err != nil {
			return nil, err
		}
		script.ApplyPatch(devicePath(buildPropPath), deferredBuildProp.TargetSize, deferredBuildProp.Target.SHA1Hex(), deferredBuildProp.Source.SHA1Hex(), "/"+patchPath)
	}
	script.SetPerm(devicePath(buildPropPath), 0, 0, 0o644)

	if err := req.hook().PostHook(script); err != nil {
		return nil, otaerr.External("device post-hook", err)
	}

	manifest := Manifest{
		PreDevice:     req.Profile.DeviceModel,
		PreBuild:      sourceBuildProp.Fingerprint(),
		PostBuild:     targetBuildProp.Fingerprint(),
		PostTimestamp: targetBuildProp.Timestamp(),
		FromGB:        sourceBuildProp.IsGingerbread(),
		incremental:   true,
	}

	return &Result{Script: script, Manifest: manifest.ToMap(), Symlinks: targetLoad.Symlinks, Warnings: warnings}, nil
}

func toPathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
