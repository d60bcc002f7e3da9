package compose

import (
	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/imageplan"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

// recoveryImagePair carries the boot+recovery blobs a deferred
// recovery-from-boot computation needs; boot is always the target's own
// boot image, since recovery-from-boot patches within one build (they
// share a kernel), never across source/target builds.
type recoveryImagePair struct {
	boot, recovery *blobutil.FileBlob
}

// collectPresentImages resolves every non-recovery roster name against
// archive, keeping only the ones actually present (spec.md boundary
// scenario 1: an archive with none contributes no step-11 progress).
// Recovery is split out separately since it never competes for a
// FullFlash/Skip decision inside this loop (spec.md 4.4 rule 3).
func collectPresentImages(archive *targetfiles.Archive, roster []imageplan.Name) ([]imageplan.NamedImage, *recoveryImagePair, error) {
	var present []imageplan.NamedImage
	var recovery *recoveryImagePair

	for _, name := range roster {
		blob, ok, err := archive.GetBootableImage(string(name), imageplan.FileName(name))
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		if name == imageplan.Recovery {
			bootBlob, bootOK, err := archive.GetBootableImage(string(imageplan.Boot), imageplan.FileName(imageplan.Boot))
			if err != nil {
				return nil, nil, err
			}
			if !bootOK {
				continue
			}
			recovery = &recoveryImagePair{boot: bootBlob, recovery: blob}
			continue
		}
		present = append(present, imageplan.NamedImage{Name: name, Target: blob})
	}
	return present, recovery, nil
}

// decideIncrementalImages classifies every non-recovery roster image
// against both archives, and separately reports whether recovery needs a
// fresh recovery-from-boot patch (spec.md 4.4 rule 2: skipped entirely
// when source and target recovery bytes match).
func decideIncrementalImages(req Request, roster []imageplan.Name, fromGB bool) ([]imageplan.ImageDecision, *imageplan.ImageDecision, error) {
	var decisions []imageplan.ImageDecision
	var recovery *imageplan.ImageDecision

	for _, name := range roster {
		targetBlob, targetOK, err := req.Target.GetBootableImage(string(name), imageplan.FileName(name))
		if err != nil {
			return nil, nil, err
		}
		sourceBlob, _, err := req.Source.GetBootableImage(string(name), imageplan.FileName(name))
		if err != nil {
			return nil, nil, err
		}

		img := imageplan.NamedImage{Name: name}
		if targetOK {
			img.Target = targetBlob
		}
		img.Source = sourceBlob

		decision := imageplan.Decide(img, imageplan.DecideOptions{
			DoPartitioning: req.Profile.DoPartitioning,
			FromGB:         fromGB,
		})

		if name == imageplan.Recovery {
			if decision.Kind == imageplan.RecoveryFromBoot {
				recovery = &decision
			}
			continue
		}
		if decision.Kind == imageplan.Skip {
			continue
		}
		decisions = append(decisions, decision)
	}
	return decisions, recovery, nil
}
