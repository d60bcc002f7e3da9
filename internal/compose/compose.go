// Package compose implements the OTA Composer (spec.md section 4.6,
// component C6): it orchestrates the system file loader, difference
// planner, image planner, and installer script builder into the two
// ordering contracts spec.md section 4.5 defines, and computes the
// metadata manifest spec.md section 4.6 describes. Grounded on the
// teacher's top-level distro-registry orchestration style
// (internal/distro/rhel7/distro.go): a method that sequences
// sub-component calls behind a single entry point, logging structurally
// as it goes.
package compose

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/osbuild/ota-composer/internal/installer"
	"github.com/osbuild/ota-composer/internal/targetfiles"
)

// Result is one composition's output: the finished script, the manifest
// ready for otazip.WriteManifest, and the symlink list (exposed mainly
// for tests). Warnings collects every non-fatal anomaly noticed along the
// way (a skipped roster image, an unchanged recovery image, a suspicious
// misc_info field) — composition still succeeds, but a caller that wants
// to surface them to a human can walk Warnings.Errors.
type Result struct {
	Script   *installer.Script
	Manifest map[string]string
	Symlinks []targetfiles.Symlink
	Warnings *multierror.Error
}

// Compose runs one full or incremental composition, writing every
// archive-resident artifact (system files, patches, images, the
// recovery-from-boot pair) to out as it goes. The installer script and
// manifest are returned for the caller to serialize and write
// themselves, since both are cheap in-memory values the caller may want
// to inspect before committing them to the archive.
func Compose(ctx context.Context, req Request, out targetfiles.OutputWriter) (*Result, error) {
	logger := logrus.WithField("component", "compose")

	switch req.Mode {
	case Full:
		return composeFull(ctx, req, out, logger)
	case Incremental:
		return composeIncremental(ctx, req, out, logger)
	default:
		return nil, fmt.Errorf("compose: unknown mode %d", req.Mode)
	}
}
