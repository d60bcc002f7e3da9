// Package deviceext defines the device-specific extension hook spec.md
// names as an external collaborator (section 1, "out of scope"). The
// engine calls it at the two points spec.md section 4.5 names: once
// before the bulk of the install script is built, once after.
package deviceext

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/osbuild/ota-composer/internal/installer"
)

// Hook lets a device integration append its own instructions at the
// start and end of the installer script, without this engine knowing
// anything about what those instructions do.
type Hook interface {
	PreHook(script *installer.Script) error
	PostHook(script *installer.Script) error
}

// NoOp is the default Hook: both methods are no-ops, used when a device
// profile names no extensions binary.
type NoOp struct{}

func (NoOp) PreHook(*installer.Script) error  { return nil }
func (NoOp) PostHook(*installer.Script) error { return nil }

// ExternalHook shells out to a device-supplied binary, mirroring
// internal/metatree's fs_config helper invocation: the binary is run
// once per hook point with "pre" or "post" as its sole argument, and
// whatever it writes to stdout, trimmed of surrounding whitespace, is
// spliced into the script via AppendExtra. A binary with nothing to contribute at a given point
// prints nothing.
type ExternalHook struct {
	Ctx  context.Context
	Path string
}

func (h ExternalHook) PreHook(script *installer.Script) error  { return h.run(script, "pre") }
func (h ExternalHook) PostHook(script *installer.Script) error { return h.run(script, "post") }

func (h ExternalHook) run(script *installer.Script, point string) error {
	ctx := h.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := exec.CommandContext(ctx, h.Path, point)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("device extension hook %q %s: %w", h.Path, point, err)
	}
	if text := strings.TrimSpace(stdout.String()); text != "" {
		script.AppendExtra(text)
	}
	return nil
}
