package deviceext

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ota-composer/internal/installer"
)

func TestNoOpHookDoesNothing(t *testing.T) {
	script := installer.New()
	hook := NoOp{}
	require.NoError(t, hook.PreHook(script))
	require.NoError(t, hook.PostHook(script))
	assert.Empty(t, script.Instructions())
}

func writeHookScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hook.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestExternalHookAppendsStdoutOnlyWhenNonEmpty(t *testing.T) {
	script := installer.New()
	hook := ExternalHook{Ctx: context.Background(), Path: writeHookScript(t, `
if [ "$1" = pre ]; then
  echo 'ui_print("pre-hook ran")'
fi
`)}

	require.NoError(t, hook.PreHook(script))
	require.NoError(t, hook.PostHook(script))

	instructions := script.Instructions()
	require.Len(t, instructions, 1)
	extra, ok := instructions[0].(installer.AppendExtra)
	require.True(t, ok)
	assert.Equal(t, `ui_print("pre-hook ran")`, extra.Text)
}

func TestExternalHookFailurePropagates(t *testing.T) {
	script := installer.New()
	hook := ExternalHook{Ctx: context.Background(), Path: writeHookScript(t, "exit 1\n")}
	require.Error(t, hook.PreHook(script))
}
