package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ota-composer/internal/config"
)

func TestNewRootCmdRegistersSpecFlags(t *testing.T) {
	cmd := newRootCmd()
	flags := cmd.Flags()

	cases := []struct {
		name, shorthand string
	}{
		{"package_key", "k"},
		{"incremental_from", "i"},
		{"wipe_user_data", "w"},
		{"no_prereq", "n"},
		{"extra_script", "e"},
		{"aslr_mode", "a"},
		{"worker_threads", ""},
		{"intel_ota", ""},
		{"b", "b"},
	}
	for _, c := range cases {
		f := flags.Lookup(c.name)
		require.NotNilf(t, f, "flag %q must be registered", c.name)
		assert.Equal(t, c.shorthand, f.Shorthand, "flag %q shorthand", c.name)
	}
}

func TestApplyASLRModeOnOff(t *testing.T) {
	profile := config.DefaultProfile()

	require.NoError(t, applyASLRMode("on", &profile))
	assert.True(t, profile.EmitASLRRetouch)

	require.NoError(t, applyASLRMode("off", &profile))
	assert.False(t, profile.EmitASLRRetouch)

	require.NoError(t, applyASLRMode("", &profile))
	assert.False(t, profile.EmitASLRRetouch, "empty mode leaves the profile's own gate untouched")

	err := applyASLRMode("sideways", &profile)
	assert.ErrorContains(t, err, "aslr_mode")
}

func TestRollbackEnvForcesNoPrereq(t *testing.T) {
	t.Setenv("OTA_ROLLBACK", "off")
	assert.True(t, rollbackForcesNoPrereq())

	t.Setenv("OTA_ROLLBACK", "on")
	assert.False(t, rollbackForcesNoPrereq())
}

func TestEnvSafeSanitizesKey(t *testing.T) {
	assert.Equal(t, "RELEASE_KEY_1", envSafe("release-key.1"))
	assert.Equal(t, "ABC", envSafe("abc"))
}
