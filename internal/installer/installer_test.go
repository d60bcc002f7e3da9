package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowProgressAccumulates(t *testing.T) {
	s := New()
	s.ShowProgress(0.5, 0)
	s.ShowProgress(0.1, 0)
	assert.InDelta(t, 0.6, s.Progress(), 1e-9)
}

func TestAppendScriptSplicesInOrder(t *testing.T) {
	main := New()
	main.Mount("/system")

	sub := New()
	sub.SetPerm("/system/a", 0, 0, 0o644)
	sub.SetPerm("/system/b", 0, 0, 0o644)

	main.AppendScript(sub)
	main.Unmount("/system")

	instrs := main.Instructions()
	require.Len(t, instrs, 3)
	assert.IsType(t, Mount{}, instrs[0])
	spliced, ok := instrs[1].(AppendScriptInstr)
	require.True(t, ok)
	assert.Len(t, spliced.Sub, 2)
	assert.IsType(t, Unmount{}, instrs[2])
}

func TestMakeSymlinksOmittedWhenEmpty(t *testing.T) {
	s := New()
	s.MakeSymlinks(nil)
	assert.Empty(t, s.Instructions())
}

func TestFlashDispatchSpecialNames(t *testing.T) {
	for name, want := range map[string]Instruction{
		"esp":     FlashESPUpdate{},
		"ifwi":    FlashIFWI{},
		"capsule": FlashCapsule{},
		"ulpmc":   FlashULPMC{},
	} {
		s := New()
		FlashDispatch(s, name, "")
		require.Len(t, s.Instructions(), 1)
		assert.IsType(t, want, s.Instructions()[0])
	}
}

func TestFlashDispatchNoPartitionTable(t *testing.T) {
	s := New()
	FlashDispatch(s, "boot", "")
	require.Len(t, s.Instructions(), 1)
	got, ok := s.Instructions()[0].(FlashOSImage)
	require.True(t, ok)
	assert.Equal(t, "boot", got.Name)
}

func TestFlashDispatchWithPartitionTable(t *testing.T) {
	table := "-l BOOT -b 2048 -s 4096\n-l recovery -b 8192 -s 4096\n"
	s := New()
	FlashDispatch(s, "boot", table)
	require.Len(t, s.Instructions(), 1)
	got, ok := s.Instructions()[0].(FlashImageAtOffset)
	require.True(t, ok)
	assert.Equal(t, int64(2048*512), got.ByteOffset)
}

func TestFlashDispatchPartitionTableNoMatchFallsBack(t *testing.T) {
	table := "-l recovery -b 8192 -s 4096\n"
	s := New()
	FlashDispatch(s, "boot", table)
	require.Len(t, s.Instructions(), 1)
	_, ok := s.Instructions()[0].(FlashOSImage)
	assert.True(t, ok)
}
