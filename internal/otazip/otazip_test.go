package otazip

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteManifestSortedKeys(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewWriter(buf)
	require.NoError(t, w.WriteManifest(map[string]string{
		"post-build":     "target",
		"pre-device":     "turbot",
		"post-timestamp": "123",
	}))
	require.NoError(t, w.Close())

	r, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, r.File, 1)
	assert.Equal(t, ManifestPath, r.File[0].Name)

	rc, err := r.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()
	contents := make([]byte, r.File[0].UncompressedSize64)
	_, err = rc.Read(contents)
	require.NoError(t, err)

	assert.Equal(t, "post-build=target\npost-timestamp=123\npre-device=turbot\n", string(contents))
}

type fakeSigner struct{ err error }

func (f fakeSigner) SignWholeArchive(_ context.Context, archivePath, key, passphrase string) error {
	return f.err
}

type fakePassphrases struct{ value string }

func (f fakePassphrases) RetrievePassphrase(_ context.Context, key string) (string, error) {
	return f.value, nil
}

func TestAssembleSuccessRenamesToOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "update.zip")

	err := Assemble(context.Background(), output, fakeSigner{}, fakePassphrases{value: "secret"}, "key", func(w *Writer) error {
		return w.WriteEntry("hello.txt", []byte("world"))
	})
	require.NoError(t, err)

	_, statErr := os.Stat(output)
	assert.NoError(t, statErr)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not survive a successful assemble")
}

func TestAssembleFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "update.zip")

	err := Assemble(context.Background(), output, fakeSigner{err: errors.New("sign failed")}, fakePassphrases{value: "secret"}, "key", func(w *Writer) error {
		return w.WriteEntry("hello.txt", []byte("world"))
	})
	require.Error(t, err)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up on failure")
}
