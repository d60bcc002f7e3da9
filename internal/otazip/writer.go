// Package otazip implements the Archive Assembler & Signer (spec.md
// section 4.7, component C7): deflated zip assembly of the output
// package, the metadata manifest, and the whole-archive signing
// invocation. The deflate implementation is the teacher's own vendored
// github.com/klauspost/compress, used here for the *output* archive
// (the input target-files archives are only ever read, via stdlib
// archive/zip in internal/targetfiles).
package otazip

import (
	"fmt"
	"io"
	"sort"

	kzip "github.com/klauspost/compress/zip"
)

// Writer assembles the output OTA package. It exclusively owns the
// underlying file for the duration of one composition (spec.md section
// 5): all writes happen on a single goroutine.
type Writer struct {
	zw *kzip.Writer
}

// NewWriter wraps an io.Writer (normally a temporary file) with a
// deflated zip writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{zw: kzip.NewWriter(w)}
}

// WriteEntry implements targetfiles.OutputWriter: create a deflated entry
// named name and write data into it.
func (w *Writer) WriteEntry(name string, data []byte) error {
	fw, err := w.zw.CreateHeader(&kzip.FileHeader{Name: name, Method: kzip.Deflate})
	if err != nil {
		return fmt.Errorf("otazip: create entry %q: %w", name, err)
	}
	_, err = fw.Write(data)
	if err != nil {
		return fmt.Errorf("otazip: write entry %q: %w", name, err)
	}
	return nil
}

// ManifestPath is the fixed location of the composition metadata
// manifest within the output archive (spec.md section 4.6).
const ManifestPath = "META-INF/com/android/metadata"

// WriteManifest serializes manifest as sorted "key=value\n" lines
// (spec.md section 3: "an ordered mapping... written... in sorted key
// order") to ManifestPath.
func (w *Writer) WriteManifest(manifest map[string]string) error {
	keys := make([]string, 0, len(manifest))
	for k := range manifest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		buf = append(buf, []byte(fmt.Sprintf("%s=%s\n", k, manifest[k]))...)
	}
	return w.WriteEntry(ManifestPath, buf)
}

// Close finalizes the zip central directory. Callers must still close
// the underlying io.Writer/file themselves if it requires it.
func (w *Writer) Close() error {
	return w.zw.Close()
}
