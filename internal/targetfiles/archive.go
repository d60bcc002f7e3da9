// Package targetfiles implements the System File Loader (spec.md section
// 4.2, component C2) and the read-only target-files archive accessor
// (spec.md section 6.1): enumeration of the SYSTEM/ subtree, symlink
// classification, misc_info.txt / build.prop parsing, and
// per-image source-subtree lookup for the bootable-image planner.
package targetfiles

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/osbuild/ota-composer/internal/blobutil"
)

// symlinkExternalAttrMagic is the external-attribute upper word
// identifying a zip entry as a symlink (spec.md 4.2: top two bytes
// 0o120777).
const symlinkExternalAttrMagic = 0o120777

// Archive is a read-only accessor over one target-files zip.
type Archive struct {
	reader  *zip.Reader
	byName  map[string]*zip.File
}

// Open wraps an already-opened zip.Reader (the caller owns the underlying
// io.ReaderAt/Closer's lifetime).
func Open(r *zip.Reader) *Archive {
	byName := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		byName[f.Name] = f
	}
	return &Archive{reader: r, byName: byName}
}

// Entry returns the named archive entry, if present.
func (a *Archive) Entry(name string) (*zip.File, bool) {
	f, ok := a.byName[name]
	return f, ok
}

// ReadEntry returns an entry's decompressed bytes.
func (a *Archive) ReadEntry(name string) ([]byte, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("archive: no such entry %q", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// EntriesUnder returns every entry whose name has the given prefix,
// sorted by name.
func (a *Archive) EntriesUnder(prefix string) []*zip.File {
	var out []*zip.File
	for _, f := range a.reader.File {
		if strings.HasPrefix(f.Name, prefix) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// isSymlinkEntry reports whether a zip entry's external attributes mark
// it as a symlink per spec.md 4.2.
func isSymlinkEntry(f *zip.File) bool {
	return f.ExternalAttrs>>16 == symlinkExternalAttrMagic
}

// isDirEntry reports whether an archive entry represents a directory:
// name ends in "/".
func isDirEntry(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/")
}

// GetBootableImage reads one per-image source subtree entry (spec.md
// section 6.1: "BOOT/**, RECOVERY/**, ... fed to get_bootable_image(name)"):
// archive entry "<NAME>/<fileName>" where NAME is name upper-cased. Returns
// ok=false if the subtree or the entry within it is absent, which is not
// itself an error: a device profile may simply not carry every roster
// image.
func (a *Archive) GetBootableImage(name, fileName string) (*blobutil.FileBlob, bool, error) {
	entryName := strings.ToUpper(name) + "/" + fileName
	f, ok := a.byName[entryName]
	if !ok {
		return nil, false, nil
	}
	blob, err := blobFromEntry(f)
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// blobFromEntry reads and wraps an entry's bytes in a FileBlob.
func blobFromEntry(f *zip.File) (*blobutil.FileBlob, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", f.Name, err)
	}
	return blobutil.NewFileBlob(f.Name, data), nil
}
