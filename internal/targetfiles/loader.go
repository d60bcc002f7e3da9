package targetfiles

import (
	"archive/zip"
	"io"
	"sort"
	"strings"

	"github.com/osbuild/ota-composer/internal/blobutil"
	"github.com/osbuild/ota-composer/internal/metatree"
)

// systemPrefix is the archive prefix the loader enumerates.
const systemPrefix = "SYSTEM/"

// Symlink is a (target, link) pair: target is the literal string stored
// in the archive entry, link is the device-absolute path.
type Symlink struct {
	Target string
	Link   string
}

// OutputWriter is the subset of an output archive writer the loader
// needs: create a deflated entry and stream bytes into it. Satisfied by
// internal/otazip.Writer; kept as an interface here so targetfiles has
// no dependency on the concrete archive-writing library.
type OutputWriter interface {
	WriteEntry(name string, data []byte) error
}

// Substitution maps an archive-relative SYSTEM/ path to either
// replacement bytes (non-nil) or omission (nil): a present key with a
// nil value means "omit this file entirely" per spec.md 4.2.
type Substitution map[string]*[]byte

// LoadResult is C2's output: the sorted symlink list and the retouch
// list (device_path, sha1_hex) of every lib/ regular file copied.
type LoadResult struct {
	Symlinks []Symlink
	Retouch  []RetouchEntry
}

// RetouchEntry names one copied lib/ file by device path and content
// digest, kept for the (currently gated off) ASLR retouch primitive.
type RetouchEntry struct {
	DevicePath string
	SHA1Hex    string
}

// LoadSystemFiles iterates every SYSTEM/ entry of archive, registers each
// in tree, optionally copies its bytes (after substitution) to out, and
// returns the symlink and retouch lists. out may be nil to skip copying
// (used by the diff planner, which only needs the tree and blobs).
func LoadSystemFiles(archive *Archive, tree *metatree.Tree, substitutions Substitution, out OutputWriter) (*LoadResult, error) {
	result := &LoadResult{}

	for _, f := range archive.EntriesUnder(systemPrefix) {
		relpath := strings.TrimPrefix(f.Name, systemPrefix)
		if relpath == "" {
			continue
		}
		devicePath := "system/" + strings.TrimSuffix(relpath, "/")

		if isSymlinkEntry(f) {
			data, err := readSymlinkTarget(f)
			if err != nil {
				return nil, err
			}
			result.Symlinks = append(result.Symlinks, Symlink{
				Target: string(data),
				Link:   "/system/" + relpath,
			})
			continue
		}

		isDir := isDirEntry(f)
		tree.EnsureNode(devicePath, isDir)

		if isDir {
			continue
		}

		if sub, overridden := substitutions[devicePath]; overridden {
			if sub == nil {
				continue
			}
			if out != nil {
				if err := out.WriteEntry(devicePath, *sub); err != nil {
					return nil, err
				}
			}
		} else if out != nil {
			blob, err := blobFromEntry(f)
			if err != nil {
				return nil, err
			}
			if err := out.WriteEntry(devicePath, blob.Data()); err != nil {
				return nil, err
			}
		}

		if strings.HasPrefix(relpath, "lib/") {
			blob, err := blobFromEntry(f)
			if err != nil {
				return nil, err
			}
			result.Retouch = append(result.Retouch, RetouchEntry{DevicePath: devicePath, SHA1Hex: blob.SHA1Hex()})
		}
	}

	sort.Slice(result.Symlinks, func(i, j int) bool {
		if result.Symlinks[i].Target != result.Symlinks[j].Target {
			return result.Symlinks[i].Target < result.Symlinks[j].Target
		}
		return result.Symlinks[i].Link < result.Symlinks[j].Link
	})

	return result, nil
}

// LoadSystemBlobs enumerates SYSTEM/ regular files into a device-path ->
// FileBlob map, without touching a tree or output archive. Used by the
// difference planner, which needs random-access content for both the
// source and target archives.
func LoadSystemBlobs(archive *Archive) (map[string]*blobutil.FileBlob, error) {
	blobs := map[string]*blobutil.FileBlob{}
	for _, f := range archive.EntriesUnder(systemPrefix) {
		if isDirEntry(f) || isSymlinkEntry(f) {
			continue
		}
		relpath := strings.TrimPrefix(f.Name, systemPrefix)
		if relpath == "" {
			continue
		}
		blob, err := blobFromEntry(f)
		if err != nil {
			return nil, err
		}
		blobs["system/"+relpath] = blob
	}
	return blobs, nil
}

func readSymlinkTarget(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	buf := make([]byte, f.UncompressedSize64)
	if _, err := io.ReadFull(rc, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
