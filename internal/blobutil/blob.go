// Package blobutil provides the immutable content-addressed value type
// shared by every component that reads file bytes out of a target-files
// archive.
package blobutil

import (
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/opencontainers/go-digest"
)

// Algorithm is the fixed digest algorithm used throughout the engine.
// spec.md names SHA-1 explicitly; this is not a configurable choice.
const Algorithm = digest.Algorithm("sha1")

// FileBlob is a path plus raw bytes plus a cached digest and size.
// Immutable once constructed: callers must not mutate Data after
// NewFileBlob returns.
type FileBlob struct {
	path string
	data []byte

	once   sync.Once
	digest digest.Digest
}

// NewFileBlob constructs a FileBlob over data. The digest is computed
// lazily on first access.
func NewFileBlob(path string, data []byte) *FileBlob {
	return &FileBlob{path: path, data: data}
}

func (b *FileBlob) Path() string { return b.path }

func (b *FileBlob) Data() []byte { return b.data }

func (b *FileBlob) Size() int64 { return int64(len(b.data)) }

// Digest returns the canonical "sha1:<hex>" digest of the blob's bytes.
func (b *FileBlob) Digest() digest.Digest {
	b.once.Do(func() {
		sum := sha1.Sum(b.data)
		b.digest = digest.NewDigestFromEncoded(Algorithm, hex.EncodeToString(sum[:]))
	})
	return b.digest
}

// SHA1Hex returns the bare hex digest, the form spec.md's data model and
// installer DSL (apply_patch, patch_check) expect.
func (b *FileBlob) SHA1Hex() string {
	return b.Digest().Encoded()
}

// SameContent reports whether two blobs have identical SHA-1 digests.
func SameContent(a, b *FileBlob) bool {
	if a == nil || b == nil {
		return false
	}
	return a.SHA1Hex() == b.SHA1Hex()
}
