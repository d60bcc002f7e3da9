package otazip

import (
	"context"
	"fmt"

	"github.com/osbuild/ota-composer/internal/otaerr"
)

// Signer is the external whole-archive signing capability (spec.md
// section 1: "the cryptographic signing primitive, consumed via a
// sign_whole_archive(key, passphrase) capability"). Its implementation
// (key material handling, signature block format) is out of scope for
// this engine.
type Signer interface {
	SignWholeArchive(ctx context.Context, archivePath, key, passphrase string) error
}

// PassphraseSource retrieves the passphrase for a named signing key.
// This engine manages no key material itself beyond this retrieval
// (spec.md section 1 Non-goals).
type PassphraseSource interface {
	RetrievePassphrase(ctx context.Context, key string) (string, error)
}

// SignWholePackage retrieves the key passphrase and invokes the signing
// capability against the assembled archive at archivePath. Any failure
// is wrapped as an External error per spec.md section 7.
func SignWholePackage(ctx context.Context, signer Signer, passphrases PassphraseSource, archivePath, key string) error {
	passphrase, err := passphrases.RetrievePassphrase(ctx, key)
	if err != nil {
		return otaerr.External("retrieve passphrase", err)
	}
	if err := signer.SignWholeArchive(ctx, archivePath, key, passphrase); err != nil {
		return otaerr.External("sign_whole_archive", err)
	}
	return nil
}

// cleanupErr wraps a cleanup failure without masking the original error
// it followed; used by callers that must remove temporary files on every
// exit path (spec.md section 5).
func cleanupErr(original, cleanup error) error {
	if cleanup == nil {
		return original
	}
	if original == nil {
		return fmt.Errorf("cleanup: %w", cleanup)
	}
	return fmt.Errorf("%w (cleanup also failed: %v)", original, cleanup)
}
