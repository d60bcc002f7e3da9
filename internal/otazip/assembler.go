package otazip

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Assemble opens a temporary file in the same directory as outputPath,
// lets build populate it through a Writer, closes it, signs it, and
// renames it to outputPath on success. On any error the temporary file
// is removed unconditionally and no partial output is left at
// outputPath (spec.md section 7: "no partial output archive is
// produced").
func Assemble(ctx context.Context, outputPath string, signer Signer, passphrases PassphraseSource, signingKey string, build func(*Writer) error) (err error) {
	dir := filepath.Dir(outputPath)
	tmp, err := os.CreateTemp(dir, "ota-"+uuid.NewString()+".tmp")
	if err != nil {
		return fmt.Errorf("otazip: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = tmp.Close()
			removeErr := os.Remove(tmpPath)
			err = cleanupErr(err, removeErr)
		}
	}()

	w := NewWriter(tmp)
	if buildErr := build(w); buildErr != nil {
		err = fmt.Errorf("otazip: build archive: %w", buildErr)
		return err
	}
	if closeErr := w.Close(); closeErr != nil {
		err = fmt.Errorf("otazip: finalize archive: %w", closeErr)
		return err
	}
	if closeErr := tmp.Close(); closeErr != nil {
		err = fmt.Errorf("otazip: close temp file: %w", closeErr)
		return err
	}

	if signErr := SignWholePackage(ctx, signer, passphrases, tmpPath, signingKey); signErr != nil {
		err = signErr
		return err
	}

	if renameErr := os.Rename(tmpPath, outputPath); renameErr != nil {
		err = fmt.Errorf("otazip: rename to %q: %w", outputPath, renameErr)
		return err
	}
	return nil
}
