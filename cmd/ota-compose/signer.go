package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// externalSigner satisfies otazip.Signer by shelling out to the
// whole-package signing helper named on the command line (spec.md
// section 1: "the cryptographic signing primitive, consumed via a
// sign_whole_archive(key, passphrase) capability"). Invoked as
// `binary <archive> <key>`, with the passphrase passed on stdin rather
// than argv so it never appears in a process listing.
type externalSigner struct {
	binary string
}

func (s externalSigner) SignWholeArchive(ctx context.Context, archivePath, key, passphrase string) error {
	cmd := exec.CommandContext(ctx, s.binary, archivePath, key)
	cmd.Stdin = strings.NewReader(passphrase)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("sign_whole_archive: %s %s: %w: %s", s.binary, archivePath, err, out)
	}
	return nil
}

// envPassphraseSource reads the signing passphrase from an environment
// variable named OTA_PASSPHRASE_<KEY> (key upper-cased, each non-alnum
// character replaced by an underscore), keeping key material out of argv and out of
// this engine's own memory any longer than one lookup.
type envPassphraseSource struct{}

func (envPassphraseSource) RetrievePassphrase(_ context.Context, key string) (string, error) {
	name := "OTA_PASSPHRASE_" + envSafe(key)
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("passphrase environment variable %s is not set", name)
	}
	return value, nil
}

func envSafe(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
			out = append(out, r-('a'-'A'))
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
