// Package otaerr defines the typed error kinds the composition engine can
// raise, per spec.md section 7. Errors are plain stdlib errors wrapped
// with fmt.Errorf("%w", ...); the corpus carries no third-party error
// library, so this follows its own idiom (see DESIGN.md).
package otaerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Use errors.Is against these to classify a returned
// error, e.g. errors.Is(err, otaerr.ErrSizeViolation).
var (
	ErrInputMalformed  = errors.New("input malformed")
	ErrConfigConflict  = errors.New("configuration conflict")
	ErrSizeViolation   = errors.New("size violation")
	ErrProgressUnderrun = errors.New("progress underrun")
	ErrExternal        = errors.New("external capability failure")
)

// InputMalformed wraps ErrInputMalformed with context: a missing required
// archive entry, an unparseable build.prop field, or an unresolved
// product_name_mapping entry.
func InputMalformed(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInputMalformed)
}

// ConfigConflict wraps ErrConfigConflict: a file listed in both
// require_verbatim and prohibit_verbatim, or a prohibit_verbatim file
// that would be sent verbatim.
func ConfigConflict(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConfigConflict)
}

// SizeViolation wraps ErrSizeViolation: check_size rejected an image blob
// against a declared partition limit.
func SizeViolation(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrSizeViolation)
}

// ProgressUnderrun wraps ErrProgressUnderrun: the post-emission check
// found cur_progress < 0.9 on a full OTA build.
func ProgressUnderrun(got float64) error {
	return fmt.Errorf("final progress %.4f < 0.9: %w", got, ErrProgressUnderrun)
}

// External wraps ErrExternal: a failure surfaced by the signing
// capability, the fs_config helper, or the binary-diff capability.
func External(source string, cause error) error {
	return fmt.Errorf("%s: %w: %w", source, cause, ErrExternal)
}
