package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrNotParamsOwner     = errors.New("model does not expose its parameters")
	ErrOptimizerMismatch  = errors.New("optimizer does not match checkpoint")
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Type    string // e.g. "offset_overlap", "out_of_bounds"
	Entry   string
	Entry2  string // Second entry of an overlap.
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Entry2 != "" {
		return fmt.Sprintf("%s: entries %q and %q: %s", e.Type, e.Entry, e.Entry2, e.Details)
	}
	if e.Entry != "" {
		return fmt.Sprintf("%s: entry %q: %s", e.Type, e.Entry, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}
