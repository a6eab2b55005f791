package cli

import (
	"errors"
	"net/http"

	"github.com/roach88/cosmongo/internal/cosmos"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No fixture or scenario files found
	ErrCodeLoadFailed  = "E004" // CUE or YAML load failed
	ErrCodeNotFound    = "E005" // Path or item not found
	ErrCodeConfig      = "E006" // Configuration invalid
	ErrCodeBackend     = "E007" // Backend unreachable
	ErrCodeBadInput    = "E008" // Malformed document, parameter or patch
	ErrCodeConflict    = "E009" // Item id already exists
	ErrCodeCheckFailed = "E010" // Fixture or scenario mismatch
	ErrCodeWriteFailed = "E011" // File write error
)

// errorCode maps an adapter error to an error code.
func errorCode(err error) string {
	switch {
	case cosmos.IsConflict(err):
		return ErrCodeConflict
	case cosmos.IsNotFound(err):
		return ErrCodeNotFound
	case errors.Is(err, cosmos.ErrClosed):
		return ErrCodeBackend
	case cosmos.StatusCode(err) == http.StatusBadRequest:
		return ErrCodeBadInput
	default:
		return ErrCodeGeneric
	}
}

// reportError writes err through f and converts it to an ExitError.
// Failures the caller asked for (conflicts, missing items, rejected
// input) exit 1; anything else exits 2.
func reportError(f *OutputFormatter, message string, err error) error {
	code := errorCode(err)
	_ = f.Error(code, message+": "+err.Error(), nil)

	exit := ExitCommandError
	switch code {
	case ErrCodeConflict, ErrCodeNotFound, ErrCodeBadInput:
		exit = ExitFailure
	}
	return WrapExitError(exit, message, err)
}
