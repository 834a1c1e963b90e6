package document

import (
	"errors"
	"fmt"
)

// Error kinds shared by every engine operation. Callers classify failures with
// errors.Is; the wrapping message carries the detail.
var (
	// ErrInvalidInput is returned for unreadable, corrupt or empty documents.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidParameter is returned for out-of-range settings or malformed
	// boundaries.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrIO is returned when directories or output files cannot be written.
	ErrIO = errors.New("i/o error")
)

// InvalidInputf wraps ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidParameterf wraps ErrInvalidParameter with a formatted message.
func InvalidParameterf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// IOErrorf wraps ErrIO and the underlying cause.
func IOErrorf(cause error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, fmt.Sprintf(format, args...), cause)
}
