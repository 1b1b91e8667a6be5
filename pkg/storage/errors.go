package storage

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrConnFailed       = errors.New("connection failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("object not found")
	ErrTimeout          = errors.New("operation timeout")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrSizeMismatch     = errors.New("size mismatch")
)

// IsCritical returns true if the error will not go away on the next scheduled run
func IsCritical(err error) bool {
	return errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrPermissionDenied)
}

// WrapError adds context to an error
func WrapError(backend, operation string, err error) error {
	return fmt.Errorf("%s (%s): %w", operation, backend, err)
}
