package errors

import (
	"errors"
	"fmt"
)

// Common error types for the DeepSight client
var (
	// Session errors
	ErrCSRFUnavailable   = errors.New("anti-forgery token unavailable")
	ErrAuthRequired      = errors.New("authentication required")
	ErrRefreshFailed     = errors.New("token refresh failed")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Token errors
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingExpiry = errors.New("token has no expiry claim")
	ErrTokenExpired  = errors.New("token expired")

	// Transport errors
	ErrTransport = errors.New("transport error")

	// Validation errors
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrWeakPassword     = errors.New("password is too weak")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissingField     = errors.New("required field missing")

	// Store errors
	ErrStoreUnavailable = errors.New("token store unavailable")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
