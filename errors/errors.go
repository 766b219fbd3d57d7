// Package errors holds the error kinds shared by every layer.
// Specific errors wrap exactly one kind so callers can classify them with Is.
package errors

import (
	"errors"
	"fmt"
)

// Kinds
var (
	ErrValidation   = fmt.Errorf("validation failed")
	ErrUpload       = fmt.Errorf("upload failed")
	ErrNotFound     = fmt.Errorf("not found")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrConflict     = fmt.Errorf("conflict")
)

// Validation
var (
	ErrInvalidIdentity   = fmt.Errorf("%w: invalid user ID format", ErrValidation)
	ErrEmptyMessage      = fmt.Errorf("%w: text or image is required", ErrValidation)
	ErrEmptySearchQuery  = fmt.Errorf("%w: search query is required", ErrValidation)
	ErrInvalidPassword   = fmt.Errorf("%w: password does not meet complexity rules", ErrValidation)
	ErrInvalidSignup     = fmt.Errorf("%w: invalid signup request", ErrValidation)
	ErrMissingProfilePic = fmt.Errorf("%w: profile pic is required", ErrValidation)
)

// Upload
var (
	ErrImageTooLarge      = fmt.Errorf("%w: image is too large", ErrUpload)
	ErrInvalidImageFormat = fmt.Errorf("%w: invalid image format", ErrUpload)
	ErrUploadTimeout      = fmt.Errorf("%w: upload timed out", ErrUpload)
)

// Not found
var (
	ErrUserNotFound  = fmt.Errorf("%w: user", ErrNotFound)
	ErrRouteNotFound = fmt.Errorf("%w: route", ErrNotFound)
)

// Auth
var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrMissingToken       = fmt.Errorf("%w: no token provided", ErrUnauthorized)
	ErrInvalidToken       = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrUserAlreadyExists  = fmt.Errorf("%w: email already exists", ErrConflict)
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Runtime
var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
	ErrSinkClosed  = fmt.Errorf("sink closed")
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
