// Package common defines shared constants and sentinel errors used across
// the auth and user services. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"strings"
)

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Input errors, raised before any store is touched.
	ErrValidation = errors.New("validation error")

	// Authentication errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("account is not active")
	ErrInvalidToken       = errors.New("invalid token")

	// Infrastructure errors (backing store or directory unreachable).
	ErrUnavailable = errors.New("service unavailable")
	ErrInternal    = errors.New("internal error")
)

// Stable error codes exposed to API clients.
const (
	CodeValidation         = "VALIDATION"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInactive           = "INACTIVE"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// Code maps err onto one of the stable error codes. A nil error yields "".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrInvalidToken):
		return CodeInvalidToken
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrInactive):
		return CodeInactive
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// FromCode is the inverse of Code, used by clients that receive a code over
// the wire and want a sentinel back.
func FromCode(code string) error {
	switch code {
	case CodeValidation:
		return ErrValidation
	case CodeNotFound:
		return ErrNotFound
	case CodeAlreadyExists:
		return ErrAlreadyExists
	case CodeInvalidToken:
		return ErrInvalidToken
	case CodeInvalidCredentials:
		return ErrInvalidCredentials
	case CodeInactive:
		return ErrInactive
	case CodeUnavailable:
		return ErrUnavailable
	default:
		return ErrInternal
	}
}

// Detail returns the text following sentinel in err's message, so callers
// see "username is required" rather than the whole wrapping chain.
func Detail(err, sentinel error) string {
	s := err.Error()
	if i := strings.Index(s, sentinel.Error()); i >= 0 {
		if rest := strings.TrimPrefix(s[i+len(sentinel.Error()):], ": "); rest != "" {
			return rest
		}
	}
	if errors.Is(err, sentinel) {
		return sentinel.Error()
	}
	return s
}
