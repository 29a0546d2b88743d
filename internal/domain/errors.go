package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)

// Bookstore-specific failures. Each wraps one of the generic sentinels above
// where a generic mapping exists, so errors.Is works against both.
var (
	ErrRateLimited           = errors.New("too many requests, try again later")
	ErrDuplicateRegistration = fmt.Errorf("duplicate registration: %w", ErrConflict)
	ErrTokenNotFound         = errors.New("invalid or already used verification token")
	ErrTokenExpired          = errors.New("verification token expired, please register again")
	ErrInsufficientStock     = fmt.Errorf("insufficient stock: %w", ErrConflict)
	ErrUpstream              = errors.New("upstream service unavailable")
)
