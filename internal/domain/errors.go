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
	// ErrPersistence means the backing store was unreachable or rejected a write.
	ErrPersistence = errors.New("persistence failed")
)

// Identity and OTP errors. Each wraps one of the classes above, so callers can
// match either the specific error or its class with errors.Is.
var (
	ErrOTPNotFound = fmt.Errorf("otp not found: %w", ErrNotFound)
	ErrOTPExpired  = fmt.Errorf("otp expired: %w", ErrUnauthorized)
	ErrOTPMismatch = fmt.Errorf("invalid otp: %w", ErrUnauthorized)

	ErrAlreadyRegistered = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrHandleTaken       = fmt.Errorf("user id already exists: %w", ErrConflict)
	ErrEmailTaken        = fmt.Errorf("email already exists: %w", ErrConflict)
	ErrAccountNotFound   = fmt.Errorf("no account found with this email: %w", ErrNotFound)

	ErrDeliveryFailed     = errors.New("failed to send email")
	ErrRegistrationFailed = fmt.Errorf("registration failed: %w", ErrPersistence)

	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrInvalidResetToken  = fmt.Errorf("invalid or expired reset token: %w", ErrUnauthorized)
)
