// Package otp issues, stores and validates email one-time codes.
//
// A Store holds at most one pending Record per email. Issuing a new code for
// an email replaces the previous one. Validation is lazy: expired records are
// rejected when checked and are only removed by an explicit Delete, a
// CompareAndDelete after a successful flow commit, or an optional sweep.
//
// Pending codes live in process memory by default, so a restart invalidates
// every outstanding code and clients simply request a new one. RedisStore
// keeps them across restarts and replicas.
package otp

import (
	"context"
	"time"
)

// CodeLength is the number of decimal digits in every issued code.
const CodeLength = 6

// DefaultExpiry is how long an issued code stays valid.
const DefaultExpiry = 300 * time.Second

// Record is the pending code for one email address.
type Record struct {
	Email    string    `json:"email"`
	Code     string    `json:"code"`
	IssuedAt time.Time `json:"issued_at"`
}

// Store keeps one Record per email. Emails are keys as submitted, without
// case or whitespace normalization.
type Store interface {
	// Put replaces any existing record for rec.Email.
	Put(ctx context.Context, rec Record) error
	// Get returns domain.ErrOTPNotFound when no record exists.
	Get(ctx context.Context, email string) (*Record, error)
	// Delete removes the record if present. Absence is not an error.
	Delete(ctx context.Context, email string) error
	// CompareAndDelete removes the record only if its code still equals code,
	// and reports whether it did.
	CompareAndDelete(ctx context.Context, email, code string) (bool, error)
}

// Mailer delivers a plain-text email synchronously.
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}
