package otp

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/pkg/clock"
)

// Validator checks submitted codes against the Store. It never deletes on its
// own; the owning flow consumes the record once its action has committed.
type Validator struct {
	store  Store
	clock  clock.Clocker
	expiry time.Duration
}

func NewValidator(store Store, clk clock.Clocker, expiry time.Duration) *Validator {
	if clk == nil {
		clk = clock.New()
	}
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Validator{store: store, clock: clk, expiry: expiry}
}

// Validate returns the live record when code matches. A record is expired
// only when strictly more than the expiry window has elapsed since issuance.
// Expired records are left in place.
func (v *Validator) Validate(ctx context.Context, email, code string) (*Record, error) {
	rec, err := v.Live(ctx, email)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return nil, domain.ErrOTPMismatch
	}
	return rec, nil
}

// Live returns the unexpired record for email without checking any code.
func (v *Validator) Live(ctx context.Context, email string) (*Record, error) {
	rec, err := v.store.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	if v.clock.Now().Sub(rec.IssuedAt) > v.expiry {
		return nil, domain.ErrOTPExpired
	}
	return rec, nil
}

// ExpiresAt is the last instant at which rec still validates.
func (v *Validator) ExpiresAt(rec *Record) time.Time {
	return rec.IssuedAt.Add(v.expiry)
}

// Consume deletes the record for email if it still holds code. A false result
// means a concurrent reissue replaced it, and the new code is left alone.
func (v *Validator) Consume(ctx context.Context, email, code string) (bool, error) {
	return v.store.CompareAndDelete(ctx, email, code)
}

