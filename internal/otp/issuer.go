package otp

import (
	"context"
	"fmt"
	"time"

	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/pkg/clock"
	"github.com/sirupsen/logrus"
)

const mailSubject = "CropIntel Verification Code"

// Issuer generates codes, stores them and emails them to the owner.
type Issuer struct {
	store           Store
	mailer          Mailer
	clock           clock.Clocker
	expiry          time.Duration
	deliveryTimeout time.Duration
	logger          *logrus.Logger
	generate        func() (string, error)
}

type IssuerDeps struct {
	Store           Store
	Mailer          Mailer
	Clock           clock.Clocker
	Expiry          time.Duration
	DeliveryTimeout time.Duration
	Logger          *logrus.Logger
}

func NewIssuer(deps IssuerDeps) *Issuer {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Expiry <= 0 {
		deps.Expiry = DefaultExpiry
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &Issuer{
		store:           deps.Store,
		mailer:          deps.Mailer,
		clock:           deps.Clock,
		expiry:          deps.Expiry,
		deliveryTimeout: deps.DeliveryTimeout,
		logger:          deps.Logger,
		generate:        Generate,
	}
}

// Issue replaces any pending code for email with a fresh one and sends it.
// Exactly one email is attempted per call. When delivery fails the record is
// kept and domain.ErrDeliveryFailed is returned.
func (i *Issuer) Issue(ctx context.Context, email string) error {
	code, err := i.generate()
	if err != nil {
		return err
	}
	if err := i.store.Put(ctx, Record{Email: email, Code: code, IssuedAt: i.clock.Now()}); err != nil {
		return err
	}

	sendCtx := ctx
	if i.deliveryTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, i.deliveryTimeout)
		defer cancel()
	}
	if err := i.mailer.SendEmail(sendCtx, email, mailSubject, i.body(code)); err != nil {
		i.logger.WithError(err).WithField("email", email).Error("otp delivery failed")
		return fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, err)
	}
	i.logger.WithField("email", email).Info("otp sent")
	return nil
}

func (i *Issuer) body(code string) string {
	return fmt.Sprintf(`Hello,

Your CropIntel verification code is: %s

This code expires in %d minutes.

If you didn't request this code, please ignore this email.

Thank you,
BitVerse Team
`, code, int(i.expiry.Minutes()))
}
