package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/otp"
	"github.com/cropintel-api/internal/pkg/clock"
	"github.com/cropintel-api/internal/pkg/id"
	"github.com/cropintel-api/internal/pkg/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	RequestRegistrationOTP(ctx context.Context, email string) error
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error)
	RequestPasswordResetOTP(ctx context.Context, email string) error
	VerifyResetOTP(ctx context.Context, req domain.VerifyOTPRequest) (resetToken string, err error)
	ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error
	Login(ctx context.Context, req domain.LoginRequest) (token string, u *domain.User, err error)
}

type directory interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByHandle(ctx context.Context, handle string) (bool, error)
	FindByHandleOrEmail(ctx context.Context, identifier string) (*domain.User, error)
	Insert(ctx context.Context, u *domain.User) error
	UpdateCredential(ctx context.Context, email, passwordHash string) error
}

type otpIssuer interface {
	Issue(ctx context.Context, email string) error
}

type otpValidator interface {
	Validate(ctx context.Context, email, code string) (*otp.Record, error)
	Live(ctx context.Context, email string) (*otp.Record, error)
	ExpiresAt(rec *otp.Record) time.Time
	Consume(ctx context.Context, email, code string) (bool, error)
}

type tokenProvider interface {
	Sign(userID, handle, email string) (string, error)
	SignReset(email string, nonce int64, notAfter time.Time) (string, error)
	VerifyReset(token string) (email string, nonce int64, err error)
}

type service struct {
	users      directory
	issuer     otpIssuer
	validator  otpValidator
	tokens     tokenProvider
	clock      clock.Clocker
	bcryptCost int
	logger     *logrus.Logger
}

type ServiceDeps struct {
	Users      directory
	Issuer     otpIssuer
	Validator  otpValidator
	Tokens     tokenProvider
	Clock      clock.Clocker
	BcryptCost int
	Logger     *logrus.Logger
}

func NewService(deps ServiceDeps) Service {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.BcryptCost == 0 {
		deps.BcryptCost = bcrypt.DefaultCost
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	return &service{
		users:      deps.Users,
		issuer:     deps.Issuer,
		validator:  deps.Validator,
		tokens:     deps.Tokens,
		clock:      deps.Clock,
		bcryptCost: deps.BcryptCost,
		logger:     deps.Logger,
	}
}

// RequestRegistrationOTP sends a code to an email that has no account yet.
func (s *service) RequestRegistrationOTP(ctx context.Context, email string) error {
	if err := validate.Struct(domain.EmailRequest{Email: email}); err != nil {
		return err
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrAlreadyRegistered
	}
	return s.issuer.Issue(ctx, email)
}

// Register creates the account once the code for req.Email checks out. The
// code is consumed only after the insert succeeds; on any failure it stays
// usable until it expires.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Handle = strings.TrimSpace(req.Handle)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.validator.Validate(ctx, req.Email, req.OTP); err != nil {
		return nil, err
	}

	taken, err := s.users.ExistsByHandle(ctx, req.Handle)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrHandleTaken
	}
	taken, err = s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.clock.Now()
	u := &domain.User{
		UserID:       id.New(),
		Handle:       req.Handle,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		s.logger.WithError(err).WithField("email", req.Email).Error("insert user failed")
		return nil, domain.ErrRegistrationFailed
	}

	s.consume(ctx, req.Email, req.OTP)
	s.logger.WithFields(logrus.Fields{"user_id": u.UserID, "handle": u.Handle}).Info("user registered")
	return u, nil
}

// RequestPasswordResetOTP sends a code to an email that belongs to an account.
func (s *service) RequestPasswordResetOTP(ctx context.Context, email string) error {
	if err := validate.Struct(domain.EmailRequest{Email: email}); err != nil {
		return err
	}
	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrAccountNotFound
	}
	return s.issuer.Issue(ctx, email)
}

// VerifyResetOTP checks the code without consuming it and returns a reset
// token bound to this exact issuance. The token never outlives the code.
func (s *service) VerifyResetOTP(ctx context.Context, req domain.VerifyOTPRequest) (string, error) {
	if err := validate.Struct(req); err != nil {
		return "", err
	}
	rec, err := s.validator.Validate(ctx, req.Email, req.OTP)
	if err != nil {
		return "", err
	}
	return s.tokens.SignReset(req.Email, rec.IssuedAt.UnixNano(), s.validator.ExpiresAt(rec))
}

// ResetPassword commits a new password. The caller proves possession of the
// current code either by resubmitting it or with the token from VerifyResetOTP.
// The code is claimed before the credential is written, so each proof commits
// at most once. A failed write leaves the code spent and the client requests a
// new one.
func (s *service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}

	var code string
	switch {
	case req.OTP != "":
		if _, err := s.validator.Validate(ctx, req.Email, req.OTP); err != nil {
			return err
		}
		code = req.OTP
	case req.ResetToken != "":
		rec, err := s.checkResetToken(ctx, req.Email, req.ResetToken)
		if err != nil {
			return err
		}
		code = rec.Code
	default:
		return fmt.Errorf("otp or reset_token is required: %w", domain.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	claimed, err := s.validator.Consume(ctx, req.Email, code)
	if err != nil {
		return err
	}
	if !claimed {
		if req.OTP == "" {
			return domain.ErrInvalidResetToken
		}
		return fmt.Errorf("code already used or replaced: %w", domain.ErrOTPNotFound)
	}

	if err := s.users.UpdateCredential(ctx, req.Email, string(hash)); err != nil {
		s.logger.WithError(err).WithField("email", req.Email).Warn("credential update failed after otp was claimed")
		return err
	}
	s.logger.WithField("email", req.Email).Info("password reset")
	return nil
}

// checkResetToken accepts a token only while the code it was issued for is
// still the live one for email.
func (s *service) checkResetToken(ctx context.Context, email, token string) (*otp.Record, error) {
	subject, nonce, err := s.tokens.VerifyReset(token)
	if err != nil || subject != email {
		return nil, domain.ErrInvalidResetToken
	}
	rec, err := s.validator.Live(ctx, email)
	switch {
	case errors.Is(err, domain.ErrOTPNotFound), errors.Is(err, domain.ErrOTPExpired):
		return nil, domain.ErrInvalidResetToken
	case err != nil:
		return nil, err
	}
	if rec.IssuedAt.UnixNano() != nonce {
		return nil, domain.ErrInvalidResetToken
	}
	return rec, nil
}

// Login accepts a handle or an email as identifier.
func (s *service) Login(ctx context.Context, req domain.LoginRequest) (string, *domain.User, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := validate.Struct(req); err != nil {
		return "", nil, err
	}
	u, err := s.users.FindByHandleOrEmail(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	token, err := s.tokens.Sign(u.UserID, u.Handle, u.Email)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *service) consume(ctx context.Context, email, code string) {
	ok, err := s.validator.Consume(ctx, email, code)
	switch {
	case err != nil:
		s.logger.WithError(err).WithField("email", email).Warn("failed to consume otp")
	case !ok:
		s.logger.WithField("email", email).Info("otp replaced before consumption; keeping newer code")
	}
}
