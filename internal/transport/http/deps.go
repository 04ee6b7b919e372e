package http

import (
	"context"
	"net/netip"

	"github.com/cropintel-api/internal/domain"
	jwtinfra "github.com/cropintel-api/internal/infrastructure/jwt"
	"github.com/cropintel-api/internal/otp"
	"github.com/cropintel-api/internal/pkg/clock"
	"github.com/sirupsen/logrus"
)

// UserRepository is the identity directory the router requires.
type UserRepository interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByHandle(ctx context.Context, handle string) (bool, error)
	FindByHandleOrEmail(ctx context.Context, identifier string) (*domain.User, error)
	Insert(ctx context.Context, u *domain.User) error
	UpdateCredential(ctx context.Context, email, passwordHash string) error
	SetName(ctx context.Context, userID, name string) (*domain.User, error)
	SetPersonalization(ctx context.Context, userID string, p domain.Personalization) (*domain.User, error)
}

// ChatSessionRepository is the chat history store the router requires.
type ChatSessionRepository interface {
	Upsert(ctx context.Context, userID string, in domain.ChatSessionInput) (*domain.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ChatSession, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo        UserRepository
	ChatSessionRepo ChatSessionRepository
	OTPStore        otp.Store
	Mailer          otp.Mailer
	JWTProvider     *jwtinfra.Provider
	Clock           clock.Clocker
	Logger          *logrus.Logger
	// Ping reports backing store reachability for /health. Optional.
	Ping func(ctx context.Context) error
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
}
