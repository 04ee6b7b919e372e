package chat

import (
	"context"
	"strings"

	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/pkg/validate"
)

type Service interface {
	Save(ctx context.Context, userID string, req domain.SaveChatSessionRequest) (*domain.ChatSession, error)
	List(ctx context.Context, userID string) ([]domain.ChatSession, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

type sessionStore interface {
	Upsert(ctx context.Context, userID string, in domain.ChatSessionInput) (*domain.ChatSession, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ChatSession, error)
	Delete(ctx context.Context, userID, sessionID string) error
}

type service struct {
	repo sessionStore
}

func NewService(repo sessionStore) Service {
	return &service{repo: repo}
}

func (s *service) Save(ctx context.Context, userID string, req domain.SaveChatSessionRequest) (*domain.ChatSession, error) {
	req.Session.SessionID = strings.TrimSpace(req.Session.SessionID)
	req.Session.Title = strings.TrimSpace(req.Session.Title)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, userID, req.Session)
}

func (s *service) List(ctx context.Context, userID string) ([]domain.ChatSession, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID, sessionID string) error {
	return s.repo.Delete(ctx, userID, sessionID)
}
