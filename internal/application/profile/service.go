package profile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cropintel-api/internal/domain"
	"github.com/cropintel-api/internal/pkg/clock"
	"github.com/cropintel-api/internal/pkg/validate"
)

type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	UpdateName(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error)
	SavePersonalization(ctx context.Context, userID string, in domain.PersonalizationInput) (*domain.Personalization, error)
	GetPersonalization(ctx context.Context, userID string) (*domain.Personalization, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	SetName(ctx context.Context, userID, name string) (*domain.User, error)
	SetPersonalization(ctx context.Context, userID string, p domain.Personalization) (*domain.User, error)
}

type service struct {
	repo  userStore
	clock clock.Clocker
}

func NewService(repo userStore, clk clock.Clocker) Service {
	if clk == nil {
		clk = clock.New()
	}
	return &service{repo: repo, clock: clk}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) UpdateName(ctx context.Context, userID string, req domain.UpdateProfileRequest) (*domain.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.repo.SetName(ctx, userID, req.Name)
}

func (s *service) SavePersonalization(ctx context.Context, userID string, in domain.PersonalizationInput) (*domain.Personalization, error) {
	in.Gender = strings.TrimSpace(in.Gender)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	p := domain.Personalization{
		Age:       *in.Age,
		Gender:    in.Gender,
		CropType:  strings.TrimSpace(in.CropType),
		Region:    strings.TrimSpace(in.Region),
		SoilType:  strings.TrimSpace(in.SoilType),
		UpdatedAt: s.clock.Now().Truncate(time.Second),
	}
	u, err := s.repo.SetPersonalization(ctx, userID, p)
	if err != nil {
		return nil, err
	}
	if u.Personalization == nil {
		return &p, nil
	}
	return u.Personalization, nil
}

// GetPersonalization returns ErrNotFound until the user has saved one.
func (s *service) GetPersonalization(ctx context.Context, userID string) (*domain.Personalization, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Personalization == nil {
		return nil, fmt.Errorf("personalization not found: %w", domain.ErrNotFound)
	}
	return u.Personalization, nil
}
