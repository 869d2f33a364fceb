package user

import (
	"context"
	"fmt"

	"github.com/forum-api/internal/domain"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldUsername = "username"
	fieldPhone    = "phone"
)

// Service covers the profile reads and writes that sit outside the
// authentication state machine. Status and password changes do not live
// here; those go through the auth service so the version checks and token
// revocations stay in one place.
type Service interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateVersioned(ctx context.Context, userID string, expectedVersion int64, updates map[string]interface{}) error
}

type service struct {
	repo userStore
}

type ServiceDeps struct {
	UserRepo userStore
}

func NewService(deps ServiceDeps) Service {
	return &service{repo: deps.UserRepo}
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Username != nil && *req.Username != u.Username {
		if _, err := s.repo.GetByUsername(ctx, *req.Username); err == nil {
			return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
		}
		updates[fieldUsername] = *req.Username
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if len(updates) == 0 {
		return u, nil
	}
	if err := s.repo.UpdateVersioned(ctx, userID, u.Version, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, userID)
}
