// Package directory is the boundary to the user/department directory owned by
// the surrounding intranet. The workflow engine only resolves ids through it.
package directory

import (
	"context"
	"strings"

	"intranet/internal/domain/apperr"
)

type Service struct {
	store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store}
}

// Resolve returns the user or an apperr.NotFoundError.
func (s *Service) Resolve(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, apperr.NotFound("user", userID)
	}
	return s.store.GetUser(ctx, userID)
}

func (s *Service) ListActive(ctx context.Context) ([]User, error) {
	return s.store.ListActiveUsers(ctx)
}

func (s *Service) Upsert(ctx context.Context, user User) error {
	user.ID = strings.TrimSpace(user.ID)
	user.Name = strings.TrimSpace(user.Name)
	if user.ID == "" {
		return apperr.Validation("id", "required")
	}
	if user.Name == "" {
		return apperr.Validation("name", "required")
	}
	return s.store.UpsertUser(ctx, user)
}
