package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
)

// UserService serves the user directory.
type UserService struct {
	users  *cache.Collection[model.User]
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users *cache.Collection[model.User], logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: orDiscardLogger(logger).With("component", "service.users"),
	}
}

// UserFilter narrows a user listing.
type UserFilter struct {
	Query string // matches name, email, phone or BC ID
	Role  string
}

// List returns cached users matching f.
func (s *UserService) List(ctx context.Context, f UserFilter) ([]model.User, error) {
	if f.Role != "" && !model.IsValidRole(f.Role) {
		return nil, ErrInvalidRole
	}

	users, err := s.users.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	out := make([]model.User, 0, len(users))
	for _, u := range users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if !matchesQuery(f.Query, u.Name, u.Email, u.Phone, u.BCID) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// Get returns one user from the cached set.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	users, err := s.users.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	for i := range users {
		if users[i].ID == id {
			u := users[i]
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}
