package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
)

// MinAccessPasswordLength is the shortest accepted access password.
const MinAccessPasswordLength = 8

// AccessPasswordStore is the persistence used by AccessPasswordService.
type AccessPasswordStore interface {
	CreateAccessPassword(ctx context.Context, p *model.AccessPassword) error
	DeactivateAccessPassword(ctx context.Context, id string) error
	ListAccessPasswords(ctx context.Context) ([]model.AccessPassword, error)
}

// AccessPasswordService manages the passwords that gate wallet operations.
type AccessPasswordService struct {
	store     AccessPasswordStore
	passwords *cache.Collection[model.AccessPassword]
	activity  activity.Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewAccessPasswordService creates a new AccessPasswordService.
func NewAccessPasswordService(store AccessPasswordStore, passwords *cache.Collection[model.AccessPassword], recorder activity.Recorder, logger *slog.Logger, clock func() time.Time) *AccessPasswordService {
	if recorder == nil {
		recorder = activity.Discard
	}
	return &AccessPasswordService{
		store:     store,
		passwords: passwords,
		activity:  recorder,
		logger:    orDiscardLogger(logger).With("component", "service.access_passwords"),
		now:       orNow(clock),
	}
}

// AccessPasswordView is an access password as displayed, with expiry
// evaluated at read time.
type AccessPasswordView struct {
	model.AccessPassword
	Expired bool `json:"expired"`
}

// CreateAccessPasswordInput defines input for creating an access password.
type CreateAccessPasswordInput struct {
	Name      string
	Password  string
	ExpiresAt *time.Time
	Actor     string
}

// Create stores a new active access password as an argon2id hash.
func (s *AccessPasswordService) Create(ctx context.Context, in CreateAccessPasswordInput) (*model.AccessPassword, error) {
	if len(in.Password) < MinAccessPasswordLength {
		return nil, ErrWeakPassword
	}
	now := s.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, ErrExpiresInPast
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash access password: %w", err)
	}

	p := &model.AccessPassword{
		ID:           ulid.Make().String(),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    in.ExpiresAt,
	}
	if err := s.store.CreateAccessPassword(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create access password: %w", err)
	}

	invalidate(ctx, s.logger, s.passwords)
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionPasswordCreated,
		Entity:  model.EntityAccessPasswords,
		Subject: p.Name,
		Actor:   in.Actor,
	})
	return p, nil
}

// List returns every access password, active ones first, newest first within
// each group.
func (s *AccessPasswordService) List(ctx context.Context) ([]AccessPasswordView, error) {
	passwords, err := s.passwords.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load access passwords: %w", err)
	}

	now := s.now()
	views := make([]AccessPasswordView, 0, len(passwords))
	for _, p := range passwords {
		views = append(views, AccessPasswordView{AccessPassword: p, Expired: p.IsExpiredAt(now)})
	}
	slices.SortStableFunc(views, func(a, b AccessPasswordView) int {
		if a.IsActive != b.IsActive {
			if a.IsActive {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return views, nil
}

// Deactivate soft-deletes an access password.
func (s *AccessPasswordService) Deactivate(ctx context.Context, id, actor string) error {
	if err := s.store.DeactivateAccessPassword(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAccessPasswordNotFound) {
			return ErrAccessPasswordNotFound
		}
		return fmt.Errorf("failed to deactivate access password: %w", err)
	}

	invalidate(ctx, s.logger, s.passwords)
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionPasswordDeactivated,
		Entity:  model.EntityAccessPasswords,
		Subject: id,
		Actor:   actor,
	})
	return nil
}

// Verify returns the usable access password matching password. It reads the
// store directly so a deactivation elsewhere takes effect immediately.
func (s *AccessPasswordService) Verify(ctx context.Context, password string) (*model.AccessPassword, error) {
	if password == "" {
		return nil, ErrInvalidAccessPassword
	}

	passwords, err := s.store.ListAccessPasswords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load access passwords: %w", err)
	}

	now := s.now()
	candidates := make([]model.AccessPassword, 0, len(passwords))
	for _, p := range passwords {
		if p.IsUsableAt(now) {
			candidates = append(candidates, p)
		}
	}
	slices.SortFunc(candidates, func(a, b model.AccessPassword) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	for i := range candidates {
		ok, err := auth.VerifyPassword(password, candidates[i].PasswordHash)
		if err != nil {
			s.logger.Warn("unreadable access password hash", "id", candidates[i].ID, "error", err)
			continue
		}
		if ok {
			return &candidates[i], nil
		}
	}
	return nil, ErrInvalidAccessPassword
}
