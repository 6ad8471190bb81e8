package service

import (
	"context"
	"log/slog"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
)

// CacheService exposes status and explicit clearing of the record cache.
type CacheService struct {
	registry *cache.Registry
	activity activity.Recorder
	logger   *slog.Logger
}

// NewCacheService creates a new CacheService.
func NewCacheService(registry *cache.Registry, recorder activity.Recorder, logger *slog.Logger) *CacheService {
	if recorder == nil {
		recorder = activity.Discard
	}
	return &CacheService{
		registry: registry,
		activity: recorder,
		logger:   orDiscardLogger(logger).With("component", "service.cache"),
	}
}

// Status reports every cached entity.
func (s *CacheService) Status() []cache.Status {
	return s.registry.Status()
}

// Clear invalidates one entity. Unknown names return cache.ErrUnknownEntity.
func (s *CacheService) Clear(ctx context.Context, entity, actor string) error {
	if err := s.registry.Invalidate(ctx, entity); err != nil {
		return err
	}
	s.cleared(ctx, entity, actor)
	return nil
}

// ClearAll invalidates every entity. Mirror failures are joined; memory is
// cleared regardless.
func (s *CacheService) ClearAll(ctx context.Context, actor string) error {
	err := s.registry.InvalidateAll(ctx)
	s.cleared(ctx, "", actor)
	return err
}

func (s *CacheService) cleared(ctx context.Context, entity, actor string) {
	s.logger.Info("cache cleared", "entity", entity, "actor", actor)

	subject := entity
	if subject == "" {
		subject = "all"
	}
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionCacheCleared,
		Entity:  entity,
		Subject: subject,
		Actor:   actor,
	})
}
