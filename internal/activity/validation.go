package activity

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tagdesk/tagdesk/internal/model"
)

const (
	maxActionLength  = 64
	maxSubjectLength = 200
	maxActorLength   = 100
	maxDetailLength  = 500
)

// ValidatePayload checks a decoded stream payload before it is persisted.
func ValidatePayload(p Payload) error {
	if p.Action == "" {
		return errors.New("action is required")
	}
	if len(p.Action) > maxActionLength {
		return errors.New("action too long")
	}
	if p.Entity != "" && !slices.Contains(model.CacheableEntities, p.Entity) {
		return fmt.Errorf("unknown entity %q", p.Entity)
	}
	if p.Actor == "" {
		return errors.New("actor is required")
	}
	if p.OccurredAt <= 0 {
		return errors.New("occurred_at must be set")
	}
	if len(p.Subject) > maxSubjectLength || len(p.Actor) > maxActorLength || len(p.Detail) > maxDetailLength {
		return errors.New("field too long")
	}
	return nil
}
