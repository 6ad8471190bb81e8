package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tagdesk/tagdesk/internal/model"
)

// Direct writes events straight to the activity log, skipping the stream.
// tagctl uses it since it runs without Redis.
type Direct struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewDirect creates a Direct recorder.
func NewDirect(repo Repository, logger *slog.Logger) *Direct {
	return &Direct{repo: repo, logger: logger, now: time.Now}
}

// Record inserts event synchronously. Failures are logged.
func (d *Direct) Record(ctx context.Context, event Event) {
	p := NewPayload(event, d.now())
	if err := ValidatePayload(p); err != nil {
		d.logger.Warn("dropping invalid activity event", "error", err, "action", event.Action)
		return
	}

	// The stream ID slot gets a ULID, which is unique the same way.
	id := ulid.Make().String()
	err := d.repo.BulkInsert(context.WithoutCancel(ctx), []*model.ActivityEvent{{
		ID:         id,
		EventID:    "direct-" + id,
		Action:     p.Action,
		Entity:     p.Entity,
		Subject:    p.Subject,
		Actor:      p.Actor,
		Detail:     p.Detail,
		OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
	}})
	if err != nil {
		d.logger.Warn("failed to record activity", "error", err, "action", event.Action)
	}
}
