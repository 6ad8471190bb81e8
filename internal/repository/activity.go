package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tagdesk/tagdesk/internal/model"
)

// ActivityRepository provides database access for the admin activity log.
type ActivityRepository struct {
	repo *Repository
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(repo *Repository) *ActivityRepository {
	return &ActivityRepository{repo: repo}
}

// BulkInsert inserts activity events. Replayed stream entries are ignored via
// the event_id unique constraint.
func (r *ActivityRepository) BulkInsert(ctx context.Context, events []*model.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	query := `
		INSERT INTO activity_log (id, event_id, action, entity, subject, actor, detail, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`

	for _, event := range events {
		batch.Queue(query,
			event.ID,
			event.EventID,
			event.Action,
			event.Entity,
			event.Subject,
			event.Actor,
			event.Detail,
			event.OccurredAt,
		)
	}

	results := r.repo.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(events); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert activity %d: %w", i, err)
		}
	}

	return nil
}

// ListRecent returns up to limit events, newest first, optionally filtered by
// entity.
func (r *ActivityRepository) ListRecent(ctx context.Context, entity string, limit int) ([]model.ActivityEvent, error) {
	query := `
		SELECT id, event_id, action, entity, subject, actor, detail, occurred_at
		FROM activity_log
		WHERE ($1::text = '' OR entity = $1::text)
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.repo.pool.Query(ctx, query, entity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	events := make([]model.ActivityEvent, 0)
	for rows.Next() {
		var e model.ActivityEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.Action, &e.Entity, &e.Subject, &e.Actor, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	return events, nil
}
