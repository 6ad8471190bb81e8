// Package activity records admin actions on a Redis stream and persists them
// to the activity log in the background.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tagdesk/tagdesk/internal/metrics"
)

const (
	// StreamKey is the Redis stream for activity events.
	StreamKey = "tagdesk:stream:activity"

	// DeadLetterStreamKey holds messages that could not be decoded.
	DeadLetterStreamKey = "tagdesk:stream:activity:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout bounds a single asynchronous publish.
	PublishTimeout = 250 * time.Millisecond
)

// Event is one admin action as handed to a Recorder.
type Event struct {
	Action     string
	Entity     string
	Subject    string
	Actor      string
	Detail     string
	OccurredAt time.Time
}

// Recorder accepts activity events. Recording never fails the caller.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(context.Context, Event) {}

// Payload is the compact stream encoding of an Event.
type Payload struct {
	Action     string `json:"a"`
	Entity     string `json:"e"`
	Subject    string `json:"s,omitempty"`
	Actor      string `json:"u"`
	Detail     string `json:"d,omitempty"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// NewPayload encodes event, defaulting OccurredAt to now and truncating the
// free-text fields.
func NewPayload(event Event, now time.Time) Payload {
	at := event.OccurredAt
	if at.IsZero() {
		at = now
	}
	return Payload{
		Action:     event.Action,
		Entity:     event.Entity,
		Subject:    truncate(event.Subject, maxSubjectLength),
		Actor:      truncate(event.Actor, maxActorLength),
		Detail:     truncate(event.Detail, maxDetailLength),
		OccurredAt: at.UnixMilli(),
	}
}

// Publisher enqueues activity events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewPublisher creates a new activity publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Publish adds an event to the stream synchronously and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, event Event) (string, error) {
	data, err := json.Marshal(NewPayload(event, p.now()))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{"payload": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return id, nil
}

// Record publishes without blocking the caller. Failures are logged and
// counted as dropped. The request context only contributes its values.
func (p *Publisher) Record(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now()
	}
	ctx = context.WithoutCancel(ctx)

	go func() {
		ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish activity event",
				"action", event.Action,
				"error", err,
			)
			p.metrics.IncActivityEventPublished("dropped")
			return
		}

		p.logger.Debug("activity event published",
			"action", event.Action,
			"stream_id", streamID,
		)
		p.metrics.IncActivityEventPublished("success")
	}()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
