package activity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tagdesk/tagdesk/internal/model"
)

func TestNewPayload_DefaultsAndTruncation(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	p := NewPayload(Event{
		Action: model.ActionAllocationCreated,
		Entity: model.EntityAllocations,
		Actor:  "admin",
		Detail: strings.Repeat("x", maxDetailLength+20),
	}, now)

	if p.OccurredAt != now.UnixMilli() {
		t.Errorf("OccurredAt = %d, want %d", p.OccurredAt, now.UnixMilli())
	}
	if len(p.Detail) != maxDetailLength {
		t.Errorf("Detail length = %d, want %d", len(p.Detail), maxDetailLength)
	}

	explicit := now.Add(-time.Hour)
	if got := NewPayload(Event{Action: "a", Actor: "b", OccurredAt: explicit}, now).OccurredAt; got != explicit.UnixMilli() {
		t.Errorf("explicit OccurredAt overwritten: %d", got)
	}
}

func TestValidatePayload(t *testing.T) {
	t.Parallel()

	valid := Payload{Action: model.ActionWalletTopUp, Entity: model.EntityTransactions, Actor: "admin", OccurredAt: 1}

	tests := []struct {
		name    string
		mutate  func(p *Payload)
		wantErr bool
	}{
		{"valid", func(p *Payload) {}, false},
		{"no entity", func(p *Payload) { p.Entity = "" }, false},
		{"missing action", func(p *Payload) { p.Action = "" }, true},
		{"unknown entity", func(p *Payload) { p.Entity = "links" }, true},
		{"missing actor", func(p *Payload) { p.Actor = "" }, true},
		{"zero time", func(p *Payload) { p.OccurredAt = 0 }, true},
		{"long subject", func(p *Payload) { p.Subject = strings.Repeat("s", maxSubjectLength+1) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			if err := ValidatePayload(p); (err != nil) != tt.wantErr {
				t.Errorf("ValidatePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeMessage(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	good, _ := json.Marshal(Payload{
		Action: model.ActionBulkDeletion, Entity: model.EntityAllocations,
		Subject: "deletions.xlsx", Actor: "ops", OccurredAt: at.UnixMilli(),
	})

	event, _, err := decodeMessage(redis.XMessage{ID: "1700-0", Values: map[string]any{"payload": string(good)}})
	if err != nil {
		t.Fatalf("decodeMessage() error = %v", err)
	}
	if event.EventID != "1700-0" || event.Subject != "deletions.xlsx" || !event.OccurredAt.Equal(at) {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.ID == "" {
		t.Error("event ID should be generated")
	}

	tests := []struct {
		name   string
		values map[string]any
		reason string
	}{
		{"missing payload", map[string]any{}, "invalid_format"},
		{"bad json", map[string]any{"payload": "{"}, "unmarshal_error"},
		{"invalid", map[string]any{"payload": `{"a":"x","t":1}`}, "validation_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, reason, err := decodeMessage(redis.XMessage{ID: "1-0", Values: tt.values})
			if err == nil || reason != tt.reason {
				t.Errorf("decodeMessage() = %q, %v; want reason %q", reason, err, tt.reason)
			}
		})
	}
}

func TestIsConsumerGroupExistsError(t *testing.T) {
	t.Parallel()

	if !isConsumerGroupExistsError(errors.New("BUSYGROUP Consumer Group name already exists")) {
		t.Error("BUSYGROUP should be recognized")
	}
	if isConsumerGroupExistsError(errors.New("ERR no such key")) || isConsumerGroupExistsError(nil) {
		t.Error("other errors should not be recognized")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	Discard.Record(context.Background(), Event{Action: "noop"})
}
