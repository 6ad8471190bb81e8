package model

import "time"

// Activity actions recorded in the admin audit trail.
const (
	ActionAllocationCreated   = "allocation.created"
	ActionAllocationDeleted   = "allocation.deleted"
	ActionAllocationStatus    = "allocation.status_changed"
	ActionBulkAllocation      = "allocation.bulk_created"
	ActionBulkDeletion        = "allocation.bulk_deleted"
	ActionWalletTopUp         = "wallet.topup"
	ActionPasswordCreated     = "access_password.created"
	ActionPasswordDeactivated = "access_password.deactivated"
	ActionCacheCleared        = "cache.cleared"
)

// ActivityEvent is one admin action.
type ActivityEvent struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"` // Idempotency key (Redis stream ID)
	Action     string    `json:"action"`
	Entity     string    `json:"entity"`
	Subject    string    `json:"subject,omitempty"`
	Actor      string    `json:"actor"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
