// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/tagdesk/tagdesk/internal/validate"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error  string                `json:"error"`
	Code   string                `json:"code"`
	Fields []validate.FieldError `json:"fields,omitempty"`
}

// ListResponse wraps a filtered listing.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// NewList builds a ListResponse, never with a null items array.
func NewList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Total: len(items)}
}

// AllocateRequest is the body of a manual allocation.
type AllocateRequest struct {
	SerialNumber string `json:"serial_number" validate:"required,serial"`
	BCID         string `json:"bc_id" validate:"required,max=64"`
}

// StatusChangeRequest moves an allocation to a new status.
type StatusChangeRequest struct {
	Status string `json:"status" validate:"required,allocstatus"`
}

// TopUpRequest credits a user's wallet.
type TopUpRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	Amount         int64  `json:"amount" validate:"gt=0"`
	Reference      string `json:"reference,omitempty" validate:"max=100"`
	AccessPassword string `json:"access_password" validate:"required"`
}

// CreateAccessPasswordRequest creates a wallet access password.
type CreateAccessPasswordRequest struct {
	Name      string     `json:"name" validate:"required,max=100"`
	Password  string     `json:"password" validate:"required,min=8,max=128"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// VerifyAccessPasswordRequest checks an access password.
type VerifyAccessPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// VerifyAccessPasswordResponse reports a successful verification.
type VerifyAccessPasswordResponse struct {
	Valid     bool       `json:"valid"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
