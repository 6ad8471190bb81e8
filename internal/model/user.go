// Package model defines domain entities for the application.
package model

import (
	"slices"
	"time"
)

// Role constants for dashboard users.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleAgent}

// IsValidRole reports whether role is a known role.
func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles, role)
}

// User is a dashboard account. Agents are resolved by BC ID when tags are
// allocated to them and carry a prepaid wallet.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	BCID          string    `json:"bc_id,omitempty"`
	Role          string    `json:"role"`
	WalletBalance int64     `json:"wallet_balance"` // minor units (paise)
	CreatedAt     time.Time `json:"created_at"`
}
