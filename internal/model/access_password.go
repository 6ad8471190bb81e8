package model

import "time"

// AccessPassword gates wallet operations. Expiry is advisory: it is checked
// when a password is displayed or used, never swept in the background.
type AccessPassword struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"` // Never serialize
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// IsExpiredAt reports whether the password has passed its expiry at now.
func (p *AccessPassword) IsExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// IsUsableAt reports whether the password is active and unexpired at now.
func (p *AccessPassword) IsUsableAt(now time.Time) bool {
	return p.IsActive && !p.IsExpiredAt(now)
}
