package model

import (
	"testing"
	"time"
)

func TestAccessPassword_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"no expiry", nil, false},
		{"expired", &past, true},
		{"expires exactly now", &now, true},
		{"not yet expired", &future, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &AccessPassword{IsActive: true, ExpiresAt: tt.expiresAt}
			if got := p.IsExpiredAt(now); got != tt.want {
				t.Errorf("IsExpiredAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAccessPassword_IsUsableAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)

	if (&AccessPassword{IsActive: false}).IsUsableAt(now) {
		t.Error("inactive password should not be usable")
	}
	if (&AccessPassword{IsActive: true, ExpiresAt: &past}).IsUsableAt(now) {
		t.Error("expired password should not be usable")
	}
	if !(&AccessPassword{IsActive: true}).IsUsableAt(now) {
		t.Error("active password without expiry should be usable")
	}
}

func TestAllocationStatus_IsValid(t *testing.T) {
	for _, s := range []AllocationStatus{AllocationAvailable, AllocationUsed, AllocationRevoked} {
		if !s.IsValid() {
			t.Errorf("%q should be valid", s)
		}
	}
	for _, s := range []AllocationStatus{"", "lost", "AVAILABLE"} {
		if s.IsValid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole(RoleAgent) || !IsValidRole(RoleAdmin) {
		t.Error("known roles should be valid")
	}
	if IsValidRole("superuser") {
		t.Error("unknown role should be invalid")
	}
}
