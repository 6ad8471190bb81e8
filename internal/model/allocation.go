package model

import "time"

// AllocationStatus is the lifecycle state of an allocated FasTag.
type AllocationStatus string

const (
	AllocationAvailable AllocationStatus = "available"
	AllocationUsed      AllocationStatus = "used"
	AllocationRevoked   AllocationStatus = "revoked"
)

// IsValid checks if the status is one of the known values.
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationAvailable, AllocationUsed, AllocationRevoked:
		return true
	}
	return false
}

// AllocationRecord is a FasTag serial number allocated to a user.
// It is created on allocation and afterwards only changes status or is deleted.
type AllocationRecord struct {
	ID           string           `json:"id"`
	SerialNumber string           `json:"serial_number"`
	BCID         string           `json:"bc_id"`
	UserID       string           `json:"user_id"`
	UserName     string           `json:"user_name"`
	Status       AllocationStatus `json:"status"`
	AllocatedAt  time.Time        `json:"allocated_at"`
	AllocatedBy  string           `json:"allocated_by"`
}
