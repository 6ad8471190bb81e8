package model

import "time"

// Transaction types.
const (
	TransactionTopUp = "topup"
)

// Transaction is a wallet movement for a user.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Amount      int64     `json:"amount"` // minor units (paise)
	Reference   string    `json:"reference,omitempty"`
	PerformedBy string    `json:"performed_by"`
	CreatedAt   time.Time `json:"created_at"`
}
