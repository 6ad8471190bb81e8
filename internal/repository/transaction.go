package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tagdesk/tagdesk/internal/model"
)

// ListTransactions returns every wallet transaction, newest first.
func (r *Repository) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, reference, performed_by, created_at
		FROM transactions
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]model.Transaction, 0)
	for rows.Next() {
		var t model.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Reference, &t.PerformedBy, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txns, nil
}

// TopUp credits a user's wallet and records the transaction atomically.
// It returns the new balance.
func (r *Repository) TopUp(ctx context.Context, txn *model.Transaction) (int64, error) {
	var balance int64

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE users SET wallet_balance = wallet_balance + $2 WHERE id = $1 RETURNING wallet_balance`,
			txn.UserID, txn.Amount,
		).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to credit wallet: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (id, user_id, type, amount, reference, performed_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			txn.ID,
			txn.UserID,
			txn.Type,
			txn.Amount,
			txn.Reference,
			txn.PerformedBy,
			txn.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}
