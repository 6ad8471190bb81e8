package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tagdesk/tagdesk/internal/model"
)

// ErrAccessPasswordNotFound is returned when no active password matches.
var ErrAccessPasswordNotFound = errors.New("access password not found")

// CreateAccessPassword inserts a hashed access password.
func (r *Repository) CreateAccessPassword(ctx context.Context, p *model.AccessPassword) error {
	query := `
		INSERT INTO wallet_access_passwords (id, name, password_hash, is_active, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.PasswordHash, p.IsActive, p.CreatedAt, p.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create access password: %w", err)
	}

	return nil
}

// ListAccessPasswords returns every access password, active ones first.
func (r *Repository) ListAccessPasswords(ctx context.Context) ([]model.AccessPassword, error) {
	query := `
		SELECT id, name, password_hash, is_active, created_at, expires_at
		FROM wallet_access_passwords
		ORDER BY is_active DESC, created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list access passwords: %w", err)
	}
	defer rows.Close()

	out := make([]model.AccessPassword, 0)
	for rows.Next() {
		var p model.AccessPassword
		if err := rows.Scan(&p.ID, &p.Name, &p.PasswordHash, &p.IsActive, &p.CreatedAt, &p.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan access password: %w", err)
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access passwords: %w", err)
	}

	return out, nil
}

// DeactivateAccessPassword soft-deletes an access password.
func (r *Repository) DeactivateAccessPassword(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE wallet_access_passwords SET is_active = FALSE WHERE id = $1 AND is_active`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate access password: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAccessPasswordNotFound
	}

	return nil
}

// GetAccessPasswordByID retrieves an access password.
func (r *Repository) GetAccessPasswordByID(ctx context.Context, id string) (*model.AccessPassword, error) {
	var p model.AccessPassword
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, password_hash, is_active, created_at, expires_at
		FROM wallet_access_passwords
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.PasswordHash, &p.IsActive, &p.CreatedAt, &p.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccessPasswordNotFound
		}
		return nil, fmt.Errorf("failed to get access password: %w", err)
	}
	return &p, nil
}
