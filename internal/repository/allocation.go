package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/tagdesk/tagdesk/internal/model"
)

// Common errors for allocation repository operations.
var (
	ErrAllocationNotFound = errors.New("allocation not found")
	ErrSerialExists       = errors.New("serial number already allocated")
)

const allocationSelect = `
	SELECT a.id, a.serial_number, a.bc_id, a.user_id, COALESCE(u.name, ''),
	       a.status, a.allocated_at, a.allocated_by
	FROM allocated_fastags a
	LEFT JOIN users u ON u.id = a.user_id
`

// CreateAllocation inserts one allocation record.
func (r *Repository) CreateAllocation(ctx context.Context, rec *model.AllocationRecord) error {
	query := `
		INSERT INTO allocated_fastags (id, serial_number, bc_id, user_id, status, allocated_at, allocated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.SerialNumber,
		rec.BCID,
		rec.UserID,
		rec.Status,
		rec.AllocatedAt,
		rec.AllocatedBy,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSerialExists
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create allocation: %w", err)
	}

	return nil
}

// ListAllocations returns every allocation, most recent first.
func (r *Repository) ListAllocations(ctx context.Context) ([]model.AllocationRecord, error) {
	query := allocationSelect + ` ORDER BY a.allocated_at DESC, a.serial_number`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	return collectAllocations(rows)
}

// GetAllocationBySerial retrieves an allocation by serial number.
func (r *Repository) GetAllocationBySerial(ctx context.Context, serial string) (*model.AllocationRecord, error) {
	query := allocationSelect + ` WHERE a.serial_number = $1`
	return scanAllocation(r.pool.QueryRow(ctx, query, serial))
}

// GetAllocationsBySerials returns the allocations matching serials, keyed by
// serial number.
func (r *Repository) GetAllocationsBySerials(ctx context.Context, serials []string) (map[string]*model.AllocationRecord, error) {
	out := make(map[string]*model.AllocationRecord, len(serials))
	if len(serials) == 0 {
		return out, nil
	}

	query := allocationSelect + ` WHERE a.serial_number = ANY($1)`

	rows, err := r.pool.Query(ctx, query, pq.Array(serials))
	if err != nil {
		return nil, fmt.Errorf("failed to look up serials: %w", err)
	}
	defer rows.Close()

	records, err := collectAllocations(rows)
	if err != nil {
		return nil, err
	}
	for i := range records {
		out[records[i].SerialNumber] = &records[i]
	}

	return out, nil
}

// DeleteAllocationBySerial removes an allocation.
func (r *Repository) DeleteAllocationBySerial(ctx context.Context, serial string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM allocated_fastags WHERE serial_number = $1`, serial)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAllocationNotFound
	}

	return nil
}

// UpdateAllocationStatus sets the status of an allocation and returns it.
func (r *Repository) UpdateAllocationStatus(ctx context.Context, serial string, status model.AllocationStatus) (*model.AllocationRecord, error) {
	query := `
		UPDATE allocated_fastags
		SET status = $2
		WHERE serial_number = $1
	`

	result, err := r.pool.Exec(ctx, query, serial, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update allocation status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrAllocationNotFound
	}

	return r.GetAllocationBySerial(ctx, serial)
}

func collectAllocations(rows pgx.Rows) ([]model.AllocationRecord, error) {
	records := make([]model.AllocationRecord, 0)
	for rows.Next() {
		rec, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}

	return records, nil
}

func scanAllocation(row pgx.Row) (*model.AllocationRecord, error) {
	var rec model.AllocationRecord
	err := row.Scan(
		&rec.ID,
		&rec.SerialNumber,
		&rec.BCID,
		&rec.UserID,
		&rec.UserName,
		&rec.Status,
		&rec.AllocatedAt,
		&rec.AllocatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAllocationNotFound
		}
		return nil, fmt.Errorf("failed to scan allocation: %w", err)
	}
	return &rec, nil
}
