// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tagdesk/tagdesk/internal/migrations"
	"github.com/tagdesk/tagdesk/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 731001

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops every table and reapplies the embedded migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	src := migrations.FS()

	downs, err := migrationFiles(src, ".down.sql")
	if err != nil {
		return err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(downs)))
	for _, name := range downs {
		if err := execFile(ctx, pool, src, name); err != nil {
			return err
		}
	}

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}

	ups, err := migrationFiles(src, ".up.sql")
	if err != nil {
		return err
	}
	sort.Strings(ups)
	for _, name := range ups {
		if err := execFile(ctx, pool, src, name); err != nil {
			return err
		}
	}

	return nil
}

func migrationFiles(src fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(src, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func execFile(ctx context.Context, pool *pgxpool.Pool, src fs.FS, name string) error {
	sql, err := fs.ReadFile(src, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s: %w", name, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// InsertUser writes a user row directly, bypassing the repository.
func InsertUser(ctx context.Context, pool *pgxpool.Pool, user *model.User) error {
	var bcID any
	if user.BCID != "" {
		bcID = user.BCID
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO users (id, name, email, phone, bc_id, role, wallet_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.Name, user.Email, user.Phone, bcID, user.Role, user.WalletBalance, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates an agent with the given BC ID.
func NewTestUser(t testing.TB, bcID string) *model.User {
	t.Helper()
	id := ulid.Make().String()
	return &model.User{
		ID:        id,
		Name:      "Agent " + bcID,
		Email:     strings.ToLower(id) + "@example.com",
		Phone:     "9800000000",
		BCID:      bcID,
		Role:      model.RoleAgent,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestAllocation creates an available allocation for user.
func NewTestAllocation(t testing.TB, serial string, user *model.User) *model.AllocationRecord {
	t.Helper()
	return &model.AllocationRecord{
		ID:           ulid.Make().String(),
		SerialNumber: serial,
		BCID:         user.BCID,
		UserID:       user.ID,
		UserName:     user.Name,
		Status:       model.AllocationAvailable,
		AllocatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		AllocatedBy:  "test",
	}
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        userID,
		KeyHash:       fmt.Sprintf("hash-%d", now.UnixNano()),
		KeyPrefix:     "td_test_",
		Scopes:        []string{model.ScopeRead, model.ScopeWrite},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestAPIKeyWithTier creates a test API key with a specific tier.
func NewTestAPIKeyWithTier(t testing.TB, userID string, tier string) *model.APIKey {
	t.Helper()
	key := NewTestAPIKey(t, userID)
	key.RateLimitTier = tier
	return key
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
