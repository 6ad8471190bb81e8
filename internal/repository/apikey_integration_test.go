//go:build integration

package repository

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/testutil"
)

func TestIntegrationAPIKeys_CreateAndGet(t *testing.T) {
	ctx, repo := newAPIKeyTestEnv(t)
	userID := seedUser(ctx, t, repo)

	tests := []struct {
		name   string
		tier   string
		scopes []string
	}{
		{"free read", model.TierFree, []string{model.ScopeRead}},
		{"pro write", model.TierPro, []string{model.ScopeRead, model.ScopeWrite}},
		{"unlimited admin", model.TierUnlimited, []string{model.ScopeAdmin}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := testutil.NewTestAPIKeyWithTier(t, userID, tt.tier)
			key.Scopes = tt.scopes
			if err := repo.CreateAPIKey(ctx, key); err != nil {
				t.Fatalf("CreateAPIKey() error = %v", err)
			}

			got, err := repo.GetAPIKeyByID(ctx, key.ID)
			if err != nil {
				t.Fatalf("GetAPIKeyByID() error = %v", err)
			}
			if got.UserID != userID || got.KeyHash != key.KeyHash || got.KeyPrefix != key.KeyPrefix {
				t.Errorf("stored key = %+v, want %+v", got, key)
			}
			if got.RateLimitTier != tt.tier {
				t.Errorf("tier = %q, want %q", got.RateLimitTier, tt.tier)
			}
			if !slices.Equal(got.Scopes, tt.scopes) {
				t.Errorf("scopes = %v, want %v", got.Scopes, tt.scopes)
			}
			if got.IsRevoked() || got.LastUsedAt != nil {
				t.Error("new key should be live and unused")
			}
		})
	}
}

func TestIntegrationAPIKeys_UnknownUser(t *testing.T) {
	ctx, repo := newAPIKeyTestEnv(t)

	err := repo.CreateAPIKey(ctx, testutil.NewTestAPIKey(t, "missing-user"))
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationAPIKeys_NotFound(t *testing.T) {
	ctx, repo := newAPIKeyTestEnv(t)

	if _, err := repo.GetAPIKeyByID(ctx, "nope"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("GetAPIKeyByID() error = %v, want ErrAPIKeyNotFound", err)
	}
	if err := repo.RevokeAPIKey(ctx, "nope"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("RevokeAPIKey() error = %v, want ErrAPIKeyNotFound", err)
	}
}

func TestIntegrationAPIKeys_RevokeHidesFromPrefixLookup(t *testing.T) {
	ctx, repo := newAPIKeyTestEnv(t)
	userID := seedUser(ctx, t, repo)

	live := testutil.NewTestAPIKey(t, userID)
	live.KeyPrefix = "td_live_a1b2c3"
	dead := testutil.NewTestAPIKey(t, userID)
	dead.KeyPrefix = live.KeyPrefix
	for _, k := range []*model.APIKey{live, dead} {
		if err := repo.CreateAPIKey(ctx, k); err != nil {
			t.Fatalf("CreateAPIKey() error = %v", err)
		}
	}

	if err := repo.RevokeAPIKey(ctx, dead.ID); err != nil {
		t.Fatalf("RevokeAPIKey() error = %v", err)
	}
	if err := repo.RevokeAPIKey(ctx, dead.ID); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("second revoke error = %v, want ErrAPIKeyNotFound", err)
	}

	candidates, err := repo.GetAPIKeysByPrefix(ctx, live.KeyPrefix)
	if err != nil {
		t.Fatalf("GetAPIKeysByPrefix() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != live.ID {
		t.Fatalf("candidates = %+v, want only %s", candidates, live.ID)
	}

	revoked, err := repo.GetAPIKeyByID(ctx, dead.ID)
	if err != nil {
		t.Fatalf("GetAPIKeyByID() error = %v", err)
	}
	if !revoked.IsRevoked() {
		t.Error("revoked key should carry revoked_at")
	}
}

func TestIntegrationAPIKeys_ListByUser(t *testing.T) {
	ctx, repo := newAPIKeyTestEnv(t)
	owner := seedUser(ctx, t, repo)
	other := seedUser(ctx, t, repo)

	for range 3 {
		if err := repo.CreateAPIKey(ctx, testutil.NewTestAPIKey(t, owner)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.CreateAPIKey(ctx, testutil.NewTestAPIKey(t, other)); err != nil {
		t.Fatal(err)
	}

	keys, err := repo.ListAPIKeysByUserID(ctx, owner)
	if err != nil {
		t.Fatalf("ListAPIKeysByUserID() error = %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i].CreatedAt.After(keys[i-1].CreatedAt) {
			t.Errorf("keys not newest first at %d", i)
		}
	}

	empty, err := repo.ListAPIKeysByUserID(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("ListAPIKeysByUserID(nobody) = %v, %v", empty, err)
	}
}

func TestIntegrationAPIKeys_UpdateLastUsed(t *testing.T) {
	ctx, repo := newAPIKeyTestEnv(t)
	key := testutil.NewTestAPIKey(t, seedUser(ctx, t, repo))
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		t.Fatal(err)
	}

	if err := repo.UpdateAPIKeyLastUsed(ctx, key.ID); err != nil {
		t.Fatalf("UpdateAPIKeyLastUsed() error = %v", err)
	}
	got, err := repo.GetAPIKeyByID(ctx, key.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastUsedAt == nil {
		t.Fatal("last_used_at not set")
	}
}

func newAPIKeyTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	repo, err := New(ctx, testutil.RequireEnv(t, "DATABASE_URL"))
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	return ctx, repo
}

func seedUser(ctx context.Context, t *testing.T, repo *Repository) string {
	t.Helper()
	user := testutil.NewTestUser(t, testutil.UniqueID("BC"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user.ID
}
