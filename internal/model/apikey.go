package model

import (
	"slices"
	"time"
)

// API key scopes. They form a ladder: admin includes write, write includes
// read.
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
	ScopeAdmin = "admin"
)

// ValidScopes lists the scopes from weakest to strongest.
var ValidScopes = []string{ScopeRead, ScopeWrite, ScopeAdmin}

// IsValidScope reports whether scope is a known scope.
func IsValidScope(scope string) bool {
	return slices.Contains(ValidScopes, scope)
}

// GrantsScope reports whether any of held reaches required on the ladder.
func GrantsScope(held []string, required string) bool {
	need := slices.Index(ValidScopes, required)
	if need < 0 {
		return false
	}
	for _, s := range held {
		if slices.Index(ValidScopes, s) >= need {
			return true
		}
	}
	return false
}

// Rate limit tiers for API keys.
const (
	TierFree      = "free"
	TierPro       = "pro"
	TierUnlimited = "unlimited"
)

// TierLimit is a token bucket size. A zero PerMinute means no limit.
type TierLimit struct {
	PerMinute int
	Burst     int
}

// Unlimited reports whether the tier skips rate limiting.
func (l TierLimit) Unlimited() bool { return l.PerMinute == 0 }

// Tiers maps tier names to their limits. Dashboard sessions poll list
// endpoints, so even the free tier allows a couple of requests per second.
var Tiers = map[string]TierLimit{
	TierFree:      {PerMinute: 120, Burst: 20},
	TierPro:       {PerMinute: 600, Burst: 50},
	TierUnlimited: {},
}

// LimitFor returns the limit of tier, falling back to the free tier.
func LimitFor(tier string) TierLimit {
	if l, ok := Tiers[tier]; ok {
		return l
	}
	return Tiers[TierFree]
}

// APIKey is a stored credential. Only the argon2id hash of the secret is kept.
type APIKey struct {
	ID            string
	UserID        string
	KeyHash       string
	KeyPrefix     string
	Scopes        []string
	RateLimitTier string
	Name          string
	RevokedAt     *time.Time
	LastUsedAt    *time.Time
	CreatedAt     time.Time
}

// IsRevoked reports whether the key was revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// HasScope reports whether the key grants scope.
func (k *APIKey) HasScope(scope string) bool {
	return GrantsScope(k.Scopes, scope)
}

// Caller builds the request identity for an authenticated key.
func (k *APIKey) Caller() *AuthContext {
	return &AuthContext{
		KeyID:         k.ID,
		KeyPrefix:     k.KeyPrefix,
		UserID:        k.UserID,
		Scopes:        k.Scopes,
		RateLimitTier: k.RateLimitTier,
	}
}

// View is the key as listed by the API, without its hash.
func (k *APIKey) View() APIKeyView {
	return APIKeyView{
		ID:            k.ID,
		Name:          k.Name,
		KeyPrefix:     k.KeyPrefix,
		Scopes:        k.Scopes,
		RateLimitTier: k.RateLimitTier,
		CreatedAt:     k.CreatedAt,
		LastUsedAt:    k.LastUsedAt,
		Revoked:       k.IsRevoked(),
	}
}

// AuthContext is the authenticated caller attached to a request.
type AuthContext struct {
	KeyID         string
	KeyPrefix     string
	UserID        string
	Scopes        []string
	RateLimitTier string
}

// HasScope reports whether the caller holds scope.
func (a *AuthContext) HasScope(scope string) bool {
	return GrantsScope(a.Scopes, scope)
}

// APIKeyCreateRequest is the body of POST /api/v1/api-keys.
type APIKeyCreateRequest struct {
	Name   string   `json:"name,omitempty" validate:"max=100"`
	Scopes []string `json:"scopes" validate:"dive,scope"`
}

// APIKeyView is the public form of an APIKey.
type APIKeyView struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	KeyPrefix     string     `json:"key_prefix"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	Revoked       bool       `json:"revoked"`
}

// IssuedAPIKey is returned once, when a key is created or rotated. It is the
// only response that carries the plaintext key.
type IssuedAPIKey struct {
	APIKeyView
	Key string `json:"key"`
}

// APIKeyRotation reports a rotation.
type APIKeyRotation struct {
	OldKeyID        string       `json:"old_key_id"`
	OldKeyRevokedAt time.Time    `json:"old_key_revoked_at"`
	NewKey          IssuedAPIKey `json:"new_key"`
}
