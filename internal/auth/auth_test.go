package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/tagdesk/tagdesk/internal/model"
)

// cheap keeps the suite fast; production uses DefaultParams.
var cheap = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

func TestHash_VerifyRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := cheap.Hash("wallet-secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("unexpected PHC string: %s", hash)
	}

	other, _ := cheap.Hash("wallet-secret")
	if other == hash {
		t.Error("two hashes of the same secret must use different salts")
	}

	tests := []struct {
		secret string
		want   bool
	}{
		{"wallet-secret", true},
		{"wallet-secreT", false},
		{"", false},
	}
	for _, tt := range tests {
		ok, err := VerifyPassword(tt.secret, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", tt.secret, err)
		}
		if ok != tt.want {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tt.secret, ok, tt.want)
		}
	}
}

func TestHashPassword_DefaultParams(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("td_live_abcdef_0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=4$") {
		t.Errorf("unexpected PHC string: %s", hash)
	}
}

func TestVerifyPassword_BadHashes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
		want error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt", "$2a$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"argon2i", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5", ErrInvalidHash},
		{"bad params", "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5", ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5", ErrInvalidHash},
		{"empty key", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$", ErrInvalidHash},
		{"old version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5", ErrIncompatibleVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := VerifyPassword("secret", tt.hash)
			if err != tt.want || ok {
				t.Errorf("VerifyPassword() = %v, %v; want false, %v", ok, err, tt.want)
			}
		})
	}
}

func TestQuickHash(t *testing.T) {
	t.Parallel()

	a, b := QuickHash("td_live_abc"), QuickHash("td_live_abd")
	if a != QuickHash("td_live_abc") {
		t.Error("QuickHash must be deterministic")
	}
	if a == b {
		t.Error("different inputs should not collide")
	}
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
}

func TestGenerateAPIKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env, wantPrefix string
	}{
		{EnvLive, "td_live_"},
		{EnvTest, "td_test_"},
		{"staging", "td_live_"},
	}

	for _, tt := range tests {
		key, err := GenerateAPIKey(tt.env)
		if err != nil {
			t.Fatalf("GenerateAPIKey(%q) error = %v", tt.env, err)
		}
		if !strings.HasPrefix(key.Plaintext, tt.wantPrefix) {
			t.Errorf("GenerateAPIKey(%q) = %s", tt.env, key.Plaintext)
		}
		if !ValidateKeyFormat(key.Plaintext) {
			t.Errorf("generated key fails its own format: %s", key.Plaintext)
		}

		parsed, err := ParseAPIKey(key.Plaintext)
		if err != nil || parsed.Prefix != key.Prefix || len(parsed.Secret) != KeySecretLen {
			t.Errorf("ParseAPIKey() = %+v, %v", parsed, err)
		}
		if ok, _ := VerifyPassword(key.Plaintext, key.Hash); !ok {
			t.Error("hash does not verify the plaintext key")
		}
	}
}

func TestParseAPIKey_Invalid(t *testing.T) {
	t.Parallel()

	for _, key := range []string{
		"",
		"pk_live_abcdef_0123456789abcdef0123456789abcdef",
		"td_prod_abcdef_0123456789abcdef0123456789abcdef",
		"td_live_ABCDEF_0123456789abcdef0123456789abcdef",
		"td_live_abcde_0123456789abcdef0123456789abcdef",
		"td_live_abcdef_0123456789abcdef",
		" td_live_abcdef_0123456789abcdef0123456789abcdef",
	} {
		if _, err := ParseAPIKey(key); err != ErrInvalidKeyFormat {
			t.Errorf("ParseAPIKey(%q) error = %v", key, err)
		}
	}
}

func TestAuthContext(t *testing.T) {
	ctx := context.Background()
	if AuthFromContext(ctx) != nil {
		t.Fatal("empty context should carry no caller")
	}

	caller := &model.AuthContext{KeyID: "K1", UserID: "U1"}
	if got := AuthFromContext(ContextWithAuth(ctx, caller)); got != caller {
		t.Errorf("AuthFromContext() = %+v", got)
	}
}
