package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
)

type memoryKeyStore struct {
	keys map[string]*model.APIKey
}

func (s *memoryKeyStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.keys[key.ID] = key
	return nil
}

func (s *memoryKeyStore) GetAPIKeyByID(_ context.Context, id string) (*model.APIKey, error) {
	key, ok := s.keys[id]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	return key, nil
}

func (s *memoryKeyStore) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	var out []*model.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *memoryKeyStore) RevokeAPIKey(_ context.Context, id string) error {
	now := time.Now()
	s.keys[id].RevokedAt = &now
	return nil
}

type recordingRevoker struct {
	keyIDs []string
}

func (r *recordingRevoker) RevokeAuthContexts(_ context.Context, keyID string) error {
	r.keyIDs = append(r.keyIDs, keyID)
	return nil
}

func apiKeyRouter(store *memoryKeyStore, revoker AuthRevoker, authCtx *model.AuthContext) http.Handler {
	h := NewAPIKeyHandler(discardLogger(), store, revoker)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), authCtx))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/api-keys", h.List)
	r.Post("/api-keys", h.Create)
	r.Delete("/api-keys/{keyID}", h.Revoke)
	r.Post("/api-keys/{keyID}/rotate", h.Rotate)
	return r
}

func TestAPIKeyHandler_Create(t *testing.T) {
	writer := &model.AuthContext{UserID: "U1", Scopes: []string{model.ScopeRead, model.ScopeWrite}, RateLimitTier: model.TierPro}

	tests := []struct {
		name     string
		authCtx  *model.AuthContext
		body     string
		wantCode int
	}{
		{"default scope", writer, `{"name":"ops"}`, http.StatusCreated},
		{"unknown scope", writer, `{"scopes":["billing"]}`, http.StatusUnprocessableEntity},
		{"escalation", writer, `{"scopes":["admin"]}`, http.StatusForbidden},
		{"unauthenticated", nil, `{}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memoryKeyStore{keys: map[string]*model.APIKey{}}
			rec := httptest.NewRecorder()
			apiKeyRouter(store, nil, tt.authCtx).ServeHTTP(rec,
				httptest.NewRequest(http.MethodPost, "/api-keys", strings.NewReader(tt.body)))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if tt.wantCode != http.StatusCreated {
				return
			}

			var resp model.IssuedAPIKey
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if !auth.ValidateKeyFormat(resp.Key) {
				t.Errorf("invalid key format: %q", resp.Key)
			}
			stored := store.keys[resp.ID]
			if stored == nil || stored.RateLimitTier != model.TierPro || !stored.HasScope(model.ScopeRead) {
				t.Errorf("stored key = %+v", stored)
			}
		})
	}
}

func TestAPIKeyHandler_RotateAndRevoke(t *testing.T) {
	store := &memoryKeyStore{keys: map[string]*model.APIKey{
		"K1": {ID: "K1", UserID: "U1", Scopes: []string{model.ScopeRead}, RateLimitTier: model.TierFree},
		"K2": {ID: "K2", UserID: "U2", Scopes: []string{model.ScopeRead}},
	}}
	revoker := &recordingRevoker{}
	router := apiKeyRouter(store, revoker, &model.AuthContext{UserID: "U1", Scopes: []string{model.ScopeAdmin}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api-keys/K1/rotate", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("rotate status = %d: %s", rec.Code, rec.Body)
	}
	if !store.keys["K1"].IsRevoked() {
		t.Error("old key should be revoked after rotation")
	}
	if len(revoker.keyIDs) != 1 || revoker.keyIDs[0] != "K1" {
		t.Errorf("cached auth dropped for %v, want [K1]", revoker.keyIDs)
	}

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/api-keys/K1", http.StatusNotFound}, // already revoked
		{"/api-keys/K2", http.StatusNotFound}, // another user's key
		{"/api-keys/K404", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("DELETE %s: status = %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
	}
	if store.keys["K2"].IsRevoked() {
		t.Error("foreign key must not be revoked")
	}
}
