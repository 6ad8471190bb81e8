package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/handler/dto"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
)

// APIKeyStore persists admin API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// AuthRevoker drops cached callers for a revoked key.
type AuthRevoker interface {
	RevokeAuthContexts(ctx context.Context, keyID string) error
}

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	logger  *slog.Logger
	store   APIKeyStore
	revoker AuthRevoker
	now     func() time.Time
}

// NewAPIKeyHandler creates a new APIKeyHandler. revoker may be nil, in which
// case a revoked key stays usable until its cached auth context expires.
func NewAPIKeyHandler(logger *slog.Logger, store APIKeyStore, revoker AuthRevoker) *APIKeyHandler {
	return &APIKeyHandler{
		logger:  logger,
		store:   store,
		revoker: revoker,
		now:     time.Now,
	}
}

// Create handles POST /api/v1/api-keys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx := auth.AuthFromContext(ctx)
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req model.APIKeyCreateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	if len(req.Scopes) == 0 {
		req.Scopes = []string{model.ScopeRead}
	}
	// A key never grants more than the key that created it.
	for _, scope := range req.Scopes {
		if !authCtx.HasScope(scope) {
			writeError(w, http.StatusForbidden, "SCOPE_ESCALATION", "Cannot grant scope: "+scope)
			return
		}
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	key := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        authCtx.UserID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        req.Scopes,
		RateLimitTier: authCtx.RateLimitTier,
		Name:          req.Name,
		CreatedAt:     h.now(),
	}
	if key.RateLimitTier == "" {
		key.RateLimitTier = model.TierFree
	}

	if err := h.store.CreateAPIKey(ctx, key); err != nil {
		h.logger.Error("failed to create API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		"key_id", key.ID,
		"key_prefix", key.KeyPrefix,
		"user_id", key.UserID,
	)

	writeJSON(w, http.StatusCreated, model.IssuedAPIKey{APIKeyView: key.View(), Key: generated.Plaintext})
}

// List handles GET /api/v1/api-keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keys, err := h.store.ListAPIKeysByUserID(r.Context(), authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list API keys", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys")
		return
	}

	views := make([]model.APIKeyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, key.View())
	}
	writeJSON(w, http.StatusOK, dto.NewList(views))
}

// Revoke handles DELETE /api/v1/api-keys/{keyID}
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	authCtx, key, ok := h.ownedKey(w, r)
	if !ok {
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), key.ID); err != nil {
		h.logger.Error("failed to revoke API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke API key")
		return
	}
	h.forget(r.Context(), key.ID)

	h.logger.Info("API key revoked",
		"key_id", key.ID,
		"user_id", authCtx.UserID,
	)
	w.WriteHeader(http.StatusNoContent)
}

// Rotate handles POST /api/v1/api-keys/{keyID}/rotate
func (h *APIKeyHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	authCtx, oldKey, ok := h.ownedKey(w, r)
	if !ok {
		return
	}

	generated, err := auth.GenerateAPIKey(auth.EnvLive)
	if err != nil {
		h.logger.Error("failed to generate API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate API key")
		return
	}

	now := h.now()
	newKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        oldKey.UserID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        oldKey.Scopes,
		RateLimitTier: oldKey.RateLimitTier,
		Name:          oldKey.Name,
		CreatedAt:     now,
	}

	// The replacement must exist before the old key stops working.
	if err := h.store.CreateAPIKey(r.Context(), newKey); err != nil {
		h.logger.Error("failed to create rotated API key", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to rotate API key")
		return
	}
	if err := h.store.RevokeAPIKey(r.Context(), oldKey.ID); err != nil {
		h.logger.Error("failed to revoke old API key during rotation", "error", err, "key_id", oldKey.ID)
	} else {
		h.forget(r.Context(), oldKey.ID)
	}

	h.logger.Info("API key rotated",
		"old_key_id", oldKey.ID,
		"new_key_id", newKey.ID,
		"user_id", authCtx.UserID,
	)

	writeJSON(w, http.StatusCreated, model.APIKeyRotation{
		OldKeyID:        oldKey.ID,
		OldKeyRevokedAt: now,
		NewKey:          model.IssuedAPIKey{APIKeyView: newKey.View(), Key: generated.Plaintext},
	})
}

// ownedKey loads the path key and checks it belongs to the caller. Missing,
// foreign and revoked keys all answer 404.
func (h *APIKeyHandler) ownedKey(w http.ResponseWriter, r *http.Request) (*model.AuthContext, *model.APIKey, bool) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return nil, nil, false
	}

	keyID := chi.URLParam(r, "keyID")
	key, err := h.store.GetAPIKeyByID(r.Context(), keyID)
	if err != nil {
		if !errors.Is(err, repository.ErrAPIKeyNotFound) {
			h.logger.Error("failed to load API key", "error", err, "key_id", keyID)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load API key")
			return nil, nil, false
		}
		key = nil
	}
	if key == nil || key.UserID != authCtx.UserID || key.IsRevoked() {
		writeError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
		return nil, nil, false
	}
	return authCtx, key, true
}

func (h *APIKeyHandler) forget(ctx context.Context, keyID string) {
	if h.revoker == nil {
		return
	}
	if err := h.revoker.RevokeAuthContexts(ctx, keyID); err != nil {
		h.logger.Warn("failed to drop cached auth for revoked key", "error", err, "key_id", keyID)
	}
}
