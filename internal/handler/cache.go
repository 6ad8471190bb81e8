package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tagdesk/tagdesk/internal/cache"
)

// CacheAdmin inspects and clears the record cache.
type CacheAdmin interface {
	Status() []cache.Status
	Clear(ctx context.Context, entity, actor string) error
	ClearAll(ctx context.Context, actor string) error
}

// CacheHandler serves the cache settings panel.
type CacheHandler struct {
	admin  CacheAdmin
	logger *slog.Logger
}

// NewCacheHandler creates a CacheHandler.
func NewCacheHandler(admin CacheAdmin, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{admin: admin, logger: logger}
}

// Status handles GET /api/v1/cache
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entities": h.admin.Status()})
}

// Clear handles DELETE /api/v1/cache/{entity}
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.Clear(r.Context(), chi.URLParam(r, "entity"), actor(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAll handles DELETE /api/v1/cache
func (h *CacheHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.ClearAll(r.Context(), actor(r)); err != nil {
		// Memory is already cleared; only the mirror lagged.
		h.logger.Warn("cache mirror not fully cleared", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
