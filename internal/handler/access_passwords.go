package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tagdesk/tagdesk/internal/handler/dto"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/service"
)

// AccessPasswordOperations manages wallet access passwords.
type AccessPasswordOperations interface {
	Create(ctx context.Context, in service.CreateAccessPasswordInput) (*model.AccessPassword, error)
	List(ctx context.Context) ([]service.AccessPasswordView, error)
	Deactivate(ctx context.Context, id, actor string) error
	Verify(ctx context.Context, password string) (*model.AccessPassword, error)
}

// AccessPasswordHandler serves wallet access password management.
type AccessPasswordHandler struct {
	passwords AccessPasswordOperations
	logger    *slog.Logger
}

// NewAccessPasswordHandler creates an AccessPasswordHandler.
func NewAccessPasswordHandler(passwords AccessPasswordOperations, logger *slog.Logger) *AccessPasswordHandler {
	return &AccessPasswordHandler{passwords: passwords, logger: logger}
}

// List handles GET /api/v1/access-passwords
func (h *AccessPasswordHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.passwords.List(r.Context())
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(views))
}

// Create handles POST /api/v1/access-passwords
func (h *AccessPasswordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccessPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	p, err := h.passwords.Create(r.Context(), service.CreateAccessPasswordInput{
		Name:      req.Name,
		Password:  req.Password,
		ExpiresAt: req.ExpiresAt,
		Actor:     actor(r),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Deactivate handles DELETE /api/v1/access-passwords/{id}
func (h *AccessPasswordHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.passwords.Deactivate(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify handles POST /api/v1/access-passwords/verify
func (h *AccessPasswordHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyAccessPasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	p, err := h.passwords.Verify(r.Context(), req.Password)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyAccessPasswordResponse{
		Valid:     true,
		Name:      p.Name,
		ExpiresAt: p.ExpiresAt,
	})
}
