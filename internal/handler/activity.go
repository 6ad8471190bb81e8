package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tagdesk/tagdesk/internal/handler/dto"
	"github.com/tagdesk/tagdesk/internal/model"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// ActivityReader lists recorded admin actions.
type ActivityReader interface {
	ListRecent(ctx context.Context, entity string, limit int) ([]model.ActivityEvent, error)
}

// ActivityHandler serves the admin activity log.
type ActivityHandler struct {
	reader ActivityReader
	logger *slog.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(reader ActivityReader, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{reader: reader, logger: logger}
}

// List handles GET /api/v1/activity?entity=&limit=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if raw := queryValue(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxActivityLimit {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	events, err := h.reader.ListRecent(r.Context(), queryValue(r, "entity"), limit)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(events))
}
