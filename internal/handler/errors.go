package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/service"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
)

// handleServiceError maps service and spreadsheet errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrAllocationNotFound):
		writeError(w, http.StatusNotFound, "ALLOCATION_NOT_FOUND", "Allocation not found")
	case errors.Is(err, service.ErrAccessPasswordNotFound):
		writeError(w, http.StatusNotFound, "ACCESS_PASSWORD_NOT_FOUND", "Access password not found or already inactive")
	case errors.Is(err, cache.ErrUnknownEntity):
		writeError(w, http.StatusNotFound, "UNKNOWN_ENTITY", err.Error())
	case errors.Is(err, service.ErrSerialExists):
		writeError(w, http.StatusConflict, "SERIAL_EXISTS", "Serial number already allocated")
	case errors.Is(err, service.ErrUnknownBCID):
		writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_BC_ID", err.Error())
	case errors.Is(err, service.ErrInvalidSerial):
		writeError(w, http.StatusBadRequest, "INVALID_SERIAL", "Invalid serial number")
	case errors.Is(err, service.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "INVALID_STATUS", "Status must be available, used or revoked")
	case errors.Is(err, service.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "INVALID_ROLE", "Role must be admin or agent")
	case errors.Is(err, service.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be greater than zero")
	case errors.Is(err, service.ErrInvalidAccessPassword):
		writeError(w, http.StatusForbidden, "INVALID_ACCESS_PASSWORD", "Invalid or expired access password")
	case errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", "Access password is too short")
	case errors.Is(err, service.ErrExpiresInPast):
		writeError(w, http.StatusUnprocessableEntity, "EXPIRES_IN_PAST", "Expiry date must be in the future")
	case errors.Is(err, service.ErrNoRows):
		writeError(w, http.StatusUnprocessableEntity, "NO_ROWS", "Spreadsheet has no data rows")
	case errors.Is(err, spreadsheet.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Spreadsheet must be .csv or .xlsx")
	case errors.Is(err, spreadsheet.ErrMissingColumn):
		writeError(w, http.StatusUnprocessableEntity, "MISSING_COLUMN", err.Error())
	case errors.Is(err, spreadsheet.ErrEmptySheet):
		writeError(w, http.StatusUnprocessableEntity, "EMPTY_SHEET", "Spreadsheet has no header row")
	case errors.Is(err, spreadsheet.ErrUnreadableSheet):
		writeError(w, http.StatusUnprocessableEntity, "UNREADABLE_SHEET", "Spreadsheet file could not be read")
	default:
		logError(logger, r, "internal_error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
