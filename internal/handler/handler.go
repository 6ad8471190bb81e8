// Package handler provides HTTP request handlers for the admin API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tagdesk/tagdesk/internal/auth"
	"github.com/tagdesk/tagdesk/internal/handler/dto"
	"github.com/tagdesk/tagdesk/internal/validate"
)

// Version is reported by the index endpoint.
const Version = "0.1.0"

// Handler serves the unauthenticated root routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Index describes the service.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "tagdesk",
		"version": Version,
	})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

var errInvalidJSON = errors.New("invalid request body")

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
// Unknown fields are rejected.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return validate.Struct(dst)
}

// writeRequestError answers a decodeAndValidate failure.
func writeRequestError(w http.ResponseWriter, err error) {
	var fields validate.Errors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:  "request validation failed",
			Code:   "VALIDATION_FAILED",
			Fields: fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
}

// actor names who performed a request, for audit fields.
func actor(r *http.Request) string {
	if a := auth.AuthFromContext(r.Context()); a != nil {
		if a.UserID != "" {
			return a.UserID
		}
		return "key:" + a.KeyPrefix
	}
	return "anonymous"
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// logError logs an unexpected error with its request path.
func logError(logger *slog.Logger, r *http.Request, msg string, err error) {
	logger.Error(msg,
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
	)
}
