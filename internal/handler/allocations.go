package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tagdesk/tagdesk/internal/handler/dto"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/service"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
)

// AllocationOperations is the allocation inventory as the dashboard uses it.
type AllocationOperations interface {
	List(ctx context.Context, f service.AllocationFilter) ([]model.AllocationRecord, error)
	Allocate(ctx context.Context, in service.AllocateInput) (*model.AllocationRecord, error)
	Delete(ctx context.Context, serial, actor string) error
	ChangeStatus(ctx context.Context, serial string, status model.AllocationStatus, actor string) (*model.AllocationRecord, error)
	Export(ctx context.Context, w io.Writer, format spreadsheet.Format, f service.AllocationFilter) error
	BulkAllocate(ctx context.Context, in service.BulkAllocateInput) (*service.BulkAllocationReport, error)
	PreviewBulkDelete(ctx context.Context, rows []spreadsheet.DeletionRow) (*service.DeletionPreview, error)
	BulkDelete(ctx context.Context, in service.BulkDeleteInput) (*service.BulkDeletionReport, error)
}

// AllocationHandler serves allocated FasTags and the bulk upload flows.
type AllocationHandler struct {
	allocations   AllocationOperations
	logger        *slog.Logger
	maxUploadSize int64
	now           func() time.Time
}

// NewAllocationHandler creates an AllocationHandler. Uploads larger than
// maxUploadSize bytes are rejected.
func NewAllocationHandler(allocations AllocationOperations, logger *slog.Logger, maxUploadSize int64) *AllocationHandler {
	return &AllocationHandler{
		allocations:   allocations,
		logger:        logger,
		maxUploadSize: maxUploadSize,
		now:           time.Now,
	}
}

// rejectedResponse carries the validation report of a refused upload.
type rejectedResponse struct {
	dto.ErrorResponse
	Report any `json:"report"`
}

// List handles GET /api/v1/allocations?q=&status=&user_id=
func (h *AllocationHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.allocations.List(r.Context(), allocationFilter(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(records))
}

// Create handles POST /api/v1/allocations
func (h *AllocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.AllocateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	rec, err := h.allocations.Allocate(r.Context(), service.AllocateInput{
		SerialNumber: req.SerialNumber,
		BCID:         req.BCID,
		Actor:        actor(r),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// Delete handles DELETE /api/v1/allocations/{serial}
func (h *AllocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.allocations.Delete(r.Context(), chi.URLParam(r, "serial"), actor(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateStatus handles PATCH /api/v1/allocations/{serial}/status
func (h *AllocationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusChangeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeRequestError(w, err)
		return
	}

	rec, err := h.allocations.ChangeStatus(r.Context(), chi.URLParam(r, "serial"),
		model.AllocationStatus(req.Status), actor(r))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// BulkAllocate handles POST /api/v1/allocations/bulk (multipart field "file").
func (h *AllocationHandler) BulkAllocate(w http.ResponseWriter, r *http.Request) {
	file, name, format, ok := h.openUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rows, err := spreadsheet.ParseAllocations(file, format)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	report, err := h.allocations.BulkAllocate(r.Context(), service.BulkAllocateInput{
		Rows:   rows,
		Source: name,
		Actor:  actor(r),
	})
	if errors.Is(err, service.ErrBulkRejected) {
		writeJSON(w, http.StatusUnprocessableEntity, rejectedResponse{
			ErrorResponse: dto.ErrorResponse{
				Error: "spreadsheet rejected, nothing was allocated",
				Code:  "BULK_REJECTED",
			},
			Report: report,
		})
		return
	}
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("bulk allocation processed",
		"source", name,
		"rows", report.Rows,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)
	writeJSON(w, http.StatusOK, report)
}

// PreviewBulkDelete handles POST /api/v1/allocations/bulk-delete/preview.
// Nothing is deleted.
func (h *AllocationHandler) PreviewBulkDelete(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := h.deletionRows(w, r)
	if !ok {
		return
	}

	preview, err := h.allocations.PreviewBulkDelete(r.Context(), rows)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// BulkDelete handles POST /api/v1/allocations/bulk-delete.
func (h *AllocationHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	rows, name, ok := h.deletionRows(w, r)
	if !ok {
		return
	}

	report, err := h.allocations.BulkDelete(r.Context(), service.BulkDeleteInput{
		Rows:   rows,
		Source: name,
		Actor:  actor(r),
	})
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("bulk deletion processed",
		"source", name,
		"deleted", report.Deleted,
		"failed", report.Failed,
		"not_found", report.NotFound,
	)
	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /api/v1/allocations/export?format=csv|xlsx plus the
// listing filters.
func (h *AllocationHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, ok := formatParam(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.allocations.Export(r.Context(), &buf, format, allocationFilter(r)); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	name := fmt.Sprintf("allocations-%s%s", h.now().UTC().Format("20060102"), format.Extension())
	writeAttachment(w, format, name, buf.Bytes())
}

// Template handles GET /api/v1/allocations/templates/{kind}?format=csv|xlsx
func (h *AllocationHandler) Template(w http.ResponseWriter, r *http.Request) {
	format, ok := formatParam(w, r)
	if !ok {
		return
	}

	kind := spreadsheet.Kind(chi.URLParam(r, "kind"))
	if kind != spreadsheet.KindAllocation && kind != spreadsheet.KindDeletion {
		writeError(w, http.StatusNotFound, "UNKNOWN_TEMPLATE", "Template must be allocation or deletion")
		return
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteTemplate(&buf, format, kind); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}
	writeAttachment(w, format, string(kind)+"-template"+format.Extension(), buf.Bytes())
}

func (h *AllocationHandler) deletionRows(w http.ResponseWriter, r *http.Request) ([]spreadsheet.DeletionRow, string, bool) {
	file, name, format, ok := h.openUpload(w, r)
	if !ok {
		return nil, "", false
	}
	defer file.Close()

	rows, err := spreadsheet.ParseDeletions(file, format)
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return nil, "", false
	}
	return rows, name, true
}

// openUpload returns the multipart "file" part with its name and format.
func (h *AllocationHandler) openUpload(w http.ResponseWriter, r *http.Request) (multipart.File, string, spreadsheet.Format, bool) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, http.ErrMissingFile):
			writeError(w, http.StatusBadRequest, "MISSING_FILE", `Multipart field "file" is required`)
		default:
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Request must be multipart/form-data")
		}
		return nil, "", "", false
	}

	format, err := spreadsheet.FormatFromFilename(header.Filename)
	if err != nil {
		file.Close()
		handleServiceError(w, r, h.logger, err)
		return nil, "", "", false
	}
	return file, header.Filename, format, true
}

func allocationFilter(r *http.Request) service.AllocationFilter {
	return service.AllocationFilter{
		Query:  queryValue(r, "q"),
		Status: model.AllocationStatus(queryValue(r, "status")),
		UserID: queryValue(r, "user_id"),
	}
}

// formatParam reads ?format=, defaulting to CSV.
func formatParam(w http.ResponseWriter, r *http.Request) (spreadsheet.Format, bool) {
	raw := queryValue(r, "format")
	if raw == "" {
		return spreadsheet.FormatCSV, true
	}
	format, err := spreadsheet.ParseFormat(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "format must be csv or xlsx")
		return "", false
	}
	return format, true
}

func writeAttachment(w http.ResponseWriter, format spreadsheet.Format, name string, body []byte) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
