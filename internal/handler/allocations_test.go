package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/service"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
)

// fakeAllocations records what the handler passed through.
type fakeAllocations struct {
	records    []model.AllocationRecord
	err        error
	bulkReport *service.BulkAllocationReport
	preview    *service.DeletionPreview
	delReport  *service.BulkDeletionReport

	gotFilter   service.AllocationFilter
	gotAllocate service.AllocateInput
	gotBulk     service.BulkAllocateInput
	gotDelRows  []spreadsheet.DeletionRow
	gotDelete   string
	gotStatus   model.AllocationStatus
}

func (f *fakeAllocations) List(_ context.Context, filter service.AllocationFilter) ([]model.AllocationRecord, error) {
	f.gotFilter = filter
	return f.records, f.err
}

func (f *fakeAllocations) Allocate(_ context.Context, in service.AllocateInput) (*model.AllocationRecord, error) {
	f.gotAllocate = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.AllocationRecord{SerialNumber: in.SerialNumber, BCID: in.BCID, Status: model.AllocationAvailable}, nil
}

func (f *fakeAllocations) Delete(_ context.Context, serial, _ string) error {
	f.gotDelete = serial
	return f.err
}

func (f *fakeAllocations) ChangeStatus(_ context.Context, serial string, status model.AllocationStatus, _ string) (*model.AllocationRecord, error) {
	f.gotStatus = status
	if f.err != nil {
		return nil, f.err
	}
	return &model.AllocationRecord{SerialNumber: serial, Status: status}, nil
}

func (f *fakeAllocations) Export(_ context.Context, w io.Writer, format spreadsheet.Format, filter service.AllocationFilter) error {
	f.gotFilter = filter
	if f.err != nil {
		return f.err
	}
	return spreadsheet.WriteAllocations(w, format, f.records)
}

func (f *fakeAllocations) BulkAllocate(_ context.Context, in service.BulkAllocateInput) (*service.BulkAllocationReport, error) {
	f.gotBulk = in
	return f.bulkReport, f.err
}

func (f *fakeAllocations) PreviewBulkDelete(_ context.Context, rows []spreadsheet.DeletionRow) (*service.DeletionPreview, error) {
	f.gotDelRows = rows
	return f.preview, f.err
}

func (f *fakeAllocations) BulkDelete(_ context.Context, in service.BulkDeleteInput) (*service.BulkDeletionReport, error) {
	f.gotDelRows = in.Rows
	return f.delReport, f.err
}

func allocationRouter(fake *fakeAllocations, maxUpload int64) http.Handler {
	h := NewAllocationHandler(fake, discardLogger(), maxUpload)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Get("/allocations", h.List)
	r.Post("/allocations", h.Create)
	r.Post("/allocations/bulk", h.BulkAllocate)
	r.Post("/allocations/bulk-delete/preview", h.PreviewBulkDelete)
	r.Post("/allocations/bulk-delete", h.BulkDelete)
	r.Get("/allocations/export", h.Export)
	r.Get("/allocations/templates/{kind}", h.Template)
	r.Delete("/allocations/{serial}", h.Delete)
	r.Patch("/allocations/{serial}/status", h.UpdateStatus)
	return r
}

func multipartUpload(t *testing.T, path, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAllocationHandler_ListPassesFilters(t *testing.T) {
	fake := &fakeAllocations{records: []model.AllocationRecord{{SerialNumber: "SN-0001"}}}
	rec := httptest.NewRecorder()
	allocationRouter(fake, 0).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/allocations?q=asha&status=used&user_id=U1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := service.AllocationFilter{Query: "asha", Status: model.AllocationUsed, UserID: "U1"}
	if fake.gotFilter != want {
		t.Errorf("filter = %+v, want %+v", fake.gotFilter, want)
	}

	var body struct {
		Items []model.AllocationRecord `json:"items"`
		Total int                      `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Total != 1 || body.Items[0].SerialNumber != "SN-0001" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestAllocationHandler_Create(t *testing.T) {
	fake := &fakeAllocations{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/allocations",
		strings.NewReader(`{"serial_number":"SN-0001","bc_id":"BC1"}`))
	allocationRouter(fake, 0).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if fake.gotAllocate.SerialNumber != "SN-0001" || fake.gotAllocate.BCID != "BC1" {
		t.Errorf("allocate input = %+v", fake.gotAllocate)
	}
	if fake.gotAllocate.Actor != "anonymous" {
		t.Errorf("actor = %q", fake.gotAllocate.Actor)
	}
}

func TestAllocationHandler_DeleteAndStatus(t *testing.T) {
	fake := &fakeAllocations{}
	router := allocationRouter(fake, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/allocations/SN-0009", nil))
	if rec.Code != http.StatusNoContent || fake.gotDelete != "SN-0009" {
		t.Errorf("delete: status = %d, serial = %q", rec.Code, fake.gotDelete)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/allocations/SN-0009/status",
		strings.NewReader(`{"status":"revoked"}`)))
	if rec.Code != http.StatusOK || fake.gotStatus != model.AllocationRevoked {
		t.Errorf("status change: code = %d, status = %q", rec.Code, fake.gotStatus)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/allocations/SN-0009/status",
		strings.NewReader(`{"status":"lost"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown status should fail validation, got %d", rec.Code)
	}

	fake.err = service.ErrAllocationNotFound
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/allocations/SN-0404", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing allocation: status = %d", rec.Code)
	}
}

func TestAllocationHandler_BulkAllocate(t *testing.T) {
	fake := &fakeAllocations{bulkReport: &service.BulkAllocationReport{Rows: 2, Committed: true, Succeeded: 2}}
	rec := httptest.NewRecorder()
	req := multipartUpload(t, "/allocations/bulk", "march.csv",
		"Serial Number,BC ID\nSN-0001,BC1\nSN-0002,BC2\n")

	allocationRouter(fake, 1<<20).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if fake.gotBulk.Source != "march.csv" || len(fake.gotBulk.Rows) != 2 {
		t.Errorf("bulk input = %+v", fake.gotBulk)
	}
	if fake.gotBulk.Rows[1] != (spreadsheet.AllocationRow{Row: 3, SerialNumber: "SN-0002", BCID: "BC2"}) {
		t.Errorf("row 2 = %+v", fake.gotBulk.Rows[1])
	}
}

func TestAllocationHandler_BulkAllocateRejected(t *testing.T) {
	fake := &fakeAllocations{
		bulkReport: &service.BulkAllocationReport{Rows: 1, UnknownBCIDs: []string{"BC9"}},
		err:        service.ErrBulkRejected,
	}
	rec := httptest.NewRecorder()
	req := multipartUpload(t, "/allocations/bulk", "march.csv", "Serial Number,BC ID\nSN-0001,BC9\n")

	allocationRouter(fake, 1<<20).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Code   string                       `json:"code"`
		Report service.BulkAllocationReport `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "BULK_REJECTED" || len(body.Report.UnknownBCIDs) != 1 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestAllocationHandler_UploadErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		maxSize  int64
		wantCode int
		wantErr  string
	}{
		{
			name: "unsupported extension",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "/allocations/bulk", "tags.ods", "x")
			},
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "UNSUPPORTED_FORMAT",
		},
		{
			name: "missing column",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "/allocations/bulk", "tags.csv", "Serial Number\nSN-0001\n")
			},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "MISSING_COLUMN",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/allocations/bulk", strings.NewReader("{}"))
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_UPLOAD",
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return multipartUpload(t, "/allocations/bulk", "tags.csv",
					"Serial Number,BC ID\n"+strings.Repeat("SN-0001,BC1\n", 200))
			},
			maxSize:  256,
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			allocationRouter(&fakeAllocations{}, tt.maxSize).ServeHTTP(rec, tt.req(t))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if body := decodeErrorBody(t, rec); body.Code != tt.wantErr {
				t.Errorf("code = %s, want %s", body.Code, tt.wantErr)
			}
		})
	}
}

func TestAllocationHandler_BulkDeleteFlow(t *testing.T) {
	fake := &fakeAllocations{
		preview: &service.DeletionPreview{
			Found:    []service.PreviewItem{{Row: 2, SerialNumber: "SN-0001"}},
			NotFound: []service.PreviewItem{{Row: 3, SerialNumber: "SN-0404"}},
		},
		delReport: &service.BulkDeletionReport{Requested: 2, Deleted: 1, NotFound: 1},
	}
	router := allocationRouter(fake, 1<<20)
	sheet := "Serial Number\nSN-0001\nSN-0404\n"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "/allocations/bulk-delete/preview", "del.csv", sheet))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d", rec.Code)
	}
	var preview service.DeletionPreview
	if err := json.NewDecoder(rec.Body).Decode(&preview); err != nil {
		t.Fatal(err)
	}
	if len(preview.Found) != 1 || len(preview.NotFound) != 1 {
		t.Errorf("preview = %+v", preview)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "/allocations/bulk-delete", "del.csv", sheet))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if len(fake.gotDelRows) != 2 {
		t.Errorf("rows passed = %+v", fake.gotDelRows)
	}
}

func TestAllocationHandler_ExportAndTemplate(t *testing.T) {
	fake := &fakeAllocations{records: []model.AllocationRecord{
		{SerialNumber: "000123", BCID: "BC1", Status: model.AllocationAvailable},
	}}
	router := allocationRouter(fake, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/allocations/export?status=available", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="allocations-20260301.csv"` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "000123") {
		t.Errorf("export body missing serial: %q", rec.Body)
	}
	if fake.gotFilter.Status != model.AllocationAvailable {
		t.Errorf("export filter = %+v", fake.gotFilter)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/allocations/templates/deletion?format=xlsx", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("template status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != spreadsheet.FormatXLSX.ContentType() {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, err := spreadsheet.ParseDeletions(rec.Body, spreadsheet.FormatXLSX); err != nil {
		t.Errorf("template should parse back: %v", err)
	}

	for _, path := range []string{"/allocations/templates/deletion?format=ods", "/allocations/export?format=pdf"} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/allocations/templates/users", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown template: status = %d", rec.Code)
	}
}
