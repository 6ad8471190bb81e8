package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
	"github.com/tagdesk/tagdesk/internal/validate"
)

// Row problem reasons.
const (
	ReasonMissingSerial   = "missing serial number"
	ReasonMissingBCID     = "missing BC ID"
	ReasonInvalidSerial   = "invalid serial number"
	ReasonDuplicateSerial = "duplicate serial number in file"
	ReasonUnknownBCID     = "unknown BC ID"
)

// RowIssue is a problem tied to one spreadsheet row.
type RowIssue struct {
	Row          int    `json:"row"`
	SerialNumber string `json:"serial_number,omitempty"`
	BCID         string `json:"bc_id,omitempty"`
	Reason       string `json:"reason"`
}

// BulkAllocateInput is a parsed allocation sheet.
type BulkAllocateInput struct {
	Rows   []spreadsheet.AllocationRow
	Source string // uploaded file name
	Actor  string
}

// BulkAllocationReport summarizes a bulk allocation. When Committed is false
// nothing was written and Issues explains why.
type BulkAllocationReport struct {
	Rows         int        `json:"rows"`
	Committed    bool       `json:"committed"`
	Succeeded    int        `json:"succeeded"`
	Failed       int        `json:"failed"`
	UnknownBCIDs []string   `json:"unknown_bc_ids,omitempty"`
	Issues       []RowIssue `json:"issues,omitempty"`
	Failures     []RowIssue `json:"failures,omitempty"`
}

// BulkAllocate validates every row, resolves all BC IDs in one lookup and,
// only if every row is usable, inserts the rows one by one. Rows are not
// atomic: a failed insert is counted and the run continues.
func (s *AllocationService) BulkAllocate(ctx context.Context, in BulkAllocateInput) (*BulkAllocationReport, error) {
	if len(in.Rows) == 0 {
		return nil, ErrNoRows
	}

	report := &BulkAllocationReport{Rows: len(in.Rows)}

	seen := make(map[string]int, len(in.Rows))
	var bcIDs []string
	for _, row := range in.Rows {
		switch {
		case row.SerialNumber == "":
			report.Issues = append(report.Issues, rowIssue(row, ReasonMissingSerial))
		case row.BCID == "":
			report.Issues = append(report.Issues, rowIssue(row, ReasonMissingBCID))
		case !validate.Serial(row.SerialNumber):
			report.Issues = append(report.Issues, rowIssue(row, ReasonInvalidSerial))
		}
		if row.SerialNumber != "" {
			if first, dup := seen[row.SerialNumber]; dup {
				issue := rowIssue(row, ReasonDuplicateSerial)
				issue.Reason = fmt.Sprintf("%s (first seen in row %d)", ReasonDuplicateSerial, first)
				report.Issues = append(report.Issues, issue)
			} else {
				seen[row.SerialNumber] = row.Row
			}
		}
		if row.BCID != "" && !slices.Contains(bcIDs, row.BCID) {
			bcIDs = append(bcIDs, row.BCID)
		}
	}

	users := map[string]*model.User{}
	if len(bcIDs) > 0 {
		var err error
		users, err = s.store.GetUsersByBCIDs(ctx, bcIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve BC IDs: %w", err)
		}
	}
	for _, row := range in.Rows {
		if row.BCID == "" {
			continue
		}
		if _, ok := users[row.BCID]; !ok {
			report.Issues = append(report.Issues, rowIssue(row, ReasonUnknownBCID))
			if !slices.Contains(report.UnknownBCIDs, row.BCID) {
				report.UnknownBCIDs = append(report.UnknownBCIDs, row.BCID)
			}
		}
	}

	if len(report.Issues) > 0 {
		slices.SortStableFunc(report.Issues, func(a, b RowIssue) int { return a.Row - b.Row })
		slices.Sort(report.UnknownBCIDs)
		return report, fmt.Errorf("%w: %d problem(s) found", ErrBulkRejected, len(report.Issues))
	}

	report.Committed = true
	var runErr error
	for i, row := range in.Rows {
		if err := ctx.Err(); err != nil {
			for _, rest := range in.Rows[i:] {
				report.Failures = append(report.Failures, rowIssue(rest, err.Error()))
			}
			report.Failed += len(in.Rows) - i
			runErr = err
			break
		}

		rec := s.newRecord(row.SerialNumber, users[row.BCID], in.Actor)
		if err := s.store.CreateAllocation(ctx, rec); err != nil {
			err = mapAllocationError(err)
			if !errors.Is(err, ErrSerialExists) {
				s.logger.Warn("bulk allocation row failed",
					"row", row.Row,
					"serial_number", row.SerialNumber,
					"error", err,
				)
			}
			report.Failed++
			report.Failures = append(report.Failures, rowIssue(row, err.Error()))
			continue
		}
		report.Succeeded++
		s.metrics.IncAllocationCreated("bulk")
	}

	if report.Succeeded > 0 {
		invalidate(ctx, s.logger, s.allocations)
	}
	s.metrics.ObserveBulkRun("allocate", report.Succeeded, report.Failed)
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionBulkAllocation,
		Entity:  model.EntityAllocations,
		Subject: in.Source,
		Actor:   in.Actor,
		Detail:  fmt.Sprintf("rows=%d succeeded=%d failed=%d", report.Rows, report.Succeeded, report.Failed),
	})
	s.logger.Info("bulk allocation finished",
		"source", in.Source,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)

	return report, runErr
}

// PreviewItem is one serial number of a deletion sheet.
type PreviewItem struct {
	Row          int                    `json:"row"`
	SerialNumber string                 `json:"serial_number"`
	BCID         string                 `json:"bc_id,omitempty"`
	UserName     string                 `json:"user_name,omitempty"`
	Status       model.AllocationStatus `json:"status,omitempty"`
}

// DeletionPreview classifies each serial number of a deletion sheet.
type DeletionPreview struct {
	Found    []PreviewItem `json:"found"`
	NotFound []PreviewItem `json:"not_found"`
	Issues   []RowIssue    `json:"issues,omitempty"`
}

// PreviewBulkDelete looks up every serial number in one query and reports
// which exist. Nothing is deleted. Repeated serials are reported once as
// issues and classified on their first occurrence.
func (s *AllocationService) PreviewBulkDelete(ctx context.Context, rows []spreadsheet.DeletionRow) (*DeletionPreview, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	preview := &DeletionPreview{Found: []PreviewItem{}, NotFound: []PreviewItem{}}
	unique := make([]spreadsheet.DeletionRow, 0, len(rows))
	serials := make([]string, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for _, row := range rows {
		if row.SerialNumber == "" {
			preview.Issues = append(preview.Issues, RowIssue{Row: row.Row, Reason: ReasonMissingSerial})
			continue
		}
		if first, dup := seen[row.SerialNumber]; dup {
			preview.Issues = append(preview.Issues, RowIssue{
				Row:          row.Row,
				SerialNumber: row.SerialNumber,
				Reason:       fmt.Sprintf("%s (first seen in row %d)", ReasonDuplicateSerial, first),
			})
			continue
		}
		seen[row.SerialNumber] = row.Row
		unique = append(unique, row)
		serials = append(serials, row.SerialNumber)
	}

	existing := map[string]*model.AllocationRecord{}
	if len(serials) > 0 {
		var err error
		existing, err = s.store.GetAllocationsBySerials(ctx, serials)
		if err != nil {
			return nil, fmt.Errorf("failed to look up serial numbers: %w", err)
		}
	}

	for _, row := range unique {
		item := PreviewItem{Row: row.Row, SerialNumber: row.SerialNumber}
		rec, ok := existing[row.SerialNumber]
		if !ok {
			preview.NotFound = append(preview.NotFound, item)
			continue
		}
		item.BCID = rec.BCID
		item.UserName = rec.UserName
		item.Status = rec.Status
		preview.Found = append(preview.Found, item)
	}

	return preview, nil
}

// BulkDeleteInput is a parsed deletion sheet.
type BulkDeleteInput struct {
	Rows   []spreadsheet.DeletionRow
	Source string
	Actor  string
}

// BulkDeletionReport summarizes a bulk deletion.
type BulkDeletionReport struct {
	Requested int        `json:"requested"`
	Deleted   int        `json:"deleted"`
	Failed    int        `json:"failed"`
	NotFound  int        `json:"not_found"`
	Failures  []RowIssue `json:"failures,omitempty"`
}

// BulkDelete previews the sheet and deletes every found serial concurrently,
// in no particular order. Failures do not stop or roll back other deletes.
func (s *AllocationService) BulkDelete(ctx context.Context, in BulkDeleteInput) (*BulkDeletionReport, error) {
	preview, err := s.PreviewBulkDelete(ctx, in.Rows)
	if err != nil {
		return nil, err
	}

	report := &BulkDeletionReport{
		Requested: len(preview.Found) + len(preview.NotFound),
		NotFound:  len(preview.NotFound),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)
	for _, item := range preview.Found {
		g.Go(func() error {
			err := mapAllocationError(s.store.DeleteAllocationBySerial(ctx, item.SerialNumber))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Deleted++
				s.metrics.IncAllocationDeleted()
			case errors.Is(err, ErrAllocationNotFound):
				// Deleted by someone else since the preview.
				report.NotFound++
			default:
				report.Failed++
				report.Failures = append(report.Failures, RowIssue{
					Row:          item.Row,
					SerialNumber: item.SerialNumber,
					Reason:       err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(report.Failures, func(a, b RowIssue) int { return a.Row - b.Row })

	if report.Deleted > 0 {
		invalidate(ctx, s.logger, s.allocations)
	}
	s.metrics.ObserveBulkRun("delete", report.Deleted, report.Failed)
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionBulkDeletion,
		Entity:  model.EntityAllocations,
		Subject: in.Source,
		Actor:   in.Actor,
		Detail:  fmt.Sprintf("deleted=%d failed=%d not_found=%d", report.Deleted, report.Failed, report.NotFound),
	})
	s.logger.Info("bulk deletion finished",
		"source", in.Source,
		"deleted", report.Deleted,
		"failed", report.Failed,
		"not_found", report.NotFound,
	)

	return report, nil
}

func rowIssue(row spreadsheet.AllocationRow, reason string) RowIssue {
	return RowIssue{Row: row.Row, SerialNumber: row.SerialNumber, BCID: row.BCID, Reason: reason}
}
