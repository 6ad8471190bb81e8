package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tagdesk/tagdesk/internal/activity"
	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/metrics"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/repository"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
	"github.com/tagdesk/tagdesk/internal/validate"
)

// AllocationStore is the persistence used by AllocationService.
type AllocationStore interface {
	CreateAllocation(ctx context.Context, rec *model.AllocationRecord) error
	GetAllocationsBySerials(ctx context.Context, serials []string) (map[string]*model.AllocationRecord, error)
	DeleteAllocationBySerial(ctx context.Context, serial string) error
	UpdateAllocationStatus(ctx context.Context, serial string, status model.AllocationStatus) (*model.AllocationRecord, error)
	GetUsersByBCIDs(ctx context.Context, bcIDs []string) (map[string]*model.User, error)
}

// DefaultDeleteConcurrency bounds parallel deletes in a bulk deletion.
const DefaultDeleteConcurrency = 8

// AllocationConfig configures an AllocationService.
type AllocationConfig struct {
	Store             AllocationStore
	Allocations       *cache.Collection[model.AllocationRecord]
	Activity          activity.Recorder
	Metrics           metrics.Recorder
	Logger            *slog.Logger
	DeleteConcurrency int
	Clock             func() time.Time
}

// AllocationService manages FasTag allocations.
type AllocationService struct {
	store       AllocationStore
	allocations *cache.Collection[model.AllocationRecord]
	activity    activity.Recorder
	metrics     metrics.Recorder
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewAllocationService creates a new AllocationService.
func NewAllocationService(cfg AllocationConfig) *AllocationService {
	s := &AllocationService{
		store:       cfg.Store,
		allocations: cfg.Allocations,
		activity:    cfg.Activity,
		metrics:     cfg.Metrics,
		logger:      orDiscardLogger(cfg.Logger).With("component", "service.allocations"),
		concurrency: cfg.DeleteConcurrency,
		now:         orNow(cfg.Clock),
	}
	if s.activity == nil {
		s.activity = activity.Discard
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoop()
	}
	if s.concurrency < 1 {
		s.concurrency = DefaultDeleteConcurrency
	}
	return s
}

// AllocationFilter narrows an allocation listing.
type AllocationFilter struct {
	Query  string // matches serial number, BC ID or user name
	Status model.AllocationStatus
	UserID string
}

// List returns cached allocations matching f.
func (s *AllocationService) List(ctx context.Context, f AllocationFilter) ([]model.AllocationRecord, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return nil, ErrInvalidStatus
	}

	records, err := s.allocations.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	out := make([]model.AllocationRecord, 0, len(records))
	for _, rec := range records {
		if f.Status != "" && rec.Status != f.Status {
			continue
		}
		if f.UserID != "" && rec.UserID != f.UserID {
			continue
		}
		if !matchesQuery(f.Query, rec.SerialNumber, rec.BCID, rec.UserName) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// AllocateInput is a manual single allocation.
type AllocateInput struct {
	SerialNumber string
	BCID         string
	Actor        string
}

// Allocate assigns one serial number to the user owning the BC ID.
func (s *AllocationService) Allocate(ctx context.Context, in AllocateInput) (*model.AllocationRecord, error) {
	serial := strings.TrimSpace(in.SerialNumber)
	bcID := strings.TrimSpace(in.BCID)
	if !validate.Serial(serial) {
		return nil, ErrInvalidSerial
	}

	users, err := s.store.GetUsersByBCIDs(ctx, []string{bcID})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve BC ID: %w", err)
	}
	user, ok := users[bcID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBCID, bcID)
	}

	rec := s.newRecord(serial, user, in.Actor)
	if err := s.store.CreateAllocation(ctx, rec); err != nil {
		return nil, mapAllocationError(err)
	}

	invalidate(ctx, s.logger, s.allocations)
	s.metrics.IncAllocationCreated("manual")
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionAllocationCreated,
		Entity:  model.EntityAllocations,
		Subject: serial,
		Actor:   in.Actor,
		Detail:  "bc_id=" + bcID,
	})

	return rec, nil
}

// Delete removes one allocation by serial number.
func (s *AllocationService) Delete(ctx context.Context, serial, actor string) error {
	if err := s.store.DeleteAllocationBySerial(ctx, serial); err != nil {
		return mapAllocationError(err)
	}

	invalidate(ctx, s.logger, s.allocations)
	s.metrics.IncAllocationDeleted()
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionAllocationDeleted,
		Entity:  model.EntityAllocations,
		Subject: serial,
		Actor:   actor,
	})
	return nil
}

// ChangeStatus moves an allocation to status.
func (s *AllocationService) ChangeStatus(ctx context.Context, serial string, status model.AllocationStatus, actor string) (*model.AllocationRecord, error) {
	if !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	rec, err := s.store.UpdateAllocationStatus(ctx, serial, status)
	if err != nil {
		return nil, mapAllocationError(err)
	}

	invalidate(ctx, s.logger, s.allocations)
	s.activity.Record(ctx, activity.Event{
		Action:  model.ActionAllocationStatus,
		Entity:  model.EntityAllocations,
		Subject: serial,
		Actor:   actor,
		Detail:  "status=" + string(status),
	})
	return rec, nil
}

// Export writes the allocations matching f as a spreadsheet.
func (s *AllocationService) Export(ctx context.Context, w io.Writer, format spreadsheet.Format, f AllocationFilter) error {
	records, err := s.List(ctx, f)
	if err != nil {
		return err
	}
	return spreadsheet.WriteAllocations(w, format, records)
}

func (s *AllocationService) newRecord(serial string, user *model.User, actor string) *model.AllocationRecord {
	return &model.AllocationRecord{
		ID:           ulid.Make().String(),
		SerialNumber: serial,
		BCID:         user.BCID,
		UserID:       user.ID,
		UserName:     user.Name,
		Status:       model.AllocationAvailable,
		AllocatedAt:  s.now().UTC(),
		AllocatedBy:  actor,
	}
}

func mapAllocationError(err error) error {
	switch {
	case errors.Is(err, repository.ErrSerialExists):
		return ErrSerialExists
	case errors.Is(err, repository.ErrAllocationNotFound):
		return ErrAllocationNotFound
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	default:
		return err
	}
}
