package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tagdesk/tagdesk/internal/metrics"
	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
)

type allocationEnv struct {
	svc     *AllocationService
	store   *memStore
	cols    *Collections
	events  *eventLog
	metrics *metrics.InMemoryRecorder
	clock   *fixedClock
}

func newAllocationEnv(t *testing.T) *allocationEnv {
	t.Helper()
	a, b := testUsers()
	store := newMemStore(a, b)
	clock := &fixedClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	cols := newTestCollections(store, clock)
	events := &eventLog{}
	rec := metrics.NewInMemory()

	svc := NewAllocationService(AllocationConfig{
		Store:             store,
		Allocations:       cols.Allocations,
		Activity:          events,
		Metrics:           rec,
		DeleteConcurrency: 3,
		Clock:             clock.Now,
	})
	return &allocationEnv{svc: svc, store: store, cols: cols, events: events, metrics: rec, clock: clock}
}

func TestAllocate(t *testing.T) {
	env := newAllocationEnv(t)
	ctx := context.Background()

	rec, err := env.svc.Allocate(ctx, AllocateInput{SerialNumber: " SN-0001 ", BCID: "BC001", Actor: "admin"})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if rec.UserID != "u1" || rec.UserName != "Asha Rao" || rec.Status != model.AllocationAvailable {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.SerialNumber != "SN-0001" || !rec.AllocatedAt.Equal(env.clock.t) || rec.AllocatedBy != "admin" {
		t.Errorf("unexpected record: %+v", rec)
	}

	tests := []struct {
		name    string
		in      AllocateInput
		wantErr error
	}{
		{"duplicate serial", AllocateInput{SerialNumber: "SN-0001", BCID: "BC002"}, ErrSerialExists},
		{"unknown bc id", AllocateInput{SerialNumber: "SN-0002", BCID: "BC999"}, ErrUnknownBCID},
		{"invalid serial", AllocateInput{SerialNumber: "x", BCID: "BC001"}, ErrInvalidSerial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.svc.Allocate(ctx, tt.in); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if got := env.events.actions(); len(got) != 1 || got[0] != model.ActionAllocationCreated {
		t.Errorf("activity = %v", got)
	}
}

func TestAllocationList_RefetchesAfterMutation(t *testing.T) {
	env := newAllocationEnv(t)
	ctx := context.Background()

	if _, err := env.svc.List(ctx, AllocationFilter{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if _, err := env.svc.List(ctx, AllocationFilter{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := env.store.lists(model.EntityAllocations); got != 1 {
		t.Fatalf("store listed %d times, want 1 (second read is cached)", got)
	}

	if _, err := env.svc.Allocate(ctx, AllocateInput{SerialNumber: "SN-1000", BCID: "BC002", Actor: "admin"}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	list, err := env.svc.List(ctx, AllocationFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := env.store.lists(model.EntityAllocations); got != 2 {
		t.Errorf("store listed %d times, want 2 after invalidation", got)
	}
	if len(list) != 1 || list[0].SerialNumber != "SN-1000" {
		t.Errorf("List() = %+v", list)
	}
}

func TestAllocationList_Filters(t *testing.T) {
	env := newAllocationEnv(t)
	ctx := context.Background()

	for i, bc := range []string{"BC001", "BC001", "BC002"} {
		if _, err := env.svc.Allocate(ctx, AllocateInput{SerialNumber: fmt.Sprintf("SN-%04d", i), BCID: bc}); err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
	}
	if _, err := env.svc.ChangeStatus(ctx, "SN-0001", model.AllocationUsed, "admin"); err != nil {
		t.Fatalf("ChangeStatus() error = %v", err)
	}

	tests := []struct {
		name   string
		filter AllocationFilter
		want   int
	}{
		{"all", AllocationFilter{}, 3},
		{"by user name", AllocationFilter{Query: "ravi"}, 1},
		{"by bc id", AllocationFilter{Query: "bc001"}, 2},
		{"by serial", AllocationFilter{Query: "sn-0002"}, 1},
		{"by status", AllocationFilter{Status: model.AllocationUsed}, 1},
		{"by user", AllocationFilter{UserID: "u1", Status: model.AllocationAvailable}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List(%+v) returned %d, want %d", tt.filter, len(got), tt.want)
			}
		})
	}

	if _, err := env.svc.List(ctx, AllocationFilter{Status: "lost"}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestChangeStatusAndDelete(t *testing.T) {
	env := newAllocationEnv(t)
	ctx := context.Background()

	if _, err := env.svc.Allocate(ctx, AllocateInput{SerialNumber: "SN-0001", BCID: "BC001"}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	if _, err := env.svc.ChangeStatus(ctx, "SN-0001", "lost", "admin"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := env.svc.ChangeStatus(ctx, "SN-9999", model.AllocationRevoked, "admin"); !errors.Is(err, ErrAllocationNotFound) {
		t.Errorf("expected ErrAllocationNotFound, got %v", err)
	}
	rec, err := env.svc.ChangeStatus(ctx, "SN-0001", model.AllocationRevoked, "admin")
	if err != nil || rec.Status != model.AllocationRevoked {
		t.Fatalf("ChangeStatus() = %+v, %v", rec, err)
	}

	if err := env.svc.Delete(ctx, "SN-0001", "admin"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := env.svc.Delete(ctx, "SN-0001", "admin"); !errors.Is(err, ErrAllocationNotFound) {
		t.Errorf("expected ErrAllocationNotFound, got %v", err)
	}
	if got := env.metrics.Snapshot().AllocationsDeleted; got != 1 {
		t.Errorf("AllocationsDeleted = %d, want 1", got)
	}
}

func TestExport(t *testing.T) {
	env := newAllocationEnv(t)
	ctx := context.Background()

	for _, serial := range []string{"SN-0001", "SN-0002"} {
		if _, err := env.svc.Allocate(ctx, AllocateInput{SerialNumber: serial, BCID: "BC001"}); err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
	}

	var buf bytes.Buffer
	if err := env.svc.Export(ctx, &buf, spreadsheet.FormatCSV, AllocationFilter{Query: "0002"}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Serial Number,BC ID") || !strings.Contains(out, "SN-0002") || strings.Contains(out, "SN-0001") {
		t.Errorf("unexpected export:\n%s", out)
	}
}
