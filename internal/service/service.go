// Package service implements the admin operations behind the HTTP API and
// the tagctl CLI. Reads go through the per-entity record cache; writes go to
// the repository and then invalidate the affected collections.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tagdesk/tagdesk/internal/cache"
	"github.com/tagdesk/tagdesk/internal/model"
)

// Service errors.
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrAllocationNotFound     = errors.New("allocation not found")
	ErrSerialExists           = errors.New("serial number already allocated")
	ErrInvalidSerial          = errors.New("invalid serial number")
	ErrUnknownBCID            = errors.New("unknown BC ID")
	ErrInvalidStatus          = errors.New("invalid allocation status")
	ErrInvalidRole            = errors.New("invalid role")
	ErrNoRows                 = errors.New("spreadsheet has no data rows")
	ErrBulkRejected           = errors.New("spreadsheet rejected")
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInvalidAccessPassword  = errors.New("invalid or expired access password")
	ErrAccessPasswordNotFound = errors.New("access password not found")
	ErrWeakPassword           = errors.New("access password too short")
	ErrExpiresInPast          = errors.New("expires_at must be in the future")
)

// Feature namespaces for mirrored snapshots.
const (
	featureDirectory = "directory"
	featureInventory = "inventory"
	featureWallet    = "wallet"
)

// Source lists every cached entity from the store.
type Source interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	ListAllocations(ctx context.Context) ([]model.AllocationRecord, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	ListAccessPasswords(ctx context.Context) ([]model.AccessPassword, error)
}

// Collections is the set of cached entities with their registry.
type Collections struct {
	Users           *cache.Collection[model.User]
	Allocations     *cache.Collection[model.AllocationRecord]
	Transactions    *cache.Collection[model.Transaction]
	AccessPasswords *cache.Collection[model.AccessPassword]
	Registry        *cache.Registry
}

// NewCollections builds one collection per entity over src. opts.Feature is
// set per entity.
func NewCollections(src Source, opts cache.Options) *Collections {
	with := func(feature string) cache.Options {
		o := opts
		o.Feature = feature
		return o
	}

	c := &Collections{
		Users:           cache.NewCollection(model.EntityUsers, src.ListUsers, with(featureDirectory)),
		Allocations:     cache.NewCollection(model.EntityAllocations, src.ListAllocations, with(featureInventory)),
		Transactions:    cache.NewCollection(model.EntityTransactions, src.ListTransactions, with(featureWallet)),
		AccessPasswords: cache.NewCollection(model.EntityAccessPasswords, src.ListAccessPasswords, with(featureWallet)),
		Registry:        cache.NewRegistry(),
	}
	c.Registry.Register(c.Users)
	c.Registry.Register(c.Allocations)
	c.Registry.Register(c.Transactions)
	c.Registry.Register(c.AccessPasswords)

	return c
}

// matchesQuery reports whether any field contains q, ignoring case. An empty
// query matches everything.
func matchesQuery(q string, fields ...string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func orNow(clock func() time.Time) func() time.Time {
	if clock == nil {
		return time.Now
	}
	return clock
}

// invalidate drops the given collections after a write. The write already
// succeeded, so a failing mirror delete is only logged; the in-memory entry is
// gone regardless.
func invalidate(ctx context.Context, logger *slog.Logger, collections ...cache.Managed) {
	for _, c := range collections {
		if err := c.Invalidate(ctx); err != nil {
			logger.Warn("failed to invalidate cache",
				"entity", c.Entity(),
				"error", err,
			)
		}
	}
}

func orDiscardLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger
}
