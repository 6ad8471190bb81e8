package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tagdesk/tagdesk/internal/metrics"
)

// DefaultRecordTTL is how long a fetched record set stays valid.
const DefaultRecordTTL = 10 * time.Minute

// Fetcher loads the full record set for an entity from the database.
type Fetcher[T any] func(ctx context.Context) ([]T, error)

// Entry is a fetched record set and the time it was fetched.
type Entry[T any] struct {
	Entity    string
	Records   []T
	FetchedAt time.Time
}

// Status describes a collection for the cache admin endpoints.
type Status struct {
	Entity    string     `json:"entity"`
	Valid     bool       `json:"valid"`
	Records   int        `json:"records"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Options configures a Collection.
type Options struct {
	// TTL is the validity window. Defaults to DefaultRecordTTL.
	TTL time.Duration
	// Feature namespaces the mirror key, e.g. "inventory".
	Feature string
	// Mirror persists snapshots. Nil disables persistence.
	Mirror Mirror
	// Clock overrides time.Now, for tests.
	Clock   func() time.Time
	Metrics metrics.Recorder
	Logger  *slog.Logger
}

// Collection caches the full record set of one entity type.
//
// A record set is valid while now - FetchedAt < TTL. Get serves a valid set,
// otherwise refetches and stores the result in memory and in the mirror.
// Invalidate bumps a generation counter so that a fetch already in flight is
// returned to its callers but never stored.
type Collection[T any] struct {
	entity  string
	key     string
	ttl     time.Duration
	fetch   Fetcher[T]
	mirror  Mirror
	now     func() time.Time
	metrics metrics.Recorder
	logger  *slog.Logger
	group   singleflight.Group

	mu         sync.Mutex
	entry      *Entry[T]
	generation uint64
	// hydrateTried is set once the mirror has been consulted or the entry was
	// invalidated; after that only a fetch can populate the entry.
	hydrateTried bool
}

// NewCollection creates a collection for entity backed by fetch.
func NewCollection[T any](entity string, fetch Fetcher[T], opts Options) *Collection[T] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultRecordTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	key := entity
	if opts.Feature != "" {
		key = opts.Feature + ":" + entity
	}

	return &Collection[T]{
		entity:  entity,
		key:     key,
		ttl:     opts.TTL,
		fetch:   fetch,
		mirror:  opts.Mirror,
		now:     opts.Clock,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "cache.collection", "entity", entity),
	}
}

// Entity returns the entity name.
func (c *Collection[T]) Entity() string {
	return c.entity
}

// TTL returns the validity window.
func (c *Collection[T]) TTL() time.Duration {
	return c.ttl
}

// IsValid reports whether the in-memory record set is still within its TTL.
func (c *Collection[T]) IsValid() bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.validLocked(now)
}

func (c *Collection[T]) validLocked(now time.Time) bool {
	return c.entry != nil && now.Sub(c.entry.FetchedAt) < c.ttl
}

// Get returns the cached records, refetching when they are missing or stale.
// The returned slice is shared; callers must not modify it.
func (c *Collection[T]) Get(ctx context.Context) ([]T, error) {
	now := c.now()

	c.mu.Lock()
	if c.validLocked(now) {
		records := c.entry.Records
		c.mu.Unlock()
		c.metrics.IncCacheHit(c.entity)
		return records, nil
	}
	gen := c.generation
	tryMirror := c.mirror != nil && c.entry == nil && !c.hydrateTried
	c.hydrateTried = true
	c.mu.Unlock()

	if tryMirror {
		if records, ok := c.hydrate(ctx, gen, now); ok {
			c.metrics.IncCacheHydrated(c.entity)
			return records, nil
		}
	}

	c.metrics.IncCacheMiss(c.entity)

	// The fetch is shared by every waiter of this generation, so one caller
	// going away must not cancel it for the rest.
	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), gen)
	})
	if err != nil {
		return nil, err
	}

	return v.([]T), nil
}

// Refresh forces a refetch regardless of validity.
func (c *Collection[T]) Refresh(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	gen := c.generation
	c.hydrateTried = true
	c.mu.Unlock()

	return c.refresh(ctx, gen)
}

// Invalidate drops the cached record set and its persisted snapshot. The next
// Get always refetches.
func (c *Collection[T]) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.entry = nil
	c.generation++
	c.hydrateTried = true
	c.mu.Unlock()

	if c.mirror == nil {
		return nil
	}

	if err := c.mirror.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("failed to invalidate %s snapshot: %w", c.entity, err)
	}

	return nil
}

// Status reports the current state of the collection.
func (c *Collection[T]) Status() Status {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	status := Status{
		Entity: c.entity,
		Valid:  c.validLocked(now),
	}
	if c.entry != nil {
		fetchedAt := c.entry.FetchedAt
		expiresAt := fetchedAt.Add(c.ttl)
		status.Records = len(c.entry.Records)
		status.FetchedAt = &fetchedAt
		status.ExpiresAt = &expiresAt
	}

	return status
}

// refresh fetches from the database and stores the result if no
// invalidation happened since gen was read.
func (c *Collection[T]) refresh(ctx context.Context, gen uint64) ([]T, error) {
	start := c.now()
	records, err := c.fetch(ctx)
	c.metrics.ObserveCacheFetchDuration(c.entity, time.Since(start))
	if err != nil {
		c.metrics.IncCacheFetchError(c.entity)
		return nil, fmt.Errorf("failed to fetch %s: %w", c.entity, err)
	}
	if records == nil {
		records = []T{}
	}

	entry := &Entry[T]{
		Entity:    c.entity,
		Records:   records,
		FetchedAt: c.now(),
	}

	c.mu.Lock()
	stored := c.generation == gen
	if stored {
		c.entry = entry
	}
	c.mu.Unlock()

	if !stored {
		c.logger.Debug("discarding fetch superseded by invalidation")
		return records, nil
	}

	c.persist(ctx, entry, gen)

	return records, nil
}

// persist mirrors entry. An Invalidate that lands while the snapshot is being
// written may delete the key before Save recreates it, so the generation is
// checked again afterwards and the stale snapshot removed.
func (c *Collection[T]) persist(ctx context.Context, entry *Entry[T], gen uint64) {
	if c.mirror == nil {
		return
	}

	data, err := json.Marshal(entry.Records)
	if err != nil {
		c.logger.Warn("failed to encode snapshot", "error", err)
		return
	}

	snap := &Snapshot{
		Entity:    entry.Entity,
		Records:   data,
		FetchedAt: entry.FetchedAt,
	}

	// The in-memory entry is authoritative for this process; a failed mirror
	// write only costs other processes a refetch.
	if err := c.mirror.Save(ctx, c.key, snap, c.ttl); err != nil {
		c.logger.Warn("failed to persist snapshot", "error", err)
		return
	}

	c.mu.Lock()
	superseded := c.generation != gen
	c.mu.Unlock()
	if !superseded {
		return
	}
	if err := c.mirror.Delete(ctx, c.key); err != nil {
		c.logger.Warn("failed to drop superseded snapshot", "error", err)
	}
}

// hydrate loads a still-valid snapshot from the mirror into memory.
func (c *Collection[T]) hydrate(ctx context.Context, gen uint64, now time.Time) ([]T, bool) {
	snap, err := c.mirror.Load(ctx, c.key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("failed to load snapshot", "error", err)
		}
		return nil, false
	}

	if now.Sub(snap.FetchedAt) >= c.ttl {
		return nil, false
	}

	var records []T
	if err := json.Unmarshal(snap.Records, &records); err != nil {
		c.logger.Warn("discarding unreadable snapshot", "error", err)
		return nil, false
	}
	if records == nil {
		records = []T{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return nil, false
	}

	c.entry = &Entry[T]{
		Entity:    c.entity,
		Records:   records,
		FetchedAt: snap.FetchedAt,
	}

	return records, true
}
