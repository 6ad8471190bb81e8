package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

// Snapshot is the persisted form of a cache entry.
type Snapshot struct {
	Entity    string          `json:"entity"`
	Records   json.RawMessage `json:"records"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Mirror persists cache snapshots outside the process.
// Load returns ErrCacheMiss when no snapshot exists for key.
type Mirror interface {
	Load(ctx context.Context, key string) (*Snapshot, error)
	Save(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisMirror stores JSON snapshots in Redis under a shared key prefix.
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror creates a mirror writing keys as "<prefix>:<key>".
func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix}
}

// Mirror returns a snapshot mirror backed by this cache's Redis client.
func (c *Cache) Mirror(prefix string) *RedisMirror {
	return NewRedisMirror(c.client, prefix)
}

func (m *RedisMirror) key(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + ":" + key
}

// Load reads a snapshot from Redis.
func (m *RedisMirror) Load(ctx context.Context, key string) (*Snapshot, error) {
	data, err := m.client.Get(ctx, m.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get snapshot failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupted snapshot - treat as miss
		return nil, ErrCacheMiss
	}

	return &snap, nil
}

// Save writes a snapshot with the given expiry.
func (m *RedisMirror) Save(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := m.client.Set(ctx, m.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	return nil
}

// Delete removes a snapshot.
func (m *RedisMirror) Delete(ctx context.Context, key string) error {
	if err := m.client.Del(ctx, m.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// MemoryMirror keeps snapshots in process memory. Expiry is left to the
// reader, which checks FetchedAt against its own TTL.
type MemoryMirror struct {
	mu        sync.Mutex
	snapshots map[string][]byte
}

// NewMemoryMirror creates an empty in-memory mirror.
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{snapshots: make(map[string][]byte)}
}

// Load returns a copy of the stored snapshot.
func (m *MemoryMirror) Load(ctx context.Context, key string) (*Snapshot, error) {
	m.mu.Lock()
	data, ok := m.snapshots[key]
	m.mu.Unlock()

	if !ok {
		return nil, ErrCacheMiss
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, ErrCacheMiss
	}
	return &snap, nil
}

// Save stores the snapshot serialized, the same way Redis would.
func (m *MemoryMirror) Save(ctx context.Context, key string, snap *Snapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	m.mu.Lock()
	m.snapshots[key] = data
	m.mu.Unlock()
	return nil
}

// Delete removes a snapshot.
func (m *MemoryMirror) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.snapshots, key)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys.
func (m *MemoryMirror) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.snapshots))
	for k := range m.snapshots {
		keys = append(keys, k)
	}
	return keys
}
