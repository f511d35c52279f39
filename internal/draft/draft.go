// Package draft keeps a visitor's unsubmitted registration answers for a limited time.
//
// The cache logic only needs a get/set/clear key-value capability, so the same behaviour
// runs over the in-process store, the embedded SQLite store, or any other backend.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long an untouched draft stays usable.
const DefaultTTL = 2 * time.Hour

// Entry is a stored answer set and the time it was written.
type Entry struct {
	Answers   map[string]any
	WrittenAt time.Time
}

// Store is the key-value capability a draft cache runs on.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Clear(ctx context.Context, key string) error
}

// ErrMissingKey is returned when a draft is addressed without an event id or a visitor id.
var ErrMissingKey = errors.New("draft key requires an event id and a visitor id")

// Cache applies the TTL policy on top of a Store.
type Cache struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New constructs a Cache. A non-positive ttl falls back to DefaultTTL.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: store, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key scopes a draft to one visitor of one event.
func Key(eventID, visitorID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	visitorID = strings.TrimSpace(visitorID)
	if eventID == "" || visitorID == "" {
		return "", ErrMissingKey
	}
	return "event:" + eventID + ":visitor:" + visitorID, nil
}

// Load returns the draft answers for the form. An expired draft is cleared and reported
// as absent without its answers ever being returned.
func (c *Cache) Load(ctx context.Context, eventID, visitorID string) (map[string]any, bool, error) {
	key, err := Key(eventID, visitorID)
	if err != nil {
		return nil, false, err
	}
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load draft: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(entry.WrittenAt) > c.ttl {
		if err := c.store.Clear(ctx, key); err != nil {
			return nil, false, fmt.Errorf("clear expired draft: %w", err)
		}
		return nil, false, nil
	}
	return entry.Answers, true, nil
}

// Save stores the answers stamped with the current time.
func (c *Cache) Save(ctx context.Context, eventID, visitorID string, answers map[string]any) error {
	key, err := Key(eventID, visitorID)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, key, Entry{Answers: answers, WrittenAt: c.now()}); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Discard deletes the draft. Deleting a missing draft is not an error.
func (c *Cache) Discard(ctx context.Context, eventID, visitorID string) error {
	key, err := Key(eventID, visitorID)
	if err != nil {
		return err
	}
	if err := c.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("discard draft: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

var _ Store = (*MemoryStore)(nil)
