package series

import (
	"context"
	"sort"
	"sync"

	"regionwatch/internal/types"
)

// Entry is one cached series with its storage key.
type Entry struct {
	Key    string            `json:"key"`
	Series *types.TimeSeries `json:"series"`
}

// Cache stores provider responses. Entries are immutable: the first Put for a
// key wins and later Puts return the stored value unchanged. Entries leave the
// cache only through Clear.
type Cache interface {
	Get(ctx context.Context, key string) (*types.TimeSeries, bool, error)
	// Put stores ts under key unless the key is already present, and returns
	// the value that is now cached.
	Put(ctx context.Context, key string, ts *types.TimeSeries) (*types.TimeSeries, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	// Entries returns every cached entry, ordered by key.
	Entries(ctx context.Context) ([]Entry, error)
	// Restore loads entries with Put semantics; existing keys are kept.
	Restore(ctx context.Context, entries []Entry) error
}

// MemoryCache is the in-process Cache. The composition root constructs one
// and injects it; there is no package-level instance.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*types.TimeSeries
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*types.TimeSeries)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*types.TimeSeries, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ts, ok := c.entries[key]
	return ts, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, ts *types.TimeSeries) (*types.TimeSeries, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = ts
	return ts, nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*types.TimeSeries)
	return nil
}

func (c *MemoryCache) Len(context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

func (c *MemoryCache) Entries(context.Context) ([]Entry, error) {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, Entry{Key: k, Series: v})
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (c *MemoryCache) Restore(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		if e.Series == nil {
			continue
		}
		if _, err := c.Put(ctx, e.Key, e.Series); err != nil {
			return err
		}
	}
	return nil
}
