package series

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"regionwatch/internal/types"
)

// DefaultRedisPrefix namespaces series keys in a shared redis.
const DefaultRedisPrefix = "regionwatch:series:"

const scanBatch = 200

// RedisCache is a Cache shared between processes. Values are written with
// SETNX so the first writer wins and entries are never overwritten. Keys carry
// no expiry; Clear is the only eviction.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps an existing redis client.
func NewRedisCache(rdb redis.UniversalClient, prefix string, logger *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger}
}

func cacheError(msg string, err error) error {
	return types.NewAppError(types.ErrCodeInternalCache, msg, err)
}

func (c *RedisCache) Get(ctx context.Context, key string) (*types.TimeSeries, bool, error) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cacheError("series cache read failed", err)
	}
	ts, err := DecodeSeries(data)
	if err != nil {
		// A corrupt value is reported as a miss so the series is refetched;
		// SETNX keeps the bad value though, so log it for a manual clear.
		c.logger.WarnContext(ctx, "discarding undecodable cached series", "key", key, "error", err)
		return nil, false, nil
	}
	return ts, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, ts *types.TimeSeries) (*types.TimeSeries, error) {
	data, err := EncodeSeries(ts)
	if err != nil {
		return nil, cacheError("series encode failed", err)
	}
	stored, err := c.rdb.SetNX(ctx, c.prefix+key, data, 0).Result()
	if err != nil {
		return nil, cacheError("series cache write failed", err)
	}
	if stored {
		return ts, nil
	}
	existing, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return ts, err
	}
	return existing, nil
}

func (c *RedisCache) keys(ctx context.Context) ([]string, error) {
	var out []string
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, cacheError("series cache scan failed", err)
	}
	return out, nil
}

func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := c.rdb.Del(ctx, keys[start:end]...).Err(); err != nil {
			return cacheError("series cache clear failed", err)
		}
	}
	return nil
}

func (c *RedisCache) Len(ctx context.Context) (int, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (c *RedisCache) Entries(ctx context.Context) ([]Entry, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, full := range keys {
		key := strings.TrimPrefix(full, c.prefix)
		ts, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, Entry{Key: key, Series: ts})
		}
	}
	return out, nil
}

func (c *RedisCache) Restore(ctx context.Context, entries []Entry) error {
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

// Ping checks connectivity for health probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
