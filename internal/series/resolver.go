package series

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"regionwatch/internal/metrics"
	"regionwatch/internal/types"
)

// DefaultTimeout bounds one provider request.
const DefaultTimeout = 10 * time.Second

// Resolver turns (location, dataset, timeline) into a scalar, fetching and
// caching the underlying series as needed. Concurrent misses for the same key
// share one provider call.
type Resolver struct {
	provider Provider
	cache    Cache
	clock    types.Clock
	timeout  time.Duration
	metrics  metrics.Recorder
	logger   *slog.Logger

	group singleflight.Group
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock sets the clock the request window is derived from.
func WithClock(c types.Clock) ResolverOption {
	return func(r *Resolver) { r.clock = c }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) ResolverOption {
	return func(r *Resolver) { r.metrics = metrics.OrNoop(m) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver creates a Resolver over an injected provider and cache.
func NewResolver(provider Provider, cache Cache, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider: provider,
		cache:    cache,
		clock:    types.RealClock{},
		timeout:  DefaultTimeout,
		metrics:  metrics.Noop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the resolver reads and fills.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// Window returns the request window for the current time.
func (r *Resolver) Window() Window {
	return NewWindow(r.clock.Now())
}

// Resolve returns the value of kind at loc for the timeline position.
func (r *Resolver) Resolve(ctx context.Context, loc types.GeoPoint, kind types.DatasetKind, tl types.TimelineState) (float64, error) {
	ts, _, err := r.Fetch(ctx, loc, kind)
	if err != nil {
		return 0, err
	}
	samples, ok := ts.Series(kind)
	if !ok {
		return 0, datasetUnavailable(kind, "missing from provider response")
	}
	return Extract(kind, samples, tl)
}

// Fetch returns the cached or freshly fetched series for loc and kinds along
// with the window it covers.
func (r *Resolver) Fetch(ctx context.Context, loc types.GeoPoint, kinds ...types.DatasetKind) (*types.TimeSeries, Window, error) {
	for _, k := range kinds {
		if err := types.ValidateDataset(k); err != nil {
			return nil, Window{}, err
		}
	}
	if len(kinds) == 0 {
		return nil, Window{}, types.NewAppError(types.ErrCodeValidationInvalidDataset, "at least one dataset is required", nil)
	}

	window := r.Window()
	key := NewCacheKey(loc, kinds, window)
	keyStr := key.String()

	ts, hit, err := r.cache.Get(ctx, keyStr)
	if err != nil {
		// A broken shared cache degrades to fetching.
		r.logger.WarnContext(ctx, "series cache read failed", "key", keyStr, "error", err)
	}
	r.metrics.RecordCacheLookup(ctx, hit)
	if hit {
		return ts, window, nil
	}

	req := Request{
		Location: types.GeoPoint{Lat: key.Lat, Lon: key.Lon},
		Kinds:    sortedKinds(kinds),
		Window:   window,
	}

	ch := r.group.DoChan(keyStr, func() (any, error) {
		// Another caller may have filled the key while we waited.
		if cached, ok, _ := r.cache.Get(ctx, keyStr); ok {
			return cached, nil
		}
		return r.fetchAndStore(ctx, keyStr, req)
	})

	select {
	case <-ctx.Done():
		return nil, window, timeoutError(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, window, res.Err
		}
		return res.Val.(*types.TimeSeries), window, nil
	}
}

func (r *Resolver) fetchAndStore(ctx context.Context, key string, req Request) (*types.TimeSeries, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	label := FieldList(req.Kinds)
	started := time.Now()
	ts, err := r.provider.FetchHourly(fetchCtx, req)
	if err != nil {
		err = classifyFetchError(fetchCtx, err)
		r.metrics.RecordFetch(ctx, label, metrics.FetchFailure, time.Since(started))
		r.logger.WarnContext(ctx, "series fetch failed",
			"key", key,
			"code", string(types.CodeOf(err)),
			"error", err,
		)
		return nil, err
	}
	r.metrics.RecordFetch(ctx, label, metrics.FetchSuccess, time.Since(started))

	stored, err := r.cache.Put(ctx, key, ts)
	if err != nil {
		r.logger.WarnContext(ctx, "series cache write failed", "key", key, "error", err)
		return ts, nil
	}
	return stored, nil
}

// ClearCache drops every cached series.
func (r *Resolver) ClearCache(ctx context.Context) error {
	return r.cache.Clear(ctx)
}

func sortedKinds(kinds []types.DatasetKind) []types.DatasetKind {
	out := slices.Clone(kinds)
	slices.Sort(out)
	return slices.Compact(out)
}

func timeoutError(err error) error {
	return types.NewAppError(types.ErrCodeUpstreamTimeout, "request timed out", err)
}

// classifyFetchError makes sure every provider failure carries an upstream
// code. Deadline and cancellation win over whatever the provider reported.
func classifyFetchError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		if types.CodeOf(err) == types.ErrCodeUpstreamTimeout {
			return err
		}
		return timeoutError(err)
	}
	if types.CodeOf(err) == "" {
		return types.NewAppError(types.ErrCodeUpstreamNetwork, "network unavailable", err)
	}
	return err
}
