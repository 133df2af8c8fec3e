package series

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regionwatch/internal/types"
)

// fakeProvider serves a ramp series per requested dataset and counts calls.
type fakeProvider struct {
	calls   atomic.Int32
	mu      sync.Mutex
	reqs    []Request
	err     error
	omit    map[types.DatasetKind]bool
	block   chan struct{}
	samples int
}

func (p *fakeProvider) FetchHourly(ctx context.Context, req Request) (*types.TimeSeries, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.reqs = append(p.reqs, req)
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}

	n := p.samples
	if n == 0 {
		n = 744
	}
	ts := &types.TimeSeries{
		Latitude:  req.Location.Lat,
		Longitude: req.Location.Lon,
		Times:     make([]string, n),
		Values:    map[types.DatasetKind][]*float64{},
	}
	for _, k := range req.Kinds {
		if p.omit[k] {
			continue
		}
		ts.Values[k] = ramp(n)
	}
	return ts, nil
}

var testNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newTestResolver(p Provider, opts ...ResolverOption) *Resolver {
	opts = append([]ResolverOption{WithClock(types.FixedClock{At: testNow})}, opts...)
	return NewResolver(p, NewMemoryCache(), opts...)
}

var kolkata = types.GeoPoint{Lat: 22.54111111, Lon: 88.33777778}

func TestResolve_SingleInstant(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(p)

	v, err := r.Resolve(context.Background(), kolkata, types.DatasetTemperature, single(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	v, err = r.Resolve(context.Background(), kolkata, types.DatasetTemperature, single(42))
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)
}

func TestResolve_RangeAverage(t *testing.T) {
	r := newTestResolver(&fakeProvider{})
	v, err := r.Resolve(context.Background(), kolkata, types.DatasetTemperature, span(300, 420))
	require.NoError(t, err)
	assert.Equal(t, 360.0, v)
}

func TestResolve_IdenticalRequestsFetchOnce(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(p)
	ctx := context.Background()

	_, err := r.Resolve(ctx, kolkata, types.DatasetTemperature, single(0))
	require.NoError(t, err)
	// Tiny offset rounds to the same key.
	_, err = r.Resolve(ctx, types.GeoPoint{Lat: kolkata.Lat + 0.00001, Lon: kolkata.Lon}, types.DatasetTemperature, span(1, 5))
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestResolve_DifferentDatasetFetchesAgain(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(p)
	ctx := context.Background()

	_, err := r.Resolve(ctx, kolkata, types.DatasetTemperature, single(0))
	require.NoError(t, err)
	_, err = r.Resolve(ctx, kolkata, types.DatasetWind, single(0))
	require.NoError(t, err)

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestResolve_ConcurrentMissesShareOneCall(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{})}
	r := newTestResolver(p)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.Resolve(context.Background(), kolkata, types.DatasetCloud, single(i))
		}(i)
	}

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(p.block)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestResolve_RequestUsesRoundedLocationAndWindow(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(p)

	_, err := r.Resolve(context.Background(), kolkata, types.DatasetPrecipitation, single(0))
	require.NoError(t, err)

	require.Len(t, p.reqs, 1)
	req := p.reqs[0]
	assert.Equal(t, types.GeoPoint{Lat: 22.5411, Lon: 88.3378}, req.Location)
	assert.Equal(t, []types.DatasetKind{types.DatasetPrecipitation}, req.Kinds)
	assert.Equal(t, "2026-10-02", req.Window.StartDate())
	assert.Equal(t, "2026-11-01", req.Window.EndDate())
}

func TestResolve_MissingDatasetIsUnavailable(t *testing.T) {
	p := &fakeProvider{omit: map[types.DatasetKind]bool{types.DatasetCloud: true}}
	r := newTestResolver(p)

	_, err := r.Resolve(context.Background(), kolkata, types.DatasetCloud, single(0))
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamDatasetUnavailable, types.CodeOf(err))
}

func TestResolve_ProviderErrorPassesThrough(t *testing.T) {
	p := &fakeProvider{err: types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamProvider, "provider returned status 503", nil, map[string]any{"status": 503},
	)}
	r := newTestResolver(p)

	_, err := r.Resolve(context.Background(), kolkata, types.DatasetTemperature, single(0))
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamProvider, appErr.Code)
	assert.Equal(t, 503, appErr.Details["status"])

	n, _ := r.Cache().Len(context.Background())
	assert.Equal(t, 0, n, "failures are not cached")
}

func TestResolve_UntypedErrorIsNetwork(t *testing.T) {
	r := newTestResolver(&fakeProvider{err: errors.New("dial tcp: connection refused")})
	_, err := r.Resolve(context.Background(), kolkata, types.DatasetTemperature, single(0))
	assert.Equal(t, types.ErrCodeUpstreamNetwork, types.CodeOf(err))
}

func TestResolve_Timeout(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{})}
	defer close(p.block)
	r := newTestResolver(p, WithTimeout(20*time.Millisecond))

	_, err := r.Resolve(context.Background(), kolkata, types.DatasetTemperature, single(0))
	assert.Equal(t, types.ErrCodeUpstreamTimeout, types.CodeOf(err))
}

func TestResolve_CallerCancelIsTimeout(t *testing.T) {
	p := &fakeProvider{block: make(chan struct{})}
	defer close(p.block)
	r := newTestResolver(p)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := r.Resolve(ctx, kolkata, types.DatasetTemperature, single(0))
	assert.Equal(t, types.ErrCodeUpstreamTimeout, types.CodeOf(err))
}

func TestResolve_InvalidDataset(t *testing.T) {
	r := newTestResolver(&fakeProvider{})
	_, err := r.Resolve(context.Background(), kolkata, "humidity", single(0))
	assert.Equal(t, types.ErrCodeValidationInvalidDataset, types.CodeOf(err))
}

func TestClearCache_ForcesRefetch(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(p)
	ctx := context.Background()

	_, err := r.Resolve(ctx, kolkata, types.DatasetTemperature, single(0))
	require.NoError(t, err)
	require.NoError(t, r.ClearCache(ctx))
	_, err = r.Resolve(ctx, kolkata, types.DatasetTemperature, single(0))
	require.NoError(t, err)

	assert.Equal(t, int32(2), p.calls.Load())
}

func TestFetch_MultipleKinds(t *testing.T) {
	p := &fakeProvider{}
	r := newTestResolver(p)

	ts, w, err := r.Fetch(context.Background(), kolkata, types.DatasetWind, types.DatasetTemperature)
	require.NoError(t, err)
	assert.Equal(t, NewWindow(testNow), w)
	_, ok := ts.Series(types.DatasetWind)
	assert.True(t, ok)
	_, ok = ts.Series(types.DatasetTemperature)
	assert.True(t, ok)
	assert.Equal(t, []types.DatasetKind{types.DatasetTemperature, types.DatasetWind}, p.reqs[0].Kinds)
}

func TestFetch_NoKinds(t *testing.T) {
	r := newTestResolver(&fakeProvider{})
	_, _, err := r.Fetch(context.Background(), kolkata)
	assert.Equal(t, types.ErrCodeValidationInvalidDataset, types.CodeOf(err))
}
