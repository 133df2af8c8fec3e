package regions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"regionwatch/internal/types"
)

type mockRegionRepo struct {
	mock.Mock
}

func (m *mockRegionRepo) List(ctx context.Context) ([]types.Region, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]types.Region)
	return list, args.Error(1)
}

func (m *mockRegionRepo) ReplaceAll(ctx context.Context, regions []types.Region) error {
	return m.Called(ctx, regions).Error(0)
}

// memViewportRepo records saves.
type memViewportRepo struct {
	mu    sync.Mutex
	vp    *types.Viewport
	saves int
}

func (r *memViewportRepo) Get(context.Context) (*types.Viewport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vp, nil
}

func (r *memViewportRepo) Save(_ context.Context, v types.Viewport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vp = &v
	r.saves++
	return nil
}

func (r *memViewportRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func TestPersister_Restore(t *testing.T) {
	s := newTestStore()
	repo := &mockRegionRepo{}
	repo.On("List", mock.Anything).Return([]types.Region{
		{ID: "r1", Name: "Stored", Points: squarePoints(), Dataset: types.DatasetWind},
	}, nil)
	vp := &memViewportRepo{vp: &types.Viewport{Center: types.GeoPoint{Lat: 10, Lon: 20}, Zoom: 5}}

	p := NewPersister(s, repo, vp, time.Millisecond, nil)
	require.NoError(t, p.Restore(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap.Regions, 1)
	assert.Equal(t, "Stored", snap.Regions[0].Name)
	assert.Equal(t, 5.0, snap.Viewport.Zoom)
	assert.Equal(t, types.DefaultTimeline(), snap.Timeline, "timeline is not restored")
	repo.AssertExpectations(t)
}

func TestPersister_RestoreListError(t *testing.T) {
	repo := &mockRegionRepo{}
	repo.On("List", mock.Anything).Return(nil, errors.New("db down"))

	p := NewPersister(newTestStore(), repo, &memViewportRepo{}, 0, nil)
	assert.Error(t, p.Restore(context.Background()))
}

func TestPersister_RunWritesDebouncedChanges(t *testing.T) {
	s := newTestStore()
	repo := &mockRegionRepo{}
	var mu sync.Mutex
	var written [][]types.Region
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		written = append(written, args.Get(1).([]types.Region))
		mu.Unlock()
	}).Return(nil)
	vp := &memViewportRepo{}

	p := NewPersister(s, repo, vp, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	// Give Run a moment to subscribe.
	require.Eventually(t, func() bool {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		return len(s.subs) == 1
	}, time.Second, time.Millisecond)

	_, err := s.AddRegion(NewRegion{Points: squarePoints()})
	require.NoError(t, err)
	_, err = s.AddRegion(NewRegion{Points: squarePoints()})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return vp.saveCount() >= 1 }, time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Len(t, written, 1, "burst is coalesced into one write")
	assert.Len(t, written[0], 2)
	mu.Unlock()

	// Timeline changes are not persisted.
	require.NoError(t, s.SetInstant(1))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, vp.saveCount())

	cancel()
	<-done
}

func TestPersister_FlushOnShutdown(t *testing.T) {
	s := newTestStore()
	repo := &mockRegionRepo{}
	repo.On("ReplaceAll", mock.Anything, mock.Anything).Return(nil)
	vp := &memViewportRepo{}

	p := NewPersister(s, repo, vp, time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		return len(s.subs) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, s.SetViewport(types.Viewport{Center: types.GeoPoint{Lat: 1, Lon: 1}, Zoom: 3}))
	cancel()
	<-done

	assert.Equal(t, 1, vp.saveCount())
	repo.AssertNumberOfCalls(t, "ReplaceAll", 1)
}
