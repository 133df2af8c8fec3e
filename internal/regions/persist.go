package regions

import (
	"context"
	"log/slog"
	"time"

	"regionwatch/internal/types"
)

// DefaultPersistDebounce is how long the persister waits for further
// changes before writing.
const DefaultPersistDebounce = 500 * time.Millisecond

// RegionRepository stores the ordered region list.
type RegionRepository interface {
	List(ctx context.Context) ([]types.Region, error)
	ReplaceAll(ctx context.Context, regions []types.Region) error
}

// ViewportRepository stores the map camera.
type ViewportRepository interface {
	Get(ctx context.Context) (*types.Viewport, error)
	Save(ctx context.Context, v types.Viewport) error
}

// Persister restores regions and viewport at startup and writes them back
// after changes. The timeline and status are never persisted.
type Persister struct {
	store     *Store
	regions   RegionRepository
	viewports ViewportRepository
	debounce  time.Duration
	logger    *slog.Logger

	dirty chan struct{}
}

// NewPersister creates a persister. A zero debounce uses the default.
func NewPersister(store *Store, regions RegionRepository, viewports ViewportRepository, debounce time.Duration, logger *slog.Logger) *Persister {
	if debounce <= 0 {
		debounce = DefaultPersistDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		store:     store,
		regions:   regions,
		viewports: viewports,
		debounce:  debounce,
		logger:    logger,
		dirty:     make(chan struct{}, 1),
	}
}

// Restore loads persisted state into the store.
func (p *Persister) Restore(ctx context.Context) error {
	list, err := p.regions.List(ctx)
	if err != nil {
		return err
	}
	kept := p.store.ReplaceRegions(list)

	vp, err := p.viewports.Get(ctx)
	if err != nil {
		return err
	}
	if vp != nil {
		if err := p.store.SetViewport(*vp); err != nil {
			p.logger.WarnContext(ctx, "ignoring invalid stored viewport", "error", err)
		}
	}

	p.logger.InfoContext(ctx, "state restored", "regions", kept, "stored", len(list))
	return nil
}

// Run subscribes to the store and writes debounced changes until ctx is
// cancelled, then flushes once more.
func (p *Persister) Run(ctx context.Context) error {
	unsubscribe := p.store.Subscribe(p.onChange)
	defer unsubscribe()

	var timer *time.Timer
	var fire <-chan time.Time
	pending := false

	for {
		select {
		case <-ctx.Done():
			select {
			case <-p.dirty:
				pending = true
			default:
			}
			if pending {
				flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				p.flush(flushCtx)
				cancel()
			}
			return nil
		case <-p.dirty:
			pending = true
			if timer == nil {
				timer = time.NewTimer(p.debounce)
			} else {
				timer.Reset(p.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			pending = false
			p.flush(ctx)
		}
	}
}

func (p *Persister) onChange(c Change) {
	switch {
	case c.AffectsRegions(), c.Kind == ChangeViewport:
	default:
		return
	}
	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

// Flush writes the current state immediately.
func (p *Persister) Flush(ctx context.Context) error {
	snap := p.store.Snapshot()
	if err := p.regions.ReplaceAll(ctx, snap.Regions); err != nil {
		return err
	}
	return p.viewports.Save(ctx, snap.Viewport)
}

func (p *Persister) flush(ctx context.Context) {
	if err := p.Flush(ctx); err != nil {
		p.logger.ErrorContext(ctx, "failed to persist state", "error", err)
	}
}
