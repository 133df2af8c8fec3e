// Package timeline drives timeline playback and renders timeline labels.
package timeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"regionwatch/internal/regions"
	"regionwatch/internal/types"
)

// DefaultInterval is the time between playback steps.
const DefaultInterval = 100 * time.Millisecond

// Playback advances the single-instant position one hour per interval.
// When the next step would reach the end of the window it stops and
// restores the instant it started from.
type Playback struct {
	store    *regions.Store
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPlayback creates a stopped playback driver.
func NewPlayback(store *regions.Store, interval time.Duration, logger *slog.Logger) *Playback {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Playback{store: store, interval: interval, logger: logger}
}

// Playing reports whether the driver loop is running.
func (p *Playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Start begins playback. The loop outlives ctx's cancellation (typically a
// request context) and is stopped by Stop, Reset, Run's shutdown, or
// reaching the end of the window.
func (p *Playback) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return types.NewAppError(types.ErrCodeConflictPlaying, "playback is already running", nil)
	}

	initial := p.store.Timeline().Instant
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	p.store.SetPlaying(true)
	go p.loop(loopCtx, initial, done)
	p.logger.InfoContext(ctx, "playback started", "from", initial)
	return nil
}

func (p *Playback) loop(ctx context.Context, initial int, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		tl := p.store.Timeline()
		if !tl.Playing {
			// Cleared elsewhere, e.g. a timeline reset.
			p.detach(done)
			return
		}

		next := tl.Instant + 1
		if next >= types.WindowHours {
			p.store.SetPlaying(false)
			if err := p.store.SetInstant(initial); err != nil {
				p.logger.Warn("failed to restore playback start", "instant", initial, "error", err)
			}
			p.detach(done)
			p.logger.Info("playback reached end of window", "restored", initial)
			return
		}
		if err := p.store.SetInstant(next); err != nil {
			p.logger.Warn("playback step rejected", "instant", next, "error", err)
		}
	}
}

// detach clears the running state if done still belongs to the current
// loop.
func (p *Playback) detach(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.cancel()
		p.cancel = nil
		p.done = nil
	}
}

// Stop pauses playback without restoring the starting instant.
func (p *Playback) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	p.store.SetPlaying(false)
}

// Reset stops playback and restores the default timeline.
func (p *Playback) Reset() {
	p.Stop()
	p.store.ResetTimeline()
}

// Run blocks until ctx is done, then stops playback. It ties the loop to
// the process lifetime.
func (p *Playback) Run(ctx context.Context) error {
	<-ctx.Done()
	p.Stop()
	return nil
}
