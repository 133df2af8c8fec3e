// Package orchestrator keeps region values in step with the timeline. It
// watches the store for changes that affect resolution, coalesces bursts,
// and resolves regions one at a time so the provider sees bounded load.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"regionwatch/internal/metrics"
	"regionwatch/internal/regions"
	"regionwatch/internal/types"
)

// Defaults for Config.
const (
	DefaultDebounce    = 300 * time.Millisecond
	DefaultMaxWait     = time.Second
	DefaultRegionDelay = 100 * time.Millisecond
)

// State is the orchestrator's coarse state, exposed for status reporting.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateResolving  State = "resolving"
)

// Resolver is the part of series.Resolver the orchestrator needs.
type Resolver interface {
	Resolve(ctx context.Context, loc types.GeoPoint, kind types.DatasetKind, tl types.TimelineState) (float64, error)
}

// Config tunes triggering and pacing.
type Config struct {
	// Debounce is the quiet period after the last trigger before a cycle starts.
	Debounce time.Duration
	// MaxWait caps how long a continuous stream of triggers (playback) can
	// postpone a cycle.
	MaxWait time.Duration
	// RegionDelay is the pause between consecutive regions within a cycle.
	// Zero means the default; negative disables it.
	RegionDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MaxWait < c.Debounce {
		c.MaxWait = max(DefaultMaxWait, c.Debounce)
	}
	switch {
	case c.RegionDelay == 0:
		c.RegionDelay = DefaultRegionDelay
	case c.RegionDelay < 0:
		c.RegionDelay = 0
	}
	return c
}

// RegionError records why one region failed to resolve.
type RegionError struct {
	RegionID string          `json:"region_id"`
	Name     string          `json:"name"`
	Code     types.ErrorCode `json:"code"`
	Message  string          `json:"message"`
}

// CycleReport summarizes one resolution cycle.
type CycleReport struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Version    uint64              `json:"snapshot_version"`
	Timeline   types.TimelineState `json:"timeline"`
	Resolved   int                 `json:"resolved"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
	Errors     []RegionError       `json:"errors,omitempty"`
}

// Orchestrator drives resolution cycles. Cycles never overlap.
type Orchestrator struct {
	store    *regions.Store
	resolver Resolver
	cfg      Config
	metrics  metrics.Recorder
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	trigger chan struct{}
	cycleMu sync.Mutex

	mu    sync.RWMutex
	state State
	last  *CycleReport
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = metrics.OrNoop(m) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSleepFunc overrides the inter-region delay, for tests.
func WithSleepFunc(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// New creates an orchestrator. Call Run to start reacting to store changes.
func New(store *regions.Store, resolver Resolver, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		resolver: resolver,
		cfg:      cfg.withDefaults(),
		metrics:  metrics.Noop{},
		logger:   slog.Default(),
		sleep:    sleepCtx,
		trigger:  make(chan struct{}, 1),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ShouldTrigger reports whether a store change requires re-resolution:
// timeline position or mode moved, the region set changed size, or a
// region's geometry or dataset was edited.
func ShouldTrigger(c regions.Change) bool {
	switch {
	case c.Kind == regions.ChangeTimeline:
		return c.Fields.Has(regions.FieldMode | regions.FieldInstant | regions.FieldRange)
	case c.RegionSetChanged():
		return true
	case c.Kind == regions.ChangeRegionUpdated:
		return c.Fields.Has(regions.FieldPoints | regions.FieldDataset)
	}
	return false
}

// Trigger requests a cycle. Bursts collapse into one pending request.
func (o *Orchestrator) Trigger() {
	select {
	case o.trigger <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) onChange(c regions.Change) {
	if ShouldTrigger(c) {
		o.Trigger()
	}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// LastReport returns the most recent cycle report, if any.
func (o *Orchestrator) LastReport() *CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	r := *o.last
	r.Errors = append([]RegionError(nil), o.last.Errors...)
	return &r
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run subscribes to the store and processes triggers until ctx is done. A
// trigger arriving during a cycle schedules exactly one follow-up cycle.
func (o *Orchestrator) Run(ctx context.Context) error {
	unsubscribe := o.store.Subscribe(o.onChange)
	defer unsubscribe()

	// Resolve whatever was restored before we subscribed.
	o.Trigger()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.trigger:
		}

		if !o.debounce(ctx) {
			return nil
		}
		o.RunCycle(ctx)
	}
}

// debounce waits until triggers stop for cfg.Debounce or cfg.MaxWait has
// elapsed since the first one. It returns false if ctx ended.
func (o *Orchestrator) debounce(ctx context.Context) bool {
	o.setState(StateDebouncing)
	deadline := time.NewTimer(o.cfg.MaxWait)
	defer deadline.Stop()
	quiet := time.NewTimer(o.cfg.Debounce)
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			o.setState(StateIdle)
			return false
		case <-o.trigger:
			quiet.Reset(o.cfg.Debounce)
		case <-quiet.C:
			return true
		case <-deadline.C:
			return true
		}
	}
}

// RunCycle resolves every region in the current snapshot sequentially and
// writes successes back to the store. Failures leave the region untouched,
// surface an error on the store, and do not stop the loop. Concurrent calls
// are serialized.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleReport {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	o.setState(StateResolving)
	defer o.setState(StateIdle)

	snap := o.store.Snapshot()
	report := CycleReport{
		StartedAt: time.Now().UTC(),
		Version:   snap.Version,
		Timeline:  snap.Timeline,
	}
	if len(snap.Regions) == 0 {
		report.FinishedAt = report.StartedAt
		o.record(ctx, report)
		return report
	}

	o.store.SetLoading(true)
	o.store.ClearError()
	defer o.store.SetLoading(false)

	for i, region := range snap.Regions {
		if ctx.Err() != nil {
			report.Skipped = len(snap.Regions) - i
			break
		}
		if i > 0 {
			if err := o.sleep(ctx, o.cfg.RegionDelay); err != nil {
				report.Skipped = len(snap.Regions) - i
				break
			}
		}

		value, err := o.resolver.Resolve(ctx, region.Centroid, region.Dataset, snap.Timeline)
		if err != nil {
			report.Failed++
			re := regionError(region, err)
			report.Errors = append(report.Errors, re)
			o.store.SetError(fmt.Sprintf("%s: %s", region.Name, re.Message))
			o.logger.WarnContext(ctx, "region resolution failed",
				"region_id", region.ID,
				"dataset", string(region.Dataset),
				"code", string(re.Code),
				"error", err,
			)
			continue
		}

		report.Resolved++
		o.store.SetValue(region.ID, value)
	}

	report.FinishedAt = time.Now().UTC()
	o.record(ctx, report)
	o.logger.InfoContext(ctx, "sync cycle complete",
		"regions", len(snap.Regions),
		"resolved", report.Resolved,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report
}

func (o *Orchestrator) record(ctx context.Context, report CycleReport) {
	o.mu.Lock()
	o.last = &report
	o.mu.Unlock()
	o.metrics.RecordCycle(ctx, report.Resolved, report.Failed, report.FinishedAt.Sub(report.StartedAt))
}

func regionError(region types.Region, err error) RegionError {
	re := RegionError{RegionID: region.ID, Name: region.Name, Code: types.ErrCodeInternalUnexpected, Message: err.Error()}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		re.Code = appErr.Code
		re.Message = appErr.Message
	}
	return re
}
