package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"regionwatch/internal/geometry"
	"regionwatch/internal/regions"
	"regionwatch/internal/types"
)

// FailedRegion is a region whose overlay could not be rendered.
type FailedRegion struct {
	RegionID string `json:"region_id"`
	Error    string `json:"error"`
}

// Result summarizes one reconciliation pass.
type Result struct {
	Version   uint64         `json:"version"`
	Deferred  bool           `json:"deferred"`
	Skipped   bool           `json:"skipped"`
	Created   int            `json:"created"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Removed   int            `json:"removed"`
	Failed    []FailedRegion `json:"failed,omitempty"`
}

// drawn is what the reconciler last pushed to the surface for a region.
type drawn struct {
	name    string
	points  []types.GeoPoint
	dataset types.DatasetKind
	value   *float64
	color   string
}

func drawnFrom(r types.Region) drawn {
	d := drawn{
		name:    r.Name,
		points:  append([]types.GeoPoint(nil), r.Points...),
		dataset: r.Dataset,
		color:   r.Color,
	}
	if r.CurrentValue != nil {
		v := *r.CurrentValue
		d.value = &v
	}
	return d
}

func (d drawn) dataChanged(r types.Region) bool {
	if d.name != r.Name || d.dataset != r.Dataset || !geometry.SamePoints(d.points, r.Points) {
		return true
	}
	switch {
	case d.value == nil && r.CurrentValue == nil:
		return false
	case d.value == nil || r.CurrentValue == nil:
		return true
	}
	return *d.value != *r.CurrentValue
}

// Reconciler renders region snapshots onto a Surface. Requests that arrive
// before the surface is ready are deferred; the latest one is applied
// once, when readiness is signaled.
type Reconciler struct {
	surface Surface
	logger  *slog.Logger

	mu      sync.Mutex
	drawn   map[string]drawn
	order   []string
	applied uint64
	pending *regions.Snapshot
	last    Result
}

// NewReconciler creates a reconciler for surface.
func NewReconciler(surface Surface, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		surface: surface,
		logger:  logger,
		drawn:   make(map[string]drawn),
	}
}

func (r *Reconciler) ready() bool {
	select {
	case <-r.surface.Ready():
		return true
	default:
		return false
	}
}

// Reconcile brings the surface in line with snap. Snapshots older than
// one already applied are skipped.
func (r *Reconciler) Reconcile(snap regions.Snapshot) Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready() {
		if r.pending == nil || snap.Version >= r.pending.Version {
			r.pending = &snap
		}
		return Result{Version: snap.Version, Deferred: true}
	}
	return r.applyLocked(snap)
}

// Attach subscribes the reconciler to region changes in store and returns
// the unsubscribe function.
func (r *Reconciler) Attach(store *regions.Store) func() {
	unsubscribe := store.Subscribe(func(c regions.Change) {
		if c.AffectsRegions() {
			r.Reconcile(c.Snapshot)
		}
	})
	r.Reconcile(store.Snapshot())
	return unsubscribe
}

// Run waits for the surface to become ready and then applies the latest
// deferred snapshot, if any.
func (r *Reconciler) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-r.surface.Ready():
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending == nil {
		return nil
	}
	snap := *r.pending
	r.pending = nil
	res := r.applyLocked(snap)
	r.logger.InfoContext(ctx, "overlay catch-up applied",
		"version", res.Version,
		"created", res.Created,
		"failed", len(res.Failed),
	)
	return nil
}

// LastResult returns the result of the most recent applied pass.
func (r *Reconciler) LastResult() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.last
	out.Failed = slices.Clone(r.last.Failed)
	return out
}

// Drawn returns the IDs of regions currently on the surface, in the order
// they were first drawn.
func (r *Reconciler) Drawn() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

func (r *Reconciler) applyLocked(snap regions.Snapshot) Result {
	res := Result{Version: snap.Version}
	if snap.Version < r.applied {
		res.Skipped = true
		return res
	}
	r.pending = nil

	present := make(map[string]struct{}, len(snap.Regions))
	for _, region := range snap.Regions {
		present[region.ID] = struct{}{}
		if err := r.renderLocked(region, &res); err != nil {
			r.logger.Warn("failed to render region overlay", "region_id", region.ID, "error", err)
			res.Failed = append(res.Failed, FailedRegion{RegionID: region.ID, Error: err.Error()})
		}
	}

	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := present[id]; ok {
			kept = append(kept, id)
			continue
		}
		if err := r.removeLocked(id); err != nil {
			r.logger.Warn("failed to remove region overlay", "region_id", id, "error", err)
			res.Failed = append(res.Failed, FailedRegion{RegionID: id, Error: err.Error()})
			kept = append(kept, id)
			continue
		}
		res.Removed++
	}
	r.order = kept

	r.applied = snap.Version
	r.last = res
	return res
}

func (r *Reconciler) renderLocked(region types.Region, res *Result) error {
	sourceID := SourceID(region.ID)
	prev, known := r.drawn[region.ID]

	if !r.surface.SourceExists(sourceID) {
		if err := r.createLocked(region); err != nil {
			return err
		}
		if !known {
			r.order = append(r.order, region.ID)
		}
		r.drawn[region.ID] = drawnFrom(region)
		res.Created++
		return nil
	}

	dataChanged := !known || prev.dataChanged(region)
	colorChanged := !known || prev.color != region.Color
	if !dataChanged && !colorChanged {
		res.Unchanged++
		return nil
	}
	if dataChanged {
		if err := r.surface.SetSourceData(sourceID, Feature(region)); err != nil {
			return fmt.Errorf("set source data: %w", err)
		}
	}
	if colorChanged {
		if err := r.surface.SetPaintProperty(FillLayerID(region.ID), PropFillColor, region.Color); err != nil {
			return fmt.Errorf("set fill color: %w", err)
		}
	}
	if !known {
		r.order = append(r.order, region.ID)
	}
	r.drawn[region.ID] = drawnFrom(region)
	res.Updated++
	return nil
}

// createLocked adds the source and its three layers. On failure whatever
// was added is removed again, so the next pass retries the full create
// instead of treating the region as drawn.
func (r *Reconciler) createLocked(region types.Region) error {
	sourceID := SourceID(region.ID)
	if err := r.surface.AddSource(sourceID, Feature(region)); err != nil {
		return fmt.Errorf("add source: %w", err)
	}

	if err := r.addLayersLocked(region); err != nil {
		if rbErr := r.discardLocked(region.ID); rbErr != nil {
			r.logger.Warn("failed to roll back partial region overlay", "region_id", region.ID, "error", rbErr)
		}
		return err
	}
	return nil
}

func (r *Reconciler) addLayersLocked(region types.Region) error {
	sourceID := SourceID(region.ID)
	if err := r.surface.AddFillLayer(FillLayerID(region.ID), sourceID, DefaultFillPaint(region.Color)); err != nil {
		return fmt.Errorf("add fill layer: %w", err)
	}
	if err := r.surface.AddBorderLayer(BorderLayerID(region.ID), sourceID, DefaultLinePaint()); err != nil {
		return fmt.Errorf("add border layer: %w", err)
	}
	if err := r.surface.AddLabelLayer(LabelLayerID(region.ID), sourceID, DefaultLabelStyle()); err != nil {
		return fmt.Errorf("add label layer: %w", err)
	}
	return nil
}

func (r *Reconciler) removeLocked(id string) error {
	if err := r.discardLocked(id); err != nil {
		return err
	}
	delete(r.drawn, id)
	return nil
}

// discardLocked removes the layers and source of a region from the
// surface. Missing ones are ignored.
func (r *Reconciler) discardLocked(id string) error {
	for _, layer := range []string{LabelLayerID(id), BorderLayerID(id), FillLayerID(id)} {
		if err := r.surface.RemoveLayer(layer); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("remove layer %s: %w", layer, err)
		}
	}
	if err := r.surface.RemoveSource(SourceID(id)); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove source: %w", err)
	}
	return nil
}
