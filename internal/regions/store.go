// Package regions holds the authoritative application state: the ordered
// region list, the timeline position, the map viewport, and transient sync
// status. All mutation goes through Store actions; readers get deep-copied
// snapshots and may subscribe to committed changes.
package regions

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"regionwatch/internal/classify"
	"regionwatch/internal/geometry"
	"regionwatch/internal/types"
)

// Status is transient feedback for clients. It is never persisted.
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// Snapshot is a consistent, deep-copied view of the store.
type Snapshot struct {
	Regions  []types.Region      `json:"regions"`
	Timeline types.TimelineState `json:"timeline"`
	Viewport types.Viewport      `json:"viewport"`
	Status   Status              `json:"status"`
	Version  uint64              `json:"version"`
}

// Region returns the region with id from the snapshot.
func (s Snapshot) Region(id string) (types.Region, bool) {
	for _, r := range s.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return types.Region{}, false
}

// NewRegion is the input of AddRegion. Empty Name, Dataset and nil Rules
// fall back to defaults.
type NewRegion struct {
	Name    string
	Points  []types.GeoPoint
	Dataset types.DatasetKind
	Rules   []types.ColorRule
}

// RegionPatch is a partial update. Nil fields are left unchanged.
type RegionPatch struct {
	Name    *string
	Points  []types.GeoPoint
	Dataset *types.DatasetKind
	Rules   *[]types.ColorRule
}

// Store is safe for concurrent use. Subscribers are invoked synchronously
// after each committed mutation, in commit order, and must not call mutating
// Store methods from inside the callback.
type Store struct {
	// notifyMu serializes commit+notify so subscribers observe changes in
	// version order.
	notifyMu sync.Mutex
	mu       sync.RWMutex

	regions  []types.Region
	timeline types.TimelineState
	viewport types.Viewport
	status   Status
	version  uint64

	subs   []subscriber
	nextID int

	clock  types.Clock
	newID  func() string
	logger *slog.Logger
}

type subscriber struct {
	id int
	fn func(Change)
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for UpdatedAt stamps.
func WithClock(c types.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator overrides region and rule ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore returns a store in its initial state: no regions, default
// timeline and viewport.
func NewStore(opts ...Option) *Store {
	s := &Store{
		timeline: types.DefaultTimeline(),
		viewport: types.DefaultViewport(),
		clock:    types.RealClock{},
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.notifyMu.Lock()
			defer s.notifyMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	regions := make([]types.Region, len(s.regions))
	for i, r := range s.regions {
		regions[i] = r.Clone()
	}
	return Snapshot{
		Regions:  regions,
		Timeline: s.timeline,
		Viewport: s.viewport,
		Status:   s.status,
		Version:  s.version,
	}
}

// Region returns a copy of the region with id.
func (s *Store) Region(id string) (types.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(id)
	if i < 0 {
		return types.Region{}, notFound(id)
	}
	return s.regions[i].Clone(), nil
}

// Timeline returns the current timeline state.
func (s *Store) Timeline() types.TimelineState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.timeline
}

func (s *Store) indexLocked(id string) int {
	for i, r := range s.regions {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func notFound(id string) error {
	return types.NewAppErrorWithDetails(
		types.ErrCodeNotFoundRegion,
		"region not found",
		nil,
		map[string]any{"region_id": id},
	)
}

// mutate runs fn under the write lock. If fn reports a change, the version
// is bumped and subscribers are notified with the committed snapshot.
func (s *Store) mutate(fn func() (Change, bool, error)) (Snapshot, error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	change, changed, err := fn()
	if err != nil || !changed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	change.Snapshot = snap
	for _, sub := range s.subs {
		sub.fn(change)
	}
	return snap, nil
}

// fillRuleIDs assigns IDs to rules that arrive without one.
func (s *Store) fillRuleIDs(rules []types.ColorRule) []types.ColorRule {
	out := make([]types.ColorRule, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			r.ID = s.newID()
		}
		out[i] = r
	}
	return out
}

func (s *Store) derive(r *types.Region) {
	r.Centroid, r.AreaKm2 = geometry.Derive(r.Points)
	r.GeodesicAreaKm2 = geometry.GeodesicArea(r.Points)
}

// AddRegion validates and appends a new region. The region starts without
// a value and with the no-data color.
func (s *Store) AddRegion(in NewRegion) (types.Region, error) {
	if err := geometry.ValidatePoints(in.Points); err != nil {
		return types.Region{}, err
	}
	dataset := in.Dataset
	if dataset == "" {
		dataset = types.DatasetTemperature
	}
	if err := types.ValidateDataset(dataset); err != nil {
		return types.Region{}, err
	}
	if in.Rules != nil {
		if err := classify.ValidateRules(in.Rules); err != nil {
			return types.Region{}, err
		}
	}

	var created types.Region
	_, err := s.mutate(func() (Change, bool, error) {
		name := in.Name
		if name == "" {
			name = fmt.Sprintf("Region %d", len(s.regions)+1)
		}
		name, err := types.ValidateName(name)
		if err != nil {
			return Change{}, false, err
		}

		r := types.Region{
			ID:        s.newID(),
			Name:      name,
			Points:    append([]types.GeoPoint(nil), in.Points...),
			Dataset:   dataset,
			UpdatedAt: s.clock.Now(),
		}
		if in.Rules != nil {
			r.Rules = s.fillRuleIDs(in.Rules)
		} else {
			r.Rules = classify.DefaultRules(s.newID)
		}
		s.derive(&r)
		r.Color = classify.ColorFor(r)

		s.regions = append(s.regions, r)
		created = r.Clone()
		return Change{Kind: ChangeRegionAdded, RegionID: r.ID, Fields: FieldAll}, true, nil
	})
	if err != nil {
		return types.Region{}, err
	}
	s.logger.Info("region added", "region_id", created.ID, "points", len(created.Points), "dataset", string(created.Dataset))
	return created, nil
}

// UpdateRegion applies a partial update. Changing points re-derives the
// geometry; changing the dataset clears the value until the next resolution.
func (s *Store) UpdateRegion(id string, patch RegionPatch) (types.Region, error) {
	var name string
	if patch.Name != nil {
		n, err := types.ValidateName(*patch.Name)
		if err != nil {
			return types.Region{}, err
		}
		name = n
	}
	if patch.Points != nil {
		if err := geometry.ValidatePoints(patch.Points); err != nil {
			return types.Region{}, err
		}
	}
	if patch.Dataset != nil {
		if err := types.ValidateDataset(*patch.Dataset); err != nil {
			return types.Region{}, err
		}
	}
	if patch.Rules != nil {
		if err := classify.ValidateRules(*patch.Rules); err != nil {
			return types.Region{}, err
		}
	}

	var updated types.Region
	_, err := s.mutate(func() (Change, bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return Change{}, false, notFound(id)
		}
		r := s.regions[i].Clone()
		var fields Field

		if patch.Name != nil && name != r.Name {
			r.Name = name
			fields |= FieldName
		}
		if patch.Points != nil && !geometry.SamePoints(patch.Points, r.Points) {
			r.Points = append([]types.GeoPoint(nil), patch.Points...)
			s.derive(&r)
			fields |= FieldPoints
		}
		if patch.Dataset != nil && *patch.Dataset != r.Dataset {
			r.Dataset = *patch.Dataset
			r.CurrentValue = nil
			fields |= FieldDataset | FieldValue
		}
		if patch.Rules != nil {
			r.Rules = s.fillRuleIDs(*patch.Rules)
			fields |= FieldRules
		}

		updated = r.Clone()
		if fields == 0 {
			return Change{}, false, nil
		}
		if color := classify.ColorFor(r); color != r.Color {
			r.Color = color
			fields |= FieldColor
		}
		r.UpdatedAt = s.clock.Now()
		s.regions[i] = r
		updated = r.Clone()
		return Change{Kind: ChangeRegionUpdated, RegionID: id, Fields: fields}, true, nil
	})
	return updated, err
}

// SetRules replaces a region's rule set and recolors it.
func (s *Store) SetRules(id string, rules []types.ColorRule) (types.Region, error) {
	if rules == nil {
		rules = []types.ColorRule{}
	}
	return s.UpdateRegion(id, RegionPatch{Rules: &rules})
}

// DeleteRegion removes a region.
func (s *Store) DeleteRegion(id string) error {
	_, err := s.mutate(func() (Change, bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return Change{}, false, notFound(id)
		}
		s.regions = append(s.regions[:i:i], s.regions[i+1:]...)
		return Change{Kind: ChangeRegionDeleted, RegionID: id, Fields: FieldAll}, true, nil
	})
	if err == nil {
		s.logger.Info("region deleted", "region_id", id)
	}
	return err
}

// SetValue records a resolved value and recolors the region. A region that
// was deleted while its value was being resolved is ignored.
func (s *Store) SetValue(id string, value float64) {
	_, _ = s.mutate(func() (Change, bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			return Change{}, false, nil
		}
		r := &s.regions[i]
		if r.CurrentValue != nil && *r.CurrentValue == value {
			return Change{}, false, nil
		}
		v := value
		r.CurrentValue = &v
		fields := FieldValue
		if color := classify.ColorFor(*r); color != r.Color {
			r.Color = color
			fields |= FieldColor
		}
		r.UpdatedAt = s.clock.Now()
		return Change{Kind: ChangeRegionUpdated, RegionID: id, Fields: fields}, true, nil
	})
}

// ReplaceRegions swaps in a full region list, typically restored from
// persistence. Geometry is re-derived, invalid entries are dropped and
// colors recomputed.
func (s *Store) ReplaceRegions(list []types.Region) int {
	clean := make([]types.Region, 0, len(list))
	for _, r := range list {
		if err := geometry.ValidatePoints(r.Points); err != nil {
			s.logger.Warn("dropping stored region with invalid points", "region_id", r.ID, "error", err)
			continue
		}
		if !r.Dataset.Valid() {
			s.logger.Warn("dropping stored region with unknown dataset", "region_id", r.ID, "dataset", string(r.Dataset))
			continue
		}
		r = r.Clone()
		if r.ID == "" {
			r.ID = s.newID()
		}
		if r.Rules == nil {
			r.Rules = []types.ColorRule{}
		}
		s.derive(&r)
		r.Color = classify.ColorFor(r)
		clean = append(clean, r)
	}

	_, _ = s.mutate(func() (Change, bool, error) {
		s.regions = clean
		return Change{Kind: ChangeRegionsReplaced, Fields: FieldAll}, true, nil
	})
	return len(clean)
}
