package regions

// ChangeKind identifies the action that produced a Change.
type ChangeKind string

const (
	ChangeRegionAdded     ChangeKind = "region_added"
	ChangeRegionUpdated   ChangeKind = "region_updated"
	ChangeRegionDeleted   ChangeKind = "region_deleted"
	ChangeRegionsReplaced ChangeKind = "regions_replaced"
	ChangeTimeline        ChangeKind = "timeline"
	ChangeViewport        ChangeKind = "viewport"
	ChangeStatus          ChangeKind = "status"
)

// Field is a bit set of what a change touched.
type Field uint16

const (
	FieldName Field = 1 << iota
	FieldPoints
	FieldDataset
	FieldRules
	FieldValue
	FieldColor
	FieldMode
	FieldInstant
	FieldRange
	FieldPlaying

	FieldAll Field = 1<<iota - 1
)

// Has reports whether any of the bits in f are set.
func (f Field) Has(other Field) bool {
	return f&other != 0
}

// Change is delivered to subscribers after a mutation commits.
type Change struct {
	Kind     ChangeKind
	RegionID string
	Fields   Field
	Snapshot Snapshot
}

// RegionSetChanged reports whether regions were added, removed or replaced.
func (c Change) RegionSetChanged() bool {
	switch c.Kind {
	case ChangeRegionAdded, ChangeRegionDeleted, ChangeRegionsReplaced:
		return true
	}
	return false
}

// AffectsRegions reports whether any region data changed.
func (c Change) AffectsRegions() bool {
	return c.RegionSetChanged() || c.Kind == ChangeRegionUpdated
}
