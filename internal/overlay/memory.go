package overlay

import (
	"fmt"
	"maps"
	"sync"

	"github.com/twpayne/go-geom/encoding/geojson"
)

// Layer kinds.
const (
	LayerFill   = "fill"
	LayerLine   = "line"
	LayerSymbol = "symbol"
)

// Layer is a layer held by MemorySurface.
type Layer struct {
	ID     string         `json:"id"`
	Kind   string         `json:"type"`
	Source string         `json:"source"`
	Paint  map[string]any `json:"paint"`
	Layout map[string]any `json:"layout,omitempty"`
}

// MemorySurface is an in-process Surface. It keeps sources and layers in
// maps and exports the drawn regions as a FeatureCollection for map
// clients.
type MemorySurface struct {
	mu      sync.RWMutex
	sources map[string]*geojson.Feature
	layers  map[string]*Layer
	order   []string // source IDs in insertion order

	readyOnce sync.Once
	ready     chan struct{}
}

// NewMemorySurface returns a surface that is not yet ready.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{
		sources: make(map[string]*geojson.Feature),
		layers:  make(map[string]*Layer),
		ready:   make(chan struct{}),
	}
}

// MarkReady signals readiness. Calling it more than once is harmless.
func (m *MemorySurface) MarkReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

func (m *MemorySurface) Ready() <-chan struct{} { return m.ready }

func (m *MemorySurface) AddSource(id string, data *geojson.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("source %s: %w", id, ErrExists)
	}
	m.sources[id] = data
	m.order = append(m.order, id)
	return nil
}

func (m *MemorySurface) addLayer(l *Layer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[l.ID]; ok {
		return fmt.Errorf("layer %s: %w", l.ID, ErrExists)
	}
	if _, ok := m.sources[l.Source]; !ok {
		return fmt.Errorf("source %s: %w", l.Source, ErrNotFound)
	}
	m.layers[l.ID] = l
	return nil
}

func (m *MemorySurface) AddFillLayer(id, source string, paint FillPaint) error {
	return m.addLayer(&Layer{
		ID: id, Kind: LayerFill, Source: source,
		Paint: map[string]any{"fill-color": paint.Color, "fill-opacity": paint.Opacity},
	})
}

func (m *MemorySurface) AddBorderLayer(id, source string, paint LinePaint) error {
	return m.addLayer(&Layer{
		ID: id, Kind: LayerLine, Source: source,
		Paint: map[string]any{"line-color": paint.Color, "line-width": paint.Width},
	})
}

func (m *MemorySurface) AddLabelLayer(id, source string, style LabelStyle) error {
	return m.addLayer(&Layer{
		ID: id, Kind: LayerSymbol, Source: source,
		Layout: map[string]any{
			"text-field": style.TextField,
			"text-font":  style.Font,
			"text-size":  style.Size,
		},
		Paint: map[string]any{
			"text-color":      style.Color,
			"text-halo-color": style.HaloColor,
			"text-halo-width": style.HaloWidth,
		},
	})
}

func (m *MemorySurface) SetSourceData(id string, data *geojson.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	m.sources[id] = data
	return nil
}

func (m *MemorySurface) SetPaintProperty(layerID, property string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.layers[layerID]
	if !ok {
		return fmt.Errorf("layer %s: %w", layerID, ErrNotFound)
	}
	l.Paint[property] = value
	return nil
}

func (m *MemorySurface) SourceExists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sources[id]
	return ok
}

func (m *MemorySurface) RemoveLayer(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.layers[id]; !ok {
		return fmt.Errorf("layer %s: %w", id, ErrNotFound)
	}
	delete(m.layers, id)
	return nil
}

// RemoveSource fails while any layer still references the source.
func (m *MemorySurface) RemoveSource(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	for _, l := range m.layers {
		if l.Source == id {
			return fmt.Errorf("source %s is in use by layer %s", id, l.ID)
		}
	}
	delete(m.sources, id)
	for i, s := range m.order {
		if s == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Layer returns a copy of a layer.
func (m *MemorySurface) Layer(id string) (Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.layers[id]
	if !ok {
		return Layer{}, false
	}
	out := *l
	out.Paint = maps.Clone(l.Paint)
	out.Layout = maps.Clone(l.Layout)
	return out, true
}

// Counts returns the number of sources and layers on the surface.
func (m *MemorySurface) Counts() (sources, layers int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources), len(m.layers)
}

// FeatureCollection exports every source that has a fill layer, with the
// fill paint merged into the feature properties.
func (m *MemorySurface) FeatureCollection() *geojson.FeatureCollection {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fills := make(map[string]*Layer, len(m.layers))
	for _, l := range m.layers {
		if l.Kind == LayerFill {
			fills[l.Source] = l
		}
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(m.order))}
	for _, id := range m.order {
		fill, ok := fills[id]
		if !ok {
			continue
		}
		src := m.sources[id]
		props := maps.Clone(src.Properties)
		if props == nil {
			props = make(map[string]any, 2)
		}
		props["fillColor"] = fill.Paint["fill-color"]
		props["fillOpacity"] = fill.Paint["fill-opacity"]
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         src.ID,
			Geometry:   src.Geometry,
			Properties: props,
		})
	}
	return fc
}
