package mapconfig

import "fmt"

// Units is the map's coordinate unit.
type Units int

const (
	UnitsPixels Units = iota
	UnitsMeters
	UnitsFeet
	UnitsDegrees
	UnitsMiles
	UnitsKilometers
	UnitsInches
)

// Map is the root of the configuration tree (spec.md Data Model, Map
// entity). A server loads exactly one master Map (via the out-of-scope
// mapfile parser) and clones it once per request.
type Map struct {
	Name   string
	Width  int
	Height int
	Extent Rect

	Cellsize   float64
	Units      Units
	Resolution float64 // DPI

	ImageColor string
	ImageType  string // active output format name

	OutputFormatList []*OutputFormat

	Projection   *Projection
	ReferenceMap *ReferenceMap
	Scalebar     *Scalebar
	Legend       *Legend
	QueryMap     *QueryMap
	Web          *Web
	FontSet      *FontSet
	SymbolSet    *SymbolSet

	Layers []*Layer

	// LayerOrder is a permutation of [0, len(Layers)) giving draw order;
	// the Request Binder rewrites it from LAYERS (spec.md §4.2).
	LayerOrder []int

	ConfigOptions *HashTable // internal behavior flags, e.g. MS_NONSQUARE
	Metadata      *HashTable // WMS-facing map-level metadata (wms_title, ...)

	// EPSGList is the map-wide set of CRS codes advertised in
	// Capabilities and checked during CRS validation (spec.md §4.2
	// "CRS validity").
	EPSGList []string

	MapPath   string
	ShapePath string
	Debug     bool

	UpdateSequence string

	LabelCache  *LabelCache
	ResultCache *ResultCache
}

// NewMap returns an empty, consistent Map (identity LayerOrder, non-nil
// maps) suitable as a starting point for tests and for the mapfile
// parser (out of scope) to populate.
func NewMap() *Map {
	return &Map{
		Units:         UnitsMeters,
		ConfigOptions: NewHashTable(),
		Metadata:      NewHashTable(),
		FontSet:       NewFontSet(),
		SymbolSet:     NewSymbolSet(),
		Web:           &Web{Metadata: NewHashTable()},
		Legend:        &Legend{},
		LabelCache:    NewLabelCache(),
		ResultCache:   NewResultCache(),
	}
}

// LayerByName returns the layer whose Name matches (case-sensitive, per
// spec.md which normalizes uniqueness but not lookup case).
func (m *Map) LayerByName(name string) (int, *Layer) {
	for i, l := range m.Layers {
		if l.Name == name {
			return i, l
		}
	}
	return -1, nil
}

// OutputFormatByMime looks up a registered output format by MIME type.
func (m *Map) OutputFormatByMime(mime string) *OutputFormat {
	return findOutputFormatByMime(m.OutputFormatList, mime)
}

// OutputFormatByName looks up a registered output format by name.
func (m *Map) OutputFormatByName(name string) *OutputFormat {
	return findOutputFormatByName(m.OutputFormatList, name)
}

// ActiveOutputFormat returns the OutputFormat named by ImageType, which
// must always point into OutputFormatList (spec.md §4.4 invariant).
func (m *Map) ActiveOutputFormat() *OutputFormat {
	return m.OutputFormatByName(m.ImageType)
}

// SetActiveOutputFormat rebinds ImageType, decrementing the previous
// format's reference count (freeing it from the list on drop to zero)
// and retaining the new one, per spec.md §4.4 "Output formats".
func (m *Map) SetActiveOutputFormat(f *OutputFormat) {
	if prev := m.ActiveOutputFormat(); prev != nil && prev != f {
		if prev.Release() {
			m.removeOutputFormat(prev)
		}
	}
	if f != nil {
		f.Retain()
		m.ImageType = f.Name
	}
}

func (m *Map) removeOutputFormat(f *OutputFormat) {
	for i, o := range m.OutputFormatList {
		if o == f {
			m.OutputFormatList = append(m.OutputFormatList[:i], m.OutputFormatList[i+1:]...)
			return
		}
	}
}

// ResetLayerOrder sets LayerOrder to the identity permutation
// [0, 1, ..., len(Layers)-1] (spec.md §4.2 step 1).
func (m *Map) ResetLayerOrder() {
	m.LayerOrder = make([]int, len(m.Layers))
	for i := range m.Layers {
		m.LayerOrder[i] = i
	}
}

// ValidateLayerOrder checks the spec.md §8 invariant: LayerOrder is a
// permutation of [0, len(Layers)).
func (m *Map) ValidateLayerOrder() error {
	n := len(m.Layers)
	if len(m.LayerOrder) != n {
		return fmt.Errorf("layerorder has %d entries, want %d", len(m.LayerOrder), n)
	}
	seen := make([]bool, n)
	for _, idx := range m.LayerOrder {
		if idx < 0 || idx >= n {
			return fmt.Errorf("layerorder index %d out of range [0,%d)", idx, n)
		}
		if seen[idx] {
			return fmt.Errorf("layerorder index %d repeated", idx)
		}
		seen[idx] = true
	}
	return nil
}

// Clone deep-copies the entire configuration tree. Back-references are
// reassigned to the new Map; transient per-request fields (layerInfo,
// items, joinInfo) start nil; LabelCache/ResultCache are fresh and
// empty (spec.md §4.4, §3).
func (m *Map) Clone(load ProjectionLoader) (*Map, error) {
	if m == nil {
		return nil, nil
	}
	proj, err := m.Projection.Clone(load)
	if err != nil {
		return nil, &CloneError{Entity: "Map", Name: m.Name, Err: err}
	}
	dst := &Map{
		Name:             m.Name,
		Width:            m.Width,
		Height:           m.Height,
		Extent:           m.Extent,
		Cellsize:         m.Cellsize,
		Units:            m.Units,
		Resolution:       m.Resolution,
		ImageColor:       m.ImageColor,
		ImageType:        m.ImageType,
		OutputFormatList: cloneOutputFormatList(m.OutputFormatList),
		Projection:       proj,
		ReferenceMap:     m.ReferenceMap.Clone(),
		Scalebar:         m.Scalebar.Clone(),
		Legend:           m.Legend.Clone(),
		QueryMap:         m.QueryMap.Clone(),
		Web:              m.Web.Clone(),
		FontSet:          m.FontSet.Clone(),
		SymbolSet:        m.SymbolSet.Clone(),
		ConfigOptions:    m.ConfigOptions.Clone(),
		Metadata:         m.Metadata.Clone(),
		EPSGList:         append([]string(nil), m.EPSGList...),
		MapPath:          m.MapPath,
		ShapePath:        m.ShapePath,
		Debug:            m.Debug,
		UpdateSequence:   m.UpdateSequence,
		LabelCache:       m.LabelCache.Clone(),
		ResultCache:      m.ResultCache.Clone(),
		LayerOrder:       append([]int(nil), m.LayerOrder...),
	}
	// Every OutputFormat clone starts at refCount 1 (owned solely by
	// dst). ImageType was copied verbatim, and ActiveOutputFormat looks
	// it up by name, so the active format already resolves to dst's own
	// copy.
	dst.Layers = make([]*Layer, len(m.Layers))
	for i, l := range m.Layers {
		cl, err := l.Clone(dst, load)
		if err != nil {
			return nil, &CloneError{Entity: "Map", Name: m.Name, Err: err}
		}
		dst.Layers[i] = cl
	}
	return dst, nil
}
