package mapconfig

// LayerType is the geometry/rendering kind of a Layer.
type LayerType int

const (
	LayerPoint LayerType = iota
	LayerLine
	LayerPolygon
	LayerRaster
	LayerAnnotation
	LayerTileIndex
)

// Rect is a geographic or pixel-space bounding box, minx,miny,maxx,maxy.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Layer is one entry in a Map's ordered layer list (spec.md Data Model,
// Layer entity).
type Layer struct {
	Name  string
	Group string // single-level group label, may be empty

	// WMSLayerGroup is the "/A/B/C" hierarchical path from the
	// wms_layer_group metadata key (spec.md §4.3.1 "Nested groups").
	// It is cached here (rather than re-read from Metadata on every
	// Capabilities walk) because binding it once lets the Capabilities
	// handler detect the Group+WMSLayerGroup conflict spec.md §9 and
	// the REDESIGN FLAGS call out.
	WMSLayerGroup string

	Status Status
	Type   LayerType

	ConnectionInfo string
	ConnectionType string
	Projection     *Projection

	Classes []*Class
	Joins   []*Join

	Processing []string // processing directives, "key=value" strings
	Metadata   *HashTable
	Scale      ScaleWindow
	Opacity    int // 0-100

	Queryable bool

	// EPSGList is the set of CRS codes this layer explicitly advertises
	// (distinct from the map-wide set); empty means "inherits the map's
	// list" for CRS-validity purposes (spec.md §4.2 "CRS validity").
	EPSGList []string

	// TimeExtent/TimeItem/TimeDefault back the metadata keys
	// "timeextent"/"timeitem"/"timedefault" consumed by §4.2.1. They are
	// surfaced as typed fields because the time filter is exercised on
	// every GetMap/GetFeatureInfo request.
	TimeExtent  string
	TimeItem    string
	TimeDefault string

	// Transient, populated only by DataSource.LayerOpen /
	// LayerGetItems; never cloned (spec.md Data Model Layer invariant).
	layerInfo any
	items     []*Item
	itemInfo  any

	// sldQuery is the ephemeral tmp_wms_sld_query flag (spec.md §9
	// "SLD-driven transient layer metadata"): set by the binder when an
	// SLD spatial filter targets this layer, read by GetMap, and never
	// persisted.
	sldQuery bool

	m *Map // non-owning back-reference, reassigned on clone
}

// Map returns the owning map.
func (l *Layer) Map() *Map { return l.m }

// Items returns the field schema populated by LayerGetItems, or nil if
// the layer has not been opened.
func (l *Layer) Items() []*Item { return l.items }

// SetItems is called by the data-source collaborator after a successful
// LayerGetItems.
func (l *Layer) SetItems(items []*Item) { l.items = items }

// LayerInfo / SetLayerInfo / ItemInfo / SetItemInfo expose the opaque
// driver state slots DataSource.LayerOpen populates.
func (l *Layer) LayerInfo() any          { return l.layerInfo }
func (l *Layer) SetLayerInfo(v any)      { l.layerInfo = v }
func (l *Layer) ItemInfo() any           { return l.itemInfo }
func (l *Layer) SetItemInfo(v any)       { l.itemInfo = v }

// SLDQuery / SetSLDQuery access the transient per-request SLD spatial
// filter flag.
func (l *Layer) SLDQuery() bool      { return l.sldQuery }
func (l *Layer) SetSLDQuery(v bool)  { l.sldQuery = v }

// Clone deep-copies the layer, reassigning its back-reference to parent
// and leaving layerInfo/items/itemInfo nil per the Layer invariant.
func (l *Layer) Clone(parent *Map, load ProjectionLoader) (*Layer, error) {
	if l == nil {
		return nil, nil
	}
	proj, err := l.Projection.Clone(load)
	if err != nil {
		return nil, &CloneError{Entity: "Layer", Name: l.Name, Err: err}
	}
	dst := &Layer{
		Name:           l.Name,
		Group:          l.Group,
		WMSLayerGroup:  l.WMSLayerGroup,
		Status:         l.Status,
		Type:           l.Type,
		ConnectionInfo: l.ConnectionInfo,
		ConnectionType: l.ConnectionType,
		Projection:     proj,
		Processing:     append([]string(nil), l.Processing...),
		Metadata:       l.Metadata.Clone(),
		Scale:          l.Scale,
		Opacity:        l.Opacity,
		Queryable:      l.Queryable,
		EPSGList:       append([]string(nil), l.EPSGList...),
		TimeExtent:     l.TimeExtent,
		TimeItem:       l.TimeItem,
		TimeDefault:    l.TimeDefault,
		m:              parent,
	}
	dst.Classes = make([]*Class, len(l.Classes))
	for i, c := range l.Classes {
		cc, err := c.Clone(dst)
		if err != nil {
			return nil, &CloneError{Entity: "Layer", Name: l.Name, Err: err}
		}
		dst.Classes[i] = cc
	}
	dst.Joins = make([]*Join, len(l.Joins))
	for i, j := range l.Joins {
		dst.Joins[i] = j.Clone()
	}
	return dst, nil
}
