package mapconfig

// Scalebar is a simple attribute container controlling scalebar
// rendering; the WMS frontend never emits it directly but clones it
// because it hangs off the Map tree (spec.md §3).
type Scalebar struct {
	Status Status
	Style  int
	Width  int
	Height int
	Units  string
}

func (s *Scalebar) Clone() *Scalebar {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Legend controls the layout and style of synthesized legend graphics
// (spec.md §4.3.1 "legend URL").
type Legend struct {
	Status   Status
	KeySizeX int
	KeySizeY int
	Label    *Label
}

func (l *Legend) Clone() *Legend {
	if l == nil {
		return nil
	}
	return &Legend{
		Status:   l.Status,
		KeySizeX: l.KeySizeX,
		KeySizeY: l.KeySizeY,
		Label:    l.Label.Clone(),
	}
}

// ReferenceMap is the small "you are here" inset map configuration.
type ReferenceMap struct {
	Status Status
	Width  int
	Height int
	Extent Rect
}

func (r *ReferenceMap) Clone() *ReferenceMap {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Web carries presentation hints such as the empty-result redirect used
// by GetFeatureInfo (spec.md §4.3.3).
type Web struct {
	Empty    string
	Error    string
	Metadata *HashTable
}

func (w *Web) Clone() *Web {
	if w == nil {
		return nil
	}
	return &Web{
		Empty:    w.Empty,
		Error:    w.Error,
		Metadata: w.Metadata.Clone(),
	}
}

// QueryMap controls the visual highlight style used when rendering
// query results (SLD-driven spatial-filter GetMap, spec.md §4.3.2).
type QueryMap struct {
	Status Status
	Width  int
	Height int
	Style  string
	Color  string
}

func (q *QueryMap) Clone() *QueryMap {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}
