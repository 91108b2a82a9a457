package mapconfig

// OutputFormat describes one registered image/vector output driver.
// Instances are reference-counted within the Map that owns them; a Map
// clone gets its own copy of every entry (see cloneOutputFormatList), so
// no *OutputFormat is shared between a Map and its clones (spec.md §3
// Map entity, §4.4 "Output formats").
type OutputFormat struct {
	Name      string // registry name, e.g. "png"
	MimeType  string
	Driver    string // e.g. "GD/PNG", "AGG/PNG", "SVG"
	Extension string
	Transparent bool

	refCount int
}

// acceptedDriverPrefixes lists the driver families the Request Binder
// will bind FORMAT to (spec.md §4.2 "FORMAT").
var acceptedDriverPrefixes = []string{"GD/", "GDAL/", "AGG/", "SVG"}

// IsRenderable reports whether the driver is one the binder accepts for
// FORMAT. GetLegendGraphic does not use it: it checks its own narrower
// GD/AGG-only list.
func (o *OutputFormat) IsRenderable() bool {
	if o == nil {
		return false
	}
	for _, p := range acceptedDriverPrefixes {
		if len(o.Driver) >= len(p) && o.Driver[:len(p)] == p {
			return true
		}
	}
	return false
}

// Retain increments the reference count and returns the same instance,
// mirroring the reference-counted clone-list semantics of the source.
func (o *OutputFormat) Retain() *OutputFormat {
	if o == nil {
		return nil
	}
	o.refCount++
	return o
}

// Release decrements the reference count. The caller frees the entry
// from its owning list when it reports zero.
func (o *OutputFormat) Release() (zero bool) {
	if o == nil {
		return true
	}
	o.refCount--
	return o.refCount <= 0
}

// cloneOutputFormatList deep-clones each entry (a fresh value per Map
// clone, with its own refCount of 1) rather than sharing pointers with
// the source list or with sibling clones, so every clone is
// independently destructible.
func cloneOutputFormatList(src []*OutputFormat) []*OutputFormat {
	dst := make([]*OutputFormat, len(src))
	for i, f := range src {
		if f == nil {
			continue
		}
		clone := *f
		clone.refCount = 1
		dst[i] = &clone
	}
	return dst
}

func findOutputFormatByMime(list []*OutputFormat, mime string) *OutputFormat {
	for _, f := range list {
		if f != nil && f.MimeType == mime {
			return f
		}
	}
	return nil
}

func findOutputFormatByName(list []*OutputFormat, name string) *OutputFormat {
	for _, f := range list {
		if f != nil && f.Name == name {
			return f
		}
	}
	return nil
}
