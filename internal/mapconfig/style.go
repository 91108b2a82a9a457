package mapconfig

// Style is a rendering attribute container for a Class (color, symbol,
// size, offsets, ...). Fields beyond what the WMS frontend reads are
// opaque to this package and carried as a generic attribute bag so the
// renderer collaborator (out of scope per spec.md §1) sees everything
// the mapfile parser populated.
type Style struct {
	Symbol string
	Size   float64
	Color  string

	Attrs *HashTable
}

func (s *Style) Clone() *Style {
	if s == nil {
		return nil
	}
	return &Style{
		Symbol: s.Symbol,
		Size:   s.Size,
		Color:  s.Color,
		Attrs:  s.Attrs.Clone(),
	}
}

// Label is a text-placement attribute container for a Class.
type Label struct {
	Font   string
	Size   float64
	Color  string
	Attrs  *HashTable
}

func (l *Label) Clone() *Label {
	if l == nil {
		return nil
	}
	return &Label{
		Font:  l.Font,
		Size:  l.Size,
		Color: l.Color,
		Attrs: l.Attrs.Clone(),
	}
}
