package mapconfig

// Status is the tri-state availability of a Layer or Class.
type Status int

const (
	StatusOff Status = iota
	StatusOn
	StatusDefault
)

func (s Status) String() string {
	switch s {
	case StatusOn:
		return "ON"
	case StatusDefault:
		return "DEFAULT"
	default:
		return "OFF"
	}
}

// ScaleWindow is a min/max scale-denominator bound; either side may be
// zero to mean "unbounded" on that side.
type ScaleWindow struct {
	MinScale float64
	MaxScale float64
}

// Class is one entry in a Layer's ordered class list. Classes are
// matched in order during rendering; the first whose Expression matches
// a feature wins (spec.md Data Model, Class entity).
type Class struct {
	Name       string
	Expression *Expression
	Status     Status
	Styles     []*Style
	Label      *Label
	KeyImage   string
	Text       *Expression
	Template   string
	Metadata   *HashTable
	Scale      ScaleWindow

	// ClassGroup is the style-group label the WMS STYLES parameter
	// binds to (spec.md §4.2 "STYLES").
	ClassGroup string

	layer *Layer // non-owning back-reference, reassigned on clone
}

// Layer returns the owning layer.
func (c *Class) Layer() *Layer { return c.layer }

// Clone deep-copies the class, reassigning its back-reference to parent.
func (c *Class) Clone(parent *Layer) (*Class, error) {
	if c == nil {
		return nil, nil
	}
	dst := &Class{
		Name:       c.Name,
		Expression: c.Expression.Clone(),
		Status:     c.Status,
		Label:      c.Label.Clone(),
		KeyImage:   c.KeyImage,
		Text:       c.Text.Clone(),
		Template:   c.Template,
		Metadata:   c.Metadata.Clone(),
		Scale:      c.Scale,
		ClassGroup: c.ClassGroup,
		layer:      parent,
	}
	dst.Styles = make([]*Style, len(c.Styles))
	for i, s := range c.Styles {
		dst.Styles[i] = s.Clone()
	}
	return dst, nil
}
