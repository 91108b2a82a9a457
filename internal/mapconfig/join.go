package mapconfig

// Join describes a one-to-many join between a Layer and an external
// table, driven by the (out of scope) data-source collaborator.
type Join struct {
	Name      string
	Table     string
	From      string
	To        string
	Type      string
	ConnType  string
	Connection string

	// joinInfo is driver-specific connection state populated only after
	// the join is opened. It is a transient field: never cloned
	// (spec.md §4.4).
	joinInfo any
}

func (j *Join) Clone() *Join {
	if j == nil {
		return nil
	}
	return &Join{
		Name:       j.Name,
		Table:      j.Table,
		From:       j.From,
		To:         j.To,
		Type:       j.Type,
		ConnType:   j.ConnType,
		Connection: j.Connection,
	}
}

// Item is one field definition in a Layer's attribute schema, populated
// by the data-source collaborator's LayerGetItems.
type Item struct {
	Name string
	Type string
}

func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	return &Item{Name: i.Name, Type: i.Type}
}
