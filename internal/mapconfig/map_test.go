package mapconfig

import (
	"testing"
)

type fakeLoader struct{ calls int }

func (f *fakeLoader) LoadString(p *Projection, argStr string) error {
	f.calls++
	p.Handle = argStr
	return nil
}

func newTestMap() *Map {
	m := NewMap()
	m.Name = "test"
	m.Extent = Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	m.EPSGList = []string{"4326"}
	m.Projection = &Projection{Args: []string{"init=epsg:4326"}}

	format := &OutputFormat{Name: "png", MimeType: "image/png", Driver: "AGG/PNG"}
	m.OutputFormatList = []*OutputFormat{format}
	m.SetActiveOutputFormat(format)

	layer := &Layer{Name: "roads", Type: LayerLine, Status: StatusDefault, Queryable: true}
	layer.Metadata = NewHashTable()
	layer.Metadata.Set("wms_title", "Roads")
	layer.Classes = []*Class{{Name: "default", ClassGroup: "default"}}
	m.Layers = []*Layer{layer}
	m.ResetLayerOrder()

	return m
}

// TestMapCloneIdempotent confirms that cloning preserves every field the
// WMS frontend reads and resets only the transient ones (spec.md §4.4
// Clone Graph invariant).
func TestMapCloneIdempotent(t *testing.T) {
	m := newTestMap()
	loader := &fakeLoader{}

	clone, err := m.Clone(loader)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	if clone.Name != m.Name {
		t.Errorf("Name = %q, want %q", clone.Name, m.Name)
	}
	if clone.Extent != m.Extent {
		t.Errorf("Extent = %+v, want %+v", clone.Extent, m.Extent)
	}
	if len(clone.Layers) != 1 || clone.Layers[0].Name != "roads" {
		t.Fatalf("Layers = %+v, want one layer named roads", clone.Layers)
	}
	if clone.Layers[0].Map() != clone {
		t.Error("cloned layer's back-reference does not point at the clone")
	}
	if loader.calls != 1 {
		t.Errorf("projection loader called %d times, want 1", loader.calls)
	}
	if clone.Projection.Handle != "init=epsg:4326" {
		t.Errorf("Projection.Handle = %v, want rebuilt handle", clone.Projection.Handle)
	}
}

// TestMapCloneIsolatesSlices confirms mutating a clone never reaches
// back into the source (the deep-copy half of the Clone Graph contract).
func TestMapCloneIsolatesSlices(t *testing.T) {
	m := newTestMap()
	clone, err := m.Clone(&fakeLoader{})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	clone.EPSGList[0] = "3857"
	if m.EPSGList[0] != "4326" {
		t.Error("mutating clone.EPSGList mutated the source")
	}

	clone.Layers[0].Name = "roads_renamed"
	if m.Layers[0].Name != "roads" {
		t.Error("mutating a cloned layer mutated the source layer")
	}

	clone.Layers[0].Metadata.Set("wms_title", "Renamed")
	if v, _ := m.Layers[0].Metadata.Get("wms_title"); v != "Roads" {
		t.Error("mutating cloned layer metadata mutated the source metadata")
	}
}

// TestMapCloneResetsTransientFields confirms layerInfo/items/itemInfo and
// the SLD query flag never survive a clone (spec.md Data Model Layer
// invariant, spec.md §9 transient metadata).
func TestMapCloneResetsTransientFields(t *testing.T) {
	m := newTestMap()
	m.Layers[0].SetLayerInfo(struct{}{})
	m.Layers[0].SetItems([]*Item{{Name: "id", Type: "int"}})
	m.Layers[0].SetSLDQuery(true)

	clone, err := m.Clone(&fakeLoader{})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	if clone.Layers[0].LayerInfo() != nil {
		t.Error("LayerInfo survived clone")
	}
	if clone.Layers[0].Items() != nil {
		t.Error("Items survived clone")
	}
	if clone.Layers[0].SLDQuery() {
		t.Error("SLDQuery flag survived clone")
	}
}

// TestMapCloneOutputFormatRefCounting confirms the active output format
// after clone is one of the clone's own OutputFormatList entries, not a
// shared pointer into the source's list (spec.md §4.4 "Output formats").
func TestMapCloneOutputFormatRefCounting(t *testing.T) {
	m := newTestMap()
	clone, err := m.Clone(&fakeLoader{})
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}

	active := clone.ActiveOutputFormat()
	if active == nil {
		t.Fatal("clone has no active output format")
	}
	found := false
	for _, f := range clone.OutputFormatList {
		if f == active {
			found = true
		}
	}
	if !found {
		t.Error("clone's active output format is not one of its own OutputFormatList entries")
	}
	if active == m.ActiveOutputFormat() {
		t.Error("clone shares the source's OutputFormat pointer")
	}
}
