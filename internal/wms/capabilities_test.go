package wms

import (
	"strings"
	"testing"

	"github.com/seyi/mapserver/internal/mapconfig"
)

// TestBuildLayerTreeGroupConflict covers the REDESIGN FLAGS correction:
// a layer configuring both Group and WMSLayerGroup is a Service
// Exception, not a silently-emitted comment.
func TestBuildLayerTreeGroupConflict(t *testing.T) {
	m := mapconfig.NewMap()
	m.Name = "demo"
	l := &mapconfig.Layer{Name: "bad", Group: "g", WMSLayerGroup: "/a/b"}
	l.Metadata = mapconfig.NewHashTable()
	m.Layers = []*mapconfig.Layer{l}
	m.ResetLayerOrder()

	_, exc := buildLayerTree(m, V111)
	if exc == nil {
		t.Fatal("expected a Service Exception, got nil")
	}
}

// TestBuildLayerTreeNested confirms a wms_layer_group path produces a
// nested <Layer> tree keyed by path segment.
func TestBuildLayerTreeNested(t *testing.T) {
	m := mapconfig.NewMap()
	m.Name = "demo"
	m.Extent = mapconfig.Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	m.EPSGList = []string{"4326"}

	a := &mapconfig.Layer{Name: "roads", WMSLayerGroup: "/transport/roads"}
	a.Metadata = mapconfig.NewHashTable()
	b := &mapconfig.Layer{Name: "rail", WMSLayerGroup: "/transport/rail"}
	b.Metadata = mapconfig.NewHashTable()
	m.Layers = []*mapconfig.Layer{a, b}
	m.ResetLayerOrder()

	tree, exc := buildLayerTree(m, V111)
	if exc != nil {
		t.Fatalf("buildLayerTree: %v", exc)
	}
	if len(tree) != 1 || tree[0].Title != "transport" {
		t.Fatalf("tree = %+v, want one top-level group named transport", tree)
	}
	if len(tree[0].Layer) != 2 {
		t.Fatalf("transport group has %d children, want 2", len(tree[0].Layer))
	}
}

// TestHandleCapabilitiesRejectsGroupConflict confirms the Service
// Exception from buildLayerTree reaches the client as a proper
// ServiceExceptionReport, not a crash or a silently-dropped layer.
func TestHandleCapabilitiesRejectsGroupConflict(t *testing.T) {
	m := testMap(t)
	m.Layers[0].Group = "g"
	m.Layers[0].WMSLayerGroup = "/a/b"

	var buf strings.Builder
	req := &Request{Version: V111}
	status := handleCapabilities(contextForTest(), &buf, req, m, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure; body=%s", status, buf.String())
	}
	if !strings.Contains(buf.String(), "ServiceException") {
		t.Errorf("expected a ServiceException body, got %q", buf.String())
	}
}
