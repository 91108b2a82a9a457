package wms

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/collaborators/collaboratorstest"
	"github.com/seyi/mapserver/internal/mapconfig"
)

func contextForTest() context.Context { return context.Background() }

func testMap(t *testing.T) *mapconfig.Map {
	t.Helper()
	m := mapconfig.NewMap()
	m.Name = "demo"
	m.Units = mapconfig.UnitsMeters
	m.Resolution = 72
	m.Extent = mapconfig.Rect{MinX: 0, MinY: 0, MaxX: 100, MaxY: 100}
	m.Width, m.Height = 400, 400
	m.EPSGList = []string{"4326"}
	m.Projection = &mapconfig.Projection{Args: []string{"init=epsg:4326"}}

	format := &mapconfig.OutputFormat{Name: "png", MimeType: "image/png", Driver: "AGG/PNG"}
	m.OutputFormatList = []*mapconfig.OutputFormat{format}
	m.SetActiveOutputFormat(format)

	streets := &mapconfig.Layer{
		Name:      "streets",
		Type:      mapconfig.LayerLine,
		Status:    mapconfig.StatusDefault,
		Queryable: true,
		EPSGList:  []string{"4326"},
	}
	streets.Metadata = mapconfig.NewHashTable()
	streets.Classes = []*mapconfig.Class{{Name: "default", ClassGroup: "default"}}
	m.Layers = []*mapconfig.Layer{streets}
	m.ResetLayerOrder()
	return m
}

func testDeps() Deps {
	return Deps{
		Collaborators:  collaboratorstest.Set(),
		UpdateSequence: "5",
		MaxSize:        2048,
	}
}

func paramsOf(kv ...string) Params {
	p := make(Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		p = append(p, Param{Name: kv[i], Value: kv[i+1]})
	}
	return p
}

// TestDispatchFilter covers spec.md §8 scenario 1: a request with no
// SERVICE/VERSION/REQUEST is not a WMS request at all.
func TestDispatchFilter(t *testing.T) {
	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, testMap(t), paramsOf("foo", "bar"), testDeps())

	if status != StatusDone {
		t.Errorf("status = %v, want StatusDone", status)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// TestDispatchCapabilitiesDefaultVersion covers spec.md §8 scenario 2.
func TestDispatchCapabilitiesDefaultVersion(t *testing.T) {
	var buf bytes.Buffer
	params := paramsOf("service", "WMS", "request", "GetCapabilities")
	status := Dispatch(contextForTest(), &buf, testMap(t), params, testDeps())

	if status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess; body=%s", status, buf.String())
	}
	body := buf.String()
	if !strings.Contains(body, "Content-type: application/vnd.ogc.wms_xml") {
		t.Errorf("missing expected MIME header, got %q", body)
	}
	if !strings.Contains(body, `<WMT_MS_Capabilities version="1.1.1" updateSequence="5">`) {
		t.Errorf("missing expected root element with version 1.1.1, got %q", body)
	}
	if !strings.Contains(body, "<Name>OGC:WMS</Name>") {
		t.Errorf("missing expected Service Name, got %q", body)
	}
}

// TestDispatchUpdateSequenceEqual covers spec.md §8 scenario 7 and the
// boundary-behavior invariant on equal UpdateSequence values.
func TestDispatchUpdateSequenceEqual(t *testing.T) {
	var buf bytes.Buffer
	params := paramsOf("service", "WMS", "request", "GetCapabilities", "updatesequence", "5")
	status := Dispatch(contextForTest(), &buf, testMap(t), params, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure", status)
	}
	body := buf.String()
	if !strings.Contains(body, `code="CurrentUpdateSequence"`) {
		t.Errorf("expected CurrentUpdateSequence exception, got %q", body)
	}
	if strings.Contains(body, "WMT_MS_Capabilities") {
		t.Errorf("no capabilities document should be emitted, got %q", body)
	}
}

// TestDispatchGetMapInvalidSRS covers spec.md §8 scenario 3: a map that
// only advertises EPSG:4326 rejects a GetMap in EPSG:3857.
func TestDispatchGetMapInvalidSRS(t *testing.T) {
	var buf bytes.Buffer
	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:3857",
		"bbox", "0,0,100,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
	)
	status := Dispatch(contextForTest(), &buf, testMap(t), params, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure; body=%s", status, buf.String())
	}
	if !strings.Contains(buf.String(), `code="InvalidSRS"`) {
		t.Errorf("expected InvalidSRS exception, got %q", buf.String())
	}
}

// TestDispatchGetMapNonSquarePixels covers spec.md §8 scenario 4: a
// BBOX/WIDTH/HEIGHT combination whose aspect ratio does not match the
// image size sets MS_NONSQUARE on the clone actually rendered, and the
// map projection is propagated to every layer lacking one.
func TestDispatchGetMapNonSquarePixels(t *testing.T) {
	m := testMap(t)
	m.Layers[0].Projection = &mapconfig.Projection{}

	var seen *mapconfig.Map
	renderer := &collaboratorstest.Renderer{
		RenderMapFunc: func(ctx context.Context, mm *mapconfig.Map) (collaborators.Image, error) {
			seen = mm
			return collaborators.Image{MimeType: "image/png", Bytes: []byte("ok")}, nil
		},
	}
	deps := testDeps()
	deps.Collaborators.Renderer = renderer

	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "0,0,10,5",
		"width", "200",
		"height", "200",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, deps)

	if status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess; body=%s", status, buf.String())
	}
	if seen == nil {
		t.Fatal("renderer was never invoked")
	}
	if v, _ := seen.ConfigOptions.Get("MS_NONSQUARE"); v != "YES" {
		t.Errorf("MS_NONSQUARE = %q, want YES", v)
	}
	if !seen.Layers[0].Projection.HasArgs() {
		t.Error("layer projection was not propagated from the map projection")
	}
}

// TestDispatchTimeDefaultFallback covers spec.md §8 scenario 6: TIME
// omitted falls back to the layer's timedefault with no exception.
func TestDispatchTimeDefaultFallback(t *testing.T) {
	m := testMap(t)
	m.Layers[0].TimeExtent = "2004-01-01/2004-12-31"
	m.Layers[0].TimeItem = "date"
	m.Layers[0].TimeDefault = "2004-06-01"

	renderer := &collaboratorstest.Renderer{
		RenderMapFunc: func(ctx context.Context, mm *mapconfig.Map) (collaborators.Image, error) {
			return collaborators.Image{MimeType: "image/png", Bytes: []byte("ok")}, nil
		},
	}
	deps := testDeps()
	deps.Collaborators.Renderer = renderer

	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, deps)

	if status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess; body=%s", status, buf.String())
	}
	if strings.Contains(buf.String(), "ServiceException") {
		t.Errorf("expected no exception, got %q", buf.String())
	}
}
