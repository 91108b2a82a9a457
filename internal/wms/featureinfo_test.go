package wms

import (
	"bytes"
	"testing"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/collaborators/collaboratorstest"
)

// TestGetFeatureInfoPlainText covers spec.md §8 scenario 5 byte-for-byte.
func TestGetFeatureInfoPlainText(t *testing.T) {
	m := testMap(t)

	ds := collaboratorstest.NewDataSource()
	ds.Results[-1] = collaborators.QueryResult{
		Found: true,
		Features: []collaborators.FeatureResult{
			{
				LayerIndex: 0,
				FeatureID:  "7",
				Fields: []collaborators.FieldValue{
					{Name: "id", Value: "7"},
					{Name: "name", Value: "Main"},
				},
			},
		},
	}
	deps := testDeps()
	deps.Collaborators.DataSource = ds

	params := paramsOf(
		"service", "WMS",
		"request", "GetFeatureInfo",
		"version", "1.1.1",
		"layers", "streets",
		"query_layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
		"info_format", "MIME",
		"x", "10",
		"y", "10",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, deps)

	if status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess; body=%s", status, buf.String())
	}

	body := buf.String()
	want := "Content-type: text/plain\n\nGetFeatureInfo results:\n\nLayer 'streets'\n  Feature 7: \n    id = '7'\n    name = 'Main'\n"
	if body != want {
		t.Errorf("body = %q, want %q", body, want)
	}
}

// TestGetFeatureInfoRequiresQueryLayers confirms an absent QUERY_LAYERS
// is rejected rather than silently querying every layer.
func TestGetFeatureInfoRequiresQueryLayers(t *testing.T) {
	m := testMap(t)
	deps := testDeps()

	params := paramsOf(
		"service", "WMS",
		"request", "GetFeatureInfo",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
		"x", "10",
		"y", "10",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, deps)

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure", status)
	}
	if want := `code="LayerNotDefined"`; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Errorf("expected %s in body, got %q", want, buf.String())
	}
}
