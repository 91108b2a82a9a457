package wms

import (
	"bytes"
	"strings"
	"testing"
)

// TestBindRejectsZeroWidth covers the spec.md §8 boundary behavior
// "WIDTH=0 or HEIGHT=0 -> exception".
func TestBindRejectsZeroWidth(t *testing.T) {
	m := testMap(t)
	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "0",
		"height", "256",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure; body=%s", status, buf.String())
	}
}

// TestBindAllowsMaxWidth covers "WIDTH=maxsize allowed".
func TestBindAllowsMaxWidth(t *testing.T) {
	m := testMap(t)
	deps := testDeps()
	deps.MaxSize = 2048

	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "2048",
		"height", "256",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, deps)

	if status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess; body=%s", status, buf.String())
	}
}

// TestBindRejectsDegenerateBBox covers "BBOX with minx==maxx -> exception".
func TestBindRejectsDegenerateBBox(t *testing.T) {
	m := testMap(t)
	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"srs", "EPSG:4326",
		"bbox", "10,0,10,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure; body=%s", status, buf.String())
	}
}

// TestBindStylesLengthMismatch confirms STYLES must align 1:1 with LAYERS.
func TestBindStylesLengthMismatch(t *testing.T) {
	m := testMap(t)
	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "streets",
		"styles", "a,b",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure; body=%s", status, buf.String())
	}
	if !strings.Contains(buf.String(), `code="StyleNotDefined"`) {
		t.Errorf("expected StyleNotDefined exception, got %q", buf.String())
	}
}

// TestBindLayersUnmatchedToken confirms an undefined LAYERS token fails
// the bind with LayerNotDefined rather than being silently dropped.
func TestBindLayersUnmatchedToken(t *testing.T) {
	m := testMap(t)
	params := paramsOf(
		"service", "WMS",
		"request", "GetMap",
		"version", "1.1.1",
		"layers", "nonexistent",
		"srs", "EPSG:4326",
		"bbox", "0,0,100,100",
		"width", "256",
		"height", "256",
		"format", "image/png",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, testDeps())

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure; body=%s", status, buf.String())
	}
	if !strings.Contains(buf.String(), `code="LayerNotDefined"`) {
		t.Errorf("expected LayerNotDefined exception, got %q", buf.String())
	}
}
