package wms

import (
	"bytes"
	"strings"
	"testing"

	"github.com/seyi/mapserver/internal/collaborators/collaboratorstest"
	"github.com/seyi/mapserver/internal/wmserrors"
)

func TestParseExceptionFormat(t *testing.T) {
	cases := map[string]ExceptionFormat{
		"":                                ExceptionSEXML,
		"application/vnd.ogc.se_xml":      ExceptionSEXML,
		"INIMAGE":                         ExceptionINIMAGE,
		"application/vnd.ogc.se_inimage":  ExceptionINIMAGE,
		"BLANK":                           ExceptionBLANK,
		"application/vnd.ogc.se_blank":    ExceptionBLANK,
		"WMS_XML":                         ExceptionWMSXML,
	}
	for in, want := range cases {
		if got := ParseExceptionFormat(in); got != want {
			t.Errorf("ParseExceptionFormat(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestWriteExceptionWMSXML confirms the legacy WMS_XML branch always
// wraps in a 1.0.0 WMTException regardless of the negotiated version.
func TestWriteExceptionWMSXML(t *testing.T) {
	req := &Request{Version: V111, ExceptionFormat: ExceptionWMSXML}
	var buf bytes.Buffer
	status := WriteException(contextForTest(), &buf, req, nil, testDeps(), wmserrors.New(wmserrors.InvalidSRS, "bad SRS"))

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure", status)
	}
	body := buf.String()
	if !strings.Contains(body, "Content-type: text/xml") {
		t.Errorf("missing text/xml content-type, got %q", body)
	}
	if !strings.Contains(body, `<WMTException version="1.0.0">`) {
		t.Errorf("missing WMTException wrapper, got %q", body)
	}
}

// TestWriteExceptionInImage confirms the INIMAGE branch renders through
// the Renderer collaborator instead of emitting XML.
func TestWriteExceptionInImage(t *testing.T) {
	m := testMap(t)
	req := &Request{Version: V111, ExceptionFormat: ExceptionINIMAGE}
	deps := testDeps()
	deps.Collaborators.Renderer = collaboratorstest.NewRenderer()

	var buf bytes.Buffer
	status := WriteException(contextForTest(), &buf, req, m, deps, wmserrors.Untyped("render failed"))

	if status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure", status)
	}
	if strings.Contains(buf.String(), "ServiceException") {
		t.Errorf("INIMAGE should not emit a ServiceException body, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "Content-type: image/png") {
		t.Errorf("missing image content-type, got %q", buf.String())
	}
}

// TestHandleDescribeLayer confirms each bound ON layer gets one
// LayerDescription element.
func TestHandleDescribeLayer(t *testing.T) {
	m := testMap(t)
	params := paramsOf(
		"service", "WMS",
		"request", "DescribeLayer",
		"version", "1.1.1",
		"layers", "streets",
	)

	var buf bytes.Buffer
	status := Dispatch(contextForTest(), &buf, m, params, testDeps())

	if status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess; body=%s", status, buf.String())
	}
	if !strings.Contains(buf.String(), `name="streets"`) {
		t.Errorf("expected a LayerDescription for streets, got %q", buf.String())
	}
}
