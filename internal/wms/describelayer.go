package wms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
)

type describeLayerResponseXML struct {
	XMLName     xml.Name             `xml:"WMT_MS_DescribeLayerResponse"`
	Version     string               `xml:"version,attr"`
	Descriptions []layerDescriptionXML `xml:"LayerDescription"`
}

type layerDescriptionXML struct {
	Name    string `xml:"name,attr"`
	OwsURL  string `xml:"owsURL,attr,omitempty"`
	OwsType string `xml:"owsType,attr,omitempty"`
	Query   string `xml:"query,attr"`
}

// handleDescribeLayer implements spec.md §4.3.4. It runs on the map
// already cloned and bound by bindAndHandle, so LAYERS has already
// selected the ON/DEFAULT layers to describe.
func handleDescribeLayer(ctx context.Context, w io.Writer, req *Request, m *mapconfig.Map, deps Deps) Status {
	_, span := oc.StartSpan(ctx, "wms.DescribeLayer")
	defer span.End()

	resp := describeLayerResponseXML{Version: req.Version.String()}
	for _, idx := range onLayerIndices(m) {
		l := m.Layers[idx]
		owsURL, owsType := layerOwsBinding(m, l)
		resp.Descriptions = append(resp.Descriptions, layerDescriptionXML{
			Name:    l.Name,
			OwsURL:  owsURL,
			OwsType: owsType,
			Query:   "1",
		})
	}

	fmt.Fprintf(w, "Content-type: text/xml\n\n")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(resp)
	_, _ = w.Write([]byte("\n"))
	return StatusSuccess
}

// layerOwsBinding resolves owsURL/owsType (spec.md §4.3.4): WFS for a
// vector layer with wfs_onlineresource, WCS for a raster layer with
// wcs_onlineresource, empty for neither. Layer-level metadata overrides
// map-level.
func layerOwsBinding(m *mapconfig.Map, l *mapconfig.Layer) (owsURL, owsType string) {
	wfs := l.Metadata.GetDefault("wfs_onlineresource", m.Metadata.GetDefault("wfs_onlineresource", ""))
	wcs := l.Metadata.GetDefault("wcs_onlineresource", m.Metadata.GetDefault("wcs_onlineresource", ""))

	switch {
	case l.Type == mapconfig.LayerRaster && wcs != "":
		return wcs, "WCS"
	case l.Type != mapconfig.LayerRaster && wfs != "":
		return wfs, "WFS"
	default:
		return "", ""
	}
}
