// Package collaborators defines the external contracts spec.md §6 names
// as out-of-scope collaborators: rendering backends, data sources,
// projection arithmetic, and SLD application. internal/wms depends only
// on these interfaces.
package collaborators

import (
	"context"
	"io"

	"github.com/seyi/mapserver/internal/mapconfig"
)

// Image is an opaque rendered payload plus the MIME type it was
// produced in.
type Image struct {
	MimeType string
	Bytes    []byte
}

// QueryMode selects single- vs. multiple-feature GetFeatureInfo lookup
// (spec.md §4.3.3).
type QueryMode int

const (
	QuerySingle QueryMode = iota
	QueryMultiple
)

// Point is an image-space or map-space coordinate pair.
type Point struct {
	X, Y float64
}

// FeatureResult is one matched shape with its field values, in the
// order the data source returned them.
type FeatureResult struct {
	LayerIndex int
	FeatureID  string
	Fields     []FieldValue
}

// FieldValue is one attribute name/value pair on a FeatureResult.
type FieldValue struct {
	Name  string
	Value string
}

// QueryResult is the outcome of DataSource.QueryByPoint.
type QueryResult struct {
	Found    bool
	Features []FeatureResult
}

// Renderer produces image payloads from a bound Map. Consumed as
// render_map / render_legend / render_legend_icon / render_error_image
// in spec.md §6.
type Renderer interface {
	RenderMap(ctx context.Context, m *mapconfig.Map) (Image, error)
	RenderLegend(ctx context.Context, m *mapconfig.Map, scaleIndependent bool) (Image, error)
	RenderLegendIcon(ctx context.Context, m *mapconfig.Map, layer *mapconfig.Layer, class *mapconfig.Class, w, h int) (Image, error)
	RenderErrorImage(ctx context.Context, w io.Writer, m *mapconfig.Map, blank bool) error
}

// DataSource opens layers and answers point queries. Consumed as
// layer_open/get_shape/close and query_by_point in spec.md §6.
type DataSource interface {
	LayerOpen(ctx context.Context, l *mapconfig.Layer) error
	LayerGetItems(ctx context.Context, l *mapconfig.Layer) error
	QueryByPoint(ctx context.Context, m *mapconfig.Map, layerIndex int, mode QueryMode, point Point, buffer float64, maxResults int) (QueryResult, error)
	LayerClose(l *mapconfig.Layer)
}

// Projector implements projection arithmetic. Consumed as
// project_string_load / projections_differ / project_latlon_box in
// spec.md §1 and §6; it has no single-point (project_point_lonlat)
// operation. It also satisfies mapconfig.ProjectionLoader.
type Projector interface {
	LoadString(p *mapconfig.Projection, argStr string) error
	Differ(a, b *mapconfig.Projection) bool
	LatLonBox(extent mapconfig.Rect, p *mapconfig.Projection) (mapconfig.Rect, error)
}

// SLDApplier applies and generates Styled-Layer Descriptor documents.
// Consumed as apply_sld_url / apply_sld_body / generate_sld in
// spec.md §1, §6.
type SLDApplier interface {
	// ApplyURL is the apply_sld_url contract: the document body already
	// fetched from SLD_URL, kept as a distinct operation from ApplyBody
	// (SLD) so a real collaborator can apply its own caching/validation
	// rules for URL-sourced documents instead of treating them the same
	// as an inline SLD body.
	ApplyURL(ctx context.Context, m *mapconfig.Map, body []byte, layerIdx int) error
	ApplyBody(ctx context.Context, m *mapconfig.Map, xmlBody []byte, layerIdx int) error
	Generate(ctx context.Context, m *mapconfig.Map, layerIdx int) (string, error)
}

// GMLWriter streams a GetFeatureInfo result as GML. Consumed as
// write_gml_query in spec.md §6.
type GMLWriter interface {
	WriteGMLQuery(w io.Writer, m *mapconfig.Map, result QueryResult, namespace string) error
}

// Set bundles every collaborator the WMS frontend needs for one
// request; cmd/mapservd wires a concrete Set at startup.
type Set struct {
	Renderer   Renderer
	DataSource DataSource
	Projector  Projector
	SLD        SLDApplier
	GML        GMLWriter
}
