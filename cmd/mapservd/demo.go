package main

import (
	"context"
	"fmt"
	"io"

	"github.com/containerd/errdefs"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/wms"
)

// demoMapSource stands in for the out-of-scope mapfile parser
// (SPEC_FULL.md §1): it builds one small, valid Map Configuration Tree
// in memory so mapservd answers WMS requests out of the box. A real
// deployment wires a wms.MapSource that parses mapPath instead.
type demoMapSource struct {
	mapPath string
}

func newDemoMapSource(mapPath string) *demoMapSource {
	return &demoMapSource{mapPath: mapPath}
}

func (d *demoMapSource) Load(ctx context.Context) (*mapconfig.Map, error) {
	if d.mapPath != "" {
		log.G(ctx).WithField("map_path", d.mapPath).Warn("mapfile parsing is not implemented; serving the built-in demo map instead")
	}

	m := mapconfig.NewMap()
	m.Name = "demo"
	m.Units = mapconfig.UnitsMeters
	m.Resolution = 72
	m.Extent = mapconfig.Rect{MinX: -180, MinY: -90, MaxX: 180, MaxY: 90}
	m.Width, m.Height = 600, 300
	m.EPSGList = []string{"4326"}
	m.Web.Metadata.Set("wms_title", "mapservd demo service")
	m.Web.Metadata.Set("wms_onlineresource", "http://localhost:8080/wms")

	format := &mapconfig.OutputFormat{Name: "png", MimeType: "image/png", Driver: "AGG/PNG"}
	m.OutputFormatList = []*mapconfig.OutputFormat{format}
	m.SetActiveOutputFormat(format)

	layer := &mapconfig.Layer{
		Name:      "countries",
		Type:      mapconfig.LayerPolygon,
		Status:    mapconfig.StatusDefault,
		Queryable: true,
		EPSGList:  []string{"4326"},
	}
	layer.Metadata = mapconfig.NewHashTable()
	layer.Metadata.Set("wms_title", "Countries")
	m.Layers = []*mapconfig.Layer{layer}
	m.ResetLayerOrder()

	return m, nil
}

// newStubCollaborators wires placeholder implementations for the
// rendering, data-source, projection, and SLD collaborators
// spec.md §6 leaves out of scope, so mapservd has something to answer
// with until a real backend is wired in.
func newStubCollaborators() collaborators.Set {
	return collaborators.Set{
		Renderer:   &stubRenderer{},
		DataSource: &stubDataSource{},
		Projector:  &stubProjector{},
		SLD:        &stubSLD{},
		GML:        &stubGML{},
	}
}

type stubRenderer struct{}

func (stubRenderer) RenderMap(ctx context.Context, m *mapconfig.Map) (collaborators.Image, error) {
	mime := "image/png"
	if f := m.ActiveOutputFormat(); f != nil {
		mime = f.MimeType
	}
	return collaborators.Image{MimeType: mime, Bytes: []byte("stub-rendered-map")}, nil
}

func (stubRenderer) RenderLegend(ctx context.Context, m *mapconfig.Map, scaleIndependent bool) (collaborators.Image, error) {
	return collaborators.Image{MimeType: "image/png", Bytes: []byte("stub-rendered-legend")}, nil
}

func (stubRenderer) RenderLegendIcon(ctx context.Context, m *mapconfig.Map, layer *mapconfig.Layer, class *mapconfig.Class, w, h int) (collaborators.Image, error) {
	return collaborators.Image{MimeType: "image/png", Bytes: []byte("stub-rendered-icon")}, nil
}

func (stubRenderer) RenderErrorImage(ctx context.Context, w io.Writer, m *mapconfig.Map, blank bool) error {
	_, err := io.WriteString(w, "stub-error-image")
	return err
}

type stubDataSource struct{}

func (stubDataSource) LayerOpen(ctx context.Context, l *mapconfig.Layer) error { return nil }
func (stubDataSource) LayerGetItems(ctx context.Context, l *mapconfig.Layer) error { return nil }
func (stubDataSource) QueryByPoint(ctx context.Context, m *mapconfig.Map, layerIndex int, mode collaborators.QueryMode, point collaborators.Point, buffer float64, maxResults int) (collaborators.QueryResult, error) {
	return collaborators.QueryResult{Found: false}, nil
}
func (stubDataSource) LayerClose(l *mapconfig.Layer) {}

type stubProjector struct{}

func (stubProjector) LoadString(p *mapconfig.Projection, argStr string) error {
	p.Handle = argStr
	return nil
}

func (stubProjector) Differ(a, b *mapconfig.Projection) bool {
	return a.Handle != b.Handle
}

func (stubProjector) LatLonBox(extent mapconfig.Rect, p *mapconfig.Projection) (mapconfig.Rect, error) {
	return extent, nil
}

type stubSLD struct{}

func (stubSLD) ApplyURL(ctx context.Context, m *mapconfig.Map, body []byte, layerIdx int) error {
	return fmt.Errorf("applying SLD from URL: %w", errdefs.ErrNotImplemented)
}

func (stubSLD) ApplyBody(ctx context.Context, m *mapconfig.Map, xmlBody []byte, layerIdx int) error {
	return fmt.Errorf("applying SLD body: %w", errdefs.ErrNotImplemented)
}

func (stubSLD) Generate(ctx context.Context, m *mapconfig.Map, layerIdx int) (string, error) {
	return `<StyledLayerDescriptor version="1.0.0"/>`, nil
}

type stubGML struct{}

func (stubGML) WriteGMLQuery(w io.Writer, m *mapconfig.Map, result collaborators.QueryResult, namespace string) error {
	_, err := io.WriteString(w, `<wfs:FeatureCollection/>`)
	return err
}

var _ wms.MapSource = (*demoMapSource)(nil)
