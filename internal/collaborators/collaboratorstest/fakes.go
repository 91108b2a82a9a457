// Package collaboratorstest hand-writes fakes for every interface in
// internal/collaborators, in the style of the teacher's
// service/gcs/oslayer/mockos and core/mockcore packages: plain structs
// with behavior set by the test, not code-generated mocks.
package collaboratorstest

import (
	"context"
	"errors"
	"io"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/mapconfig"
)

// Renderer is a fake collaborators.Renderer. Each method defaults to
// returning a small, deterministic payload; set the *Func fields to
// override.
type Renderer struct {
	RenderMapFunc        func(ctx context.Context, m *mapconfig.Map) (collaborators.Image, error)
	RenderLegendFunc     func(ctx context.Context, m *mapconfig.Map, scaleIndependent bool) (collaborators.Image, error)
	RenderLegendIconFunc func(ctx context.Context, m *mapconfig.Map, layer *mapconfig.Layer, class *mapconfig.Class, w, h int) (collaborators.Image, error)
	RenderErrorImageFunc func(ctx context.Context, w io.Writer, m *mapconfig.Map, blank bool) error
}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) RenderMap(ctx context.Context, m *mapconfig.Map) (collaborators.Image, error) {
	if r.RenderMapFunc != nil {
		return r.RenderMapFunc(ctx, m)
	}
	mime := "image/png"
	if f := m.ActiveOutputFormat(); f != nil {
		mime = f.MimeType
	}
	return collaborators.Image{MimeType: mime, Bytes: []byte("fake-map-image")}, nil
}

func (r *Renderer) RenderLegend(ctx context.Context, m *mapconfig.Map, scaleIndependent bool) (collaborators.Image, error) {
	if r.RenderLegendFunc != nil {
		return r.RenderLegendFunc(ctx, m, scaleIndependent)
	}
	return collaborators.Image{MimeType: "image/png", Bytes: []byte("fake-legend")}, nil
}

func (r *Renderer) RenderLegendIcon(ctx context.Context, m *mapconfig.Map, layer *mapconfig.Layer, class *mapconfig.Class, w, h int) (collaborators.Image, error) {
	if r.RenderLegendIconFunc != nil {
		return r.RenderLegendIconFunc(ctx, m, layer, class, w, h)
	}
	return collaborators.Image{MimeType: "image/png", Bytes: []byte("fake-icon")}, nil
}

func (r *Renderer) RenderErrorImage(ctx context.Context, w io.Writer, m *mapconfig.Map, blank bool) error {
	if r.RenderErrorImageFunc != nil {
		return r.RenderErrorImageFunc(ctx, w, m, blank)
	}
	_, err := w.Write([]byte("fake-error-image"))
	return err
}

// DataSource is a fake collaborators.DataSource. Results is keyed by
// layer index and consumed in QueryByPoint order.
type DataSource struct {
	OpenErr  error
	Results  map[int]collaborators.QueryResult
	QueryErr error

	opened map[*mapconfig.Layer]bool
}

func NewDataSource() *DataSource {
	return &DataSource{Results: map[int]collaborators.QueryResult{}, opened: map[*mapconfig.Layer]bool{}}
}

func (d *DataSource) LayerOpen(ctx context.Context, l *mapconfig.Layer) error {
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.opened[l] = true
	l.SetLayerInfo(struct{}{})
	return nil
}

func (d *DataSource) LayerGetItems(ctx context.Context, l *mapconfig.Layer) error {
	if !d.opened[l] {
		return errors.New("layer not open")
	}
	l.SetItems(nil)
	return nil
}

func (d *DataSource) QueryByPoint(ctx context.Context, m *mapconfig.Map, layerIndex int, mode collaborators.QueryMode, point collaborators.Point, buffer float64, maxResults int) (collaborators.QueryResult, error) {
	if d.QueryErr != nil {
		return collaborators.QueryResult{}, d.QueryErr
	}
	res, ok := d.Results[layerIndex]
	if !ok {
		return collaborators.QueryResult{Found: false}, nil
	}
	if mode == collaborators.QuerySingle && len(res.Features) > 1 {
		res.Features = res.Features[:1]
	}
	if maxResults > 0 && len(res.Features) > maxResults {
		res.Features = res.Features[:maxResults]
	}
	return res, nil
}

func (d *DataSource) LayerClose(l *mapconfig.Layer) {
	delete(d.opened, l)
}

// Projector is a fake collaborators.Projector. DifferResult and
// LoadErr let a test force specific branches in the binder's CRS logic.
type Projector struct {
	LoadErr      error
	DifferResult bool
	Box          mapconfig.Rect
}

func NewProjector() *Projector { return &Projector{} }

func (p *Projector) LoadString(dst *mapconfig.Projection, argStr string) error {
	if p.LoadErr != nil {
		return p.LoadErr
	}
	dst.Handle = argStr
	return nil
}

func (p *Projector) Differ(a, b *mapconfig.Projection) bool {
	return p.DifferResult
}

func (p *Projector) LatLonBox(extent mapconfig.Rect, proj *mapconfig.Projection) (mapconfig.Rect, error) {
	if p.Box != (mapconfig.Rect{}) {
		return p.Box, nil
	}
	return extent, nil
}

// SLDApplier is a fake collaborators.SLDApplier.
type SLDApplier struct {
	ApplyErr     error
	ApplyURLFunc func(ctx context.Context, m *mapconfig.Map, body []byte, layerIdx int) error
	GeneratedDoc string
}

func NewSLDApplier() *SLDApplier { return &SLDApplier{} }

func (s *SLDApplier) ApplyURL(ctx context.Context, m *mapconfig.Map, body []byte, layerIdx int) error {
	if s.ApplyURLFunc != nil {
		return s.ApplyURLFunc(ctx, m, body, layerIdx)
	}
	return s.ApplyErr
}

func (s *SLDApplier) ApplyBody(ctx context.Context, m *mapconfig.Map, xmlBody []byte, layerIdx int) error {
	return s.ApplyErr
}

func (s *SLDApplier) Generate(ctx context.Context, m *mapconfig.Map, layerIdx int) (string, error) {
	if s.GeneratedDoc != "" {
		return s.GeneratedDoc, nil
	}
	return "<StyledLayerDescriptor/>", nil
}

// GMLWriter is a fake collaborators.GMLWriter.
type GMLWriter struct {
	WriteErr error
}

func NewGMLWriter() *GMLWriter { return &GMLWriter{} }

func (g *GMLWriter) WriteGMLQuery(w io.Writer, m *mapconfig.Map, result collaborators.QueryResult, namespace string) error {
	if g.WriteErr != nil {
		return g.WriteErr
	}
	_, err := io.WriteString(w, "<wfs:FeatureCollection/>")
	return err
}

// Set builds a full collaborators.Set out of the fakes above.
func Set() collaborators.Set {
	return collaborators.Set{
		Renderer:   NewRenderer(),
		DataSource: NewDataSource(),
		Projector:  NewProjector(),
		SLD:        NewSLDApplier(),
		GML:        NewGMLWriter(),
	}
}
