package wms

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// legendRenderableDrivers restricts GetLegendGraphic output to raster
// backends, narrower than the FORMAT binding GetMap accepts (spec.md
// §4.3.5 "Validate FORMAT renders via a supported raster backend").
var legendRenderableDrivers = []string{"GD/", "AGG/"}

func isLegendRenderable(f *mapconfig.OutputFormat) bool {
	if f == nil {
		return false
	}
	for _, p := range legendRenderableDrivers {
		if len(f.Driver) >= len(p) && f.Driver[:len(p)] == p {
			return true
		}
	}
	return false
}

// inchesPerUnit converts a Map's coordinate Units to inches, for the
// scale-denominator-to-extent synthesis below.
func inchesPerUnit(u mapconfig.Units) float64 {
	switch u {
	case mapconfig.UnitsFeet:
		return 12
	case mapconfig.UnitsMiles:
		return 63360
	case mapconfig.UnitsKilometers:
		return 39370.1
	case mapconfig.UnitsDegrees:
		return 4374754
	case mapconfig.UnitsInches:
		return 1
	default: // meters, pixels
		return 39.3701
	}
}

// handleGetLegendGraphic implements spec.md §4.3.5. Dispatched directly
// against master, so it clones and mutates its own copy.
func handleGetLegendGraphic(ctx context.Context, w io.Writer, req *Request, master *mapconfig.Map, deps Deps) Status {
	ctx, span := oc.StartSpan(ctx, "wms.GetLegendGraphic")
	defer span.End()

	clone, err := master.Clone(deps.Collaborators.Projector)
	if err != nil {
		return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("cloning map configuration: %v", err))
	}
	uniquifyLayerNames(clone)
	m := clone

	if exc := bindSLD(ctx, m, req, deps); exc != nil {
		return WriteException(ctx, w, req, m, deps, exc)
	}

	layerName, hasLayer := req.Params.Get("layer")
	formatName, hasFormat := req.Params.Get("format")
	if !hasLayer || !hasFormat {
		return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.MissingParameterValue, "LAYER and FORMAT are required for GetLegendGraphic"))
	}

	_, layer := m.LayerByName(layerName)
	if layer == nil {
		return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.LayerNotDefined, "LAYER %q is not defined", layerName))
	}

	format := m.OutputFormatByMime(formatName)
	if format == nil {
		format = m.OutputFormatByName(formatName)
	}
	if !isLegendRenderable(format) {
		return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.InvalidFormat, "unsupported FORMAT %q for GetLegendGraphic", formatName))
	}
	m.SetActiveOutputFormat(format)

	classGroup := ""
	if style, ok := req.Params.Get("style"); ok && !strings.EqualFold(style, "default") && style != "" {
		if !classGroupExists(layer, style) {
			return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.StyleNotDefined, "style %q is not defined for layer %q", style, layerName))
		}
		classGroup = style
		layer.Metadata.Set("_classgroup", style)
	}

	if deps.Collaborators.Renderer == nil {
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("no renderer collaborator configured"))
	}

	rule, hasRule := req.Params.Get("rule")
	if !hasRule || rule == "" {
		return renderLegendGraphicWhole(ctx, w, req, m, deps, layer)
	}
	return renderLegendGraphicIcon(ctx, w, req, m, deps, layer, rule, classGroup)
}

func classGroupExists(l *mapconfig.Layer, group string) bool {
	for _, c := range l.Classes {
		if c.ClassGroup == group {
			return true
		}
	}
	return false
}

// renderLegendGraphicWhole implements the RULE-absent branch: turn on
// only the target layer, optionally synthesize an extent for the
// requested SCALE, then render.
func renderLegendGraphicWhole(ctx context.Context, w io.Writer, req *Request, m *mapconfig.Map, deps Deps, layer *mapconfig.Layer) Status {
	for _, l := range m.Layers {
		l.Status = mapconfig.StatusOff
	}
	layer.Status = mapconfig.StatusOn

	scaleIndependent := true
	if v, ok := req.Params.Get("scale"); ok && v != "" {
		scale, err := strconv.ParseFloat(v, 64)
		if err != nil || scale <= 0 {
			return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("SCALE must be a positive number"))
		}
		synthesizeScaleExtent(m, scale, 600)
		scaleIndependent = false
	}

	img, err := deps.Collaborators.Renderer.RenderLegend(ctx, m, scaleIndependent)
	if err != nil {
		log.G(ctx).WithError(err).Error("render legend")
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("rendering legend: %v", err))
	}
	return writeLegendImage(w, m, img.MimeType, img.Bytes)
}

// synthesizeScaleExtent sets m.Extent/Width/Height to a square window
// centered on the map's current extent that renders at exactly the
// requested scale denominator at sizePx×sizePx (spec.md §4.3.5).
func synthesizeScaleExtent(m *mapconfig.Map, scale float64, sizePx int) {
	resolution := m.Resolution
	if resolution <= 0 {
		resolution = 72
	}
	width := scale * float64(sizePx) / (inchesPerUnit(m.Units) * resolution)

	cx := (m.Extent.MinX + m.Extent.MaxX) / 2
	cy := (m.Extent.MinY + m.Extent.MaxY) / 2
	half := width / 2
	m.Extent = mapconfig.Rect{MinX: cx - half, MinY: cy - half, MaxX: cx + half, MaxY: cy + half}
	m.Width, m.Height = sizePx, sizePx
}

// renderLegendGraphicIcon implements the RULE-present branch: render a
// single class icon.
func renderLegendGraphicIcon(ctx context.Context, w io.Writer, req *Request, m *mapconfig.Map, deps Deps, layer *mapconfig.Layer, rule, classGroup string) Status {
	var class *mapconfig.Class
	for _, c := range layer.Classes {
		if c.Name != rule {
			continue
		}
		if classGroup != "" && c.ClassGroup != classGroup {
			continue
		}
		class = c
		break
	}
	if class == nil {
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("RULE %q is not defined for layer %q", rule, layer.Name))
	}

	width := legendIconDimension(req, "width", m.Legend.KeySizeX, 20)
	height := legendIconDimension(req, "height", m.Legend.KeySizeY, 20)

	img, err := deps.Collaborators.Renderer.RenderLegendIcon(ctx, m, layer, class, width, height)
	if err != nil {
		log.G(ctx).WithError(err).Error("render legend icon")
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("rendering legend icon: %v", err))
	}
	return writeLegendImage(w, m, img.MimeType, img.Bytes)
}

func legendIconDimension(req *Request, name string, fallback, defaultPx int) int {
	if v, ok := req.Params.Get(name); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	if fallback > 0 {
		return fallback
	}
	return defaultPx
}

func writeLegendImage(w io.Writer, m *mapconfig.Map, mime string, bytes []byte) Status {
	if mime == "" {
		if f := m.ActiveOutputFormat(); f != nil {
			mime = f.MimeType
		}
	}
	fmt.Fprintf(w, "Content-type: %s\n\n", mime)
	_, _ = w.Write(bytes)
	return StatusSuccess
}
