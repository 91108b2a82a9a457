package wms

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// handleFeatureInfo implements spec.md §4.3.3. QUERY_LAYERS is
// authoritative over the map's layer selection: every layer, DEFAULT
// ones included, is forced OFF, then re-enabled only for a
// name/map-name/group match. Unlike the LAYERS algorithm for GetMap
// (spec.md §4.2 "LAYERS"), DEFAULT layers are not kept on.
func handleFeatureInfo(ctx context.Context, w io.Writer, req *Request, m *mapconfig.Map, deps Deps) Status {
	ctx, span := oc.StartSpan(ctx, "wms.GetFeatureInfo")
	defer span.End()

	queryLayersParam, given := req.Params.Get("query_layers")
	tokens := SplitList(queryLayersParam)
	if !given || len(strings.TrimSpace(queryLayersParam)) == 0 {
		return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.LayerNotDefined, "QUERY_LAYERS parameter is required for GetFeatureInfo"))
	}

	found := 0
	for _, l := range m.Layers {
		l.Status = mapconfig.StatusOff
	}
	for _, tok := range tokens {
		for _, l := range m.Layers {
			if strings.EqualFold(l.Name, tok) || strings.EqualFold(l.Group, tok) || strings.EqualFold(m.Name, tok) {
				l.Status = mapconfig.StatusOn
				found++
			}
		}
	}
	if found == 0 {
		return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.LayerNotDefined, "layer(s) specified in QUERY_LAYERS are not offered by this service"))
	}
	for _, l := range m.Layers {
		if l.Status == mapconfig.StatusOn && !l.Queryable {
			return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.LayerNotQueryable, "layer %q is not queryable", l.Name))
		}
	}

	infoFormat := req.Params.GetDefault("info_format", "MIME")

	featureCount := 1
	if v, ok := req.Params.Get("feature_count"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			featureCount = n
		}
	}

	xStr, xGiven := req.Params.Get("x")
	yStr, yGiven := req.Params.Get("y")
	if !xGiven || !yGiven {
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("required X/Y parameters missing for GetFeatureInfo"))
	}
	px, errX := strconv.ParseFloat(xStr, 64)
	py, errY := strconv.ParseFloat(yStr, 64)
	if errX != nil || errY != nil {
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("X/Y must be numeric"))
	}

	var radius float64
	if v, ok := req.Params.Get("radius"); ok {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			radius = n
		}
	}

	cellx := (m.Extent.MaxX - m.Extent.MinX) / float64(m.Width)
	celly := (m.Extent.MaxY - m.Extent.MinY) / float64(m.Height)
	mapX := m.Extent.MinX + px*cellx
	mapY := m.Extent.MaxY - py*celly

	mode := collaborators.QuerySingle
	if featureCount != 1 {
		mode = collaborators.QueryMultiple
	}

	if deps.Collaborators.DataSource == nil {
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("no data source collaborator configured"))
	}
	result, err := deps.Collaborators.DataSource.QueryByPoint(ctx, m, -1, mode, collaborators.Point{X: mapX, Y: mapY}, radius, featureCount)
	if err != nil {
		log.G(ctx).WithError(err).Error("query by point")
		return WriteException(ctx, w, req, m, deps, wmserrors.FromCollaboratorError("query by point", err))
	}

	switch {
	case strings.EqualFold(infoFormat, "MIME") || strings.EqualFold(infoFormat, "text/plain"):
		writeFeatureInfoText(w, m, result)
		return StatusSuccess

	case strings.HasPrefix(strings.ToUpper(infoFormat), "GML") || strings.EqualFold(infoFormat, "application/vnd.ogc.gml"):
		mime := "application/vnd.ogc.gml"
		if req.Version.LT(V110) {
			mime = "text/xml"
		}
		fmt.Fprintf(w, "Content-type: %s\n\n", mime)
		if deps.Collaborators.GML == nil {
			return StatusSuccess
		}
		if err := deps.Collaborators.GML.WriteGMLQuery(w, m, result, "GMO"); err != nil {
			log.G(ctx).WithError(err).Error("write gml query")
		}
		return StatusSuccess

	default:
		configured := m.Web.Metadata.GetDefault("feature_info_mime_type", "")
		if configured != "" && strings.EqualFold(configured, infoFormat) {
			if !result.Found && m.Web.Empty != "" {
				fmt.Fprintf(w, "Content-type: text/html\n\n")
				fmt.Fprintf(w, `<html><head><meta http-equiv="refresh" content="0;url=%s"></head></html>`, m.Web.Empty)
				return StatusSuccess
			}
			fmt.Fprintf(w, "Content-type: %s\n\n", configured)
			writeFeatureInfoTemplate(w, req, m, result, configured)
			return StatusSuccess
		}
		return WriteException(ctx, w, req, m, deps, wmserrors.New(wmserrors.InvalidFormat, "unsupported INFO_FORMAT %q", infoFormat))
	}
}

// writeFeatureInfoText implements the plain-text MIME dump, matching
// spec.md §8 scenario 5 byte-for-byte: a blank line separates the
// banner from the first "Layer '<name>'" section.
func writeFeatureInfoText(w io.Writer, m *mapconfig.Map, result collaborators.QueryResult) {
	fmt.Fprintf(w, "Content-type: text/plain\n\n")
	fmt.Fprintf(w, "GetFeatureInfo results:\n")

	byLayer := map[int][]collaborators.FeatureResult{}
	order := []int{}
	for _, f := range result.Features {
		if _, ok := byLayer[f.LayerIndex]; !ok {
			order = append(order, f.LayerIndex)
		}
		byLayer[f.LayerIndex] = append(byLayer[f.LayerIndex], f)
	}

	numResults := 0
	for _, idx := range order {
		if idx < 0 || idx >= len(m.Layers) {
			continue
		}
		l := m.Layers[idx]
		fmt.Fprintf(w, "\nLayer '%s'\n", l.Name)
		include, exclude := itemVisibility(l)
		for _, feat := range byLayer[idx] {
			fmt.Fprintf(w, "  Feature %s: \n", feat.FeatureID)
			for _, field := range feat.Fields {
				if !fieldVisible(field.Name, include, exclude) {
					continue
				}
				fmt.Fprintf(w, "    %s = '%s'\n", field.Name, field.Value)
			}
			numResults++
		}
	}
	if numResults == 0 {
		fmt.Fprintf(w, "\n  Search returned no results.\n")
	}
}

// itemVisibility reads a layer's include_items/exclude_items metadata
// (spec.md §4.3.3 "respect include_items / exclude_items metadata").
// Unlike the source, an absent include_items list means "show every
// item" rather than "show nothing" — chosen to match the plain dump
// spec.md §8 scenario 5 expects with no metadata configured at all.
func itemVisibility(l *mapconfig.Layer) (include, exclude []string) {
	if v, ok := l.Metadata.Get("include_items"); ok {
		include = SplitList(v)
	}
	if v, ok := l.Metadata.Get("exclude_items"); ok {
		exclude = SplitList(v)
	}
	return include, exclude
}

func fieldVisible(name string, include, exclude []string) bool {
	visible := true
	if len(include) > 0 && !(len(include) == 1 && strings.EqualFold(include[0], "all")) {
		visible = lo.ContainsBy(include, func(s string) bool { return strings.EqualFold(s, name) })
	}
	if lo.ContainsBy(exclude, func(s string) bool { return strings.EqualFold(s, name) }) {
		visible = false
	}
	return visible
}

// writeFeatureInfoTemplate implements the limited user-template branch
// of spec.md §4.3.3: a handful of WMS parameter names are translated to
// the template engine's mapserv-style tokens before substitution.
func writeFeatureInfoTemplate(w io.Writer, req *Request, m *mapconfig.Map, result collaborators.QueryResult, mimeType string) {
	tmpl := m.Web.Metadata.GetDefault("template", "")
	if tmpl == "" {
		return
	}
	repl := strings.NewReplacer(
		"[img.x]", req.Params.GetDefault("x", ""),
		"[img.y]", req.Params.GetDefault("y", ""),
		"[layer]", req.Params.GetDefault("layers", ""),
		"[qlayer]", req.Params.GetDefault("query_layers", ""),
		"[imgext]", strings.ReplaceAll(req.Params.GetDefault("bbox", ""), ",", " "),
	)
	io.WriteString(w, repl.Replace(tmpl))
}
