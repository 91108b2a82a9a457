package wms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
	"github.com/seyi/mapserver/internal/wmserrors"
)

type capabilitiesXML struct {
	XMLName xml.Name       `xml:"WMT_MS_Capabilities"`
	Version string         `xml:"version,attr"`
	Update  string         `xml:"updateSequence,attr,omitempty"`
	Service serviceXML     `xml:"Service"`
	Capability capabilityXML `xml:"Capability"`
}

type serviceXML struct {
	Name         string          `xml:"Name"`
	Title        string          `xml:"Title,omitempty"`
	Abstract     string          `xml:"Abstract,omitempty"`
	KeywordList  *keywordListXML `xml:"KeywordList"`
	OnlineResource onlineResourceXML `xml:"OnlineResource"`
	Fees         string          `xml:"Fees,omitempty"`
	AccessConstraints string     `xml:"AccessConstraints,omitempty"`
}

type keywordListXML struct {
	Keyword []string `xml:"Keyword"`
}

type onlineResourceXML struct {
	Type string `xml:"xlink:type,attr,omitempty"`
	Href string `xml:"xlink:href,attr"`
}

type capabilityXML struct {
	Request    requestXML    `xml:"Request"`
	Exception  exceptionFormatsXML `xml:"Exception"`
	Layer      []*capLayerXML `xml:"Layer"`
}

type requestXML struct {
	GetCapabilities operationXML `xml:"GetCapabilities"`
	GetMap          operationXML `xml:"GetMap"`
	GetFeatureInfo  operationXML `xml:"GetFeatureInfo"`
	DescribeLayer   *operationXML `xml:"DescribeLayer,omitempty"`
	GetLegendGraphic *operationXML `xml:"GetLegendGraphic,omitempty"`
	GetStyles       *operationXML `xml:"GetStyles,omitempty"`
}

type operationXML struct {
	Format []string `xml:"Format"`
	DCPType dcpTypeXML `xml:"DCPType"`
}

type dcpTypeXML struct {
	HTTP httpXML `xml:"HTTP"`
}

type httpXML struct {
	Get onlineResourceWrapperXML `xml:"Get"`
}

type onlineResourceWrapperXML struct {
	OnlineResource onlineResourceXML `xml:"OnlineResource"`
}

type exceptionFormatsXML struct {
	Format []string `xml:"Format"`
}

type capLayerXML struct {
	XMLName           xml.Name          `xml:"Layer"`
	Queryable         string            `xml:"queryable,attr,omitempty"`
	Comment           string            `xml:",comment"`
	Name              string            `xml:"Name,omitempty"`
	Title             string            `xml:"Title,omitempty"`
	Abstract          string            `xml:"Abstract,omitempty"`
	KeywordList       *keywordListXML   `xml:"KeywordList"`
	SRS               []string          `xml:"SRS,omitempty"`
	LatLonBoundingBox *bboxXML          `xml:"LatLonBoundingBox"`
	BoundingBox       *bboxXML          `xml:"BoundingBox"`
	Dimension         *dimensionXML     `xml:"Dimension"`
	Extent            *extentXML        `xml:"Extent"`
	MetadataURL       *metadataURLXML   `xml:"MetadataURL"`
	DataURL           *onlineResourceXML `xml:"DataURL"`
	Style             []styleXML        `xml:"Style"`
	ScaleHint         *scaleHintXML     `xml:"ScaleHint"`
	Layer             []*capLayerXML    `xml:"Layer"`
}

type bboxXML struct {
	SRS  string  `xml:"SRS,attr,omitempty"`
	Minx float64 `xml:"minx,attr"`
	Miny float64 `xml:"miny,attr"`
	Maxx float64 `xml:"maxx,attr"`
	Maxy float64 `xml:"maxy,attr"`
}

type dimensionXML struct {
	Name    string `xml:"name,attr"`
	Units   string `xml:"units,attr"`
	Default string `xml:"default,attr,omitempty"`
}

type extentXML struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type metadataURLXML struct {
	Type           string            `xml:"type,attr,omitempty"`
	OnlineResource onlineResourceXML `xml:"OnlineResource"`
}

type styleXML struct {
	Name      string         `xml:"Name"`
	Title     string         `xml:"Title,omitempty"`
	LegendURL *legendURLXML  `xml:"LegendURL"`
}

type legendURLXML struct {
	Width          int               `xml:"width,attr"`
	Height         int               `xml:"height,attr"`
	Format         string            `xml:"Format"`
	OnlineResource onlineResourceXML `xml:"OnlineResource"`
}

type scaleHintXML struct {
	Min float64 `xml:"min,attr"`
	Max float64 `xml:"max,attr"`
}

// handleCapabilities implements spec.md §4.3.1. It runs directly
// against master (no Request Binder involvement: GetCapabilities does
// not filter layers).
func handleCapabilities(ctx context.Context, w io.Writer, req *Request, master *mapconfig.Map, deps Deps) Status {
	_, span := oc.StartSpan(ctx, "wms.GetCapabilities")
	defer span.End()

	if exc := checkUpdateSequence(req, deps); exc != nil {
		return WriteException(ctx, w, req, master, deps, exc)
	}

	floored := req.Version.FloorForCapabilities()
	mime := capabilitiesMimeType(floored)

	doc := capabilitiesXML{
		Version: floored.String(),
		Update:  deps.UpdateSequence,
		Service: buildServiceXML(floored, master),
		Capability: capabilityXML{
			Request:   buildRequestXML(floored, master),
			Exception: buildExceptionFormatsXML(floored),
		},
	}

	layers, excLayer := buildLayerTree(master, floored)
	if excLayer != nil {
		return WriteException(ctx, w, req, master, deps, excLayer)
	}
	doc.Capability.Layer = layers

	fmt.Fprintf(w, "Content-type: %s\n\n", mime)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	fmt.Fprintf(w, `<!DOCTYPE WMT_MS_Capabilities SYSTEM "%s">`+"\n", capabilitiesDTD(floored))

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		log.G(ctx).WithError(err).Error("encode capabilities")
	}
	_, _ = w.Write([]byte("\n"))
	return StatusSuccess
}

// checkUpdateSequence implements spec.md §4.3.1 "UpdateSequence":
// numeric comparison when both sides parse as integers, falling back
// to a string comparison otherwise (server sequences may be ISO
// timestamps as well as plain counters).
func checkUpdateSequence(req *Request, deps Deps) *wmserrors.Exception {
	if req.UpdateSequence == "" {
		return nil
	}
	cmp := compareUpdateSequence(req.UpdateSequence, deps.UpdateSequence)
	switch {
	case cmp == 0:
		return wmserrors.New(wmserrors.CurrentUpdateSequence, "capabilities are current at update sequence %s", deps.UpdateSequence)
	case cmp > 0:
		return wmserrors.New(wmserrors.InvalidUpdateSequence, "requested update sequence %s is greater than server sequence %s", req.UpdateSequence, deps.UpdateSequence)
	default:
		return nil
	}
}

func compareUpdateSequence(requested, server string) int {
	rn, rerr := strconv.ParseInt(requested, 10, 64)
	sn, serr := strconv.ParseInt(server, 10, 64)
	if rerr == nil && serr == nil {
		switch {
		case rn < sn:
			return -1
		case rn > sn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(requested, server)
}

func buildServiceXML(v Version, m *mapconfig.Map) serviceXML {
	s := serviceXML{
		Name:     serviceElementName(v),
		Title:    m.Web.Metadata.GetDefault("wms_title", m.Name),
		Abstract: m.Web.Metadata.GetDefault("wms_abstract", ""),
		OnlineResource: onlineResourceXML{
			Type: "simple",
			Href: m.Web.Metadata.GetDefault("wms_onlineresource", ""),
		},
		Fees:              m.Web.Metadata.GetDefault("wms_fees", "none"),
		AccessConstraints: m.Web.Metadata.GetDefault("wms_accessconstraints", "none"),
	}
	if kw := m.Web.Metadata.GetDefault("wms_keywordlist", ""); kw != "" {
		s.KeywordList = &keywordListXML{Keyword: SplitList(kw)}
	}
	return s
}

func buildRequestXML(v Version, m *mapconfig.Map) requestXML {
	href := m.Web.Metadata.GetDefault("wms_onlineresource", "")
	op := func(formats []string) operationXML {
		return operationXML{
			Format: formats,
			DCPType: dcpTypeXML{HTTP: httpXML{Get: onlineResourceWrapperXML{
				OnlineResource: onlineResourceXML{Type: "simple", Href: href},
			}}},
		}
	}
	mapFormats := formatNames(m.OutputFormatList, func(f *mapconfig.OutputFormat) bool { return f.IsRenderable() })
	legendFormats := formatNames(m.OutputFormatList, isLegendRenderable)

	return requestXML{
		GetCapabilities:  op([]string{mime(v)}),
		GetMap:           op(mapFormats),
		GetFeatureInfo:   op([]string{"MIME", "GML.1", "application/vnd.ogc.gml"}),
		DescribeLayer:    ptrOp(op([]string{"text/xml"})),
		GetLegendGraphic: ptrOp(op(legendFormats)),
		GetStyles:        ptrOp(op([]string{"application/vnd.ogc.sld+xml"})),
	}
}

func ptrOp(o operationXML) *operationXML { return &o }

func mime(v Version) string { return capabilitiesMimeType(v) }

func formatNames(list []*mapconfig.OutputFormat, pred func(*mapconfig.OutputFormat) bool) []string {
	var out []string
	for _, f := range list {
		if pred(f) {
			out = append(out, f.MimeType)
		}
	}
	return out
}

func buildExceptionFormatsXML(v Version) exceptionFormatsXML {
	if v.LT(V110) {
		return exceptionFormatsXML{Format: []string{"BLANK", "INIMAGE", "WMS_XML"}}
	}
	return exceptionFormatsXML{Format: []string{
		"application/vnd.ogc.se_xml",
		"application/vnd.ogc.se_inimage",
		"application/vnd.ogc.se_blank",
	}}
}

// buildLayerTree implements spec.md §4.3.1 "Layer hierarchy". Layers
// carrying wms_layer_group are assembled into a nested tree by path
// segment; the remaining layers are grouped flatly by consecutive
// `group` values, and appended after the nested tree. Per the REDESIGN
// FLAGS correction, a layer with both group and wms_layer_group set is
// a Service Exception rather than an inline comment.
func buildLayerTree(m *mapconfig.Map, v Version) ([]*capLayerXML, *wmserrors.Exception) {
	var nested, flat []*mapconfig.Layer
	for _, idx := range m.LayerOrder {
		l := m.Layers[idx]
		if l.WMSLayerGroup != "" && l.Group != "" {
			return nil, wmserrors.Untyped("layer %q configures both group and wms_layer_group", l.Name)
		}
		if l.WMSLayerGroup != "" {
			nested = append(nested, l)
		} else {
			flat = append(flat, l)
		}
	}

	var out []*capLayerXML
	out = append(out, buildNestedLayerTree(nested, m, v)...)
	out = append(out, buildFlatLayerGroups(flat, m, v)...)
	return out, nil
}

func buildNestedLayerTree(layers []*mapconfig.Layer, m *mapconfig.Map, v Version) []*capLayerXML {
	type node struct {
		children map[string]*node
		order    []string
		layer    *mapconfig.Layer // set if a real layer terminates exactly here
	}
	root := &node{children: map[string]*node{}}

	for _, l := range layers {
		path := l.WMSLayerGroup
		comment := ""
		if !strings.HasPrefix(path, "/") {
			comment = fmt.Sprintf("WARNING: wms_layer_group %q does not start with '/'", path)
			path = "/" + path
		}
		segs := strings.Split(strings.Trim(path, "/"), "/")
		cur := root
		for _, seg := range segs {
			if seg == "" {
				continue
			}
			child, ok := cur.children[seg]
			if !ok {
				child = &node{children: map[string]*node{}}
				cur.children[seg] = child
				cur.order = append(cur.order, seg)
			}
			cur = child
		}
		cur.layer = l
		if comment != "" {
			cur.layer.Metadata.Set("_group_comment", comment)
		}
	}

	var walk func(n *node, title string) *capLayerXML
	walk = func(n *node, title string) *capLayerXML {
		out := &capLayerXML{Name: "", Title: title}
		if n.layer != nil {
			*out = *buildLeafLayer(n.layer, m, v)
			out.Title = title
		}
		for _, seg := range n.order {
			out.Layer = append(out.Layer, walk(n.children[seg], seg))
		}
		return out
	}

	var out []*capLayerXML
	for _, seg := range root.order {
		out = append(out, walk(root.children[seg], seg))
	}
	return out
}

func buildFlatLayerGroups(layers []*mapconfig.Layer, m *mapconfig.Map, v Version) []*capLayerXML {
	var out []*capLayerXML
	i := 0
	for i < len(layers) {
		l := layers[i]
		if l.Group == "" {
			out = append(out, buildLeafLayer(l, m, v))
			i++
			continue
		}
		group := l.Group
		j := i
		wrapper := &capLayerXML{Title: group}
		for j < len(layers) && layers[j].Group == group {
			wrapper.Layer = append(wrapper.Layer, buildLeafLayer(layers[j], m, v))
			j++
		}
		out = append(out, wrapper)
		i = j
	}
	return out
}

func buildLeafLayer(l *mapconfig.Layer, m *mapconfig.Map, v Version) *capLayerXML {
	out := &capLayerXML{
		Name:     l.Name,
		Title:    l.Metadata.GetDefault("wms_title", l.Name),
		Abstract: l.Metadata.GetDefault("wms_abstract", ""),
		Comment:  l.Metadata.GetDefault("_group_comment", ""),
	}
	if l.Queryable {
		out.Queryable = "1"
	}
	if kw := l.Metadata.GetDefault("wms_keywordlist", ""); kw != "" {
		out.KeywordList = &keywordListXML{Keyword: SplitList(kw)}
	}
	out.SRS = srsElements(l, m, v)
	out.BoundingBox = &bboxXML{
		SRS:  primarySRS(l, m),
		Minx: m.Extent.MinX, Miny: m.Extent.MinY, Maxx: m.Extent.MaxX, Maxy: m.Extent.MaxY,
	}
	if l.TimeExtent != "" {
		out.Dimension = &dimensionXML{Name: "time", Units: "ISO8601"}
		out.Extent = &extentXML{Name: "time", Value: l.TimeExtent}
		if l.TimeDefault != "" {
			out.Dimension.Default = l.TimeDefault
		}
	}
	if du := l.Metadata.GetDefault("wms_dataurl", ""); du != "" {
		out.DataURL = &onlineResourceXML{Type: "simple", Href: du}
	}
	if mu := l.Metadata.GetDefault("wms_metadataurl_href", ""); mu != "" {
		out.MetadataURL = &metadataURLXML{
			Type:           l.Metadata.GetDefault("wms_metadataurl_type", "TC211"),
			OnlineResource: onlineResourceXML{Type: "simple", Href: mu},
		}
	}
	out.Style = buildStyleList(l, m)
	out.ScaleHint = scaleHint(l, m)
	return out
}

func primarySRS(l *mapconfig.Layer, m *mapconfig.Map) string {
	if len(l.EPSGList) > 0 {
		return "EPSG:" + l.EPSGList[0]
	}
	if len(m.EPSGList) > 0 {
		return "EPSG:" + m.EPSGList[0]
	}
	return ""
}

// srsElements implements spec.md §4.3.1 "SRS emission": 1.1.1 emits one
// <SRS> per code, earlier versions a single space-separated element.
func srsElements(l *mapconfig.Layer, m *mapconfig.Map, v Version) []string {
	codes := l.EPSGList
	if len(codes) == 0 {
		codes = m.EPSGList
	}
	if len(codes) == 0 {
		return nil
	}
	prefixed := make([]string, len(codes))
	for i, c := range codes {
		prefixed[i] = "EPSG:" + c
	}
	if v.EQ(V111) {
		return prefixed
	}
	return []string{strings.Join(prefixed, " ")}
}

// buildStyleList emits one <Style> per distinct non-empty classgroup,
// synthesizing a GetLegendGraphic URL when no explicit one is
// configured (spec.md §4.3.1 "legend URL").
func buildStyleList(l *mapconfig.Layer, m *mapconfig.Map) []styleXML {
	seen := map[string]bool{}
	var groups []string
	for _, c := range l.Classes {
		if c.ClassGroup == "" || seen[c.ClassGroup] {
			continue
		}
		seen[c.ClassGroup] = true
		groups = append(groups, c.ClassGroup)
	}
	sort.Strings(groups)

	var out []styleXML
	for _, g := range groups {
		width, height := m.Legend.KeySizeX, m.Legend.KeySizeY
		if width <= 0 {
			width = 20
		}
		if height <= 0 {
			height = 20
		}
		href := l.Metadata.GetDefault("wms_legendurl_href", "")
		format := "image/png"
		if href == "" {
			base := m.Web.Metadata.GetDefault("wms_onlineresource", "")
			href = fmt.Sprintf("%s?SERVICE=WMS&REQUEST=GetLegendGraphic&LAYER=%s&FORMAT=%s&STYLE=%s", base, l.Name, format, g)
		}
		out = append(out, styleXML{
			Name:  g,
			Title: g,
			LegendURL: &legendURLXML{
				Width: width, Height: height, Format: format,
				OnlineResource: onlineResourceXML{Type: "simple", Href: href},
			},
		})
	}
	return out
}

// scaleHint converts min/max scale denominators to the meters-diagonal
// values the WMS DTD declares, per the source's msWMSPrintScaleHint.
func scaleHint(l *mapconfig.Layer, m *mapconfig.Map) *scaleHintXML {
	if l.Scale.MinScale <= 0 && l.Scale.MaxScale <= 0 {
		return nil
	}
	resolution := m.Resolution
	if resolution <= 0 {
		resolution = 72
	}
	diag := math.Sqrt(2.0)
	var min, max float64
	if l.Scale.MinScale > 0 {
		min = diag * (l.Scale.MinScale / resolution) / inchesPerUnit(mapconfig.UnitsMeters)
	}
	if l.Scale.MaxScale > 0 {
		max = diag * (l.Scale.MaxScale / resolution) / inchesPerUnit(mapconfig.UnitsMeters)
	}
	return &scaleHintXML{Min: min, Max: max}
}
