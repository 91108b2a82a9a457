package wms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// bindState accumulates values scanned from the request before the
// validation phase applies them in the order spec.md §4.2 mandates.
type bindState struct {
	srsCode     string // normalized EPSG code, or "" if not given
	srsArgs     []string
	isAuto      bool

	bbox    mapconfig.Rect
	hasBBox bool

	width, height         int
	hasWidth, hasHeight   bool

	adjustExtent bool

	transparentSet bool
	transparent    bool
	bgColor        string

	formatName string
}

// Bind implements the Request Binder (spec.md §4.2): it mutates the
// cloned Map in place and returns the first exception encountered, or
// nil on success.
func Bind(ctx context.Context, m *mapconfig.Map, req *Request, deps Deps) *wmserrors.Exception {
	st := &bindState{}

	if exc := bindSLD(ctx, m, req, deps); exc != nil {
		return exc
	}
	if exc := bindLayers(m, req); exc != nil {
		return exc
	}
	if exc := bindStyles(m, req); exc != nil {
		return exc
	}
	if exc := bindSRS(st, req); exc != nil {
		return exc
	}
	if exc := bindBBox(st, req); exc != nil {
		return exc
	}
	if exc := bindSize(m, st, req, deps); exc != nil {
		return exc
	}
	bindTransparentAndBGColor(st, req)
	// bindFormat only returns an error when FORMAT was given and is
	// invalid; a missing FORMAT is deferred to the required-parameter
	// check so it only fires for GetMap.
	if exc := bindFormat(st, m, req); exc != nil {
		return exc
	}

	// --- validation phase, in the order spec.md §4.2 mandates ---

	if exc := applyTimeFilters(m, req); exc != nil {
		return exc
	}

	if st.formatName != "" {
		f := m.OutputFormatByMime(st.formatName)
		if f == nil {
			f = m.OutputFormatByName(st.formatName)
		}
		if f != nil {
			m.SetActiveOutputFormat(f)
			if st.transparentSet {
				f.Transparent = st.transparent
			}
		}
	}

	if exc := validateLayerSelection(m); exc != nil {
		return exc
	}

	if exc := validateCRS(m, st); exc != nil {
		return exc
	}

	nonSquare := false
	if st.hasBBox && st.hasWidth && st.hasHeight {
		nonSquare = checkNonSquarePixels(m, st)
		if nonSquare {
			m.ConfigOptions.Set("MS_NONSQUARE", "YES")
		}
	}

	if st.srsCode != "" {
		propagateCRS(m, st, deps, nonSquare)
	}

	if st.adjustExtent {
		adjustExtentHalfPixel(m, st)
	}

	if exc := requiredParams(req, st); exc != nil {
		return exc
	}

	return nil
}

// bindSLD fetches (if SLD is a URL) or takes inline (SLD_BODY) an SLD
// document and applies it before layer filtering, so SLD-inserted
// layers can be selected by LAYERS (spec.md §4.2 "SLD / SLD_BODY").
func bindSLD(ctx context.Context, m *mapconfig.Map, req *Request, deps Deps) *wmserrors.Exception {
	body := req.Params.GetDefault("sld_body", "")
	url := req.Params.GetDefault("sld", "")
	if body == "" && url == "" {
		return nil
	}
	if deps.Collaborators.SLD == nil {
		return wmserrors.Untyped("SLD application is not configured")
	}

	raw := []byte(body)
	apply := deps.Collaborators.SLD.ApplyBody
	if body == "" {
		fetched, err := fetchSLD(ctx, url)
		if err != nil {
			return wmserrors.Untyped("fetching SLD from %s: %v", url, err)
		}
		raw = fetched
		apply = deps.Collaborators.SLD.ApplyURL
	}

	if err := apply(ctx, m, raw, -1); err != nil {
		return wmserrors.FromCollaboratorError("applying SLD", err)
	}
	return nil
}

// fetchSLD retrieves an SLD document by URL with a bounded exponential
// backoff, matching the retry shape of the teacher's internal/cmd
// newBackOff helper.
func fetchSLD(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("sld fetch: server error %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("sld fetch: status %d", resp.StatusCode))
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// bindLayers implements the five-step LAYERS algorithm of spec.md §4.2.
func bindLayers(m *mapconfig.Map, req *Request) *wmserrors.Exception {
	layersParam, given := req.Params.Get("layers")
	tokens := SplitList(layersParam)

	inOrder := make([]int, 0, len(m.Layers))
	added := make([]bool, len(m.Layers))
	add := func(idx int) {
		if !added[idx] {
			added[idx] = true
			inOrder = append(inOrder, idx)
		}
	}

	// Step 1/2: force every non-DEFAULT layer OFF, then collect DEFAULT
	// layers in source order.
	for _, l := range m.Layers {
		if l.Status != mapconfig.StatusDefault {
			l.Status = mapconfig.StatusOff
		}
	}
	for i, l := range m.Layers {
		if l.Status == mapconfig.StatusDefault {
			add(i)
		}
	}

	// Step 3: match each token against layer name, map name, or group.
	unmatched := []string{}
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		matchedAny := false
		if strings.EqualFold(tok, m.Name) {
			for i, l := range m.Layers {
				if l.Status != mapconfig.StatusDefault {
					l.Status = mapconfig.StatusOn
				}
				add(i)
				matchedAny = true
			}
		} else {
			for i, l := range m.Layers {
				if strings.EqualFold(l.Name, tok) || strings.EqualFold(l.Group, tok) {
					if l.Status != mapconfig.StatusDefault {
						l.Status = mapconfig.StatusOn
					}
					add(i)
					matchedAny = true
				}
			}
		}
		if !matchedAny {
			unmatched = append(unmatched, tok)
		}
	}

	// Step 4: append remaining OFF layers in source order.
	for i := range m.Layers {
		add(i)
	}

	m.LayerOrder = inOrder

	// Step 5.
	if given && len(unmatched) > 0 {
		return wmserrors.New(wmserrors.LayerNotDefined, "one or more LAYERS values is not defined: %s", strings.Join(unmatched, ", "))
	}
	return nil
}

// bindStyles implements spec.md §4.2 "STYLES": positional alignment
// with LAYERS, binding each non-empty, non-"default" token to its
// layer by recording it as the layer's "_classgroup" metadata entry,
// after checking that some class of the layer has that ClassGroup.
func bindStyles(m *mapconfig.Map, req *Request) *wmserrors.Exception {
	stylesParam, given := req.Params.Get("styles")
	if !given {
		return nil
	}
	layersParam, _ := req.Params.Get("layers")
	layerTokens := SplitList(layersParam)
	styleTokens := SplitList(stylesParam)

	if len(styleTokens) != len(layerTokens) {
		return wmserrors.New(wmserrors.StyleNotDefined, "STYLES must have the same length as LAYERS")
	}

	for i, styleTok := range styleTokens {
		if styleTok == "" || strings.EqualFold(styleTok, "default") {
			continue
		}
		layerName := layerTokens[i]
		_, layer := m.LayerByName(layerName)
		if layer == nil {
			return wmserrors.New(wmserrors.StyleNotDefined, "STYLES references undefined layer %q", layerName)
		}
		if !lo.ContainsBy(layer.Classes, func(c *mapconfig.Class) bool { return c.ClassGroup == styleTok }) {
			return wmserrors.New(wmserrors.StyleNotDefined, "style %q is not defined for layer %q", styleTok, layerName)
		}
		layer.Metadata.Set("_classgroup", styleTok)
	}
	return nil
}

// bindSRS caches (but does not yet apply) the requested SRS, per
// spec.md §4.2 "SRS".
func bindSRS(st *bindState, req *Request) *wmserrors.Exception {
	srs, given := req.Params.Get("srs")
	if !given || srs == "" {
		return nil
	}
	switch {
	case strings.HasPrefix(strings.ToUpper(srs), "EPSG:"):
		code := srs[len("EPSG:"):]
		st.srsCode = code
		st.srsArgs = []string{"init=epsg:" + code}
	case strings.HasPrefix(strings.ToUpper(srs), "AUTO:"):
		parts := strings.Split(srs[len("AUTO:"):], ",")
		if len(parts) != 4 {
			return wmserrors.New(wmserrors.InvalidSRS, "malformed AUTO SRS %q", srs)
		}
		st.isAuto = true
		st.srsCode = srs
		st.srsArgs = []string{
			"proj=" + parts[0],
			"units=" + autoUnit(parts[1]),
			"lon_0=" + parts[2],
			"lat_0=" + parts[3],
		}
	default:
		return wmserrors.New(wmserrors.InvalidSRS, "unsupported SRS namespace in %q", srs)
	}
	return nil
}

func autoUnit(unitID string) string {
	switch unitID {
	case "9001":
		return "m"
	case "9002":
		return "ft"
	case "9003":
		return "us-ft"
	default:
		return "m"
	}
}

// bindBBox parses BBOX and sets AdjustExtent (spec.md §4.2 "BBOX").
func bindBBox(st *bindState, req *Request) *wmserrors.Exception {
	v, given := req.Params.Get("bbox")
	if !given {
		return nil
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return wmserrors.Untyped("BBOX must have 4 comma-separated values")
	}
	nums := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return wmserrors.Untyped("BBOX value %q is not numeric", p)
		}
		nums[i] = f
	}
	if nums[0] >= nums[2] || nums[1] >= nums[3] {
		return wmserrors.Untyped("BBOX min must be less than max")
	}
	st.bbox = mapconfig.Rect{MinX: nums[0], MinY: nums[1], MaxX: nums[2], MaxY: nums[3]}
	st.hasBBox = true
	st.adjustExtent = true
	return nil
}

// fallbackWidth/fallbackHeight are the sizes msWMSLoadGetMapParams
// restores on the map object before returning an out-of-range WIDTH/
// HEIGHT exception, so an INIMAGE/BLANK exception format still has a
// valid size to render into.
const (
	fallbackWidth  = 400
	fallbackHeight = 300
)

// bindSize parses WIDTH/HEIGHT against [1, deps.MaxSize] (spec.md §4.2
// "WIDTH, HEIGHT"). On failure it restores the 400x300 fallback size on
// m itself so an INIMAGE exception still has something to render into.
func bindSize(m *mapconfig.Map, st *bindState, req *Request, deps Deps) *wmserrors.Exception {
	maxSize := deps.MaxSize
	if maxSize <= 0 {
		maxSize = 2048
	}
	parse := func(name string) (int, bool, *wmserrors.Exception) {
		v, given := req.Params.Get(name)
		if !given {
			return 0, false, nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSize {
			return 0, false, wmserrors.New(wmserrors.MissingParameterValue, "%s must be between 1 and %d", strings.ToUpper(name), maxSize)
		}
		return n, true, nil
	}
	w, wGiven, exc := parse("width")
	if exc != nil {
		m.Width, m.Height = fallbackWidth, fallbackHeight
		return exc
	}
	h, hGiven, exc := parse("height")
	if exc != nil {
		m.Width, m.Height = fallbackWidth, fallbackHeight
		return exc
	}
	st.width, st.hasWidth = w, wGiven
	st.height, st.hasHeight = h, hGiven
	return nil
}

// bindFormat looks up an output format by MIME name (spec.md §4.2
// "FORMAT"); only GD/GDAL/AGG/SVG drivers are accepted.
func bindFormat(st *bindState, m *mapconfig.Map, req *Request) *wmserrors.Exception {
	v, given := req.Params.Get("format")
	if !given || v == "" {
		return nil
	}
	st.formatName = v
	f := m.OutputFormatByMime(v)
	if f == nil {
		f = m.OutputFormatByName(v)
	}
	if f == nil || !f.IsRenderable() {
		return wmserrors.New(wmserrors.InvalidFormat, "unsupported FORMAT %q", v)
	}
	return nil
}

func bindTransparentAndBGColor(st *bindState, req *Request) {
	if v, ok := req.Params.Get("transparent"); ok {
		st.transparentSet = true
		st.transparent = strings.EqualFold(v, "TRUE")
	}
	if v, ok := req.Params.Get("bgcolor"); ok {
		st.bgColor = v
	}
}

func validateLayerSelection(m *mapconfig.Map) *wmserrors.Exception {
	any := false
	for _, l := range m.Layers {
		if l.Status == mapconfig.StatusOn || l.Status == mapconfig.StatusDefault {
			any = true
			break
		}
	}
	if !any {
		return wmserrors.New(wmserrors.LayerNotDefined, "no layers selected")
	}
	return nil
}

// validateCRS implements spec.md §4.2 "CRS validity". Per the REDESIGN
// FLAGS / §9 note on the source's always-truthy epsgbuf check, an empty
// code is treated as "not present" rather than as a wildcard match.
func validateCRS(m *mapconfig.Map, st *bindState) *wmserrors.Exception {
	if st.srsCode == "" {
		return nil
	}
	if lo.Contains(m.EPSGList, st.srsCode) {
		return nil
	}
	onLayers := onLayerIndices(m)
	if len(onLayers) == 0 {
		return nil
	}
	allMatch := true
	for _, idx := range onLayers {
		l := m.Layers[idx]
		list := l.EPSGList
		if len(list) == 0 {
			list = m.EPSGList
		}
		if !lo.Contains(list, st.srsCode) {
			allMatch = false
			break
		}
	}
	if !allMatch {
		return wmserrors.New(wmserrors.InvalidSRS, "SRS %s is not supported by every requested layer", st.srsCode)
	}
	return nil
}

func onLayerIndices(m *mapconfig.Map) []int {
	idxs := make([]int, 0, len(m.Layers))
	for i, l := range m.Layers {
		if l.Status == mapconfig.StatusOn || l.Status == mapconfig.StatusDefault {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// checkNonSquarePixels implements spec.md §4.2 "Non-square pixel test".
func checkNonSquarePixels(m *mapconfig.Map, st *bindState) bool {
	dx := st.bbox.MaxX - st.bbox.MinX
	dy := st.bbox.MaxY - st.bbox.MinY
	if dx == 0 {
		return false
	}
	reqHeight := float64(st.width) * dy / dx
	diff := reqHeight - float64(st.height)
	if diff < 0 {
		diff = -diff
	}
	return diff > 1.0
}

// propagateCRS implements spec.md §4.2 "CRS propagation".
func propagateCRS(m *mapconfig.Map, st *bindState, deps Deps, nonSquare bool) {
	differs := true
	if deps.Collaborators.Projector != nil {
		candidate := &mapconfig.Projection{Args: st.srsArgs}
		differs = deps.Collaborators.Projector.Differ(m.Projection, candidate)
	}
	if !differs && !nonSquare {
		return
	}
	srcArgs := append([]string(nil), m.Projection.Args...)
	for _, idx := range onLayerIndices(m) {
		l := m.Layers[idx]
		if !l.Projection.HasArgs() {
			l.Projection = &mapconfig.Projection{Args: srcArgs}
		}
	}
	dst := &mapconfig.Projection{Args: st.srsArgs}
	if deps.Collaborators.Projector != nil {
		_ = deps.Collaborators.Projector.LoadString(dst, strings.Join(st.srsArgs, "+"))
	}
	m.Projection = dst
}

// adjustExtentHalfPixel implements spec.md §4.2 "Half-pixel extent
// adjustment". Per the REDESIGN FLAGS it is applied exactly once, here,
// at the end of binding — not also before parameter parsing.
func adjustExtentHalfPixel(m *mapconfig.Map, st *bindState) {
	if !st.hasBBox || !st.hasWidth || !st.hasHeight {
		return
	}
	dx := (st.bbox.MaxX - st.bbox.MinX) / float64(st.width) / 2
	dy := (st.bbox.MaxY - st.bbox.MinY) / float64(st.height) / 2
	m.Extent = mapconfig.Rect{
		MinX: st.bbox.MinX + dx,
		MinY: st.bbox.MinY + dy,
		MaxX: st.bbox.MaxX - dx,
		MaxY: st.bbox.MaxY - dy,
	}
	m.Width = st.width
	m.Height = st.height
}

// requiredParams implements spec.md §4.2 "Required-parameter check":
// SRS, BBOX, WIDTH, HEIGHT for GetMap/GetFeatureInfo, plus FORMAT for
// GetMap. DescribeLayer is exempt.
func requiredParams(req *Request, st *bindState) *wmserrors.Exception {
	op := strings.ToLower(req.Operation)
	if op != "getmap" && op != "map" && op != "getfeatureinfo" && op != "feature_info" {
		return nil
	}
	missing := []string{}
	if st.srsCode == "" {
		missing = append(missing, "SRS")
	}
	if !st.hasBBox {
		missing = append(missing, "BBOX")
	}
	if !st.hasWidth {
		missing = append(missing, "WIDTH")
	}
	if !st.hasHeight {
		missing = append(missing, "HEIGHT")
	}
	if (op == "getmap" || op == "map") && st.formatName == "" {
		missing = append(missing, "FORMAT")
	}
	if len(missing) > 0 {
		return wmserrors.New(wmserrors.MissingParameterValue, "missing required parameter(s): %s", strings.Join(missing, ", "))
	}
	return nil
}
