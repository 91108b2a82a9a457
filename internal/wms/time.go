package wms

import (
	"strings"
	"time"

	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// defaultTimeLayout is used when the map declares no wms_timeformat
// metadata, or none of its candidate patterns match. It accepts the
// plain ISO8601 date the OGC TIME dimension uses by default.
const defaultTimeLayout = "2006-01-02"

// applyTimeFilters implements spec.md §4.2.1: for every ON/DEFAULT layer
// that declares both a TimeExtent and a TimeItem, resolve the effective TIME value (the
// request's TIME, or the layer's TimeDefault on absence or mismatch)
// and stash it as the "time" metadata entry the data source reads.
//
// Before filtering layers it resolves the request's time pattern once,
// from the map's wms_timeformat metadata, and publishes the winner onto
// req.TimePattern (mirroring msWMSSetTimePattern/msWMSApplyTime) instead
// of mutating a package-level pattern — closing the same class of leak
// the REDESIGN FLAGS section calls out for ExceptionFormat.
func applyTimeFilters(m *mapconfig.Map, req *Request) *wmserrors.Exception {
	requested, given := req.Params.Get("time")

	if given && requested != "" {
		if patternList := m.Web.Metadata.GetDefault("wms_timeformat", ""); patternList != "" {
			req.TimePattern = selectTimePattern(patternList, requested)
		}
	}
	layout := req.TimePattern
	if layout == "" {
		layout = defaultTimeLayout
	}

	for _, idx := range onLayerIndices(m) {
		l := m.Layers[idx]
		if l.TimeExtent == "" || l.TimeItem == "" {
			continue
		}

		if !given || requested == "" {
			if l.TimeDefault == "" {
				return wmserrors.New(wmserrors.MissingDimensionValue, "layer %q requires a TIME value", l.Name)
			}
			l.Metadata.Set("time", l.TimeDefault)
			continue
		}

		if timeValueInExtent(requested, l.TimeExtent, layout) {
			l.Metadata.Set("time", requested)
			continue
		}

		if l.TimeDefault != "" && timeValueInExtent(l.TimeDefault, l.TimeExtent, layout) {
			l.Metadata.Set("time", l.TimeDefault)
			continue
		}

		return wmserrors.New(wmserrors.InvalidDimensionValue, "TIME value %q is not valid for layer %q", requested, l.Name)
	}
	return nil
}

// selectTimePattern implements msWMSSetTimePattern: patternList is a
// comma-separated list of candidate time.Parse layouts; the first one
// that parses the discrete instant extracted from requested wins. An
// empty return means no candidate matched, and the caller falls back
// to defaultTimeLayout.
func selectTimePattern(patternList, requested string) string {
	instant := extractTimeInstant(requested)
	if instant == "" {
		return ""
	}
	for _, candidate := range strings.Split(patternList, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, err := time.Parse(candidate, instant); err == nil {
			return candidate
		}
	}
	return ""
}

// extractTimeInstant mirrors msWMSSetTimePattern's own value extraction:
// a TIME value with neither "," nor "/" is a single discrete instant
// used as-is; otherwise the first comma-separated entry is taken, and
// if that entry is itself a "start/end" range, its start is used.
func extractTimeInstant(requested string) string {
	if !strings.Contains(requested, ",") && !strings.Contains(requested, "/") {
		return requested
	}
	first := strings.Split(requested, ",")[0]
	start, _, isRange := splitTimeRange(first)
	if isRange {
		return start
	}
	return first
}

// timeValueInExtent reports whether value (a single instant or a
// "start/end" range) is covered by extent, a comma-separated list of
// discrete instants and/or "start/end[/resolution]" ranges (spec.md
// §4.2.1 "Time extent syntax").
func timeValueInExtent(value, extent, layout string) bool {
	reqStart, reqEnd, isRange := splitTimeRange(value)

	for _, entry := range strings.Split(extent, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		start, end, entryIsRange := splitTimeRange(entry)
		if !entryIsRange {
			if !isRange && timeEqual(value, entry, layout) {
				return true
			}
			continue
		}
		if isRange {
			if timeLessEqual(start, reqStart, layout) && timeLessEqual(reqEnd, end, layout) {
				return true
			}
			continue
		}
		if timeLessEqual(start, value, layout) && timeLessEqual(value, end, layout) {
			return true
		}
	}
	return false
}

// splitTimeRange splits a "start/end" or "start/end/resolution" value;
// a value with no "/" is a single instant.
func splitTimeRange(v string) (start, end string, isRange bool) {
	parts := strings.Split(v, "/")
	if len(parts) < 2 {
		return v, v, false
	}
	return parts[0], parts[1], true
}

func parseTime(v, layout string) (time.Time, bool) {
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func timeEqual(a, b, layout string) bool {
	ta, aok := parseTime(a, layout)
	tb, bok := parseTime(b, layout)
	if aok && bok {
		return ta.Equal(tb)
	}
	return a == b
}

// timeLessEqual reports whether a <= b, parsing with layout when
// possible and falling back to a lexicographic comparison (which is
// correct for any ISO8601-ordered layout) otherwise.
func timeLessEqual(a, b, layout string) bool {
	ta, aok := parseTime(a, layout)
	tb, bok := parseTime(b, layout)
	if aok && bok {
		return ta.Before(tb) || ta.Equal(tb)
	}
	return a <= b
}
