package wms

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// Status is a handler's outcome (spec.md §4.1).
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	// StatusDone means "not a WMS request; pass to another service".
	StatusDone
)

// Deps bundles everything the dispatcher and handlers need beyond the
// request itself: the rendering/data/projection/SLD collaborators, the
// server's own UpdateSequence, and binder limits.
type Deps struct {
	Collaborators  collaborators.Set
	UpdateSequence string
	MaxSize        int // spec.md §4.2 "WIDTH, HEIGHT"
}

// Request is the per-call state the Dispatcher builds and the Binder
// and handlers mutate. ExceptionFormat lives here, not in a package
// variable, per the REDESIGN FLAGS correction to spec.md §9's
// "Global exception-format state" note.
type Request struct {
	Params          Params
	Service         string
	Operation       string
	Version         Version
	UpdateSequence  string
	ExceptionFormat ExceptionFormat
	Format          string

	// TimePattern is the winning wms_timeformat candidate
	// applyTimeFilters selected for this request (spec.md §4.2.1), or
	// empty if none matched. It is published here rather than into a
	// package-level variable, per the REDESIGN FLAGS correction to
	// spec.md §9's "Global exception-format state" note, which applies
	// equally to the source's msWMSSetTimePattern pattern override.
	TimePattern string
}

// Dispatch implements spec.md §4.1: it scans the shared params,
// resolves version/exceptions, and routes to the matching operation.
func Dispatch(ctx context.Context, w io.Writer, master *mapconfig.Map, params Params, deps Deps) Status {
	req := &Request{
		Params:          params,
		Service:         params.GetDefault("service", ""),
		Operation:       params.GetDefault("request", ""),
		UpdateSequence:  params.GetDefault("updatesequence", ""),
		ExceptionFormat: ParseExceptionFormat(params.GetDefault("exceptions", "")),
		Format:          params.GetDefault("format", ""),
	}

	versionStr := params.GetDefault("version", "")
	if versionStr == "" {
		versionStr = params.GetDefault("wmtver", "")
	}
	req.Version = ParseVersion(versionStr)

	ctx, span := oc.StartSpan(ctx, "wms.Dispatch")
	defer span.End()
	ctx = log.WithField(ctx, "operation", req.Operation)

	hasService := req.Service != ""
	hasVersion := versionStr != ""
	hasOperation := req.Operation != ""

	if !hasService && !hasVersion && !hasOperation {
		return StatusDone
	}
	if hasService && !strings.EqualFold(req.Service, "WMS") {
		return StatusDone
	}

	if req.Version.BadFormat() {
		req.Version = Version{notSet: true}
		return WriteException(ctx, w, req, master, deps, wmserrors.New(wmserrors.NoCode, "invalid VERSION value %q", versionStr))
	}

	op := strings.ToLower(req.Operation)
	switch op {
	case "getcapabilities", "capabilities":
		if req.Version.NotSet() {
			req.Version = V111
		}
		// spec.md §4.1 step 5: SERVICE is only excused for the oldest
		// (pre-1.0.7) clients; 1.0.7+ must name SERVICE=WMS explicitly.
		if !hasService && req.Version.GTE(V107) {
			return WriteException(ctx, w, req, master, deps, wmserrors.New(wmserrors.ServiceNotDefined, "SERVICE parameter is required"))
		}
		return handleCapabilities(ctx, w, req, master, deps)

	case "getmap", "map":
		if req.Version.NotSet() {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("VERSION is required"))
		}
		return bindAndHandle(ctx, w, req, master, deps, handleGetMap)

	case "getfeatureinfo", "feature_info":
		if req.Version.NotSet() {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("VERSION is required"))
		}
		return bindAndHandle(ctx, w, req, master, deps, handleFeatureInfo)

	case "describelayer":
		if req.Version.NotSet() {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("VERSION is required"))
		}
		return bindAndHandle(ctx, w, req, master, deps, handleDescribeLayer)

	case "getlegendgraphic":
		if req.Version.NotSet() {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("VERSION is required"))
		}
		return handleGetLegendGraphic(ctx, w, req, master, deps)

	case "getstyles":
		if req.Version.NotSet() {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("VERSION is required"))
		}
		return handleGetStyles(ctx, w, req, master, deps)

	case "getcontext":
		if req.Version.NotSet() {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("VERSION is required"))
		}
		return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("GetContext is not supported"))

	default:
		if hasService {
			return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("Incomplete or unsupported WMS request: %s", req.Operation))
		}
		return StatusDone
	}
}

type operationHandler func(ctx context.Context, w io.Writer, req *Request, m *mapconfig.Map, deps Deps) Status

// bindAndHandle clones master, uniquifies layer names, runs the Request
// Binder, and only then invokes handler (spec.md §4.1 step 6: "after
// uniquifying layer names, call Request Binder ... then the handler").
func bindAndHandle(ctx context.Context, w io.Writer, req *Request, master *mapconfig.Map, deps Deps, handler operationHandler) Status {
	clone, err := master.Clone(deps.Collaborators.Projector)
	if err != nil {
		return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("cloning map configuration: %v", err))
	}
	uniquifyLayerNames(clone)

	if exc := Bind(ctx, clone, req, deps); exc != nil {
		return WriteException(ctx, w, req, clone, deps, exc)
	}
	return handler(ctx, w, req, clone, deps)
}

// uniquifyLayerNames disambiguates duplicate layer names by appending a
// numeric suffix, so LAYERS matching is unambiguous (spec.md §4.1 step 6).
func uniquifyLayerNames(m *mapconfig.Map) {
	seen := map[string]int{}
	for _, l := range m.Layers {
		seen[l.Name]++
		if n := seen[l.Name]; n > 1 {
			l.Name = fmt.Sprintf("%s_%d", l.Name, n)
		}
	}
}
