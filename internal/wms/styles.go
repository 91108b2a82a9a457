package wms

import (
	"context"
	"fmt"
	"io"

	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// handleGetStyles implements spec.md §4.3.6. Unlike GetMap/FeatureInfo/
// DescribeLayer it is dispatched directly against master, so it clones
// and filters layers itself before delegating to the SLD generator.
func handleGetStyles(ctx context.Context, w io.Writer, req *Request, master *mapconfig.Map, deps Deps) Status {
	ctx, span := oc.StartSpan(ctx, "wms.GetStyles")
	defer span.End()

	clone, err := master.Clone(deps.Collaborators.Projector)
	if err != nil {
		return WriteException(ctx, w, req, master, deps, wmserrors.Untyped("cloning map configuration: %v", err))
	}
	uniquifyLayerNames(clone)

	if exc := bindLayers(clone, req); exc != nil {
		return WriteException(ctx, w, req, clone, deps, exc)
	}
	if len(onLayerIndices(clone)) == 0 {
		return WriteException(ctx, w, req, clone, deps, wmserrors.New(wmserrors.LayerNotDefined, "no layers selected for GetStyles"))
	}

	if deps.Collaborators.SLD == nil {
		return WriteException(ctx, w, req, clone, deps, wmserrors.Untyped("no SLD generator collaborator configured"))
	}
	sld, err := deps.Collaborators.SLD.Generate(ctx, clone, -1)
	if err != nil {
		return WriteException(ctx, w, req, clone, deps, wmserrors.Untyped("generating SLD: %v", err))
	}

	fmt.Fprintf(w, "Content-type: application/vnd.ogc.sld+xml\n\n")
	io.WriteString(w, sld)
	return StatusSuccess
}
