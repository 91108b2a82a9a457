package wms

import (
	"context"
	"fmt"
	"io"

	"github.com/seyi/mapserver/internal/collaborators"
	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/oc"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// handleGetMap implements spec.md §4.3.2. Layers carrying the transient
// SLDQuery flag are only logged: every layer, flagged or not, is drawn
// by one Renderer.RenderMap call, and no per-layer rendering of SLD
// query results is done.
func handleGetMap(ctx context.Context, w io.Writer, req *Request, m *mapconfig.Map, deps Deps) Status {
	ctx, span := oc.StartSpan(ctx, "wms.GetMap")
	defer span.End()

	if deps.Collaborators.Renderer == nil {
		return WriteException(ctx, w, req, m, deps, wmserrors.Untyped("no renderer collaborator configured"))
	}

	for _, idx := range onLayerIndices(m) {
		if m.Layers[idx].SLDQuery() {
			log.G(ctx).WithField("layer", m.Layers[idx].Name).Debug("rendering from SLD query result cache")
		}
	}

	img, err := deps.Collaborators.Renderer.RenderMap(ctx, m)
	if err != nil {
		log.G(ctx).WithError(err).Error("render map")
		return WriteException(ctx, w, req, m, deps, wmserrors.FromCollaboratorError("rendering map", err))
	}

	if maxAge := m.Metadata.GetDefault("http_max_age", ""); maxAge != "" {
		fmt.Fprintf(w, "Cache-Control: max-age=%s\n", maxAge)
	}

	mime := resolveMime(img, m)
	fmt.Fprintf(w, "Content-type: %s\n\n", mime)
	_, _ = w.Write(img.Bytes)
	return StatusSuccess
}

func resolveMime(img collaborators.Image, m *mapconfig.Map) string {
	if img.MimeType != "" {
		return img.MimeType
	}
	if f := m.ActiveOutputFormat(); f != nil {
		return f.MimeType
	}
	return "application/octet-stream"
}
