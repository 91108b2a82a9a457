package wms

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/seyi/mapserver/internal/log"
	"github.com/seyi/mapserver/internal/mapconfig"
	"github.com/seyi/mapserver/internal/wmserrors"
)

// ExceptionFormat is the negotiated EXCEPTIONS value (spec.md §6
// "Exception formats"). It is carried on *Request, not process-global
// state, closing the leak spec.md §9 flags in the source.
type ExceptionFormat int

const (
	ExceptionSEXML ExceptionFormat = iota
	ExceptionINIMAGE
	ExceptionBLANK
	ExceptionWMSXML
)

// ParseExceptionFormat recognizes both the short legacy tokens
// (INIMAGE, BLANK, WMS_XML) and the 1.1.x MIME-typed tokens
// (application/vnd.ogc.se_inimage, se_blank, se_xml).
func ParseExceptionFormat(v string) ExceptionFormat {
	switch v {
	case "INIMAGE", "application/vnd.ogc.se_inimage":
		return ExceptionINIMAGE
	case "BLANK", "application/vnd.ogc.se_blank":
		return ExceptionBLANK
	case "WMS_XML":
		return ExceptionWMSXML
	default:
		return ExceptionSEXML
	}
}

type serviceExceptionXML struct {
	XMLName xml.Name `xml:"ServiceException"`
	Code    string   `xml:"code,attr,omitempty"`
	Message string   `xml:",chardata"`
}

type serviceExceptionReportXML struct {
	XMLName    xml.Name              `xml:"ServiceExceptionReport"`
	Version    string                 `xml:"version,attr"`
	Exceptions []serviceExceptionXML  `xml:"ServiceException"`
}

type wmtExceptionXML struct {
	XMLName    xml.Name              `xml:"WMTException"`
	Version    string                 `xml:"version,attr"`
	Exceptions []serviceExceptionXML  `xml:"ServiceException"`
}

// writeServiceExceptionReport emits the SE_XML body for one or more
// exceptions (spec.md §6 "SE_XML").
func writeServiceExceptionReport(w io.Writer, v Version, excs []*wmserrors.Exception) {
	mime := "application/vnd.ogc.se_xml"
	if v.LT(V110) {
		mime = "text/xml"
	}
	fmt.Fprintf(w, "Content-type: %s\n\n", mime)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n")
	fmt.Fprintf(w, `<!DOCTYPE ServiceExceptionReport SYSTEM "%s">`+"\n", exceptionDTD(v))

	report := serviceExceptionReportXML{Version: v.String()}
	for _, e := range excs {
		report.Exceptions = append(report.Exceptions, serviceExceptionXML{Code: string(e.Code), Message: e.Message})
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(report)
	_, _ = w.Write([]byte("\n"))
}

// writeWMTException emits the legacy WMS_XML body: text/xml with a
// <WMTException version="1.0.0"> wrapper, regardless of the negotiated
// protocol version (spec.md §6 "WMS_XML").
func writeWMTException(w io.Writer, excs []*wmserrors.Exception) {
	fmt.Fprintf(w, "Content-type: text/xml\n\n")
	report := wmtExceptionXML{Version: "1.0.0"}
	for _, e := range excs {
		report.Exceptions = append(report.Exceptions, serviceExceptionXML{Code: string(e.Code), Message: e.Message})
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	_ = enc.Encode(report)
	_, _ = w.Write([]byte("\n"))
}

// WriteException formats exc per req.ExceptionFormat and returns
// StatusFailure. It is the single
// place exceptions are emitted, so "first error wins" (spec.md §7
// "User-visible behavior") falls out of callers stopping at the first
// WriteException call.
func WriteException(ctx context.Context, w io.Writer, req *Request, master *mapconfig.Map, deps Deps, exc *wmserrors.Exception) Status {
	log.G(ctx).WithFields(map[string]any{
		"code":    string(exc.Code),
		"message": exc.Message,
		"params":  log.Format(ctx, req.Params),
	}).Warn("wms exception")

	switch req.ExceptionFormat {
	case ExceptionINIMAGE, ExceptionBLANK:
		writeErrorImage(ctx, w, master, deps, req.ExceptionFormat == ExceptionBLANK)
	case ExceptionWMSXML:
		writeWMTException(w, []*wmserrors.Exception{exc})
	default:
		writeServiceExceptionReport(w, req.Version, []*wmserrors.Exception{exc})
	}
	return StatusFailure
}

func writeErrorImage(ctx context.Context, w io.Writer, master *mapconfig.Map, deps Deps, blank bool) {
	mime := "image/png"
	if master != nil {
		if f := master.ActiveOutputFormat(); f != nil {
			mime = f.MimeType
		}
	}
	fmt.Fprintf(w, "Content-type: %s\n\n", mime)
	if deps.Collaborators.Renderer == nil {
		return
	}
	if err := deps.Collaborators.Renderer.RenderErrorImage(ctx, w, master, blank); err != nil {
		log.G(ctx).WithError(err).Error("render error image")
	}
}
