package wms

import (
	"fmt"
	"strings"
)

// schemaRoot is the published root for the WMS DTDs this frontend
// declares in its DOCTYPEs (spec.md GLOSSARY "DTD / schema location").
const schemaRoot = "http://schemas.opengis.net/wms"

func versionPath(v Version) string {
	return strings.ReplaceAll(v.String(), ".", "_")
}

// capabilitiesDTD returns the DOCTYPE URL for the (already-floored)
// capabilities version, per spec.md §4.3.1.
func capabilitiesDTD(v Version) string {
	return fmt.Sprintf("%s/%s/capabilities_%s.dtd", schemaRoot, v.String(), versionPath(v))
}

// exceptionDTD returns the DOCTYPE URL for a ServiceExceptionReport at
// the given (floored) version, per spec.md §6 "Exception formats".
func exceptionDTD(v Version) string {
	return fmt.Sprintf("%s/%s/exception_%s.dtd", schemaRoot, v.String(), versionPath(v))
}

// capabilitiesMimeType is the MIME type of the Capabilities document
// itself (spec.md §4.3.1 "MIME type").
func capabilitiesMimeType(v Version) string {
	if v.LT(V110) {
		return "text/xml"
	}
	return "application/vnd.ogc.wms_xml"
}

// serviceElementName is the root <Service><Name> value (spec.md §4.3.1
// "Service element name").
func serviceElementName(v Version) string {
	if v.LT(V110) {
		return "GetMap"
	}
	return "OGC:WMS"
}

// capabilitiesRootElement is the document's root element name, which is
// WMT_MS_Capabilities for every version from 1.0.0 through 1.1.1.
func capabilitiesRootElement(v Version) string {
	if v.LT(V110) {
		return "WMT_MS_Capabilities"
	}
	return "WMT_MS_Capabilities"
}
