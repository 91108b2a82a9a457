package wms

import "github.com/blang/semver/v4"

// Version is the negotiated WMS protocol version. The four versions
// this frontend understands (1.0.0, 1.0.7, 1.1.0, 1.1.1, spec.md §1)
// are valid semver strings, so version ordering and comparison is
// delegated to blang/semver rather than hand-rolled.
type Version struct {
	sv     semver.Version
	notSet bool
	bad    bool
}

func mustVersion(s string) Version {
	v, err := semver.Parse(s)
	if err != nil {
		panic(err)
	}
	return Version{sv: v}
}

var (
	V100 = mustVersion("1.0.0")
	V107 = mustVersion("1.0.7")
	V110 = mustVersion("1.1.0")
	V111 = mustVersion("1.1.1")
)

// ParseVersion parses VERSION or the legacy WMTVER value. An empty
// string is NOTSET; anything that does not parse as semver is
// BADFORMAT (spec.md §4.1 step 4).
func ParseVersion(s string) Version {
	if s == "" {
		return Version{notSet: true}
	}
	sv, err := semver.Parse(s)
	if err != nil {
		return Version{bad: true}
	}
	return Version{sv: sv}
}

func (v Version) NotSet() bool    { return v.notSet }
func (v Version) BadFormat() bool { return v.bad }
func (v Version) Known() bool     { return !v.notSet && !v.bad }

func (v Version) String() string {
	switch {
	case v.notSet:
		return "NOTSET"
	case v.bad:
		return "BADFORMAT"
	default:
		return v.sv.String()
	}
}

func (v Version) LT(o Version) bool { return v.sv.LT(o.sv) }
func (v Version) GTE(o Version) bool { return v.sv.GTE(o.sv) }
func (v Version) EQ(o Version) bool { return v.sv.EQ(o.sv) }

// FloorForCapabilities implements the GetCapabilities version-flooring
// rule of spec.md §4.3.1: versions are rounded down to the nearest
// schema revision this frontend actually emits a distinct DTD for.
func (v Version) FloorForCapabilities() Version {
	switch {
	case v.LT(V107):
		return V100
	case v.LT(V110):
		return V107
	case v.EQ(V110):
		return V110
	default:
		return V111
	}
}
