// Package address parses the three oneM2M addressing forms into a local
// resolution target: SP-relative ("~/<cse-id>/..."), absolute
// ("_/<sp-id>/<cse-id>/...") and CSE-relative (everything else).
package address

import (
	"strings"
)

// PathIndex is the minimal store surface the resolver needs: mapping
// structured paths and CSE-ids onto resource ids.
type PathIndex interface {
	ResourceIDForPath(srn string) string
	ResolveCSEID(csi string) string
}

// Target is the outcome of resolving a raw address.
type Target struct {
	// ResourceID is the local resource id, empty when only a remote
	// CSE-id could be derived.
	ResourceID string
	// CSEID is the addressed CSE-id without the leading slash, empty for
	// plainly local addresses.
	CSEID string
	// StructuredPath is set when the address was structured.
	StructuredPath string
}

// Resolver resolves raw request addresses against the local resource tree.
type Resolver struct {
	index PathIndex
	csern string // resource name of the local CSEBase
	cseri string // resource id of the local CSEBase
	csi   string // local CSE-id, without the leading slash
}

// NewResolver creates a resolver for the local CSE identity.
func NewResolver(index PathIndex, csern, cseri, csi string) *Resolver {
	return &Resolver{
		index: index,
		csern: csern,
		cseri: cseri,
		csi:   strings.TrimPrefix(csi, "/"),
	}
}

// LocalCSEID returns the local CSE-id without the leading slash.
func (r *Resolver) LocalCSEID() string { return r.csi }

// IsStructured reports whether the address carries more path separators
// than its addressing mode minimally requires, which is what tells a
// structured path apart from a bare id in each mode.
func IsStructured(id string) bool {
	raw := strings.TrimPrefix(id, "/")
	switch {
	case strings.HasPrefix(raw, "~"):
		return strings.Count(raw, "/") > 2
	case strings.HasPrefix(raw, "_"):
		return strings.Count(raw, "/") > 3
	default:
		return strings.Contains(raw, "/")
	}
}

// Resolve splits a raw path into its addressing components and maps them to
// a local resource id where possible. It reports ok=false for addresses the
// grammar rejects.
func (r *Resolver) Resolve(raw string) (Target, bool) {
	if raw == "" {
		return Target{}, false
	}
	raw = strings.TrimPrefix(raw, "/")
	segs := strings.Split(raw, "/")
	if len(segs) == 0 || segs[0] == "" {
		return Target{}, false
	}

	var t Target
	switch {
	case segs[0] == "~": // SP-relative
		if len(segs) < 2 {
			return Target{}, false
		}
		t.CSEID = segs[1]
		switch {
		case len(segs) > 2 && segs[2] == r.csern:
			t.StructuredPath = strings.Join(segs[2:], "/")
		case len(segs) == 3:
			t.ResourceID = segs[2]
		case len(segs) == 2:
			// bare CSE-id, addresses the CSE base itself
		default:
			return Target{}, false
		}

	case segs[0] == "_": // absolute
		if len(segs) < 4 {
			return Target{}, false
		}
		// segs[1] is the service-provider id; nothing local keys off it
		t.CSEID = segs[2]
		switch {
		case segs[3] == r.csern:
			t.StructuredPath = strings.Join(segs[3:], "/")
		case len(segs) == 4:
			t.ResourceID = segs[3]
		default:
			return Target{}, false
		}

	default: // CSE-relative
		if len(segs) == 1 && (segs[0] != r.csern || segs[0] == r.cseri) {
			t.ResourceID = segs[0]
		} else {
			t.StructuredPath = strings.Join(segs, "/")
		}
	}

	// map structured path or bare CSE-id to a resource id
	switch {
	case t.ResourceID != "":
		return t, true
	case t.StructuredPath != "":
		t.ResourceID = r.index.ResourceIDForPath(t.StructuredPath)
		return t, true
	case t.CSEID != "":
		t.ResourceID = r.index.ResolveCSEID("/" + t.CSEID)
		return t, true
	default:
		return Target{}, false
	}
}

// Remote reports whether the target addresses a CSE other than the local one.
func (r *Resolver) Remote(t Target) bool {
	return t.CSEID != "" && t.CSEID != r.csi
}
