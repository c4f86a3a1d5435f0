package resource

import (
	"fmt"
	"strings"

	"github.com/ohler55/ojg/oj"

	"github.com/getcsed/csed/pkg/onem2m"
)

// Common envelope attribute short names.
const (
	AttrResourceID   = "ri"
	AttrResourceName = "rn"
	AttrParentID     = "pi"
	AttrResourceType = "ty"
	AttrCreated      = "ct"
	AttrModified     = "lt"
	AttrExpiration   = "et"
	AttrACPIDs       = "acpi"
	AttrLabels       = "lbl"
	AttrStateTag     = "st"
	AttrContentSize  = "cs"
	AttrContentInfo  = "cnf"
	AttrCreator      = "cr"
)

// Internal attributes. The double underscore prefix keeps them out of
// marshalled output and attribute diffs.
const (
	attrStructuredPath = "__srn__"
	attrReadOnly       = "__ro__"
	internalPrefix     = "__"
)

// Resource is a typed node of the CSE tree. All attributes, common and
// type-specific, live in a single flat map; the envelope accessors below
// are the only ones the dispatch core relies on.
type Resource struct {
	Type       onem2m.ResourceType
	Attributes map[string]any
}

// New creates a resource of the given type with the provided attributes.
// The attribute map is taken over by the resource.
func New(ty onem2m.ResourceType, attrs map[string]any) *Resource {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs[AttrResourceType] = int(ty)
	return &Resource{Type: ty, Attributes: attrs}
}

// ID returns the resource identifier (ri).
func (r *Resource) ID() string { return r.str(AttrResourceID) }

// Name returns the resource name (rn).
func (r *Resource) Name() string { return r.str(AttrResourceName) }

// ParentID returns the parent resource identifier (pi), empty for the root.
func (r *Resource) ParentID() string { return r.str(AttrParentID) }

// StructuredPath returns the cached structured path, empty if not yet set.
func (r *Resource) StructuredPath() string { return r.str(attrStructuredPath) }

// SetStructuredPath caches the structured path.
func (r *Resource) SetStructuredPath(srn string) { r.Set(attrStructuredPath, srn) }

// ReadOnly reports whether UPDATE/DELETE are refused for this resource.
func (r *Resource) ReadOnly() bool {
	v, _ := r.Attributes[attrReadOnly].(bool)
	return v
}

// SetReadOnly marks the resource read-only.
func (r *Resource) SetReadOnly(ro bool) { r.Set(attrReadOnly, ro) }

// Virtual reports whether the resource is a virtual (computed) node.
func (r *Resource) Virtual() bool { return r.Type.Virtual() }

// ACPIDs returns the access-control-policy references, nil if unset.
func (r *Resource) ACPIDs() []string { return r.strs(AttrACPIDs) }

// Labels returns the label list, nil if unset.
func (r *Resource) Labels() []string { return r.strs(AttrLabels) }

// Strings returns a list-valued attribute as a string slice, tolerating the
// []any shape JSON parsing produces.
func (r *Resource) Strings(name string) []string { return r.strs(name) }

// Get returns an attribute value.
func (r *Resource) Get(name string) (any, bool) {
	v, ok := r.Attributes[name]
	return v, ok
}

// Set assigns an attribute value.
func (r *Resource) Set(name string, value any) {
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
	r.Attributes[name] = value
}

// SetIfAbsent assigns an attribute only when it is not present yet.
func (r *Resource) SetIfAbsent(name string, value any) {
	if _, ok := r.Attributes[name]; !ok {
		r.Set(name, value)
	}
}

// Touch updates the last-modified timestamp.
func (r *Resource) Touch() { r.Set(AttrModified, onem2m.Now()) }

// Clone returns a deep copy of the resource.
func (r *Resource) Clone() *Resource {
	return &Resource{Type: r.Type, Attributes: cloneMap(r.Attributes)}
}

// Map returns the externally visible attributes, internal ones stripped.
// When embedded is true the map is wrapped under the type tag, the shape
// used for response bodies.
func (r *Resource) Map(embedded bool) map[string]any {
	out := make(map[string]any, len(r.Attributes))
	for k, v := range r.Attributes {
		if strings.HasPrefix(k, internalPrefix) {
			continue
		}
		out[k] = v
	}
	if embedded {
		return map[string]any{r.Type.Tag(): out}
	}
	return out
}

func (r *Resource) String() string {
	return fmt.Sprintf("%s[ri=%s rn=%s pi=%s]", r.Type.Tag(), r.ID(), r.Name(), r.ParentID())
}

func (r *Resource) str(name string) string {
	s, _ := r.Attributes[name].(string)
	return s
}

func (r *Resource) strs(name string) []string {
	switch v := r.Attributes[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Unwrap peels a single-key "m2m:xxx" wrapper off a parsed payload map.
// It returns the inner map and the wrapper tag, or the input and an empty
// tag when no wrapper is present.
func Unwrap(m map[string]any) (map[string]any, string) {
	if len(m) != 1 {
		return m, ""
	}
	for k, v := range m {
		inner, ok := v.(map[string]any)
		if !ok {
			return m, ""
		}
		if _, known := onem2m.TypeFromTag(k); !known {
			return m, ""
		}
		return inner, k
	}
	return m, ""
}

// ParsePayload parses a JSON request body into its attribute map and the
// wrapper tag, if any.
func ParsePayload(data []byte) (map[string]any, string, error) {
	v, err := oj.Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("malformed payload: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, "", fmt.Errorf("payload is not an object")
	}
	inner, tag := Unwrap(m)
	return inner, tag, nil
}

// FromPayload constructs a resource from a JSON request body. The declared
// type must agree with the wrapper tag and with an embedded ty attribute if
// either is present. The new resource is bound to the given parent id.
func FromPayload(data []byte, declared onem2m.ResourceType, parentID string) (*Resource, error) {
	attrs, tag, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}
	ty := declared
	if tag != "" {
		tagTy, _ := onem2m.TypeFromTag(tag)
		if declared != 0 && tagTy != declared {
			return nil, fmt.Errorf("wrapper tag %s does not match declared type %d", tag, declared)
		}
		ty = tagTy
	}
	if v, ok := attrs[AttrResourceType]; ok {
		if embedded, ok := toInt(v); ok {
			if ty != 0 && onem2m.ResourceType(embedded) != ty {
				return nil, fmt.Errorf("embedded type %d does not match declared type %d", embedded, ty)
			}
			ty = onem2m.ResourceType(embedded)
		}
	}
	if ty == 0 {
		return nil, fmt.Errorf("resource type not declared")
	}
	r := New(ty, attrs)
	r.Set(AttrParentID, parentID)
	return r, nil
}

// Diff returns the attributes of new whose value differs from old or is
// newly present. Internal attributes are excluded.
func Diff(old, new map[string]any) map[string]any {
	res := map[string]any{}
	for k, v := range new {
		if strings.HasPrefix(k, internalPrefix) {
			continue
		}
		ov, ok := old[k]
		if !ok || !equalValue(ov, v) {
			res[k] = v
		}
	}
	return res
}

func equalValue(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}
