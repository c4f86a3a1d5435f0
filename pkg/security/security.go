// Package security decides whether an originator holds a permission on a
// resource. The decision model follows the access-control-policy resource:
// a resource's acpi attribute names ACP resources whose rules grant
// permission sets to originator patterns; resources without acpi inherit
// the decision from their parent chain.
package security

import (
	"log/slog"

	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// WildcardOriginator grants a rule to every originator.
const WildcardOriginator = "all"

// Filter is the access-control decision point of the CSE.
type Filter struct {
	store           storage.ResourceStore
	adminOriginator string
	log             *slog.Logger
}

// NewFilter creates an access filter. The admin originator bypasses all
// policy evaluation.
func NewFilter(store storage.ResourceStore, adminOriginator string, log *slog.Logger) *Filter {
	if log == nil {
		log = logging.Nop()
	}
	return &Filter{store: store, adminOriginator: adminOriginator, log: log}
}

// HasAccess reports whether the originator holds the permission on the
// resource under the ordinary privileges of the applicable policies.
func (f *Filter) HasAccess(originator string, r *resource.Resource, p onem2m.Permission) bool {
	return f.hasAccess(originator, r, p, false)
}

// HasSelfAccess evaluates against the self-privileges of the applicable
// policies. Used when an update modifies the acpi attribute itself.
func (f *Filter) HasSelfAccess(originator string, r *resource.Resource, p onem2m.Permission) bool {
	return f.hasAccess(originator, r, p, true)
}

func (f *Filter) hasAccess(originator string, r *resource.Resource, p onem2m.Permission, self bool) bool {
	if originator != "" && originator == f.adminOriginator {
		return true
	}
	if r == nil {
		return false
	}

	// An ACP guards itself through its self-privileges.
	if r.Type == onem2m.AccessControlPolicy {
		return f.grantedBy(r, originator, p, true)
	}

	acpIDs := f.effectiveACPIDs(r)
	if len(acpIDs) == 0 {
		// No policy anywhere on the ancestor chain: only the resource's
		// creator keeps access.
		if cr, ok := r.Get(resource.AttrCreator); ok {
			if s, _ := cr.(string); s != "" && s == originator {
				return true
			}
		}
		f.log.Debug("access denied, no applicable policy",
			"originator", originator, "resource", r.ID(), "permission", int(p))
		return false
	}

	for _, id := range acpIDs {
		acp := f.store.Get(id)
		if acp == nil || acp.Type != onem2m.AccessControlPolicy {
			continue
		}
		if f.grantedBy(acp, originator, p, self) {
			return true
		}
	}
	f.log.Debug("access denied",
		"originator", originator, "resource", r.ID(), "permission", int(p))
	return false
}

// effectiveACPIDs returns the resource's acpi list, walking up the parent
// chain for types that inherit their policy.
func (f *Filter) effectiveACPIDs(r *resource.Resource) []string {
	cur := r
	for cur != nil {
		if ids := cur.ACPIDs(); len(ids) > 0 {
			return ids
		}
		pi := cur.ParentID()
		if pi == "" {
			return nil
		}
		cur = f.store.Get(pi)
	}
	return nil
}

// grantedBy checks the rules of one ACP resource. The pv attribute carries
// the ordinary privileges, pvs the self-privileges; both hold an acr rule
// list of {acor: [originators], acop: permission bits}.
func (f *Filter) grantedBy(acp *resource.Resource, originator string, p onem2m.Permission, self bool) bool {
	attr := "pv"
	if self {
		attr = "pvs"
	}
	v, ok := acp.Get(attr)
	if !ok {
		return false
	}
	pv, ok := v.(map[string]any)
	if !ok {
		return false
	}
	rules, ok := pv["acr"].([]any)
	if !ok {
		return false
	}
	for _, rv := range rules {
		rule, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		if !originatorMatches(rule["acor"], originator) {
			continue
		}
		if bits, ok := toInt(rule["acop"]); ok && onem2m.Permission(bits).Has(p) {
			return true
		}
	}
	return false
}

func originatorMatches(acor any, originator string) bool {
	switch list := acor.(type) {
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok && (s == WildcardOriginator || s == originator) {
				return true
			}
		}
	case []string:
		for _, s := range list {
			if s == WildcardOriginator || s == originator {
				return true
			}
		}
	}
	return false
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
