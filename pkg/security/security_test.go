package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

func put(t *testing.T, s storage.ResourceStore, r *resource.Resource) {
	t.Helper()
	require.NoError(t, s.Put(r))
}

// fixture: CSEBase with an ACP granting retrieve to everyone and full
// access to CAdmin, plus a container inheriting from the base and one
// carrying its own acpi.
func testStore(t *testing.T) storage.ResourceStore {
	t.Helper()
	s := storage.NewInMemoryResourceStore()

	put(t, s, resource.New(onem2m.CSEBase, map[string]any{
		resource.AttrResourceID: "id-in",
		resource.AttrACPIDs:     []any{"acp001"},
	}))
	put(t, s, resource.New(onem2m.AccessControlPolicy, map[string]any{
		resource.AttrResourceID: "acp001",
		resource.AttrParentID:   "id-in",
		"pv": map[string]any{
			"acr": []any{
				map[string]any{"acor": []any{WildcardOriginator}, "acop": int(onem2m.PermissionRetrieve)},
				map[string]any{"acor": []any{"CAe1"}, "acop": int(onem2m.PermissionAll)},
			},
		},
		"pvs": map[string]any{
			"acr": []any{
				map[string]any{"acor": []any{"CAe1"}, "acop": int(onem2m.PermissionAll)},
			},
		},
	}))
	// inherits acp001 through the parent chain
	put(t, s, resource.New(onem2m.Container, map[string]any{
		resource.AttrResourceID: "cnt001",
		resource.AttrParentID:   "id-in",
	}))
	// restricted: own policy, update only for CAe2
	put(t, s, resource.New(onem2m.AccessControlPolicy, map[string]any{
		resource.AttrResourceID: "acp002",
		resource.AttrParentID:   "id-in",
		"pv": map[string]any{
			"acr": []any{
				map[string]any{"acor": []any{"CAe2"}, "acop": int(onem2m.PermissionUpdate)},
			},
		},
	}))
	put(t, s, resource.New(onem2m.Container, map[string]any{
		resource.AttrResourceID: "cnt002",
		resource.AttrParentID:   "id-in",
		resource.AttrACPIDs:     []any{"acp002"},
	}))
	// no policy anywhere: detached root with a creator
	put(t, s, resource.New(onem2m.Container, map[string]any{
		resource.AttrResourceID: "cnt003",
		resource.AttrCreator:    "CAe3",
	}))
	return s
}

func TestAdminBypassesPolicies(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	r := s.Get("cnt002")
	assert.True(t, f.HasAccess("CAdmin", r, onem2m.PermissionDelete))
	assert.True(t, f.HasSelfAccess("CAdmin", r, onem2m.PermissionUpdate))
}

func TestWildcardGrant(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	r := s.Get("cnt001")
	assert.True(t, f.HasAccess("CAnyone", r, onem2m.PermissionRetrieve))
	assert.False(t, f.HasAccess("CAnyone", r, onem2m.PermissionDelete))
}

func TestPolicyInheritanceFromParent(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	// cnt001 has no acpi of its own; CAe1's full grant on the base applies
	r := s.Get("cnt001")
	assert.True(t, f.HasAccess("CAe1", r, onem2m.PermissionUpdate))
	assert.True(t, f.HasAccess("CAe1", r, onem2m.PermissionDelete))
}

func TestOwnPolicyOverridesInheritance(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	// cnt002 names acp002 only, so the base's wildcard grant does not apply
	r := s.Get("cnt002")
	assert.True(t, f.HasAccess("CAe2", r, onem2m.PermissionUpdate))
	assert.False(t, f.HasAccess("CAe2", r, onem2m.PermissionRetrieve))
	assert.False(t, f.HasAccess("CAnyone", r, onem2m.PermissionRetrieve))
}

func TestNoPolicyFallsBackToCreator(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	r := s.Get("cnt003")
	assert.True(t, f.HasAccess("CAe3", r, onem2m.PermissionUpdate))
	assert.False(t, f.HasAccess("CAe1", r, onem2m.PermissionRetrieve))
}

func TestACPGuardsItselfThroughSelfPrivileges(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	acp := s.Get("acp001")
	assert.True(t, f.HasAccess("CAe1", acp, onem2m.PermissionUpdate))
	// the wildcard pv grant does not reach the ACP itself
	assert.False(t, f.HasAccess("CAnyone", acp, onem2m.PermissionRetrieve))
}

func TestSelfAccessUsesPVS(t *testing.T) {
	s := testStore(t)
	f := NewFilter(s, "CAdmin", nil)

	r := s.Get("cnt001")
	assert.True(t, f.HasSelfAccess("CAe1", r, onem2m.PermissionUpdate))
	// wildcard exists in pv only, not pvs
	assert.False(t, f.HasSelfAccess("CAnyone", r, onem2m.PermissionRetrieve))
}

func TestNilResourceDenied(t *testing.T) {
	f := NewFilter(storage.NewInMemoryResourceStore(), "CAdmin", nil)
	assert.False(t, f.HasAccess("CAe1", nil, onem2m.PermissionRetrieve))
}

func TestPermissionBits(t *testing.T) {
	granted := onem2m.PermissionRetrieve | onem2m.PermissionDiscovery
	assert.True(t, granted.Has(onem2m.PermissionRetrieve))
	assert.True(t, granted.Has(onem2m.PermissionDiscovery))
	assert.False(t, granted.Has(onem2m.PermissionRetrieve|onem2m.PermissionUpdate))
	assert.True(t, onem2m.PermissionAll.Has(onem2m.PermissionDelete))
}
