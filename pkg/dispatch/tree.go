package dispatch

import (
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// matchAnyParent makes buildTree treat every remaining resource as a direct
// child of the current node, used for the child-resources-only shape where
// there is no root resource in the output.
const matchAnyParent = ""

// buildTree attaches the resources in rs below node, grouping direct
// children by type under their type tag and recursing into each child with
// the shared remaining set. Each input resource is placed exactly once, at
// the first level where it is a direct child; the remaining unconsumed set
// is returned so callers and recursive calls never revisit a placed
// resource. Virtual latest/oldest children never appear in the output.
func buildTree(rs []*resource.Resource, node map[string]any, nodeID string) []*resource.Resource {
	for {
		// pick the next unplaced type among the direct children
		var ty onem2m.ResourceType
		found := false
		for _, r := range rs {
			if !directChild(r, nodeID) || skipInTree(r.Type) {
				continue
			}
			ty = r.Type
			found = true
			break
		}
		if !found {
			return rs
		}

		var group []map[string]any
		for {
			// find the next direct child of the chosen type; the set
			// shrinks as children and their subtrees are consumed
			idx := -1
			for i, r := range rs {
				if directChild(r, nodeID) && r.Type == ty {
					idx = i
					break
				}
			}
			if idx < 0 {
				break
			}
			child := rs[idx]
			rs = append(rs[:idx], rs[idx+1:]...)
			childMap := child.Map(false)
			rs = buildTree(rs, childMap, child.ID())
			group = append(group, childMap)
		}
		// a second pass over the same node (hoisted matches) extends the
		// group instead of replacing it
		if prev, ok := node[ty.Tag()].([]map[string]any); ok {
			group = append(prev, group...)
		}
		node[ty.Tag()] = group
	}
}

func directChild(r *resource.Resource, nodeID string) bool {
	return nodeID == matchAnyParent || r.ParentID() == nodeID
}

// skipInTree excludes virtual latest/oldest children from any tree or
// reference output.
func skipInTree(ty onem2m.ResourceType) bool {
	return ty == onem2m.ContainerLatest || ty == onem2m.ContainerOldest
}

// referenceValue renders the identifier of a referenced resource, either
// its structured path or its CSE-relative id.
func referenceValue(r *resource.Resource, drt onem2m.DesiredIdentifierResultType, csi string) string {
	if drt == onem2m.IdentifierStructured {
		return r.StructuredPath()
	}
	return "/" + csi + "/" + r.ID()
}

// buildReferenceList renders a flat m2m:uril list.
func buildReferenceList(rs []*resource.Resource, drt onem2m.DesiredIdentifierResultType, csi string) map[string]any {
	lst := make([]any, 0, len(rs))
	for _, r := range rs {
		if skipInTree(r.Type) {
			continue
		}
		lst = append(lst, referenceValue(r, drt, csi))
	}
	return map[string]any{"m2m:uril": lst}
}

// childReference is one entry of a child-references list.
func childReference(r *resource.Resource, drt onem2m.DesiredIdentifierResultType, csi string) map[string]any {
	ref := map[string]any{
		"nm":  r.Name(),
		"typ": int(r.Type),
		"val": referenceValue(r, drt, csi),
	}
	// flexContainers carry their specialization in the reference
	if r.Type == onem2m.FlexContainer {
		if cnd, ok := r.Get("cnd"); ok {
			ref["spty"] = cnd
		}
	}
	return ref
}

// buildChildReferences renders the references grouped under a target
// resource map, or at the top level under the qualified "m2m:ch" key when
// no target is given.
func buildChildReferences(rs []*resource.Resource, target map[string]any, drt onem2m.DesiredIdentifierResultType, csi string) map[string]any {
	key := "ch"
	if target == nil {
		target = map[string]any{}
		key = "m2m:ch" // top level, so add the qualifier
	}
	if len(rs) == 0 {
		return target
	}
	refs := make([]any, 0, len(rs))
	for _, r := range rs {
		if skipInTree(r.Type) {
			continue
		}
		refs = append(refs, childReference(r, drt, csi))
	}
	target[key] = refs
	return target
}

// attachChildReferences adds the reference list to an existing resource map.
func attachChildReferences(rs []*resource.Resource, target map[string]any, drt onem2m.DesiredIdentifierResultType, csi string) {
	buildChildReferences(rs, target, drt, csi)
}
