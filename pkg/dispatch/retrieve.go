package dispatch

import (
	"github.com/getcsed/csed/pkg/address"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Retrieve handles a RETRIEVE request in one of its two modes: normal
// retrieval of a single resource, or discovery of a filtered descendant
// set. Normal retrieval with a non-trivial result-content mode retrieves
// the target first and then discovers its descendants for tree assembly.
func (d *Dispatcher) Retrieve(req *Request) *Response {
	t, resp := d.preamble(req)
	if resp != nil {
		return resp
	}
	rcn := req.resultContent()
	d.log.Debug("RETRIEVE", "target", req.Target, "originator", req.Originator,
		"rcn", int(rcn), "requestID", req.RequestID)

	if req.FilterUsage == onem2m.FilterUsageDiscovery && rcn != onem2m.ResultContentAttributes {
		return d.retrieveDiscovery(t, rcn, req)
	}
	return d.retrieveNormal(t, rcn, req)
}

func (d *Dispatcher) retrieveDiscovery(t address.Target, rcn onem2m.ResultContent, req *Request) *Response {
	switch rcn {
	case onem2m.ResultContentAttributesAndChildRefs,
		onem2m.ResultContentChildResourceReferences,
		onem2m.ResultContentChildResources,
		onem2m.ResultContentAttributesAndChildren:
	default:
		return fail(onem2m.StatusInvalidArguments, "unsupported result content for discovery")
	}

	root, st := d.retrieveTarget(t, req)
	if !st.Successful() {
		return failStatus(st)
	}
	matches := d.engine.Discover(root, req.Handling, req.Criteria)
	allowed := d.filterByAccess(matches, req.Originator, onem2m.PermissionDiscovery)

	switch rcn {
	case onem2m.ResultContentChildResourceReferences:
		return &Response{Code: onem2m.StatusOK,
			Body: buildChildReferences(allowed, nil, req.identifierType(), d.resolver.LocalCSEID())}

	case onem2m.ResultContentAttributesAndChildRefs:
		body := root.Map(false)
		attachChildReferences(allowed, body, req.identifierType(), d.resolver.LocalCSEID())
		return &Response{Code: onem2m.StatusOK, Body: map[string]any{root.Type.Tag(): body}}

	case onem2m.ResultContentAttributesAndChildren:
		body := root.Map(false)
		// matches whose ancestors were filtered out of the set have no
		// place in the nested tree; hoist them to the top level
		remaining := buildTree(allowed, body, root.ID())
		buildTree(remaining, body, matchAnyParent)
		return &Response{Code: onem2m.StatusOK, Body: map[string]any{root.Type.Tag(): body}}

	default: // ResultContentChildResources
		body := map[string]any{}
		buildTree(allowed, body, matchAnyParent)
		return &Response{Code: onem2m.StatusOK, Body: body}
	}
}

func (d *Dispatcher) retrieveNormal(t address.Target, rcn onem2m.ResultContent, req *Request) *Response {
	r, st := d.retrieveTarget(t, req)
	if !st.Successful() {
		return failStatus(st)
	}
	if !d.security.HasAccess(req.Originator, r, onem2m.PermissionRetrieve) {
		return fail(onem2m.StatusOriginatorHasNoPrivilege, "")
	}
	if rcn == onem2m.ResultContentAttributes {
		return &Response{Code: onem2m.StatusOK, Resource: r}
	}

	// Augment the resource with its descendants: run discovery rooted at
	// it, filtered again by the RETRIEVE permission.
	matches := d.engine.Discover(r, req.Handling, req.Criteria)
	allowed := d.filterByAccess(matches, req.Originator, onem2m.PermissionRetrieve)

	switch rcn {
	case onem2m.ResultContentAttributesAndChildren:
		body := r.Map(false)
		buildTree(allowed, body, r.ID())
		return &Response{Code: onem2m.StatusOK, Body: map[string]any{r.Type.Tag(): body}}

	case onem2m.ResultContentAttributesAndChildRefs:
		body := r.Map(false)
		attachChildReferences(allowed, body, req.identifierType(), d.resolver.LocalCSEID())
		return &Response{Code: onem2m.StatusOK, Body: map[string]any{r.Type.Tag(): body}}

	case onem2m.ResultContentChildResourceReferences:
		return &Response{Code: onem2m.StatusOK,
			Body: buildReferenceList(allowed, req.identifierType(), d.resolver.LocalCSEID())}

	default:
		return fail(onem2m.StatusInvalidArguments, "unsupported result content for retrieval")
	}
}

// filterByAccess keeps the resources the originator may see.
func (d *Dispatcher) filterByAccess(rs []*resource.Resource, originator string, p onem2m.Permission) []*resource.Resource {
	allowed := make([]*resource.Resource, 0, len(rs))
	for _, r := range rs {
		if d.security.HasAccess(originator, r, p) {
			allowed = append(allowed, r)
		}
	}
	return allowed
}
