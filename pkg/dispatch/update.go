package dispatch

import (
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// attributes that an update payload may never change
var immutableAttributes = map[string]bool{
	resource.AttrResourceID:   true,
	resource.AttrResourceName: true,
	resource.AttrParentID:     true,
	resource.AttrResourceType: true,
	resource.AttrCreated:      true,
}

// Update handles an UPDATE request. An update that touches the acpi
// attribute is authorized against the policies' self-privileges; the
// modified-attributes result content returns only the changed attributes.
func (d *Dispatcher) Update(req *Request) *Response {
	t, resp := d.preamble(req)
	if resp != nil {
		return resp
	}
	d.log.Debug("UPDATE", "target", req.Target, "originator", req.Originator,
		"requestID", req.RequestID)

	if req.ContentType == "" {
		return fail(onem2m.StatusBadRequest, "content type is required")
	}

	r := d.fetch(t)
	if r == nil {
		return fail(onem2m.StatusNotFound, "resource not found")
	}
	if r.ReadOnly() {
		return fail(onem2m.StatusOperationNotAllowed, "resource is read-only")
	}

	attrs, tag, err := resource.ParsePayload(req.Payload)
	if err != nil {
		d.log.Warn("bad update request", "error", err, "requestID", req.RequestID)
		return fail(onem2m.StatusBadRequest, err.Error())
	}
	if tag != "" {
		if ty, _ := onem2m.TypeFromTag(tag); ty != r.Type {
			return fail(onem2m.StatusBadRequest, "payload type does not match resource")
		}
	}

	// Changing the policy references requires self-privileges on the
	// currently applicable policies, not ordinary update privileges.
	if _, touchesACPI := attrs[resource.AttrACPIDs]; touchesACPI {
		if !d.security.HasSelfAccess(req.Originator, r, onem2m.PermissionUpdate) {
			return fail(onem2m.StatusOriginatorHasNoPrivilege, "")
		}
	} else if !d.security.HasAccess(req.Originator, r, onem2m.PermissionUpdate) {
		return fail(onem2m.StatusOriginatorHasNoPrivilege, "")
	}

	if r.Virtual() {
		if h, ok := d.virtual[r.Type]; ok {
			return h.Update(r, r.StructuredPath(), req)
		}
		return fail(onem2m.StatusOperationNotAllowed, "virtual resource cannot be updated")
	}

	d.locks.Lock(r.ID())
	defer d.locks.Unlock(r.ID())

	// Re-read under the lock so the snapshot and the merge see the same
	// persisted state.
	r = d.store.Get(r.ID())
	if r == nil {
		return fail(onem2m.StatusNotFound, "resource not found")
	}
	before := r.Map(false)

	updated, st := d.updateResource(r, attrs, req.Originator)
	if !st.Successful() {
		return failStatus(st)
	}

	switch req.resultContent() {
	case onem2m.ResultContentAttributes:
		return &Response{Code: onem2m.StatusUpdated, Resource: updated}
	case onem2m.ResultContentModifiedAttributes:
		return &Response{Code: onem2m.StatusUpdated,
			Body: map[string]any{updated.Type.Tag(): resource.Diff(before, updated.Map(false))}}
	default:
		return fail(onem2m.StatusNotImplemented, "unsupported result content for update")
	}
}

// updateResource merges the payload attributes, runs the type-specific
// update hook and persists. Callers hold the resource's lock.
func (d *Dispatcher) updateResource(r *resource.Resource, attrs map[string]any, originator string) (*resource.Resource, onem2m.Status) {
	d.log.Debug("updating resource", "ri", r.ID(), "type", int(r.Type))

	for k, v := range attrs {
		if immutableAttributes[k] {
			continue
		}
		if v == nil {
			delete(r.Attributes, k)
			continue
		}
		r.Set(k, v)
	}
	r.Touch()

	if st := d.registry.Behavior(r.Type).Update(r, attrs, originator); !st.Successful() {
		return nil, st
	}
	if err := d.store.Put(r); err != nil {
		return nil, onem2m.Statusf(onem2m.StatusInternalServerError, "persist failed: %v", err)
	}
	return r, onem2m.Status{Code: onem2m.StatusUpdated}
}
