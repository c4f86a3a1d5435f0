package dispatch

import (
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Delete handles a DELETE request: authorize, run the deregistration check,
// deactivate, remove from the store, then notify the parent captured before
// the deletion.
func (d *Dispatcher) Delete(req *Request) *Response {
	t, resp := d.preamble(req)
	if resp != nil {
		return resp
	}
	d.log.Debug("DELETE", "target", req.Target, "originator", req.Originator,
		"requestID", req.RequestID)

	r := d.fetch(t)
	if r == nil {
		return fail(onem2m.StatusNotFound, "resource not found")
	}
	if !d.security.HasAccess(req.Originator, r, onem2m.PermissionDelete) {
		return fail(onem2m.StatusOriginatorHasNoPrivilege, "")
	}

	if r.Virtual() {
		if h, ok := d.virtual[r.Type]; ok {
			return h.Delete(r, r.StructuredPath(), req)
		}
		return fail(onem2m.StatusOperationNotAllowed, "virtual resource cannot be deleted")
	}

	deleted, st := d.DeleteResource(r, req.Originator, true)
	if !st.Successful() {
		return failStatus(st)
	}
	return &Response{Code: onem2m.StatusDeleted, Resource: deleted}
}

// DeleteResource removes a resource and its subtree from the store. With
// withDeregistration set, the registrar's deletion check runs first and a
// refusal aborts with the resource untouched. The child-removed hook is
// invoked on the parent as it existed before the deletion, even if the
// parent is gone afterwards.
func (d *Dispatcher) DeleteResource(r *resource.Resource, originator string, withDeregistration bool) (*resource.Resource, onem2m.Status) {
	d.log.Debug("removing resource", "ri", r.ID(), "type", int(r.Type))

	d.locks.LockPair(r.ParentID(), r.ID())
	defer d.locks.UnlockPair(r.ParentID(), r.ID())

	if withDeregistration {
		if ok, _ := d.registrar.CheckDeletion(r, originator); !ok {
			return nil, onem2m.Statusf(onem2m.StatusBadRequest, "deregistration refused")
		}
	}

	behavior := d.registry.Behavior(r.Type)
	behavior.Deactivate(r, originator)

	// Capture the parent before the record disappears; the hook runs on
	// this reference regardless of what the deletion does to the tree.
	parent := d.store.Get(r.ParentID())

	// Children go first so no orphan subtree survives the root's removal.
	for _, child := range d.store.Descendants(r.ID(), 0) {
		d.store.Delete(child.ID())
	}
	if !d.store.Delete(r.ID()) {
		return nil, onem2m.Statusf(onem2m.StatusNotFound, "resource vanished during delete")
	}

	d.events.ResourceDeletedEvent(r)

	if parent != nil {
		d.registry.Behavior(parent.Type).ChildRemoved(parent, r, originator)
		if d.store.Get(parent.ID()) != nil {
			if err := d.store.Put(parent); err != nil {
				d.log.Warn("persisting parent after child-removed failed", "ri", parent.ID(), "error", err)
			}
		}
	}
	return r, onem2m.Status{Code: onem2m.StatusDeleted}
}
