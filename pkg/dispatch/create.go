package dispatch

import (
	"github.com/getcsed/csed/internal/id"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Create handles a CREATE request: resolve the parent, authorize, construct
// the child from the payload, validate parent/child compatibility, run the
// registration check, then persist and activate with compensating rollback.
func (d *Dispatcher) Create(req *Request) *Response {
	t, resp := d.preamble(req)
	if resp != nil {
		return resp
	}
	d.log.Debug("CREATE", "target", req.Target, "originator", req.Originator,
		"type", int(req.ResourceType), "requestID", req.RequestID)

	if req.ContentType == "" || req.ResourceType == 0 {
		return fail(onem2m.StatusBadRequest, "content type and resource type are required")
	}

	parent := d.fetch(t)
	if parent == nil {
		return fail(onem2m.StatusNotFound, "parent resource not found")
	}

	if !d.security.HasAccess(req.Originator, parent, onem2m.PermissionCreate) {
		// A refused AE registration is a missing security association,
		// not a plain privilege problem.
		if req.ResourceType == onem2m.ApplicationEntity {
			return fail(onem2m.StatusSecurityAssociationRequired, "")
		}
		return fail(onem2m.StatusOriginatorHasNoPrivilege, "")
	}

	if parent.Virtual() {
		if h, ok := d.virtual[parent.Type]; ok {
			return h.Create(parent, parent.StructuredPath(), req)
		}
		return fail(onem2m.StatusOperationNotAllowed, "cannot create under a virtual resource")
	}

	nr, err := resource.FromPayload(req.Payload, req.ResourceType, parent.ID())
	if err != nil {
		d.log.Warn("bad create request", "error", err, "requestID", req.RequestID)
		return fail(onem2m.StatusBadRequest, err.Error())
	}

	// Sibling bookkeeping of the parent is serialized with the creation
	// and deletion of its other children.
	d.locks.Lock(parent.ID())
	defer d.locks.Unlock(parent.ID())

	d.ensureIdentity(nr, parent)

	if d.store.Exists(nr.ID(), nr.StructuredPath()) {
		d.log.Warn("resource already registered", "ri", nr.ID(), "srn", nr.StructuredPath())
		return fail(onem2m.StatusConflict, "resource already exists")
	}

	originator, st := d.registrar.CheckCreation(nr, req.Originator, parent)
	if !st.Successful() {
		return failStatus(st)
	}

	created, st := d.CreateResource(nr, parent, originator)
	if !st.Successful() {
		// Deregister again; the reported error stays the creation's.
		if _, ds := d.registrar.CheckDeletion(nr, originator); !ds.Successful() {
			d.log.Warn("deregistration after failed create failed",
				"ri", nr.ID(), "status", ds.Code.String())
		}
		return failStatus(st)
	}
	return &Response{Code: onem2m.StatusCreated, Resource: created}
}

// CreateResource runs the persist/activate/notify sequence for an already
// validated resource. Callers hold the parent's lock. Activation failure
// rolls the initial persist back; the store never keeps an uninitialized
// record on the failure paths this function controls.
func (d *Dispatcher) CreateResource(nr *resource.Resource, parent *resource.Resource, originator string) (*resource.Resource, onem2m.Status) {
	behavior := d.registry.Behavior(parent.Type)
	if !behavior.CanHaveChild(parent, nr.Type) {
		if nr.Type == onem2m.Subscription {
			return nil, onem2m.Statusf(onem2m.StatusTargetNotSubscribable, "parent resource is not subscribable")
		}
		return nil, onem2m.Statusf(onem2m.StatusInvalidChildResourceType, "invalid child resource type %d under %d", nr.Type, parent.Type)
	}

	d.ensureIdentity(nr, parent)
	d.log.Debug("adding resource", "ri", nr.ID(), "type", int(nr.Type), "parent", parent.ID())

	if err := d.store.Put(nr); err != nil {
		return nil, onem2m.Statusf(onem2m.StatusInternalServerError, "persist failed: %v", err)
	}

	// Activation runs after the initial persist because the hook may
	// create or read other resources that look this one up in the store.
	if st := d.registry.Behavior(nr.Type).Activate(nr, parent, originator); !st.Successful() {
		d.rollbackCreate(nr)
		return nil, st
	}

	// Activation may have mutated attributes, so write it again.
	if err := d.store.Put(nr); err != nil {
		d.rollbackCreate(nr)
		return nil, onem2m.Statusf(onem2m.StatusInternalServerError, "persist failed: %v", err)
	}

	// Reload the parent so concurrent changes are not overwritten by the
	// child-added bookkeeping.
	if fresh := d.store.Get(parent.ID()); fresh != nil {
		behavior.ChildAdded(fresh, nr, originator)
		if err := d.store.Put(fresh); err != nil {
			d.log.Warn("persisting parent after child-added failed", "ri", fresh.ID(), "error", err)
		}
	}

	d.events.ResourceCreatedEvent(nr)
	return nr, onem2m.Status{Code: onem2m.StatusCreated}
}

// rollbackCreate removes a just-persisted record, with any children its
// activation may have created, after a failed activation. Best effort: its
// own failure is logged, never reported.
func (d *Dispatcher) rollbackCreate(nr *resource.Resource) {
	for _, child := range d.store.Children(nr.ID()) {
		if !d.store.Delete(child.ID()) {
			d.log.Warn("rollback of activation child failed", "ri", child.ID())
		}
	}
	if !d.store.Delete(nr.ID()) {
		d.log.Warn("rollback of created resource failed", "ri", nr.ID())
	}
}

// ensureIdentity assigns the generated identifiers and envelope attributes
// a new resource is missing: ri, rn, timestamps and the structured path.
func (d *Dispatcher) ensureIdentity(nr *resource.Resource, parent *resource.Resource) {
	if nr.ID() == "" {
		if nr.Type == onem2m.ContentInstance {
			// sortable ids keep latest/oldest resolution stable for
			// instances created within the same timestamp
			nr.Set(resource.AttrResourceID, "cin"+id.Sortable())
		} else {
			nr.Set(resource.AttrResourceID, id.Resource(nr.Type.Tag()))
		}
	}
	if nr.Name() == "" {
		nr.Set(resource.AttrResourceName, id.Name(nr.Type.Tag()))
	}
	now := onem2m.Now()
	nr.SetIfAbsent(resource.AttrCreated, now)
	nr.SetIfAbsent(resource.AttrModified, now)
	if nr.StructuredPath() == "" {
		nr.SetStructuredPath(d.structuredPathOf(parent) + "/" + nr.Name())
	}
}
