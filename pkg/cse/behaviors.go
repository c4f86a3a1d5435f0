package cse

import (
	"log/slog"

	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/dispatch"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// registerBehaviors binds the type-specific lifecycle hooks. Only the hooks
// a type actually needs are overridden; everything else is the default
// parent/child table behavior.
func registerBehaviors(reg *resource.Registry, d *dispatch.Dispatcher, store storage.ResourceStore, log *slog.Logger) {
	reg.Register(onem2m.Container, &containerBehavior{dispatcher: d, store: store, log: log})
	reg.Register(onem2m.ContentInstance, &contentInstanceBehavior{})
	reg.Register(onem2m.Group, &groupBehavior{dispatcher: d, store: store, log: log})
	reg.Register(onem2m.ApplicationEntity, &aeBehavior{})
}

// containerBehavior maintains a container's bookkeeping attributes and its
// latest/oldest virtual children.
type containerBehavior struct {
	resource.DefaultBehavior
	dispatcher *dispatch.Dispatcher
	store      storage.ResourceStore
	log        *slog.Logger
}

func (b *containerBehavior) Activate(r *resource.Resource, parent *resource.Resource, originator string) onem2m.Status {
	r.SetIfAbsent(resource.AttrStateTag, 0)
	r.SetIfAbsent("cni", 0)
	r.SetIfAbsent("cbs", 0)

	for _, v := range []struct {
		ty onem2m.ResourceType
		rn string
	}{
		{onem2m.ContainerLatest, "la"},
		{onem2m.ContainerOldest, "ol"},
	} {
		child := resource.New(v.ty, map[string]any{
			resource.AttrResourceName: v.rn,
			resource.AttrParentID:     r.ID(),
		})
		child.SetReadOnly(true)
		if _, st := b.dispatcher.CreateResource(child, r, originator); !st.Successful() {
			b.log.Error("creating virtual container child failed", "rn", v.rn, "status", st.Code.String())
			return st
		}
	}
	return onem2m.OK
}

func (b *containerBehavior) ChildAdded(parent *resource.Resource, child *resource.Resource, originator string) {
	if child.Type != onem2m.ContentInstance {
		return
	}
	parent.Set("cni", intAttr(parent, "cni")+1)
	parent.Set("cbs", intAttr(parent, "cbs")+intAttr(child, resource.AttrContentSize))
	parent.Set(resource.AttrStateTag, intAttr(parent, resource.AttrStateTag)+1)
	parent.Touch()
}

func (b *containerBehavior) ChildRemoved(parent *resource.Resource, child *resource.Resource, originator string) {
	if child.Type != onem2m.ContentInstance {
		return
	}
	if cni := intAttr(parent, "cni"); cni > 0 {
		parent.Set("cni", cni-1)
	}
	if cbs := intAttr(parent, "cbs") - intAttr(child, resource.AttrContentSize); cbs >= 0 {
		parent.Set("cbs", cbs)
	}
	parent.Touch()
}

// contentInstanceBehavior freezes instances after creation.
type contentInstanceBehavior struct {
	resource.DefaultBehavior
}

func (contentInstanceBehavior) Activate(r *resource.Resource, parent *resource.Resource, originator string) onem2m.Status {
	if con, ok := r.Get("con"); ok {
		if s, ok := con.(string); ok {
			r.SetIfAbsent(resource.AttrContentSize, len(s))
		}
	}
	r.SetIfAbsent(resource.AttrStateTag, intAttr(parent, resource.AttrStateTag))
	r.SetReadOnly(true)
	return onem2m.OK
}

func (contentInstanceBehavior) Update(r *resource.Resource, attrs map[string]any, originator string) onem2m.Status {
	return onem2m.Statusf(onem2m.StatusOperationNotAllowed, "content instances cannot be updated")
}

// groupBehavior validates members and maintains the fan-out point.
type groupBehavior struct {
	resource.DefaultBehavior
	dispatcher *dispatch.Dispatcher
	store      storage.ResourceStore
	log        *slog.Logger
}

func (b *groupBehavior) Activate(r *resource.Resource, parent *resource.Resource, originator string) onem2m.Status {
	members := r.Strings("mid")
	for _, mid := range members {
		if b.store.Get(mid) == nil && b.store.GetByPath(mid) == nil {
			return onem2m.Statusf(onem2m.StatusBadRequest, "group member not found: %s", mid)
		}
	}
	r.Set("cnm", len(members))

	fopt := resource.New(onem2m.GroupFanOut, map[string]any{
		resource.AttrResourceName: "fopt",
		resource.AttrParentID:     r.ID(),
	})
	if _, st := b.dispatcher.CreateResource(fopt, r, originator); !st.Successful() {
		b.log.Error("creating fan-out point failed", "group", r.ID(), "status", st.Code.String())
		return st
	}
	return onem2m.OK
}

func (b *groupBehavior) Update(r *resource.Resource, attrs map[string]any, originator string) onem2m.Status {
	if _, ok := attrs["mid"]; ok {
		members := r.Strings("mid")
		for _, mid := range members {
			if b.store.Get(mid) == nil && b.store.GetByPath(mid) == nil {
				return onem2m.Statusf(onem2m.StatusBadRequest, "group member not found: %s", mid)
			}
		}
		r.Set("cnm", len(members))
	}
	return onem2m.OK
}

// aeBehavior records the assigned AE-ID on activation.
type aeBehavior struct {
	resource.DefaultBehavior
}

func (aeBehavior) Activate(r *resource.Resource, parent *resource.Resource, originator string) onem2m.Status {
	r.SetIfAbsent("aei", originator)
	r.SetIfAbsent("rr", false)
	return onem2m.OK
}

func intAttr(r *resource.Resource, name string) int {
	v, ok := r.Get(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
