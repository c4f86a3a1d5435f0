package resource

import (
	"github.com/getcsed/csed/pkg/onem2m"
)

// Behavior is the per-type hook set the dispatch core calls around the
// generic CRUD algorithm. Implementations must not assume the resource is
// already visible in the store during Activate.
type Behavior interface {
	// CanHaveChild reports whether the parent accepts a child of the
	// given type.
	CanHaveChild(parent *Resource, childType onem2m.ResourceType) bool

	// Activate runs after the resource is first persisted and before it
	// becomes visible to the originator. It may create auxiliary children
	// and mutate attributes. A failed status triggers the compensating
	// delete of the just-persisted record.
	Activate(r *Resource, parent *Resource, originator string) onem2m.Status

	// Update validates and applies a type-specific view of an update
	// payload before it is persisted.
	Update(r *Resource, attrs map[string]any, originator string) onem2m.Status

	// Deactivate runs type-specific cleanup before deletion.
	Deactivate(r *Resource, originator string)

	// ChildAdded and ChildRemoved notify the parent about child lifecycle.
	ChildAdded(parent *Resource, child *Resource, originator string)
	ChildRemoved(parent *Resource, child *Resource, originator string)
}

// childTypeTable lists the child types each parent type accepts. Virtual
// children (latest/oldest, fan-out point) are created by the parent's own
// activation and are therefore listed too.
var childTypeTable = map[onem2m.ResourceType][]onem2m.ResourceType{
	onem2m.CSEBase: {
		onem2m.AccessControlPolicy, onem2m.ApplicationEntity, onem2m.Container,
		onem2m.FlexContainer, onem2m.Group, onem2m.MgmtObj, onem2m.Node,
		onem2m.RemoteCSE, onem2m.Subscription,
	},
	onem2m.ApplicationEntity: {
		onem2m.AccessControlPolicy, onem2m.Container, onem2m.FlexContainer,
		onem2m.Group, onem2m.Subscription,
	},
	onem2m.Container: {
		onem2m.Container, onem2m.ContentInstance, onem2m.FlexContainer,
		onem2m.Subscription, onem2m.ContainerLatest, onem2m.ContainerOldest,
	},
	onem2m.FlexContainer: {
		onem2m.Container, onem2m.FlexContainer, onem2m.Subscription,
	},
	onem2m.Group: {
		onem2m.Subscription, onem2m.GroupFanOut,
	},
	onem2m.AccessControlPolicy: {
		onem2m.Subscription,
	},
	onem2m.RemoteCSE: {
		onem2m.Container, onem2m.FlexContainer, onem2m.Group, onem2m.Subscription,
	},
	onem2m.Node: {
		onem2m.MgmtObj, onem2m.Subscription,
	},
	onem2m.MgmtObj:         {onem2m.Subscription},
	onem2m.ContentInstance: {},
	onem2m.Subscription:    {},
	onem2m.GroupFanOut:     {},
	onem2m.ContainerLatest: {},
	onem2m.ContainerOldest: {},
}

// DefaultBehavior implements Behavior with the common parent/child
// compatibility table and no-op hooks. Type behaviors embed it and override
// what they need.
type DefaultBehavior struct{}

func (DefaultBehavior) CanHaveChild(parent *Resource, childType onem2m.ResourceType) bool {
	allowed, ok := childTypeTable[parent.Type]
	if !ok {
		return false
	}
	for _, ty := range allowed {
		if ty == childType {
			return true
		}
	}
	return false
}

func (DefaultBehavior) Activate(r *Resource, parent *Resource, originator string) onem2m.Status {
	return onem2m.OK
}

func (DefaultBehavior) Update(r *Resource, attrs map[string]any, originator string) onem2m.Status {
	return onem2m.OK
}

func (DefaultBehavior) Deactivate(r *Resource, originator string) {}

func (DefaultBehavior) ChildAdded(parent *Resource, child *Resource, originator string) {}

func (DefaultBehavior) ChildRemoved(parent *Resource, child *Resource, originator string) {}

// Registry maps resource types to their behaviors. Types without a
// registered behavior fall back to DefaultBehavior.
type Registry struct {
	behaviors map[onem2m.ResourceType]Behavior
	fallback  Behavior
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		behaviors: make(map[onem2m.ResourceType]Behavior),
		fallback:  DefaultBehavior{},
	}
}

// Register binds a behavior to a resource type, replacing any previous one.
func (reg *Registry) Register(ty onem2m.ResourceType, b Behavior) {
	reg.behaviors[ty] = b
}

// Behavior returns the behavior for a type, or the default one.
func (reg *Registry) Behavior(ty onem2m.ResourceType) Behavior {
	if b, ok := reg.behaviors[ty]; ok {
		return b
	}
	return reg.fallback
}
