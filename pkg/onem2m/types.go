package onem2m

// ResourceType identifies a resource variant. Positive values are the
// standardized oneM2M type codes; negative values are internal virtual
// resource types that are addressable but carry no independent semantics
// outside this CSE.
type ResourceType int

const (
	AccessControlPolicy ResourceType = 1
	ApplicationEntity   ResourceType = 2
	Container           ResourceType = 3
	ContentInstance     ResourceType = 4
	CSEBase             ResourceType = 5
	Group               ResourceType = 9
	MgmtObj             ResourceType = 13
	Node                ResourceType = 14
	RemoteCSE           ResourceType = 16
	Subscription        ResourceType = 23
	FlexContainer       ResourceType = 28

	// Virtual resource types.
	GroupFanOut     ResourceType = -1
	ContainerLatest ResourceType = -2
	ContainerOldest ResourceType = -3
)

// Virtual reports whether the type denotes a virtual resource.
func (t ResourceType) Virtual() bool {
	return t < 0
}

var typeTags = map[ResourceType]string{
	AccessControlPolicy: "m2m:acp",
	ApplicationEntity:   "m2m:ae",
	Container:           "m2m:cnt",
	ContentInstance:     "m2m:cin",
	CSEBase:             "m2m:cb",
	Group:               "m2m:grp",
	MgmtObj:             "m2m:mgo",
	Node:                "m2m:nod",
	RemoteCSE:           "m2m:csr",
	Subscription:        "m2m:sub",
	FlexContainer:       "m2m:fcnt",
	GroupFanOut:         "m2m:fopt",
	ContainerLatest:     "m2m:la",
	ContainerOldest:     "m2m:ol",
}

var tagTypes = func() map[string]ResourceType {
	m := make(map[string]ResourceType, len(typeTags))
	for ty, tag := range typeTags {
		m[tag] = ty
	}
	return m
}()

// Tag returns the short-name tag used as the single-key wrapper in request
// and response bodies, e.g. "m2m:cnt" for Container.
func (t ResourceType) Tag() string {
	if tag, ok := typeTags[t]; ok {
		return tag
	}
	return "m2m:unknown"
}

// TypeFromTag maps a body wrapper tag back to its resource type.
func TypeFromTag(tag string) (ResourceType, bool) {
	ty, ok := tagTypes[tag]
	return ty, ok
}

// Operation is a CRUD verb.
type Operation int

const (
	OperationCreate   Operation = 1
	OperationRetrieve Operation = 2
	OperationUpdate   Operation = 3
	OperationDelete   Operation = 4
)

func (o Operation) String() string {
	switch o {
	case OperationCreate:
		return "CREATE"
	case OperationRetrieve:
		return "RETRIEVE"
	case OperationUpdate:
		return "UPDATE"
	case OperationDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Permission is a bit set of access-control operation privileges.
type Permission int

const (
	PermissionCreate   Permission = 1 << iota // 1
	PermissionRetrieve                        // 2
	PermissionUpdate                          // 4
	PermissionDelete                          // 8
	PermissionNotify                          // 16
	PermissionDiscovery                       // 32

	PermissionAll Permission = 63
)

// Has reports whether p contains all bits of q.
func (p Permission) Has(q Permission) bool {
	return p&q == q
}

// FilterUsage selects between discovery and conditional retrieval.
type FilterUsage int

const (
	FilterUsageDiscovery            FilterUsage = 1
	FilterUsageConditionalRetrieval FilterUsage = 2
)

// FilterOperation combines distinct filter conditions.
type FilterOperation int

const (
	FilterOperationAND FilterOperation = 1
	FilterOperationOR  FilterOperation = 2
)

// ResultContent selects the response shape of a RETRIEVE or UPDATE.
type ResultContent int

const (
	ResultContentNothing                    ResultContent = 0
	ResultContentAttributes                 ResultContent = 1
	ResultContentAttributesAndChildren      ResultContent = 4
	ResultContentAttributesAndChildRefs     ResultContent = 5
	ResultContentChildResourceReferences    ResultContent = 6
	ResultContentChildResources             ResultContent = 8
	ResultContentModifiedAttributes         ResultContent = 9
)

// DesiredIdentifierResultType selects how references identify resources.
type DesiredIdentifierResultType int

const (
	IdentifierStructured   DesiredIdentifierResultType = 1
	IdentifierUnstructured DesiredIdentifierResultType = 2
)
