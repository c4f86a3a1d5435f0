package dispatch

import (
	"github.com/getcsed/csed/pkg/discovery"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Request is one inbound operation, already stripped of any transport
// framing.
type Request struct {
	// Operation is the CRUD verb.
	Operation onem2m.Operation
	// Target is the raw address: structured path, resource id, or an
	// SP-relative/absolute form.
	Target string
	// Originator is the caller identity used for access control.
	Originator string
	// RequestID identifies the request for logging; assigned when empty.
	RequestID string
	// ContentType of the payload; required for CREATE and UPDATE.
	ContentType string
	// ResourceType is the declared type of the resource to create.
	ResourceType onem2m.ResourceType
	// Payload is the raw JSON body for CREATE and UPDATE.
	Payload []byte

	// FilterUsage selects discovery vs. conditional retrieval.
	FilterUsage onem2m.FilterUsage
	// ResultContent selects the response shape; zero means the
	// operation's default.
	ResultContent onem2m.ResultContent
	// DesiredIdentifierType selects structured or unstructured
	// references in result lists; zero means structured.
	DesiredIdentifierType onem2m.DesiredIdentifierResultType
	// Handling and Criteria parameterize discovery.
	Handling discovery.Handling
	Criteria *discovery.Criteria
}

// resultContent returns the effective result-content mode.
func (r *Request) resultContent() onem2m.ResultContent {
	if r.ResultContent != onem2m.ResultContentNothing {
		return r.ResultContent
	}
	if r.FilterUsage == onem2m.FilterUsageDiscovery {
		return onem2m.ResultContentChildResourceReferences
	}
	return onem2m.ResultContentAttributes
}

// identifierType returns the effective desired-identifier result type.
func (r *Request) identifierType() onem2m.DesiredIdentifierResultType {
	if r.DesiredIdentifierType == 0 {
		return onem2m.IdentifierStructured
	}
	return r.DesiredIdentifierType
}

// Response is the outcome of one operation.
type Response struct {
	// Code is the response status code, Debug an optional diagnostic.
	Code  onem2m.StatusCode
	Debug string
	// Resource is set when the body is a single resource.
	Resource *resource.Resource
	// Body is set when the response carries a shaped structure
	// (reference lists, trees, attribute diffs, aggregations).
	Body map[string]any
}

// Successful reports whether the response carries a success code.
func (r *Response) Successful() bool { return r.Code.Successful() }

// BodyMap returns the response body as a map, embedding a bare resource
// under its type tag.
func (r *Response) BodyMap() map[string]any {
	if r.Body != nil {
		return r.Body
	}
	if r.Resource != nil {
		return r.Resource.Map(true)
	}
	return nil
}

func fail(code onem2m.StatusCode, debug string) *Response {
	return &Response{Code: code, Debug: debug}
}

func failStatus(s onem2m.Status) *Response {
	return &Response{Code: s.Code, Debug: s.Debug}
}

// AccessFilter decides permissions; implemented by security.Filter.
type AccessFilter interface {
	HasAccess(originator string, r *resource.Resource, p onem2m.Permission) bool
	// HasSelfAccess evaluates against the self-privileges of the
	// applicable policies, used when an update touches acpi.
	HasSelfAccess(originator string, r *resource.Resource, p onem2m.Permission) bool
}

// Registrar validates resource creation and deletion for registration
// bookkeeping; implemented by registration.Manager.
type Registrar interface {
	// CheckCreation may rewrite the effective originator (e.g. assign a
	// generated AE-ID). A non-successful status aborts the create.
	CheckCreation(r *resource.Resource, originator string, parent *resource.Resource) (string, onem2m.Status)
	// CheckDeletion deregisters before deletion; refusal aborts it.
	CheckDeletion(r *resource.Resource, originator string) (bool, onem2m.Status)
}

// Federation forwards transit requests to a remote CSE.
type Federation interface {
	// IsRemoteTarget reports whether a raw slash-prefixed id carries a
	// CSE-id other than the local one.
	IsRemoteTarget(idOrPath string) bool
	Forward(op onem2m.Operation, targetCSE string, req *Request) *Response
}

// EventSink receives fire-and-forget lifecycle notifications; implemented
// by events.Bus.
type EventSink interface {
	ResourceCreatedEvent(r *resource.Resource)
	ResourceDeletedEvent(r *resource.Resource)
}

// VirtualHandler implements the CRUD semantics of a virtual resource type.
// The srn argument is the full structured path the request addressed, which
// for fan-out points extends beyond the virtual node itself.
type VirtualHandler interface {
	Retrieve(target *resource.Resource, srn string, req *Request) *Response
	Create(target *resource.Resource, srn string, req *Request) *Response
	Update(target *resource.Resource, srn string, req *Request) *Response
	Delete(target *resource.Resource, srn string, req *Request) *Response
}
