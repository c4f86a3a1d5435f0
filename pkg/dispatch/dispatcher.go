package dispatch

import (
	"log/slog"
	"strings"

	"github.com/getcsed/csed/internal/id"
	"github.com/getcsed/csed/internal/locking"
	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/address"
	"github.com/getcsed/csed/pkg/discovery"
	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// fanOutSegment is the reserved resource name of group fan-out points.
const fanOutSegment = "fopt"

// Config carries the CSE identity and the dispatch feature switches.
type Config struct {
	// CSEResourceName is the resource name of the local CSEBase.
	CSEResourceName string
	// CSEResourceID is the resource id of the local CSEBase.
	CSEResourceID string
	// CSEID is the CSE-id (csi), with or without the leading slash.
	CSEID string
	// EnableTransit allows forwarding of requests targeting remote CSEs.
	EnableTransit bool
}

// Dispatcher is the top-level CRUD router of the CSE.
type Dispatcher struct {
	cfg        Config
	store      storage.ResourceStore
	resolver   *address.Resolver
	registry   *resource.Registry
	security   AccessFilter
	registrar  Registrar
	federation Federation
	events     EventSink
	engine     *discovery.Engine
	virtual    map[onem2m.ResourceType]VirtualHandler
	locks      *locking.Registry
	log        *slog.Logger
}

// New creates a dispatcher. The security, registrar and events collaborators
// are required; federation may be nil when transit is disabled.
func New(cfg Config, store storage.ResourceStore, sec AccessFilter, reg Registrar,
	fed Federation, events EventSink, registry *resource.Registry, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Dispatcher{
		cfg:        cfg,
		store:      store,
		resolver:   address.NewResolver(store, cfg.CSEResourceName, cfg.CSEResourceID, cfg.CSEID),
		registry:   registry,
		security:   sec,
		registrar:  reg,
		federation: fed,
		events:     events,
		engine:     discovery.NewEngine(store, log),
		virtual:    make(map[onem2m.ResourceType]VirtualHandler),
		locks:      locking.NewRegistry(),
		log:        log,
	}
}

// RegisterVirtualHandler binds a handler to a virtual resource type.
func (d *Dispatcher) RegisterVirtualHandler(ty onem2m.ResourceType, h VirtualHandler) {
	d.virtual[ty] = h
}

// Resolver exposes the address resolver, e.g. for transport bindings.
func (d *Dispatcher) Resolver() *address.Resolver { return d.resolver }

// Handle routes a request to the verb-specific entry point.
func (d *Dispatcher) Handle(req *Request) *Response {
	if req.RequestID == "" {
		req.RequestID = id.Request()
	}
	switch req.Operation {
	case onem2m.OperationCreate:
		return d.Create(req)
	case onem2m.OperationRetrieve:
		return d.Retrieve(req)
	case onem2m.OperationUpdate:
		return d.Update(req)
	case onem2m.OperationDelete:
		return d.Delete(req)
	default:
		return fail(onem2m.StatusBadRequest, "unsupported operation")
	}
}

// preamble runs the steps common to all operations: address resolution,
// transit forwarding and fan-out interception. A non-nil response short
// circuits the operation.
func (d *Dispatcher) preamble(req *Request) (address.Target, *Response) {
	t, ok := d.resolver.Resolve(req.Target)
	if !ok || (t.ResourceID == "" && t.StructuredPath == "") {
		return t, fail(onem2m.StatusNotFound, "unresolvable address")
	}

	remoteCSE := ""
	switch {
	case d.resolver.Remote(t):
		remoteCSE = t.CSEID
	case t.ResourceID == "" && t.CSEID == "" && d.federation != nil && d.federation.IsRemoteTarget(req.Target):
		// slash-prefixed SP-relative form naming a foreign CSE-id
		remoteCSE = firstSegment(req.Target)
	}
	if remoteCSE != "" {
		if !d.cfg.EnableTransit || d.federation == nil {
			return t, fail(onem2m.StatusOperationNotAllowed, "transit requests are disabled")
		}
		d.log.Debug("forwarding transit request",
			"op", req.Operation.String(), "cse", remoteCSE, "requestID", req.RequestID)
		return t, d.federation.Forward(req.Operation, remoteCSE, req)
	}

	if fo, srn := d.fanOutPoint(t); fo != nil {
		h, ok := d.virtual[onem2m.GroupFanOut]
		if !ok {
			return t, fail(onem2m.StatusNotImplemented, "no fan-out handler registered")
		}
		d.log.Debug("redirecting request to fan-out point",
			"op", req.Operation.String(), "srn", srn, "requestID", req.RequestID)
		switch req.Operation {
		case onem2m.OperationCreate:
			return t, h.Create(fo, srn, req)
		case onem2m.OperationRetrieve:
			return t, h.Retrieve(fo, srn, req)
		case onem2m.OperationUpdate:
			return t, h.Update(fo, srn, req)
		default:
			return t, h.Delete(fo, srn, req)
		}
	}

	return t, nil
}

// firstSegment returns the first path segment of an id, skipping a leading
// slash.
func firstSegment(raw string) string {
	seg := strings.TrimPrefix(raw, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return seg
}

// fanOutPoint returns the fan-out point resource when the target denotes or
// passes through one, together with the full structured path addressed.
func (d *Dispatcher) fanOutPoint(t address.Target) (*resource.Resource, string) {
	srn := t.StructuredPath
	if srn == "" && t.ResourceID != "" {
		if r := d.store.Get(t.ResourceID); r != nil {
			srn = r.StructuredPath()
		}
	}
	if srn == "" {
		return nil, ""
	}
	var nid string
	switch {
	case strings.HasSuffix(srn, "/"+fanOutSegment):
		nid = srn
	case strings.Contains(srn, "/"+fanOutSegment+"/"):
		nid = srn[:strings.Index(srn, "/"+fanOutSegment+"/")+len("/"+fanOutSegment)]
	default:
		return nil, ""
	}
	fo := d.store.GetByPath(nid)
	if fo == nil || fo.Type != onem2m.GroupFanOut {
		return nil, ""
	}
	return fo, srn
}

// fetch loads the addressed resource without virtual delegation.
func (d *Dispatcher) fetch(t address.Target) *resource.Resource {
	if t.StructuredPath != "" {
		if r := d.store.GetByPath(t.StructuredPath); r != nil {
			return r
		}
	}
	if t.ResourceID != "" {
		return d.store.Get(t.ResourceID)
	}
	return nil
}

// RetrieveLocalResource fetches a resource by id or structured path,
// delegating to the type handler when the target is a virtual resource.
// Used by the RETRIEVE path and by virtual handlers that chain retrievals.
func (d *Dispatcher) RetrieveLocalResource(idOrPath string, req *Request) (*resource.Resource, onem2m.Status) {
	var r *resource.Resource
	if address.IsStructured(idOrPath) {
		r = d.store.GetByPath(idOrPath)
	} else {
		r = d.store.Get(idOrPath)
	}
	if r == nil {
		return nil, onem2m.Statusf(onem2m.StatusNotFound, "resource not found: %s", idOrPath)
	}
	if r.Virtual() && r.Type != onem2m.GroupFanOut {
		if h, ok := d.virtual[r.Type]; ok {
			resp := h.Retrieve(r, r.StructuredPath(), req)
			if !resp.Successful() {
				return nil, onem2m.Status{Code: resp.Code, Debug: resp.Debug}
			}
			return resp.Resource, onem2m.OK
		}
	}
	return r, onem2m.OK
}

// retrieveTarget loads the resolved target, preferring the unstructured id
// the resolver already derived; the structured path is only a fallback for
// addresses the path index could not map.
func (d *Dispatcher) retrieveTarget(t address.Target, req *Request) (*resource.Resource, onem2m.Status) {
	if t.ResourceID != "" {
		return d.RetrieveLocalResource(t.ResourceID, req)
	}
	return d.RetrieveLocalResource(t.StructuredPath, req)
}

// structuredPathOf computes a resource's structured path from its parent's,
// falling back to the store when the cached value is missing.
func (d *Dispatcher) structuredPathOf(r *resource.Resource) string {
	if srn := r.StructuredPath(); srn != "" {
		return srn
	}
	if r.Type == onem2m.CSEBase || r.ParentID() == "" {
		return r.Name()
	}
	parent := d.store.Get(r.ParentID())
	if parent == nil {
		return r.Name()
	}
	return d.structuredPathOf(parent) + "/" + r.Name()
}
