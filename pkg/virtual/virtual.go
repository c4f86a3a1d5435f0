// Package virtual implements the CRUD semantics of addressable nodes that
// have no semantics of their own: the latest/oldest children of a
// container, and the group fan-out point that broadcasts operations to the
// group's members.
package virtual

import (
	"log/slog"
	"strings"

	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/dispatch"
	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Register wires the virtual resource handlers into a dispatcher.
func Register(d *dispatch.Dispatcher, store storage.ResourceStore, log *slog.Logger) {
	if log == nil {
		log = logging.Nop()
	}
	d.RegisterVirtualHandler(onem2m.ContainerLatest, &instancePointer{dispatcher: d, store: store, latest: true, log: log})
	d.RegisterVirtualHandler(onem2m.ContainerOldest, &instancePointer{dispatcher: d, store: store, latest: false, log: log})
	d.RegisterVirtualHandler(onem2m.GroupFanOut, &fanOut{dispatcher: d, store: store, log: log})
}

// instancePointer serves the <latest> and <oldest> children of a container.
type instancePointer struct {
	dispatcher *dispatch.Dispatcher
	store      storage.ResourceStore
	latest     bool
	log        *slog.Logger
}

func (p *instancePointer) name() string {
	if p.latest {
		return "<latest>"
	}
	return "<oldest>"
}

// instance resolves the pointed-at content instance, nil when the
// container is empty. Children are ordered by creation time, then id.
func (p *instancePointer) instance(target *resource.Resource) *resource.Resource {
	instances := p.store.Children(target.ParentID(), onem2m.ContentInstance)
	if len(instances) == 0 {
		return nil
	}
	if p.latest {
		return instances[len(instances)-1]
	}
	return instances[0]
}

func (p *instancePointer) Retrieve(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	r := p.instance(target)
	if r == nil {
		return &dispatch.Response{Code: onem2m.StatusNotFound, Debug: "no instance for " + p.name()}
	}
	return &dispatch.Response{Code: onem2m.StatusOK, Resource: r}
}

func (p *instancePointer) Create(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	return &dispatch.Response{Code: onem2m.StatusOperationNotAllowed, Debug: "operation not allowed for " + p.name()}
}

func (p *instancePointer) Update(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	return &dispatch.Response{Code: onem2m.StatusOperationNotAllowed, Debug: "operation not allowed for " + p.name()}
}

func (p *instancePointer) Delete(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	r := p.instance(target)
	if r == nil {
		return &dispatch.Response{Code: onem2m.StatusNotFound, Debug: "no instance for " + p.name()}
	}
	p.log.Debug("deleting instance through virtual child", "ri", r.ID(), "latest", p.latest)
	deleted, st := p.dispatcher.DeleteResource(r, req.Originator, true)
	if !st.Successful() {
		return &dispatch.Response{Code: st.Code, Debug: st.Debug}
	}
	return &dispatch.Response{Code: onem2m.StatusDeleted, Resource: deleted}
}

// fanOut broadcasts operations addressed to or through a group's fan-out
// point to every member and aggregates the responses.
type fanOut struct {
	dispatcher *dispatch.Dispatcher
	store      storage.ResourceStore
	log        *slog.Logger
}

func (f *fanOut) Retrieve(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	return f.broadcast(onem2m.OperationRetrieve, target, srn, req)
}

func (f *fanOut) Create(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	return f.broadcast(onem2m.OperationCreate, target, srn, req)
}

func (f *fanOut) Update(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	return f.broadcast(onem2m.OperationUpdate, target, srn, req)
}

func (f *fanOut) Delete(target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	return f.broadcast(onem2m.OperationDelete, target, srn, req)
}

func (f *fanOut) broadcast(op onem2m.Operation, target *resource.Resource, srn string, req *dispatch.Request) *dispatch.Response {
	group := f.store.Get(target.ParentID())
	if group == nil || group.Type != onem2m.Group {
		return &dispatch.Response{Code: onem2m.StatusNotFound, Debug: "fan-out point has no group"}
	}

	// Anything addressed beyond the fan-out point applies relative to
	// each member.
	remainder := ""
	if i := strings.Index(srn, "/fopt"); i >= 0 && len(srn) > i+len("/fopt") {
		remainder = srn[i+len("/fopt"):]
	}

	members := memberIDs(group)
	f.log.Debug("fanning out request", "op", op.String(), "group", group.ID(), "members", len(members))

	responses := make([]any, 0, len(members))
	for _, mid := range members {
		mreq := *req
		mreq.Operation = op
		mreq.Target = mid + remainder
		mresp := f.dispatcher.Handle(&mreq)
		entry := map[string]any{
			"rsc": int(mresp.Code),
			"to":  mreq.Target,
		}
		if body := mresp.BodyMap(); body != nil {
			entry["pc"] = body
		}
		responses = append(responses, entry)
	}
	return &dispatch.Response{
		Code: onem2m.StatusOK,
		Body: map[string]any{"m2m:agr": map[string]any{"m2m:rsp": responses}},
	}
}

func memberIDs(group *resource.Resource) []string {
	v, ok := group.Get("mid")
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
