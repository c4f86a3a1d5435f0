// Package registration validates resource creation and deletion for
// registration bookkeeping (AE and remote-CSE registrations) and forwards
// transit requests whose target belongs to another CSE.
package registration

import (
	"log/slog"
	"strings"

	"github.com/getcsed/csed/internal/id"
	"github.com/getcsed/csed/pkg/dispatch"
	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Forwarder delivers a transit request to a remote CSE and returns its
// response. The transport behind it is not this package's concern.
type Forwarder func(op onem2m.Operation, targetCSE string, req *dispatch.Request) *dispatch.Response

// Manager implements the dispatcher's Registrar and Federation contracts.
type Manager struct {
	csi       string
	forwarder Forwarder
	// originators that may never register as an AE
	reservedOriginators map[string]bool
	log                 *slog.Logger
}

// NewManager creates a registration manager for the local CSE-id.
func NewManager(csi string, reserved []string, log *slog.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	m := &Manager{
		csi:                 strings.TrimPrefix(csi, "/"),
		reservedOriginators: make(map[string]bool, len(reserved)),
		log:                 log,
	}
	for _, o := range reserved {
		m.reservedOriginators[o] = true
	}
	return m
}

// SetForwarder installs the transit transport. Without one, transit
// requests fail as unreachable.
func (m *Manager) SetForwarder(f Forwarder) { m.forwarder = f }

// CheckCreation validates a creation for registration purposes and returns
// the effective originator. AE registrations may be assigned a generated
// AE-ID; remote-CSE registrations must carry a CSE-id.
func (m *Manager) CheckCreation(r *resource.Resource, originator string, parent *resource.Resource) (string, onem2m.Status) {
	switch r.Type {
	case onem2m.ApplicationEntity:
		return m.checkAECreation(r, originator)
	case onem2m.RemoteCSE:
		csi, _ := r.Get("csi")
		if s, _ := csi.(string); s == "" {
			return originator, onem2m.Statusf(onem2m.StatusBadRequest, "remote CSE registration without csi")
		}
		m.log.Info("remote CSE registered", "csi", csi)
		return originator, onem2m.OK
	default:
		return originator, onem2m.OK
	}
}

func (m *Manager) checkAECreation(r *resource.Resource, originator string) (string, onem2m.Status) {
	if m.reservedOriginators[originator] {
		return originator, onem2m.Statusf(onem2m.StatusOriginatorHasNoPrivilege, "originator %s is reserved", originator)
	}
	// "C" and "S" request an assigned AE-ID of that class; an empty
	// originator gets an SP-assigned one.
	if originator == "" || originator == "C" || originator == "S" {
		originator = id.AE()
		m.log.Debug("assigned AE-ID", "aei", originator)
	}
	r.Set("aei", originator)
	m.log.Info("AE registered", "aei", originator, "rn", r.Name())
	return originator, onem2m.OK
}

// CheckDeletion deregisters a resource before its deletion.
func (m *Manager) CheckDeletion(r *resource.Resource, originator string) (bool, onem2m.Status) {
	switch r.Type {
	case onem2m.ApplicationEntity:
		aei, _ := r.Get("aei")
		m.log.Info("AE deregistered", "aei", aei)
	case onem2m.RemoteCSE:
		csi, _ := r.Get("csi")
		m.log.Info("remote CSE deregistered", "csi", csi)
	}
	return true, onem2m.OK
}

// Forward delegates a transit request to the installed forwarder.
func (m *Manager) Forward(op onem2m.Operation, targetCSE string, req *dispatch.Request) *dispatch.Response {
	if m.forwarder == nil {
		return &dispatch.Response{Code: onem2m.StatusTargetNotReachable,
			Debug: "no route to CSE " + targetCSE}
	}
	m.log.Debug("forwarding request", "op", op.String(), "cse", targetCSE)
	return m.forwarder(op, targetCSE, req)
}

// IsRemoteTarget reports whether an id carries a CSE-id prefix other than
// the local one.
func (m *Manager) IsRemoteTarget(idOrPath string) bool {
	if !strings.HasPrefix(idOrPath, "/") {
		return false
	}
	rest := strings.TrimPrefix(idOrPath, "/")
	seg := rest
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		seg = rest[:i]
	}
	return seg != "" && seg != m.csi
}
