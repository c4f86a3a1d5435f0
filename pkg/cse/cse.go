// Package cse assembles the dispatch core into a running Common Service
// Entity: it wires the store, access filter, registration manager, event
// bus, type behaviors and virtual resource handlers, boots the CSEBase
// resource tree, and exposes the four operation entry points.
package cse

import (
	"log/slog"

	"github.com/getcsed/csed/internal/id"
	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/config"
	"github.com/getcsed/csed/pkg/dispatch"
	"github.com/getcsed/csed/pkg/events"
	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/registration"
	"github.com/getcsed/csed/pkg/resource"
	"github.com/getcsed/csed/pkg/security"
	"github.com/getcsed/csed/pkg/virtual"
)

// CSE is a fully wired Common Service Entity.
type CSE struct {
	Config       *config.Config
	Store        storage.ResourceStore
	Security     *security.Filter
	Registration *registration.Manager
	Events       *events.Bus
	Dispatcher   *dispatch.Dispatcher

	log *slog.Logger
}

// New constructs and boots a CSE. A nil logger disables logging.
func New(cfg *config.Config, log *slog.Logger) (*CSE, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Nop()
	}

	store := storage.NewInMemoryResourceStore()
	sec := security.NewFilter(store, cfg.CSE.AdminOriginator, log)
	reg := registration.NewManager(cfg.CSE.ID, []string{cfg.CSE.AdminOriginator}, log)
	bus := events.NewBus(cfg.Events.QueueSize, log)
	registry := resource.NewRegistry()

	d := dispatch.New(dispatch.Config{
		CSEResourceName: cfg.CSE.ResourceName,
		CSEResourceID:   cfg.CSE.ResourceID,
		CSEID:           cfg.CSE.ID,
		EnableTransit:   cfg.CSE.EnableTransit,
	}, store, sec, reg, reg, bus, registry, log)

	registerBehaviors(registry, d, store, log)
	virtual.Register(d, store, log)

	c := &CSE{
		Config:       cfg,
		Store:        store,
		Security:     sec,
		Registration: reg,
		Events:       bus,
		Dispatcher:   d,
		log:          log,
	}
	if err := c.boot(); err != nil {
		bus.Close()
		return nil, err
	}
	log.Info("CSE initialized", "csi", cfg.CSE.ID, "rn", cfg.CSE.ResourceName)
	return c, nil
}

// boot creates the CSEBase and its default access control policy.
func (c *CSE) boot() error {
	now := onem2m.Now()
	cse := c.Config.CSE

	base := resource.New(onem2m.CSEBase, map[string]any{
		resource.AttrResourceID:   cse.ResourceID,
		resource.AttrResourceName: cse.ResourceName,
		resource.AttrCreated:      now,
		resource.AttrModified:     now,
		"csi":                     cse.ID,
		"srt": []any{
			int(onem2m.AccessControlPolicy), int(onem2m.ApplicationEntity),
			int(onem2m.Container), int(onem2m.ContentInstance),
			int(onem2m.CSEBase), int(onem2m.Group), int(onem2m.MgmtObj),
			int(onem2m.Node), int(onem2m.RemoteCSE), int(onem2m.Subscription),
			int(onem2m.FlexContainer),
		},
	})
	base.SetStructuredPath(cse.ResourceName)
	if err := c.Store.Put(base); err != nil {
		return err
	}

	acp := resource.New(onem2m.AccessControlPolicy, map[string]any{
		resource.AttrResourceID:   id.Resource("acp"),
		resource.AttrResourceName: "acpDefault",
		resource.AttrParentID:     base.ID(),
		resource.AttrCreated:      now,
		resource.AttrModified:     now,
		"pv": map[string]any{
			"acr": []any{
				map[string]any{
					"acor": []any{security.WildcardOriginator},
					"acop": int(onem2m.PermissionCreate | onem2m.PermissionRetrieve |
						onem2m.PermissionNotify | onem2m.PermissionDiscovery),
				},
				map[string]any{
					"acor": []any{cse.AdminOriginator},
					"acop": int(onem2m.PermissionAll),
				},
			},
		},
		"pvs": map[string]any{
			"acr": []any{
				map[string]any{
					"acor": []any{cse.AdminOriginator},
					"acop": int(onem2m.PermissionAll),
				},
			},
		},
	})
	acp.SetStructuredPath(cse.ResourceName + "/acpDefault")
	if err := c.Store.Put(acp); err != nil {
		return err
	}

	base.Set(resource.AttrACPIDs, []any{acp.ID()})
	return c.Store.Put(base)
}

// Handle routes a request to the matching CRUD entry point.
func (c *CSE) Handle(req *dispatch.Request) *dispatch.Response {
	return c.Dispatcher.Handle(req)
}

// Retrieve executes a RETRIEVE or discovery operation.
func (c *CSE) Retrieve(req *dispatch.Request) *dispatch.Response {
	req.Operation = onem2m.OperationRetrieve
	return c.Dispatcher.Retrieve(req)
}

// Create executes a CREATE operation.
func (c *CSE) Create(req *dispatch.Request) *dispatch.Response {
	req.Operation = onem2m.OperationCreate
	return c.Dispatcher.Create(req)
}

// Update executes an UPDATE operation.
func (c *CSE) Update(req *dispatch.Request) *dispatch.Response {
	req.Operation = onem2m.OperationUpdate
	return c.Dispatcher.Update(req)
}

// Delete executes a DELETE operation.
func (c *CSE) Delete(req *dispatch.Request) *dispatch.Response {
	req.Operation = onem2m.OperationDelete
	return c.Dispatcher.Delete(req)
}

// Shutdown stops the background machinery.
func (c *CSE) Shutdown() {
	c.Events.Close()
	c.log.Info("CSE shut down")
}
