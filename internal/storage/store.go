package storage

import (
	"errors"

	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// ErrNoIdentifier is returned by Put for a resource without a resource id.
var ErrNoIdentifier = errors.New("resource has no identifier")

// ResourceStore is the persistence contract of the dispatch core.
type ResourceStore interface {
	// Get retrieves a resource by id. Returns nil if not found.
	Get(ri string) *resource.Resource

	// GetByPath retrieves a resource by structured path. Returns nil if
	// not found.
	GetByPath(srn string) *resource.Resource

	// Exists checks whether a resource with the given id or structured
	// path is present.
	Exists(ri, srn string) bool

	// Put stores or updates a resource and maintains the path, parent and
	// CSE-id indexes.
	Put(r *resource.Resource) error

	// Delete removes a resource by id. Returns true if deleted.
	Delete(ri string) bool

	// Children returns the direct children of a parent, optionally
	// restricted to the given types.
	Children(pi string, types ...onem2m.ResourceType) []*resource.Resource

	// Descendants enumerates the subtree below root in breadth-first
	// order, the root itself excluded. maxLevel limits the depth relative
	// to the root; 0 means unlimited.
	Descendants(rootID string, maxLevel int) []*resource.Resource

	// ResourceIDForPath resolves a structured path to a resource id,
	// empty when unknown.
	ResourceIDForPath(srn string) string

	// ResolveCSEID resolves a CSE-id (csi) to the id of its registration
	// record, empty when unknown.
	ResolveCSEID(csi string) string

	// Count returns the number of stored resources.
	Count() int
}
