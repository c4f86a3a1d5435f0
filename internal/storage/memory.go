package storage

import (
	"sort"
	"sync"

	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// InMemoryResourceStore is a thread-safe in-memory implementation of
// ResourceStore backed by id, path, parent and CSE-id indexes.
type InMemoryResourceStore struct {
	mu       sync.RWMutex
	byID     map[string]*resource.Resource
	byPath   map[string]string   // srn -> ri
	children map[string][]string // pi -> child ris, insertion order
	byCSI    map[string]string   // csi -> ri of CSEBase/remoteCSE record
}

// NewInMemoryResourceStore creates an empty store.
func NewInMemoryResourceStore() *InMemoryResourceStore {
	return &InMemoryResourceStore{
		byID:     make(map[string]*resource.Resource),
		byPath:   make(map[string]string),
		children: make(map[string][]string),
		byCSI:    make(map[string]string),
	}
}

// Get retrieves a resource by id. Returns nil if not found.
func (s *InMemoryResourceStore) Get(ri string) *resource.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.byID[ri]; ok {
		return r.Clone()
	}
	return nil
}

// GetByPath retrieves a resource by structured path. Returns nil if not found.
func (s *InMemoryResourceStore) GetByPath(srn string) *resource.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ri, ok := s.byPath[srn]; ok {
		if r, ok := s.byID[ri]; ok {
			return r.Clone()
		}
	}
	return nil
}

// Exists checks whether a resource with the given id or structured path is
// present.
func (s *InMemoryResourceStore) Exists(ri, srn string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byID[ri]; ok {
		return true
	}
	if srn != "" {
		if _, ok := s.byPath[srn]; ok {
			return true
		}
	}
	return false
}

// Put stores or updates a resource.
func (s *InMemoryResourceStore) Put(r *resource.Resource) error {
	if r == nil || r.ID() == "" {
		return ErrNoIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ri := r.ID()
	prev, existed := s.byID[ri]
	if existed && prev.StructuredPath() != r.StructuredPath() {
		delete(s.byPath, prev.StructuredPath())
	}
	stored := r.Clone()
	s.byID[ri] = stored
	if srn := stored.StructuredPath(); srn != "" {
		s.byPath[srn] = ri
	}
	if !existed {
		pi := stored.ParentID()
		s.children[pi] = append(s.children[pi], ri)
	}
	// index CSE-ids of the local base and of remote CSE registrations
	if stored.Type == onem2m.CSEBase || stored.Type == onem2m.RemoteCSE {
		if csi, ok := stored.Get("csi"); ok {
			if c, ok := csi.(string); ok && c != "" {
				s.byCSI[c] = ri
			}
		}
	}
	return nil
}

// Delete removes a resource by id. Returns true if deleted.
func (s *InMemoryResourceStore) Delete(ri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[ri]
	if !ok {
		return false
	}
	delete(s.byID, ri)
	if srn := r.StructuredPath(); srn != "" {
		delete(s.byPath, srn)
	}
	pi := r.ParentID()
	kids := s.children[pi]
	for i, id := range kids {
		if id == ri {
			s.children[pi] = append(kids[:i], kids[i+1:]...)
			break
		}
	}
	delete(s.children, ri)
	if r.Type == onem2m.CSEBase || r.Type == onem2m.RemoteCSE {
		if csi, ok := r.Get("csi"); ok {
			if c, ok := csi.(string); ok {
				delete(s.byCSI, c)
			}
		}
	}
	return true
}

// Children returns the direct children of a parent, optionally restricted
// to the given types. Results are ordered by creation time, then id.
func (s *InMemoryResourceStore) Children(pi string, types ...onem2m.ResourceType) []*resource.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.childrenLocked(pi, types...)
}

func (s *InMemoryResourceStore) childrenLocked(pi string, types ...onem2m.ResourceType) []*resource.Resource {
	var out []*resource.Resource
	for _, ri := range s.children[pi] {
		r, ok := s.byID[ri]
		if !ok {
			continue
		}
		if len(types) > 0 && !containsType(types, r.Type) {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, _ := out[i].Get(resource.AttrCreated)
		cj, _ := out[j].Get(resource.AttrCreated)
		si, _ := ci.(string)
		sj, _ := cj.(string)
		if si != sj {
			return si < sj
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Descendants enumerates the subtree below root in breadth-first order.
func (s *InMemoryResourceStore) Descendants(rootID string, maxLevel int) []*resource.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*resource.Resource
	type frame struct {
		ri    string
		level int
	}
	queue := []frame{{ri: rootID, level: 0}}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if maxLevel > 0 && f.level >= maxLevel {
			continue
		}
		for _, child := range s.childrenLocked(f.ri) {
			out = append(out, child)
			queue = append(queue, frame{ri: child.ID(), level: f.level + 1})
		}
	}
	return out
}

// ResourceIDForPath resolves a structured path to a resource id.
func (s *InMemoryResourceStore) ResourceIDForPath(srn string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byPath[srn]
}

// ResolveCSEID resolves a CSE-id to the id of its registration record.
func (s *InMemoryResourceStore) ResolveCSEID(csi string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byCSI[csi]
}

// Count returns the number of stored resources.
func (s *InMemoryResourceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func containsType(types []onem2m.ResourceType, ty onem2m.ResourceType) bool {
	for _, t := range types {
		if t == ty {
			return true
		}
	}
	return false
}
