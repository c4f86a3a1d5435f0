package discovery

import (
	"log/slog"

	"github.com/getcsed/csed/internal/storage"
	"github.com/getcsed/csed/pkg/logging"
	"github.com/getcsed/csed/pkg/resource"
)

// Engine runs discovery queries against the resource store.
type Engine struct {
	store storage.ResourceStore
	log   *slog.Logger
}

// NewEngine creates a discovery engine.
func NewEngine(store storage.ResourceStore, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{store: store, log: log}
}

// Discover returns the descendants of root matching the criteria, in
// breadth-first store order, after applying offset and limit. The engine
// performs no permission checks.
func (e *Engine) Discover(root *resource.Resource, h Handling, c *Criteria) []*resource.Resource {
	if c == nil {
		c = &Criteria{}
	}
	candidates := e.store.Descendants(root.ID(), h.Level)

	matched := make([]*resource.Resource, 0, len(candidates))
	for _, r := range candidates {
		if !Matches(r, c, e.log) {
			continue
		}
		matched = append(matched, r)
	}

	// The arp handling condition redirects each match to one of its
	// children, named relative to the match.
	if h.ApplicationResource != "" {
		redirected := make([]*resource.Resource, 0, len(matched))
		for _, r := range matched {
			if child := e.store.GetByPath(r.StructuredPath() + "/" + h.ApplicationResource); child != nil {
				redirected = append(redirected, child)
			}
		}
		matched = redirected
	}

	if h.Offset > 0 {
		if h.Offset >= len(matched) {
			return nil
		}
		matched = matched[h.Offset:]
	}
	if h.Limit > 0 && len(matched) > h.Limit {
		matched = matched[:h.Limit]
	}
	e.log.Debug("discovery finished", "root", root.ID(), "matches", len(matched))
	return matched
}
