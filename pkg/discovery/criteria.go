// Package discovery evaluates filter criteria against the resource tree and
// yields the matching descendant set. Permission filtering is the caller's
// job: the engine only decides which resources match.
package discovery

import (
	"time"

	"github.com/getcsed/csed/pkg/onem2m"
)

// Handling carries the result-handling options of a discovery request.
type Handling struct {
	// Limit caps the number of returned resources; 0 means unlimited.
	Limit int
	// Level limits the tree depth below the discovery root; 0 means
	// unlimited.
	Level int
	// Offset skips the first n matching resources.
	Offset int
	// ApplicationResource names a child to return in place of each match
	// (the "arp" handling condition).
	ApplicationResource string
}

// Criteria is the filter-condition set of a discovery request. Zero values
// mean "condition unset"; unset conditions are ignored.
type Criteria struct {
	// Time window conditions against ct / lt / et.
	CreatedBefore   time.Time
	CreatedAfter    time.Time
	ModifiedSince   time.Time
	UnmodifiedSince time.Time
	ExpireBefore    time.Time
	ExpireAfter     time.Time

	// State tag bounds; nil means unset.
	StateTagSmaller *int
	StateTagBigger  *int

	// Labels matches resources carrying at least one of the given labels.
	Labels []string
	// LabelQuery is an expression over the resource's labels and
	// attributes, e.g. `"sensor" in lbl && attr.cni > 3`.
	LabelQuery string

	// Size bounds against the cs attribute.
	SizeAbove int
	SizeBelow int

	// ContentTypes matches the cnf attribute; multiple values are OR'd
	// within this one condition.
	ContentTypes []string
	// ResourceTypes matches the resource type; multiple values are OR'd
	// within this one condition.
	ResourceTypes []onem2m.ResourceType

	// Attributes are arbitrary attribute-equality predicates.
	Attributes map[string]any

	// Operation combines all distinct conditions; defaults to AND.
	Operation onem2m.FilterOperation
}

// Empty reports whether no condition is set.
func (c *Criteria) Empty() bool {
	if c == nil {
		return true
	}
	return c.CreatedBefore.IsZero() && c.CreatedAfter.IsZero() &&
		c.ModifiedSince.IsZero() && c.UnmodifiedSince.IsZero() &&
		c.ExpireBefore.IsZero() && c.ExpireAfter.IsZero() &&
		c.StateTagSmaller == nil && c.StateTagBigger == nil &&
		len(c.Labels) == 0 && c.LabelQuery == "" &&
		c.SizeAbove == 0 && c.SizeBelow == 0 &&
		len(c.ContentTypes) == 0 && len(c.ResourceTypes) == 0 &&
		len(c.Attributes) == 0
}
