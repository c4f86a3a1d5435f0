package discovery

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/ohler55/ojg/jp"

	"github.com/getcsed/csed/pkg/onem2m"
	"github.com/getcsed/csed/pkg/resource"
)

// Matches evaluates the criteria against one resource. Resource-type and
// content-type lists are OR'd within their own condition; the results of
// all distinct set conditions are then combined with the filter operation.
func Matches(r *resource.Resource, c *Criteria, log *slog.Logger) bool {
	if c.Empty() {
		return true
	}
	var results []bool

	if !c.CreatedBefore.IsZero() {
		results = append(results, timeAttrBefore(r, resource.AttrCreated, c.CreatedBefore))
	}
	if !c.CreatedAfter.IsZero() {
		results = append(results, timeAttrAfter(r, resource.AttrCreated, c.CreatedAfter))
	}
	if !c.ModifiedSince.IsZero() {
		results = append(results, timeAttrAfter(r, resource.AttrModified, c.ModifiedSince))
	}
	if !c.UnmodifiedSince.IsZero() {
		results = append(results, timeAttrBefore(r, resource.AttrModified, c.UnmodifiedSince))
	}
	if !c.ExpireBefore.IsZero() {
		results = append(results, timeAttrBefore(r, resource.AttrExpiration, c.ExpireBefore))
	}
	if !c.ExpireAfter.IsZero() {
		results = append(results, timeAttrAfter(r, resource.AttrExpiration, c.ExpireAfter))
	}
	if c.StateTagSmaller != nil {
		st, ok := intAttr(r, resource.AttrStateTag)
		results = append(results, ok && st < *c.StateTagSmaller)
	}
	if c.StateTagBigger != nil {
		st, ok := intAttr(r, resource.AttrStateTag)
		results = append(results, ok && st > *c.StateTagBigger)
	}
	if len(c.Labels) > 0 {
		results = append(results, anyLabel(r.Labels(), c.Labels))
	}
	if c.LabelQuery != "" {
		results = append(results, labelQueryMatch(r, c.LabelQuery, log))
	}
	if c.SizeAbove > 0 {
		cs, ok := intAttr(r, resource.AttrContentSize)
		results = append(results, ok && cs > c.SizeAbove)
	}
	if c.SizeBelow > 0 {
		cs, ok := intAttr(r, resource.AttrContentSize)
		results = append(results, ok && cs < c.SizeBelow)
	}
	if len(c.ContentTypes) > 0 {
		cnf, _ := r.Get(resource.AttrContentInfo)
		s, _ := cnf.(string)
		match := false
		for _, ct := range c.ContentTypes {
			if s == ct {
				match = true
				break
			}
		}
		results = append(results, match)
	}
	if len(c.ResourceTypes) > 0 {
		match := false
		for _, ty := range c.ResourceTypes {
			if r.Type == ty {
				match = true
				break
			}
		}
		results = append(results, match)
	}
	for name, want := range c.Attributes {
		results = append(results, attributeMatch(r, name, want))
	}

	if c.Operation == onem2m.FilterOperationOR {
		for _, ok := range results {
			if ok {
				return true
			}
		}
		return false
	}
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

// labelQueryMatch compiles and runs a label-query expression. The
// environment exposes the label list as `lbl` and the visible attributes as
// `attr`. A query that fails to compile or run simply does not match.
func labelQueryMatch(r *resource.Resource, query string, log *slog.Logger) bool {
	env := map[string]any{
		"lbl":  r.Labels(),
		"attr": r.Map(false),
		"ty":   int(r.Type),
	}
	out, err := expr.Eval(query, env)
	if err != nil {
		if log != nil {
			log.Debug("label query evaluation failed", "query", query, "error", err)
		}
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// attributeMatch compares one attribute condition. A plain name is an
// equality test against the top-level attribute; a name containing path
// syntax is evaluated as a JSONPath into the attribute map, matching when
// any selected value is equal.
func attributeMatch(r *resource.Resource, name string, want any) bool {
	if strings.ContainsAny(name, ".[*") {
		x, err := jp.ParseString(name)
		if err != nil {
			return false
		}
		for _, got := range x.Get(r.Map(false)) {
			if fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want) {
				return true
			}
		}
		return false
	}
	got, ok := r.Get(name)
	return ok && fmt.Sprintf("%v", got) == fmt.Sprintf("%v", want)
}

func anyLabel(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func timeAttr(r *resource.Resource, name string) (time.Time, bool) {
	v, ok := r.Get(name)
	if !ok {
		return time.Time{}, false
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	return onem2m.ParseTimestamp(s)
}

func timeAttrBefore(r *resource.Resource, name string, bound time.Time) bool {
	t, ok := timeAttr(r, name)
	return ok && t.Before(bound)
}

func timeAttrAfter(r *resource.Resource, name string, bound time.Time) bool {
	t, ok := timeAttr(r, name)
	return ok && t.After(bound)
}

func intAttr(r *resource.Resource, name string) (int, bool) {
	v, ok := r.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
