// Package conflicts derives the set of sections blocked by a selection and
// owns the selection state so that the two can never be observed out of step.
package conflicts

import (
	"sort"

	"github.com/ritzau/course-planner/pkg/graph"
)

// Set is a set of NRCs
type Set map[string]struct{}

// NewSet builds a set from a list of NRCs
func NewSet(nrcs ...string) Set {
	s := make(Set, len(nrcs))
	for _, n := range nrcs {
		s[n] = struct{}{}
	}
	return s
}

// Has reports membership
func (s Set) Has(nrc string) bool {
	_, ok := s[nrc]
	return ok
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for n := range s {
		out[n] = struct{}{}
	}
	return out
}

// Recompute returns the union of the neighbors of every selected vertex,
// minus the selected vertices themselves. Selected NRCs unknown to the graph
// contribute nothing.
func Recompute(selection Set, g *graph.ConflictGraph) Set {
	blocked := make(Set)
	if g == nil {
		return blocked
	}
	for nrc := range selection {
		for _, n := range g.Neighbors(nrc) {
			blocked[n] = struct{}{}
		}
	}
	for nrc := range selection {
		delete(blocked, nrc)
	}
	return blocked
}

// Violation is a pair of selected sections that conflict with each other
type Violation struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Violations lists adjacent pairs inside a selection. A well-behaved caller
// never produces any; they appear only when toggling bypassed the conflict set.
func Violations(selection Set, g *graph.ConflictGraph) []Violation {
	if g == nil {
		return nil
	}
	members := selection.Sorted()
	var out []Violation
	for i, a := range members {
		for _, b := range members[i+1:] {
			if g.Adjacent(a, b) {
				out = append(out, Violation{A: a, B: b})
			}
		}
	}
	return out
}
