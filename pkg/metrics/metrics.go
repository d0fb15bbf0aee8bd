// Package metrics summarizes a conflict graph: size, density, connectivity
// and a greedy coloring used to group mutually compatible sections.
package metrics

import (
	"sort"

	"github.com/ritzau/course-planner/pkg/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// Summary holds the headline numbers of a graph snapshot
type Summary struct {
	Vertices   int     `json:"vertices"`
	Edges      int     `json:"edges"`
	MaxDegree  int     `json:"maxDegree"`
	Density    float64 `json:"density"`
	Components int     `json:"components"`
	Isolated   int     `json:"isolated"`
}

// Compute derives the summary. E is taken from the degree sum so that it
// always agrees with what each endpoint reports.
func Compute(g *graph.ConflictGraph) Summary {
	if g == nil || g.Len() == 0 {
		return Summary{}
	}

	var s Summary
	s.Vertices = g.Len()

	degreeSum := 0
	for _, nrc := range g.Vertices() {
		d := g.Degree(nrc)
		degreeSum += d
		if d > s.MaxDegree {
			s.MaxDegree = d
		}
		if d == 0 {
			s.Isolated++
		}
	}
	s.Edges = degreeSum / 2

	if s.Vertices > 1 {
		pairs := float64(s.Vertices) * float64(s.Vertices-1) / 2
		s.Density = float64(s.Edges) / pairs
	}

	s.Components = len(topo.ConnectedComponents(g.Graph()))
	return s
}

// Components returns the connected components as NRC lists, largest first.
// Members of a component are sorted.
func Components(g *graph.ConflictGraph) [][]string {
	if g == nil || g.Len() == 0 {
		return nil
	}

	ccs := topo.ConnectedComponents(g.Graph())
	out := make([][]string, 0, len(ccs))
	for _, cc := range ccs {
		members := make([]string, 0, len(cc))
		for _, n := range cc {
			members = append(members, g.NRC(n.ID()))
		}
		sort.Strings(members)
		out = append(out, members)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}
