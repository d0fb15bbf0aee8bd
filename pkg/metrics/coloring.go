package metrics

import (
	"sort"

	"github.com/ritzau/course-planner/pkg/graph"
)

// Coloring maps each NRC to a color index
type Coloring map[string]int

// GreedyColor assigns every vertex the smallest color not used by an already
// colored neighbor. Vertices are processed by descending degree, ties in
// section order, so the result is reproducible for a given snapshot.
//
// The number of colors is an upper bound on the chromatic number, nothing
// more.
func GreedyColor(g *graph.ConflictGraph) Coloring {
	colors := make(Coloring)
	if g == nil {
		return colors
	}

	for _, nrc := range g.VerticesByDegree() {
		forbidden := make(map[int]bool)
		for _, n := range g.Neighbors(nrc) {
			if c, done := colors[n]; done {
				forbidden[c] = true
			}
		}

		c := 0
		for forbidden[c] {
			c++
		}
		colors[nrc] = c
	}
	return colors
}

// Count returns the number of distinct colors used
func (c Coloring) Count() int {
	seen := make(map[int]struct{})
	for _, color := range c {
		seen[color] = struct{}{}
	}
	return len(seen)
}

// Group is one color class. Its members are pairwise compatible.
type Group struct {
	Color    int      `json:"color"`
	Sections []string `json:"sections"`
}

// Groups returns the color classes ordered by color, members sorted
func (c Coloring) Groups() []Group {
	byColor := make(map[int][]string)
	for nrc, color := range c {
		byColor[color] = append(byColor[color], nrc)
	}

	groups := make([]Group, 0, len(byColor))
	for color, members := range byColor {
		sort.Strings(members)
		groups = append(groups, Group{Color: color, Sections: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Color < groups[j].Color
	})
	return groups
}

// Valid reports whether no edge joins two vertices of the same color
func (c Coloring) Valid(g *graph.ConflictGraph) bool {
	for _, e := range g.Edges() {
		cu, okU := c[e[0]]
		cv, okV := c[e[1]]
		if !okU || !okV || cu == cv {
			return false
		}
	}
	return true
}
