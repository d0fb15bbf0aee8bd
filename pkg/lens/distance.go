package lens

import (
	"github.com/ritzau/course-planner/pkg/graph"
)

// distanceQueueNode represents a node in the BFS queue
type distanceQueueNode struct {
	nrc      string
	distance int
}

// expandFocus turns subject codes into their sections, so that focusing a
// subject focuses every section of it. Unknown entries are dropped.
func expandFocus(g *graph.ConflictGraph, focus []string) []string {
	seen := make(map[string]bool)
	var expanded []string

	for _, id := range focus {
		if g.Has(id) {
			if !seen[id] {
				seen[id] = true
				expanded = append(expanded, id)
			}
			continue
		}
		for _, nrc := range g.SectionsOf(id) {
			if !seen[nrc] {
				seen[nrc] = true
				expanded = append(expanded, nrc)
			}
		}
	}
	return expanded
}

// ComputeDistances calculates the shortest distance from each section to
// the nearest focused one. Sections not connected to the focus get Infinite;
// with an empty focus every section does.
func ComputeDistances(g *graph.ConflictGraph, focus []string) map[string]int {
	distances := make(map[string]int, g.Len())

	// Initialize BFS queue with focused sections at distance 0
	var queue []distanceQueueNode
	for _, nrc := range expandFocus(g, focus) {
		distances[nrc] = 0
		queue = append(queue, distanceQueueNode{nrc: nrc, distance: 0})
	}

	// BFS traversal
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range g.Neighbors(current.nrc) {
			if _, exists := distances[neighbor]; !exists {
				distances[neighbor] = current.distance + 1
				queue = append(queue, distanceQueueNode{nrc: neighbor, distance: current.distance + 1})
			}
		}
	}

	for _, nrc := range g.Vertices() {
		if _, exists := distances[nrc]; !exists {
			distances[nrc] = Infinite
		}
	}
	return distances
}
