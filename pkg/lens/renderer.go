package lens

import (
	"sort"

	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/logging"
	"github.com/ritzau/course-planner/pkg/model"
)

// Render applies the lens to a full view of g. The input view is not
// modified. Node order is preserved except when subjects are collapsed, in
// which case nodes are ordered by subject code.
func Render(view *model.GraphView, g *graph.ConflictGraph, l Lens) *model.GraphView {
	if l.IsZero() {
		return view
	}
	logging.Debug("rendering graph", "nodeCount", len(view.Nodes), "focus", l.Focus, "depth", l.Depth)

	// 1. Compute distances from the focused sections using BFS
	var distances map[string]int
	if len(l.Focus) > 0 {
		distances = ComputeDistances(g, l.Focus)
	}

	// 2. Keep nodes within the depth
	out := model.NewGraphView()
	included := make(map[string]bool)
	for _, n := range view.Nodes {
		node := *n
		if distances != nil {
			d := distances[n.ID]
			if d == Infinite || d > l.Depth {
				continue
			}
			node.Distance = &d
		}
		included[n.ID] = true
		out.AddNode(&node)
	}

	// 3. Keep edges between included nodes of the wanted kinds
	for _, e := range view.Edges {
		if included[e.Source] && included[e.Target] && l.showsKind(e.Type) {
			edge := *e
			out.AddEdge(&edge)
		}
	}

	// 4. Fold sections into subjects
	if l.CollapseSubjects {
		out = collapseSubjects(out)
	}

	// 5. Drop nodes left without edges
	if l.HideIsolated {
		out = hideIsolated(out)
	}

	logging.Debug("final result", "nodes", len(out.Nodes), "edges", len(out.Edges))
	return out
}

// collapseSubjects replaces sections by one node per subject. Same-subject
// edges vanish inside the subject node; time overlaps between two subjects
// merge into one edge whose Count is the number of section pairs. A subject
// node's Color is -1 since its members may differ.
func collapseSubjects(view *model.GraphView) *model.GraphView {
	subjects := make(map[string]*model.Node)
	subjectOf := make(map[string]string)

	for _, n := range view.Nodes {
		subjectOf[n.ID] = n.Subject
		s, ok := subjects[n.Subject]
		if !ok {
			s = &model.Node{
				ID:      n.Subject,
				Label:   n.Label,
				Subject: n.Subject,
				Color:   -1,
				Blocked: true,
			}
			subjects[n.Subject] = s
		}
		s.Members++
		s.Selected = s.Selected || n.Selected
		s.Blocked = s.Blocked && n.Blocked
		if n.Distance != nil && (s.Distance == nil || *n.Distance < *s.Distance) {
			d := *n.Distance
			s.Distance = &d
		}
	}

	type edgeKey struct{ a, b string }
	merged := make(map[edgeKey]*model.Edge)
	for _, e := range view.Edges {
		a, b := subjectOf[e.Source], subjectOf[e.Target]
		if a == b {
			continue
		}
		if b < a {
			a, b = b, a
		}
		key := edgeKey{a, b}
		if m, ok := merged[key]; ok {
			m.Count++
			continue
		}
		merged[key] = &model.Edge{Source: a, Target: b, Type: e.Type, Detail: e.Detail, Count: 1}
	}

	out := model.NewGraphView()
	for _, s := range subjects {
		out.AddNode(s)
	}
	for _, e := range merged {
		subjects[e.Source].Degree++
		subjects[e.Target].Degree++
		out.AddEdge(e)
	}

	// Sort for deterministic ordering
	sort.Slice(out.Nodes, func(i, j int) bool {
		return out.Nodes[i].ID < out.Nodes[j].ID
	})
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].Source != out.Edges[j].Source {
			return out.Edges[i].Source < out.Edges[j].Source
		}
		return out.Edges[i].Target < out.Edges[j].Target
	})
	return out
}

func hideIsolated(view *model.GraphView) *model.GraphView {
	connected := make(map[string]bool)
	for _, e := range view.Edges {
		connected[e.Source] = true
		connected[e.Target] = true
	}

	out := model.NewGraphView()
	for _, n := range view.Nodes {
		if connected[n.ID] {
			out.AddNode(n)
		}
	}
	out.Edges = view.Edges
	return out
}
