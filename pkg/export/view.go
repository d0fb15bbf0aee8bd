package export

import (
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/model"
)

// ViewInput bundles what the JSON view decorates vertices with. Any field may
// be nil.
type ViewInput struct {
	Subjects   map[string]model.Subject
	Professors map[string]model.Professor
	Colors     map[string]int
	Selected   []string
	Blocked    []string
}

// View builds the serializable graph drawn by the web client. Nodes follow
// descending degree so the most constrained sections come first.
func View(g *graph.ConflictGraph, in ViewInput) *model.GraphView {
	view := model.NewGraphView()

	selected := toSet(in.Selected)
	blocked := toSet(in.Blocked)

	for _, nrc := range g.VerticesByDegree() {
		section, _ := g.Section(nrc)
		node := &model.Node{
			ID:       nrc,
			Label:    section.SubjectCode,
			Subject:  section.SubjectCode,
			Degree:   g.Degree(nrc),
			Color:    in.Colors[nrc],
			Selected: selected[nrc],
			Blocked:  blocked[nrc],
		}
		if s, ok := in.Subjects[section.SubjectCode]; ok && s.Name != "" {
			node.Label = s.Name
		}
		if p, ok := in.Professors[section.ProfessorID]; ok {
			node.Professor = p.Name
		}
		view.AddNode(node)
	}

	for _, row := range EdgeRows(g) {
		view.AddEdge(&model.Edge{
			Source: row.U,
			Target: row.V,
			Type:   row.Type,
			Detail: row.Detail,
		})
	}
	return view
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
