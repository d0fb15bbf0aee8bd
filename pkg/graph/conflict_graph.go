package graph

import (
	"slices"
	"sort"

	"github.com/ritzau/course-planner/pkg/model"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/simple"
)

// SectionNode is a vertex of the conflict graph
type SectionNode struct {
	id      int64
	NRC     string
	Subject string
}

// ID implements graph.Node
func (n SectionNode) ID() int64 { return n.id }

// DOTID implements dot.Node so exports use the NRC as the vertex name
func (n SectionNode) DOTID() string { return n.NRC }

// Attributes implements encoding.Attributer
func (n SectionNode) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "subject", Value: n.Subject}}
}

// ConflictGraph is an immutable snapshot of the incompatibility graph over
// sections. Vertices are NRCs; an edge means the two sections cannot be taken
// together. A snapshot is never mutated after Build returns, so any number of
// readers may share it.
type ConflictGraph struct {
	graph     *simple.UndirectedGraph
	nodes     []SectionNode    // Indexed by node ID, in section order
	ids       map[string]int64 // NRC -> node ID
	degree    []int            // Indexed by node ID
	edges     int
	sections  map[string]model.Section
	meetings  map[string][]model.Meeting // Normalized meetings per NRC, sorted by day and start
	bySubject map[string][]string        // Subject code -> NRCs in section order
	subjects  []string                   // Subject codes in order of first appearance
}

func newConflictGraph() *ConflictGraph {
	return &ConflictGraph{
		graph:     simple.NewUndirectedGraph(),
		nodes:     make([]SectionNode, 0),
		ids:       make(map[string]int64),
		sections:  make(map[string]model.Section),
		meetings:  make(map[string][]model.Meeting),
		bySubject: make(map[string][]string),
	}
}

// Empty returns a graph with no vertices
func Empty() *ConflictGraph {
	return newConflictGraph()
}

// addSection registers a vertex. Duplicate or blank NRCs are ignored.
func (cg *ConflictGraph) addSection(s model.Section) bool {
	if s.NRC == "" {
		return false
	}
	if _, exists := cg.ids[s.NRC]; exists {
		return false
	}

	id := int64(len(cg.nodes))
	node := SectionNode{id: id, NRC: s.NRC, Subject: s.SubjectCode}
	cg.nodes = append(cg.nodes, node)
	cg.ids[s.NRC] = id
	cg.degree = append(cg.degree, 0)
	cg.sections[s.NRC] = s

	cg.graph.AddNode(node)

	if _, seen := cg.bySubject[s.SubjectCode]; !seen {
		cg.subjects = append(cg.subjects, s.SubjectCode)
	}
	cg.bySubject[s.SubjectCode] = append(cg.bySubject[s.SubjectCode], s.NRC)
	return true
}

// addEdge connects two vertices by ID. Self-loops and repeated edges are
// dropped so the graph stays simple.
func (cg *ConflictGraph) addEdge(u, v int64) {
	if u == v || cg.graph.HasEdgeBetween(u, v) {
		return
	}
	cg.graph.SetEdge(simple.Edge{F: cg.nodes[u], T: cg.nodes[v]})
	cg.degree[u]++
	cg.degree[v]++
	cg.edges++
}

// Graph exposes the underlying gonum graph for read-only algorithms
func (cg *ConflictGraph) Graph() graph.Undirected {
	return cg.graph
}

// Len returns the number of vertices
func (cg *ConflictGraph) Len() int {
	return len(cg.nodes)
}

// EdgeCount returns the number of undirected edges
func (cg *ConflictGraph) EdgeCount() int {
	return cg.edges
}

// Has reports whether nrc is a vertex
func (cg *ConflictGraph) Has(nrc string) bool {
	_, ok := cg.ids[nrc]
	return ok
}

// NodeID returns the gonum node ID of nrc
func (cg *ConflictGraph) NodeID(nrc string) (int64, bool) {
	id, ok := cg.ids[nrc]
	return id, ok
}

// NRC returns the NRC for a gonum node ID
func (cg *ConflictGraph) NRC(id int64) string {
	if id < 0 || id >= int64(len(cg.nodes)) {
		return ""
	}
	return cg.nodes[id].NRC
}

// Vertices returns all NRCs in section order
func (cg *ConflictGraph) Vertices() []string {
	out := make([]string, len(cg.nodes))
	for i, n := range cg.nodes {
		out[i] = n.NRC
	}
	return out
}

// VerticesByDegree returns all NRCs by descending degree. Ties keep section
// order, so the result is reproducible.
func (cg *ConflictGraph) VerticesByDegree() []string {
	out := cg.Vertices()
	sort.SliceStable(out, func(i, j int) bool {
		return cg.degree[cg.ids[out[i]]] > cg.degree[cg.ids[out[j]]]
	})
	return out
}

// Degree returns the neighbor count of nrc (0 for unknown vertices)
func (cg *ConflictGraph) Degree(nrc string) int {
	id, ok := cg.ids[nrc]
	if !ok {
		return 0
	}
	return cg.degree[id]
}

// Adjacent reports whether u and v conflict
func (cg *ConflictGraph) Adjacent(u, v string) bool {
	uid, ok := cg.ids[u]
	if !ok {
		return false
	}
	vid, ok := cg.ids[v]
	if !ok {
		return false
	}
	return cg.graph.HasEdgeBetween(uid, vid)
}

// Neighbors returns the NRCs adjacent to nrc, sorted
func (cg *ConflictGraph) Neighbors(nrc string) []string {
	id, ok := cg.ids[nrc]
	if !ok {
		return nil
	}

	out := make([]string, 0, cg.degree[id])
	iter := cg.graph.From(id)
	for iter.Next() {
		out = append(out, cg.nodes[iter.Node().ID()].NRC)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge once as a sorted [u, v] pair with u < v
func (cg *ConflictGraph) Edges() [][2]string {
	edges := make([][2]string, 0, cg.edges)

	iter := cg.graph.Edges()
	for iter.Next() {
		e := iter.Edge()
		u, v := cg.nodes[e.From().ID()].NRC, cg.nodes[e.To().ID()].NRC
		if v < u {
			u, v = v, u
		}
		edges = append(edges, [2]string{u, v})
	}

	slices.SortFunc(edges, func(a, b [2]string) int {
		if a[0] != b[0] {
			if a[0] < b[0] {
				return -1
			}
			return 1
		}
		switch {
		case a[1] < b[1]:
			return -1
		case a[1] > b[1]:
			return 1
		}
		return 0
	})
	return edges
}

// Section returns the section record of nrc
func (cg *ConflictGraph) Section(nrc string) (model.Section, bool) {
	s, ok := cg.sections[nrc]
	return s, ok
}

// SubjectOf returns the subject code of nrc
func (cg *ConflictGraph) SubjectOf(nrc string) string {
	return cg.sections[nrc].SubjectCode
}

// Meetings returns the normalized meetings of nrc, sorted by day then start.
// The returned slice must not be modified.
func (cg *ConflictGraph) Meetings(nrc string) []model.Meeting {
	return cg.meetings[nrc]
}

// Subjects returns the subject codes that have at least one section
func (cg *ConflictGraph) Subjects() []string {
	return slices.Clone(cg.subjects)
}

// SectionsOf returns the NRCs of a subject in section order
func (cg *ConflictGraph) SectionsOf(subject string) []string {
	return slices.Clone(cg.bySubject[subject])
}

// Classify explains an edge. Same-subject takes precedence when both
// conditions hold. ok is false when u and v are not adjacent.
func (cg *ConflictGraph) Classify(u, v string) (kind model.EdgeKind, ok bool) {
	if !cg.Adjacent(u, v) {
		return "", false
	}
	if cg.SubjectOf(u) == cg.SubjectOf(v) {
		return model.EdgeSameSubject, true
	}
	return model.EdgeTimeOverlap, true
}

// FirstOverlap returns the first pair of overlapping meetings of u and v in
// day/start order
func (cg *ConflictGraph) FirstOverlap(u, v string) (model.Meeting, model.Meeting, bool) {
	for _, a := range cg.meetings[u] {
		for _, b := range cg.meetings[v] {
			if a.Overlaps(b) {
				return a, b, true
			}
		}
	}
	return model.Meeting{}, model.Meeting{}, false
}
