package model

// EdgeKind classifies why two sections conflict
type EdgeKind string

const (
	EdgeSameSubject EdgeKind = "same_subject" // Both sections belong to the same subject
	EdgeTimeOverlap EdgeKind = "time_overlap" // Some meetings overlap on the same day
)

// GraphView is the serializable form of a conflict graph consumed by the
// visualization and export layers.
type GraphView struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// NewGraphView creates an empty view
func NewGraphView() *GraphView {
	return &GraphView{
		Nodes: make([]*Node, 0),
		Edges: make([]*Edge, 0),
	}
}

// Node is one section vertex
type Node struct {
	ID        string `json:"id"`    // NRC
	Label     string `json:"label"` // Subject name when known, else the code
	Subject   string `json:"subject"`
	Professor string `json:"professor,omitempty"`
	Degree    int    `json:"degree"`
	Color     int    `json:"color"`
	Selected  bool   `json:"selected,omitempty"`
	Blocked   bool   `json:"blocked,omitempty"`
	Distance  *int   `json:"distance,omitempty"` // hops from the focused sections
	Members   int    `json:"members,omitempty"`  // sections folded into a subject node
}

// Edge is one undirected conflict, Source < Target
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeKind `json:"type"`
	Detail string   `json:"detail,omitempty"`
	Count  int      `json:"count,omitempty"` // section edges folded into a subject edge
}

// AddNode appends a node
func (g *GraphView) AddNode(node *Node) {
	g.Nodes = append(g.Nodes, node)
}

// AddEdge appends an edge
func (g *GraphView) AddEdge(edge *Edge) {
	g.Edges = append(g.Edges, edge)
}
