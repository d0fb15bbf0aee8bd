// Package export renders a conflict graph for outside consumers: a classified
// edge list and an adjacency matrix as CSV, GraphViz DOT, and the JSON view
// drawn by the web client.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/model"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

// EdgeRow is one line of the edge-list CSV
type EdgeRow struct {
	U      string         `csv:"u" json:"u"`
	V      string         `csv:"v" json:"v"`
	Type   model.EdgeKind `csv:"type" json:"type"`
	Detail string         `csv:"detail" json:"detail"`
}

// EdgeRows classifies every edge. Same-subject edges carry the subject code
// as detail; time-overlap edges the first overlapping pair of meetings.
// Rows are ordered time-overlap first, then by (u, v).
func EdgeRows(g *graph.ConflictGraph) []*EdgeRow {
	edges := g.Edges()
	rows := make([]*EdgeRow, 0, len(edges))
	for _, e := range edges {
		kind, _ := g.Classify(e[0], e[1])
		rows = append(rows, &EdgeRow{
			U:      e[0],
			V:      e[1],
			Type:   kind,
			Detail: Detail(g, e[0], e[1], kind),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Type != b.Type {
			return a.Type == model.EdgeTimeOverlap
		}
		if a.U != b.U {
			return a.U < b.U
		}
		return a.V < b.V
	})
	return rows
}

// Detail explains an edge in one short string, e.g. "MATH100" or
// "LUN 08:00-09:00 / 08:30-09:30"
func Detail(g *graph.ConflictGraph, u, v string, kind model.EdgeKind) string {
	if kind == model.EdgeSameSubject {
		return g.SubjectOf(u)
	}
	a, b, ok := g.FirstOverlap(u, v)
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%s / %s-%s", a, b.Start, b.End)
}

// WriteEdgesCSV writes the classified edge list with a u,v,type,detail header
func WriteEdgesCSV(w io.Writer, g *graph.ConflictGraph) error {
	rows := EdgeRows(g)
	if len(rows) == 0 {
		// gocsv writes nothing for an empty slice; keep the header
		_, err := io.WriteString(w, "u,v,type,detail\n")
		return err
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write edge list: %w", err)
	}
	return nil
}

// WriteAdjacencyCSV writes the 0/1 adjacency matrix. Vertices are ordered by
// descending degree; the first row and column carry the NRCs.
func WriteAdjacencyCSV(w io.Writer, g *graph.ConflictGraph) error {
	vertices := g.VerticesByDegree()
	cw := csv.NewWriter(w)

	header := append([]string{""}, vertices...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write adjacency header: %w", err)
	}

	row := make([]string, len(vertices)+1)
	for _, u := range vertices {
		row[0] = u
		for j, v := range vertices {
			cell := 0
			if g.Adjacent(u, v) {
				cell = 1
			}
			row[j+1] = strconv.Itoa(cell)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write adjacency row %s: %w", u, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteDOT writes the graph in GraphViz format, vertices named by NRC with a
// subject attribute
func WriteDOT(w io.Writer, g *graph.ConflictGraph, name string) error {
	data, err := dot.Marshal(g.Graph(), name, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal DOT: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
