package planner

import (
	"sync"
	"time"

	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/metrics"
	"github.com/ritzau/course-planner/pkg/model"
)

// Snapshot is one loaded catalog and everything derived from it. It is
// immutable once installed; a reload produces a new one.
type Snapshot struct {
	Catalog    *model.Catalog
	Graph      *graph.ConflictGraph
	Subjects   map[string]model.Subject
	Professors map[string]model.Professor
	Metrics    metrics.Summary
	Source     string
	LoadedAt   time.Time
	Generation int

	coloringOnce sync.Once
	coloring     metrics.Coloring
}

func newSnapshot(cat *model.Catalog, g *graph.ConflictGraph, source string, generation int) *Snapshot {
	return &Snapshot{
		Catalog:    cat,
		Graph:      g,
		Subjects:   cat.SubjectByCode(),
		Professors: cat.ProfessorByID(),
		Metrics:    metrics.Compute(g),
		Source:     source,
		LoadedAt:   time.Now(),
		Generation: generation,
	}
}

// Coloring computes the greedy coloring on first use
func (s *Snapshot) Coloring() metrics.Coloring {
	s.coloringOnce.Do(func() {
		s.coloring = metrics.GreedyColor(s.Graph)
	})
	return s.coloring
}

// Status is the summary served to clients
type Status struct {
	Loaded     bool           `json:"loaded"`
	Source     string         `json:"source,omitempty"`
	LoadedAt   *time.Time     `json:"loadedAt,omitempty"`
	Generation int            `json:"generation"`
	Counts     map[string]int `json:"counts"`
	Vertices   int            `json:"vertices"`
	Edges      int            `json:"edges"`
	Selected   int            `json:"selected"`
}

// Status reports what is loaded
func (p *Planner) Status() Status {
	st := Status{
		Counts:   (*model.Catalog)(nil).Counts(),
		Selected: len(p.state.Snapshot().Selected),
	}
	snap := p.snapshot.Load()
	if snap == nil {
		return st
	}

	loadedAt := snap.LoadedAt
	st.Loaded = true
	st.Source = snap.Source
	st.LoadedAt = &loadedAt
	st.Generation = snap.Generation
	st.Counts = snap.Catalog.Counts()
	st.Vertices = snap.Graph.Len()
	st.Edges = snap.Graph.EdgeCount()
	return st
}
