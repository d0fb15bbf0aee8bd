package conflicts

import (
	"sync"

	"github.com/ritzau/course-planner/pkg/graph"
)

// Snapshot is a consistent view of a selection and the conflicts it implies
type Snapshot struct {
	Selected   []string    `json:"selected"`
	Conflicts  []string    `json:"conflicts"`
	Violations []Violation `json:"violations,omitempty"`
	Version    int         `json:"version"`
}

// State owns the current selection and its conflict set. Every mutation
// recomputes the conflict set under the same lock, so readers always see a
// matching pair.
//
// State performs no blocking: toggling a blocked NRC is allowed and shows up
// in Violations.
type State struct {
	mu        sync.RWMutex
	graph     *graph.ConflictGraph
	selected  Set
	conflicts Set
	version   int
}

// NewState creates an empty selection bound to a graph snapshot
func NewState(g *graph.ConflictGraph) *State {
	if g == nil {
		g = graph.Empty()
	}
	return &State{
		graph:     g,
		selected:  make(Set),
		conflicts: make(Set),
	}
}

// commit recomputes derived state; caller holds the write lock
func (s *State) commit() Snapshot {
	s.conflicts = Recompute(s.selected, s.graph)
	s.version++
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	return Snapshot{
		Selected:   s.selected.Sorted(),
		Conflicts:  s.conflicts.Sorted(),
		Violations: Violations(s.selected, s.graph),
		Version:    s.version,
	}
}

// Toggle adds nrc if absent or removes it if present
func (s *State) Toggle(nrc string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected.Has(nrc) {
		delete(s.selected, nrc)
	} else {
		s.selected[nrc] = struct{}{}
	}
	return s.commit()
}

// Apply makes the selection equal to target: everything not in target is
// toggled off and everything new is toggled on, as one update.
func (s *State) Apply(target []string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := NewSet(target...)
	for nrc := range s.selected {
		if !want.Has(nrc) {
			delete(s.selected, nrc)
		}
	}
	for nrc := range want {
		s.selected[nrc] = struct{}{}
	}
	return s.commit()
}

// Reset clears the selection (sign-out)
func (s *State) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = make(Set)
	return s.commit()
}

// Rebind switches to a rebuilt graph and starts an empty selection. Meeting
// times may have changed, so sections that were compatible before can be
// adjacent now.
func (s *State) Rebind(g *graph.ConflictGraph) Snapshot {
	if g == nil {
		g = graph.Empty()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph = g
	s.selected = make(Set)
	return s.commit()
}

// Snapshot returns the current selection and conflicts
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Selected returns a copy of the current selection
func (s *State) Selected() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected.Clone()
}

// IsBlocked reports whether nrc is in the current conflict set
func (s *State) IsBlocked(nrc string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conflicts.Has(nrc)
}

// Graph returns the snapshot the state is bound to
func (s *State) Graph() *graph.ConflictGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}
