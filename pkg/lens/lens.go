// Package lens narrows a conflict graph view for drawing: focus on a few
// sections and their neighborhood, filter edge kinds, or fold sections into
// one node per subject.
package lens

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ritzau/course-planner/pkg/model"
)

// Infinite is the distance of a section not connected to the focus
const Infinite = -1

// DefaultDepth is used when a focus is given without a depth
const DefaultDepth = 1

// Lens defines how graph nodes and edges should be filtered and displayed
type Lens struct {
	// Focus holds NRCs or subject codes. A subject code stands for all of
	// its sections. Empty means the whole graph.
	Focus []string `json:"focus,omitempty"`

	// Depth is the largest distance from the focus still shown
	Depth int `json:"depth"`

	// EdgeKinds limits the edges shown; empty shows every kind
	EdgeKinds []model.EdgeKind `json:"edgeKinds,omitempty"`

	// CollapseSubjects folds the sections of each subject into one node
	CollapseSubjects bool `json:"collapseSubjects,omitempty"`

	// HideIsolated drops nodes left without edges
	HideIsolated bool `json:"hideIsolated,omitempty"`
}

// IsZero reports whether the lens leaves a view unchanged
func (l Lens) IsZero() bool {
	return len(l.Focus) == 0 && len(l.EdgeKinds) == 0 && !l.CollapseSubjects && !l.HideIsolated
}

func (l Lens) showsKind(kind model.EdgeKind) bool {
	if len(l.EdgeKinds) == 0 {
		return true
	}
	for _, k := range l.EdgeKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// FromQuery reads a lens from URL query parameters:
// focus=A,MATH100 depth=2 kinds=time_overlap collapse=true isolated=false
func FromQuery(q url.Values) (Lens, error) {
	l := Lens{
		Focus: splitList(q.Get("focus")),
		Depth: DefaultDepth,
	}

	if v := q.Get("depth"); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil || depth < 0 {
			return Lens{}, fmt.Errorf("invalid depth %q", v)
		}
		l.Depth = depth
	}

	for _, kind := range splitList(q.Get("kinds")) {
		switch k := model.EdgeKind(kind); k {
		case model.EdgeSameSubject, model.EdgeTimeOverlap:
			l.EdgeKinds = append(l.EdgeKinds, k)
		default:
			return Lens{}, fmt.Errorf("unknown edge kind %q", kind)
		}
	}

	var err error
	if l.CollapseSubjects, err = parseBool(q, "collapse"); err != nil {
		return Lens{}, err
	}
	if show, err := parseBool(q, "isolated"); err != nil {
		return Lens{}, err
	} else if q.Has("isolated") {
		l.HideIsolated = !show
	}
	return l, nil
}

func parseBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, v)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
