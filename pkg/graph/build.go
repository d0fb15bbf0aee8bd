package graph

import (
	"slices"
	"sort"

	"github.com/ritzau/course-planner/pkg/clock"
	"github.com/ritzau/course-planner/pkg/logging"
	"github.com/ritzau/course-planner/pkg/model"
)

// interval is one meeting prepared for the sweep
type interval struct {
	start, end int
	node       int64
	seq        int // input position, keeps the sort deterministic
}

// Build constructs the conflict graph for a catalog batch.
//
// Sections sharing a subject form a clique. Meetings are swept one weekday
// at a time: sorted by start, with an active window ordered by end; entries
// ending at or before the current start are evicted, everything left
// overlaps the current meeting. The result equals exhaustive pairwise
// checking without comparing intervals that cannot intersect.
//
// Meetings whose NRC is not a known section, whose day is not a canonical
// code, or whose duration is not positive never produce overlap edges.
func Build(sections []model.Section, meetings []model.Meeting) *ConflictGraph {
	cg := newConflictGraph()

	duplicates := 0
	for _, s := range sections {
		if !cg.addSection(s) && s.NRC != "" {
			duplicates++
		}
	}

	// Same-subject cliques
	for _, subject := range cg.subjects {
		group := cg.bySubject[subject]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				cg.addEdge(cg.ids[group[i]], cg.ids[group[j]])
			}
		}
	}
	sameSubject := cg.edges

	byDay := make(map[string][]interval)
	skipped := 0
	for seq, m := range meetings {
		id, known := cg.ids[m.NRC]
		if !known {
			skipped++
			continue
		}
		m.Day = clock.Day(m.Day)
		cg.meetings[m.NRC] = append(cg.meetings[m.NRC], m)

		if !clock.IsDay(m.Day) || m.Degenerate() {
			continue
		}
		byDay[m.Day] = append(byDay[m.Day], interval{
			start: int(m.Start),
			end:   int(m.End),
			node:  id,
			seq:   seq,
		})
	}

	for _, ms := range cg.meetings {
		sortMeetings(ms)
	}

	for _, day := range clock.Days {
		cg.sweep(byDay[day])
	}

	logging.Debug("conflict graph built",
		"vertices", cg.Len(),
		"edges", cg.edges,
		"sameSubjectEdges", sameSubject,
		"skippedMeetings", skipped,
		"duplicateSections", duplicates)

	return cg
}

// sweep adds time-overlap edges for the meetings of a single day
func (cg *ConflictGraph) sweep(day []interval) {
	if len(day) < 2 {
		return
	}

	sort.Slice(day, func(i, j int) bool {
		if day[i].start != day[j].start {
			return day[i].start < day[j].start
		}
		return day[i].seq < day[j].seq
	})

	// active is ordered by end
	active := make([]interval, 0, len(day))
	for _, cur := range day {
		evict := 0
		for evict < len(active) && active[evict].end <= cur.start {
			evict++
		}
		active = active[evict:]

		for _, a := range active {
			cg.addEdge(a.node, cur.node)
		}

		pos := sort.Search(len(active), func(i int) bool {
			return active[i].end > cur.end
		})
		active = slices.Insert(active, pos, cur)
	}
}

func sortMeetings(ms []model.Meeting) {
	sort.SliceStable(ms, func(i, j int) bool {
		di, dj := clock.DayIndex(ms[i].Day), clock.DayIndex(ms[j].Day)
		if di != dj {
			// unknown days (-1) sort last
			if di < 0 {
				return false
			}
			if dj < 0 {
				return true
			}
			return di < dj
		}
		return ms[i].Start < ms[j].Start
	})
}
