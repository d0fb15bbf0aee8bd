package generator

import (
	"sort"

	"github.com/ritzau/course-planner/pkg/clock"
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/model"
)

// Penalty weights
const (
	ShiftPenalty    = 10   // per meeting starting outside the preferred shift
	GapOverflow     = 2    // per minute a gap exceeds MaxGapMinutes
	GapStep         = 15   // every gap costs gap/GapStep
	SpanStep        = 30   // compact days: each busy day costs span/SpanStep
	FreeDays        = 3    // compact days: days allowed before ExtraDayPenalty applies
	ExtraDayPenalty = 8    // compact days: per day used beyond FreeDays
	UnfilledPenalty = 1000 // per requested subject left without a section
)

// Breakdown is a score split by cause. Lower is better.
type Breakdown struct {
	Shift    int `json:"shift"`
	Gaps     int `json:"gaps"`
	Compact  int `json:"compact"`
	Unfilled int `json:"unfilled"`
	Total    int `json:"total"`
}

// Score computes the penalty of a pick. Only meetings on canonical days are
// considered; unfilled counts requested subjects the pick does not cover.
func Score(g *graph.ConflictGraph, picked []string, unfilled int, opts Options) Breakdown {
	byDay := make(map[string][]model.Meeting)
	var b Breakdown

	for _, nrc := range picked {
		for _, m := range g.Meetings(nrc) {
			if !clock.IsDay(m.Day) {
				continue
			}
			if !opts.Shift.Matches(int(m.Start)) {
				b.Shift += ShiftPenalty
			}
			byDay[m.Day] = append(byDay[m.Day], m)
		}
	}

	for _, day := range clock.Days {
		meetings := byDay[day]
		if len(meetings) == 0 {
			continue
		}
		sort.SliceStable(meetings, func(i, j int) bool {
			return meetings[i].Start < meetings[j].Start
		})

		first := int(meetings[0].Start)
		end := int(meetings[0].End)
		for _, m := range meetings[1:] {
			if gap := int(m.Start) - end; gap > 0 {
				if opts.gapBounded() && gap > opts.MaxGapMinutes {
					b.Gaps += GapOverflow * (gap - opts.MaxGapMinutes)
				}
				b.Gaps += gap / GapStep
			}
			end = max(end, int(m.End))
		}

		if opts.PreferCompactDays && len(meetings) >= 2 {
			b.Compact += (end - first) / SpanStep
		}
	}

	if opts.PreferCompactDays && len(byDay) > FreeDays {
		b.Compact += ExtraDayPenalty * (len(byDay) - FreeDays)
	}

	b.Unfilled = UnfilledPenalty * unfilled
	b.Total = b.Shift + b.Gaps + b.Compact + b.Unfilled
	return b
}
