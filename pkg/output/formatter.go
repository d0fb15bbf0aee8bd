package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/course-planner/pkg/clock"
	"github.com/ritzau/course-planner/pkg/conflicts"
	"github.com/ritzau/course-planner/pkg/generator"
	"github.com/ritzau/course-planner/pkg/metrics"
	"github.com/ritzau/course-planner/pkg/model"
	"github.com/ritzau/course-planner/pkg/planner"
)

// Color definitions
var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// PrintCatalogReport prints the loaded catalog and the headline graph metrics
func PrintCatalogReport(w io.Writer, snap *planner.Snapshot) {
	bold.Fprintln(w, "Course Planner - Conflict Graph Report")
	bold.Fprintln(w, "======================================")
	fmt.Fprintf(w, "Source: %s\n", snap.Source)

	counts := snap.Catalog.Counts()
	fmt.Fprintf(w, "Loaded: %d subjects, %d professors, %d sections, %d meetings\n",
		counts["subjects"], counts["professors"], counts["sections"], counts["meetings"])
	fmt.Fprintln(w)

	m := snap.Metrics
	bold.Fprintln(w, "GRAPH:")
	fmt.Fprintf(w, "  Vertices:   %d\n", m.Vertices)
	fmt.Fprintf(w, "  Edges:      %d\n", m.Edges)
	fmt.Fprintf(w, "  Max degree: %d\n", m.MaxDegree)

	// Density colored by how constrained the catalog is
	densityColor := green
	if m.Density > 0.25 {
		densityColor = yellow
	}
	if m.Density > 0.5 {
		densityColor = red
	}
	densityColor.Fprintf(w, "  Density:    %.3f\n", m.Density)
	fmt.Fprintf(w, "  Components: %d (%d isolated)\n", m.Components, m.Isolated)
	fmt.Fprintf(w, "  Colors:     %d\n", snap.Coloring().Count())
	fmt.Fprintln(w)
}

// PrintColoring lists the color groups, at most limit of them (0 for all)
func PrintColoring(w io.Writer, c metrics.Coloring, limit int) {
	groups := c.Groups()
	if len(groups) == 0 {
		return
	}

	bold.Fprintln(w, "COMPATIBLE GROUPS:")
	for i, g := range groups {
		if limit > 0 && i == limit {
			fmt.Fprintf(w, "  ... %d more\n", len(groups)-limit)
			break
		}
		cyan.Fprintf(w, "  Group %d", g.Color+1)
		fmt.Fprintf(w, " (%d): %s\n", len(g.Sections), strings.Join(g.Sections, ", "))
	}
	fmt.Fprintln(w)
}

// PrintSelection prints the selected sections and what they block
func PrintSelection(w io.Writer, sel conflicts.Snapshot) {
	bold.Fprintln(w, "SELECTION:")
	if len(sel.Selected) == 0 {
		fmt.Fprintln(w, "  (empty)")
		fmt.Fprintln(w)
		return
	}
	green.Fprintf(w, "  Selected:  %s\n", strings.Join(sel.Selected, ", "))
	if len(sel.Conflicts) > 0 {
		yellow.Fprintf(w, "  Blocked:   %s\n", strings.Join(sel.Conflicts, ", "))
	}
	for _, v := range sel.Violations {
		red.Fprintf(w, "  Conflict:  %s and %s are both selected\n", v.A, v.B)
	}
	fmt.Fprintln(w)
}

// PrintSchedule prints a generator result as a week plan with its score
func PrintSchedule(w io.Writer, snap *planner.Snapshot, res *generator.Result) {
	bold.Fprintln(w, "GENERATED SCHEDULE:")
	if !res.OK() {
		red.Fprintf(w, "  Failed: %s\n", res.Reason)
		fmt.Fprintln(w)
		return
	}
	if len(res.Picked) == 0 {
		yellow.Fprintln(w, "  No sections picked")
	}

	for _, day := range clock.Days {
		entries := dayEntries(snap, res.Picked, day)
		if len(entries) == 0 {
			continue
		}
		cyan.Fprintf(w, "  %s\n", day)
		for _, e := range entries {
			fmt.Fprintf(w, "    %s-%s  %-8s %s\n", e.meeting.Start, e.meeting.End, e.nrc, e.label)
		}
	}
	fmt.Fprintln(w)

	if len(res.Subjects) > 0 {
		bold.Fprintln(w, "SUBJECTS:")
		for _, f := range res.Subjects {
			switch f.Status {
			case generator.FillFilled:
				green.Fprintf(w, "  ✓ %s", f.Subject)
				fmt.Fprintf(w, " -> %s\n", f.NRC)
			case generator.FillNoSections:
				red.Fprintf(w, "  ✗ %s", f.Subject)
				fmt.Fprintln(w, " (no sections in catalog)")
			default:
				yellow.Fprintf(w, "  ✗ %s", f.Subject)
				fmt.Fprintln(w, " (every section conflicts)")
			}
		}
		fmt.Fprintln(w)
	}

	b := res.Breakdown
	scoreColor := green
	if b.Unfilled > 0 {
		scoreColor = yellow
	}
	scoreColor.Fprintf(w, "Score: %d", res.Score)
	fmt.Fprintf(w, " (shift %d, gaps %d, compact %d, unfilled %d; baseline %d)\n",
		b.Shift, b.Gaps, b.Compact, b.Unfilled, res.Baseline)
}

type dayEntry struct {
	nrc     string
	label   string
	meeting model.Meeting
}

func dayEntries(snap *planner.Snapshot, picked []string, day string) []dayEntry {
	var entries []dayEntry
	for _, nrc := range picked {
		label := sectionLabel(snap, nrc)
		for _, m := range snap.Graph.Meetings(nrc) {
			if m.Day == day {
				entries = append(entries, dayEntry{nrc: nrc, label: label, meeting: m})
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].meeting.Start < entries[j].meeting.Start
	})
	return entries
}

func sectionLabel(snap *planner.Snapshot, nrc string) string {
	section, _ := snap.Graph.Section(nrc)
	label := section.SubjectCode
	if s, ok := snap.Subjects[section.SubjectCode]; ok && s.Name != "" {
		label += " " + s.Name
	}
	if p, ok := snap.Professors[section.ProfessorID]; ok && p.Name != "" {
		label += " (" + p.Name + ")"
	}
	return label
}
