// Package generator searches for a conflict-free schedule with at most one
// section per requested subject, trading off soft time preferences.
//
// The search is a randomized greedy: each restart visits the requested
// subjects from most to least constrained and takes the first compatible
// candidate, preferring sections that fit the requested shift. The best of a
// fixed number of restarts wins. It is a heuristic; an optimum is not
// guaranteed.
package generator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/logging"
)

// Restarts is the number of randomized passes per run
const Restarts = 40

// Status is the outcome of a run
type Status string

const (
	StatusOK                Status = "ok"
	StatusMandatoryConflict Status = "mandatory_conflict"
)

// FillStatus tells what happened to one requested subject
type FillStatus string

const (
	FillFilled              FillStatus = "filled"
	FillNoSections          FillStatus = "no_sections"           // the subject has no sections in the catalog
	FillNoCompatibleSection FillStatus = "no_compatible_section" // every candidate conflicted with the pick
)

// SubjectFill reports the section chosen for a requested subject
type SubjectFill struct {
	Subject string     `json:"subject"`
	NRC     string     `json:"nrc,omitempty"`
	Status  FillStatus `json:"status"`
}

// Result is the best pick of a run. A mandatory conflict is reported through
// Status and Reason, never as an error.
type Result struct {
	ID        uuid.UUID     `json:"id"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Picked    []string      `json:"picked"`
	Score     int           `json:"score"`
	Baseline  int           `json:"baseline"` // score of the mandatory-only pick
	Breakdown Breakdown     `json:"breakdown"`
	Subjects  []SubjectFill `json:"subjects"`
	Requested []string      `json:"requested"`
	Options   Options       `json:"options"`
	Restarts  int           `json:"restarts"`
	CreatedAt time.Time     `json:"createdAt"`
}

// OK reports whether the run produced a usable pick
func (r *Result) OK() bool {
	return r.Status == StatusOK
}

// candidate is a section with its precomputed ordering key
type candidate struct {
	nrc      string
	matches bool // first meeting of the week starts inside the preferred shift
	start   int  // start of that meeting, MaxInt when the section has no meetings
}

// search holds everything a restart needs; built once per run
type search struct {
	g          *graph.ConflictGraph
	opts       Options
	src        Source
	mandatory  []string
	open       []string // requested subjects not covered by the mandatory pick
	weight     map[string]int
	candidates map[string][]candidate
}

// Generate runs the search over snapshot g. fixed is the current selection;
// it is only used when opts.RespectFixedSelection is set, in which case every
// fixed section known to g is kept in the result.
func Generate(g *graph.ConflictGraph, subjects []string, fixed []string, opts Options, src Source) Result {
	if g == nil {
		g = graph.Empty()
	}
	if src == nil {
		src = NewSource(0)
	}
	if opts.Shift == "" {
		opts.Shift = ShiftAny
	}

	requested := dedupe(subjects)
	res := Result{
		ID:        uuid.New(),
		Status:    StatusOK,
		Requested: requested,
		Options:   opts,
		CreatedAt: time.Now(),
	}

	var mandatory []string
	if opts.RespectFixedSelection {
		for _, nrc := range dedupe(fixed) {
			if g.Has(nrc) {
				mandatory = append(mandatory, nrc)
			}
		}
		sort.Strings(mandatory)

		if a, b, found := firstConflict(g, mandatory); found {
			kind, _ := g.Classify(a, b)
			res.Status = StatusMandatoryConflict
			res.Reason = fmt.Sprintf("fixed sections %s and %s conflict (%s)",
				a, b, strings.ReplaceAll(string(kind), "_", " "))
			res.Picked = mandatory
			res.Breakdown = Score(g, mandatory, 0, opts)
			res.Score = res.Breakdown.Total
			res.Baseline = res.Score
			res.Subjects = fillReport(g, requested, mandatory)
			logging.Debug("schedule generation refused", "reason", res.Reason)
			return res
		}
	}

	s := newSearch(g, requested, mandatory, opts, src)

	best := mandatory
	bestScore := Score(g, best, len(s.open), opts)
	res.Baseline = bestScore.Total

	for i := 0; i < Restarts; i++ {
		pick, unfilled := s.restart()
		score := Score(g, pick, unfilled, opts)
		if score.Total < bestScore.Total {
			best, bestScore = pick, score
		}
	}

	res.Picked = append(make([]string, 0, len(best)), best...)
	sort.Strings(res.Picked)
	res.Breakdown = bestScore
	res.Score = bestScore.Total
	res.Restarts = Restarts
	res.Subjects = fillReport(g, requested, res.Picked)

	logging.Debug("schedule generated",
		"subjects", len(requested),
		"picked", len(res.Picked),
		"score", res.Score,
		"baseline", res.Baseline)
	return res
}

func newSearch(g *graph.ConflictGraph, requested, mandatory []string, opts Options, src Source) *search {
	s := &search{
		g:          g,
		opts:       opts,
		src:        src,
		mandatory:  mandatory,
		weight:     make(map[string]int),
		candidates: make(map[string][]candidate),
	}

	covered := make(map[string]bool)
	for _, nrc := range mandatory {
		covered[g.SubjectOf(nrc)] = true
	}

	for _, subject := range requested {
		if covered[subject] {
			continue
		}
		s.open = append(s.open, subject)

		for _, nrc := range g.SectionsOf(subject) {
			s.weight[subject] += g.Degree(nrc)
			s.candidates[subject] = append(s.candidates[subject], s.describe(nrc))
		}
	}
	return s
}

func (s *search) describe(nrc string) candidate {
	c := candidate{nrc: nrc, start: math.MaxInt}
	// Meetings come in week order, day then start
	if ms := s.g.Meetings(nrc); len(ms) > 0 {
		c.start = int(ms[0].Start)
		c.matches = s.opts.Shift.Matches(c.start)
	}
	return c
}

// restart performs one greedy pass and returns the pick and the number of
// open subjects it could not fill
func (s *search) restart() ([]string, int) {
	pick := append([]string(nil), s.mandatory...)
	unfilled := 0

	for _, subject := range s.subjectOrder() {
		chosen := ""
		for _, c := range s.candidateOrder(subject) {
			if s.compatible(pick, c.nrc) {
				chosen = c.nrc
				break
			}
		}
		if chosen == "" {
			unfilled++
			continue
		}
		pick = append(pick, chosen)
	}
	return pick, unfilled
}

// subjectOrder sorts open subjects by descending aggregate candidate degree.
// The noise is below 1 so it only breaks ties.
func (s *search) subjectOrder() []string {
	type keyed struct {
		subject string
		key     float64
	}
	order := make([]keyed, len(s.open))
	for i, subject := range s.open {
		order[i] = keyed{subject, float64(s.weight[subject]) + s.src.Float64()}
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].key > order[j].key
	})

	out := make([]string, len(order))
	for i, k := range order {
		out[i] = k.subject
	}
	return out
}

// candidateOrder puts shift-matching sections first, then earlier starts.
// Equal keys come out in random order.
func (s *search) candidateOrder(subject string) []candidate {
	cands := append([]candidate(nil), s.candidates[subject]...)
	s.src.Shuffle(len(cands), func(i, j int) {
		cands[i], cands[j] = cands[j], cands[i]
	})
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].matches != cands[j].matches {
			return cands[i].matches
		}
		return cands[i].start < cands[j].start
	})
	return cands
}

func (s *search) compatible(pick []string, nrc string) bool {
	for _, p := range pick {
		if s.g.Adjacent(p, nrc) {
			return false
		}
	}
	return true
}

// firstConflict returns the first adjacent pair of a sorted NRC list
func firstConflict(g *graph.ConflictGraph, nrcs []string) (string, string, bool) {
	for i, a := range nrcs {
		for _, b := range nrcs[i+1:] {
			if g.Adjacent(a, b) {
				return a, b, true
			}
		}
	}
	return "", "", false
}

func fillReport(g *graph.ConflictGraph, requested, picked []string) []SubjectFill {
	bySubject := make(map[string]string)
	for _, nrc := range picked {
		if _, seen := bySubject[g.SubjectOf(nrc)]; !seen {
			bySubject[g.SubjectOf(nrc)] = nrc
		}
	}

	report := make([]SubjectFill, 0, len(requested))
	for _, subject := range requested {
		fill := SubjectFill{Subject: subject}
		switch nrc, ok := bySubject[subject]; {
		case ok:
			fill.NRC = nrc
			fill.Status = FillFilled
		case len(g.SectionsOf(subject)) == 0:
			fill.Status = FillNoSections
		default:
			fill.Status = FillNoCompatibleSection
		}
		report = append(report, fill)
	}
	return report
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
