package generator

import (
	"math/rand"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/ritzau/course-planner/pkg/clock"
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/model"
)

func meeting(nrc, day, start, end string) model.Meeting {
	return model.Meeting{
		NRC:   nrc,
		Day:   day,
		Start: model.Clock(clock.ParseClock(start)),
		End:   model.Clock(clock.ParseClock(end)),
	}
}

func scenarioGraph() *graph.ConflictGraph {
	return graph.Build(
		[]model.Section{
			{NRC: "A", SubjectCode: "MATH100"},
			{NRC: "B", SubjectCode: "MATH100"},
			{NRC: "C", SubjectCode: "PHYS100"},
			{NRC: "D", SubjectCode: "CHEM100"},
		},
		[]model.Meeting{
			meeting("A", "LUN", "08:00", "09:00"),
			meeting("B", "LUN", "10:00", "11:00"),
			meeting("C", "LUN", "08:30", "09:30"),
			meeting("D", "MAR", "08:00", "09:00"),
		},
	)
}

// randomCatalog builds a dense-ish catalog of subjects with several sections
// each, meeting twice a week
func randomCatalog(seed int64, subjects, perSubject int) (*graph.ConflictGraph, []string) {
	rng := rand.New(rand.NewSource(seed))
	days := []string{"LUN", "MAR", "MIE", "JUE", "VIE"}

	var sections []model.Section
	var meetings []model.Meeting
	var codes []string
	for s := 0; s < subjects; s++ {
		code := "SUB" + strconv.Itoa(s)
		codes = append(codes, code)
		for k := 0; k < perSubject; k++ {
			nrc := code + "-" + strconv.Itoa(k)
			sections = append(sections, model.Section{NRC: nrc, SubjectCode: code})
			for r := 0; r < 2; r++ {
				start := 7*60 + 30*rng.Intn(26)
				meetings = append(meetings, model.Meeting{
					NRC:   nrc,
					Day:   days[rng.Intn(len(days))],
					Start: model.Clock(start),
					End:   model.Clock(start + 90),
				})
			}
		}
	}
	return graph.Build(sections, meetings), codes
}

func assertValidPick(t *testing.T, g *graph.ConflictGraph, res Result) {
	t.Helper()
	for i, a := range res.Picked {
		for _, b := range res.Picked[i+1:] {
			if g.Adjacent(a, b) {
				t.Errorf("pick contains adjacent %s and %s", a, b)
			}
		}
	}
	perSubject := make(map[string]int)
	for _, nrc := range res.Picked {
		perSubject[g.SubjectOf(nrc)]++
	}
	for subject, n := range perSubject {
		if n > 1 {
			t.Errorf("subject %s has %d sections in the pick", subject, n)
		}
	}
	if res.Score > res.Baseline {
		t.Errorf("score %d exceeds baseline %d", res.Score, res.Baseline)
	}
}

func TestGenerateScenario(t *testing.T) {
	g := scenarioGraph()
	res := Generate(g, []string{"MATH100", "PHYS100"}, nil, DefaultOptions(), NewSource(1))

	if !res.OK() {
		t.Fatalf("unexpected status %s: %s", res.Status, res.Reason)
	}
	// MATH100 is the most constrained subject and goes first; its earliest
	// section A then rules out C
	if !reflect.DeepEqual(res.Picked, []string{"A"}) {
		t.Errorf("Picked = %v, want [A]", res.Picked)
	}
	if res.Subjects[1].Status != FillNoCompatibleSection {
		t.Errorf("PHYS100 status = %s, want %s", res.Subjects[1].Status, FillNoCompatibleSection)
	}
	if res.Baseline != 2*UnfilledPenalty || res.Score != UnfilledPenalty {
		t.Errorf("Score=%d Baseline=%d", res.Score, res.Baseline)
	}
	assertValidPick(t, g, res)
	if res.Restarts != Restarts {
		t.Errorf("Restarts = %d, want %d", res.Restarts, Restarts)
	}
}

func TestGenerateUniqueFeasible(t *testing.T) {
	g := graph.Build(
		[]model.Section{
			{NRC: "X1", SubjectCode: "X"},
			{NRC: "X2", SubjectCode: "X"},
			{NRC: "Y1", SubjectCode: "Y"},
		},
		[]model.Meeting{
			meeting("X1", "LUN", "08:00", "10:00"),
			meeting("X2", "LUN", "09:00", "11:00"),
			meeting("Y1", "LUN", "10:00", "11:00"),
		},
	)

	for seed := int64(1); seed <= 10; seed++ {
		res := Generate(g, []string{"X", "Y"}, nil, DefaultOptions(), NewSource(seed))
		if !reflect.DeepEqual(res.Picked, []string{"X1", "Y1"}) {
			t.Errorf("seed %d: Picked = %v, want [X1 Y1]", seed, res.Picked)
		}
	}
}

func TestGenerateInvariantsRandomized(t *testing.T) {
	for seed := int64(1); seed <= 15; seed++ {
		g, codes := randomCatalog(seed, 8, 4)
		opts := Options{Shift: ShiftMorning, MaxGapMinutes: 60, PreferCompactDays: true}
		res := Generate(g, codes, nil, opts, NewSource(seed))

		assertValidPick(t, g, res)
		if len(res.Subjects) != len(codes) {
			t.Errorf("seed %d: fill report has %d entries, want %d", seed, len(res.Subjects), len(codes))
		}
		for _, fill := range res.Subjects {
			if fill.Status == FillFilled && g.SubjectOf(fill.NRC) != fill.Subject {
				t.Errorf("seed %d: %s reported for subject %s", seed, fill.NRC, fill.Subject)
			}
		}
	}
}

func TestGenerateReproducibleWithSeed(t *testing.T) {
	g, codes := randomCatalog(3, 10, 5)
	first := Generate(g, codes, nil, DefaultOptions(), NewSource(42))
	second := Generate(g, codes, nil, DefaultOptions(), NewSource(42))

	if !reflect.DeepEqual(first.Picked, second.Picked) || first.Score != second.Score {
		t.Errorf("same seed gave different results: %v (%d) vs %v (%d)",
			first.Picked, first.Score, second.Picked, second.Score)
	}
	if first.ID == second.ID {
		t.Error("every run should get its own ID")
	}
}

func TestGenerateMandatoryConflict(t *testing.T) {
	g := scenarioGraph()
	opts := DefaultOptions()
	opts.RespectFixedSelection = true

	res := Generate(g, []string{"CHEM100"}, []string{"C", "A"}, opts, NewSource(1))
	if res.Status != StatusMandatoryConflict {
		t.Fatalf("Status = %s, want %s", res.Status, StatusMandatoryConflict)
	}
	if !strings.Contains(res.Reason, "A and C") || !strings.Contains(res.Reason, "time overlap") {
		t.Errorf("Reason = %q", res.Reason)
	}
	if !reflect.DeepEqual(res.Picked, []string{"A", "C"}) {
		t.Errorf("mandatory sections should be returned untouched, got %v", res.Picked)
	}

	// Without the flag the same selection is ignored
	opts.RespectFixedSelection = false
	res = Generate(g, []string{"CHEM100"}, []string{"C", "A"}, opts, NewSource(1))
	if !res.OK() || !reflect.DeepEqual(res.Picked, []string{"D"}) {
		t.Errorf("got %s %v, want ok [D]", res.Status, res.Picked)
	}
}

func TestGenerateKeepsFixedSelection(t *testing.T) {
	g := scenarioGraph()
	opts := DefaultOptions()
	opts.RespectFixedSelection = true

	res := Generate(g, []string{"MATH100", "PHYS100", "CHEM100"}, []string{"A", "gone"}, opts, NewSource(7))
	if !res.OK() {
		t.Fatalf("unexpected status %s", res.Status)
	}
	// A is fixed and covers MATH100; C overlaps A, D is free
	if !reflect.DeepEqual(res.Picked, []string{"A", "D"}) {
		t.Errorf("Picked = %v, want [A D]", res.Picked)
	}

	want := []SubjectFill{
		{Subject: "MATH100", NRC: "A", Status: FillFilled},
		{Subject: "PHYS100", Status: FillNoCompatibleSection},
		{Subject: "CHEM100", NRC: "D", Status: FillFilled},
	}
	if !reflect.DeepEqual(res.Subjects, want) {
		t.Errorf("Subjects = %+v, want %+v", res.Subjects, want)
	}
	assertValidPick(t, g, res)
}

func TestGenerateUnknownSubject(t *testing.T) {
	g := scenarioGraph()
	res := Generate(g, []string{"NOPE", "CHEM100", "CHEM100", " "}, nil, DefaultOptions(), NewSource(1))

	if !reflect.DeepEqual(res.Requested, []string{"NOPE", "CHEM100"}) {
		t.Errorf("Requested = %v", res.Requested)
	}
	if res.Subjects[0].Status != FillNoSections {
		t.Errorf("NOPE status = %s, want %s", res.Subjects[0].Status, FillNoSections)
	}
	if res.Breakdown.Unfilled != UnfilledPenalty {
		t.Errorf("Unfilled = %d, want %d", res.Breakdown.Unfilled, UnfilledPenalty)
	}
}

func TestGenerateEmpty(t *testing.T) {
	res := Generate(graph.Empty(), nil, nil, DefaultOptions(), NewSource(1))
	if !res.OK() || len(res.Picked) != 0 || res.Score != 0 {
		t.Errorf("empty run = %+v", res)
	}
	if res.Picked == nil {
		t.Error("Picked should be an empty list, not nil")
	}

	res = Generate(nil, []string{"X"}, nil, Options{}, nil)
	if res.Score != UnfilledPenalty || res.Subjects[0].Status != FillNoSections {
		t.Errorf("nil graph run = %+v", res)
	}
}

func TestGeneratePrefersShift(t *testing.T) {
	g := graph.Build(
		[]model.Section{
			{NRC: "M", SubjectCode: "ART"},
			{NRC: "E", SubjectCode: "ART"},
		},
		[]model.Meeting{
			meeting("M", "LUN", "08:00", "10:00"),
			meeting("E", "LUN", "19:00", "21:00"),
		},
	)

	for _, tc := range []struct {
		shift Shift
		want  string
	}{
		{ShiftMorning, "M"},
		{ShiftEvening, "E"},
	} {
		opts := DefaultOptions()
		opts.Shift = tc.shift
		res := Generate(g, []string{"ART"}, nil, opts, NewSource(5))
		if len(res.Picked) != 1 || res.Picked[0] != tc.want {
			t.Errorf("shift %s: Picked = %v, want [%s]", tc.shift, res.Picked, tc.want)
		}
		if res.Breakdown.Shift != 0 {
			t.Errorf("shift %s: shift penalty %d, want 0", tc.shift, res.Breakdown.Shift)
		}
	}
}

func TestCandidateOrderFollowsFirstMeeting(t *testing.T) {
	g := graph.Build(
		[]model.Section{
			{NRC: "X", SubjectCode: "ART"},
			{NRC: "Y", SubjectCode: "ART"},
			{NRC: "Z", SubjectCode: "ART"},
		},
		[]model.Meeting{
			// X opens the week in the evening; its Tuesday class is early
			meeting("X", "MAR", "08:00", "09:00"),
			meeting("X", "LUN", "19:00", "20:00"),
			meeting("Y", "LUN", "09:00", "10:00"),
			meeting("Z", "MIE", "07:00", "08:00"),
		},
	)

	opts := DefaultOptions()
	opts.Shift = ShiftMorning
	s := newSearch(g, []string{"ART"}, nil, opts, NewSource(2))

	var got []string
	for _, c := range s.candidateOrder("ART") {
		got = append(got, c.nrc)
	}
	if want := []string{"Z", "Y", "X"}; !reflect.DeepEqual(got, want) {
		t.Errorf("candidate order = %v, want %v", got, want)
	}
}
