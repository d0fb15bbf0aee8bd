package model

import (
	"bytes"
	"encoding/json"

	"github.com/ritzau/course-planner/pkg/clock"
)

// Subject is a course offered in the term, keyed by its code
type Subject struct {
	Code     string `json:"subjectCode"`
	Name     string `json:"subjectName"`
	Semester *int   `json:"semester,omitempty"`
	Credits  *int   `json:"credits,omitempty"`
}

// Professor teaches one or more sections
type Professor struct {
	ID   string `json:"professorId" csv:"professorId"`
	Name string `json:"professorName" csv:"professorName"`
}

// Section is one offering of a subject, identified by its registration code (NRC)
type Section struct {
	NRC         string `json:"nrc" csv:"nrc"`
	SubjectCode string `json:"subjectCode" csv:"subjectCode"`
	ProfessorID string `json:"professorId" csv:"professorId"`
}

// Meeting is a weekly recurring time block of a section. Start and End are
// minutes since midnight.
type Meeting struct {
	NRC   string `json:"nrc" csv:"nrc"`
	Day   string `json:"day" csv:"day"`
	Start Clock  `json:"start" csv:"start"`
	End   Clock  `json:"end" csv:"end"`
}

// Duration returns the meeting length in minutes (never negative)
func (m Meeting) Duration() int {
	if d := int(m.End) - int(m.Start); d > 0 {
		return d
	}
	return 0
}

// Degenerate reports whether the meeting has no positive duration
func (m Meeting) Degenerate() bool {
	return m.End <= m.Start
}

// Overlaps reports whether two meetings intersect on the same day.
// The check is strict on both ends: touching intervals do not overlap, and a
// degenerate meeting overlaps nothing.
func (m Meeting) Overlaps(o Meeting) bool {
	if m.Degenerate() || o.Degenerate() {
		return false
	}
	return m.Day == o.Day && m.Start < o.End && o.Start < m.End
}

// String renders the meeting as "LUN 08:00-09:30"
func (m Meeting) String() string {
	return m.Day + " " + m.Start.String() + "-" + m.End.String()
}

// Catalog is one batch of ingested records. A new catalog always replaces
// the previous one wholesale.
type Catalog struct {
	Subjects   []Subject   `json:"subjects"`
	Professors []Professor `json:"professors"`
	Sections   []Section   `json:"sections"`
	Meetings   []Meeting   `json:"meetings"`
}

// Counts summarizes the catalog size
func (c *Catalog) Counts() map[string]int {
	if c == nil {
		return map[string]int{"subjects": 0, "professors": 0, "sections": 0, "meetings": 0}
	}
	return map[string]int{
		"subjects":   len(c.Subjects),
		"professors": len(c.Professors),
		"sections":   len(c.Sections),
		"meetings":   len(c.Meetings),
	}
}

// SubjectByCode indexes subjects by code. Later duplicates are ignored.
func (c *Catalog) SubjectByCode() map[string]Subject {
	out := make(map[string]Subject, len(c.Subjects))
	for _, s := range c.Subjects {
		if _, exists := out[s.Code]; !exists {
			out[s.Code] = s
		}
	}
	return out
}

// ProfessorByID indexes professors by id. Later duplicates are ignored.
func (c *Catalog) ProfessorByID() map[string]Professor {
	out := make(map[string]Professor, len(c.Professors))
	for _, p := range c.Professors {
		if _, exists := out[p.ID]; !exists {
			out[p.ID] = p
		}
	}
	return out
}

// Clock is a minute-of-day value. It decodes from any of the encodings
// accepted by clock.Minutes and encodes as "HH:MM".
type Clock int

func (c Clock) String() string {
	return clock.Format(int(c))
}

// MarshalJSON writes the clock as "HH:MM"
func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts strings, numbers and null
func (c *Clock) UnmarshalJSON(data []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		*c = 0
		return nil
	}
	if n, ok := v.(json.Number); ok {
		// json.Number keeps the fraction-of-day form intact
		if f, err := n.Float64(); err == nil {
			*c = Clock(clock.FromNumber(f))
			return nil
		}
	}
	*c = Clock(clock.Minutes(v))
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller
func (c Clock) MarshalCSV() (string, error) {
	return c.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller
func (c *Clock) UnmarshalCSV(s string) error {
	*c = Clock(clock.ParseClock(s))
	return nil
}
