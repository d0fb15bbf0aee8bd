package generator

import (
	"fmt"
	"strconv"
	"strings"
)

// Shift is a preferred time-of-day window
type Shift string

const (
	ShiftAny       Shift = "any"
	ShiftMorning   Shift = "morning"   // 06:00-12:00
	ShiftAfternoon Shift = "afternoon" // 12:00-18:00
	ShiftEvening   Shift = "evening"   // 18:00-22:30
)

// Window returns the half-open [start, end) minute range of the shift.
// ok is false for ShiftAny, which accepts every start time.
func (s Shift) Window() (start, end int, ok bool) {
	switch s {
	case ShiftMorning:
		return 6 * 60, 12 * 60, true
	case ShiftAfternoon:
		return 12 * 60, 18 * 60, true
	case ShiftEvening:
		return 18 * 60, 22*60 + 30, true
	}
	return 0, 0, false
}

// Matches reports whether a meeting starting at minute falls in the shift
func (s Shift) Matches(minute int) bool {
	lo, hi, ok := s.Window()
	if !ok {
		return true
	}
	return minute >= lo && minute < hi
}

// ParseShift accepts the shift names case-insensitively. Empty means any.
func ParseShift(s string) (Shift, error) {
	switch v := Shift(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ShiftAny, nil
	case ShiftAny, ShiftMorning, ShiftAfternoon, ShiftEvening:
		return v, nil
	}
	return "", fmt.Errorf("unknown shift %q (want any, morning, afternoon or evening)", s)
}

// UnboundedGap disables the max-gap penalty
const UnboundedGap = -1

// ParseMaxGap accepts a non-negative number of minutes or "unbounded"
func ParseMaxGap(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unbounded", "none", "inf":
		return UnboundedGap, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid max gap %q: %w", s, err)
	}
	if n < 0 {
		return UnboundedGap, nil
	}
	return n, nil
}

// Options are the soft preferences of one generation run
type Options struct {
	Shift                 Shift `json:"preferredShift"`
	MaxGapMinutes         int   `json:"maxGapMinutes"` // UnboundedGap disables the bound
	PreferCompactDays     bool  `json:"preferCompactDays"`
	RespectFixedSelection bool  `json:"respectFixedSelection"`
}

// DefaultOptions penalizes nothing but gaps
func DefaultOptions() Options {
	return Options{
		Shift:         ShiftAny,
		MaxGapMinutes: UnboundedGap,
	}
}

func (o Options) gapBounded() bool {
	return o.MaxGapMinutes >= 0
}
