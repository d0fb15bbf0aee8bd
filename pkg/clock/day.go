package clock

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical day codes, Monday first.
const (
	Monday    = "LUN"
	Tuesday   = "MAR"
	Wednesday = "MIE"
	Thursday  = "JUE"
	Friday    = "VIE"
	Saturday  = "SAB"
	Sunday    = "DOM"
)

// Days lists the canonical codes in week order.
var Days = []string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayIndex = map[string]int{
	Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3, Friday: 4, Saturday: 5, Sunday: 6,
}

// Day maps Spanish day names and abbreviations ("lunes", "Mié", "SÁBADO",
// "ju") to a canonical code. Unrecognized input is returned unchanged.
func Day(s string) string {
	key := strings.ToUpper(stripAccents(strings.TrimSpace(s)))
	switch {
	case key == "":
		return s
	case strings.HasPrefix(key, "LU"):
		return Monday
	case strings.HasPrefix(key, "MI"):
		return Wednesday
	case strings.HasPrefix(key, "MA"):
		return Tuesday
	case strings.HasPrefix(key, "JU"):
		return Thursday
	case strings.HasPrefix(key, "VI"):
		return Friday
	case strings.HasPrefix(key, "SA"):
		return Saturday
	case strings.HasPrefix(key, "DO"):
		return Sunday
	}
	return s
}

// IsDay reports whether code is one of the canonical day codes.
func IsDay(code string) bool {
	_, ok := dayIndex[code]
	return ok
}

// DayIndex returns the week position of a canonical code (Monday = 0), or -1.
func DayIndex(code string) int {
	if i, ok := dayIndex[code]; ok {
		return i
	}
	return -1
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func stripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}
