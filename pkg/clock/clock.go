// Package clock normalizes the time and weekday encodings found in course
// catalogs into comparable values: minutes since midnight and canonical
// three-letter Spanish day codes.
//
// Normalization never fails. Malformed input degrades to minute 0 (times) or
// passes through unchanged (days).
package clock

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the exclusive upper bound of a normalized minute value.
const MinutesPerDay = 24 * 60

// Minutes converts a clock value to minutes since midnight.
//
// Accepted encodings:
//   - "H:MM" / "HH:MM" strings
//   - packed HHMM strings or integers ("830", 1430)
//   - numbers in [0,1) as a fraction of a day (spreadsheet serial time)
//   - time.Time and RFC 3339 timestamp strings
//
// Anything else yields 0.
func Minutes(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case time.Time:
		return t.Hour()*60 + t.Minute()
	case *time.Time:
		if t == nil {
			return 0
		}
		return t.Hour()*60 + t.Minute()
	case string:
		return ParseClock(t)
	case json.Number:
		return ParseClock(t.String())
	case int:
		return clamp(packed(t))
	case int32:
		return clamp(packed(int(t)))
	case int64:
		return clamp(packed(int(t)))
	case float32:
		return FromNumber(float64(t))
	case float64:
		return FromNumber(t)
	default:
		return 0
	}
}

// ParseClock parses a textual clock value. See Minutes for the accepted forms.
func ParseClock(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if ts, ok := parseTimestamp(s); ok {
		return ts.Hour()*60 + ts.Minute()
	}

	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err := strconv.Atoi(strings.TrimSpace(h))
		if err != nil {
			return 0
		}
		minutes := 0
		if m = strings.TrimSpace(m); m != "" {
			// "08:30:00" carries seconds; only the minute field matters
			m, _, _ = strings.Cut(m, ":")
			if minutes, err = strconv.Atoi(m); err != nil {
				minutes = 0
			}
		}
		return clamp(hours*60 + minutes)
	}

	if n, err := strconv.Atoi(s); err == nil {
		return clamp(packed(n))
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FromNumber(f)
	}
	return 0
}

// FromNumber applies the numeric rules: values in [0,1) are a fraction of a
// day, values >= 1 are packed HHMM.
func FromNumber(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	if f < 1 {
		return FromDayFraction(f)
	}
	return clamp(packed(int(math.Floor(f))))
}

// FromDayFraction converts a spreadsheet time serial (fraction of 24h).
func FromDayFraction(f float64) int {
	return clamp(int(math.Round(f * MinutesPerDay)))
}

// Format renders minutes as zero-padded "HH:MM".
func Format(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTimestamp(s string) (time.Time, bool) {
	// cheap reject for plain clock strings
	if !strings.Contains(s, "-") {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func packed(n int) int {
	return 60*(n/100) + n%100
}

func clamp(m int) int {
	switch {
	case m < 0:
		return 0
	case m >= MinutesPerDay:
		return MinutesPerDay - 1
	}
	return m
}
