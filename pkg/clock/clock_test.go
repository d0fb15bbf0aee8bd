package clock

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMinutes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"colon padded", "08:30", 510},
		{"colon short", "8:30", 510},
		{"colon with seconds", "14:05:00", 845},
		{"colon missing minutes", "9:", 540},
		{"packed string", "830", 510},
		{"packed string padded", "0830", 510},
		{"packed afternoon", "1430", 870},
		{"packed int", 1430, 870},
		{"packed int64", int64(900), 540},
		{"packed float", 1015.0, 615},
		{"day fraction", 0.5, 720},
		{"day fraction string", "0.375", 540},
		{"day fraction rounding", 0.3541666, 510},
		{"zero", 0, 0},
		{"empty", "", 0},
		{"blank", "   ", 0},
		{"garbage", "abc", 0},
		{"garbage hours", "xx:30", 0},
		{"nil", nil, 0},
		{"negative", -30, 0},
		{"json number", json.Number("1200"), 720},
		{"timestamp", time.Date(2025, 1, 6, 16, 45, 0, 0, time.UTC), 1005},
		{"rfc3339 string", "2025-01-06T07:15:00Z", 435},
		{"unsupported type", []int{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Minutes(tt.in); got != tt.want {
				t.Errorf("Minutes(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestMinutesStaysInRange(t *testing.T) {
	for _, in := range []any{"99:99", 9999, 2500.0, "24:00"} {
		got := Minutes(in)
		if got < 0 || got >= MinutesPerDay {
			t.Errorf("Minutes(%v) = %d, outside [0,%d)", in, got, MinutesPerDay)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := Format(510); got != "08:30" {
		t.Errorf("Format(510) = %q, want 08:30", got)
	}
	if got := Format(0); got != "00:00" {
		t.Errorf("Format(0) = %q, want 00:00", got)
	}
}

func TestDay(t *testing.T) {
	tests := map[string]string{
		"LUN":       Monday,
		"lunes":     Monday,
		"Martes":    Tuesday,
		"mar":       Tuesday,
		"MIÉRCOLES": Wednesday,
		"mie":       Wednesday,
		"Mi":        Wednesday,
		"jueves":    Thursday,
		"VI":        Friday,
		"sábado":    Saturday,
		"SÁB":       Saturday,
		"domingo":   Sunday,
		" dom ":     Sunday,
	}
	for in, want := range tests {
		if got := Day(in); got != want {
			t.Errorf("Day(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDayPassesThroughUnknown(t *testing.T) {
	for _, in := range []string{"", "XYZ", "Monday"} {
		got := Day(in)
		if got != in {
			t.Errorf("Day(%q) = %q, want unchanged", in, got)
		}
		if IsDay(got) {
			t.Errorf("IsDay(%q) = true for unknown input", got)
		}
	}
}

func TestDayIndex(t *testing.T) {
	for i, d := range Days {
		if DayIndex(d) != i {
			t.Errorf("DayIndex(%s) = %d, want %d", d, DayIndex(d), i)
		}
	}
	if DayIndex("XYZ") != -1 {
		t.Error("DayIndex of unknown code should be -1")
	}
}
