package dateparse

import (
	"testing"
	"time"
)

// Fixed reference time: Wednesday, 2026-02-18 12:00:00 UTC
var testNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDueExactDate(t *testing.T) {
	got, err := ParseDueFrom("2026-03-01", testNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(date(2026, 3, 1)) {
		t.Errorf("got %v, want 2026-03-01", got)
	}
}

func TestParseDueKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"today", date(2026, 2, 18)},
		{"tomorrow", date(2026, 2, 19)},
		{"next-week", date(2026, 2, 23)}, // next Monday
		{"next-month", date(2026, 3, 1)},
	}
	for _, tt := range tests {
		got, err := ParseDueFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseDueFrom(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDueFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseDueRelativeOffsets(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"+0d", date(2026, 2, 18)},
		{"+1d", date(2026, 2, 19)},
		{"+7d", date(2026, 2, 25)},
		{"+2w", date(2026, 3, 4)},
		{"+1m", date(2026, 3, 18)},
	}
	for _, tt := range tests {
		got, err := ParseDueFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseDueFrom(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDueFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseDueDayNames(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"thursday", date(2026, 2, 19)},
		{"monday", date(2026, 2, 23)},
		// Same weekday as the reference advances a full week.
		{"wednesday", date(2026, 2, 25)},
	}
	for _, tt := range tests {
		got, err := ParseDueFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseDueFrom(%q): %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseDueFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseDueCaseAndWhitespace(t *testing.T) {
	got, err := ParseDueFrom("  Tomorrow ", testNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(date(2026, 2, 19)) {
		t.Errorf("got %v, want 2026-02-19", got)
	}
}

func TestParseDueErrors(t *testing.T) {
	for _, input := range []string{"", "yesterday", "+5x", "march", "2026-13-01"} {
		if _, err := ParseDueFrom(input, testNow); err == nil {
			t.Errorf("ParseDueFrom(%q): expected error", input)
		}
	}
}
