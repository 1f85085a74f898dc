package source

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"2025-08-01T10:30:00Z", true},
		{"2025-08-01T10:30:00.123456789Z", true},
		{"2025-08-01T10:30:00+02:00", true},
		{"2025-08-01T10:30:00", true},
		{"2025-08-01 10:30:00", true},
		{"2025-08-01", true},
		{"", false},
		{"not a timestamp", false},
		{"08/01/2025", false},
	}

	for _, tt := range tests {
		_, ok := ParseTimestamp(tt.raw)
		if ok != tt.ok {
			t.Errorf("ParseTimestamp(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
		}
	}
}

func TestDeriveDateString(t *testing.T) {
	loc := time.UTC
	now := time.Date(2025, 8, 30, 12, 0, 0, 0, loc)
	ts := time.Date(2025, 8, 1, 23, 59, 0, 0, loc)

	// parsed timestamp is authoritative
	if got := DeriveDateString("ignored", ts, true, now, loc); got != "2025-08-01" {
		t.Errorf("parsed: got %q", got)
	}

	// unparseable but date-shaped prefix
	if got := DeriveDateString("2025-07-15Tgarbage", time.Time{}, false, now, loc); got != "2025-07-15" {
		t.Errorf("date-shaped prefix: got %q", got)
	}

	// nothing usable falls back to the current date
	if got := DeriveDateString("junk", time.Time{}, false, now, loc); got != "2025-08-30" {
		t.Errorf("fallback: got %q", got)
	}
	if got := DeriveDateString("", time.Time{}, false, now, loc); got != "2025-08-30" {
		t.Errorf("empty fallback: got %q", got)
	}
}

func TestDeriveDateStringLocalBucketing(t *testing.T) {
	// A UTC instant late in the day lands on the next day in a +10 zone.
	loc := time.FixedZone("plus10", 10*3600)
	ts := time.Date(2025, 8, 1, 20, 0, 0, 0, time.UTC)
	now := ts

	if got := DeriveDateString("2025-08-01T20:00:00Z", ts, true, now, loc); got != "2025-08-02" {
		t.Errorf("local bucketing: got %q, want 2025-08-02", got)
	}
}

func TestIsDateShaped(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"2025-08-01", true},
		{"0000-00-00", true},
		{"2025/08/01", false},
		{"2025-8-01x", false},
		{"20250801  ", false},
		{"short", false},
	}
	for _, tt := range tests {
		if got := isDateShaped(tt.s); got != tt.want {
			t.Errorf("isDateShaped(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}
