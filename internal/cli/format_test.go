package cli

import "testing"

func TestFormatTokens(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1234, "1.2K"},
		{1_234_567, "1.2M"},
		{1_234_567_890, "1.2B"},
		{-1500, "-1.5K"},
	}
	for _, tt := range tests {
		if got := FormatTokens(tt.n); got != tt.want {
			t.Errorf("FormatTokens(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		cost float64
		want string
	}{
		{0.5, "$0.50"},
		{9.99, "$9.99"},
		{12.34, "$12.3"},
		{123.4, "$123"},
		{1234.5, "$1,235"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.cost); got != tt.want {
			t.Errorf("FormatCost(%f) = %q, want %q", tt.cost, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.n); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := FormatPercent(0.756); got != "75.6%" {
		t.Errorf("FormatPercent = %q", got)
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline(nil); got != "" {
		t.Errorf("empty sparkline = %q", got)
	}
	got := RenderSparkline([]float64{0, 0, 0})
	if len([]rune(got)) != 3 {
		t.Errorf("all-zero sparkline length = %d", len([]rune(got)))
	}
	got = RenderSparkline([]float64{1, 5, 10})
	runes := []rune(got)
	if len(runes) != 3 {
		t.Fatalf("sparkline length = %d", len(runes))
	}
	if runes[2] != '█' {
		t.Errorf("max value rune = %q", runes[2])
	}
}
