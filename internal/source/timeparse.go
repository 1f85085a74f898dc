package source

import (
	"time"
)

// timestampLayouts is the ordered list of parser attempts for raw timestamp
// strings. First match wins.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02",
}

// ParseTimestamp attempts each known layout in order.
func ParseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// DeriveDateString produces the YYYY-MM-DD bucket for an event in the given
// location. When the raw timestamp was parseable the formatted instant is
// authoritative; otherwise the first ten characters of the raw string are
// used if they look date-shaped, and the current date is the last resort.
func DeriveDateString(raw string, ts time.Time, parsed bool, now time.Time, loc *time.Location) string {
	if parsed {
		return ts.In(loc).Format("2006-01-02")
	}
	if len(raw) >= 10 && isDateShaped(raw[:10]) {
		return raw[:10]
	}
	return now.In(loc).Format("2006-01-02")
}

// isDateShaped reports whether s matches the NNNN-NN-NN pattern.
func isDateShaped(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, c := range s {
		if i == 4 || i == 7 {
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
