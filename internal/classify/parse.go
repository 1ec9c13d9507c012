package classify

import (
	"strconv"
	"strings"
	"time"
)

var nullTokens = map[string]struct{}{
	"":     {},
	"null": {},
	"nil":  {},
	"na":   {},
	"n/a":  {},
	"none": {},
	"-":    {},
}

// IsNull reports whether a raw cell should be treated as missing.
func IsNull(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006-01", "Jan 2006", "January 2006",
}

// ParseTime parses a cell against the recognized date layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumeric parses a cell as a float, tolerating percent signs, thousands
// separators, and comma decimals. The decimal separator is auto-detected from
// the rightmost of ',' and '.'.
func ParseNumeric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, " ", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	if cpos >= 0 && dpos >= 0 {
		if cpos > dpos {
			dec = ','
		}
	} else if cpos >= 0 {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
