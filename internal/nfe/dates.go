package nfe

import (
	"strings"
	"time"
)

// CanonicalDateLayout is the date format used everywhere downstream: in row
// values, in the duplicate key and in the session log.
const CanonicalDateLayout = "02/01/2006"

// dateLayouts are the accepted input encodings, tried in order against each
// candidate spelling of the raw string.
var dateLayouts = []string{
	CanonicalDateLayout,
	"2006-01-02",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
	"02-01-2006",
	"02.01.2006",
}

// NormalizeDate converts any of the accepted date encodings into DD/MM/YYYY.
// Returns "" when the input cannot be interpreted. Normalizing an already
// canonical string is a no-op.
func NormalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	trimmed := strings.TrimSpace(raw)
	candidates := []string{
		trimmed,
		strings.ReplaceAll(trimmed, ".", "/"),
		strings.ReplaceAll(trimmed, "-", "/"),
	}
	for _, cand := range candidates {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, cand); err == nil {
				return t.Format(CanonicalDateLayout)
			}
		}
	}
	// Last resort: full RFC 3339 (accepts the Z suffix).
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.Format(CanonicalDateLayout)
	}
	return ""
}

// ParseCanonicalDate parses a canonical DD/MM/YYYY string.
func ParseCanonicalDate(value string) (time.Time, bool) {
	t, err := time.Parse(CanonicalDateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseIssueTimestamp parses the dhEmi emission timestamp (RFC 3339 in the
// NFe schema, but Z-suffixed variants show up in the wild).
func parseIssueTimestamp(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", trimmed); err == nil {
		return t, true
	}
	return time.Time{}, false
}
