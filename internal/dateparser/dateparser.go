// Package dateparser implements the string-to-timestamp heuristic used by
// text-oriented source connectors to recognise date/datetime columns.
package dateparser

import (
	"strings"
	"time"

	"tinyetl/internal/rowschema"
)

// isoNoZoneLayouts are ISO 8601 datetime layouts without an explicit zone,
// tried at second, millisecond, and microsecond precision, in that order.
var isoNoZoneLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05.000000",
}

// dateOnlyLayouts are calendar-only patterns, tried in the order that
// resolves the MM/DD/YYYY vs DD/MM/YYYY ambiguity in favour of
// MM/DD/YYYY (spec §4.3's ambiguity note).
var dateOnlyLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"01-02-2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"2006.01.02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// datetimeNoZoneLayouts are datetime formats without an explicit zone,
// including 12-hour AM/PM variants.
var datetimeNoZoneLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"01/02/2006 15:04:05",
	"02/01/2006 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04",
	"02/01/2006 15:04",
	"2006-01-02 3:04:05 PM",
	"01/02/2006 3:04:05 PM",
	"02/01/2006 3:04:05 PM",
	"2006-01-02 3:04 PM",
	"01/02/2006 3:04 PM",
	"02/01/2006 3:04 PM",
}

var monthNames = []string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
	"january", "february", "march", "april", "june", "july",
	"august", "september", "october", "november", "december",
}

// TryParse attempts to parse value as a date/datetime in common formats,
// trying RFC 3339, then ISO 8601 without a zone, then calendar-only
// patterns, then datetime-without-zone patterns, returning the first
// successful parse as a Date value in UTC. ok is false if none match.
func TryParse(value string) (v rowschema.Value, ok bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return rowschema.Value{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return rowschema.Date(t.UTC()), true
	}

	for _, layout := range isoNoZoneLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return rowschema.Date(t), true
		}
	}

	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return rowschema.Date(t), true
		}
	}

	for _, layout := range datetimeNoZoneLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, time.UTC); err == nil {
			return rowschema.Date(t), true
		}
	}

	return rowschema.Value{}, false
}

// MightBeDate is a cheap pre-filter: a hint, not a correctness gate. It
// rejects inputs shorter than 6 or longer than 30 characters, pure decimal
// numerals, and inputs with no date-ish separator or month name.
func MightBeDate(value string) bool {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) < 6 || len(trimmed) > 30 {
		return false
	}

	if isPureDecimal(trimmed) {
		return false
	}

	hasSeparator := strings.ContainsAny(trimmed, "/-. T")
	hasDigit := strings.ContainsAny(trimmed, "0123456789")
	hasMonthName := containsMonthName(trimmed)

	return hasDigit && (hasSeparator || hasMonthName)
}

func isPureDecimal(s string) bool {
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return dots == 1
}

func containsMonthName(s string) bool {
	lower := strings.ToLower(s)
	for _, m := range monthNames {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
