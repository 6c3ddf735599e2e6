package format

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of travel dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date (an RFC 3339 timestamp is
// accepted and truncated to its date). Empty or malformed input reports false.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// FormatDate renders "Nov 25, 2025". Empty input renders "", unparseable input
// is returned as given.
func FormatDate(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	t, ok := ParseDate(value)
	if !ok {
		return value
	}
	return t.Format("Jan 2, 2006")
}

// FormatDuration renders "04 Nights / 05 Days".
func FormatDuration(days, nights int) string {
	return fmt.Sprintf("%02d Nights / %02d Days", nights, days)
}

// FormatShortDuration renders "4N/5D", or "" when there is no duration.
func FormatShortDuration(days, nights int) string {
	if days <= 0 {
		return ""
	}
	return fmt.Sprintf("%dN/%dD", nights, days)
}
