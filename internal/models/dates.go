package models

import (
	"regexp"
	"strings"
	"time"
)

// StayDateLayouts are the accepted renderings of a check-in or check-out date.
var StayDateLayouts = []string{
	"2 January 2006",
	"2006-01-02",
	"2 Jan 2006",
}

var (
	leadingWeekday = regexp.MustCompile(`^(?i)(mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s+`)
	rangeSeparator = regexp.MustCompile(`\s*[–—→]\s*|\s+-\s+|\s+to\s+`)
)

// ParseStayDate parses a stay date in any accepted layout, ignoring a leading weekday.
func ParseStayDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(leadingWeekday.ReplaceAllString(strings.TrimSpace(s), ""))
	s = strings.TrimSuffix(s, ",")
	for _, layout := range StayDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// SplitDateRange splits a raw range such as "Mon 1 Dec 2025 – Fri 5 Dec 2025" into its ends.
// Missing ends come back as NotAvailable.
func SplitDateRange(raw string) (checkIn, checkOut string) {
	parts := rangeSeparator.Split(strings.TrimSpace(raw), 2)
	checkIn, checkOut = NotAvailable, NotAvailable
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		checkIn = strings.TrimSpace(parts[0])
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		checkOut = strings.TrimSpace(parts[1])
	}
	return checkIn, checkOut
}
