package sources

import (
	"strings"
	"time"
)

// DateLayout is the normalized article date format.
const DateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate. Numeric months and days may
// come with or without a leading zero.
var dateLayouts = []string{
	"2006-1-2",
	"2 January 2006",
	"January 2, 2006",
	"2006/1/2",
	"1/2/2006",
}

// ParseDate normalizes a scraped date string to YYYY-MM-DD. Each layout is
// tried against the whole string and then its first ten characters, so
// timestamps like "2024-09-27T10:00:00Z" reduce to their date. When nothing
// matches it returns the date of now.
func ParseDate(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	if s != "" {
		candidates := []string{s}
		if r := []rune(s); len(r) > 10 {
			candidates = append(candidates, string(r[:10]))
		}
		for _, c := range candidates {
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, c); err == nil {
					return t.Format(DateLayout)
				}
			}
		}
	}
	return now.Format(DateLayout)
}

// Today returns the civil date of now as YYYY-MM-DD.
func Today(now time.Time) string {
	return now.Format(DateLayout)
}
