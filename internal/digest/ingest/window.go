package ingest

import (
	"time"

	"github.com/RobinCoderZhao/scholar-digest/internal/digest/sources"
)

// Window is an inclusive civil-date range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns [today-days, today] in now's location.
func NewWindow(now time.Time, days int) Window {
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// Contains reports whether date (YYYY-MM-DD) falls inside the window.
// Unparseable dates are kept.
func (w Window) Contains(date string) bool {
	t, err := time.ParseInLocation(sources.DateLayout, date, w.End.Location())
	if err != nil {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// Filter returns the articles inside the window, preserving order.
func (w Window) Filter(articles []sources.Article) []sources.Article {
	out := make([]sources.Article, 0, len(articles))
	for _, a := range articles {
		if w.Contains(a.Published) {
			out = append(out, a)
		}
	}
	return out
}

// StartDate formats Start as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Start.Format(sources.DateLayout) }

// EndDate formats End as YYYY-MM-DD.
func (w Window) EndDate() string { return w.End.Format(sources.DateLayout) }

// String renders the window as "start ~ end".
func (w Window) String() string { return w.StartDate() + " ~ " + w.EndDate() }
