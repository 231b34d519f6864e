package event

import (
	"sort"
	"strings"
	"time"
)

// dateLayouts are the display formats seen on the listing page and in the
// embedded feed. Weekday names are checked for syntax only by time.Parse.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, Jan 2",
	"Monday, January 2",
	"Mon Jan 2",
	"Jan 2",
	"January 2",
	"1/2/2006",
	"1/2",
}

// pastWindow is how far back a year-less date may fall before it is read as
// next year's date.
const pastWindow = 60 * 24 * time.Hour

// ParseDate attempts to parse an event's display date.
// Returns time.Time{} (zero value) if parsing fails.
func ParseDate(dateText string) time.Time {
	return parseDateAt(dateText, time.Now())
}

func parseDateAt(dateText string, now time.Time) time.Time {
	text := strings.Join(strings.Fields(dateText), " ")
	if text == "" {
		return time.Time{}
	}

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, text)
		if err != nil {
			continue
		}
		if t.Year() != 0 {
			return t
		}
		// Listing pages omit the year; pick the occurrence closest ahead of now
		t = time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if now.Sub(t) > pastWindow {
			t = t.AddDate(1, 0, 0)
		}
		return t
	}

	return time.Time{}
}

// SortByDate orders events by parsed date, oldest first.
// Unparseable dates go last; ties fall back to title, then content hash.
func SortByDate(events []Event) {
	sortByDateAt(events, time.Now())
}

func sortByDateAt(events []Event, now time.Time) {
	dates := make(map[string]time.Time, len(events))
	dateOf := func(e Event) time.Time {
		if d, ok := dates[e.Date]; ok {
			return d
		}
		d := parseDateAt(e.Date, now)
		dates[e.Date] = d
		return d
	}

	sort.SliceStable(events, func(i, j int) bool {
		di, dj := dateOf(events[i]), dateOf(events[j])
		switch {
		case !di.IsZero() && !dj.IsZero() && !di.Equal(dj):
			return di.Before(dj)
		case !di.IsZero() && dj.IsZero():
			return true
		case di.IsZero() && !dj.IsZero():
			return false
		}
		ti, tj := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
		if ti != tj {
			return ti < tj
		}
		return events[i].ContentHash() < events[j].ContentHash()
	})
}
