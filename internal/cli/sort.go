package cli

import (
	"sort"
	"strings"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByDate  SortOrder = "date"
	SortByTitle SortOrder = "title"
	SortByRoom  SortOrder = "room"
)

func (o SortOrder) valid() bool {
	return o == SortByDate || o == SortByTitle || o == SortByRoom
}

// sortEvents sorts a slice of events based on the specified sort order
func sortEvents(events []event.Event, order SortOrder) {
	switch order {
	case SortByDate:
		event.SortByDate(events)
	case SortByTitle:
		sort.SliceStable(events, func(i, j int) bool {
			ti, tj := strings.ToLower(events[i].Title), strings.ToLower(events[j].Title)
			if ti != tj {
				return ti < tj
			}
			return compareByDate(events[i], events[j])
		})
	case SortByRoom:
		sort.SliceStable(events, func(i, j int) bool {
			if events[i].Room != events[j].Room {
				return events[i].Room < events[j].Room
			}
			return compareByDate(events[i], events[j])
		})
	}
}

// compareByDate reports whether i should come before j.
// Events with a readable date come first.
func compareByDate(i, j event.Event) bool {
	dateI := event.ParseDate(i.Date)
	dateJ := event.ParseDate(j.Date)

	if !dateI.IsZero() && !dateJ.IsZero() {
		return dateI.Before(dateJ)
	}
	if !dateI.IsZero() {
		return true
	}
	if !dateJ.IsZero() {
		return false
	}
	return strings.ToLower(i.Title) < strings.ToLower(j.Title)
}
