// Package calendar renders events as an iCalendar (.ics) document so new shows
// can be imported into a calendar app.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

const (
	prodID     = "-//Comedy Mothership Events//mothership-events//EN"
	venue      = "Comedy Mothership, 320 E 6th St, Austin, TX"
	listingURL = "https://comedymothership.com/shows"
	showLength = 2 * time.Hour
)

// timeLayouts are the show time formats seen on the listing page
var timeLayouts = []string{"3:04 PM", "3:04PM", "3 PM", "3PM", "15:04"}

// Generate renders events as one calendar. Events whose date cannot be read
// are left out; the second result counts them.
func Generate(events []event.Event, now time.Time) (string, int) {
	var ics strings.Builder
	skipped := 0

	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:" + prodID + "\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")

	for _, evt := range events {
		if !writeEvent(&ics, evt, now) {
			skipped++
		}
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String(), skipped
}

func writeEvent(ics *strings.Builder, evt event.Event, now time.Time) bool {
	day := event.ParseDate(evt.Date)
	if day.IsZero() {
		return false
	}

	ics.WriteString("BEGIN:VEVENT\r\n")

	uid := evt.ExternalID
	if uid == "" {
		uid = evt.ContentHash()
	}
	fmt.Fprintf(ics, "UID:%s@comedymothership.com\r\n", uid)
	fmt.Fprintf(ics, "DTSTAMP:%s\r\n", now.UTC().Format("20060102T150405Z"))

	// Times are local to the venue, so they are written without a zone
	if clock, ok := parseShowTime(evt.Time); ok {
		start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
		fmt.Fprintf(ics, "DTSTART:%s\r\n", start.Format("20060102T150405"))
		fmt.Fprintf(ics, "DTEND:%s\r\n", start.Add(showLength).Format("20060102T150405"))
	} else {
		fmt.Fprintf(ics, "DTSTART;VALUE=DATE:%s\r\n", day.Format("20060102"))
		fmt.Fprintf(ics, "DTEND;VALUE=DATE:%s\r\n", day.AddDate(0, 0, 1).Format("20060102"))
	}

	fmt.Fprintf(ics, "SUMMARY:%s\r\n", escapeICS(evt.Title))

	var desc []string
	if evt.TicketType != "" {
		desc = append(desc, "Tickets: "+evt.TicketType)
	}
	if evt.TicketAvailability != "" {
		desc = append(desc, "Availability: "+evt.TicketAvailability)
	}
	if len(desc) > 0 {
		fmt.Fprintf(ics, "DESCRIPTION:%s\r\n", escapeICS(strings.Join(desc, "\n")))
	}

	location := venue
	if evt.Room != "" {
		location = evt.Room + ", " + venue
	}
	fmt.Fprintf(ics, "LOCATION:%s\r\n", escapeICS(location))

	url := evt.URL
	if url == "" {
		url = listingURL
	}
	fmt.Fprintf(ics, "URL:%s\r\n", url)

	ics.WriteString("STATUS:CONFIRMED\r\n")
	ics.WriteString("TRANSP:OPAQUE\r\n")
	ics.WriteString("END:VEVENT\r\n")
	return true
}

func parseShowTime(s string) (time.Time, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// escapeICS escapes special characters for iCalendar format
func escapeICS(s string) string {
	// RFC 5545 text escaping
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
