package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/mothership-events/internal/calendar"
	"github.com/pfrederiksen/mothership-events/internal/event"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatICS  OutputFormat = "ics"
)

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt  time.Time     `json:"checked_at"`
	Source     string        `json:"source"`
	NewEvents  []event.Event `json:"new_events"`
	EventCount int           `json:"event_count"`

	// Skipped counts events the calendar output could not place
	Skipped int `json:"-"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	case FormatICS:
		ics, skipped := calendar.Generate(result.NewEvents, result.CheckedAt)
		result.Skipped = skipped
		_, err := io.WriteString(w, ics)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	if result.NewEvents == nil {
		result.NewEvents = []event.Event{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if result.EventCount == 0 {
		fmt.Fprintln(w, "No new events found.")
		return nil
	}

	for _, evt := range result.NewEvents {
		fmt.Fprintf(w, "NEW: %s\n", evt.Title)
		when := evt.Date
		if evt.Time != "" {
			when += " " + evt.Time
		}
		fmt.Fprintf(w, "     %s, %s\n", when, evt.Room)
		if verbose {
			if evt.TicketType != "" {
				fmt.Fprintf(w, "     Tickets: %s\n", evt.TicketType)
			}
			if evt.TicketAvailability != "" {
				fmt.Fprintf(w, "     Availability: %s\n", evt.TicketAvailability)
			}
			if evt.ExternalID != "" {
				fmt.Fprintf(w, "     ID: %s\n", evt.ExternalID)
			}
			if evt.URL != "" {
				fmt.Fprintf(w, "     URL: %s\n", evt.URL)
			}
		}
	}
	fmt.Fprintf(w, "\nTotal: %d new\n", result.EventCount)

	return nil
}
