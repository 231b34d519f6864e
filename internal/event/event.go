package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Scheme selects how an Event's identity is derived
type Scheme int

const (
	// SchemeContent hashes the displayed fields
	SchemeContent Scheme = iota
	// SchemeExternal uses the provider-supplied ID
	SchemeExternal
)

// String returns the configuration name of the scheme
func (s Scheme) String() string {
	switch s {
	case SchemeContent:
		return "content"
	case SchemeExternal:
		return "external"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme maps a configuration name to a Scheme
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "content", "hash":
		return SchemeContent, nil
	case "external", "id":
		return SchemeExternal, nil
	default:
		return 0, fmt.Errorf("unknown identity scheme: %q", name)
	}
}

// Event represents one show listed on the venue page.
// Values are passed by copy and never modified after construction.
type Event struct {
	Title              string `json:"title" dynamodbav:"title"`
	Date               string `json:"date" dynamodbav:"date"`
	Time               string `json:"time" dynamodbav:"time"`
	Room               string `json:"room" dynamodbav:"room"`
	TicketType         string `json:"ticket_type" dynamodbav:"ticket_type"`
	TicketAvailability string `json:"ticket_availability,omitempty" dynamodbav:"ticket_availability,omitempty"`
	ExternalID         string `json:"external_id,omitempty" dynamodbav:"external_id,omitempty"`
	URL                string `json:"url,omitempty" dynamodbav:"url,omitempty"`
}

// ContentHash returns the SHA-256 hex digest of the event's displayed fields.
// The join order matches the Hash keys already present in the events table.
func (e Event) ContentHash() string {
	data := strings.Join([]string{e.Date, e.Title, e.Time, e.Room, e.TicketType}, ":")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Identity returns the dedup key of the event under the given scheme.
// An empty string means the event has no identity under that scheme.
func (e Event) Identity(s Scheme) string {
	if s == SchemeExternal {
		return e.ExternalID
	}
	return e.ContentHash()
}

// Fields returns the event as a plain field mapping
func (e Event) Fields() map[string]string {
	fields := map[string]string{
		"title":       e.Title,
		"date":        e.Date,
		"time":        e.Time,
		"room":        e.Room,
		"ticket_type": e.TicketType,
	}
	if e.TicketAvailability != "" {
		fields["ticket_availability"] = e.TicketAvailability
	}
	if e.ExternalID != "" {
		fields["external_id"] = e.ExternalID
	}
	if e.URL != "" {
		fields["url"] = e.URL
	}
	return fields
}

// Message renders the SMS body announcing the event
func (e Event) Message() string {
	lines := []string{
		"New Mothership Event:",
		"",
		"Title: " + e.Title,
		"Date: " + e.Date,
	}
	if e.Time != "" {
		lines = append(lines, "Time: "+e.Time)
	}
	lines = append(lines, "Room: "+e.Room)
	if e.URL != "" {
		lines = append(lines, "Url: "+e.URL)
	}
	return strings.Join(lines, "\n")
}

// String implements fmt.Stringer for log output
func (e Event) String() string {
	return fmt.Sprintf("%s (%s %s, %s)", e.Title, e.Date, e.Time, e.Room)
}
