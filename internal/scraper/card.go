package scraper

import (
	"fmt"
	"iter"
	"strings"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

// Card field keys
const (
	FieldTitle              = "title"
	FieldDate               = "date"
	FieldTime               = "time"
	FieldRoom               = "room"
	FieldTicketType         = "ticket_type"
	FieldTicketAvailability = "ticket_availability"
	FieldID                 = "id"
	FieldURL                = "url"
)

// Card is one raw field group extracted from the page. A key that is absent
// from Fields means the element was missing from the card.
type Card struct {
	Index  int
	Fields map[string]string
}

// Get returns a field and whether the card carried it
func (c Card) Get(key string) (string, bool) {
	v, ok := c.Fields[key]
	return v, ok
}

// Strategy turns a fetched page into cards.
type Strategy interface {
	// Extract returns the cards in document order. An error means the page as
	// a whole could not be read; malformed individual cards are still yielded
	// with their missing keys absent.
	Extract(page []byte) (iter.Seq[Card], error)
	// Scheme is the identity scheme the strategy's output supports.
	Scheme() event.Scheme
	// Name identifies the strategy in configuration and logs.
	Name() string
}

// Strategy names
const (
	StrategyCards    = "cards"
	StrategyEmbedded = "embedded"
)

// NewStrategy builds the named strategy with its default selectors
func NewStrategy(name, scriptID, keyPath string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyCards:
		return NewCardStrategy(), nil
	case StrategyEmbedded:
		return NewEmbeddedStrategy(scriptID, keyPath), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy: %q", name)
	}
}

// cleanText collapses whitespace runs and trims the result
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
