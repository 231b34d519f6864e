package scraper

import (
	"strings"

	"github.com/pfrederiksen/mothership-events/internal/event"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
)

// presale listings are not yet on general sale and are never reported
const presale = "presale"

// requiredFields lists, per identity scheme, the fields a card must carry
var requiredFields = map[event.Scheme][]string{
	event.SchemeContent:  {FieldTitle, FieldDate, FieldTime, FieldRoom},
	event.SchemeExternal: {FieldID, FieldTitle, FieldDate},
}

// Parser maps cards to events
type Parser struct {
	scheme  event.Scheme
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewParser creates a parser validating cards for the given identity scheme.
// log and m may be nil.
func NewParser(scheme event.Scheme, log *logger.Logger, m *metrics.Metrics) *Parser {
	return &Parser{scheme: scheme, log: log, metrics: m}
}

// Parse returns the event described by card. It reports false, after logging
// why, when a required field is missing or the listing is a presale.
func (p *Parser) Parse(card Card) (event.Event, bool) {
	get := func(key string) string {
		v, _ := card.Get(key)
		return cleanText(v)
	}

	for _, key := range requiredFields[p.scheme] {
		if get(key) == "" {
			p.log.Warn("Skipping card with missing field", logger.Fields{
				"card":  card.Index,
				"field": key,
			})
			p.metrics.CardRejected(metrics.ReasonMissingField)
			return event.Event{}, false
		}
	}

	availability := get(FieldTicketAvailability)
	if strings.EqualFold(availability, presale) {
		p.log.Info("Skipping presale listing", logger.Fields{
			"card":  card.Index,
			"title": get(FieldTitle),
		})
		p.metrics.CardRejected(metrics.ReasonPresale)
		return event.Event{}, false
	}

	evt := event.Event{
		Title:              get(FieldTitle),
		Date:               get(FieldDate),
		Time:               get(FieldTime),
		Room:               get(FieldRoom),
		TicketType:         get(FieldTicketType),
		TicketAvailability: availability,
		URL:                get(FieldURL),
	}
	if p.scheme == event.SchemeExternal {
		evt.ExternalID = get(FieldID)
	}

	p.log.Debug("Parsed event", logger.Fields{
		"card":  card.Index,
		"event": evt.String(),
	})
	return evt, true
}
