package scraper

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/mothership-events/internal/event"
)

// Default class-name prefixes of the server-rendered markup. The build tool
// appends a hash to each class, so only the prefix is stable.
const (
	DefaultContainerPrefix    = "EventCard_eventCard"
	DefaultTitleWrapperPrefix = "EventCard_titleWrapper"
	DefaultDetailsPrefix      = "EventCard_detailsWrapper"
)

// Positions within the details list
const (
	detailTime       = 0
	detailRoom       = 1
	detailTicketType = 2
)

// CardStrategy extracts events from the EventCard markup
type CardStrategy struct {
	ContainerPrefix    string
	TitleWrapperPrefix string
	DetailsPrefix      string
}

// NewCardStrategy returns a CardStrategy with the live site's class prefixes
func NewCardStrategy() *CardStrategy {
	return &CardStrategy{
		ContainerPrefix:    DefaultContainerPrefix,
		TitleWrapperPrefix: DefaultTitleWrapperPrefix,
		DetailsPrefix:      DefaultDetailsPrefix,
	}
}

func (s *CardStrategy) Name() string { return StrategyCards }

// Scheme is always content hashing: the markup carries no stable ID.
func (s *CardStrategy) Scheme() event.Scheme { return event.SchemeContent }

// Extract parses the HTML and yields one Card per event container
func (s *CardStrategy) Extract(page []byte) (iter.Seq[Card], error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	containers := findByClassPrefix(doc.Selection, s.ContainerPrefix).
		FilterFunction(func(_ int, sel *goquery.Selection) bool {
			// Inner elements sharing the prefix belong to the outer card
			return sel.ParentsFiltered(classContains(s.ContainerPrefix)).
				FilterFunction(func(_ int, p *goquery.Selection) bool {
					return hasClassPrefix(p, s.ContainerPrefix)
				}).Length() == 0
		})

	return func(yield func(Card) bool) {
		containers.EachWithBreak(func(i int, sel *goquery.Selection) bool {
			card, ok := s.extractCard(sel)
			if !ok {
				return true
			}
			card.Index = i
			return yield(card)
		})
	}, nil
}

// extractCard reads the fields present in one container. It reports false
// when the container has neither a title nor a details list.
func (s *CardStrategy) extractCard(sel *goquery.Selection) (Card, bool) {
	fields := make(map[string]string)

	title := sel.Find("h3").First()
	if title.Length() > 0 {
		fields[FieldTitle] = cleanText(title.Text())
	}

	date := sel.Find(".h6").First()
	if date.Length() == 0 {
		date = findByClassPrefix(sel, s.TitleWrapperPrefix).First().Find("div").First()
	}
	if date.Length() > 0 {
		fields[FieldDate] = cleanText(date.Text())
	}

	details := findByClassPrefix(sel, s.DetailsPrefix).First()
	if details.Length() > 0 {
		items := details.ChildrenFiltered("li")
		if items.Length() == 0 {
			items = details.Children()
		}
		for pos, key := range map[int]string{
			detailTime:       FieldTime,
			detailRoom:       FieldRoom,
			detailTicketType: FieldTicketType,
		} {
			if item := items.Eq(pos); item.Length() > 0 {
				fields[key] = cleanText(item.Text())
			}
		}
	}

	if title.Length() == 0 && details.Length() == 0 {
		return Card{}, false
	}
	return Card{Fields: fields}, true
}

// findByClassPrefix returns descendants having a class token that starts with prefix
func findByClassPrefix(sel *goquery.Selection, prefix string) *goquery.Selection {
	return sel.Find(classContains(prefix)).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return hasClassPrefix(s, prefix)
	})
}

func classContains(prefix string) string {
	return fmt.Sprintf(`[class*=%q]`, prefix)
}

func hasClassPrefix(sel *goquery.Selection, prefix string) bool {
	class, _ := sel.Attr("class")
	for _, token := range strings.Fields(class) {
		if strings.HasPrefix(token, prefix) {
			return true
		}
	}
	return false
}
