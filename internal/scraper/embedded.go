package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/mothership-events/internal/event"
)

const (
	DefaultScriptID = "__NEXT_DATA__"
	DefaultKeyPath  = "props.pageProps.events"
)

// embeddedKeys lists, per card field, the JSON keys the feed has used for it.
// The first key present on an object wins.
var embeddedKeys = map[string][]string{
	FieldID:                 {"_id", "id"},
	FieldTitle:              {"title", "name"},
	FieldDate:               {"date", "dt", "startDate", "start"},
	FieldTime:               {"time", "startTime"},
	FieldRoom:               {"room", "venue", "location"},
	FieldTicketType:         {"ticketType", "ticket_type"},
	FieldTicketAvailability: {"ticketAvailability", "ticket_availability", "availability"},
	FieldURL:                {"url", "link"},
}

// EmbeddedStrategy extracts events from the JSON payload embedded in the page
type EmbeddedStrategy struct {
	ScriptID string
	KeyPath  []string
}

// NewEmbeddedStrategy returns a strategy reading the script with the given id
// and walking the dot-separated keyPath. Empty arguments use the defaults.
func NewEmbeddedStrategy(scriptID, keyPath string) *EmbeddedStrategy {
	if scriptID == "" {
		scriptID = DefaultScriptID
	}
	if keyPath == "" {
		keyPath = DefaultKeyPath
	}
	return &EmbeddedStrategy{
		ScriptID: scriptID,
		KeyPath:  strings.Split(keyPath, "."),
	}
}

func (s *EmbeddedStrategy) Name() string { return StrategyEmbedded }

// Scheme is the external ID: every object in the feed carries one.
func (s *EmbeddedStrategy) Scheme() event.Scheme { return event.SchemeExternal }

// Extract locates the data script, decodes it and yields one Card per object
func (s *EmbeddedStrategy) Extract(page []byte) (iter.Seq[Card], error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	script := doc.Find("script").FilterFunction(func(_ int, sel *goquery.Selection) bool {
		id, _ := sel.Attr("id")
		return id == s.ScriptID
	}).First()
	if script.Length() == 0 {
		return nil, fmt.Errorf("data script %q not found", s.ScriptID)
	}

	dec := json.NewDecoder(strings.NewReader(script.Text()))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding data script: %w", err)
	}

	items, err := walkPath(payload, s.KeyPath)
	if err != nil {
		return nil, err
	}

	return func(yield func(Card) bool) {
		for i, item := range items {
			obj, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if !yield(Card{Index: i, Fields: mapObject(obj)}) {
				return
			}
		}
	}, nil
}

// walkPath follows keys through nested objects (and numeric indexes through
// arrays) and requires the final value to be an array.
func walkPath(v interface{}, path []string) ([]interface{}, error) {
	for i, key := range path {
		switch node := v.(type) {
		case map[string]interface{}:
			next, ok := node[key]
			if !ok {
				return nil, fmt.Errorf("key path %q: %q not found", strings.Join(path, "."), strings.Join(path[:i+1], "."))
			}
			v = next
		case []interface{}:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, fmt.Errorf("key path %q: bad index %q", strings.Join(path, "."), key)
			}
			v = node[idx]
		default:
			return nil, fmt.Errorf("key path %q: %q is not an object", strings.Join(path, "."), strings.Join(path[:i], "."))
		}
	}

	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("key path %q does not hold an array", strings.Join(path, "."))
	}
	return items, nil
}

func mapObject(obj map[string]interface{}) map[string]string {
	fields := make(map[string]string)
	for field, keys := range embeddedKeys {
		for _, key := range keys {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			if text, ok := textOf(raw); ok {
				fields[field] = text
				break
			}
		}
	}
	return fields
}

// textOf renders a scalar JSON value as text. Objects are accepted when they
// carry a name, which is how the feed nests rooms.
func textOf(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case bool:
		return strconv.FormatBool(val), true
	case map[string]interface{}:
		if name, ok := val["name"].(string); ok {
			return name, true
		}
	}
	return "", false
}
