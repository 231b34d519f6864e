package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

// ErrUnavailable marks errors meaning the store as a whole cannot serve
// requests. A run must stop on it rather than skip records.
var ErrUnavailable = errors.New("store unavailable")

// Store records event identities across runs
type Store interface {
	// Exists reports whether hash was recorded by an earlier run
	Exists(ctx context.Context, hash string) (bool, error)
	// Put records hash with the event's fields; writing an existing hash is harmless
	Put(ctx context.Context, hash string, evt event.Event) error
}

// Flusher is implemented by stores that buffer Put calls
type Flusher interface {
	Flush(ctx context.Context) error
}

// Item is the persisted form of an entry
type Item struct {
	Hash string `json:"Hash" dynamodbav:"Hash"`
	event.Event
	FirstSeen string `json:"first_seen" dynamodbav:"first_seen"`
}

// NewItem builds the entry written for evt
func NewItem(hash string, evt event.Event, now time.Time) Item {
	return Item{
		Hash:      hash,
		Event:     evt,
		FirstSeen: now.UTC().Format(time.RFC3339),
	}
}

// Fields flattens the item for key-value backends
func (it Item) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"Hash":       it.Hash,
		"first_seen": it.FirstSeen,
	}
	for k, v := range it.Event.Fields() {
		fields[k] = v
	}
	return fields
}

// unavailable wraps err with ErrUnavailable unless it is a context error,
// which the caller already recognises on its own.
func unavailable(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
