package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func errorsIs(err, target error) bool {
	return errors.Is(err, target)
}

func TestNewItem(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CST", -6*3600))
	it := NewItem("abc", liveShow, now)

	if it.Hash != "abc" {
		t.Errorf("Hash = %q", it.Hash)
	}
	if it.FirstSeen != "2026-01-02T09:04:05Z" {
		t.Errorf("FirstSeen = %q, want UTC RFC3339", it.FirstSeen)
	}

	fields := it.Fields()
	for _, key := range []string{"Hash", "first_seen", "title", "date", "time", "room", "ticket_type"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Fields() missing %q", key)
		}
	}
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := unavailable("get item", cause)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, cause) {
		t.Errorf("unavailable() = %v, want both ErrUnavailable and cause", err)
	}

	ctxErr := unavailable("get item", context.Canceled)
	if errors.Is(ctxErr, ErrUnavailable) {
		t.Error("context errors should not be marked unavailable")
	}
	if !errors.Is(ctxErr, context.Canceled) {
		t.Error("context error lost")
	}
}
