package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	hash                TEXT PRIMARY KEY,
	title               TEXT NOT NULL,
	date                TEXT NOT NULL,
	time                TEXT NOT NULL,
	room                TEXT NOT NULL,
	ticket_type         TEXT NOT NULL,
	ticket_availability TEXT NOT NULL DEFAULT '',
	external_id         TEXT NOT NULL DEFAULT '',
	url                 TEXT NOT NULL DEFAULT '',
	first_seen          TEXT NOT NULL
)`

const sqliteInsert = `
INSERT INTO events (hash, title, date, time, room, ticket_type, ticket_availability, external_id, url, first_seen)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO NOTHING`

// SQLiteStore keeps the seen set in a local SQLite database
type SQLiteStore struct {
	db    *sql.DB
	batch bool
	now   func() time.Time

	tx *sql.Tx
}

// NewSQLiteStore opens the database at path and creates the table if needed
func NewSQLiteStore(ctx context.Context, path string, batch bool) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer; also keeps ":memory:" on a single database
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close() // nolint:errcheck
		return nil, unavailable("creating events table", err)
	}

	return &SQLiteStore{db: db, batch: batch, now: time.Now}, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM events WHERE hash = ?`, hash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, unavailable("sqlite select", err)
	}
	return true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, hash string, evt event.Event) error {
	it := NewItem(hash, evt, s.now())
	args := []interface{}{
		it.Hash, evt.Title, evt.Date, evt.Time, evt.Room, evt.TicketType,
		evt.TicketAvailability, evt.ExternalID, evt.URL, it.FirstSeen,
	}

	if !s.batch {
		if _, err := s.db.ExecContext(ctx, sqliteInsert, args...); err != nil {
			return unavailable("sqlite insert", err)
		}
		return nil
	}

	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return unavailable("sqlite begin", err)
		}
		s.tx = tx
	}
	if _, err := s.tx.ExecContext(ctx, sqliteInsert, args...); err != nil {
		s.tx.Rollback() // nolint:errcheck
		s.tx = nil
		return unavailable("sqlite insert", err)
	}
	return nil
}

// Flush commits the open batch transaction
func (s *SQLiteStore) Flush(_ context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return unavailable("sqlite commit", err)
	}
	return nil
}

// Close rolls back any unflushed batch and closes the database
func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		s.tx.Rollback() // nolint:errcheck
		s.tx = nil
	}
	return s.db.Close()
}
