package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pfrederiksen/mothership-events/internal/event"
)

const snapshotFile = "seen_events.json"

// Snapshot is the on-disk form of a FileStore
type Snapshot struct {
	Events    map[string]Item `json:"events"`     // keyed by Item.Hash
	UpdatedAt string          `json:"updated_at"` // RFC3339 timestamp
}

// FileStore keeps the seen set in a JSON file. Puts are held in memory until
// Flush rewrites the file.
type FileStore struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	events  map[string]Item
	pending int
}

// NewFileStore opens (or starts) the snapshot in dataDir
func NewFileStore(dataDir string) (*FileStore, error) {
	// Expand ~ to home directory
	if strings.HasPrefix(dataDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, dataDir[2:])
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &FileStore{
		path: filepath.Join(dataDir, snapshotFile),
		now:  time.Now,
	}

	snapshot, err := s.load()
	if err != nil {
		return nil, err
	}
	s.events = snapshot.Events
	return s, nil
}

// Path returns the snapshot file location
func (s *FileStore) Path() string {
	return s.path
}

// load reads the snapshot from disk
func (s *FileStore) load() (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			// No previous snapshot, return empty one
			return &Snapshot{Events: make(map[string]Item)}, nil
		}
		return nil, unavailable("reading snapshot", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, unavailable("parsing snapshot", err)
	}

	// Ensure Events map is initialized
	if snapshot.Events == nil {
		snapshot.Events = make(map[string]Item)
	}

	return &snapshot, nil
}

func (s *FileStore) Exists(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[hash]
	return ok, nil
}

func (s *FileStore) Put(_ context.Context, hash string, evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[hash]; ok {
		return nil
	}
	s.events[hash] = NewItem(hash, evt, s.now())
	s.pending++
	return nil
}

// Flush writes the snapshot when there are unsaved entries. The file is
// replaced by rename so a crash never leaves it half written.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == 0 {
		return nil
	}

	snapshot := Snapshot{
		Events:    s.events,
		UpdatedAt: s.now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), snapshotFile+".*")
	if err != nil {
		return unavailable("writing snapshot", err)
	}
	defer os.Remove(tmp.Name()) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return unavailable("writing snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("writing snapshot", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return unavailable("writing snapshot", err)
	}

	s.pending = 0
	return nil
}

// Get returns the stored entry for hash
func (s *FileStore) Get(hash string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.events[hash]
	if !ok {
		return Item{}, fmt.Errorf("event not found: %s", hash)
	}
	return it, nil
}
