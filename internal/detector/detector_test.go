package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/pfrederiksen/mothership-events/internal/event"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
	"github.com/pfrederiksen/mothership-events/internal/scraper"
	"github.com/pfrederiksen/mothership-events/internal/storage"
)

// fakeStore is an in-memory Store that can fail on chosen hashes
type fakeStore struct {
	seen      map[string]event.Event
	puts      []string
	flushes   int
	existsErr map[string]error
	putErr    error
	flushErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{seen: map[string]event.Event{}, existsErr: map[string]error{}}
}

func (s *fakeStore) Exists(_ context.Context, hash string) (bool, error) {
	if err := s.existsErr[hash]; err != nil {
		return false, err
	}
	_, ok := s.seen[hash]
	return ok, nil
}

func (s *fakeStore) Put(_ context.Context, hash string, evt event.Event) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.puts = append(s.puts, hash)
	s.seen[hash] = evt
	return nil
}

func (s *fakeStore) Flush(_ context.Context) error {
	s.flushes++
	return s.flushErr
}

type sentMessage struct{ to, message string }

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (s *fakeSender) Send(_ context.Context, to, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{to, message})
	return nil
}

var (
	showA = event.Event{Title: "Kill Tony", Date: "Mon, Jan 5", Time: "8:00 PM", Room: "Main Room", TicketType: "On Sale"}
	showB = event.Event{Title: "Mark Normand", Date: "Tue, Jan 6", Time: "7:00 PM", Room: "Fat Man", TicketType: "On Sale"}
)

// page renders events as listing cards
func page(events ...event.Event) []byte {
	var b strings.Builder
	b.WriteString("<html><body><main>")
	for _, e := range events {
		fmt.Fprintf(&b, `<div class="EventCard_eventCard__x1"><div class="EventCard_titleWrapper__x2">`+
			`<div class="h6">%s</div><h3>%s</h3></div>`+
			`<ul class="EventCard_detailsWrapper__x3"><li>%s</li><li>%s</li><li>%s</li></ul></div>`,
			e.Date, e.Title, e.Time, e.Room, e.TicketType)
	}
	b.WriteString("</main></body></html>")
	return []byte(b.String())
}

func newDetector(store storage.Store, sender *fakeSender) *Detector {
	d := &Detector{
		Strategy:  scraper.NewCardStrategy(),
		Scheme:    event.SchemeContent,
		Store:     store,
		Recipient: "+15550100",
		Log:       logger.Nop(),
		Metrics:   metrics.New(),
	}
	if sender != nil {
		d.Sender = sender
	}
	return d
}

func TestDetectPage_OnlyUnseenEvents(t *testing.T) {
	store := newFakeStore()
	store.seen[showA.ContentHash()] = showA
	sender := &fakeSender{}

	res, err := newDetector(store, sender).DetectPage(context.Background(), page(showA, showB))
	if err != nil {
		t.Fatalf("DetectPage() unexpected error: %v", err)
	}

	if len(res.New) != 1 || res.New[0] != showB {
		t.Fatalf("New = %v, want only %v", res.New, showB)
	}
	if len(store.puts) != 1 || store.puts[0] != showB.ContentHash() {
		t.Errorf("puts = %v, want one put of B", store.puts)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d notifications, want 1", len(sender.sent))
	}
	if sender.sent[0].message != showB.Message() || sender.sent[0].to != "+15550100" {
		t.Errorf("notification = %+v", sender.sent[0])
	}
	if res.Notified != 1 || res.NotifyErr != nil {
		t.Errorf("Notified = %d, NotifyErr = %v", res.Notified, res.NotifyErr)
	}
}

func TestDetectPage_Idempotent(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	d := newDetector(store, sender)
	p := page(showA, showB)

	first, err := d.DetectPage(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.New) != 2 {
		t.Fatalf("first run New = %d, want 2", len(first.New))
	}

	second, err := d.DetectPage(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.New) != 0 {
		t.Errorf("second run New = %v, want none", second.New)
	}
	if len(store.puts) != 2 || len(sender.sent) != 2 {
		t.Errorf("puts = %d, sends = %d; want 2 each across both runs", len(store.puts), len(sender.sent))
	}
}

func TestDetectPage_CollapsesDuplicateListings(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{}
	d := newDetector(store, sender)

	res, err := d.DetectPage(context.Background(), page(showA, showB, showA))
	if err != nil {
		t.Fatal(err)
	}

	if len(res.New) != 2 || res.New[0] != showA || res.New[1] != showB {
		t.Errorf("New = %v, want [A B] in page order", res.New)
	}
	if len(store.puts) != 2 || len(sender.sent) != 2 {
		t.Errorf("puts = %d, sends = %d; want 2 each", len(store.puts), len(sender.sent))
	}
}

func TestDetectPage_StoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.existsErr[showB.ContentHash()] = fmt.Errorf("get item: %w: connection refused", storage.ErrUnavailable)
	sender := &fakeSender{}

	_, err := newDetector(store, sender).DetectPage(context.Background(), page(showA, showB))
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("DetectPage() error = %v, want ErrUnavailable", err)
	}
	if len(store.puts) != 0 || store.flushes != 0 {
		t.Errorf("store written after fatal check: puts = %v, flushes = %d", store.puts, store.flushes)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d notifications after fatal check", len(sender.sent))
	}
}

func TestDetectPage_TransientCheckSkipsEvent(t *testing.T) {
	store := newFakeStore()
	store.existsErr[showA.ContentHash()] = errors.New("throttled")
	sender := &fakeSender{}
	var logs bytes.Buffer
	d := newDetector(store, sender)
	d.Log = logger.New(logger.LevelInfo, &logs)

	res, err := d.DetectPage(context.Background(), page(showA, showB))
	if err != nil {
		t.Fatalf("DetectPage() unexpected error: %v", err)
	}
	if len(res.New) != 1 || res.New[0] != showB {
		t.Errorf("New = %v, want only B", res.New)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if _, ok := store.seen[showA.ContentHash()]; ok {
		t.Error("skipped event should not be recorded")
	}
	if !strings.Contains(logs.String(), "failed store check") {
		t.Errorf("skip not logged: %s", logs.String())
	}

	// Once the store recovers the skipped event is detected
	delete(store.existsErr, showA.ContentHash())
	res, err = d.DetectPage(context.Background(), page(showA, showB))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.New) != 1 || res.New[0] != showA {
		t.Errorf("retry New = %v, want only A", res.New)
	}
}

func TestDetectPage_WriteFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeStore)
	}{
		{name: "put", setup: func(s *fakeStore) { s.putErr = errors.New("conditional check failed") }},
		{name: "flush", setup: func(s *fakeStore) { s.flushErr = errors.New("batch write failed") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			tt.setup(store)
			sender := &fakeSender{}

			_, err := newDetector(store, sender).DetectPage(context.Background(), page(showA))
			if err == nil {
				t.Fatal("DetectPage() expected error")
			}
			if len(sender.sent) != 0 {
				t.Errorf("sent %d notifications after failed write", len(sender.sent))
			}
		})
	}
}

func TestDetectPage_NotificationFailureDoesNotFailRun(t *testing.T) {
	store := newFakeStore()
	sender := &fakeSender{err: errors.New("twilio down")}
	d := newDetector(store, sender)

	res, err := d.DetectPage(context.Background(), page(showA, showB))
	if err != nil {
		t.Fatalf("DetectPage() unexpected error: %v", err)
	}
	if len(res.New) != 2 || len(store.puts) != 2 {
		t.Errorf("New = %d, puts = %d; want 2 each", len(res.New), len(store.puts))
	}
	if res.Notified != 0 || res.NotifyErr == nil {
		t.Errorf("Notified = %d, NotifyErr = %v", res.Notified, res.NotifyErr)
	}
}

func TestDetectPage_NoSender(t *testing.T) {
	store := newFakeStore()
	res, err := newDetector(store, nil).DetectPage(context.Background(), page(showA))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.New) != 1 || res.Notified != 0 {
		t.Errorf("New = %d, Notified = %d", len(res.New), res.Notified)
	}
}

func TestDetectPage_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newFakeStore()
	store.existsErr[showA.ContentHash()] = fmt.Errorf("get item: %w", context.Canceled)

	_, err := newDetector(store, &fakeSender{}).DetectPage(ctx, page(showA, showB))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("DetectPage() error = %v, want context.Canceled", err)
	}
	if len(store.puts) != 0 {
		t.Errorf("puts = %v after cancellation", store.puts)
	}
}

func TestDetect_FetchesAndRecords(t *testing.T) {
	html, err := os.ReadFile("../scraper/testdata/shows.html")
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(html)
	}))
	defer server.Close()

	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d := newDetector(store, nil)
	d.Fetcher = scraper.New(server.URL)

	res, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() unexpected error: %v", err)
	}

	var titles []string
	for _, e := range res.New {
		titles = append(titles, e.Title)
	}
	// Ron White has no details and the second Kill Tony is a duplicate
	if got := strings.Join(titles, ","); got != "Kill Tony,Mark Normand" {
		t.Errorf("new titles = %s", got)
	}

	res, err = d.Detect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.New) != 0 {
		t.Errorf("second Detect() New = %v, want none", res.New)
	}
}

func TestDetect_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := newFakeStore()
	d := newDetector(store, &fakeSender{})
	d.Fetcher = scraper.New(server.URL)

	if _, err := d.Detect(context.Background()); err == nil {
		t.Fatal("Detect() expected error for failed fetch")
	}
	if len(store.puts) != 0 {
		t.Error("store written after failed fetch")
	}
}
