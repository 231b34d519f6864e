package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CardExtracted()
	m.CardExtracted()
	m.CardRejected(ReasonPresale)
	m.NewEvent()
	m.Known()
	m.Duplicate()
	m.Notification(nil)
	m.Notification(errors.New("twilio down"))

	if got := testutil.ToFloat64(m.cardsExtracted); got != 2 {
		t.Errorf("cards extracted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.cardsRejected.WithLabelValues(ReasonPresale)); got != 1 {
		t.Errorf("presale rejects = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed notifications = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("sent")); got != 1 {
		t.Errorf("sent notifications = %v, want 1", got)
	}
}

func TestMetrics_Notifications(t *testing.T) {
	m := New()
	m.Notifications(3, 1)
	m.Notifications(0, 0)

	if got := testutil.ToFloat64(m.notifications.WithLabelValues("sent")); got != 3 {
		t.Errorf("sent notifications = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.notifications.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed notifications = %v, want 1", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	// None of these should panic
	m.CardExtracted()
	m.CardRejected(ReasonMissingField)
	m.Duplicate()
	m.Known()
	m.NewEvent()
	m.StoreError()
	m.Notification(nil)
	m.Notifications(1, 1)
	m.RunFinished(time.Now(), true)
	if err := m.WriteTextfile("/nonexistent/metrics.prom"); err != nil {
		t.Errorf("WriteTextfile() on nil = %v, want nil", err)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.NewEvent()
	m.RunFinished(time.Now().Add(-time.Second), true)

	path := filepath.Join(t.TempDir(), "mothership.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"mothership_events_new_total 1", "mothership_run_duration_seconds", "mothership_last_success_timestamp_seconds"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("textfile missing %q:\n%s", want, data)
		}
	}
}
