// Package detector finds the events on the listing page that no earlier run
// has seen.
//
// A run extracts and parses the page, drops events listed twice, checks each
// remaining event against the store, records the new ones and, when a Sender
// is set, notifies once per new event. Every store check happens before the
// first write, so a store that is down fails the run with nothing written and
// nothing sent. Writes complete before any notification, so a failed write
// never leaves a notified event unrecorded.
package detector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pfrederiksen/mothership-events/internal/event"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
	"github.com/pfrederiksen/mothership-events/internal/notifier"
	"github.com/pfrederiksen/mothership-events/internal/scraper"
	"github.com/pfrederiksen/mothership-events/internal/storage"
)

// Fetcher retrieves the listing page
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Detector runs the detection pipeline
type Detector struct {
	Fetcher  Fetcher
	Strategy scraper.Strategy
	Scheme   event.Scheme
	Store    storage.Store

	// Sender and Recipient enable notification of new events. A nil Sender
	// only detects.
	Sender    notifier.Sender
	Recipient string

	Log     *logger.Logger
	Metrics *metrics.Metrics
}

// Result describes one run
type Result struct {
	// New lists the new events in the order they appear on the page
	New []event.Event
	// Skipped counts events whose store check failed; a later run retries them
	Skipped int
	// Notified counts delivered notifications
	Notified int
	// NotifyErr joins the failed notifications. It does not fail the run.
	NotifyErr error
}

type candidate struct {
	hash string
	evt  event.Event
}

// Detect fetches the page and processes it
func (d *Detector) Detect(ctx context.Context) (Result, error) {
	if d.Fetcher == nil {
		return Result{}, fmt.Errorf("no fetcher configured")
	}
	page, err := d.Fetcher.Fetch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetching page: %w", err)
	}
	return d.DetectPage(ctx, page)
}

// DetectPage processes an already fetched page
func (d *Detector) DetectPage(ctx context.Context, page []byte) (Result, error) {
	started := time.Now()
	res, err := d.run(ctx, page)
	d.Metrics.RunFinished(started, err == nil)
	return res, err
}

func (d *Detector) run(ctx context.Context, page []byte) (Result, error) {
	candidates, err := d.collect(page)
	if err != nil {
		return Result{}, err
	}

	fresh, skipped, err := d.check(ctx, candidates)
	if err != nil {
		return Result{}, err
	}

	if err := d.record(ctx, fresh); err != nil {
		return Result{}, err
	}

	res := Result{Skipped: skipped}
	for _, c := range fresh {
		res.New = append(res.New, c.evt)
	}

	d.Log.Info("Detection complete", logger.Fields{
		"candidates": len(candidates),
		"new":        len(res.New),
		"skipped":    skipped,
	})

	if d.Sender != nil && len(res.New) > 0 {
		res.Notified, res.NotifyErr = notifier.SendAll(ctx, d.Sender, d.Recipient, res.New, d.Log)
		d.Metrics.Notifications(res.Notified, len(res.New)-res.Notified)
	}

	return res, nil
}

// collect extracts and parses the page, keeping the first of each identity
func (d *Detector) collect(page []byte) ([]candidate, error) {
	if d.Strategy == nil {
		return nil, fmt.Errorf("no extraction strategy configured")
	}
	cards, err := d.Strategy.Extract(page)
	if err != nil {
		return nil, fmt.Errorf("extracting cards: %w", err)
	}

	parser := scraper.NewParser(d.Scheme, d.Log, d.Metrics)
	seen := make(map[string]bool)
	var out []candidate

	for card := range cards {
		d.Metrics.CardExtracted()
		evt, ok := parser.Parse(card)
		if !ok {
			continue
		}

		hash := evt.Identity(d.Scheme)
		if hash == "" {
			d.Log.Warn("Skipping event without identity", logger.Fields{
				"card":   card.Index,
				"scheme": d.Scheme.String(),
			})
			d.Metrics.CardRejected(metrics.ReasonNoIdentity)
			continue
		}
		if seen[hash] {
			d.Log.Debug("Dropping duplicate listing", logger.Fields{
				"card": card.Index,
				"hash": hash,
			})
			d.Metrics.Duplicate()
			continue
		}
		seen[hash] = true
		out = append(out, candidate{hash: hash, evt: evt})
	}
	return out, nil
}

// check returns the candidates the store has not seen. A store that is
// unavailable, or a cancelled context, aborts; any other failed check skips
// that event for this run.
func (d *Detector) check(ctx context.Context, candidates []candidate) ([]candidate, int, error) {
	var (
		fresh   []candidate
		skipped int
	)
	for _, c := range candidates {
		exists, err := d.Store.Exists(ctx, c.hash)
		if err != nil {
			d.Metrics.StoreError()
			if fatal(err) {
				return nil, 0, fmt.Errorf("checking event %s: %w", c.hash, err)
			}
			d.Log.Warn("Skipping event after failed store check", logger.Fields{
				"hash":  c.hash,
				"event": c.evt.String(),
				"error": err.Error(),
			})
			skipped++
			continue
		}
		if exists {
			d.Metrics.Known()
			continue
		}
		fresh = append(fresh, c)
	}
	return fresh, skipped, nil
}

// record writes every new event and flushes a buffering store
func (d *Detector) record(ctx context.Context, fresh []candidate) error {
	for _, c := range fresh {
		if err := d.Store.Put(ctx, c.hash, c.evt); err != nil {
			d.Metrics.StoreError()
			return fmt.Errorf("recording event %s: %w", c.hash, err)
		}
		d.Metrics.NewEvent()
		d.Log.Info("New event", logger.Fields{
			"hash":  c.hash,
			"event": c.evt.String(),
		})
	}

	if f, ok := d.Store.(storage.Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			d.Metrics.StoreError()
			return fmt.Errorf("flushing store: %w", err)
		}
	}
	return nil
}

func fatal(err error) bool {
	return errors.Is(err, storage.ErrUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
