// Package handler selects and runs one of the two operations named by the
// HANDLER setting. It is shared by the Lambda entry point and the CLI.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pfrederiksen/mothership-events/internal/config"
	"github.com/pfrederiksen/mothership-events/internal/detector"
	"github.com/pfrederiksen/mothership-events/internal/event"
	"github.com/pfrederiksen/mothership-events/internal/logger"
	"github.com/pfrederiksen/mothership-events/internal/metrics"
	"github.com/pfrederiksen/mothership-events/internal/notifier"
	"github.com/pfrederiksen/mothership-events/internal/scraper"
	"github.com/pfrederiksen/mothership-events/internal/storage"
)

// Handler names
const (
	GetNewEvents     = "GET_NEW_MOTHERSHIP_EVENTS"
	SendNotification = "SEND_NOTIFICATION"
)

// UnknownHandlerError reports a HANDLER value naming no operation
type UnknownHandlerError struct {
	Name string
}

func (e *UnknownHandlerError) Error() string {
	return fmt.Sprintf("unknown handler: %q (want %s or %s)", e.Name, GetNewEvents, SendNotification)
}

func (e *UnknownHandlerError) Is(target error) bool {
	return target == config.ErrConfig
}

// Deps are the collaborators the operations are built from
type Deps struct {
	Log     *logger.Logger
	Metrics *metrics.Metrics

	// OpenStore opens the dedup store. The store is closed after the run when
	// it implements io.Closer.
	OpenStore func(ctx context.Context, cfg config.Config) (storage.Store, error)
	// NewSender builds the notifier and returns it with its default recipient
	NewSender func(ctx context.Context, cfg config.Config) (notifier.Sender, string, error)
	// Fetcher overrides the HTTP fetcher of the configured source URL
	Fetcher detector.Fetcher
}

// NotificationRequest is the input of SEND_NOTIFICATION
type NotificationRequest struct {
	Recipient   string        `json:"recipient,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
	Events      []event.Event `json:"events"`
}

// NotificationResult is the output of SEND_NOTIFICATION
type NotificationResult struct {
	Recipient string   `json:"recipient"`
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Dispatch validates the HANDLER setting, then runs the named operation.
// Configuration errors are returned before any collaborator is built.
func Dispatch(ctx context.Context, cfg config.Config, deps Deps, payload []byte) (interface{}, error) {
	switch cfg.Handler {
	case "":
		return nil, &config.MissingEnvError{Name: "HANDLER"}
	case GetNewEvents:
		return GetNewMothershipEvents(ctx, cfg, deps)
	case SendNotification:
		var req NotificationRequest
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &req); err != nil {
				return nil, fmt.Errorf("decoding notification payload: %w", err)
			}
		}
		return Notify(ctx, cfg, deps, req)
	default:
		return nil, &UnknownHandlerError{Name: cfg.Handler}
	}
}

// GetNewMothershipEvents runs one detection pass and returns the new events as
// field mappings ordered by date
func GetNewMothershipEvents(ctx context.Context, cfg config.Config, deps Deps) ([]map[string]string, error) {
	events, err := DetectNewEvents(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Fields())
	}
	return out, nil
}

// DetectNewEvents runs one detection pass and returns the new events ordered
// by date
func DetectNewEvents(ctx context.Context, cfg config.Config, deps Deps) ([]event.Event, error) {
	if err := cfg.RequireDetect(); err != nil {
		return nil, err
	}

	strategy, err := scraper.NewStrategy(cfg.ExtractionStrategy, cfg.EmbeddedScriptID, cfg.EmbeddedKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
	}
	scheme := strategy.Scheme()
	if cfg.IdentityScheme != "" {
		if scheme, err = event.ParseScheme(cfg.IdentityScheme); err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrConfig, err)
		}
	}

	fetcher := deps.Fetcher
	if fetcher == nil {
		fetcher = scraper.New(cfg.SourceURL)
	}

	store, err := deps.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	defer closeStore(store, deps.Log)

	d := &detector.Detector{
		Fetcher:  fetcher,
		Strategy: strategy,
		Scheme:   scheme,
		Store:    store,
		Log:      deps.Log.With(logger.Fields{"handler": GetNewEvents}),
		Metrics:  deps.Metrics,
	}
	if cfg.NotifyNewEvents {
		sender, recipient, err := deps.NewSender(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("creating notifier: %w", err)
		}
		d.Sender = sender
		d.Recipient = recipient
	}

	deps.Log.Info("Checking for new events", logger.Fields{
		"source":   cfg.SourceURL,
		"strategy": strategy.Name(),
		"scheme":   scheme.String(),
		"store":    cfg.StoreBackend,
	})

	res, err := d.Detect(ctx)
	if err != nil {
		return nil, err
	}

	events := append([]event.Event(nil), res.New...)
	event.SortByDate(events)
	return events, nil
}

// Notify sends one message per event in req. Failed sends are reported in
// the result and do not fail the operation.
func Notify(ctx context.Context, cfg config.Config, deps Deps, req NotificationRequest) (NotificationResult, error) {
	if err := cfg.RequireNotify(); err != nil {
		return NotificationResult{}, err
	}

	recipient := req.Recipient
	if recipient == "" {
		recipient = req.PhoneNumber
	}
	if recipient == "" {
		if err := cfg.RequireRecipient(); err != nil {
			return NotificationResult{}, err
		}
	}

	sender, fallback, err := deps.NewSender(ctx, cfg)
	if err != nil {
		return NotificationResult{}, fmt.Errorf("creating notifier: %w", err)
	}
	if recipient == "" {
		recipient = fallback
	}

	log := deps.Log.With(logger.Fields{"handler": SendNotification})
	sent, sendErr := notifier.SendAll(ctx, sender, recipient, req.Events, log)
	deps.Metrics.Notifications(sent, len(req.Events)-sent)

	res := NotificationResult{
		Recipient: recipient,
		Sent:      sent,
		Failed:    len(req.Events) - sent,
	}
	if sendErr != nil {
		if u, ok := sendErr.(interface{ Unwrap() []error }); ok {
			for _, e := range u.Unwrap() {
				res.Errors = append(res.Errors, e.Error())
			}
		} else {
			res.Errors = []string{sendErr.Error()}
		}
	}

	log.Info("Notification run complete", logger.Fields{
		"events": len(req.Events),
		"sent":   res.Sent,
		"failed": res.Failed,
	})
	return res, nil
}

func closeStore(store storage.Store, log *logger.Logger) {
	c, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Warn("Failed to close store", logger.Fields{"error": err.Error()})
	}
}
