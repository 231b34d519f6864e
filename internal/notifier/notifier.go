package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pfrederiksen/mothership-events/internal/event"
	"github.com/pfrederiksen/mothership-events/internal/logger"
)

// Sender delivers a single message
type Sender interface {
	// Send delivers message to the recipient. The meaning of to depends on the
	// channel (phone number, chat id); an empty to selects the channel default.
	Send(ctx context.Context, to, message string) error
}

// SendAll sends one message per event and returns how many were delivered.
// Failures are logged and joined into the returned error; they never stop the
// remaining sends.
func SendAll(ctx context.Context, s Sender, to string, events []event.Event, log *logger.Logger) (int, error) {
	var (
		sent int
		errs []error
	)
	for _, evt := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Send(ctx, to, evt.Message()); err != nil {
			log.Error("Failed to send notification", logger.Fields{
				"event": evt.String(),
			}, err)
			errs = append(errs, fmt.Errorf("notifying %q: %w", evt.Title, err))
			continue
		}
		sent++
		log.Info("Sent notification", logger.Fields{
			"event": evt.String(),
		})
	}
	return sent, errors.Join(errs...)
}
