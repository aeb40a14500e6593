package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/otawatch/internal/logger"
	"github.com/rewired-gh/otawatch/internal/models"
)

// Channel delivers a rendered message.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher fans a message out to every configured channel. A failing channel does
// not stop the others.
type Dispatcher struct {
	channels []Channel
}

func NewDispatcher(channels ...Channel) *Dispatcher {
	return &Dispatcher{channels: channels}
}

// Notify renders events and sends them. The returned error joins per-channel failures.
func (d *Dispatcher) Notify(ctx context.Context, site string, events []models.PriceDropEvent) error {
	if len(events) == 0 {
		return nil
	}
	msg := Compose(site, events)
	if len(d.channels) == 0 {
		logger.Info("No notification channel configured; %s", msg.Subject)
		return nil
	}

	var errs []error
	for _, c := range d.channels {
		if err := c.Send(ctx, msg); err != nil {
			logger.Error("Failed to send %s notification: %v", c.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
			continue
		}
		logger.Info("Sent %s notification: %s", c.Name(), msg.Subject)
	}
	return errors.Join(errs...)
}
