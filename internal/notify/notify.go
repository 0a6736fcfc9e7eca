package notify

import (
	"context"
	"sync"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"
)

// Notification is the payload of a desktop notification.
type Notification struct {
	Title    string
	Message  string
	Subtitle string
	Icon     string
}

// Notifier delivers notifications. Delivery is fire-and-forget: callers get
// no result and failed deliveries are not retried.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(n Notification)

func (f Func) Notify(n Notification) { f(n) }

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(Notification) {}

var _ Notifier = (*Desktop)(nil)

// Desktop shows notifications through the operating system notification center.
type Desktop struct {
	logger zerolog.Logger
	send   func(title, message, icon string) error
	// pending tracks deliveries still running
	pending sync.WaitGroup
}

// NewDesktop creates a Desktop notifier.
func NewDesktop(logger zerolog.Logger) *Desktop {
	return &Desktop{
		logger: logger,
		send: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
}

// Notify sends n in the background and returns immediately. Call Wait
// before the process exits or the notification may be lost.
func (d *Desktop) Notify(n Notification) {
	d.pending.Go(func() {
		d.deliver(n)
	})
}

// Wait blocks until every notification sent so far has been handed to the
// operating system, or ctx is done.
func (d *Desktop) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Desktop) deliver(n Notification) {
	if err := d.send(n.Title, body(n), n.Icon); err != nil {
		d.logger.Debug().Err(err).Str("title", n.Title).Msg("Failed to send desktop notification")
	}
}

// body folds the subtitle into the message, most notification centers have
// no separate subtitle line.
func body(n Notification) string {
	if n.Subtitle == "" {
		return n.Message
	}
	return n.Message + "\n" + n.Subtitle
}
