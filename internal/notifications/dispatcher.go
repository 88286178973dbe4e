package notifications

import (
	"context"
	"log"
	"time"

	"github.com/godesk-io/godesk-ce/internal/metrics"
)

// Dispatcher delivers workflow notifications. Everything is fire-and-
// forget: a failed email or broadcast is logged and counted, and the
// business transition that triggered it is never rolled back.
type Dispatcher struct {
	email  EmailProvider
	hub    *Hub
	logger *log.Logger
}

// NewDispatcher wires a dispatcher. email and hub may each be nil to
// disable that channel.
func NewDispatcher(email EmailProvider, hub *Hub, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{email: email, hub: hub, logger: logger}
}

// Notify broadcasts the event and mails the recipients in the background.
func (d *Dispatcher) Notify(event Event, recipients []string, subject, body string) {
	if d == nil {
		return
	}
	if d.hub != nil {
		d.hub.Broadcast(event)
	}
	if d.email == nil || len(recipients) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		msg := EmailMessage{To: recipients, Subject: subject, Body: body, HTML: true}
		if err := d.email.Send(ctx, msg); err != nil {
			d.logger.Printf("notification %s for ticket %s failed: %v", event.Kind, event.TicketID, err)
			metrics.NotificationFailures.Inc()
		}
	}()
}
