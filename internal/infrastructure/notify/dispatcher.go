// Package notify delivers verification messages off the request path.
// Auth flows enqueue and return; a single worker drains the queue and pushes
// each message through SMTP or SNS. Delivery failures are logged, not
// retried — at-least-once retry belongs to the downstream provider.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forum-api/internal/domain"
	"github.com/forum-api/internal/infrastructure/smtp"
	"github.com/forum-api/internal/infrastructure/sns"
)

const sendTimeout = 10 * time.Second

// Dispatcher is the process-local notification queue.
type Dispatcher struct {
	mailer    smtp.Mailer
	smsSender sns.SMSSender

	queue chan domain.Delivery
	done  chan struct{}
	once  sync.Once
}

// NewDispatcher starts the worker goroutine. queueSize bounds how many
// pending deliveries may pile up before Enqueue starts dropping.
func NewDispatcher(mailer smtp.Mailer, smsSender sns.SMSSender, queueSize int) *Dispatcher {
	d := &Dispatcher{
		mailer:    mailer,
		smsSender: smsSender,
		queue:     make(chan domain.Delivery, queueSize),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

// Enqueue hands a delivery to the worker without blocking the caller. When
// the queue is full the delivery is dropped with a warning — a stalled SMTP
// server must not back-pressure login and registration.
func (d *Dispatcher) Enqueue(delivery domain.Delivery) {
	select {
	case d.queue <- delivery:
	default:
		slog.Warn("notification queue full, dropping delivery",
			"channel", delivery.Channel, "destination", delivery.Destination)
	}
}

// Close stops accepting deliveries, drains what is queued, and waits for the
// worker to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.queue)
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for delivery := range d.queue {
		d.send(delivery)
	}
}

func (d *Dispatcher) send(delivery domain.Delivery) {
	var err error
	switch delivery.Channel {
	case domain.ChannelEmail:
		if d.mailer == nil {
			err = domain.ErrUnavailable
			break
		}
		err = d.mailer.SendEmail(delivery.Destination, delivery.Subject, delivery.Body)
	case domain.ChannelSMS:
		if d.smsSender == nil {
			err = domain.ErrUnavailable
			break
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err = d.smsSender.SendSMS(ctx, delivery.Destination, delivery.Body)
		cancel()
	default:
		slog.Warn("unknown delivery channel", "channel", delivery.Channel)
		return
	}
	if err != nil {
		slog.Warn("notification delivery failed",
			"channel", delivery.Channel, "destination", delivery.Destination, "err", err)
	}
}
