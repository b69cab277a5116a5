package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/parking-slot-reservation/internal/logging"
	"github.com/iliyamo/parking-slot-reservation/internal/queue"
)

// ErrPublisherFull is returned by RabbitPublisher.Publish when the outbox
// buffer is full and the event was dropped.
var ErrPublisherFull = errors.New("event outbox full")

// RabbitPublisher publishes booking events to the durable booking queue.
// Publish only enqueues into a buffered outbox so request handling never
// waits on the broker; Run owns the connection and drains the outbox,
// reconnecting with backoff when the broker goes away.  Messages are
// marked as persistent.
type RabbitPublisher struct {
	url    string
	outbox chan queue.BookingEvent
	log    *logging.Logger
}

// NewRabbitPublisher creates a publisher with room for buffer pending events.
func NewRabbitPublisher(url string, buffer int, logger *logging.Logger) *RabbitPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RabbitPublisher{url: url, outbox: make(chan queue.BookingEvent, buffer), log: logger}
}

// Publish enqueues ev without blocking.
func (p *RabbitPublisher) Publish(ctx context.Context, ev queue.BookingEvent) error {
	select {
	case p.outbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrPublisherFull
	}
}

// Run delivers queued events until ctx is cancelled.  An event whose
// publish failed is retried after reconnecting.
func (p *RabbitPublisher) Run(ctx context.Context) {
	var pending *queue.BookingEvent
	backoff := time.Second
	for {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			p.log.Warn("rabbitmq: dial failed", "error", err, "retry_in", backoff.String())
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = p.drain(ctx, conn, &pending)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		p.log.Warn("rabbitmq: publisher disconnected", "error", err)
	}
}

func (p *RabbitPublisher) drain(ctx context.Context, conn *amqp.Connection, pending **queue.BookingEvent) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.BookingQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		if *pending == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case amqpErr := <-closed:
				return fmt.Errorf("connection closed: %v", amqpErr)
			case ev := <-p.outbox:
				*pending = &ev
			}
		}
		if err := publishEvent(ctx, ch, **pending); err != nil {
			return err
		}
		*pending = nil
	}
}

func publishEvent(ctx context.Context, ch *amqp.Channel, ev queue.BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", queue.BookingQueueName, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
