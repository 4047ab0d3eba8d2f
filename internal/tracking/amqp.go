package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPChannel is the slice of amqp091.Channel the publisher needs.
type AMQPChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPReporter fans reports out to a durable fanout exchange so dispatch
// screens and other consumers can follow couriers without polling the backend.
// Safe for concurrent use.
type AMQPReporter struct {
	ch       AMQPChannel
	exchange string

	mu       sync.Mutex
	declared bool
}

func NewAMQPReporter(ch AMQPChannel, exchange string) *AMQPReporter {
	if exchange == "" {
		exchange = "tracking.fixes"
	}
	return &AMQPReporter{ch: ch, exchange: exchange}
}

// ensureExchange declares the exchange once; a failed declare is retried on
// the next send.
func (r *AMQPReporter) ensureExchange() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.declared {
		return nil
	}
	if err := r.ch.ExchangeDeclare(r.exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	r.declared = true
	return nil
}

func (r *AMQPReporter) Send(ctx context.Context, report Report) error {
	if err := r.ensureExchange(); err != nil {
		return err
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	return r.ch.PublishWithContext(ctx, r.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// MirrorReporter sends through the primary and additionally mirrors to a
// secondary sink. Mirror failures are logged, never surfaced; the primary
// endpoint stays the source of truth for send accounting.
type MirrorReporter struct {
	Primary Reporter
	Mirror  Reporter
}

func (m MirrorReporter) Send(ctx context.Context, report Report) error {
	err := m.Primary.Send(ctx, report)
	if m.Mirror != nil {
		if merr := m.Mirror.Send(ctx, report); merr != nil {
			log.Printf("mirror publish failed: %v", merr)
		}
	}
	return err
}
