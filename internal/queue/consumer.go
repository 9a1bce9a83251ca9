package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/duohabit/duohabit/internal/cache"
)

// StartRowChangeConsumer connects to RabbitMQ, declares the durable
// row-change queue, and consumes events until ctx is cancelled. Each
// event drops the cached views its table feeds, so every client's
// next fetch sees the row that just changed. The function runs a
// reconnect loop with backoff; processing errors are logged and the
// offending message rejected so the service keeps running.
func StartRowChangeConsumer(ctx context.Context, url string, view *cache.View) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("rowchange-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(ctx, conn, view); err != nil {
			log.Printf("rowchange-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		_ = conn.Close()
		return // ctx cancelled inside the loop
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, view *cache.View) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("rowchange-consumer: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(RowChangeQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(RowChangeQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, view); err != nil {
				log.Printf("rowchange-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// handleMessage maps a changed table onto the cached operations that
// read from it. The mapping is deliberately coarse: a habit change
// drops every habit list and detail view rather than chasing which
// dates it touched.
func handleMessage(ctx context.Context, body []byte, view *cache.View) error {
	var ev RowChangeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	switch ev.Table {
	case "habits", "habit_completions":
		view.Invalidate(ctx, "habits")
		view.Invalidate(ctx, "habit_detail")
	case "notes":
		view.Invalidate(ctx, "notes")
	case "couple_members":
		view.Invalidate(ctx, "partner")
		view.Invalidate(ctx, "habits")
	default:
		return fmt.Errorf("unknown table %q", ev.Table)
	}
	return nil
}
