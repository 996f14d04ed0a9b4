// Package notify delivers accepted-bid side effects over NATS: per-user notifications on core NATS
// and durable bid and item events on JetStream for archival.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/erin-a-z/Biddable/shared/events"
	"github.com/erin-a-z/Biddable/shared/models"
)

type corePublisher interface {
	Publish(subject string, data []byte) error
}

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Dispatcher implements service.Notifier, service.Archiver and service.EventPublisher
type Dispatcher struct {
	conn corePublisher
	js   streamPublisher
}

// NewDispatcher makes sure the archival stream exists before anything is published to it
func NewDispatcher(ctx context.Context, conn *nats.Conn) (*Dispatcher, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(ctx, events.StreamConfig()); err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}
	slog.Info("jetstream stream ready", slog.String("stream", events.StreamName))

	return &Dispatcher{conn: conn, js: js}, nil
}

// Notify publishes n on notifications.{type}.{userID}. Core NATS: a user with no open socket misses it.
func (d *Dispatcher) Notify(_ context.Context, n *models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := events.NotificationSubject(n.Type, n.UserID)
	if err := d.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", subject, err)
	}
	return nil
}

// PublishBidEvent publishes to JetStream and waits for the server to persist it.
// The event ID doubles as the message ID so a retried publish is deduplicated.
func (d *Dispatcher) PublishBidEvent(ctx context.Context, event *models.BidEvent) error {
	return d.persist(ctx, events.BidSubject(event.ItemID), event.EventID, event)
}

// PublishItemEvent archives item lifecycle changes. Bid snapshots are skipped: the worker derives
// the item projection from bid events.
func (d *Dispatcher) PublishItemEvent(ctx context.Context, event *models.ItemEvent) error {
	if event.Type == models.ItemEventBidPlaced {
		return nil
	}
	return d.persist(ctx, events.ItemSubject(event.ItemID), event.EventID, event)
}

func (d *Dispatcher) persist(ctx context.Context, subject, msgID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := d.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	slog.Debug("published to jetstream", slog.String("subject", subject), slog.Uint64("seq", ack.Sequence))
	return nil
}
