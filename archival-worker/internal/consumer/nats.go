package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/erin-a-z/Biddable/shared/events"
	"github.com/erin-a-z/Biddable/shared/models"
)

const (
	// DurableName survives restarts so the worker resumes where it stopped
	DurableName = "archival-worker"

	dbTimeout  = 10 * time.Second
	ackWait    = 30 * time.Second
	maxDeliver = 10
	retryDelay = 5 * time.Second
)

// errMalformed marks messages that can never be archived; they are terminated instead of redelivered
var errMalformed = errors.New("malformed message")

// Archive persists what the stream carries
type Archive interface {
	ArchiveBid(ctx context.Context, event *models.BidEvent) error
	UpsertItem(ctx context.Context, item *models.Item) error
	DeleteItem(ctx context.Context, itemID string) error
}

// NATSConsumer consumes bid and item events from JetStream and persists them
type NATSConsumer struct {
	js      jetstream.JetStream
	archive Archive
	logger  *slog.Logger
}

func NewNATSConsumer(conn *nats.Conn, archive Archive, logger *slog.Logger) (*NATSConsumer, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSConsumer{
		js:      js,
		archive: archive,
		logger:  logger,
	}, nil
}

// Run consumes until ctx is done
func (c *NATSConsumer) Run(ctx context.Context) error {
	setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.js.CreateOrUpdateStream(setupCtx, events.StreamConfig()); err != nil {
		return fmt.Errorf("failed to create/update stream: %w", err)
	}

	cons, err := c.js.CreateOrUpdateConsumer(setupCtx, events.StreamName, jetstream.ConsumerConfig{
		Durable:     DurableName,
		Description: "Archives bids and items into PostgreSQL",
		AckPolicy:   jetstream.AckExplicitPolicy,
		AckWait:     ackWait,
		MaxDeliver:  maxDeliver,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		c.process(ctx, msg)
	}, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		c.logger.Warn("consume error", slog.String("error", err.Error()))
	}))
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	c.logger.Info("consuming", slog.String("stream", events.StreamName), slog.String("consumer", DurableName))

	<-ctx.Done()
	cc.Stop()
	return nil
}

func (c *NATSConsumer) process(ctx context.Context, msg jetstream.Msg) {
	logger := c.logger.With(slog.String("subject", msg.Subject()))

	err := c.handleMessage(ctx, msg.Subject(), msg.Data())
	switch {
	case err == nil:
		if err := msg.Ack(); err != nil {
			logger.Warn("failed to ack", slog.String("error", err.Error()))
		}

	case errors.Is(err, errMalformed):
		logger.Error("dropping message", slog.String("error", err.Error()))
		if err := msg.Term(); err != nil {
			logger.Warn("failed to terminate", slog.String("error", err.Error()))
		}

	default:
		logger.Warn("archival failed, will retry", slog.String("error", err.Error()))
		if err := msg.NakWithDelay(retryDelay); err != nil {
			logger.Warn("failed to nak", slog.String("error", err.Error()))
		}
	}
}

// handleMessage routes one stream message to the archive
func (c *NATSConsumer) handleMessage(ctx context.Context, subject string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	switch {
	case events.IsBidSubject(subject):
		var event models.BidEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		if event.BidID == "" || event.ItemID == "" {
			return fmt.Errorf("%w: bid event %s without bid or item id", errMalformed, event.EventID)
		}

		if err := c.archive.ArchiveBid(ctx, &event); err != nil {
			return err
		}
		c.logger.Debug("archived bid",
			slog.String("bid_id", event.BidID),
			slog.String("item_id", event.ItemID),
			slog.String("amount", event.Amount.StringFixed(2)),
		)
		return nil

	case events.IsItemSubject(subject):
		var event models.ItemEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		return c.handleItemEvent(ctx, &event)

	default:
		return fmt.Errorf("%w: unexpected subject %s", errMalformed, subject)
	}
}

func (c *NATSConsumer) handleItemEvent(ctx context.Context, event *models.ItemEvent) error {
	switch event.Type {
	case models.ItemEventCreated, models.ItemEventUpdated:
		if event.Item == nil || event.Item.ID == "" {
			return fmt.Errorf("%w: %s event %s without item", errMalformed, event.Type, event.EventID)
		}
		if err := c.archive.UpsertItem(ctx, event.Item); err != nil {
			return err
		}

	case models.ItemEventDeleted:
		if event.ItemID == "" {
			return fmt.Errorf("%w: delete event %s without item id", errMalformed, event.EventID)
		}
		if err := c.archive.DeleteItem(ctx, event.ItemID); err != nil {
			return err
		}

	case models.ItemEventBidPlaced:
		// the bid stream already carries it

	default:
		return fmt.Errorf("%w: unknown item event type %q", errMalformed, event.Type)
	}

	c.logger.Debug("archived item event", slog.String("type", event.Type), slog.String("item_id", event.ItemID))
	return nil
}
