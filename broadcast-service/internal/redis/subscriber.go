package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/erin-a-z/Biddable/shared/events"
	"github.com/erin-a-z/Biddable/shared/models"
)

// Subscriber receives the item snapshots the gateway publishes on item_events:{id}
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

// NewSubscriber creates a new Redis Pub/Sub subscriber
func NewSubscriber(ctx context.Context, addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{client: rdb}, nil
}

// SubscribeToItems subscribes to every item channel using pattern matching
func (s *Subscriber) SubscribeToItems(ctx context.Context) error {
	pubsub := s.client.PSubscribe(ctx, events.ItemChannelPattern)

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", events.ItemChannelPattern, err)
	}

	s.pubsub = pubsub
	return nil
}

// Message is one item event ready to forward
type Message struct {
	ItemID  string
	Type    string
	Payload []byte // raw JSON, forwarded as is
}

// Listen forwards messages to out until ctx is done. Malformed payloads are dropped.
func (s *Subscriber) Listen(ctx context.Context, out chan<- *Message) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis subscription closed")
			}

			m, err := decode(msg.Channel, msg.Payload)
			if err != nil {
				slog.Warn("dropping item event", slog.String("channel", msg.Channel), slog.String("error", err.Error()))
				continue
			}

			select {
			case out <- m:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func decode(channel, payload string) (*Message, error) {
	var event models.ItemEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	itemID := events.ItemIDFromChannel(channel)
	if itemID == "" {
		return nil, fmt.Errorf("unexpected channel %q", channel)
	}
	if event.ItemID != "" && event.ItemID != itemID {
		return nil, fmt.Errorf("event for item %s published on %s", event.ItemID, channel)
	}

	return &Message{ItemID: itemID, Type: event.Type, Payload: []byte(payload)}, nil
}

// Close closes the subscriber
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	return s.client.Close()
}
