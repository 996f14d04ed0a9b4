package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/erin-a-z/Biddable/shared/events"
	"github.com/erin-a-z/Biddable/shared/models"
)

// PublishItemEvent publishes an item snapshot to Redis Pub/Sub.
// This will be picked up by the broadcast service for real-time WebSocket updates
func (c *Client) PublishItemEvent(ctx context.Context, event *models.ItemEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return c.client.Publish(ctx, events.ItemChannel(event.ItemID), eventJSON).Err()
}

// Subscribe streams the events of one item until ctx is done
func (c *Client) Subscribe(ctx context.Context, itemID string) (<-chan *models.ItemEvent, error) {
	pubsub := c.client.Subscribe(ctx, events.ItemChannel(itemID))

	// Wait for confirmation that subscription is created
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to item %s: %w", itemID, err)
	}

	out := make(chan *models.ItemEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event models.ItemEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					slog.Warn("dropping malformed item event",
						slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}

				select {
				case out <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
