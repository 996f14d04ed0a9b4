// Package nats receives per-user notifications published by the gateway on core NATS.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/erin-a-z/Biddable/shared/events"
	"github.com/erin-a-z/Biddable/shared/models"
)

const pendingMessages = 256

type Subscriber struct {
	sub  *nats.Subscription
	msgs chan *nats.Msg
}

// Subscribe starts buffering every notification subject
func Subscribe(conn *nats.Conn) (*Subscriber, error) {
	msgs := make(chan *nats.Msg, pendingMessages)
	sub, err := conn.ChanSubscribe(events.NotificationsWildcard, msgs)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", events.NotificationsWildcard, err)
	}
	return &Subscriber{sub: sub, msgs: msgs}, nil
}

// Message is a notification addressed to UserID
type Message struct {
	UserID  string
	Type    string
	Payload []byte
}

// Listen forwards notifications to out until ctx is done
func (s *Subscriber) Listen(ctx context.Context, out chan<- *Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-s.msgs:
			m, err := decode(msg.Data)
			if err != nil {
				slog.Warn("dropping notification", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
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

// decode routes by the payload's user id: subject tokens are sanitized and may differ from it
func decode(data []byte) (*Message, error) {
	var n models.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("failed to parse notification: %w", err)
	}
	if n.UserID == "" {
		return nil, fmt.Errorf("notification %s has no recipient", n.ID)
	}
	return &Message{UserID: n.UserID, Type: n.Type, Payload: data}, nil
}

func (s *Subscriber) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}
