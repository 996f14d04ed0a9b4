// Package events names the channels and subjects the three services talk over.
package events

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream holding everything the archival worker persists
	StreamName = "AUCTION_EVENTS"

	bidSubjectPrefix          = "bid.events."
	itemSubjectPrefix         = "item.events."
	notificationSubjectPrefix = "notifications."

	// NotificationsWildcard matches every notification subject
	NotificationsWildcard = notificationSubjectPrefix + ">"

	itemChannelPrefix = "item_events:"

	// ItemChannelPattern is the Redis Pub/Sub pattern matching every item channel
	ItemChannelPattern = itemChannelPrefix + "*"
)

// StreamConfig is shared by the publisher and the consumer so whichever starts first creates the stream.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Bid and item events for archival",
		Subjects:    []string{bidSubjectPrefix + "*", itemSubjectPrefix + "*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
	}
}

// BidSubject example: "bid.events.4f0c..."
func BidSubject(itemID string) string {
	return bidSubjectPrefix + token(itemID)
}

func ItemSubject(itemID string) string {
	return itemSubjectPrefix + token(itemID)
}

func IsBidSubject(subject string) bool {
	return strings.HasPrefix(subject, bidSubjectPrefix)
}

func IsItemSubject(subject string) bool {
	return strings.HasPrefix(subject, itemSubjectPrefix)
}

// NotificationSubject example: "notifications.outbid.user-42"
func NotificationSubject(kind, userID string) string {
	return notificationSubjectPrefix + token(kind) + "." + token(userID)
}

// ItemChannel is the Redis Pub/Sub channel carrying snapshots of one item
func ItemChannel(itemID string) string {
	return itemChannelPrefix + itemID
}

// ItemIDFromChannel extracts item ID from channel name.
// Example: "item_events:item123" -> "item123"
func ItemIDFromChannel(channel string) string {
	if !strings.HasPrefix(channel, itemChannelPrefix) {
		return ""
	}
	return channel[len(itemChannelPrefix):]
}

// token makes s usable as a single NATS subject token
func token(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
