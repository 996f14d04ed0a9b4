package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemEventType constants
const (
	ItemEventCreated   = "item.created"
	ItemEventUpdated   = "item.updated"
	ItemEventDeleted   = "item.deleted"
	ItemEventBidPlaced = "bid.placed"
)

// ItemEvent carries the latest snapshot of an item to realtime subscribers and to the archive.
// Item is nil for item.deleted.
type ItemEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	ItemID    string    `json:"item_id"`
	Item      *Item     `json:"item,omitempty"`
	Bid       *Bid      `json:"bid,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationType constants
const (
	NotificationOutbid     = "outbid"
	NotificationReserveMet = "reserve_met"
)

// Notification is addressed to a single user: the outbid bidder or the seller whose reserve was met.
type Notification struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	ItemID    string          `json:"item_id"`
	ItemTitle string          `json:"item_title"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
