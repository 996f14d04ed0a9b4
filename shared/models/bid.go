package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid represents a single accepted bid on an item. Bids are never updated or deleted.
type Bid struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	UserEmail string          `json:"user_email"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// BidEvent represents an event that gets published when a bid is accepted.
// It is sent to JetStream (subject bid.events.{itemID}) for archival to PostgreSQL.
type BidEvent struct {
	EventID       string          `json:"event_id"`
	ItemID        string          `json:"item_id"`
	BidID         string          `json:"bid_id"`
	UserID        string          `json:"user_id"`
	UserEmail     string          `json:"user_email"`
	Amount        decimal.Decimal `json:"amount"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewBidEvent(eventID string, bid *Bid, previous decimal.Decimal) *BidEvent {
	return &BidEvent{
		EventID:       eventID,
		ItemID:        bid.ItemID,
		BidID:         bid.ID,
		UserID:        bid.UserID,
		UserEmail:     bid.UserEmail,
		Amount:        bid.Amount,
		PreviousPrice: previous,
		Timestamp:     bid.Timestamp,
	}
}
