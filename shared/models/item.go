package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item represents an auction listing. CurrentPrice and HighestBidderID are a cached projection of the
// item's bid ledger and are only ever changed together with a ledger append.
type Item struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	Summary            string           `json:"summary"`
	ImageURL           string           `json:"image_url"`
	StartingPrice      decimal.Decimal  `json:"starting_price"`
	CurrentPrice       decimal.Decimal  `json:"current_price"`
	ReservePrice       *decimal.Decimal `json:"reserve_price,omitempty"`
	ReserveMet         bool             `json:"reserve_met"`
	HighestBidderID    string           `json:"highest_bidder_id,omitempty"`
	HighestBidderEmail string           `json:"highest_bidder_email,omitempty"`
	BidCount           int              `json:"bid_count"`
	SellerID           string           `json:"seller_id"`
	EndTime            time.Time        `json:"end_time"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ItemStatus constants
const (
	ItemStatusOpen   = "open"
	ItemStatusClosed = "closed"
)

// IsOpen reports whether the auction still accepts bids at now.
// There is no explicit close action: an item is closed as soon as now reaches EndTime.
func (i *Item) IsOpen(now time.Time) bool {
	return now.Before(i.EndTime)
}

func (i *Item) Status(now time.Time) string {
	if i.IsOpen(now) {
		return ItemStatusOpen
	}
	return ItemStatusClosed
}

// BasePrice is the price a new bid has to beat
func (i *Item) BasePrice() decimal.Decimal {
	if i.CurrentPrice.IsZero() {
		return i.StartingPrice
	}
	return i.CurrentPrice
}

func (i *Item) HasBids() bool {
	return i.HighestBidderID != ""
}

// Clone returns a deep copy so stores can hand out snapshots without sharing the reserve pointer.
func (i *Item) Clone() *Item {
	c := *i
	if i.ReservePrice != nil {
		r := *i.ReservePrice
		c.ReservePrice = &r
	}
	return &c
}

// ItemDraft is the seller-supplied content of a new listing
type ItemDraft struct {
	Title         string
	Description   string
	Summary       string
	ImageURL      string
	StartingPrice decimal.Decimal
	ReservePrice  *decimal.Decimal
	EndTime       time.Time
}

// ItemPatch carries the fields a seller may change while the auction is open. Nil means "unchanged".
type ItemPatch struct {
	Title        *string
	Description  *string
	Summary      *string
	ImageURL     *string
	EndTime      *time.Time
	ReservePrice *decimal.Decimal
}

func (p ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Summary == nil &&
		p.ImageURL == nil && p.EndTime == nil && p.ReservePrice == nil
}

// Apply copies the set fields onto item
func (p ItemPatch) Apply(item *Item) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Summary != nil {
		item.Summary = *p.Summary
	}
	if p.ImageURL != nil {
		item.ImageURL = *p.ImageURL
	}
	if p.EndTime != nil {
		item.EndTime = *p.EndTime
	}
	if p.ReservePrice != nil {
		r := *p.ReservePrice
		item.ReservePrice = &r
	}
}
