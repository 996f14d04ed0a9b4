package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/shared/models"
)

// Identity is the authenticated caller, as forwarded by the auth proxy
type Identity struct {
	UserID string
	Email  string
}

// BidCommit is everything a store needs to append a bid and move the item's price in one atomic step.
type BidCommit struct {
	Bid *models.Bid
	// BasePrice is the price the bid was validated against. The commit fails with auction.ErrConflict
	// if the stored price no longer equals it.
	BasePrice decimal.Decimal
	// ReserveMet is set when this bid is the first to reach the reserve
	ReserveMet bool
	// Reserve and ReserveAlreadyMet are the reserve state ReserveMet was decided on. The commit fails with
	// auction.ErrConflict if an edit changed them in between.
	Reserve           *decimal.Decimal
	ReserveAlreadyMet bool
}

// Store persists items and their bid ledgers.
// Missing items are reported with auction.ErrNotFound and lost races with auction.ErrConflict.
type Store interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	// UpdateItem writes the seller-editable fields of item if the stored UpdatedAt still equals expected
	UpdateItem(ctx context.Context, item *models.Item, expected time.Time) error
	DeleteItem(ctx context.Context, itemID string) error
	ListItems(ctx context.Context) ([]*models.Item, error)

	// CommitBid appends the bid to the ledger and updates the item projection, returning the new snapshot
	CommitBid(ctx context.Context, commit BidCommit) (*models.Item, error)
	// ListBids returns the item's bids newest first. limit <= 0 means all of them.
	ListBids(ctx context.Context, itemID string, limit int) ([]*models.Bid, error)
	ListUserBids(ctx context.Context, userID string, limit int) ([]*models.Bid, error)
}

// EventPublisher fans item snapshots out to whoever is watching
type EventPublisher interface {
	PublishItemEvent(ctx context.Context, event *models.ItemEvent) error
}

// Subscriber delivers the item events published for one item until ctx is done
type Subscriber interface {
	Subscribe(ctx context.Context, itemID string) (<-chan *models.ItemEvent, error)
}

type Archiver interface {
	PublishBidEvent(ctx context.Context, event *models.BidEvent) error
}

type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// BidResult describes an accepted bid and what it caused
type BidResult struct {
	Bid           *models.Bid
	Item          *models.Item
	PreviousPrice decimal.Decimal
	// Outbid is set when the bid displaced a different bidder
	Outbid *models.Notification
	// ReserveMet is set when the bid was the first to reach the reserve price
	ReserveMet *models.Notification
	Attempts   int
}

// Bidding is the gateway's business API
type Bidding interface {
	PlaceBid(ctx context.Context, itemID string, bidder Identity, amount decimal.Decimal) (*BidResult, error)
	CreateItem(ctx context.Context, seller Identity, draft models.ItemDraft) (*models.Item, error)
	EditItem(ctx context.Context, itemID string, requester Identity, patch models.ItemPatch) (*models.Item, error)
	DeleteItem(ctx context.Context, itemID string, requester Identity) error
	GetItem(ctx context.Context, itemID string) (*models.Item, error)
	ListOpenItems(ctx context.Context) ([]*models.Item, error)
	GetBidHistory(ctx context.Context, itemID string, limit int) ([]*models.Bid, error)
	GetUserBids(ctx context.Context, userID string, limit int) ([]*models.Bid, error)
}
