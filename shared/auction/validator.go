package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/shared/models"
)

type Options struct {
	// AllowSelfBid lets sellers bid on their own items
	AllowSelfBid bool
}

// Validate decides whether bidderID may bid amount on item at now. It returns nil when the bid is accepted
// and a *Rejection otherwise. Validate has no side effects; item must be a consistent snapshot.
func Validate(item *models.Item, amount decimal.Decimal, bidderID string, now time.Time, opts Options) error {
	if !item.IsOpen(now) {
		return Reject(ErrAuctionClosed, "auction ended at %s", item.EndTime.UTC().Format(time.RFC3339))
	}

	if !ValidPrice(amount) {
		return Reject(ErrInvalidPriceOrDate, "bid amount must be a positive amount in whole cents up to %s, got %s",
			FormatCents(MaxPrice), amount)
	}

	if !opts.AllowSelfBid && bidderID == item.SellerID {
		return Reject(ErrSelfBidForbidden, "sellers cannot bid on their own items")
	}

	base := item.BasePrice()
	minBid := MinimumBid(base)
	if amount.LessThan(minBid) {
		r := Reject(ErrBidTooLow, "bid must be at least $%s (current price $%s)", FormatCents(minBid), FormatCents(base))
		r.MinBid = minBid
		r.CurrentPrice = base
		return r
	}

	return nil
}

// ReserveCrossed reports whether moving the price from previous to amount reaches the reserve for the first time.
func ReserveCrossed(reserve *decimal.Decimal, previous, amount decimal.Decimal) bool {
	if reserve == nil {
		return false
	}
	return previous.LessThan(*reserve) && reserve.LessThanOrEqual(amount)
}
