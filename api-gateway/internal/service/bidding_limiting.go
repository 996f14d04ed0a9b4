package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/api-gateway/internal/limiter"
)

var ErrLimitExceeded = errors.New("user exceeded the bid rate limit")

// BiddingLimiting is a wrapper over Bidding service
// which makes sure that a user places no more than Limiter.Limit bids per window. Every attempt counts,
// rejected ones included.
//
// If failed to check limits, the behavior depends on FailOpen flag. If set, current request is allowed.
// Otherwise, an error will be returned.
type BiddingLimiting struct {
	Bidding

	Limiter  *limiter.Limiter
	FailOpen bool
}

func (bl *BiddingLimiting) PlaceBid(ctx context.Context, itemID string, bidder Identity, amount decimal.Decimal) (*BidResult, error) {
	n, err := bl.Limiter.Increment(ctx, bidder.UserID)
	if err != nil {
		if !bl.FailOpen {
			return nil, fmt.Errorf("can't check if limit exceeded: %w", err)
		}

		slog.Error("can't check if limit exceeded", slog.Any("error", err))
	} else if n > bl.Limiter.Limit {
		return nil, ErrLimitExceeded
	}

	return bl.Bidding.PlaceBid(ctx, itemID, bidder, amount)
}
