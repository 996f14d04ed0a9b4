package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

// BiddingLogging logs every mutating call. Rule violations are logged at info, anything else at error.
type BiddingLogging struct {
	Bidding
}

func logResult(log *slog.Logger, err error, failure, success string) {
	switch {
	case err == nil:
		log.Debug(success)
	case auction.IsRejection(err) || errors.Is(err, ErrLimitExceeded):
		log.Info(failure, slog.String("reason", err.Error()))
	default:
		log.Error(failure, slog.Any("error", err))
	}
}

func (bl *BiddingLogging) PlaceBid(ctx context.Context, itemID string, bidder Identity, amount decimal.Decimal) (res *BidResult, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("item_id", itemID),
			slog.String("user_id", bidder.UserID),
			slog.String("amount", auction.FormatCents(amount)),
			slog.String("delay", time.Since(t0).String()),
		)
		if res != nil {
			log = log.With(slog.String("bid_id", res.Bid.ID), slog.Int("attempts", res.Attempts))
		}

		logResult(log, err, "bid rejected", "bid placed")
	}(time.Now())

	return bl.Bidding.PlaceBid(ctx, itemID, bidder, amount)
}

func (bl *BiddingLogging) CreateItem(ctx context.Context, seller Identity, draft models.ItemDraft) (item *models.Item, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("user_id", seller.UserID),
			slog.String("delay", time.Since(t0).String()),
		)
		if item != nil {
			log = log.With(slog.String("item_id", item.ID))
		}

		logResult(log, err, "failed to create item", "item created")
	}(time.Now())

	return bl.Bidding.CreateItem(ctx, seller, draft)
}

func (bl *BiddingLogging) EditItem(ctx context.Context, itemID string, requester Identity, patch models.ItemPatch) (item *models.Item, err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("item_id", itemID),
			slog.String("user_id", requester.UserID),
			slog.String("delay", time.Since(t0).String()),
		)

		logResult(log, err, "failed to edit item", "item edited")
	}(time.Now())

	return bl.Bidding.EditItem(ctx, itemID, requester, patch)
}

func (bl *BiddingLogging) DeleteItem(ctx context.Context, itemID string, requester Identity) (err error) {
	defer func(t0 time.Time) {
		log := slog.With(
			slog.String("item_id", itemID),
			slog.String("user_id", requester.UserID),
			slog.String("delay", time.Since(t0).String()),
		)

		logResult(log, err, "failed to delete item", "item deleted")
	}(time.Now())

	return bl.Bidding.DeleteItem(ctx, itemID, requester)
}
