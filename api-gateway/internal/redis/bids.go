package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

// bidScript runs atomically on Redis server: the price check, the projection update
// and both ledger appends happen together or not at all.
const bidScript = `
-- KEYS[1]: item:{itemID}
-- KEYS[2]: item:{itemID}:bids
-- KEYS[3]: user:{userID}:bids
-- ARGV[1]: price the bid was validated against
-- ARGV[2]: new price
-- ARGV[3]: bidder ID
-- ARGV[4]: bidder email
-- ARGV[5]: bid JSON
-- ARGV[6]: updated_at
-- ARGV[7]: "1" when the bid meets the reserve
-- ARGV[8]: reserve price the bid was validated against ("" for none)
-- ARGV[9]: reserve_met the bid was validated against

local state = redis.call('HMGET', KEYS[1], 'current_price', 'reserve_price', 'reserve_met')
if not state[1] then
	return {-1, {}}
end

if state[1] ~= ARGV[1] or (state[2] or '') ~= ARGV[8] or (state[3] or '0') ~= ARGV[9] then
	return {0, {}}
end

redis.call('HSET', KEYS[1],
	'current_price', ARGV[2],
	'highest_bidder_id', ARGV[3],
	'highest_bidder_email', ARGV[4],
	'updated_at', ARGV[6])
redis.call('HINCRBY', KEYS[1], 'bid_count', 1)
if ARGV[7] == '1' then
	redis.call('HSET', KEYS[1], 'reserve_met', '1')
end

redis.call('LPUSH', KEYS[2], ARGV[5])
redis.call('LPUSH', KEYS[3], ARGV[5])

return {1, redis.call('HGETALL', KEYS[1])}
`

// CommitBid appends the bid to the item and user ledgers and moves the price,
// provided the stored price and reserve still equal the ones in commit.
func (c *Client) CommitBid(ctx context.Context, commit service.BidCommit) (*models.Item, error) {
	payload, err := json.Marshal(commit.Bid)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bid: %w", err)
	}

	if c.strategy == StrategyOptimistic {
		return c.commitOptimistic(ctx, commit, payload)
	}
	return c.commitLua(ctx, commit, payload)
}

func (c *Client) commitLua(ctx context.Context, commit service.BidCommit, payload []byte) (*models.Item, error) {
	bid := commit.Bid
	keys := []string{itemKey(bid.ItemID), itemBidsKey(bid.ItemID), userBidsKey(bid.UserID)}

	result, err := c.bidScript.Run(ctx, c.client, keys,
		auction.FormatCents(commit.BasePrice),
		auction.FormatCents(bid.Amount),
		bid.UserID,
		bid.UserEmail,
		string(payload),
		encodeTime(bid.Timestamp),
		encodeBool(commit.ReserveMet),
		auction.FormatReserve(commit.Reserve),
		encodeBool(commit.ReserveAlreadyMet),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to execute bid script: %w", err)
	}

	// Result is [status, item hash]
	resultArray, ok := result.([]interface{})
	if !ok || len(resultArray) != 2 {
		return nil, fmt.Errorf("unexpected script result format")
	}
	status, ok := resultArray[0].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected script status %T", resultArray[0])
	}

	switch status {
	case -1:
		return nil, auction.ErrNotFound
	case 0:
		return nil, auction.ErrConflict
	}

	fields, err := decodeFlatHash(resultArray[1])
	if err != nil {
		return nil, err
	}
	return decodeItem(fields)
}

func (c *Client) commitOptimistic(ctx context.Context, commit service.BidCommit, payload []byte) (*models.Item, error) {
	bid := commit.Bid
	key := itemKey(bid.ItemID)

	var updated *models.Item
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return auction.ErrNotFound
		}
		if fields[fieldCurrentPrice] != auction.FormatCents(commit.BasePrice) ||
			fields[fieldReservePrice] != auction.FormatReserve(commit.Reserve) ||
			(fields[fieldReserveMet] == "1") != commit.ReserveAlreadyMet {
			return auction.ErrConflict
		}

		item, err := decodeItem(fields)
		if err != nil {
			return err
		}
		item.CurrentPrice = bid.Amount
		item.HighestBidderID = bid.UserID
		item.HighestBidderEmail = bid.UserEmail
		item.BidCount++
		item.UpdatedAt = bid.Timestamp
		item.ReserveMet = item.ReserveMet || commit.ReserveMet

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldCurrentPrice, auction.FormatCents(item.CurrentPrice),
				fieldHighestBidderID, item.HighestBidderID,
				fieldHighestBidderEmail, item.HighestBidderEmail,
				fieldUpdatedAt, encodeTime(item.UpdatedAt),
				fieldReserveMet, encodeBool(item.ReserveMet),
			)
			pipe.HIncrBy(ctx, key, fieldBidCount, 1)
			pipe.LPush(ctx, itemBidsKey(bid.ItemID), payload)
			pipe.LPush(ctx, userBidsKey(bid.UserID), payload)
			return nil
		})
		if err != nil {
			return err
		}

		updated = item
		return nil
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return nil, auction.ErrConflict
	case errors.Is(err, auction.ErrNotFound), errors.Is(err, auction.ErrConflict):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to commit bid: %w", err)
	}
	return updated, nil
}

func (c *Client) ListBids(ctx context.Context, itemID string, limit int) ([]*models.Bid, error) {
	return c.listBids(ctx, itemBidsKey(itemID), limit)
}

func (c *Client) ListUserBids(ctx context.Context, userID string, limit int) ([]*models.Bid, error) {
	return c.listBids(ctx, userBidsKey(userID), limit)
}

// listBids reads a ledger list, which holds bid JSON newest first
func (c *Client) listBids(ctx context.Context, key string, limit int) ([]*models.Bid, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	raw, err := c.client.LRange(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	bids := make([]*models.Bid, 0, len(raw))
	for _, r := range raw {
		var b models.Bid
		if err := json.Unmarshal([]byte(r), &b); err != nil {
			return nil, fmt.Errorf("bad bid in %s: %w", key, err)
		}
		bids = append(bids, &b)
	}
	return bids, nil
}
