package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

func (c *Client) CreateItem(ctx context.Context, item *models.Item) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, itemKey(item.ID), encodeItem(item))
		pipe.ZAdd(ctx, itemsByCreation, redis.Z{
			Score:  float64(item.CreatedAt.UnixMilli()),
			Member: item.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store item %s: %w", item.ID, err)
	}
	return nil
}

func (c *Client) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	fields, err := c.client.HGetAll(ctx, itemKey(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	if len(fields) == 0 {
		return nil, auction.ErrNotFound
	}
	return decodeItem(fields)
}

// UpdateItem overwrites the editable fields only, so a bid committed in between is never lost.
func (c *Client) UpdateItem(ctx context.Context, item *models.Item, expected time.Time) error {
	key := itemKey(item.ID)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HMGet(ctx, key, fieldUpdatedAt, fieldReserveMet).Result()
		if err != nil {
			return err
		}
		updatedAt, ok := stored[0].(string)
		if !ok {
			return auction.ErrNotFound
		}
		if updatedAt != encodeTime(expected) {
			return auction.ErrConflict
		}

		fields := editableFields(item)
		if stored[1] == "1" {
			fields[fieldReserveMet] = "1"
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return auction.ErrConflict
	case errors.Is(err, auction.ErrNotFound), errors.Is(err, auction.ErrConflict):
		return err
	case err != nil:
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}
	return nil
}

// DeleteItem removes the item hash. Its bid lists are left in place.
func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	var del *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, itemKey(itemID))
		pipe.ZRem(ctx, itemsByCreation, itemID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	if del.Val() == 0 {
		return auction.ErrNotFound
	}
	return nil
}

// ListItems returns every stored item, newest first
func (c *Client) ListItems(ctx context.Context) ([]*models.Item, error) {
	ids, err := c.client.ZRevRange(ctx, itemsByCreation, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, itemKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	items := make([]*models.Item, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		item, err := decodeItem(fields)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
