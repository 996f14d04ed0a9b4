package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Strategies for committing a bid
const (
	// StrategyLua checks and writes inside one server-side script
	StrategyLua = "lua"
	// StrategyOptimistic uses WATCH/MULTI/EXEC and reports a lost race as a conflict
	StrategyOptimistic = "optimistic"
)

// Client wraps the Redis client with bidding-specific operations.
// It is the authoritative store for items and bid ledgers, and publishes item snapshots over Pub/Sub.
type Client struct {
	client   *redis.Client
	strategy string
	// Lua script for atomic compare-and-set bid operation
	bidScript *redis.Script
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int, strategy string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(rdb, strategy)
}

// New wraps an existing connection
func New(rdb *redis.Client, strategy string) (*Client, error) {
	switch strategy {
	case "":
		strategy = StrategyLua
	case StrategyLua, StrategyOptimistic:
	default:
		return nil, fmt.Errorf("unknown redis strategy %q", strategy)
	}

	return &Client{
		client:    rdb,
		strategy:  strategy,
		bidScript: redis.NewScript(bidScript),
	}, nil
}

// Redis returns the underlying connection so other components can share its pool
func (c *Client) Redis() *redis.Client {
	return c.client
}

func (c *Client) Strategy() string {
	return c.strategy
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

const itemsByCreation = "items:created"

func itemKey(itemID string) string {
	return "item:" + itemID
}

func itemBidsKey(itemID string) string {
	return "item:" + itemID + ":bids"
}

func userBidsKey(userID string) string {
	return "user:" + userID + ":bids"
}
