package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/erin-a-z/Biddable/shared/models"
)

// PostgresClient mirrors items and their bid ledger. Redis stays authoritative; rows here only move forward.
type PostgresClient struct {
	db *sql.DB
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connStr string) (*PostgresClient, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return New(db), nil
}

func New(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

// Bids have no foreign key to items: deleting a listing keeps its ledger.
const schema = `
CREATE TABLE IF NOT EXISTS items (
	id                   TEXT PRIMARY KEY,
	title                TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	summary              TEXT NOT NULL DEFAULT '',
	image_url            TEXT NOT NULL DEFAULT '',
	seller_id            TEXT NOT NULL,
	starting_price       NUMERIC(12, 2) NOT NULL,
	current_price        NUMERIC(12, 2) NOT NULL,
	reserve_price        NUMERIC(12, 2),
	reserve_met          BOOLEAN NOT NULL DEFAULT FALSE,
	highest_bidder_id    TEXT NOT NULL DEFAULT '',
	highest_bidder_email TEXT NOT NULL DEFAULT '',
	bid_count            INTEGER NOT NULL DEFAULT 0,
	end_time             TIMESTAMPTZ NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	archived_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bids (
	id          TEXT PRIMARY KEY,
	item_id     TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	user_email  TEXT NOT NULL DEFAULT '',
	amount      NUMERIC(12, 2) NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bids_item_id ON bids(item_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_bids_user_id ON bids(user_id, timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_items_end_time ON items(end_time);
`

// InitSchema creates the necessary database tables
func (c *PostgresClient) InitSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const (
	insertBidQuery = `
		INSERT INTO bids (id, item_id, user_id, user_email, amount, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	// SET expressions see the old row, so the CASEs compare against the previous price
	raiseItemPriceQuery = `
		UPDATE items
		SET current_price        = GREATEST(current_price, $2),
		    highest_bidder_id    = CASE WHEN $2 > current_price THEN $3 ELSE highest_bidder_id END,
		    highest_bidder_email = CASE WHEN $2 > current_price THEN $4 ELSE highest_bidder_email END,
		    reserve_met          = reserve_met OR (reserve_price IS NOT NULL AND $2 >= reserve_price),
		    bid_count            = (SELECT count(*) FROM bids WHERE item_id = $1),
		    archived_at          = now()
		WHERE id = $1`
)

// ArchiveBid stores a bid and raises the item projection in one transaction.
// A redelivered event is a no-op.
func (c *PostgresClient) ArchiveBid(ctx context.Context, event *models.BidEvent) error {
	return WithTx(ctx, c.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertBidQuery,
			event.BidID,
			event.ItemID,
			event.UserID,
			event.UserEmail,
			event.Amount,
			event.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("failed to insert bid: %w", err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if inserted == 0 {
			return nil
		}

		// No row is updated when the item was deleted or not archived yet; the bid is kept either way
		if _, err := tx.ExecContext(ctx, raiseItemPriceQuery,
			event.ItemID,
			event.Amount,
			event.UserID,
			event.UserEmail,
		); err != nil {
			return fmt.Errorf("failed to update item %s: %w", event.ItemID, err)
		}
		return nil
	})
}

const upsertItemQuery = `
	INSERT INTO items (
		id, title, description, summary, image_url, seller_id,
		starting_price, current_price, reserve_price, reserve_met,
		highest_bidder_id, highest_bidder_email, bid_count,
		end_time, created_at, updated_at
	)
	SELECT $1, $2, $3, $4, $5, $6, $7::numeric,
	       CASE WHEN top.amount > $8::numeric THEN top.amount ELSE $8::numeric END,
	       $9::numeric,
	       $10::boolean OR COALESCE($9::numeric <= top.amount, FALSE),
	       CASE WHEN top.amount > $8::numeric THEN top.user_id ELSE $11 END,
	       CASE WHEN top.amount > $8::numeric THEN top.user_email ELSE $12 END,
	       GREATEST($13::integer, (SELECT count(*) FROM bids WHERE item_id = $1)),
	       $14, $15, $16
	FROM (
		SELECT b.user_id, b.user_email, b.amount
		FROM (SELECT 1) AS seed
		LEFT JOIN LATERAL (
			SELECT user_id, user_email, amount FROM bids WHERE item_id = $1
			ORDER BY amount DESC, timestamp ASC
			LIMIT 1
		) AS b ON TRUE
	) AS top
	ON CONFLICT (id) DO UPDATE
	SET title                = EXCLUDED.title,
	    description          = EXCLUDED.description,
	    summary              = EXCLUDED.summary,
	    image_url            = EXCLUDED.image_url,
	    reserve_price        = EXCLUDED.reserve_price,
	    end_time             = EXCLUDED.end_time,
	    updated_at           = EXCLUDED.updated_at,
	    reserve_met          = items.reserve_met OR EXCLUDED.reserve_met,
	    current_price        = GREATEST(items.current_price, EXCLUDED.current_price),
	    highest_bidder_id    = CASE WHEN EXCLUDED.current_price > items.current_price
	                                THEN EXCLUDED.highest_bidder_id ELSE items.highest_bidder_id END,
	    highest_bidder_email = CASE WHEN EXCLUDED.current_price > items.current_price
	                                THEN EXCLUDED.highest_bidder_email ELSE items.highest_bidder_email END,
	    bid_count            = GREATEST(items.bid_count, EXCLUDED.bid_count),
	    archived_at          = now()
	WHERE items.updated_at <= EXCLUDED.updated_at`

// UpsertItem stores a created or edited item. Snapshots older than the stored one are ignored, and the
// bid projection never moves backwards. Bids archived before the item itself are folded in on insert.
func (c *PostgresClient) UpsertItem(ctx context.Context, item *models.Item) error {
	_, err := c.db.ExecContext(ctx, upsertItemQuery,
		item.ID,
		item.Title,
		item.Description,
		item.Summary,
		item.ImageURL,
		item.SellerID,
		item.StartingPrice,
		item.BasePrice(),
		item.ReservePrice,
		item.ReserveMet,
		item.HighestBidderID,
		item.HighestBidderEmail,
		item.BidCount,
		item.EndTime,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}
	return nil
}

// DeleteItem removes the listing; its bids stay archived
func (c *PostgresClient) DeleteItem(ctx context.Context, itemID string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	return nil
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	return c.db.Close()
}
