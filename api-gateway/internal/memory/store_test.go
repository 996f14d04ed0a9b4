package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func newItem(id string) *models.Item {
	return &models.Item{
		ID:            id,
		Title:         "Desk",
		StartingPrice: decimal.RequireFromString("10.00"),
		CurrentPrice:  decimal.RequireFromString("10.00"),
		SellerID:      "seller",
		EndTime:       now.Add(time.Hour),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func commit(itemID, user, amount, base string) service.BidCommit {
	return service.BidCommit{
		Bid: &models.Bid{
			ID:        user + "-" + amount,
			ItemID:    itemID,
			UserID:    user,
			Amount:    decimal.RequireFromString(amount),
			Timestamp: now,
		},
		BasePrice: decimal.RequireFromString(base),
	}
}

func TestCommitBid(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateItem(ctx, newItem("i1")))

	item, err := s.CommitBid(ctx, commit("i1", "alice", "11.00", "10"))
	require.NoError(t, err)
	assert.True(t, item.CurrentPrice.Equal(decimal.RequireFromString("11")))
	assert.Equal(t, "alice", item.HighestBidderID)
	assert.Equal(t, 1, item.BidCount)

	_, err = s.CommitBid(ctx, commit("i1", "bob", "12.00", "10.00"))
	assert.ErrorIs(t, err, auction.ErrConflict)

	_, err = s.CommitBid(ctx, commit("nope", "bob", "12.00", "10.00"))
	assert.ErrorIs(t, err, auction.ErrNotFound)

	bids, err := s.ListBids(ctx, "i1", 0)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestCommitBidReserveMet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateItem(ctx, newItem("i1")))

	c := commit("i1", "alice", "11.00", "10.00")
	c.ReserveMet = true
	item, err := s.CommitBid(ctx, c)
	require.NoError(t, err)
	assert.True(t, item.ReserveMet)
}

func TestCommitBidChecksReserve(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	item := newItem("i1")
	reserve := decimal.RequireFromString("30.00")
	item.ReservePrice = &reserve
	require.NoError(t, s.CreateItem(ctx, item))

	// validated before the reserve was set
	_, err := s.CommitBid(ctx, commit("i1", "alice", "11.00", "10.00"))
	assert.ErrorIs(t, err, auction.ErrConflict)

	c := commit("i1", "alice", "11.00", "10.00")
	c.Reserve = &reserve
	c.ReserveAlreadyMet = true
	_, err = s.CommitBid(ctx, c)
	assert.ErrorIs(t, err, auction.ErrConflict)

	c.ReserveAlreadyMet = false
	_, err = s.CommitBid(ctx, c)
	require.NoError(t, err)
}

func TestUpdateItemIsConditional(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateItem(ctx, newItem("i1")))

	edit := newItem("i1")
	edit.Title = "Standing desk"
	edit.CurrentPrice = decimal.RequireFromString("999.00")
	edit.UpdatedAt = now.Add(time.Minute)

	require.NoError(t, s.UpdateItem(ctx, edit, now))

	stored, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Standing desk", stored.Title)
	assert.True(t, stored.CurrentPrice.Equal(decimal.RequireFromString("10.00")), "price is not editable")

	assert.ErrorIs(t, s.UpdateItem(ctx, edit, now), auction.ErrConflict)
	assert.ErrorIs(t, s.UpdateItem(ctx, newItem("nope"), now), auction.ErrNotFound)
}

func TestGetItemReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateItem(ctx, newItem("i1")))

	item, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	item.Title = "changed"

	again, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "Desk", again.Title)
}

func TestDeleteKeepsBids(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateItem(ctx, newItem("i1")))
	_, err := s.CommitBid(ctx, commit("i1", "alice", "11.00", "10.00"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteItem(ctx, "i1"))
	assert.ErrorIs(t, s.DeleteItem(ctx, "i1"), auction.ErrNotFound)

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	bids, err := s.ListUserBids(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func subscribers(h *Hub, itemID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[itemID])
}

func TestHubUnsubscribesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStore()

	events, err := s.Subscribe(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, 1, subscribers(s.hub, "i1"))

	require.NoError(t, s.PublishItemEvent(ctx, &models.ItemEvent{ItemID: "i1", Type: models.ItemEventUpdated}))
	require.NoError(t, s.PublishItemEvent(ctx, &models.ItemEvent{ItemID: "other", Type: models.ItemEventUpdated}))

	e := <-events
	assert.Equal(t, "i1", e.ItemID)

	cancel()
	_, open := <-events
	assert.False(t, open)
	assert.Equal(t, 0, subscribers(s.hub, "i1"))
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := h.Subscribe(ctx, "i1")
	for i := 0; i < subscriberBuffer+5; i++ {
		h.Publish("i1", &models.ItemEvent{ItemID: "i1"})
	}
	assert.Len(t, events, subscriberBuffer)
}
