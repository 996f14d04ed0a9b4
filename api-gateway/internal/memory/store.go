// Package memory is a single-process Store used for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

type Store struct {
	mu    sync.RWMutex
	items map[string]*models.Item
	bids  *auction.Ledger

	hub *Hub
}

func NewStore() *Store {
	return &Store{
		items: make(map[string]*models.Item),
		bids:  auction.NewLedger(),
		hub:   NewHub(),
	}
}

func (s *Store) CreateItem(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = item.Clone()
	return nil
}

func (s *Store) GetItem(_ context.Context, itemID string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, auction.ErrNotFound
	}
	return item.Clone(), nil
}

func (s *Store) UpdateItem(_ context.Context, item *models.Item, expected time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.items[item.ID]
	if !ok {
		return auction.ErrNotFound
	}
	if !stored.UpdatedAt.Equal(expected) {
		return auction.ErrConflict
	}

	next := stored.Clone()
	models.ItemPatch{
		Title:        &item.Title,
		Description:  &item.Description,
		Summary:      &item.Summary,
		ImageURL:     &item.ImageURL,
		EndTime:      &item.EndTime,
		ReservePrice: item.ReservePrice,
	}.Apply(next)
	next.ReserveMet = next.ReserveMet || item.ReserveMet
	next.UpdatedAt = item.UpdatedAt

	s.items[item.ID] = next
	return nil
}

func (s *Store) DeleteItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[itemID]; !ok {
		return auction.ErrNotFound
	}
	delete(s.items, itemID)
	return nil
}

func (s *Store) ListItems(_ context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]*models.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it.Clone())
	}
	return items, nil
}

// CommitBid holds the write lock across the price and reserve checks and the ledger append.
func (s *Store) CommitBid(_ context.Context, commit service.BidCommit) (*models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid := commit.Bid
	item, ok := s.items[bid.ItemID]
	if !ok {
		return nil, auction.ErrNotFound
	}
	if auction.FormatCents(item.BasePrice()) != auction.FormatCents(commit.BasePrice) ||
		auction.FormatReserve(item.ReservePrice) != auction.FormatReserve(commit.Reserve) ||
		item.ReserveMet != commit.ReserveAlreadyMet {
		return nil, auction.ErrConflict
	}

	bid.ID = s.bids.Append(bid)

	item.CurrentPrice = bid.Amount
	item.HighestBidderID = bid.UserID
	item.HighestBidderEmail = bid.UserEmail
	item.BidCount++
	item.UpdatedAt = bid.Timestamp
	if commit.ReserveMet {
		item.ReserveMet = true
	}

	return item.Clone(), nil
}

func (s *Store) ListBids(_ context.Context, itemID string, limit int) ([]*models.Bid, error) {
	return truncate(s.bids.History(itemID), limit), nil
}

func (s *Store) ListUserBids(_ context.Context, userID string, limit int) ([]*models.Bid, error) {
	return truncate(s.bids.ByUser(userID), limit), nil
}

func (s *Store) PublishItemEvent(_ context.Context, event *models.ItemEvent) error {
	s.hub.Publish(event.ItemID, event)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, itemID string) (<-chan *models.ItemEvent, error) {
	return s.hub.Subscribe(ctx, itemID), nil
}

func truncate(bids []*models.Bid, limit int) []*models.Bid {
	if limit > 0 && len(bids) > limit {
		return bids[:limit]
	}
	return bids
}
