package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

const (
	DefaultMaxBidAttempts = 3

	publishTimeout = 5 * time.Second
)

type Config struct {
	// MaxBidAttempts bounds how often a bid is re-validated after losing a race
	MaxBidAttempts int
	AllowSelfBid   bool
}

// Dependencies wires the service to its adapters. Only Store is required.
type Dependencies struct {
	Store    Store
	Events   []EventPublisher
	Archive  Archiver
	Notifier Notifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// BiddingService handles the business logic for bidding operations
type BiddingService struct {
	store    Store
	events   []EventPublisher
	archive  Archiver
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	maxAttempts int
	rules       auction.Options
}

func NewBiddingService(deps Dependencies, cfg Config) *BiddingService {
	s := &BiddingService{
		store:       deps.Store,
		events:      deps.Events,
		archive:     deps.Archive,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		now:         deps.Now,
		maxAttempts: cfg.MaxBidAttempts,
		rules:       auction.Options{AllowSelfBid: cfg.AllowSelfBid},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxBidAttempts
	}
	return s
}

// PlaceBid handles the complete bid placement workflow:
// 1. Read the item and its ledger
// 2. Validate the bid against that snapshot
// 3. Commit it only if neither the price nor the reserve has moved, re-reading and re-validating after a lost race
// 4. Publish the new snapshot, archive the bid and notify the outbid bidder and the seller
func (s *BiddingService) PlaceBid(ctx context.Context, itemID string, bidder Identity, amount decimal.Decimal) (*BidResult, error) {
	if bidder.UserID == "" {
		return nil, auction.Reject(auction.ErrForbidden, "bidder identity is required")
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		res, err := s.tryPlaceBid(ctx, itemID, bidder, amount)
		if errors.Is(err, auction.ErrConflict) {
			s.logger.Debug("bid lost a race, retrying",
				slog.String("item_id", itemID), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}

		res.Attempts = attempt
		s.publishBid(ctx, res)
		return res, nil
	}

	return nil, fmt.Errorf("bid on item %s not placed after %d attempts: %w", itemID, s.maxAttempts, auction.ErrConflict)
}

func (s *BiddingService) tryPlaceBid(ctx context.Context, itemID string, bidder Identity, amount decimal.Decimal) (*BidResult, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	bids, err := s.store.ListBids(ctx, itemID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read bid ledger: %w", err)
	}
	previousTop := auction.Highest(bids)

	now := s.now()
	if err := auction.Validate(item, amount, bidder.UserID, now, s.rules); err != nil {
		return nil, err
	}

	base := item.BasePrice()
	bid := &models.Bid{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		UserID:    bidder.UserID,
		UserEmail: bidder.Email,
		Amount:    amount,
		Timestamp: now,
	}
	reserveMet := !item.ReserveMet && auction.ReserveCrossed(item.ReservePrice, base, amount)

	updated, err := s.store.CommitBid(ctx, BidCommit{
		Bid:               bid,
		BasePrice:         base,
		ReserveMet:        reserveMet,
		Reserve:           item.ReservePrice,
		ReserveAlreadyMet: item.ReserveMet,
	})
	if err != nil {
		return nil, err
	}

	res := &BidResult{
		Bid:           bid,
		Item:          updated,
		PreviousPrice: base,
	}
	if previousTop != nil && previousTop.UserID != bidder.UserID {
		res.Outbid = s.notification(models.NotificationOutbid, previousTop.UserID, updated, bid)
	}
	if reserveMet {
		res.ReserveMet = s.notification(models.NotificationReserveMet, item.SellerID, updated, bid)
	}
	return res, nil
}

func (s *BiddingService) notification(kind, userID string, item *models.Item, bid *models.Bid) *models.Notification {
	return &models.Notification{
		ID:        uuid.New().String(),
		Type:      kind,
		UserID:    userID,
		ItemID:    item.ID,
		ItemTitle: item.Title,
		Amount:    bid.Amount,
		Timestamp: bid.Timestamp,
	}
}

// publishBid runs after the commit. Failures are logged and never undo an accepted bid.
func (s *BiddingService) publishBid(ctx context.Context, res *BidResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	s.publishItem(ctx, models.ItemEventBidPlaced, res.Item.ID, res.Item, res.Bid)

	if s.archive != nil {
		event := models.NewBidEvent(uuid.New().String(), res.Bid, res.PreviousPrice)
		if err := s.archive.PublishBidEvent(ctx, event); err != nil {
			s.logger.Warn("failed to archive bid",
				slog.String("bid_id", res.Bid.ID), slog.String("error", err.Error()))
		}
	}

	for _, n := range []*models.Notification{res.Outbid, res.ReserveMet} {
		if n == nil || s.notifier == nil {
			continue
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Warn("failed to send notification",
				slog.String("type", n.Type), slog.String("user_id", n.UserID), slog.String("error", err.Error()))
		}
	}
}

func (s *BiddingService) publishItem(ctx context.Context, kind, itemID string, item *models.Item, bid *models.Bid) {
	event := &models.ItemEvent{
		EventID:   uuid.New().String(),
		Type:      kind,
		ItemID:    itemID,
		Item:      item,
		Bid:       bid,
		Timestamp: s.now(),
	}
	for _, p := range s.events {
		if err := p.PublishItemEvent(ctx, event); err != nil {
			s.logger.Warn("failed to publish item event",
				slog.String("type", kind), slog.String("item_id", itemID), slog.String("error", err.Error()))
		}
	}
}

func (s *BiddingService) publishItemDetached(ctx context.Context, kind, itemID string, item *models.Item) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	s.publishItem(ctx, kind, itemID, item, nil)
}

// CreateItem lists a new item for seller. CurrentPrice starts at the starting price.
func (s *BiddingService) CreateItem(ctx context.Context, seller Identity, draft models.ItemDraft) (*models.Item, error) {
	if seller.UserID == "" {
		return nil, auction.Reject(auction.ErrForbidden, "seller identity is required")
	}

	now := s.now()
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return nil, auction.Reject(auction.ErrInvalidItem, "title is required")
	}
	if err := checkPrice("starting price", draft.StartingPrice); err != nil {
		return nil, err
	}
	if err := checkEndTime(draft.EndTime, now); err != nil {
		return nil, err
	}
	if err := checkReserve(draft.ReservePrice, draft.StartingPrice); err != nil {
		return nil, err
	}

	item := &models.Item{
		ID:            uuid.New().String(),
		Title:         draft.Title,
		Description:   draft.Description,
		Summary:       draft.Summary,
		ImageURL:      draft.ImageURL,
		StartingPrice: draft.StartingPrice,
		CurrentPrice:  draft.StartingPrice,
		ReservePrice:  draft.ReservePrice,
		SellerID:      seller.UserID,
		EndTime:       draft.EndTime.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.publishItemDetached(ctx, models.ItemEventCreated, item.ID, item)
	return item, nil
}

// EditItem applies patch on behalf of the seller while the auction is open.
// Price, seller and bid state are not part of models.ItemPatch and cannot be changed.
func (s *BiddingService) EditItem(ctx context.Context, itemID string, requester Identity, patch models.ItemPatch) (*models.Item, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		item, err := s.tryEditItem(ctx, itemID, requester, patch)
		if errors.Is(err, auction.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !patch.IsEmpty() {
			s.publishItemDetached(ctx, models.ItemEventUpdated, item.ID, item)
		}
		return item, nil
	}
	return nil, fmt.Errorf("edit of item %s not applied after %d attempts: %w", itemID, s.maxAttempts, auction.ErrConflict)
}

func (s *BiddingService) tryEditItem(ctx context.Context, itemID string, requester Identity, patch models.ItemPatch) (*models.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if requester.UserID == "" || requester.UserID != item.SellerID {
		return nil, auction.Reject(auction.ErrForbidden, "only the seller may edit this item")
	}

	now := s.now()
	if !item.IsOpen(now) {
		return nil, auction.Reject(auction.ErrAuctionClosed, "closed auctions cannot be edited")
	}
	if patch.IsEmpty() {
		return item, nil
	}

	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return nil, auction.Reject(auction.ErrInvalidItem, "title cannot be empty")
		}
		patch.Title = &t
	}
	if patch.EndTime != nil {
		if err := checkEndTime(*patch.EndTime, now); err != nil {
			return nil, err
		}
		end := patch.EndTime.UTC()
		patch.EndTime = &end
	}
	if patch.ReservePrice != nil {
		if err := checkReserve(patch.ReservePrice, item.StartingPrice); err != nil {
			return nil, err
		}
	}

	expected := item.UpdatedAt
	updated := item.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = now

	// A reserve lowered below a price already reached counts as met from now on.
	if updated.ReservePrice != nil && !updated.ReserveMet && updated.HasBids() &&
		updated.ReservePrice.LessThanOrEqual(updated.CurrentPrice) {
		updated.ReserveMet = true
	}

	if err := s.store.UpdateItem(ctx, updated, expected); err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteItem removes the listing. Its bids stay in the ledger and remain queryable.
func (s *BiddingService) DeleteItem(ctx context.Context, itemID string, requester Identity) error {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if requester.UserID == "" || requester.UserID != item.SellerID {
		return auction.Reject(auction.ErrForbidden, "only the seller may delete this item")
	}

	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return err
	}

	s.publishItemDetached(ctx, models.ItemEventDeleted, itemID, nil)
	return nil
}

func (s *BiddingService) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	return s.store.GetItem(ctx, itemID)
}

// ListOpenItems returns the items still accepting bids, newest listing first
func (s *BiddingService) ListOpenItems(ctx context.Context) ([]*models.Item, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	now := s.now()
	open := make([]*models.Item, 0, len(items))
	for _, it := range items {
		if it.IsOpen(now) {
			open = append(open, it)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].CreatedAt.After(open[j].CreatedAt)
	})
	return open, nil
}

func (s *BiddingService) GetBidHistory(ctx context.Context, itemID string, limit int) ([]*models.Bid, error) {
	bids, err := s.store.ListBids(ctx, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read bid history: %w", err)
	}
	auction.SortHistory(bids)
	return bids, nil
}

func (s *BiddingService) GetUserBids(ctx context.Context, userID string, limit int) ([]*models.Bid, error) {
	bids, err := s.store.ListUserBids(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read bids of user: %w", err)
	}
	auction.SortHistory(bids)
	return bids, nil
}

func checkPrice(name string, p decimal.Decimal) error {
	if !auction.ValidPrice(p) {
		return auction.Reject(auction.ErrInvalidPriceOrDate, "%s must be a positive amount in whole cents up to %s",
			name, auction.FormatCents(auction.MaxPrice))
	}
	return nil
}

func checkEndTime(end, now time.Time) error {
	if !end.After(now) {
		return auction.Reject(auction.ErrInvalidPriceOrDate, "end time must be in the future")
	}
	return nil
}

func checkReserve(reserve *decimal.Decimal, starting decimal.Decimal) error {
	if reserve == nil {
		return nil
	}
	if err := checkPrice("reserve price", *reserve); err != nil {
		return err
	}
	if reserve.LessThan(starting) {
		return auction.Reject(auction.ErrInvalidPriceOrDate, "reserve price cannot be below the starting price")
	}
	return nil
}
