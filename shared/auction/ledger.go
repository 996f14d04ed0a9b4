package auction

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/erin-a-z/Biddable/shared/models"
)

// outranks reports whether a is a higher bid than b: larger amount first, then the earlier bid wins the tie.
func outranks(a, b *models.Bid) bool {
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c > 0
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ID < b.ID
}

// Highest returns the authoritative highest bid among bids, or nil when there are none.
func Highest(bids []*models.Bid) *models.Bid {
	var top *models.Bid
	for _, b := range bids {
		if top == nil || outranks(b, top) {
			top = b
		}
	}
	return top
}

// SortHistory orders bids newest first.
func SortHistory(bids []*models.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Timestamp.After(bids[j].Timestamp)
	})
}

// Ledger is an in-memory append-only record of bids, keyed by item and by bidder.
type Ledger struct {
	mu     sync.RWMutex
	byItem map[string][]*models.Bid
	byUser map[string][]*models.Bid
}

func NewLedger() *Ledger {
	return &Ledger{
		byItem: make(map[string][]*models.Bid),
		byUser: make(map[string][]*models.Bid),
	}
}

// Append records a copy of bid and returns its ID, assigning one if the bid has none.
func (l *Ledger) Append(bid *models.Bid) string {
	b := *bid
	if b.ID == "" {
		b.ID = uuid.New().String()
	}

	l.mu.Lock()
	l.byItem[b.ItemID] = append(l.byItem[b.ItemID], &b)
	l.byUser[b.UserID] = append(l.byUser[b.UserID], &b)
	l.mu.Unlock()

	return b.ID
}

func (l *Ledger) Highest(itemID string) *models.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()

	top := Highest(l.byItem[itemID])
	if top == nil {
		return nil
	}
	c := *top
	return &c
}

// History returns the item's bids newest first.
func (l *Ledger) History(itemID string) []*models.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return snapshot(l.byItem[itemID])
}

// ByUser returns the bids userID placed on any item, newest first.
func (l *Ledger) ByUser(userID string) []*models.Bid {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return snapshot(l.byUser[userID])
}

func snapshot(bids []*models.Bid) []*models.Bid {
	out := make([]*models.Bid, 0, len(bids))
	for i := len(bids) - 1; i >= 0; i-- {
		c := *bids[i]
		out = append(out, &c)
	}
	SortHistory(out)
	return out
}
