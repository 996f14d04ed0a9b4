package memory

import (
	"context"
	"sync"

	"github.com/erin-a-z/Biddable/shared/models"
)

const subscriberBuffer = 16

// Hub fans item events out to in-process subscribers, one topic per item.
// A subscriber that falls behind misses events rather than blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[chan *models.ItemEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[chan *models.ItemEvent]struct{})}
}

// Subscribe returns a channel that is closed once ctx is done
func (h *Hub) Subscribe(ctx context.Context, itemID string) <-chan *models.ItemEvent {
	ch := make(chan *models.ItemEvent, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.topics[itemID]
	if !ok {
		subs = make(map[chan *models.ItemEvent]struct{})
		h.topics[itemID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()

		h.mu.Lock()
		delete(h.topics[itemID], ch)
		if len(h.topics[itemID]) == 0 {
			delete(h.topics, itemID)
		}
		h.mu.Unlock()

		close(ch)
	}()

	return ch
}

func (h *Hub) Publish(itemID string, event *models.ItemEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.topics[itemID] {
		select {
		case ch <- event:
		default:
		}
	}
}
