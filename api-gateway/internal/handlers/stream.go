package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/erin-a-z/Biddable/shared/models"
)

const heartbeatInterval = 15 * time.Second

// StreamItemEvents sends the item's current state followed by every change as Server-Sent Events.
// The subscription ends when the client disconnects.
func (h *Handler) StreamItemEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusServiceUnavailable, reasonUnavailable, "live updates are not available")
		return
	}

	itemID := mux.Vars(r)["id"]
	ctx := r.Context()

	events, err := h.events.Subscribe(ctx, itemID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	// read after subscribing so no change falls between the snapshot and the stream
	item, err := h.bidding.GetItem(ctx, itemID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rc, "snapshot", h.view(item)); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, rc, e.Type, eventView(h, e)); err != nil {
				slog.Debug("event stream closed", slog.String("item_id", itemID), slog.String("error", err.Error()))
				return
			}
		}
	}
}

type streamEvent struct {
	EventID   string      `json:"event_id"`
	Type      string      `json:"type"`
	ItemID    string      `json:"item_id"`
	Item      *ItemView   `json:"item,omitempty"`
	Bid       *models.Bid `json:"bid,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func eventView(h *Handler, e *models.ItemEvent) streamEvent {
	se := streamEvent{EventID: e.EventID, Type: e.Type, ItemID: e.ItemID, Bid: e.Bid, Timestamp: e.Timestamp}
	if e.Item != nil {
		v := h.view(e.Item)
		se.Item = &v
	}
	return se
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return rc.Flush()
}
