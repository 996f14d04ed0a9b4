package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/erin-a-z/Biddable/api-gateway/internal/content"
	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500

	// recentBids is how many bids come with a single item
	recentBids = 10
)

// Suggester drafts listing content from a photo
type Suggester interface {
	Suggest(ctx context.Context, imageURL, title string) content.Suggestion
}

// Handler contains HTTP request handlers
type Handler struct {
	bidding  service.Bidding
	events   service.Subscriber
	content  Suggester
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler creates a new HTTP handler. events and suggester may be nil, which disables
// the event stream and content suggestions.
func NewHandler(bidding service.Bidding, events service.Subscriber, suggester Suggester) *Handler {
	return &Handler{
		bidding:  bidding,
		events:   events,
		content:  suggester,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes() http.Handler {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	api.Handle("/items", requireIdentity(http.HandlerFunc(h.CreateItem))).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}", h.GetItem).Methods(http.MethodGet)
	api.Handle("/items/{id}", requireIdentity(http.HandlerFunc(h.EditItem))).Methods(http.MethodPatch)
	api.Handle("/items/{id}", requireIdentity(http.HandlerFunc(h.DeleteItem))).Methods(http.MethodDelete)
	api.HandleFunc("/items/{id}/bids", h.GetBidHistory).Methods(http.MethodGet)
	api.Handle("/items/{id}/bids", requireIdentity(http.HandlerFunc(h.PlaceBid))).Methods(http.MethodPost)
	api.HandleFunc("/items/{id}/events", h.StreamItemEvents).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/bids", h.GetUserBids).Methods(http.MethodGet)
	api.Handle("/content/suggestions", requireIdentity(http.HandlerFunc(h.SuggestContent))).Methods(http.MethodPost)

	// Middleware
	return corsMiddleware(Log(Recovery(router)))
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api-gateway",
		"time":    h.now().Format(time.RFC3339),
	})
}

// ItemView is an item as the API presents it, with its derived state
type ItemView struct {
	*models.Item
	Status     string        `json:"status"`
	MinNextBid string        `json:"min_next_bid"`
	RecentBids []*models.Bid `json:"recent_bids,omitempty"`
}

func (h *Handler) view(item *models.Item) ItemView {
	return ItemView{
		Item:       item,
		Status:     item.Status(h.now()),
		MinNextBid: auction.FormatCents(auction.MinimumBid(item.BasePrice())),
	}
}

// ListItems returns open auctions, newest first
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.bidding.ListOpenItems(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, h.view(it))
	}
	respondJSON(w, http.StatusOK, views)
}

// GetItem returns an item with its latest bids
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	var (
		item *models.Item
		bids []*models.Bid
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		item, err = h.bidding.GetItem(ctx, itemID)
		return err
	})
	g.Go(func() (err error) {
		bids, err = h.bidding.GetBidHistory(ctx, itemID, recentBids)
		return err
	})
	if err := g.Wait(); err != nil {
		respondServiceError(w, r, err)
		return
	}

	v := h.view(item)
	v.RecentBids = bids
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := pageSize(w, r)
	if !ok {
		return
	}

	bids, err := h.bidding.GetBidHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

func (h *Handler) GetUserBids(w http.ResponseWriter, r *http.Request) {
	limit, ok := pageSize(w, r)
	if !ok {
		return
	}

	bids, err := h.bidding.GetUserBids(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

func pageSize(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageSize, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxPageSize), true
}
