package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erin-a-z/Biddable/api-gateway/internal/content"
	"github.com/erin-a-z/Biddable/api-gateway/internal/memory"
	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

type testAPI struct {
	handler http.Handler
	store   *memory.Store
	svc     *service.BiddingService
}

func newTestAPI(t *testing.T, suggester Suggester) *testAPI {
	t.Helper()

	store := memory.NewStore()
	svc := service.NewBiddingService(service.Dependencies{
		Store:  store,
		Events: []service.EventPublisher{store},
	}, service.Config{})

	return &testAPI{
		handler: NewHandler(svc, store, suggester).SetupRoutes(),
		store:   store,
		svc:     svc,
	}
}

func (a *testAPI) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		r.Header.Set(HeaderUserID, user)
		r.Header.Set(HeaderUserEmail, user+"@example.com")
	}

	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, r)
	return w
}

func (a *testAPI) createItem(t *testing.T, price string) ItemView {
	t.Helper()

	body := fmt.Sprintf(`{"title":"Bike","description":"Red","starting_price":%q,"end_time":%q}`,
		price, time.Now().Add(time.Hour).UTC().Format(time.RFC3339))
	w := a.do(t, http.MethodPost, "/api/v1/items", "seller", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var v ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var e ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestHealthCheck(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCORSPreflight(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(t, http.MethodOptions, "/api/v1/items/abc/bids", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), HeaderUserID)
}

func TestCreateAndGetItem(t *testing.T) {
	a := newTestAPI(t, nil)
	created := a.createItem(t, "100.00")

	assert.Equal(t, "seller", created.SellerID)
	assert.Equal(t, models.ItemStatusOpen, created.Status)
	assert.Equal(t, "102.50", created.MinNextBid)

	w := a.do(t, http.MethodGet, "/api/v1/items/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Bike", got.Title)
	assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString("100")))
	assert.Empty(t, got.RecentBids)

	w = a.do(t, http.MethodGet, "/api/v1/items", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = a.do(t, http.MethodGet, "/api/v1/items/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateItemValidation(t *testing.T) {
	a := newTestAPI(t, nil)
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name   string
		user   string
		body   string
		status int
		reason string
	}{
		{"no identity", "", `{"title":"Bike","starting_price":"10","end_time":"` + future + `"}`, http.StatusUnauthorized, reasonUnauthorized},
		{"malformed", "seller", `{"title":`, http.StatusBadRequest, reasonInvalidRequest},
		{"no title", "seller", `{"starting_price":"10","end_time":"` + future + `"}`, http.StatusBadRequest, reasonInvalidRequest},
		{"bad image url", "seller", `{"title":"Bike","image_url":"not a url","starting_price":"10","end_time":"` + future + `"}`, http.StatusBadRequest, reasonInvalidRequest},
		{"no price", "seller", `{"title":"Bike","end_time":"` + future + `"}`, http.StatusBadRequest, reasonInvalidRequest},
		{"no end time", "seller", `{"title":"Bike","starting_price":"10"}`, http.StatusBadRequest, reasonInvalidRequest},
		{"zero price", "seller", `{"title":"Bike","starting_price":"0","end_time":"` + future + `"}`, http.StatusBadRequest, reasonInvalidPrice},
		{"ended", "seller", `{"title":"Bike","starting_price":"10","end_time":"` + past + `"}`, http.StatusBadRequest, reasonInvalidPrice},
		{"low reserve", "seller", `{"title":"Bike","starting_price":"10","reserve_price":"5","end_time":"` + future + `"}`, http.StatusBadRequest, reasonInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(t, http.MethodPost, "/api/v1/items", tt.user, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.reason, decodeError(t, w).Reason)
		})
	}
}

func TestPlaceBid(t *testing.T) {
	a := newTestAPI(t, nil)
	item := a.createItem(t, "100.00")
	path := "/api/v1/items/" + item.ID + "/bids"

	w := a.do(t, http.MethodPost, path, "alice", `{"amount":"100.50"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, reasonBidTooLow, e.Reason)
	require.NotNil(t, e.MinBid)
	assert.True(t, e.MinBid.Equal(decimal.RequireFromString("102.50")))
	assert.True(t, e.CurrentPrice.Equal(decimal.RequireFromString("100.00")))

	w = a.do(t, http.MethodPost, path, "alice", `{"amount":102.50}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res PlaceBidResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "alice", res.Bid.UserID)
	assert.Equal(t, "alice@example.com", res.Bid.UserEmail)
	assert.Equal(t, "alice", res.Item.HighestBidderID)
	assert.Equal(t, "110.00", res.Item.MinNextBid)

	w = a.do(t, http.MethodPost, path, "seller", `{"amount":"500"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, reasonSelfBid, decodeError(t, w).Reason)

	w = a.do(t, http.MethodPost, path, "bob", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPost, path, "", `{"amount":"500"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(t, http.MethodPost, "/api/v1/items/missing/bids", "bob", `{"amount":"500"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodGet, path, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var bids []*models.Bid
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bids))
	assert.Len(t, bids, 1)

	w = a.do(t, http.MethodGet, path+"?limit=zero", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/api/v1/users/alice/bids?limit=5", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bids))
	require.Len(t, bids, 1)
	assert.Equal(t, item.ID, bids[0].ItemID)

	w = a.do(t, http.MethodGet, "/api/v1/items/"+item.ID, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got.RecentBids, 1)
}

func TestEditItem(t *testing.T) {
	a := newTestAPI(t, nil)
	item := a.createItem(t, "10.00")
	path := "/api/v1/items/" + item.ID

	w := a.do(t, http.MethodPatch, path, "seller", `{"title":"Blue bike","reserve_price":"25.00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var v ItemView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Equal(t, "Blue bike", v.Title)
	require.NotNil(t, v.ReservePrice)
	assert.True(t, v.ReservePrice.Equal(decimal.RequireFromString("25")))

	w = a.do(t, http.MethodPatch, path, "seller", `{"current_price":"1.00","seller_id":"me"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, reasonImmutableField, e.Reason)
	assert.Contains(t, e.Error, "current_price")

	w = a.do(t, http.MethodPatch, path, "seller", `{"colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, reasonInvalidRequest, decodeError(t, w).Reason)

	w = a.do(t, http.MethodPatch, path, "seller", `["title"]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodPatch, path, "alice", `{"title":"Mine now"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, reasonForbidden, decodeError(t, w).Reason)

	stored, err := a.svc.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue bike", stored.Title)
	assert.True(t, stored.CurrentPrice.Equal(decimal.RequireFromString("10")))
}

func TestDeleteItem(t *testing.T) {
	a := newTestAPI(t, nil)
	item := a.createItem(t, "10.00")
	path := "/api/v1/items/" + item.ID

	w := a.do(t, http.MethodDelete, path, "alice", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodDelete, path, "seller", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// failingBidding answers every bid with err
type failingBidding struct {
	service.Bidding
	err error
}

func (f *failingBidding) PlaceBid(context.Context, string, service.Identity, decimal.Decimal) (*service.BidResult, error) {
	return nil, f.err
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		reason string
	}{
		{auction.Reject(auction.ErrAuctionClosed, "closed"), http.StatusPreconditionFailed, reasonAuctionClosed},
		{auction.Reject(auction.ErrInvalidPriceOrDate, "bad"), http.StatusBadRequest, reasonInvalidPrice},
		{fmt.Errorf("gave up: %w", auction.ErrConflict), http.StatusConflict, reasonConflict},
		{service.ErrLimitExceeded, http.StatusTooManyRequests, reasonRateLimited},
		{errors.New("redis: connection refused"), http.StatusInternalServerError, reasonInternal},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			h := NewHandler(&failingBidding{err: tt.err}, nil, nil).SetupRoutes()

			r := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/bids", strings.NewReader(`{"amount":"10"}`))
			r.Header.Set(HeaderUserID, "alice")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			assert.Equal(t, tt.status, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tt.reason, e.Reason)
			assert.NotContains(t, e.Error, "connection refused")
		})
	}
}

type fakeSuggester struct{}

func (fakeSuggester) Suggest(_ context.Context, imageURL, title string) content.Suggestion {
	return content.Suggestion{Title: "Vintage Camera", Summary: "from " + imageURL}
}

func TestSuggestContent(t *testing.T) {
	a := newTestAPI(t, nil)
	w := a.do(t, http.MethodPost, "/api/v1/content/suggestions", "seller", `{"image_url":"https://img.example.com/a.jpg"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	a = newTestAPI(t, fakeSuggester{})
	w = a.do(t, http.MethodPost, "/api/v1/content/suggestions", "seller", `{"image_url":"https://img.example.com/a.jpg"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var s content.Suggestion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, "Vintage Camera", s.Title)

	w = a.do(t, http.MethodPost, "/api/v1/content/suggestions", "seller", `{"title":"Camera"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamItemEvents(t *testing.T) {
	a := newTestAPI(t, nil)
	item := a.createItem(t, "10.00")

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/items/"+item.ID+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	next := func() (string, string) {
		var event, data string
		for lines.Scan() {
			line := lines.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
		return "", ""
	}

	event, data := next()
	require.Equal(t, "snapshot", event)
	assert.Contains(t, data, item.ID)

	_, err = a.svc.PlaceBid(context.Background(), item.ID, service.Identity{UserID: "alice"}, decimal.RequireFromString("11.00"))
	require.NoError(t, err)

	event, data = next()
	require.Equal(t, models.ItemEventBidPlaced, event)
	var se streamEvent
	require.NoError(t, json.Unmarshal([]byte(data), &se))
	require.NotNil(t, se.Item)
	assert.Equal(t, "alice", se.Item.HighestBidderID)
	assert.Equal(t, "12.00", se.Item.MinNextBid)
}

func TestStreamUnknownItem(t *testing.T) {
	a := newTestAPI(t, nil)

	w := a.do(t, http.MethodGet, "/api/v1/items/missing/events", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
