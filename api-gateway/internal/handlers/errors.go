package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/api-gateway/internal/service"
	"github.com/erin-a-z/Biddable/shared/auction"
)

// Machine-readable reasons in error bodies
const (
	reasonBidTooLow      = "bid_too_low"
	reasonAuctionClosed  = "auction_closed"
	reasonSelfBid        = "self_bid_forbidden"
	reasonInvalidPrice   = "invalid_price_or_date"
	reasonInvalidItem    = "invalid_item"
	reasonImmutableField = "immutable_field"
	reasonForbidden      = "forbidden"
	reasonNotFound       = "not_found"
	reasonConflict       = "conflict"
	reasonRateLimited    = "rate_limited"
	reasonUnauthorized   = "unauthorized"
	reasonInvalidRequest = "invalid_request"
	reasonUnavailable    = "unavailable"
	reasonInternal       = "internal"
)

type ErrorResponse struct {
	Error        string           `json:"error"`
	Reason       string           `json:"reason"`
	MinBid       *decimal.Decimal `json:"min_bid,omitempty"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("can't write response", slog.String("error", err.Error()))
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, reason, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Reason: reason})
}

// respondServiceError maps service errors onto HTTP statuses. Unexpected errors are logged
// and reported without details.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *auction.Rejection
	message := err.Error()
	if errors.As(err, &rej) {
		message = rej.Message
	}

	switch {
	case errors.Is(err, auction.ErrBidTooLow):
		resp := ErrorResponse{Error: message, Reason: reasonBidTooLow}
		if rej != nil {
			resp.MinBid = &rej.MinBid
			resp.CurrentPrice = &rej.CurrentPrice
		}
		respondJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, auction.ErrAuctionClosed):
		respondError(w, http.StatusPreconditionFailed, reasonAuctionClosed, message)
	case errors.Is(err, auction.ErrSelfBidForbidden):
		respondError(w, http.StatusForbidden, reasonSelfBid, message)
	case errors.Is(err, auction.ErrForbidden):
		respondError(w, http.StatusForbidden, reasonForbidden, message)
	case errors.Is(err, auction.ErrInvalidPriceOrDate):
		respondError(w, http.StatusBadRequest, reasonInvalidPrice, message)
	case errors.Is(err, auction.ErrInvalidItem):
		respondError(w, http.StatusBadRequest, reasonInvalidItem, message)
	case errors.Is(err, auction.ErrImmutableField):
		respondError(w, http.StatusBadRequest, reasonImmutableField, message)
	case errors.Is(err, auction.ErrNotFound):
		respondError(w, http.StatusNotFound, reasonNotFound, "item not found")
	case errors.Is(err, auction.ErrConflict):
		respondError(w, http.StatusConflict, reasonConflict, "the item changed while your request was processed, please retry")
	case errors.Is(err, service.ErrLimitExceeded):
		respondError(w, http.StatusTooManyRequests, reasonRateLimited, "too many bids, slow down")
	default:
		slog.Error("request failed",
			slog.String("method", r.Method),
			slog.String("uri", r.URL.RequestURI()),
			slog.Any("error", err),
		)
		respondError(w, http.StatusInternalServerError, reasonInternal, "internal error")
	}
}
