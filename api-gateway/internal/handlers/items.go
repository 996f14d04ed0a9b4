package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

const maxBodyBytes = 1 << 20

type CreateItemRequest struct {
	Title         string           `json:"title" validate:"required,max=200"`
	Description   string           `json:"description" validate:"max=10000"`
	Summary       string           `json:"summary" validate:"max=300"`
	ImageURL      string           `json:"image_url" validate:"omitempty,url"`
	StartingPrice *decimal.Decimal `json:"starting_price"`
	ReservePrice  *decimal.Decimal `json:"reserve_price"`
	EndTime       time.Time        `json:"end_time" validate:"required"`
}

// EditItemRequest lists everything a seller may change. Absent fields are left alone.
type EditItemRequest struct {
	Title        *string          `json:"title" validate:"omitempty,max=200"`
	Description  *string          `json:"description" validate:"omitempty,max=10000"`
	Summary      *string          `json:"summary" validate:"omitempty,max=300"`
	ImageURL     *string          `json:"image_url" validate:"omitempty,url"`
	EndTime      *time.Time       `json:"end_time"`
	ReservePrice *decimal.Decimal `json:"reserve_price"`
}

// immutableFields can be read but never written through the API
var immutableFields = []string{
	"id", "seller_id", "starting_price", "current_price", "highest_bidder_id", "highest_bidder_email",
	"bid_count", "reserve_met", "created_at", "updated_at",
}

type PlaceBidRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

type PlaceBidResponse struct {
	Bid  *models.Bid `json:"bid"`
	Item ItemView    `json:"item"`
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.StartingPrice == nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, "starting_price is required")
		return
	}

	item, err := h.bidding.CreateItem(r.Context(), identityFrom(r.Context()), models.ItemDraft{
		Title:         req.Title,
		Description:   req.Description,
		Summary:       req.Summary,
		ImageURL:      req.ImageURL,
		StartingPrice: *req.StartingPrice,
		ReservePrice:  req.ReservePrice,
		EndTime:       req.EndTime,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, h.view(item))
}

func (h *Handler) EditItem(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, "can't read request body")
		return
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, "request body must be a JSON object")
		return
	}
	var immutable []string
	for _, f := range immutableFields {
		if _, ok := fields[f]; ok {
			immutable = append(immutable, f)
		}
	}
	if len(immutable) > 0 {
		sort.Strings(immutable)
		respondServiceError(w, r, auction.Reject(auction.ErrImmutableField, "%s cannot be changed", strings.Join(immutable, ", ")))
		return
	}

	var req EditItemRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, err.Error())
		return
	}

	item, err := h.bidding.EditItem(r.Context(), mux.Vars(r)["id"], identityFrom(r.Context()), models.ItemPatch{
		Title:        req.Title,
		Description:  req.Description,
		Summary:      req.Summary,
		ImageURL:     req.ImageURL,
		EndTime:      req.EndTime,
		ReservePrice: req.ReservePrice,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, h.view(item))
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.bidding.DeleteItem(r.Context(), mux.Vars(r)["id"], identityFrom(r.Context())); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceBid handles bid placement requests
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req PlaceBidRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount == nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, "amount is required")
		return
	}

	res, err := h.bidding.PlaceBid(r.Context(), mux.Vars(r)["id"], identityFrom(r.Context()), *req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, PlaceBidResponse{Bid: res.Bid, Item: h.view(res.Item)})
}

// decode reads a JSON body into v and validates it, answering 400 itself on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		respondError(w, http.StatusBadRequest, reasonInvalidRequest, err.Error())
		return false
	}
	return true
}
