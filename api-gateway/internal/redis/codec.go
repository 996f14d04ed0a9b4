package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erin-a-z/Biddable/shared/auction"
	"github.com/erin-a-z/Biddable/shared/models"
)

// Hash fields of item:{id}
const (
	fieldID                 = "id"
	fieldTitle              = "title"
	fieldDescription        = "description"
	fieldSummary            = "summary"
	fieldImageURL           = "image_url"
	fieldStartingPrice      = "starting_price"
	fieldCurrentPrice       = "current_price"
	fieldReservePrice       = "reserve_price"
	fieldReserveMet         = "reserve_met"
	fieldHighestBidderID    = "highest_bidder_id"
	fieldHighestBidderEmail = "highest_bidder_email"
	fieldBidCount           = "bid_count"
	fieldSellerID           = "seller_id"
	fieldEndTime            = "end_time"
	fieldCreatedAt          = "created_at"
	fieldUpdatedAt          = "updated_at"
)

func encodeItem(item *models.Item) map[string]interface{} {
	fields := editableFields(item)
	fields[fieldID] = item.ID
	fields[fieldStartingPrice] = auction.FormatCents(item.StartingPrice)
	fields[fieldCurrentPrice] = auction.FormatCents(item.BasePrice())
	fields[fieldHighestBidderID] = item.HighestBidderID
	fields[fieldHighestBidderEmail] = item.HighestBidderEmail
	fields[fieldBidCount] = strconv.Itoa(item.BidCount)
	fields[fieldSellerID] = item.SellerID
	fields[fieldCreatedAt] = encodeTime(item.CreatedAt)
	return fields
}

// editableFields are the fields a seller edit may overwrite
func editableFields(item *models.Item) map[string]interface{} {
	return map[string]interface{}{
		fieldTitle:        item.Title,
		fieldDescription:  item.Description,
		fieldSummary:      item.Summary,
		fieldImageURL:     item.ImageURL,
		fieldReservePrice: auction.FormatReserve(item.ReservePrice),
		fieldReserveMet:   encodeBool(item.ReserveMet),
		fieldEndTime:      encodeTime(item.EndTime),
		fieldUpdatedAt:    encodeTime(item.UpdatedAt),
	}
}

func decodeItem(fields map[string]string) (*models.Item, error) {
	item := &models.Item{
		ID:                 fields[fieldID],
		Title:              fields[fieldTitle],
		Description:        fields[fieldDescription],
		Summary:            fields[fieldSummary],
		ImageURL:           fields[fieldImageURL],
		ReserveMet:         fields[fieldReserveMet] == "1",
		HighestBidderID:    fields[fieldHighestBidderID],
		HighestBidderEmail: fields[fieldHighestBidderEmail],
		SellerID:           fields[fieldSellerID],
	}

	var err error
	if item.StartingPrice, err = decimal.NewFromString(fields[fieldStartingPrice]); err != nil {
		return nil, fmt.Errorf("bad %s of item %s: %w", fieldStartingPrice, item.ID, err)
	}
	if item.CurrentPrice, err = decimal.NewFromString(fields[fieldCurrentPrice]); err != nil {
		return nil, fmt.Errorf("bad %s of item %s: %w", fieldCurrentPrice, item.ID, err)
	}
	if r := fields[fieldReservePrice]; r != "" {
		reserve, err := decimal.NewFromString(r)
		if err != nil {
			return nil, fmt.Errorf("bad %s of item %s: %w", fieldReservePrice, item.ID, err)
		}
		item.ReservePrice = &reserve
	}
	if n := fields[fieldBidCount]; n != "" {
		if item.BidCount, err = strconv.Atoi(n); err != nil {
			return nil, fmt.Errorf("bad %s of item %s: %w", fieldBidCount, item.ID, err)
		}
	}
	if item.EndTime, err = decodeTime(fields[fieldEndTime]); err != nil {
		return nil, fmt.Errorf("bad %s of item %s: %w", fieldEndTime, item.ID, err)
	}
	if item.CreatedAt, err = decodeTime(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("bad %s of item %s: %w", fieldCreatedAt, item.ID, err)
	}
	if item.UpdatedAt, err = decodeTime(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("bad %s of item %s: %w", fieldUpdatedAt, item.ID, err)
	}

	return item, nil
}

// decodeFlatHash turns an HGETALL reply returned from a script into a map
func decodeFlatHash(reply interface{}) (map[string]string, error) {
	values, ok := reply.([]interface{})
	if !ok || len(values)%2 != 0 {
		return nil, fmt.Errorf("unexpected hash reply %T", reply)
	}

	fields := make(map[string]string, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		k, kok := values[i].(string)
		v, vok := values[i+1].(string)
		if !kok || !vok {
			return nil, fmt.Errorf("unexpected hash entry %T=%T", values[i], values[i+1])
		}
		fields[k] = v
	}
	return fields, nil
}

func encodeTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
