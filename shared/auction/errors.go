package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors are user-correctable and never retried.
var (
	ErrBidTooLow          = errors.New("bid too low")
	ErrAuctionClosed      = errors.New("auction is closed")
	ErrSelfBidForbidden   = errors.New("seller cannot bid on own item")
	ErrInvalidPriceOrDate = errors.New("invalid price or date")
	ErrImmutableField     = errors.New("field cannot be changed")
	ErrInvalidItem        = errors.New("invalid item")
)

var (
	ErrForbidden = errors.New("only the seller may modify this item")
	ErrNotFound  = errors.New("item not found")

	// ErrConflict means the item changed between read and conditional write.
	// Callers re-read and re-validate before trying again.
	ErrConflict = errors.New("item was modified concurrently")
)

// Rejection is returned for every business-rule violation. It wraps one of the sentinel errors above and,
// for bids, carries the boundary values the caller needs to correct the request.
type Rejection struct {
	Reason       error
	Message      string
	MinBid       decimal.Decimal
	CurrentPrice decimal.Decimal
}

func (r *Rejection) Error() string {
	return r.Message
}

func (r *Rejection) Unwrap() error {
	return r.Reason
}

func Reject(reason error, format string, args ...any) *Rejection {
	return &Rejection{
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsRejection reports whether err is an expected business-rule violation rather than an infrastructure failure.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}
