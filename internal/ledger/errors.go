package ledger

import (
	"errors"
	"fmt"

	"github.com/atmx/merchant-engine/internal/market"
)

var (
	ErrInvalidQuantity   = errors.New("ledger: quantity must be positive")
	ErrInsufficientFunds = errors.New("ledger: not enough money")
	ErrMarketShortage    = errors.New("ledger: market cannot fulfill order")
	ErrNotHeld           = errors.New("ledger: commodity not in stock")
	ErrInsufficientStock = errors.New("ledger: not enough stock")

	// ErrInconsistent reports holdings that disagree with the FIFO lots.
	ErrInconsistent = errors.New("ledger: holdings and lots disagree")
)

// Reason is a machine-readable rejection code.
type Reason string

const (
	ReasonInvalidQuantity   Reason = "invalid_quantity"
	ReasonInsufficientFunds Reason = "insufficient_funds"
	ReasonMarketShortage    Reason = "market_shortage"
	ReasonNotHeld           Reason = "not_held"
	ReasonInsufficientStock Reason = "insufficient_stock"
	ReasonUnknownCommodity  Reason = "unknown_commodity"
)

// RejectError is a validation failure of a buy or sell. A rejected trade
// leaves the depot untouched.
type RejectError struct {
	Reason    Reason
	Commodity string
}

// Reject builds a RejectError.
func Reject(reason Reason, commodity string) *RejectError {
	return &RejectError{Reason: reason, Commodity: commodity}
}

// Error returns the message shown to the player.
func (e *RejectError) Error() string {
	switch e.Reason {
	case ReasonInvalidQuantity:
		return "quantity must be positive"
	case ReasonInsufficientFunds:
		return "not enough money"
	case ReasonMarketShortage:
		return "market cannot fulfill order"
	case ReasonNotHeld:
		return fmt.Sprintf("no %s in stock", e.Commodity)
	case ReasonInsufficientStock:
		return fmt.Sprintf("not enough %s in stock", e.Commodity)
	case ReasonUnknownCommodity:
		return fmt.Sprintf("unknown commodity %s", e.Commodity)
	}
	return string(e.Reason)
}

// Is maps reasons onto the package sentinels.
func (e *RejectError) Is(target error) bool {
	switch target {
	case ErrInvalidQuantity:
		return e.Reason == ReasonInvalidQuantity
	case ErrInsufficientFunds:
		return e.Reason == ReasonInsufficientFunds
	case ErrMarketShortage:
		return e.Reason == ReasonMarketShortage
	case ErrNotHeld:
		return e.Reason == ReasonNotHeld
	case ErrInsufficientStock:
		return e.Reason == ReasonInsufficientStock
	case market.ErrUnknownCommodity:
		return e.Reason == ReasonUnknownCommodity
	}
	return false
}

// AsReject extracts a RejectError from err.
func AsReject(err error) (*RejectError, bool) {
	var rej *RejectError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
