// internal/negotiation/errors.go
package negotiation

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNoOpOffer         = errors.New("counter-offer equals current quote")
	ErrOutOfOrder        = errors.New("ledger entry out of order")
	ErrNotApproved       = errors.New("design request is not approved")
	ErrPaymentRequired   = errors.New("advance payment required")
	ErrDuplicatePayment  = errors.New("advance payment already recorded")
	ErrVersionConflict   = errors.New("design request was modified concurrently")
)

// ValidationError reports a single malformed input field. The caller can fix
// the input and retry.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError names the attempted action and the state it was
// attempted from. The record is left unchanged.
type InvalidTransitionError struct {
	State  Status
	Actor  Actor
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot %s a design request in state %q", e.Actor, e.Action, e.State)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// NoOpOfferError rejects a counter-offer equal to the active quote amount.
type NoOpOfferError struct {
	Amount decimal.Decimal
}

func (e *NoOpOfferError) Error() string {
	return fmt.Sprintf("counter-offer of %s equals the current quote", e.Amount.StringFixed(2))
}

func (e *NoOpOfferError) Is(target error) bool {
	return target == ErrNoOpOffer
}

// OutOfOrderError rejects a ledger append whose timestamp precedes the last
// entry's timestamp.
type OutOfOrderError struct {
	Last, Attempted int64 // unix nanos
}

func (e *OutOfOrderError) Error() string {
	return "ledger append precedes the last recorded entry"
}

func (e *OutOfOrderError) Is(target error) bool {
	return target == ErrOutOfOrder
}
