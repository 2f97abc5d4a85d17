// internal/negotiation/machine.go

// Package negotiation holds the design-request lifecycle: the closed status
// enum, the transition table and the pure ledger replay. Services apply
// transitions through this package only, so the cached status/quote on a
// record can always be rebuilt from its history.
package negotiation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusQuoted      Status = "quoted"
	StatusNegotiating Status = "negotiating"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusCompleted   Status = "completed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

type Actor string

const (
	ActorBuyer  Actor = "buyer"
	ActorSeller Actor = "seller"
	ActorSystem Actor = "system"
)

type Action string

const (
	ActionQuote           Action = "quote"
	ActionCounterOffer    Action = "counter_offer"
	ActionAccept          Action = "accept"
	ActionReject          Action = "reject"
	ActionChangeRequest   Action = "change_request"
	ActionPaymentVerified Action = "payment_verified"
	ActionConvert         Action = "convert"
)

// Quote is the currently active offer derived from the ledger.
type Quote struct {
	Amount     decimal.Decimal
	Message    string
	ProposedBy Actor
	At         time.Time
}

// Entry is one negotiation ledger row. Amount is set for quote and
// counter-offer actions only.
type Entry struct {
	Actor   Actor
	Action  Action
	Amount  *decimal.Decimal
	Message string
	At      time.Time
}

// Apply validates one transition against the current state and active quote
// and returns the resulting state. It never mutates anything; persistence is
// the caller's concern. The zero quote pointer means no offer is active.
func Apply(state Status, quote *Quote, e Entry) (Status, error) {
	if err := validateEntry(e); err != nil {
		return state, err
	}

	switch state {
	case StatusPending:
		if e.Actor == ActorSeller && e.Action == ActionQuote {
			return StatusQuoted, nil
		}

	case StatusQuoted:
		if e.Actor == ActorBuyer {
			switch e.Action {
			case ActionAccept:
				return StatusApproved, nil
			case ActionCounterOffer:
				if quote != nil && e.Amount.Equal(quote.Amount) {
					return state, &NoOpOfferError{Amount: *e.Amount}
				}
				return StatusNegotiating, nil
			case ActionChangeRequest:
				return StatusRejected, nil
			}
		}

	case StatusNegotiating:
		if e.Actor == ActorSeller {
			switch e.Action {
			case ActionQuote:
				if quote != nil && e.Amount.Equal(quote.Amount) {
					return state, &NoOpOfferError{Amount: *e.Amount}
				}
				return StatusQuoted, nil
			case ActionAccept:
				return StatusApproved, nil
			case ActionReject, ActionChangeRequest:
				return StatusRejected, nil
			}
		}

	case StatusApproved:
		if e.Action == ActionPaymentVerified && (e.Actor == ActorSystem) {
			return StatusApproved, nil
		}
		if e.Action == ActionConvert && (e.Actor == ActorSeller || e.Actor == ActorSystem) {
			return StatusCompleted, nil
		}
	}

	return state, &InvalidTransitionError{State: state, Actor: e.Actor, Action: e.Action}
}

// validateEntry enforces field-level constraints that hold for every state:
// amount-bearing actions carry a positive amount, rejection-class actions
// carry an explanation for the counterparty.
func validateEntry(e Entry) error {
	switch e.Action {
	case ActionQuote, ActionCounterOffer:
		if e.Amount == nil {
			return &ValidationError{Field: "amount", Reason: "required for " + string(e.Action)}
		}
		if !e.Amount.IsPositive() {
			return &ValidationError{Field: "amount", Reason: "must be a positive decimal"}
		}
	case ActionAccept, ActionPaymentVerified, ActionConvert:
		if e.Amount != nil {
			return &ValidationError{Field: "amount", Reason: "not allowed for " + string(e.Action)}
		}
	case ActionReject, ActionChangeRequest:
		if strings.TrimSpace(e.Message) == "" {
			return &ValidationError{Field: "message", Reason: "required for " + string(e.Action)}
		}
	default:
		return &ValidationError{Field: "action", Reason: "unknown action " + string(e.Action)}
	}
	return nil
}
