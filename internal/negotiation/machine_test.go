// internal/negotiation/machine_test.go
package negotiation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func entry(actor Actor, action Action, amt *decimal.Decimal, msg string) Entry {
	return Entry{
		Actor:   actor,
		Action:  action,
		Amount:  amt,
		Message: msg,
		At:      time.Now(),
	}
}

func TestApplyAllowedTransitions(t *testing.T) {
	quote := &Quote{Amount: decimal.RequireFromString("1200"), ProposedBy: ActorSeller}

	tests := []struct {
		name  string
		state Status
		quote *Quote
		entry Entry
		want  Status
	}{
		{"seller quotes pending request", StatusPending, nil,
			entry(ActorSeller, ActionQuote, amount("1200"), ""), StatusQuoted},
		{"buyer accepts quote", StatusQuoted, quote,
			entry(ActorBuyer, ActionAccept, nil, ""), StatusApproved},
		{"buyer counters quote", StatusQuoted, quote,
			entry(ActorBuyer, ActionCounterOffer, amount("1000"), "too high"), StatusNegotiating},
		{"buyer requests changes", StatusQuoted, quote,
			entry(ActorBuyer, ActionChangeRequest, nil, "different fabric"), StatusRejected},
		{"seller re-quotes during negotiation", StatusNegotiating, quote,
			entry(ActorSeller, ActionQuote, amount("1100"), ""), StatusQuoted},
		{"seller accepts counter", StatusNegotiating, quote,
			entry(ActorSeller, ActionAccept, nil, ""), StatusApproved},
		{"seller rejects counter", StatusNegotiating, quote,
			entry(ActorSeller, ActionReject, nil, "below cost"), StatusRejected},
		{"seller requests changes during negotiation", StatusNegotiating, quote,
			entry(ActorSeller, ActionChangeRequest, nil, "need a clearer reference image"), StatusRejected},
		{"payment verification keeps request approved", StatusApproved, quote,
			entry(ActorSystem, ActionPaymentVerified, nil, "advance received"), StatusApproved},
		{"seller converts approved request", StatusApproved, quote,
			entry(ActorSeller, ActionConvert, nil, ""), StatusCompleted},
		{"system converts approved request", StatusApproved, quote,
			entry(ActorSystem, ActionConvert, nil, ""), StatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.state, tt.quote, tt.entry)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyRejectsIllegalTransitions(t *testing.T) {
	quote := &Quote{Amount: decimal.RequireFromString("1200"), ProposedBy: ActorSeller}

	tests := []struct {
		name  string
		state Status
		quote *Quote
		entry Entry
	}{
		{"buyer cannot quote a pending request", StatusPending, nil,
			entry(ActorBuyer, ActionQuote, amount("500"), "")},
		{"buyer cannot accept before any quote", StatusPending, nil,
			entry(ActorBuyer, ActionAccept, nil, "")},
		{"seller cannot accept their own quote", StatusQuoted, quote,
			entry(ActorSeller, ActionAccept, nil, "")},
		{"buyer cannot act during seller's turn", StatusNegotiating, quote,
			entry(ActorBuyer, ActionAccept, nil, "")},
		{"cannot convert before approval", StatusQuoted, quote,
			entry(ActorSeller, ActionConvert, nil, "")},
		{"buyer cannot convert", StatusApproved, quote,
			entry(ActorBuyer, ActionConvert, nil, "")},
		{"rejected is terminal", StatusRejected, quote,
			entry(ActorSeller, ActionQuote, amount("900"), "")},
		{"completed is terminal", StatusCompleted, quote,
			entry(ActorBuyer, ActionCounterOffer, amount("800"), "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.state, tt.quote, tt.entry)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.state, got, "state must not change on rejection")

			var transitionErr *InvalidTransitionError
			assert.ErrorAs(t, err, &transitionErr)
			assert.Equal(t, tt.state, transitionErr.State)
		})
	}
}

func TestApplyNoOpOffer(t *testing.T) {
	quote := &Quote{Amount: decimal.RequireFromString("1200.00"), ProposedBy: ActorSeller}

	// Counter at the exact active amount is a no-op, not a round
	got, err := Apply(StatusQuoted, quote, entry(ActorBuyer, ActionCounterOffer, amount("1200.00"), ""))
	assert.ErrorIs(t, err, ErrNoOpOffer)
	assert.Equal(t, StatusQuoted, got)

	// Same rule for the seller re-quoting the standing counter
	got, err = Apply(StatusNegotiating, &Quote{Amount: decimal.RequireFromString("1000"), ProposedBy: ActorBuyer},
		entry(ActorSeller, ActionQuote, amount("1000.00"), ""))
	assert.ErrorIs(t, err, ErrNoOpOffer)
	assert.Equal(t, StatusNegotiating, got)

	// Different representation of a different amount still counts as a change
	_, err = Apply(StatusQuoted, quote, entry(ActorBuyer, ActionCounterOffer, amount("1199.99"), ""))
	assert.NoError(t, err)
}

func TestApplyFieldValidation(t *testing.T) {
	quote := &Quote{Amount: decimal.RequireFromString("1200"), ProposedBy: ActorSeller}

	var validationErr *ValidationError

	// Quote without an amount
	_, err := Apply(StatusPending, nil, entry(ActorSeller, ActionQuote, nil, ""))
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "amount", validationErr.Field)

	// Quote with a non-positive amount
	_, err = Apply(StatusPending, nil, entry(ActorSeller, ActionQuote, amount("0"), ""))
	assert.ErrorAs(t, err, &validationErr)

	_, err = Apply(StatusPending, nil, entry(ActorSeller, ActionQuote, amount("-10"), ""))
	assert.ErrorAs(t, err, &validationErr)

	// Accept must not carry an amount
	_, err = Apply(StatusQuoted, quote, entry(ActorBuyer, ActionAccept, amount("1200"), ""))
	assert.ErrorAs(t, err, &validationErr)

	// Reject and change_request need an explanation
	_, err = Apply(StatusNegotiating, quote, entry(ActorSeller, ActionReject, nil, ""))
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "message", validationErr.Field)

	_, err = Apply(StatusQuoted, quote, entry(ActorBuyer, ActionChangeRequest, nil, "   "))
	assert.ErrorAs(t, err, &validationErr)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusQuoted.Terminal())
	assert.False(t, StatusNegotiating.Terminal())
	assert.False(t, StatusApproved.Terminal())
}
