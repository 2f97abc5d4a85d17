// internal/negotiation/ledger_test.go
package negotiation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(e Entry, t time.Time) Entry {
	e.At = t
	return e
}

func TestCheckAppend(t *testing.T) {
	base := time.Now()
	first := at(entry(ActorSeller, ActionQuote, amount("1200"), ""), base)

	// First entry always appends
	assert.NoError(t, CheckAppend(nil, first))

	// Later timestamp appends
	assert.NoError(t, CheckAppend(&first, at(entry(ActorBuyer, ActionAccept, nil, ""), base.Add(time.Second))))

	// Equal timestamp appends; insertion order decides
	assert.NoError(t, CheckAppend(&first, at(entry(ActorBuyer, ActionAccept, nil, ""), base)))

	// Earlier timestamp is rejected
	err := CheckAppend(&first, at(entry(ActorBuyer, ActionAccept, nil, ""), base.Add(-time.Second)))
	assert.ErrorIs(t, err, ErrOutOfOrder)

	var orderErr *OutOfOrderError
	require.ErrorAs(t, err, &orderErr)
	assert.Equal(t, base.UnixNano(), orderErr.Last)
}

// Full happy path: quote at 1200, counter at 1000, seller accepts, advance
// paid, converted to an order.
func TestReplayNegotiatedPurchase(t *testing.T) {
	base := time.Now()
	history := []Entry{
		at(entry(ActorSeller, ActionQuote, amount("1200.00"), "hand embroidery included"), base),
		at(entry(ActorBuyer, ActionCounterOffer, amount("1000.00"), "my budget"), base.Add(time.Minute)),
		at(entry(ActorSeller, ActionAccept, nil, ""), base.Add(2*time.Minute)),
		at(entry(ActorSystem, ActionPaymentVerified, nil, "advance of 1000.00 received"), base.Add(3*time.Minute)),
		at(entry(ActorSeller, ActionConvert, nil, ""), base.Add(4*time.Minute)),
	}

	state, quote, err := Replay(history)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, state)

	// The buyer's counter is the agreed amount
	require.NotNil(t, quote)
	assert.True(t, quote.Amount.Equal(decimal.RequireFromString("1000.00")))
	assert.Equal(t, ActorBuyer, quote.ProposedBy)

	// Every prefix of the ledger replays cleanly too
	prefixStates := []Status{StatusQuoted, StatusNegotiating, StatusApproved, StatusApproved, StatusCompleted}
	for i := range history {
		state, _, err := Replay(history[:i+1])
		require.NoError(t, err)
		assert.Equal(t, prefixStates[i], state)
	}
}

// Change request ends the negotiation permanently.
func TestReplayChangeRequestIsTerminal(t *testing.T) {
	base := time.Now()
	history := []Entry{
		at(entry(ActorSeller, ActionQuote, amount("1500"), ""), base),
		at(entry(ActorBuyer, ActionChangeRequest, nil, "please use cotton instead of silk"), base.Add(time.Minute)),
	}

	state, _, err := Replay(history)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, state)

	// Nothing appends after the terminal state
	_, _, err = Replay(append(history,
		at(entry(ActorSeller, ActionQuote, amount("1400"), ""), base.Add(2*time.Minute))))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReplayEmptyLedger(t *testing.T) {
	state, quote, err := Replay(nil)
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, state)
	assert.Nil(t, quote)
}

func TestReplayOutOfOrderLedger(t *testing.T) {
	base := time.Now()
	history := []Entry{
		at(entry(ActorSeller, ActionQuote, amount("1200"), ""), base),
		at(entry(ActorBuyer, ActionAccept, nil, ""), base.Add(-time.Hour)),
	}

	_, _, err := Replay(history)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestReplayQuoteTracksLatestOffer(t *testing.T) {
	base := time.Now()
	history := []Entry{
		at(entry(ActorSeller, ActionQuote, amount("1200"), ""), base),
		at(entry(ActorBuyer, ActionCounterOffer, amount("900"), "student discount?"), base.Add(time.Minute)),
		at(entry(ActorSeller, ActionQuote, amount("1050"), "final offer"), base.Add(2*time.Minute)),
	}

	state, quote, err := Replay(history)
	require.NoError(t, err)
	assert.Equal(t, StatusQuoted, state)
	require.NotNil(t, quote)
	assert.True(t, quote.Amount.Equal(decimal.RequireFromString("1050")))
	assert.Equal(t, "final offer", quote.Message)
	assert.Equal(t, ActorSeller, quote.ProposedBy)
}
