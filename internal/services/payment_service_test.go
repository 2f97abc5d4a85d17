// internal/services/payment_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v74"
)

func succeededIntent(recordID uuid.UUID, amountInPaise int64) *stripe.PaymentIntent {
	return &stripe.PaymentIntent{
		ID:     "pi_test",
		Status: stripe.PaymentIntentStatusSucceeded,
		Amount: amountInPaise,
		Metadata: map[string]string{
			"design_request_id": recordID.String(),
		},
	}
}

func TestMatchPaymentIntent(t *testing.T) {
	recordID := uuid.New()
	amount := decimal.RequireFromString("1000.00")

	assert.NoError(t, matchPaymentIntent(succeededIntent(recordID, 100000), recordID, amount))
}

func TestMatchPaymentIntentRejectsUnsettled(t *testing.T) {
	recordID := uuid.New()
	pi := succeededIntent(recordID, 100000)
	pi.Status = stripe.PaymentIntentStatusRequiresPaymentMethod

	err := matchPaymentIntent(pi, recordID, decimal.RequireFromString("1000.00"))
	assert.ErrorContains(t, err, "not settled")
}

// An intent created for one record cannot be replayed to stamp another,
// even when the amounts line up.
func TestMatchPaymentIntentRejectsForeignRecord(t *testing.T) {
	recordID := uuid.New()
	pi := succeededIntent(uuid.New(), 100000)

	err := matchPaymentIntent(pi, recordID, decimal.RequireFromString("1000.00"))
	assert.ErrorContains(t, err, "does not reference this design request")

	// Missing metadata is rejected the same way
	pi.Metadata = nil
	err = matchPaymentIntent(pi, recordID, decimal.RequireFromString("1000.00"))
	assert.ErrorContains(t, err, "does not reference this design request")
}

func TestMatchPaymentIntentRejectsAmountMismatch(t *testing.T) {
	recordID := uuid.New()
	pi := succeededIntent(recordID, 90000)

	err := matchPaymentIntent(pi, recordID, decimal.RequireFromString("1000.00"))
	assert.ErrorContains(t, err, "amount mismatch")
}
