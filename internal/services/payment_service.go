// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftkart/craftkart-backend/internal/config"
	"github.com/craftkart/craftkart-backend/internal/models"
	"github.com/craftkart/craftkart-backend/internal/negotiation"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

// PaymentService is the gate between quote acceptance and production. It
// does not run checkout itself: it creates the Stripe intent for the agreed
// amount and later consumes the verified payment event, stamping the advance
// on the record exactly once.
type PaymentService struct {
	db                  *gorm.DB
	config              *config.Config
	notificationService *NotificationService
}

type PaymentEvent struct {
	Amount            string `json:"amount" validate:"required,positive_amount"`
	Method            string `json:"method" validate:"required,max=50"`
	ProviderReference string `json:"provider_reference" validate:"required,max=255"`
}

type PaymentIntentResponse struct {
	ClientSecret string `json:"client_secret"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

func NewPaymentService(db *gorm.DB, config *config.Config, notificationService *NotificationService) *PaymentService {
	// Initialize Stripe
	stripe.Key = config.Payment.StripeSecretKey

	return &PaymentService{
		db:                  db,
		config:              config,
		notificationService: notificationService,
	}
}

// CreateAdvanceIntent opens a Stripe PaymentIntent for the accepted quote
// amount so the buyer can pay the advance. The record must already be
// approved and unpaid.
func (s *PaymentService) CreateAdvanceIntent(recordID, buyerID uuid.UUID) (*PaymentIntentResponse, error) {
	var record models.DesignRequest
	if err := s.db.First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("design request not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if record.BuyerID != buyerID {
		return nil, errors.New("unauthorized to pay for this design request")
	}
	if record.Status != negotiation.StatusApproved {
		return nil, negotiation.ErrNotApproved
	}
	if record.Paid() {
		return nil, negotiation.ErrDuplicatePayment
	}
	if record.QuoteAmount == nil {
		return nil, errors.New("design request has no agreed amount")
	}

	// Stripe amounts are in the currency's smallest unit
	amountInPaise := record.QuoteAmount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInPaise),
		Currency: stripe.String(s.config.Payment.Currency),
	}
	params.AddMetadata("design_request_id", record.ID.String())
	params.AddMetadata("buyer_id", buyerID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntentResponse{
		ClientSecret: pi.ClientSecret,
		PaymentID:    pi.ID,
		Status:       string(pi.Status),
		Amount:       record.QuoteAmount.StringFixed(2),
		Currency:     s.config.Payment.Currency,
	}, nil
}

// RecordPayment consumes a verified payment event and stamps the advance on
// the record. It is idempotent under retry and duplicate webhook delivery:
// an already-paid record is returned unchanged with ErrDuplicatePayment,
// which callers treat as success.
func (s *PaymentService) RecordPayment(recordID uuid.UUID, event *PaymentEvent) (*models.DesignRequest, error) {
	if err := utils.ValidateStruct(event); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	amount, err := decimal.NewFromString(event.Amount)
	if err != nil {
		return nil, &negotiation.ValidationError{Field: "amount", Reason: "not a valid decimal"}
	}

	var record models.DesignRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("design request not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		if record.Paid() {
			return negotiation.ErrDuplicatePayment
		}
		if record.Status != negotiation.StatusApproved {
			return negotiation.ErrNotApproved
		}

		if err := s.verifyProviderReference(&record, event, amount); err != nil {
			return err
		}

		now := time.Now()
		entry := negotiation.Entry{
			Actor:   negotiation.ActorSystem,
			Action:  negotiation.ActionPaymentVerified,
			Message: fmt.Sprintf("advance of %s received via %s", amount.StringFixed(2), event.Method),
			At:      now,
		}

		var lastSeq int
		var history []models.NegotiationEntry
		if err := tx.Where("design_request_id = ?", recordID).
			Order("seq ASC").Find(&history).Error; err != nil {
			return fmt.Errorf("failed to load negotiation history: %w", err)
		}
		lastSeq = len(history)

		var last *negotiation.Entry
		if lastSeq > 0 {
			v := history[lastSeq-1].View()
			last = &v
		}
		if err := negotiation.CheckAppend(last, entry); err != nil {
			return err
		}

		if _, err := negotiation.Apply(record.Status, record.ActiveQuote(), entry); err != nil {
			return err
		}

		row := models.NegotiationEntry{
			DesignRequestID: recordID,
			Seq:             lastSeq + 1,
			Actor:           entry.Actor,
			Action:          entry.Action,
			Message:         entry.Message,
			CreatedAt:       now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to append negotiation entry: %w", err)
		}

		updates := map[string]interface{}{
			"advance_amount":    amount,
			"advance_method":    event.Method,
			"advance_status":    "verified",
			"advance_reference": event.ProviderReference,
			"advance_paid_at":   now,
			"version":           record.Version + 1,
		}
		// Paying the full agreed amount up front marks the request priority.
		if record.QuoteAmount != nil && amount.GreaterThanOrEqual(*record.QuoteAmount) {
			updates["is_priority"] = true
		}

		res := tx.Model(&models.DesignRequest{}).
			Where("id = ? AND version = ?", recordID, record.Version).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to stamp advance payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return negotiation.ErrVersionConflict
		}

		return nil
	})

	if errors.Is(err, negotiation.ErrDuplicatePayment) {
		// No-op: the existing payment stands.
		return &record, negotiation.ErrDuplicatePayment
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.First(&record, recordID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload design request: %w", err)
	}

	go func() {
		if s.notificationService != nil {
			s.notificationService.SendPaymentReceivedNotification(&record)
		}
	}()

	return &record, nil
}

// verifyProviderReference cross-checks the event against Stripe when a key
// is configured. Without a key (local development, tests) the event is
// trusted as already verified by the payment collaborator.
func (s *PaymentService) verifyProviderReference(record *models.DesignRequest, event *PaymentEvent, amount decimal.Decimal) error {
	if s.config.Payment.StripeSecretKey == "" {
		return nil
	}

	pi, err := paymentintent.Get(event.ProviderReference, nil)
	if err != nil {
		return fmt.Errorf("failed to verify payment intent: %w", err)
	}

	return matchPaymentIntent(pi, record.ID, amount)
}

// matchPaymentIntent checks that the fetched intent is settled, was created
// for this design request and covers the claimed amount. The metadata check
// stops a succeeded intent for one record being replayed against another.
func matchPaymentIntent(pi *stripe.PaymentIntent, recordID uuid.UUID, amount decimal.Decimal) error {
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("payment intent %s is not settled", pi.ID)
	}

	if pi.Metadata["design_request_id"] != recordID.String() {
		return fmt.Errorf("payment intent %s does not reference this design request", pi.ID)
	}

	expected := amount.Mul(decimal.NewFromInt(100)).IntPart()
	if pi.Amount != expected {
		return fmt.Errorf("payment intent amount mismatch: got %d, event says %d", pi.Amount, expected)
	}

	return nil
}
