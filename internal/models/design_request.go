// internal/models/design_request.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/craftkart/craftkart-backend/internal/negotiation"
)

// DesignRequest is a buyer's bespoke-product submission and the unit every
// negotiation, payment and conversion operation locks on. The submission
// fields are immutable after creation; status and the cached quote move only
// through the negotiation transition rules, in the same transaction as the
// ledger append.
type DesignRequest struct {
	BaseModel
	BuyerID  uuid.UUID  `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID *uuid.UUID `json:"seller_id" gorm:"type:uuid;index"`

	// Submission fields
	DesignImageURL  string         `json:"design_image_url" gorm:"size:1024;not null"`
	ReferenceImages pq.StringArray `json:"reference_images,omitempty" gorm:"type:text[]"`
	Description     string         `json:"description" gorm:"type:text;not null"`
	Size            string         `json:"size" gorm:"size:50;not null"`
	Quantity        int            `json:"quantity" gorm:"not null"`
	PreferredColor  string         `json:"preferred_color" gorm:"size:100"`
	AdditionalNotes string         `json:"additional_notes,omitempty" gorm:"type:text"`
	SubmittedAt     time.Time      `json:"submitted_at" gorm:"not null"`

	Status  negotiation.Status `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Version int64              `json:"version" gorm:"not null;default:1"`

	// Cached active offer, derivable by replaying NegotiationHistory.
	QuoteAmount  *decimal.Decimal  `json:"quote_amount,omitempty" gorm:"type:decimal(10,2)"`
	QuoteMessage string            `json:"quote_message,omitempty" gorm:"type:text"`
	QuotedBy     negotiation.Actor `json:"quoted_by,omitempty" gorm:"type:varchar(10)"`
	QuotedAt     *time.Time        `json:"quoted_at,omitempty"`

	// Most recent free-text message from each side. Informational only.
	CustomerResponse    string     `json:"customer_response,omitempty" gorm:"type:text"`
	CustomerRespondedAt *time.Time `json:"customer_responded_at,omitempty"`
	SellerResponse      string     `json:"seller_response,omitempty" gorm:"type:text"`
	SellerRespondedAt   *time.Time `json:"seller_responded_at,omitempty"`

	// Advance payment stamp, set exactly once by the payment gate.
	AdvanceAmount    *decimal.Decimal `json:"advance_amount,omitempty" gorm:"type:decimal(10,2)"`
	AdvanceMethod    string           `json:"advance_method,omitempty" gorm:"size:50"`
	AdvanceStatus    string           `json:"advance_status,omitempty" gorm:"size:20"`
	AdvanceReference string           `json:"advance_reference,omitempty" gorm:"size:255;index"`
	AdvancePaidAt    *time.Time       `json:"advance_paid_at,omitempty"`

	IsPriority bool `json:"is_priority" gorm:"default:false"`

	// Set if and only if status is completed. Once set it is permanent and
	// conversion short-circuits to the existing order.
	OrderID *uuid.UUID `json:"order_id,omitempty" gorm:"type:uuid;index"`

	// Relationships
	Buyer              User               `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
	Seller             *User              `json:"seller,omitempty" gorm:"foreignKey:SellerID"`
	Order              *Order             `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	NegotiationHistory []NegotiationEntry `json:"negotiation_history,omitempty" gorm:"foreignKey:DesignRequestID"`
}

// Paid reports whether a verified advance payment has been stamped.
func (d *DesignRequest) Paid() bool {
	return d.AdvanceAmount != nil
}

// ActiveQuote converts the cached offer fields to the negotiation view.
func (d *DesignRequest) ActiveQuote() *negotiation.Quote {
	if d.QuoteAmount == nil {
		return nil
	}
	q := &negotiation.Quote{
		Amount:     *d.QuoteAmount,
		Message:    d.QuoteMessage,
		ProposedBy: d.QuotedBy,
	}
	if d.QuotedAt != nil {
		q.At = *d.QuotedAt
	}
	return q
}

// NegotiationEntry is one append-only ledger row scoped to a design request.
// Rows are never updated or deleted; Seq fixes insertion order.
type NegotiationEntry struct {
	ID              uuid.UUID          `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	DesignRequestID uuid.UUID          `json:"design_request_id" gorm:"type:uuid;not null;index:idx_negotiation_entries_request_seq,unique"`
	Seq             int                `json:"seq" gorm:"not null;index:idx_negotiation_entries_request_seq,unique"`
	Actor           negotiation.Actor  `json:"actor" gorm:"type:varchar(10);not null"`
	Action          negotiation.Action `json:"action" gorm:"type:varchar(20);not null"`
	Amount          *decimal.Decimal   `json:"amount,omitempty" gorm:"type:decimal(10,2)"`
	Message         string             `json:"message,omitempty" gorm:"type:text"`
	CreatedAt       time.Time          `json:"created_at"`
}

func (NegotiationEntry) TableName() string {
	return "negotiation_entries"
}

// View converts the persisted row to the pure replay representation.
func (e *NegotiationEntry) View() negotiation.Entry {
	return negotiation.Entry{
		Actor:   e.Actor,
		Action:  e.Action,
		Amount:  e.Amount,
		Message: e.Message,
		At:      e.CreatedAt,
	}
}

// LedgerView converts an ordered history slice for negotiation.Replay.
func LedgerView(entries []NegotiationEntry) []negotiation.Entry {
	out := make([]negotiation.Entry, len(entries))
	for i := range entries {
		out[i] = entries[i].View()
	}
	return out
}
