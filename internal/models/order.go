// internal/models/order.go
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the sellable snapshot produced exactly once per design request.
// The unique index on DesignRequestID is the storage-level backstop for the
// conversion race: the second writer hits a duplicate key and re-reads.
type Order struct {
	BaseModel
	DesignRequestID  uuid.UUID       `json:"design_request_id" gorm:"type:uuid;not null;uniqueIndex"`
	BuyerID          uuid.UUID       `json:"buyer_id" gorm:"type:uuid;not null;index"`
	SellerID         *uuid.UUID      `json:"seller_id" gorm:"type:uuid;index"`
	DesignImageURL   string          `json:"design_image_url" gorm:"size:1024;not null"`
	Quantity         int             `json:"quantity" gorm:"not null"`
	Size             string          `json:"size" gorm:"size:50"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	PaymentReference string          `json:"payment_reference" gorm:"size:255"`
	IsPriority       bool            `json:"is_priority" gorm:"default:false"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(20);default:'in_production';index"`

	// Relationships
	Buyer User `json:"buyer,omitempty" gorm:"foreignKey:BuyerID"`
}
