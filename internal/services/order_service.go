// internal/services/order_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftkart/craftkart-backend/internal/config"
	"github.com/craftkart/craftkart-backend/internal/models"
	"github.com/craftkart/craftkart-backend/internal/negotiation"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

// OrderService performs the one-time conversion of an approved, paid design
// request into a sellable order. The conversion is idempotent by design:
// a set order_id short-circuits to the existing order, and the unique index
// on orders.design_request_id catches the racing writer that got past the
// check.
type OrderService struct {
	db                  *gorm.DB
	config              *config.Config
	notificationService *NotificationService
}

// ConversionResult carries the order and whether it pre-existed, so every
// UI affordance that triggers conversion can report the same outcome.
type ConversionResult struct {
	Order          *models.Order `json:"order"`
	AlreadyExisted bool          `json:"already_existed"`
}

// errConversionRaced signals that another writer created the order between
// the order_id check and the insert; the caller re-reads after rollback.
var errConversionRaced = errors.New("conversion raced with another writer")

func NewOrderService(db *gorm.DB, config *config.Config, notificationService *NotificationService) *OrderService {
	return &OrderService{
		db:                  db,
		config:              config,
		notificationService: notificationService,
	}
}

func (s *OrderService) Convert(recordID uuid.UUID, actorID uuid.UUID, actorType models.UserType) (*ConversionResult, error) {
	var result ConversionResult
	var record models.DesignRequest

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("design request not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		// Only the assigned seller or an admin may convert. Buyers never
		// trigger conversion, whatever record they hold.
		switch actorType {
		case models.UserTypeSeller:
			if record.SellerID == nil || *record.SellerID != actorID {
				return errors.New("unauthorized to convert this design request")
			}
		case models.UserTypeAdmin:
			// full access
		default:
			return errors.New("unauthorized to convert this design request")
		}

		// Idempotent short-circuit: conversion already happened.
		if record.OrderID != nil {
			var existing models.Order
			if err := tx.First(&existing, *record.OrderID).Error; err != nil {
				return fmt.Errorf("failed to load existing order: %w", err)
			}
			result.Order = &existing
			result.AlreadyExisted = true
			return nil
		}

		if record.Status != negotiation.StatusApproved {
			return negotiation.ErrNotApproved
		}
		if s.config.Payment.RequireAdvance && !record.Paid() {
			return negotiation.ErrPaymentRequired
		}
		if record.QuoteAmount == nil {
			return errors.New("design request has no agreed amount")
		}

		now := time.Now()
		entry := negotiation.Entry{
			Actor:  actorForConvert(actorType),
			Action: negotiation.ActionConvert,
			At:     now,
		}

		var history []models.NegotiationEntry
		if err := tx.Where("design_request_id = ?", recordID).
			Order("seq ASC").Find(&history).Error; err != nil {
			return fmt.Errorf("failed to load negotiation history: %w", err)
		}

		var last *negotiation.Entry
		if len(history) > 0 {
			v := history[len(history)-1].View()
			last = &v
		}
		if err := negotiation.CheckAppend(last, entry); err != nil {
			return err
		}

		next, err := negotiation.Apply(record.Status, record.ActiveQuote(), entry)
		if err != nil {
			return err
		}

		order := &models.Order{
			DesignRequestID:  record.ID,
			BuyerID:          record.BuyerID,
			SellerID:         record.SellerID,
			DesignImageURL:   record.DesignImageURL,
			Quantity:         record.Quantity,
			Size:             record.Size,
			Amount:           *record.QuoteAmount,
			PaymentReference: record.AdvanceReference,
			IsPriority:       record.IsPriority,
			Status:           models.OrderStatusProduction,
		}

		if err := tx.Create(order).Error; err != nil {
			// The unique index on design_request_id is the backstop for a
			// racing conversion that slipped past the order_id check. The
			// failed INSERT aborts this transaction, so the re-read has to
			// happen outside it.
			if isUniqueViolation(err) {
				return errConversionRaced
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		row := models.NegotiationEntry{
			DesignRequestID: recordID,
			Seq:             len(history) + 1,
			Actor:           entry.Actor,
			Action:          entry.Action,
			CreatedAt:       now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to append negotiation entry: %w", err)
		}

		res := tx.Model(&models.DesignRequest{}).
			Where("id = ? AND version = ?", recordID, record.Version).
			Updates(map[string]interface{}{
				"status":   next,
				"order_id": order.ID,
				"version":  record.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update design request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return negotiation.ErrVersionConflict
		}

		result.Order = order
		result.AlreadyExisted = false
		return nil
	})

	if errors.Is(err, errConversionRaced) {
		var existing models.Order
		if ferr := s.db.Where("design_request_id = ?", recordID).
			First(&existing).Error; ferr != nil {
			return nil, fmt.Errorf("failed to load existing order: %w", ferr)
		}
		result.Order = &existing
		result.AlreadyExisted = true
		return &result, nil
	}
	if err != nil {
		return nil, err
	}

	if !result.AlreadyExisted {
		go func() {
			if s.notificationService != nil {
				s.notificationService.SendOrderCreatedNotification(&record, result.Order)
			}
		}()
	}

	return &result, nil
}

func (s *OrderService) Get(orderID uuid.UUID, userID uuid.UUID, userType models.UserType) (*models.Order, error) {
	var order models.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("order not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	authorized := userType == models.UserTypeAdmin ||
		order.BuyerID == userID ||
		(order.SellerID != nil && *order.SellerID == userID)
	if !authorized {
		return nil, errors.New("unauthorized to view this order")
	}

	return &order, nil
}

func (s *OrderService) List(userID uuid.UUID, userType models.UserType, params utils.PaginationParams) ([]models.Order, int64, error) {
	query := s.db.Model(&models.Order{})

	switch userType {
	case models.UserTypeBuyer:
		query = query.Where("buyer_id = ?", userID)
	case models.UserTypeSeller:
		query = query.Where("seller_id = ?", userID)
	case models.UserTypeAdmin:
		// no scoping
	default:
		return nil, 0, errors.New("unknown user type")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	allowedSortFields := []string{"created_at", "amount", "status"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch orders: %w", err)
	}

	return orders, total, nil
}

func actorForConvert(userType models.UserType) negotiation.Actor {
	if userType == models.UserTypeSeller {
		return negotiation.ActorSeller
	}
	return negotiation.ActorSystem
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// pgx wraps the SQLSTATE into the message; 23505 is unique_violation.
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
