// internal/services/design_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftkart/craftkart-backend/internal/models"
	"github.com/craftkart/craftkart-backend/internal/negotiation"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

// DesignService owns the design-request lifecycle: submission, quoting and
// the buyer/seller negotiation rounds. Every mutation locks the record row,
// validates the transition against the negotiation rules and writes the
// ledger entry and the cached state in one transaction.
type DesignService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type SubmitDesignRequest struct {
	DesignImageURL  string   `json:"design_image_url" validate:"required,max=1024"`
	ReferenceImages []string `json:"reference_images,omitempty" validate:"max=5"`
	Description     string   `json:"description" validate:"required,min=10"`
	Size            string   `json:"size" validate:"required,max=50"`
	Quantity        int      `json:"quantity" validate:"required,min=1"`
	PreferredColor  string   `json:"preferred_color,omitempty" validate:"max=100"`
	AdditionalNotes string   `json:"additional_notes,omitempty"`
	SellerID        *string  `json:"seller_id,omitempty"`
}

type SubmitQuoteRequest struct {
	Amount  string `json:"amount" validate:"required,positive_amount"`
	Message string `json:"message,omitempty"`
}

type BuyerResponse string

const (
	BuyerResponseAccept        BuyerResponse = "accept"
	BuyerResponseCounterOffer  BuyerResponse = "counter_offer"
	BuyerResponseChangeRequest BuyerResponse = "change_request"
)

type RespondToQuoteRequest struct {
	Response BuyerResponse `json:"response" validate:"required"`
	Amount   string        `json:"amount,omitempty"`
	Message  string        `json:"message,omitempty"`
}

type SellerResponse string

const (
	SellerResponseQuote  SellerResponse = "quote"
	SellerResponseAccept SellerResponse = "accept"
	SellerResponseReject SellerResponse = "reject"
)

type RespondToNegotiationRequest struct {
	Response SellerResponse `json:"response" validate:"required"`
	Amount   string         `json:"amount,omitempty"`
	Message  string         `json:"message,omitempty"`
}

type DesignSearchParams struct {
	utils.PaginationParams
	Status *negotiation.Status `json:"status,omitempty"`
}

func NewDesignService(db *gorm.DB, notificationService *NotificationService) *DesignService {
	return &DesignService{
		db:                  db,
		notificationService: notificationService,
	}
}

func (s *DesignService) Submit(buyerID uuid.UUID, req *SubmitDesignRequest) (*models.DesignRequest, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Verify buyer exists and is active
	var buyer models.User
	if err := s.db.First(&buyer, buyerID).Error; err != nil {
		return nil, fmt.Errorf("buyer not found: %w", err)
	}

	if buyer.Status != models.UserStatusActive {
		return nil, errors.New("buyer account is not active")
	}

	record := &models.DesignRequest{
		BuyerID:         buyerID,
		DesignImageURL:  req.DesignImageURL,
		ReferenceImages: req.ReferenceImages,
		Description:     req.Description,
		Size:            req.Size,
		Quantity:        req.Quantity,
		PreferredColor:  req.PreferredColor,
		AdditionalNotes: req.AdditionalNotes,
		SubmittedAt:     time.Now(),
		Status:          negotiation.StatusPending,
		Version:         1,
	}

	if req.SellerID != nil {
		sellerID, err := uuid.Parse(*req.SellerID)
		if err != nil {
			return nil, &negotiation.ValidationError{Field: "seller_id", Reason: "not a valid id"}
		}

		var seller models.User
		if err := s.db.First(&seller, sellerID).Error; err != nil {
			return nil, errors.New("seller not found")
		}
		if seller.UserType != models.UserTypeSeller {
			return nil, &negotiation.ValidationError{Field: "seller_id", Reason: "not a seller account"}
		}
		record.SellerID = &sellerID
	}

	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to create design request: %w", err)
	}

	go s.notify(record, "design_request_submitted", "New custom design request")

	return record, nil
}

// SubmitQuote records a seller's price proposal. The first quote on an
// unassigned record claims it for that seller; after that only the assigned
// seller may act.
func (s *DesignService) SubmitQuote(recordID, sellerID uuid.UUID, req *SubmitQuoteRequest) (*models.DesignRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return nil, &negotiation.ValidationError{Field: "amount", Reason: "not a valid decimal"}
	}

	entry := negotiation.Entry{
		Actor:   negotiation.ActorSeller,
		Action:  negotiation.ActionQuote,
		Amount:  &amount,
		Message: req.Message,
		At:      time.Now(),
	}

	return s.transition(recordID, entry, func(tx *gorm.DB, record *models.DesignRequest) error {
		if record.SellerID == nil {
			record.SellerID = &sellerID
			return nil
		}
		if *record.SellerID != sellerID {
			return errors.New("unauthorized to quote this design request")
		}
		return nil
	})
}

func (s *DesignService) RespondToQuote(recordID, buyerID uuid.UUID, req *RespondToQuoteRequest) (*models.DesignRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	entry := negotiation.Entry{
		Actor:   negotiation.ActorBuyer,
		Message: req.Message,
		At:      time.Now(),
	}

	switch req.Response {
	case BuyerResponseAccept:
		entry.Action = negotiation.ActionAccept
	case BuyerResponseCounterOffer:
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, &negotiation.ValidationError{Field: "amount", Reason: "not a valid decimal"}
		}
		entry.Action = negotiation.ActionCounterOffer
		entry.Amount = &amount
	case BuyerResponseChangeRequest:
		entry.Action = negotiation.ActionChangeRequest
	default:
		return nil, &negotiation.ValidationError{Field: "response", Reason: "must be accept, counter_offer or change_request"}
	}

	return s.transition(recordID, entry, func(tx *gorm.DB, record *models.DesignRequest) error {
		if record.BuyerID != buyerID {
			return errors.New("unauthorized to respond to this design request")
		}
		return nil
	})
}

func (s *DesignService) RespondToNegotiation(recordID, sellerID uuid.UUID, req *RespondToNegotiationRequest) (*models.DesignRequest, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	entry := negotiation.Entry{
		Actor:   negotiation.ActorSeller,
		Message: req.Message,
		At:      time.Now(),
	}

	switch req.Response {
	case SellerResponseQuote:
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, &negotiation.ValidationError{Field: "amount", Reason: "not a valid decimal"}
		}
		entry.Action = negotiation.ActionQuote
		entry.Amount = &amount
	case SellerResponseAccept:
		entry.Action = negotiation.ActionAccept
	case SellerResponseReject:
		entry.Action = negotiation.ActionReject
	default:
		return nil, &negotiation.ValidationError{Field: "response", Reason: "must be quote, accept or reject"}
	}

	return s.transition(recordID, entry, func(tx *gorm.DB, record *models.DesignRequest) error {
		if record.SellerID == nil || *record.SellerID != sellerID {
			return errors.New("unauthorized to respond to this design request")
		}
		return nil
	})
}

// transition is the single write path for negotiation actions. It locks the
// record, validates the entry against the transition rules and the ledger
// ordering, then appends the entry and updates the cached status/quote under
// a version compare-and-swap. A failed swap surfaces ErrVersionConflict and
// leaves the record untouched.
func (s *DesignService) transition(recordID uuid.UUID, e negotiation.Entry, guard func(*gorm.DB, *models.DesignRequest) error) (*models.DesignRequest, error) {
	var record models.DesignRequest
	var newStatus negotiation.Status

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&record, recordID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("design request not found")
			}
			return fmt.Errorf("database error: %w", err)
		}

		if err := guard(tx, &record); err != nil {
			return err
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
		if err := negotiation.CheckAppend(last, e); err != nil {
			return err
		}

		next, err := negotiation.Apply(record.Status, record.ActiveQuote(), e)
		if err != nil {
			return err
		}
		newStatus = next

		row := models.NegotiationEntry{
			DesignRequestID: recordID,
			Seq:             len(history) + 1,
			Actor:           e.Actor,
			Action:          e.Action,
			Amount:          e.Amount,
			Message:         e.Message,
			CreatedAt:       e.At,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to append negotiation entry: %w", err)
		}

		updates := map[string]interface{}{
			"status":  next,
			"version": record.Version + 1,
		}
		if record.SellerID != nil {
			updates["seller_id"] = *record.SellerID
		}
		if e.Action == negotiation.ActionQuote || e.Action == negotiation.ActionCounterOffer {
			updates["quote_amount"] = *e.Amount
			updates["quote_message"] = e.Message
			updates["quoted_by"] = e.Actor
			updates["quoted_at"] = e.At
		}
		if e.Message != "" {
			switch e.Actor {
			case negotiation.ActorBuyer:
				updates["customer_response"] = e.Message
				updates["customer_responded_at"] = e.At
			case negotiation.ActorSeller:
				updates["seller_response"] = e.Message
				updates["seller_responded_at"] = e.At
			}
		}

		res := tx.Model(&models.DesignRequest{}).
			Where("id = ? AND version = ?", recordID, record.Version).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update design request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return negotiation.ErrVersionConflict
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	// Reload with history for the response
	if err := s.db.Preload("NegotiationHistory", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).First(&record, recordID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload design request: %w", err)
	}

	go s.notify(&record, "negotiation_update", fmt.Sprintf("Design request is now %s", newStatus))

	return &record, nil
}

func (s *DesignService) Get(recordID uuid.UUID, userID uuid.UUID, userType models.UserType) (*models.DesignRequest, error) {
	var record models.DesignRequest
	if err := s.db.Preload("NegotiationHistory", func(db *gorm.DB) *gorm.DB {
		return db.Order("seq ASC")
	}).Preload("Order").First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("design request not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !canView(&record, userID, userType) {
		return nil, errors.New("unauthorized to view this design request")
	}

	return &record, nil
}

// History returns the full ledger in insertion order; the ledger is always
// read whole per record.
func (s *DesignService) History(recordID uuid.UUID, userID uuid.UUID, userType models.UserType) ([]models.NegotiationEntry, error) {
	var record models.DesignRequest
	if err := s.db.First(&record, recordID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("design request not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !canView(&record, userID, userType) {
		return nil, errors.New("unauthorized to view this design request")
	}

	var history []models.NegotiationEntry
	if err := s.db.Where("design_request_id = ?", recordID).
		Order("seq ASC").Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to load negotiation history: %w", err)
	}

	return history, nil
}

// ReplayState rebuilds status and quote from the ledger alone. Reads and
// audits use this to confirm the cached fields match the history.
func (s *DesignService) ReplayState(recordID uuid.UUID) (negotiation.Status, *negotiation.Quote, error) {
	var history []models.NegotiationEntry
	if err := s.db.Where("design_request_id = ?", recordID).
		Order("seq ASC").Find(&history).Error; err != nil {
		return "", nil, fmt.Errorf("failed to load negotiation history: %w", err)
	}

	return negotiation.Replay(models.LedgerView(history))
}

// List returns the caller's design requests: a buyer sees their submissions,
// a seller sees records assigned to them plus unclaimed ones awaiting a
// first quote, an admin sees everything.
func (s *DesignService) List(userID uuid.UUID, userType models.UserType, params DesignSearchParams) ([]models.DesignRequest, int64, error) {
	query := s.db.Model(&models.DesignRequest{})

	switch userType {
	case models.UserTypeBuyer:
		query = query.Where("buyer_id = ?", userID)
	case models.UserTypeSeller:
		query = query.Where("seller_id = ? OR (seller_id IS NULL AND status = ?)", userID, negotiation.StatusPending)
	case models.UserTypeAdmin:
		// no scoping
	default:
		return nil, 0, errors.New("unknown user type")
	}

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count design requests: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "status", "quote_amount"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var records []models.DesignRequest
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch design requests: %w", err)
	}

	return records, total, nil
}

func canView(record *models.DesignRequest, userID uuid.UUID, userType models.UserType) bool {
	if userType == models.UserTypeAdmin {
		return true
	}
	if record.BuyerID == userID {
		return true
	}
	if record.SellerID != nil && *record.SellerID == userID {
		return true
	}
	// Unclaimed pending requests are visible to sellers browsing for work.
	if userType == models.UserTypeSeller && record.SellerID == nil {
		return true
	}
	return false
}

func (s *DesignService) notify(record *models.DesignRequest, eventType, title string) {
	if s.notificationService != nil {
		s.notificationService.SendDesignRequestNotification(record, eventType, title)
	}
}
