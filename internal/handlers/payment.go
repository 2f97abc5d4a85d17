// internal/handlers/payment.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/craftkart/craftkart-backend/internal/negotiation"
	"github.com/craftkart/craftkart-backend/internal/services"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// POST /design-requests/:id/payment-intent
func (h *PaymentHandler) CreateAdvanceIntent(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	intent, err := h.paymentService.CreateAdvanceIntent(recordID, buyerID)
	if err != nil {
		if errors.Is(err, negotiation.ErrDuplicatePayment) {
			utils.ErrorResponse(c, http.StatusBadRequest, "ALREADY_PAID", "Advance payment already recorded", nil)
			return
		}
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"payment_intent": intent})
}

// POST /design-requests/:id/payments
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var event services.PaymentEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&event)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	record, err := h.paymentService.RecordPayment(recordID, &event)
	if errors.Is(err, negotiation.ErrDuplicatePayment) {
		// Retries and duplicate webhook deliveries succeed with the
		// original payment.
		utils.SuccessResponse(c, gin.H{
			"message":        "Advance payment already recorded",
			"design_request": record,
		})
		return
	}
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":        "Advance payment recorded",
		"design_request": record,
	})
}
