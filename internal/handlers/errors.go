// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/craftkart/craftkart-backend/internal/negotiation"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

// respondNegotiationError translates service-layer errors into the API
// envelope. Business-rule rejections come back as 400 with a stable code so
// clients can branch without parsing messages; a lost version race is a 409
// the client resolves by re-reading and retrying.
func respondNegotiationError(c *gin.Context, err error) {
	var validationErr *negotiation.ValidationError
	if errors.As(err, &validationErr) {
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Error(), gin.H{
			"field": validationErr.Field,
		})
		return
	}

	var transitionErr *negotiation.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_TRANSITION", transitionErr.Error(), gin.H{
			"state":  transitionErr.State,
			"actor":  transitionErr.Actor,
			"action": transitionErr.Action,
		})
		return
	}

	var noOpErr *negotiation.NoOpOfferError
	if errors.As(err, &noOpErr) {
		utils.ErrorResponse(c, http.StatusBadRequest, "NO_OP_OFFER", noOpErr.Error(), nil)
		return
	}

	var orderErr *negotiation.OutOfOrderError
	if errors.As(err, &orderErr) {
		utils.ConflictResponse(c, orderErr.Error())
		return
	}

	switch {
	case errors.Is(err, negotiation.ErrNotApproved):
		utils.ErrorResponse(c, http.StatusBadRequest, "NOT_APPROVED", "Design request must be approved first", nil)
	case errors.Is(err, negotiation.ErrPaymentRequired):
		utils.ErrorResponse(c, http.StatusPaymentRequired, "PAYMENT_REQUIRED", "Advance payment is required before conversion", nil)
	case errors.Is(err, negotiation.ErrVersionConflict):
		utils.ConflictResponse(c, "Design request was modified concurrently, please retry")
	case strings.Contains(err.Error(), "validation failed"):
		utils.BadRequestResponse(c, err.Error(), nil)
	case strings.Contains(err.Error(), "not found"):
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case strings.Contains(err.Error(), "unauthorized"):
		utils.ForbiddenResponse(c, err.Error())
	default:
		utils.InternalErrorResponse(c, "")
	}
}
