// internal/handlers/design_request.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/craftkart/craftkart-backend/internal/models"
	"github.com/craftkart/craftkart-backend/internal/negotiation"
	"github.com/craftkart/craftkart-backend/internal/services"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

type DesignRequestHandler struct {
	designService  *services.DesignService
	storageService *services.StorageService
}

func NewDesignRequestHandler(designService *services.DesignService, storageService *services.StorageService) *DesignRequestHandler {
	return &DesignRequestHandler{
		designService:  designService,
		storageService: storageService,
	}
}

// POST /design-requests
func (h *DesignRequestHandler) Submit(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.SubmitDesignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	record, err := h.designService.Submit(buyerID, &req)
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":        "Design request submitted",
		"design_request": record,
	})
}

// PUT /design-requests/:id/quote
func (h *DesignRequestHandler) SubmitQuote(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.SubmitQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	record, err := h.designService.SubmitQuote(recordID, sellerID, &req)
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":        "Quote submitted",
		"design_request": record,
	})
}

// PUT /design-requests/:id/respond
func (h *DesignRequestHandler) RespondToQuote(c *gin.Context) {
	buyerID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.RespondToQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	record, err := h.designService.RespondToQuote(recordID, buyerID, &req)
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":        "Response recorded",
		"design_request": record,
	})
}

// PUT /design-requests/:id/negotiate
func (h *DesignRequestHandler) RespondToNegotiation(c *gin.Context) {
	sellerID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req services.RespondToNegotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	record, err := h.designService.RespondToNegotiation(recordID, sellerID, &req)
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":        "Response recorded",
		"design_request": record,
	})
}

// GET /design-requests/:id
func (h *DesignRequestHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	record, err := h.designService.Get(recordID, userID, currentUserType(c))
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"design_request": record})
}

// GET /design-requests/:id/history
func (h *DesignRequestHandler) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	history, err := h.designService.History(recordID, userID, currentUserType(c))
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"history": history})
}

// GET /design-requests
func (h *DesignRequestHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := services.DesignSearchParams{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if statusStr := c.Query("status"); statusStr != "" {
		status := negotiation.Status(statusStr)
		params.Status = &status
	}

	records, total, err := h.designService.List(userID, currentUserType(c), params)
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(records, total, params.PaginationParams))
}

// POST /design-requests/upload-image
func (h *DesignRequestHandler) UploadImage(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "No file provided", err.Error())
		return
	}
	defer file.Close()

	if err := h.storageService.ValidateImage(file); err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	options := h.storageService.GetDefaultUploadOptions("designs")
	result, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.SuccessResponse(c, gin.H{"upload": result})
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	return userID, true
}

func currentUserType(c *gin.Context) models.UserType {
	userType, _ := utils.GetUserTypeFromContext(c)
	return models.UserType(userType)
}

func pathID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
