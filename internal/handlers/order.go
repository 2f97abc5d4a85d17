// internal/handlers/order.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/craftkart/craftkart-backend/internal/services"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
	}
}

// POST /design-requests/:id/convert
func (h *OrderHandler) Convert(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	recordID, ok := pathID(c, "id")
	if !ok {
		return
	}

	result, err := h.orderService.Convert(recordID, userID, currentUserType(c))
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	if result.AlreadyExisted {
		utils.SuccessResponse(c, gin.H{
			"message":         "Order already exists for this design request",
			"order":           result.Order,
			"already_existed": true,
		})
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":         "Order created",
		"order":           result.Order,
		"already_existed": false,
	})
}

// GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Get(orderID, userID, currentUserType(c))
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"order": order})
}

// GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	orders, total, err := h.orderService.List(userID, currentUserType(c), params)
	if err != nil {
		respondNegotiationError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(orders, total, params))
}
