package handlers

import (
	"net/http"
	"time"

	"food-order/models"
	"food-order/services"

	"github.com/gin-gonic/gin"
)

type PlaceOrderRequest struct {
	RestaurantID    uint   `json:"restaurant_id" binding:"required"`
	DeliveryAddress string `json:"delivery_address" binding:"required"`
	Notes           string `json:"notes"`
	Items           []struct {
		MenuItemID uint `json:"menu_item_id" binding:"required"`
		Quantity   int  `json:"quantity" binding:"required,min=1"`
	} `json:"items" binding:"required,min=1"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type UpdateOrderStatusRequest struct {
	Status           models.OrderStatus `json:"status" binding:"required"`
	EstimatedReadyAt *time.Time         `json:"estimated_ready_at"`
	Note             string             `json:"note"`
}

// PlaceOrder creates a new order (customer only)
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cmd := services.PlaceOrderCommand{
		RestaurantID:    req.RestaurantID,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
	}
	for _, it := range req.Items {
		cmd.Items = append(cmd.Items, services.ItemRequest{MenuItemID: it.MenuItemID, Quantity: it.Quantity})
	}
	order, err := h.orders.PlaceOrder(c.Request.Context(), principal(c), cmd)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"order":   order,
		"total":   order.Total(),
	})
}

// ListOrders returns the orders visible to the caller with a per-status summary
func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), principal(c), models.OrderStatus(c.Query("status")))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	summary := map[models.OrderStatus]int{}
	for _, o := range orders {
		summary[o.Status]++
	}
	c.JSON(http.StatusOK, gin.H{
		"order_summary": summary,
		"count":         len(orders),
		"orders":        orders,
	})
}

// GetOrder returns a single order's full detail with history
func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":           order,
		"total":           order.Total(),
		"minutes_elapsed": int(time.Since(order.CreatedAt).Minutes()),
	})
}

// CancelOrder serves both the customer and the admin cancel routes
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	order, err := h.orders.CancelOrder(c.Request.Context(), principal(c), id, req.Reason)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
}

// UpdateOrderStatus handles the restaurant's state transitions
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order, err := h.orders.UpdateOrderStatus(c.Request.Context(), principal(c), services.UpdateStatusCommand{
		OrderID:          id,
		Status:           req.Status,
		EstimatedReadyAt: req.EstimatedReadyAt,
		Note:             req.Note,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Order status updated",
		"order_id":       order.ID,
		"current_status": order.Status,
	})
}
