package handlers

import (
	"net/http"
	"time"

	"food-order/models"
	"food-order/services"

	"github.com/gin-gonic/gin"
)

type AssignDeliveryRequest struct {
	OrderID             uint       `json:"order_id" binding:"required"`
	DriverID            uint       `json:"driver_id" binding:"required"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at"`
	Notes               string     `json:"notes"`
}

type UpdateDeliveryStatusRequest struct {
	Status models.DeliveryStatus `json:"status" binding:"required"`
	Notes  string                `json:"notes"`
}

// AssignDelivery hands a READY order to a driver (admin only)
func (h *Handler) AssignDelivery(c *gin.Context) {
	var req AssignDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	delivery, err := h.deliveries.AssignDelivery(c.Request.Context(), principal(c), services.AssignDeliveryCommand{
		OrderID:             req.OrderID,
		DriverID:            req.DriverID,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		Notes:               req.Notes,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Delivery assigned", "delivery": delivery})
}

// ListDeliveries returns every delivery for admins and the caller's own for drivers
func (h *Handler) ListDeliveries(c *gin.Context) {
	deliveries, err := h.deliveries.ListDeliveries(c.Request.Context(), principal(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(deliveries), "deliveries": deliveries})
}

func (h *Handler) GetDelivery(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.deliveries.GetDelivery(c.Request.Context(), principal(c), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivery": delivery})
}

// UpdateDeliveryStatus moves the caller's delivery along its lifecycle
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	delivery, err := h.deliveries.UpdateDeliveryStatus(c.Request.Context(), principal(c), services.UpdateDeliveryCommand{
		DeliveryID: id,
		Status:     req.Status,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Delivery status updated", "delivery": delivery})
}
