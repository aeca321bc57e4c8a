package handlers

import (
	"errors"
	"io"
	"net/http"

	"food-order/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// maxWebhookBody bounds the signed payload read from the provider. Bigger bodies are
// refused with 413 rather than cut short, which would only fail the signature check.
const maxWebhookBody = 512 << 10

type CreateIntentRequest struct {
	OrderID uint `json:"order_id" binding:"required"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Reason string           `json:"reason"`
}

// CreatePaymentIntent opens a provider payment for the caller's order
func (h *Handler) CreatePaymentIntent(c *gin.Context) {
	var req CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.payments.CreatePaymentIntent(c.Request.Context(), principal(c), req.OrderID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) ListPayments(c *gin.Context) {
	list, err := h.payments.ListPayments(c.Request.Context(), principal(c))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "payments": list})
}

// CreateRefund gives back all or part of a settled payment (admin only)
func (h *Handler) CreateRefund(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	refund, err := h.payments.CreateRefund(c.Request.Context(), principal(c), services.RefundCommand{
		PaymentID: id,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Refund issued", "refund": refund})
}

// PaymentWebhook verifies and applies a provider event. The raw body is needed for the
// signature, so it is read before any JSON binding.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			h.log.Warn().Int64("limit", tooBig.Limit).Msg("provider event body too large")
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
			return
		}
		badRequest(c, err)
		return
	}
	res, err := h.payments.HandleProviderEvent(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "event": res})
}
