// Package handlers exposes the lifecycle services over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"food-order/middleware"
	"food-order/policy"
	"food-order/repository"
	"food-order/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	store      repository.Store
	tokens     *policy.Tokens
	orders     *services.OrderService
	deliveries *services.DeliveryService
	payments   *services.PaymentService
	log        zerolog.Logger
}

func New(store repository.Store, tokens *policy.Tokens, orders *services.OrderService,
	deliveries *services.DeliveryService, payments *services.PaymentService, log zerolog.Logger) *Handler {
	return &Handler{
		store:      store,
		tokens:     tokens,
		orders:     orders,
		deliveries: deliveries,
		payments:   payments,
		log:        log.With().Str("component", "http").Logger(),
	}
}

// writeServiceError maps service and storage errors onto HTTP status codes
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrInvalidSignature):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrInvalidState):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrConflict), errors.Is(err, repository.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, services.ErrUpstream):
		status = http.StatusBadGateway
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("request_id", middleware.RequestID(c)).Str("path", c.FullPath()).Msg("request failed")
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// idParam parses a numeric path parameter, answering 400 when it is malformed
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func principal(c *gin.Context) policy.Principal {
	p, _ := middleware.CurrentPrincipal(c)
	return p
}
