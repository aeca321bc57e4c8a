package handlers

import (
	"net/http"

	"food-order/models"
	"food-order/repository"

	"github.com/gin-gonic/gin"
)

type ChangeRoleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

// ListUsers returns all users, optionally filtered by role
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.Repos().Users.List(c.Request.Context(), models.UserRole(c.Query("role")))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// ChangeUserRole lets an admin move a user to another role
func (h *Handler) ChangeUserRole(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: CUSTOMER, RESTAURANT, DELIVERY or ADMIN"})
		return
	}
	if id == principal(c).UserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "You cannot change your own role"})
		return
	}
	users := h.store.Repos().Users
	if err := users.UpdateRole(c.Request.Context(), id, req.Role); err != nil {
		h.writeServiceError(c, err)
		return
	}
	user, err := users.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.log.Info().Uint("user_id", id).Str("role", string(req.Role)).Uint("by", principal(c).UserID).Msg("role changed")
	c.JSON(http.StatusOK, gin.H{"message": "Role updated", "user": user})
}

// AdminListRestaurants returns every restaurant, open or closed
func (h *Handler) AdminListRestaurants(c *gin.Context) {
	restaurants, err := h.store.Repos().Restaurants.List(c.Request.Context(), repository.RestaurantFilter{})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}
