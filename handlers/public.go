package handlers

import (
	"net/http"

	"food-order/models"
	"food-order/repository"
	"food-order/statemachine"

	"github.com/gin-gonic/gin"
)

// ListRestaurants returns restaurants, optionally filtered by cuisine, name or open flag
func (h *Handler) ListRestaurants(c *gin.Context) {
	restaurants, err := h.store.Repos().Restaurants.List(c.Request.Context(), repository.RestaurantFilter{
		Cuisine:  c.Query("cuisine"),
		Search:   c.Query("search"),
		OpenOnly: c.Query("open") == "true",
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(restaurants),
		"restaurants": restaurants,
	})
}

func (h *Handler) GetRestaurant(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	restaurant, err := h.store.Repos().Restaurants.GetWithMenu(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

// GetMenu returns the menu for a specific restaurant
func (h *Handler) GetMenu(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	repos := h.store.Repos()
	restaurant, err := repos.Restaurants.Get(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	items, err := repos.Menu.ListByRestaurant(c.Request.Context(), id, repository.MenuFilter{
		Category: c.Query("category"),
		VegOnly:  c.Query("is_veg") == "true",
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"restaurant": restaurant.Name,
		"count":      len(items),
		"menu":       items,
	})
}

// GetStateMachineInfo documents the order, delivery and payment lifecycles
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"order":           statemachine.GetAllTransitions(),
		"delivery":        statemachine.DeliveryTransitions(),
		"payment":         statemachine.PaymentTransitions(),
		"terminal_states": []models.OrderStatus{models.StatusDelivered, models.StatusCancelled},
	})
}
