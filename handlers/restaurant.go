package handlers

import (
	"errors"
	"net/http"

	"food-order/models"
	"food-order/repository"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ── Restaurant Management ────────────────────────────────────────────────────

type CreateRestaurantRequest struct {
	Name        string `json:"name" binding:"required"`
	Cuisine     string `json:"cuisine"`
	Address     string `json:"address" binding:"required"`
	Description string `json:"description"`
}

// UpdateRestaurantRequest carries only the fields an owner may change
type UpdateRestaurantRequest struct {
	Name        *string `json:"name"`
	Cuisine     *string `json:"cuisine"`
	Address     *string `json:"address"`
	Description *string `json:"description"`
	IsOpen      *bool   `json:"is_open"`
}

// CreateRestaurant lets a restaurant-role user create their restaurant
func (h *Handler) CreateRestaurant(c *gin.Context) {
	var req CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	restaurant := models.Restaurant{
		OwnerID:     principal(c).UserID,
		Name:        req.Name,
		Cuisine:     req.Cuisine,
		Address:     req.Address,
		Description: req.Description,
		IsOpen:      true,
	}
	if err := h.store.Repos().Restaurants.Create(c.Request.Context(), &restaurant); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "You already have a restaurant"})
			return
		}
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Restaurant created", "restaurant": restaurant})
}

// ownRestaurant loads the caller's restaurant or answers 404
func (h *Handler) ownRestaurant(c *gin.Context) (*models.Restaurant, bool) {
	restaurant, err := h.store.Repos().Restaurants.GetByOwner(c.Request.Context(), principal(c).UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No restaurant found for your account"})
			return nil, false
		}
		h.writeServiceError(c, err)
		return nil, false
	}
	return restaurant, true
}

// GetMyRestaurant fetches the restaurant owned by the logged-in user
func (h *Handler) GetMyRestaurant(c *gin.Context) {
	own, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	restaurant, err := h.store.Repos().Restaurants.GetWithMenu(c.Request.Context(), own.ID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

func (h *Handler) UpdateRestaurant(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	var req UpdateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	update := map[string]interface{}{}
	if req.Name != nil {
		update["name"] = *req.Name
	}
	if req.Cuisine != nil {
		update["cuisine"] = *req.Cuisine
	}
	if req.Address != nil {
		update["address"] = *req.Address
	}
	if req.Description != nil {
		update["description"] = *req.Description
	}
	if req.IsOpen != nil {
		update["is_open"] = *req.IsOpen
	}
	if len(update) > 0 {
		if err := h.store.Repos().Restaurants.Update(c.Request.Context(), restaurant, update); err != nil {
			h.writeServiceError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant updated", "restaurant": restaurant})
}

// DeleteRestaurant removes the caller's restaurant together with its menu.
// A restaurant with order history stays, since orders reference it.
func (h *Handler) DeleteRestaurant(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	err := h.store.Transaction(c.Request.Context(), func(r repository.Repositories) error {
		ordered, err := r.Restaurants.HasOrders(c.Request.Context(), restaurant.ID)
		if err != nil {
			return err
		}
		if ordered {
			return errHasOrders
		}
		if err := r.Menu.PurgeByRestaurant(c.Request.Context(), restaurant.ID); err != nil {
			return err
		}
		return r.Restaurants.Delete(c.Request.Context(), restaurant.ID)
	})
	if errors.Is(err, errHasOrders) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.log.Info().Uint("restaurant_id", restaurant.ID).Uint("owner_id", restaurant.OwnerID).Msg("restaurant deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant deleted"})
}

var errHasOrders = errors.New("restaurant has orders and cannot be deleted; close it instead")

// ── Menu Management ─────────────────────────────────────────────────────────

type CreateMenuItemRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	IsVeg       bool            `json:"is_veg"`
}

type UpdateMenuItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category"`
	IsAvailable *bool            `json:"is_available"`
	IsVeg       *bool            `json:"is_veg"`
}

var errPrice = errors.New("price must be greater than zero")

// AddMenuItem adds a new item to the restaurant's menu
func (h *Handler) AddMenuItem(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}

	var req CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if !req.Price.IsPositive() {
		badRequest(c, errPrice)
		return
	}

	item := models.MenuItem{
		RestaurantID: restaurant.ID,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price.Round(2),
		Category:     req.Category,
		IsVeg:        req.IsVeg,
		IsAvailable:  true,
	}
	if err := h.store.Repos().Menu.Create(c.Request.Context(), &item); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

// ownMenuItem loads a menu item and checks it belongs to the caller's restaurant
func (h *Handler) ownMenuItem(c *gin.Context) (*models.MenuItem, bool) {
	itemID, ok := idParam(c, "itemId")
	if !ok {
		return nil, false
	}
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return nil, false
	}
	item, err := h.store.Repos().Menu.Get(c.Request.Context(), itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Menu item not found"})
			return nil, false
		}
		h.writeServiceError(c, err)
		return nil, false
	}
	if item.RestaurantID != restaurant.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't own this menu item"})
		return nil, false
	}
	return item, true
}

// UpdateMenuItem updates a menu item (only by the owner)
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	item, ok := h.ownMenuItem(c)
	if !ok {
		return
	}
	var req UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	update := map[string]interface{}{}
	if req.Name != nil {
		update["name"] = *req.Name
	}
	if req.Description != nil {
		update["description"] = *req.Description
	}
	if req.Price != nil {
		if !req.Price.IsPositive() {
			badRequest(c, errPrice)
			return
		}
		update["price"] = req.Price.Round(2)
	}
	if req.Category != nil {
		update["category"] = *req.Category
	}
	if req.IsAvailable != nil {
		update["is_available"] = *req.IsAvailable
	}
	if req.IsVeg != nil {
		update["is_veg"] = *req.IsVeg
	}
	if len(update) > 0 {
		if err := h.store.Repos().Menu.Update(c.Request.Context(), item, update); err != nil {
			h.writeServiceError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeleteMenuItem removes a menu item. Orders keep their own price snapshot.
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	item, ok := h.ownMenuItem(c)
	if !ok {
		return
	}
	if err := h.store.Repos().Menu.Delete(c.Request.Context(), item.ID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}
