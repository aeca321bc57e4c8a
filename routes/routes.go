package routes

import (
	"net/http"

	"food-order/handlers"
	"food-order/middleware"
	"food-order/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler, auth middleware.Authenticator) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Food Order Lifecycle API",
		})
	})

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Auth
		public.POST("/auth/register", h.Register)
		public.POST("/auth/login", h.Login)

		// Restaurants & menus (no auth needed)
		public.GET("/restaurants", h.ListRestaurants)
		public.GET("/restaurants/:id", h.GetRestaurant)
		public.GET("/restaurants/:id/menu", h.GetMenu)

		public.GET("/state-machine", h.GetStateMachineInfo)

		// Provider callbacks carry a signature instead of a token
		public.POST("/payments/webhook", h.PaymentWebhook)
	}

	// ── Authenticated routes ───────────────────────────────────────
	authed := r.Group("/api")
	authed.Use(middleware.AuthRequired(auth))
	{
		authed.GET("/profile", h.GetProfile)
		authed.PUT("/profile", h.UpdateProfile)
		authed.GET("/orders", h.ListOrders)
		authed.GET("/orders/:id", h.GetOrder)
		authed.GET("/payments",
			middleware.RoleRequired(models.RoleCustomer, models.RoleRestaurant, models.RoleAdmin), h.ListPayments)
	}

	// ── Customer routes ────────────────────────────────────────────
	customer := r.Group("/api/customer")
	customer.Use(middleware.AuthRequired(auth), middleware.RoleRequired(models.RoleCustomer))
	{
		customer.POST("/orders", h.PlaceOrder)
		customer.PUT("/orders/:id/cancel", h.CancelOrder)
		customer.POST("/payments/intent", h.CreatePaymentIntent)
	}

	// ── Restaurant owner routes ────────────────────────────────────
	restaurant := r.Group("/api/restaurant")
	restaurant.Use(middleware.AuthRequired(auth), middleware.RoleRequired(models.RoleRestaurant))
	{
		// Restaurant management
		restaurant.POST("/", h.CreateRestaurant)
		restaurant.GET("/", h.GetMyRestaurant)
		restaurant.PUT("/", h.UpdateRestaurant)
		restaurant.DELETE("/", h.DeleteRestaurant)

		// Menu management
		restaurant.POST("/menu", h.AddMenuItem)
		restaurant.PUT("/menu/:itemId", h.UpdateMenuItem)
		restaurant.DELETE("/menu/:itemId", h.DeleteMenuItem)

		restaurant.PUT("/orders/:id/status", h.UpdateOrderStatus)
	}

	// ── Driver routes ──────────────────────────────────────────────
	driver := r.Group("/api/driver")
	driver.Use(middleware.AuthRequired(auth), middleware.RoleRequired(models.RoleDelivery))
	{
		driver.GET("/deliveries", h.ListDeliveries)
		driver.GET("/deliveries/:id", h.GetDelivery)
		driver.PUT("/deliveries/:id/status", h.UpdateDeliveryStatus)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired(auth), middleware.RoleRequired(models.RoleAdmin))
	{
		admin.POST("/deliveries", h.AssignDelivery)
		admin.GET("/deliveries", h.ListDeliveries)
		admin.POST("/payments/:id/refunds", h.CreateRefund)
		admin.PUT("/orders/:id/cancel", h.CancelOrder)
		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:id/role", h.ChangeUserRole)
		admin.GET("/restaurants", h.AdminListRestaurants)
	}
}
