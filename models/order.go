package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents all possible states of a food delivery order
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusPreparing      OrderStatus = "PREPARING"
	StatusReady          OrderStatus = "READY"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

type Order struct {
	ID               uint                 `json:"id" gorm:"primaryKey"`
	CustomerID       uint                 `json:"customer_id" gorm:"index;not null"`
	Customer         User                 `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	RestaurantID     uint                 `json:"restaurant_id" gorm:"index;not null"`
	Restaurant       Restaurant           `json:"restaurant,omitempty" gorm:"foreignKey:RestaurantID"`
	Status           OrderStatus          `json:"status" gorm:"index;not null;default:'PENDING'"`
	DeliveryAddress  string               `json:"delivery_address"`
	Notes            string               `json:"notes"`
	EstimatedReadyAt *time.Time           `json:"estimated_ready_at,omitempty"`
	Items            []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	StatusHistory    []OrderStatusHistory `json:"status_history,omitempty" gorm:"foreignKey:OrderID"`
	Delivery         *Delivery            `json:"delivery,omitempty" gorm:"foreignKey:OrderID"`
	Payment          *Payment             `json:"payment,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Total sums the price snapshots of the order's line items
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type OrderItem struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	OrderID    uint            `json:"order_id" gorm:"index;not null"`
	MenuItemID uint            `json:"menu_item_id" gorm:"not null"`
	MenuItem   MenuItem        `json:"menu_item,omitempty" gorm:"foreignKey:MenuItemID"`
	Quantity   int             `json:"quantity" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"` // snapshot price at time of order
	Name       string          `json:"name"`                                     // snapshot name
}

// OrderStatusHistory tracks every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"index;not null"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status" gorm:"not null"`
	Actor      string      `json:"actor"`
	ChangedBy  uint        `json:"changed_by"` // user ID who triggered the transition, 0 for provider events
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"created_at"`
}
