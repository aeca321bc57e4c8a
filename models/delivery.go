package models

import "time"

// DeliveryStatus is the driver-side lifecycle of one order's transport
type DeliveryStatus string

const (
	DeliveryAssigned       DeliveryStatus = "ASSIGNED"
	DeliveryPickedUp       DeliveryStatus = "PICKED_UP"
	DeliveryOutForDelivery DeliveryStatus = "OUT_FOR_DELIVERY"
	DeliveryDelivered      DeliveryStatus = "DELIVERED"
	DeliveryCancelled      DeliveryStatus = "CANCELLED"
	DeliveryFailed         DeliveryStatus = "FAILED"
)

// Active is true while the delivery still holds its order out for delivery
func (s DeliveryStatus) Active() bool {
	return s != DeliveryCancelled && s != DeliveryFailed
}

type Delivery struct {
	ID                  uint           `json:"id" gorm:"primaryKey"`
	OrderID             uint           `json:"order_id" gorm:"uniqueIndex;not null"`
	Order               *Order         `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	DriverID            uint           `json:"driver_id" gorm:"index;not null"`
	Driver              *User          `json:"driver,omitempty" gorm:"foreignKey:DriverID"`
	Status              DeliveryStatus `json:"status" gorm:"index;not null;default:'ASSIGNED'"`
	Attempt             int            `json:"attempt" gorm:"not null;default:1"`
	Notes               string         `json:"notes"`
	AssignedAt          time.Time      `json:"assigned_at"`
	EstimatedDeliveryAt *time.Time     `json:"estimated_delivery_at,omitempty"`
	PickedUpAt          *time.Time     `json:"picked_up_at,omitempty"`
	DeliveredAt         *time.Time     `json:"delivered_at,omitempty"`
	ActualDeliveryAt    *time.Time     `json:"actual_delivery_at,omitempty"`
	UpdatedAt           time.Time      `json:"updated_at"`
}
