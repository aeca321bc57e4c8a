package models

import (
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleCustomer   UserRole = "CUSTOMER"
	RoleRestaurant UserRole = "RESTAURANT"
	RoleDelivery   UserRole = "DELIVERY"
	RoleAdmin      UserRole = "ADMIN"
)

// Valid reports whether r is one of the four known roles
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurant, RoleDelivery, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Role         UserRole  `json:"role" gorm:"not null;default:'CUSTOMER'"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
