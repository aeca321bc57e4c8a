// Package policy decides who may call which lifecycle operation.
package policy

import (
	"errors"

	"food-order/models"
)

// Capability is a permission granted by role
type Capability string

const (
	CapPlaceOrder       Capability = "order:place"
	CapPay              Capability = "payment:pay"
	CapManageRestaurant Capability = "restaurant:manage"
	CapDeliver          Capability = "delivery:update"
	CapDispatch         Capability = "delivery:assign"
	CapRefund           Capability = "payment:refund"
	CapAdminister       Capability = "admin"
)

var roleCapabilities = map[models.UserRole][]Capability{
	models.RoleCustomer:   {CapPlaceOrder, CapPay},
	models.RoleRestaurant: {CapManageRestaurant},
	models.RoleDelivery:   {CapDeliver},
	models.RoleAdmin:      {CapDispatch, CapRefund, CapAdminister},
}

// ErrDenied is returned by Require when the principal lacks a capability
var ErrDenied = errors.New("access denied")

// Principal is an authenticated actor
type Principal struct {
	UserID uint
	Role   models.UserRole
	Email  string
	caps   map[Capability]bool
}

func NewPrincipal(userID uint, role models.UserRole, email string) Principal {
	caps := make(map[Capability]bool)
	for _, c := range roleCapabilities[role] {
		caps[c] = true
	}
	return Principal{UserID: userID, Role: role, Email: email, caps: caps}
}

func (p Principal) Can(c Capability) bool {
	return p.caps[c]
}

func (p Principal) IsAdmin() bool {
	return p.Can(CapAdminister)
}

// Require returns ErrDenied unless p holds c
func Require(p Principal, c Capability) error {
	if !p.Can(c) {
		return ErrDenied
	}
	return nil
}

// AuthorizeRole reports whether the principal has one of the allowed roles
func AuthorizeRole(p Principal, roles ...models.UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// OwnsOrder is true for the customer who placed the order
func OwnsOrder(p Principal, o *models.Order) bool {
	return p.Can(CapPlaceOrder) && o.CustomerID == p.UserID
}

// OwnsRestaurant is true for the restaurant account that owns r
func OwnsRestaurant(p Principal, r *models.Restaurant) bool {
	return p.Can(CapManageRestaurant) && r.OwnerID == p.UserID
}

// IsAssignedDriver is true for the driver a delivery was assigned to
func IsAssignedDriver(p Principal, d *models.Delivery) bool {
	return p.Can(CapDeliver) && d.DriverID == p.UserID
}
