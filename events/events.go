// Package events publishes lifecycle notifications after a state change commits.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	OrderPlaced           Kind = "order.placed"
	OrderStatusChanged    Kind = "order.status_changed"
	DeliveryAssigned      Kind = "delivery.assigned"
	DeliveryStatusChanged Kind = "delivery.status_changed"
	PaymentCreated        Kind = "payment.created"
	PaymentStatusChanged  Kind = "payment.status_changed"
	RefundCreated         Kind = "payment.refunded"
	// PaymentOrphaned: money was captured for an order that can no longer be confirmed
	PaymentOrphaned Kind = "payment.orphaned"
)

type Event struct {
	Kind       Kind      `json:"kind"`
	OrderID    uint      `json:"order_id"`
	DeliveryID uint      `json:"delivery_id,omitempty"`
	PaymentID  uint      `json:"payment_id,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	ActorID    uint      `json:"actor_id,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher delivers events to subscribers. Publishing happens after commit, so a
// failure is reported but never undoes the state change.
type Publisher interface {
	Publish(ctx context.Context, evs ...Event) error
}
