package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

type Payment struct {
	ID                      uint            `json:"id" gorm:"primaryKey"`
	OrderID                 uint            `json:"order_id" gorm:"uniqueIndex;not null"`
	Order                   *Order          `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Amount                  decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Currency                string          `json:"currency" gorm:"not null;default:'usd'"`
	Status                  PaymentStatus   `json:"status" gorm:"not null;default:'PENDING'"`
	ProviderIntentID        *string         `json:"provider_intent_id,omitempty" gorm:"uniqueIndex"`
	ProviderPaymentMethodID string          `json:"provider_payment_method_id,omitempty"`
	ProcessedAt             *time.Time      `json:"processed_at,omitempty"`
	Refunded                bool            `json:"refunded" gorm:"not null;default:false"`
	RefundedAt              *time.Time      `json:"refunded_at,omitempty"`
	Refunds                 []Refund        `json:"refunds,omitempty" gorm:"foreignKey:PaymentID"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// RefundedTotal sums the recorded refunds; Refunds must be loaded
func (p *Payment) RefundedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.Refunds {
		total = total.Add(r.Amount)
	}
	return total
}

// Refundable is what is left to give back
func (p *Payment) Refundable() decimal.Decimal {
	return p.Amount.Sub(p.RefundedTotal())
}

type RefundStatus string

const (
	RefundSucceeded RefundStatus = "SUCCESS"
	RefundFailed    RefundStatus = "FAILED"
)

type Refund struct {
	ID               uint            `json:"id" gorm:"primaryKey"`
	PaymentID        uint            `json:"payment_id" gorm:"index;not null"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null"`
	Reason           string          `json:"reason"`
	Status           RefundStatus    `json:"status" gorm:"not null"`
	ProviderRefundID *string         `json:"provider_refund_id,omitempty" gorm:"uniqueIndex"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ProcessedEvent records a provider webhook event that has already been applied
type ProcessedEvent struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Type        string    `json:"type"`
	ProcessedAt time.Time `json:"processed_at"`
}
