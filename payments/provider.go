// Package payments talks to the hosted payment processor.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventIntentSucceeded EventType = "payment_intent.succeeded"
	EventIntentFailed    EventType = "payment_intent.payment_failed"
	EventIntentCanceled  EventType = "payment_intent.canceled"
	EventChargeRefunded  EventType = "charge.refunded"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

// Intent is the client-confirmable handle for a payment
type Intent struct {
	ClientSecret string
	ProviderID   string
}

// Event is a verified provider notification reduced to what reconciliation needs
type Event struct {
	ID              string
	Type            EventType
	IntentID        string
	OrderID         string // from intent metadata
	PaymentMethodID string
	ChargeID        string
	AmountRefunded  int64 // minor units, cumulative for the charge
	RefundID        string
}

type Provider interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error)
	// CreateRefund refunds exactly amountMinor, which must be at least 1.
	CreateRefund(ctx context.Context, intentID string, amountMinor int64, reason string) (string, error)
	// VerifyWebhook authenticates and decodes a webhook body. Errors wrap ErrInvalidSignature.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}

// ToMinor converts a decimal amount to minor currency units (cents)
func ToMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromMinor converts minor currency units back to a decimal amount
func FromMinor(n int64) decimal.Decimal {
	return decimal.New(n, -2)
}
