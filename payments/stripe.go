package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return &StripeProvider{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, err
	}
	return Intent{ClientSecret: pi.ClientSecret, ProviderID: pi.ID}, nil
}

func (p *StripeProvider) CreateRefund(ctx context.Context, intentID string, amountMinor int64, reason string) (string, error) {
	if amountMinor < 1 {
		return "", fmt.Errorf("refund amount must be at least one minor unit, got %d", amountMinor)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Amount:        stripe.Int64(amountMinor),
	}
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	params.Context = ctx
	rf, err := p.api.Refunds.New(params)
	if err != nil {
		return "", err
	}
	return rf.ID, nil
}

func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return parseStripeEvent(ev)
}

func parseStripeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: EventType(ev.Type)}
	if ev.Data == nil {
		return out, nil
	}
	switch out.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("decode payment intent: %w", err)
		}
		out.IntentID = pi.ID
		out.OrderID = pi.Metadata["orderId"]
		if pi.PaymentMethod != nil {
			out.PaymentMethodID = pi.PaymentMethod.ID
		}
	case EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(ev.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge: %w", err)
		}
		out.ChargeID = ch.ID
		out.AmountRefunded = ch.AmountRefunded
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			out.RefundID = ch.Refunds.Data[0].ID
		}
	}
	return out, nil
}
