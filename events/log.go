package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log when no broker is configured
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, evs ...Event) error {
	for _, ev := range evs {
		p.log.Info().
			Str("kind", string(ev.Kind)).
			Uint("order_id", ev.OrderID).
			Uint("delivery_id", ev.DeliveryID).
			Uint("payment_id", ev.PaymentID).
			Str("from", ev.From).
			Str("to", ev.To).
			Str("amount", ev.Amount).
			Msg("lifecycle event")
	}
	return nil
}
