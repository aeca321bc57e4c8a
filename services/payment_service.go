package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"food-order/events"
	"food-order/models"
	"food-order/payments"
	"food-order/policy"
	"food-order/repository"
	"food-order/statemachine"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SeenCache is a fast, lossy memory of provider events that were already applied
type SeenCache interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type PaymentService struct {
	store    repository.Store
	orders   *OrderService
	provider payments.Provider
	seen     SeenCache
	pub      events.Publisher
	log      zerolog.Logger
	currency string
	now      func() time.Time
}

// NewPaymentService wires the reconciliation controller. seen may be nil.
func NewPaymentService(store repository.Store, orders *OrderService, provider payments.Provider,
	seen SeenCache, pub events.Publisher, log zerolog.Logger, currency string) *PaymentService {
	return &PaymentService{
		store:    store,
		orders:   orders,
		provider: provider,
		seen:     seen,
		pub:      pub,
		log:      log.With().Str("service", "payment").Logger(),
		currency: currency,
		now:      time.Now,
	}
}

type IntentResult struct {
	PaymentID    uint            `json:"paymentId"`
	ClientSecret string          `json:"clientSecret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type RefundCommand struct {
	PaymentID uint
	Amount    *decimal.Decimal // nil refunds what is left
	Reason    string
}

// WebhookResult reports what happened to a verified provider event
type WebhookResult struct {
	EventID string             `json:"eventId"`
	Type    payments.EventType `json:"type"`
	Applied bool               `json:"applied"`
}

var errReplay = errors.New("event already processed")

// CreatePaymentIntent opens a provider payment for the customer's order and records it PENDING
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, p policy.Principal, orderID uint) (*IntentResult, error) {
	if err := policy.Require(p, policy.CapPay); err != nil {
		return nil, forbidden("only customers can create payment intents")
	}
	repos := s.store.Repos()
	o, err := repos.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, internal(s.log, "create payment intent", lookup(err, fmt.Sprintf("order %d", orderID)))
	}
	if !policy.OwnsOrder(p, o) {
		return nil, forbidden("order %d does not belong to you", orderID)
	}
	_, err = repos.Payments.GetByOrder(ctx, o.ID)
	if err == nil {
		return nil, fmt.Errorf("%w: payment already exists for order %d", ErrConflict, o.ID)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(s.log, "create payment intent", err)
	}
	total := o.Total()
	if !total.IsPositive() {
		return nil, invalid("order %d has no payable amount", o.ID)
	}

	intent, err := s.provider.CreateIntent(ctx, payments.ToMinor(total), s.currency, map[string]string{
		"orderId":       strconv.FormatUint(uint64(o.ID), 10),
		"customerEmail": p.Email,
	})
	if err != nil {
		s.log.Warn().Err(err).Uint("order_id", o.ID).Msg("provider rejected payment intent")
		return nil, fmt.Errorf("%w: create payment intent: %v", ErrUpstream, err)
	}

	pay := &models.Payment{
		OrderID:          o.ID,
		Amount:           total,
		Currency:         s.currency,
		Status:           models.PaymentPending,
		ProviderIntentID: &intent.ProviderID,
	}
	err = s.store.Transaction(ctx, func(r repository.Repositories) error {
		return lookup(r.Payments.Create(ctx, pay), fmt.Sprintf("payment for order %d", o.ID))
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.log.Warn().Str("intent", intent.ProviderID).Uint("order_id", o.ID).Msg("payment intent orphaned by concurrent request")
		}
		return nil, internal(s.log, "create payment intent", err)
	}

	publish(ctx, s.pub, s.log, events.Event{
		Kind:      events.PaymentCreated,
		OrderID:   o.ID,
		PaymentID: pay.ID,
		To:        string(models.PaymentPending),
		ActorID:   p.UserID,
		At:        s.now(),
	})
	return &IntentResult{
		PaymentID:    pay.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       total,
		Currency:     s.currency,
	}, nil
}

// HandleProviderEvent verifies and applies one webhook delivery. Each event id takes
// effect at most once; replays and events for unknown payments are acknowledged.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	ev, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			s.log.Warn().Err(err).Msg("webhook signature verification failed")
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, invalid("decode webhook: %v", err)
	}
	res := &WebhookResult{EventID: ev.ID, Type: ev.Type}
	log := s.log.With().Str("event_id", ev.ID).Str("event_type", string(ev.Type)).Logger()

	if s.seen != nil {
		seen, err := s.seen.Seen(ctx, ev.ID)
		if err != nil {
			log.Warn().Err(err).Msg("seen cache unavailable")
		} else if seen {
			log.Debug().Msg("webhook replay skipped")
			return res, nil
		}
	}

	var pending []events.Event
	err = s.store.Transaction(ctx, func(r repository.Repositories) error {
		pending = nil
		done, err := r.Events.Exists(ctx, ev.ID)
		if err != nil {
			return err
		}
		if done {
			return errReplay
		}
		if err := r.Events.Record(ctx, &models.ProcessedEvent{
			ID:          ev.ID,
			Type:        string(ev.Type),
			ProcessedAt: s.now(),
		}); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errReplay
			}
			return err
		}
		pending, err = s.apply(ctx, r, log, ev)
		return err
	})
	switch {
	case errors.Is(err, errReplay):
		log.Debug().Msg("webhook replay skipped")
	case err != nil:
		return nil, internal(log, "handle provider event", err)
	default:
		res.Applied = len(pending) > 0
	}

	if s.seen != nil {
		if err := s.seen.Mark(ctx, ev.ID); err != nil {
			log.Warn().Err(err).Msg("mark event seen")
		}
	}
	publish(ctx, s.pub, log, pending...)
	return res, nil
}

func (s *PaymentService) apply(ctx context.Context, r repository.Repositories, log zerolog.Logger, ev *payments.Event) ([]events.Event, error) {
	switch ev.Type {
	case payments.EventIntentSucceeded:
		return s.settle(ctx, r, log, ev, models.PaymentSuccess)
	case payments.EventIntentFailed, payments.EventIntentCanceled:
		return s.settle(ctx, r, log, ev, models.PaymentFailed)
	case payments.EventChargeRefunded:
		return s.reconcileRefunds(ctx, r, log, ev)
	}
	log.Info().Msg("unhandled webhook event type")
	return nil, nil
}

// settle moves a PENDING payment to SUCCESS or FAILED and carries the order along:
// success confirms a still-PENDING order, failure cancels it while that is possible.
func (s *PaymentService) settle(ctx context.Context, r repository.Repositories, log zerolog.Logger,
	ev *payments.Event, to models.PaymentStatus) ([]events.Event, error) {

	pay, err := r.Payments.GetByIntent(ctx, ev.IntentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("intent", ev.IntentID).Msg("webhook for unknown payment intent dropped")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !statemachine.CanTransitionPayment(pay.Status, to) {
		log.Info().Uint("payment_id", pay.ID).Str("status", string(pay.Status)).
			Msg("payment already settled, event ignored")
		return nil, nil
	}

	now := s.now()
	extra := map[string]interface{}{"processed_at": now}
	if to == models.PaymentSuccess && ev.PaymentMethodID != "" {
		extra["provider_payment_method_id"] = ev.PaymentMethodID
	}
	ok, err := r.Payments.UpdateStatusGuard(ctx, pay.ID, pay.Status, to, extra)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Info().Uint("payment_id", pay.ID).Msg("payment settled concurrently, event ignored")
		return nil, nil
	}
	out := []events.Event{{
		Kind:      events.PaymentStatusChanged,
		OrderID:   pay.OrderID,
		PaymentID: pay.ID,
		From:      string(pay.Status),
		To:        string(to),
		At:        now,
	}}

	o, err := r.Orders.Get(ctx, pay.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Uint("order_id", pay.OrderID).Msg("payment settled for a missing order")
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	var target models.OrderStatus
	var note string
	switch {
	case to == models.PaymentSuccess && o.Status == models.StatusPending:
		target, note = models.StatusConfirmed, "payment succeeded"
	case to == models.PaymentFailed && statemachine.CanTransition(o.Status, models.StatusCancelled, statemachine.ActorPayment) == nil:
		target, note = models.StatusCancelled, "payment failed"
	case to == models.PaymentSuccess && o.Status == models.StatusCancelled:
		// captured money for an order that will never be delivered; it has to be refunded by hand
		log.Warn().Uint("order_id", o.ID).Uint("payment_id", pay.ID).Str("status", string(o.Status)).
			Str("amount", pay.Amount.StringFixed(2)).Msg("payment succeeded for a cancelled order")
		return append(out, events.Event{
			Kind:      events.PaymentOrphaned,
			OrderID:   o.ID,
			PaymentID: pay.ID,
			From:      string(o.Status),
			Amount:    pay.Amount.StringFixed(2),
			At:        now,
		}), nil
	default:
		log.Info().Uint("order_id", o.ID).Str("status", string(o.Status)).Msg("order left as is after payment event")
		return out, nil
	}
	orderEv, err := s.orders.transition(ctx, r, o, target, statemachine.ActorPayment, 0, note, nil)
	if err != nil {
		return nil, err
	}
	return append(out, orderEv), nil
}

// reconcileRefunds makes the recorded refunds add up to what the provider reports as
// refunded for the charge, then flags the payment once nothing is left.
func (s *PaymentService) reconcileRefunds(ctx context.Context, r repository.Repositories, log zerolog.Logger,
	ev *payments.Event) ([]events.Event, error) {

	pay, err := r.Payments.GetByIntent(ctx, ev.IntentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("intent", ev.IntentID).Msg("refund for unknown payment intent dropped")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	reported := payments.FromMinor(ev.AmountRefunded)
	if reported.GreaterThan(pay.Amount) {
		log.Warn().Uint("payment_id", pay.ID).Str("reported", reported.StringFixed(2)).
			Msg("provider refunded more than the payment amount, capping")
		reported = pay.Amount
	}

	now := s.now()
	var out []events.Event
	diff := reported.Sub(pay.RefundedTotal())
	if diff.IsPositive() {
		rf := &models.Refund{
			PaymentID:   pay.ID,
			Amount:      diff,
			Reason:      "refunded at provider",
			Status:      models.RefundSucceeded,
			ProcessedAt: &now,
		}
		if ev.RefundID != "" && !hasProviderRefund(pay, ev.RefundID) {
			id := ev.RefundID
			rf.ProviderRefundID = &id
		}
		if err := r.Payments.CreateRefund(ctx, rf); err != nil {
			return nil, err
		}
		pay.Refunds = append(pay.Refunds, *rf)
		out = append(out, events.Event{
			Kind:      events.RefundCreated,
			OrderID:   pay.OrderID,
			PaymentID: pay.ID,
			Amount:    rf.Amount.StringFixed(2),
			At:        now,
		})
	}

	if !pay.Refunded && pay.Refundable().Sign() <= 0 {
		if _, err := r.Payments.MarkRefunded(ctx, pay.ID, now); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func hasProviderRefund(pay *models.Payment, providerID string) bool {
	return findProviderRefund(pay, providerID) != nil
}

func findProviderRefund(pay *models.Payment, providerID string) *models.Refund {
	for i := range pay.Refunds {
		rf := &pay.Refunds[i]
		if rf.ProviderRefundID != nil && *rf.ProviderRefundID == providerID {
			return rf
		}
	}
	return nil
}

// unattributedRefund finds a row the refund webhook recorded without a provider id for amount
func unattributedRefund(pay *models.Payment, amount decimal.Decimal) *models.Refund {
	for i := range pay.Refunds {
		rf := &pay.Refunds[i]
		if rf.ProviderRefundID == nil && rf.Amount.Equal(amount) {
			return rf
		}
	}
	return nil
}

// CreateRefund returns money for a settled payment. Partial refunds leave the order alone.
func (s *PaymentService) CreateRefund(ctx context.Context, p policy.Principal, cmd RefundCommand) (*models.Refund, error) {
	if err := policy.Require(p, policy.CapRefund); err != nil {
		return nil, forbidden("only admins can issue refunds")
	}
	pay, err := s.store.Repos().Payments.Get(ctx, cmd.PaymentID)
	if err != nil {
		return nil, internal(s.log, "create refund", lookup(err, fmt.Sprintf("payment %d", cmd.PaymentID)))
	}
	if pay.Status != models.PaymentSuccess {
		return nil, fmt.Errorf("%w: payment %d is %s, only successful payments can be refunded",
			ErrInvalidState, pay.ID, pay.Status)
	}
	if pay.Refunded {
		return nil, fmt.Errorf("%w: payment %d is already fully refunded", ErrConflict, pay.ID)
	}
	remaining := pay.Refundable()
	amount := remaining
	if cmd.Amount != nil {
		amount = *cmd.Amount
	}
	if !amount.IsPositive() {
		return nil, invalid("refund amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) || payments.ToMinor(amount) < 1 {
		return nil, invalid("refund amount %s is not a whole number of cents", amount.String())
	}
	if amount.GreaterThan(remaining) {
		return nil, invalid("refund amount %s exceeds refundable %s", amount.StringFixed(2), remaining.StringFixed(2))
	}
	if pay.ProviderIntentID == nil {
		return nil, fmt.Errorf("%w: payment %d has no provider reference", ErrInvalidState, pay.ID)
	}

	refundID, err := s.provider.CreateRefund(ctx, *pay.ProviderIntentID, payments.ToMinor(amount), cmd.Reason)
	if err != nil {
		s.log.Warn().Err(err).Uint("payment_id", pay.ID).Msg("provider rejected refund")
		return nil, fmt.Errorf("%w: create refund: %v", ErrUpstream, err)
	}

	now := s.now()
	rf := &models.Refund{
		PaymentID:        pay.ID,
		Amount:           amount,
		Reason:           cmd.Reason,
		Status:           models.RefundSucceeded,
		ProviderRefundID: &refundID,
		ProcessedAt:      &now,
	}
	// set when the charge.refunded webhook already recorded this refund
	adopted := false
	err = s.store.Transaction(ctx, func(r repository.Repositories) error {
		current, err := r.Payments.Get(ctx, pay.ID)
		if err != nil {
			return err
		}
		if existing := findProviderRefund(current, refundID); existing != nil {
			rf, adopted = existing, true
			return nil
		}
		if existing := unattributedRefund(current, amount); existing != nil {
			ok, err := r.Payments.AttachProviderRefund(ctx, existing.ID, refundID, cmd.Reason)
			if err != nil {
				return lookup(err, "refund "+refundID)
			}
			if ok {
				existing.ProviderRefundID = &refundID
				if cmd.Reason != "" {
					existing.Reason = cmd.Reason
				}
				rf, adopted = existing, true
				return nil
			}
		}
		if amount.GreaterThan(current.Refundable()) {
			return fmt.Errorf("%w: refund %s does not fit what is left on payment %d", ErrConflict, refundID, pay.ID)
		}
		if err := r.Payments.CreateRefund(ctx, rf); err != nil {
			return lookup(err, "refund "+refundID)
		}
		if current.Refundable().Sub(amount).Sign() <= 0 {
			_, err := r.Payments.MarkRefunded(ctx, pay.ID, now)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, internal(s.log, "create refund", err)
	}

	s.log.Info().Uint("payment_id", pay.ID).Str("amount", amount.StringFixed(2)).Str("refund", refundID).
		Bool("webhook_first", adopted).Msg("refund issued")
	if adopted {
		// reconcileRefunds already published RefundCreated for this row
		return rf, nil
	}
	publish(ctx, s.pub, s.log, events.Event{
		Kind:      events.RefundCreated,
		OrderID:   pay.OrderID,
		PaymentID: pay.ID,
		Amount:    amount.StringFixed(2),
		ActorID:   p.UserID,
		At:        now,
	})
	return rf, nil
}

// ListPayments returns the payments visible to p with their refunds
func (s *PaymentService) ListPayments(ctx context.Context, p policy.Principal) ([]models.Payment, error) {
	var f repository.PaymentFilter
	switch p.Role {
	case models.RoleAdmin:
	case models.RoleCustomer:
		f.CustomerID = p.UserID
	case models.RoleRestaurant:
		f.OwnerID = p.UserID
	default:
		return nil, forbidden("payments are not visible to %s accounts", p.Role)
	}
	out, err := s.store.Repos().Payments.List(ctx, f)
	if err != nil {
		return nil, internal(s.log, "list payments", err)
	}
	return out, nil
}
