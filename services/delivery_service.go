package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"food-order/events"
	"food-order/models"
	"food-order/policy"
	"food-order/repository"
	"food-order/statemachine"

	"github.com/rs/zerolog"
)

type DeliveryService struct {
	store  repository.Store
	orders *OrderService
	pub    events.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewDeliveryService(store repository.Store, orders *OrderService, pub events.Publisher, log zerolog.Logger) *DeliveryService {
	return &DeliveryService{
		store:  store,
		orders: orders,
		pub:    pub,
		log:    log.With().Str("service", "delivery").Logger(),
		now:    time.Now,
	}
}

type AssignDeliveryCommand struct {
	OrderID             uint
	DriverID            uint
	EstimatedDeliveryAt *time.Time
	Notes               string
}

type UpdateDeliveryCommand struct {
	DeliveryID uint
	Status     models.DeliveryStatus
	Notes      string
}

// AssignDelivery hands a READY order to a driver and moves it OUT_FOR_DELIVERY. An order
// whose previous delivery was cancelled or failed gets that row re-armed with the next attempt.
func (s *DeliveryService) AssignDelivery(ctx context.Context, p policy.Principal, cmd AssignDeliveryCommand) (*models.Delivery, error) {
	if err := policy.Require(p, policy.CapDispatch); err != nil {
		return nil, forbidden("only admins can assign deliveries")
	}

	var d *models.Delivery
	var orderEv events.Event
	now := s.now()
	err := s.store.Transaction(ctx, func(r repository.Repositories) error {
		o, err := r.Orders.Get(ctx, cmd.OrderID)
		if err != nil {
			return lookup(err, fmt.Sprintf("order %d", cmd.OrderID))
		}
		if o.Status != models.StatusReady {
			return fmt.Errorf("%w: order %d is %s, deliveries can only be assigned to READY orders",
				ErrInvalidState, o.ID, o.Status)
		}
		driver, err := r.Users.Get(ctx, cmd.DriverID)
		if errors.Is(err, repository.ErrNotFound) {
			return invalid("driver %d does not exist", cmd.DriverID)
		}
		if err != nil {
			return err
		}
		if driver.Role != models.RoleDelivery {
			return invalid("user %d is not a delivery driver", driver.ID)
		}

		existing, err := r.Deliveries.GetByOrder(ctx, o.ID)
		switch {
		case err == nil && existing.Status.Active():
			return fmt.Errorf("%w: order %d already has an active delivery", ErrConflict, o.ID)
		case err == nil:
			ok, err := r.Deliveries.UpdateStatusGuard(ctx, existing.ID, existing.Status, models.DeliveryAssigned,
				map[string]interface{}{
					"driver_id":             driver.ID,
					"attempt":               existing.Attempt + 1,
					"notes":                 cmd.Notes,
					"assigned_at":           now,
					"estimated_delivery_at": cmd.EstimatedDeliveryAt,
					"picked_up_at":          nil,
					"delivered_at":          nil,
					"actual_delivery_at":    nil,
				})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: delivery %d changed concurrently", ErrConflict, existing.ID)
			}
			d, err = r.Deliveries.Get(ctx, existing.ID)
			if err != nil {
				return err
			}
		case errors.Is(err, repository.ErrNotFound):
			d = &models.Delivery{
				OrderID:             o.ID,
				DriverID:            driver.ID,
				Status:              models.DeliveryAssigned,
				Attempt:             1,
				Notes:               cmd.Notes,
				AssignedAt:          now,
				EstimatedDeliveryAt: cmd.EstimatedDeliveryAt,
			}
			if err := r.Deliveries.Create(ctx, d); err != nil {
				return lookup(err, fmt.Sprintf("delivery for order %d", o.ID))
			}
		default:
			return err
		}

		orderEv, err = s.orders.transition(ctx, r, o, models.StatusOutForDelivery, statemachine.ActorDelivery,
			p.UserID, fmt.Sprintf("assigned to driver %d", driver.ID), nil)
		if errors.Is(err, ErrInvalidTransition) {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		return err
	})
	if err != nil {
		return nil, internal(s.log, "assign delivery", err)
	}

	s.log.Info().Uint("delivery_id", d.ID).Uint("order_id", d.OrderID).Uint("driver_id", d.DriverID).
		Int("attempt", d.Attempt).Msg("delivery assigned")
	publish(ctx, s.pub, s.log, events.Event{
		Kind:       events.DeliveryAssigned,
		OrderID:    d.OrderID,
		DeliveryID: d.ID,
		To:         string(models.DeliveryAssigned),
		ActorID:    p.UserID,
		At:         now,
	}, orderEv)
	return d, nil
}

// UpdateDeliveryStatus advances the driver's delivery. Reaching DELIVERED completes the
// order; CANCELLED or FAILED hands the order back to READY for re-dispatch.
func (s *DeliveryService) UpdateDeliveryStatus(ctx context.Context, p policy.Principal, cmd UpdateDeliveryCommand) (*models.Delivery, error) {
	var d *models.Delivery
	var pending []events.Event
	now := s.now()
	err := s.store.Transaction(ctx, func(r repository.Repositories) error {
		pending = nil
		var err error
		d, err = r.Deliveries.Get(ctx, cmd.DeliveryID)
		if err != nil {
			return lookup(err, fmt.Sprintf("delivery %d", cmd.DeliveryID))
		}
		if !policy.IsAssignedDriver(p, d) {
			return forbidden("delivery %d is not assigned to you", d.ID)
		}
		from := d.Status
		if err := statemachine.CanTransitionDelivery(from, cmd.Status); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}

		extra := map[string]interface{}{}
		if cmd.Notes != "" {
			extra["notes"] = cmd.Notes
			d.Notes = cmd.Notes
		}
		switch cmd.Status {
		case models.DeliveryPickedUp:
			if d.PickedUpAt == nil {
				extra["picked_up_at"] = now
				d.PickedUpAt = &now
			}
		case models.DeliveryDelivered:
			extra["delivered_at"] = now
			extra["actual_delivery_at"] = now
			d.DeliveredAt = &now
			d.ActualDeliveryAt = &now
		}
		ok, err := r.Deliveries.UpdateStatusGuard(ctx, d.ID, from, cmd.Status, extra)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: delivery %d is no longer %s", ErrConflict, d.ID, from)
		}
		d.Status = cmd.Status
		pending = append(pending, events.Event{
			Kind:       events.DeliveryStatusChanged,
			OrderID:    d.OrderID,
			DeliveryID: d.ID,
			From:       string(from),
			To:         string(cmd.Status),
			ActorID:    p.UserID,
			At:         now,
		})

		var target models.OrderStatus
		switch cmd.Status {
		case models.DeliveryDelivered:
			target = models.StatusDelivered
		case models.DeliveryCancelled, models.DeliveryFailed:
			target = models.StatusReady
		default:
			return nil
		}
		o, err := r.Orders.Get(ctx, d.OrderID)
		if err != nil {
			return err
		}
		if target == models.StatusReady && o.Status != models.StatusOutForDelivery {
			s.log.Warn().Uint("order_id", o.ID).Str("status", string(o.Status)).
				Msg("delivery stopped for an order that is not out for delivery")
			return nil
		}
		note := fmt.Sprintf("delivery %d %s", d.ID, cmd.Status)
		ev, err := s.orders.transition(ctx, r, o, target, statemachine.ActorDelivery, p.UserID, note, nil)
		if errors.Is(err, ErrInvalidTransition) {
			return fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		if err != nil {
			return err
		}
		pending = append(pending, ev)
		return nil
	})
	if err != nil {
		return nil, internal(s.log, "update delivery status", err)
	}
	publish(ctx, s.pub, s.log, pending...)
	return d, nil
}

func (s *DeliveryService) GetDelivery(ctx context.Context, p policy.Principal, deliveryID uint) (*models.Delivery, error) {
	d, err := s.store.Repos().Deliveries.GetDetail(ctx, deliveryID)
	if err != nil {
		return nil, internal(s.log, "get delivery", lookup(err, fmt.Sprintf("delivery %d", deliveryID)))
	}
	if !p.Can(policy.CapDispatch) && !policy.IsAssignedDriver(p, d) {
		return nil, forbidden("delivery %d is not assigned to you", deliveryID)
	}
	return d, nil
}

// ListDeliveries returns every delivery to admins and a driver's own deliveries to drivers
func (s *DeliveryService) ListDeliveries(ctx context.Context, p policy.Principal) ([]models.Delivery, error) {
	var driverID uint
	switch {
	case p.Can(policy.CapDispatch):
	case p.Can(policy.CapDeliver):
		driverID = p.UserID
	default:
		return nil, forbidden("only drivers and admins can list deliveries")
	}
	out, err := s.store.Repos().Deliveries.List(ctx, driverID)
	if err != nil {
		return nil, internal(s.log, "list deliveries", err)
	}
	return out, nil
}
