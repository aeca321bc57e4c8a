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

type OrderService struct {
	store repository.Store
	pub   events.Publisher
	log   zerolog.Logger
	now   func() time.Time
}

func NewOrderService(store repository.Store, pub events.Publisher, log zerolog.Logger) *OrderService {
	return &OrderService{
		store: store,
		pub:   pub,
		log:   log.With().Str("service", "order").Logger(),
		now:   time.Now,
	}
}

type ItemRequest struct {
	MenuItemID uint
	Quantity   int
}

type PlaceOrderCommand struct {
	RestaurantID    uint
	Items           []ItemRequest
	DeliveryAddress string
	Notes           string
}

type UpdateStatusCommand struct {
	OrderID          uint
	Status           models.OrderStatus
	EstimatedReadyAt *time.Time
	Note             string
}

// PlaceOrder validates the cart against the restaurant's menu and creates a PENDING order
// with price and name snapshots.
func (s *OrderService) PlaceOrder(ctx context.Context, p policy.Principal, cmd PlaceOrderCommand) (*models.Order, error) {
	if err := policy.Require(p, policy.CapPlaceOrder); err != nil {
		return nil, forbidden("only customers can place orders")
	}
	if len(cmd.Items) == 0 {
		return nil, invalid("order must contain at least one item")
	}
	for _, it := range cmd.Items {
		if it.Quantity < 1 {
			return nil, invalid("quantity for menu item %d must be at least 1", it.MenuItemID)
		}
	}
	if cmd.DeliveryAddress == "" {
		return nil, invalid("delivery address is required")
	}

	var order *models.Order
	var rest *models.Restaurant
	now := s.now()
	err := s.store.Transaction(ctx, func(r repository.Repositories) error {
		var err error
		rest, err = r.Restaurants.Get(ctx, cmd.RestaurantID)
		if err != nil {
			return lookup(err, fmt.Sprintf("restaurant %d", cmd.RestaurantID))
		}
		if !rest.IsOpen {
			return invalid("restaurant %d is currently closed", rest.ID)
		}

		ids := make([]uint, 0, len(cmd.Items))
		for _, it := range cmd.Items {
			ids = append(ids, it.MenuItemID)
		}
		menu, err := r.Menu.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[uint]models.MenuItem, len(menu))
		for _, mi := range menu {
			byID[mi.ID] = mi
		}

		items := make([]models.OrderItem, 0, len(cmd.Items))
		for _, it := range cmd.Items {
			mi, ok := byID[it.MenuItemID]
			if !ok {
				return fmt.Errorf("%w: menu item %d", ErrNotFound, it.MenuItemID)
			}
			if mi.RestaurantID != rest.ID {
				return invalid("menu item %d does not belong to restaurant %d", mi.ID, rest.ID)
			}
			if !mi.IsAvailable {
				return invalid("%s is currently unavailable", mi.Name)
			}
			items = append(items, models.OrderItem{
				MenuItemID: mi.ID,
				Quantity:   it.Quantity,
				Price:      mi.Price,
				Name:       mi.Name,
			})
		}

		order = &models.Order{
			CustomerID:      p.UserID,
			RestaurantID:    rest.ID,
			Status:          models.StatusPending,
			DeliveryAddress: cmd.DeliveryAddress,
			Notes:           cmd.Notes,
			Items:           items,
		}
		if err := r.Orders.Create(ctx, order); err != nil {
			return err
		}
		return r.Orders.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  models.StatusPending,
			Actor:     string(statemachine.ActorCustomer),
			ChangedBy: p.UserID,
			Note:      "order placed",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, internal(s.log, "place order", err)
	}
	order.Restaurant = *rest

	s.log.Info().Uint("order_id", order.ID).Uint("customer_id", p.UserID).
		Str("total", order.Total().StringFixed(2)).Msg("order placed")
	publish(ctx, s.pub, s.log, events.Event{
		Kind:    events.OrderPlaced,
		OrderID: order.ID,
		To:      string(models.StatusPending),
		ActorID: p.UserID,
		At:      now,
	})
	return order, nil
}

// UpdateOrderStatus applies a restaurant-driven transition to one of the restaurant's own orders
func (s *OrderService) UpdateOrderStatus(ctx context.Context, p policy.Principal, cmd UpdateStatusCommand) (*models.Order, error) {
	var order *models.Order
	var ev events.Event
	err := s.store.Transaction(ctx, func(r repository.Repositories) error {
		o, err := r.Orders.Get(ctx, cmd.OrderID)
		if err != nil {
			return lookup(err, fmt.Sprintf("order %d", cmd.OrderID))
		}
		if !policy.OwnsRestaurant(p, &o.Restaurant) {
			return forbidden("order %d does not belong to your restaurant", o.ID)
		}
		var extra map[string]interface{}
		if cmd.Status == models.StatusConfirmed && cmd.EstimatedReadyAt != nil {
			extra = map[string]interface{}{"estimated_ready_at": *cmd.EstimatedReadyAt}
		}
		ev, err = s.transition(ctx, r, o, cmd.Status, statemachine.ActorRestaurant, p.UserID, cmd.Note, extra)
		if err != nil {
			return err
		}
		if extra != nil {
			o.EstimatedReadyAt = cmd.EstimatedReadyAt
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, internal(s.log, "update order status", err)
	}
	publish(ctx, s.pub, s.log, ev)
	return order, nil
}

// CancelOrder cancels on behalf of the customer who placed the order, the restaurant
// that received it, or an admin. Each is limited by its own transition edges.
func (s *OrderService) CancelOrder(ctx context.Context, p policy.Principal, orderID uint, reason string) (*models.Order, error) {
	var order *models.Order
	var ev events.Event
	err := s.store.Transaction(ctx, func(r repository.Repositories) error {
		o, err := r.Orders.Get(ctx, orderID)
		if err != nil {
			return lookup(err, fmt.Sprintf("order %d", orderID))
		}
		var actor statemachine.Actor
		switch {
		case p.IsAdmin():
			actor = statemachine.ActorAdmin
		case policy.OwnsOrder(p, o):
			actor = statemachine.ActorCustomer
		case policy.OwnsRestaurant(p, &o.Restaurant):
			actor = statemachine.ActorRestaurant
		default:
			return forbidden("you cannot cancel order %d", o.ID)
		}
		if reason == "" {
			reason = fmt.Sprintf("cancelled by %s", actor)
		}
		ev, err = s.transition(ctx, r, o, models.StatusCancelled, actor, p.UserID, reason, nil)
		order = o
		return err
	})
	if err != nil {
		return nil, internal(s.log, "cancel order", err)
	}
	publish(ctx, s.pub, s.log, ev)
	return order, nil
}

// GetOrder returns the order with items, history, delivery and payment if p may see it
func (s *OrderService) GetOrder(ctx context.Context, p policy.Principal, orderID uint) (*models.Order, error) {
	o, err := s.store.Repos().Orders.GetDetail(ctx, orderID)
	if err != nil {
		return nil, internal(s.log, "get order", lookup(err, fmt.Sprintf("order %d", orderID)))
	}
	if !canViewOrder(p, o) {
		return nil, forbidden("order %d is not visible to you", orderID)
	}
	return o, nil
}

// ListOrders returns the orders visible to p, newest first, optionally narrowed by status
func (s *OrderService) ListOrders(ctx context.Context, p policy.Principal, status models.OrderStatus) ([]models.Order, error) {
	repos := s.store.Repos()
	f := repository.OrderFilter{Status: status}
	switch p.Role {
	case models.RoleAdmin:
	case models.RoleCustomer:
		f.CustomerID = p.UserID
	case models.RoleRestaurant:
		rest, err := repos.Restaurants.GetByOwner(ctx, p.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return []models.Order{}, nil
		}
		if err != nil {
			return nil, internal(s.log, "list orders", err)
		}
		f.RestaurantID = rest.ID
	case models.RoleDelivery:
		f.DriverID = p.UserID
	default:
		return nil, forbidden("unknown role %q", p.Role)
	}
	orders, err := repos.Orders.List(ctx, f)
	if err != nil {
		return nil, internal(s.log, "list orders", err)
	}
	return orders, nil
}

func canViewOrder(p policy.Principal, o *models.Order) bool {
	switch {
	case p.IsAdmin():
		return true
	case policy.OwnsOrder(p, o):
		return true
	case policy.OwnsRestaurant(p, &o.Restaurant):
		return true
	case o.Delivery != nil && policy.IsAssignedDriver(p, o.Delivery):
		return true
	}
	return false
}

// transition moves o to `to` inside the caller's transaction with a guarded update and
// writes the history row. It is the only code path that changes an order's status.
func (s *OrderService) transition(ctx context.Context, r repository.Repositories, o *models.Order,
	to models.OrderStatus, actor statemachine.Actor, actorID uint, note string,
	extra map[string]interface{}) (events.Event, error) {

	from := o.Status
	if err := statemachine.CanTransition(from, to, actor); err != nil {
		return events.Event{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
	}
	ok, err := r.Orders.UpdateStatusGuard(ctx, o.ID, from, to, extra)
	if err != nil {
		return events.Event{}, err
	}
	if !ok {
		return events.Event{}, fmt.Errorf("%w: order %d is no longer %s", ErrConflict, o.ID, from)
	}
	now := s.now()
	if err := r.Orders.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:    o.ID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      string(actor),
		ChangedBy:  actorID,
		Note:       note,
		CreatedAt:  now,
	}); err != nil {
		return events.Event{}, err
	}
	o.Status = to

	s.log.Info().Uint("order_id", o.ID).Str("from", string(from)).Str("to", string(to)).
		Str("actor", string(actor)).Msg("order transition")
	return events.Event{
		Kind:    events.OrderStatusChanged,
		OrderID: o.ID,
		From:    string(from),
		To:      string(to),
		ActorID: actorID,
		At:      now,
	}, nil
}
