package services

import (
	"context"
	"testing"
	"time"

	"food-order/events"
	"food-order/models"
	"food-order/policy"

	"github.com/shopspring/decimal"
)

func TestPlaceOrder_SnapshotsPricesAndWritesHistory(t *testing.T) {
	env := newTestEnv(t)
	o := env.placeOrder(t)

	if o.Status != models.StatusPending {
		t.Fatalf("expected PENDING, got %s", o.Status)
	}
	if !o.Total().Equal(decimal.RequireFromString("29")) {
		t.Errorf("expected total 29.00, got %s", o.Total())
	}

	// later price changes must not leak into the order
	env.db.Model(env.burger).Update("price", decimal.RequireFromString("99"))
	got := env.order(t, o.ID)
	if !got.Total().Equal(decimal.RequireFromString("29")) {
		t.Errorf("snapshot changed: total %s", got.Total())
	}
	if len(got.StatusHistory) != 1 || got.StatusHistory[0].ToStatus != models.StatusPending {
		t.Fatalf("expected one PENDING history row, got %+v", got.StatusHistory)
	}
	if kinds := env.pub.kinds(); len(kinds) != 1 || kinds[0] != events.OrderPlaced {
		t.Errorf("expected order.placed, got %v", kinds)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		p    policy.Principal
		cmd  PlaceOrderCommand
		want error
	}{
		{"not a customer", env.owner, PlaceOrderCommand{RestaurantID: env.rest.ID,
			Items: []ItemRequest{{env.burger.ID, 1}}, DeliveryAddress: "x"}, ErrForbidden},
		{"no items", env.customer, PlaceOrderCommand{RestaurantID: env.rest.ID, DeliveryAddress: "x"}, ErrInvalidRequest},
		{"zero quantity", env.customer, PlaceOrderCommand{RestaurantID: env.rest.ID,
			Items: []ItemRequest{{env.burger.ID, 0}}, DeliveryAddress: "x"}, ErrInvalidRequest},
		{"unknown restaurant", env.customer, PlaceOrderCommand{RestaurantID: 999,
			Items: []ItemRequest{{env.burger.ID, 1}}, DeliveryAddress: "x"}, ErrNotFound},
		{"unknown item", env.customer, PlaceOrderCommand{RestaurantID: env.rest.ID,
			Items: []ItemRequest{{999, 1}}, DeliveryAddress: "x"}, ErrNotFound},
		{"unavailable item", env.customer, PlaceOrderCommand{RestaurantID: env.rest.ID,
			Items: []ItemRequest{{env.soldOut.ID, 1}}, DeliveryAddress: "x"}, ErrInvalidRequest},
		// items from two different restaurants
		{"mixed restaurants", env.customer, PlaceOrderCommand{RestaurantID: env.rest.ID,
			Items: []ItemRequest{{env.burger.ID, 1}, {env.pie.ID, 1}}, DeliveryAddress: "x"}, ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.orders.PlaceOrder(ctx, tc.p, tc.cmd)
			expectErr(t, err, tc.want)
		})
	}

	var n int64
	env.db.Model(&models.Order{}).Count(&n)
	if n != 0 {
		t.Errorf("rejected orders must not be persisted, found %d", n)
	}
}

func TestPlaceOrder_ClosedRestaurant(t *testing.T) {
	env := newTestEnv(t)
	env.db.Model(env.rest).Update("is_open", false)

	_, err := env.orders.PlaceOrder(context.Background(), env.customer, PlaceOrderCommand{
		RestaurantID: env.rest.ID, Items: []ItemRequest{{env.burger.ID, 1}}, DeliveryAddress: "x",
	})
	expectErr(t, err, ErrInvalidRequest)
}

func TestUpdateOrderStatus_RestaurantPath(t *testing.T) {
	env := newTestEnv(t)
	o := env.placeOrder(t)
	eta := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	got, err := env.orders.UpdateOrderStatus(context.Background(), env.owner, UpdateStatusCommand{
		OrderID: o.ID, Status: models.StatusConfirmed, EstimatedReadyAt: &eta, Note: "on it",
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got.Status != models.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", got.Status)
	}
	env.advance(t, o.ID, models.StatusPreparing, models.StatusReady)

	stored := env.order(t, o.ID)
	if stored.Status != models.StatusReady {
		t.Fatalf("expected READY, got %s", stored.Status)
	}
	if stored.EstimatedReadyAt == nil || !stored.EstimatedReadyAt.Equal(eta) {
		t.Errorf("estimated ready time not stored: %v", stored.EstimatedReadyAt)
	}
	if len(stored.StatusHistory) != 4 {
		t.Fatalf("expected 4 history rows, got %d", len(stored.StatusHistory))
	}
	last := stored.StatusHistory[3]
	if last.FromStatus != models.StatusPreparing || last.ToStatus != models.StatusReady || last.ChangedBy != env.owner.UserID {
		t.Errorf("unexpected history row %+v", last)
	}
}

func TestUpdateOrderStatus_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.placeOrder(t)

	_, err := env.orders.UpdateOrderStatus(ctx, env.otherOwner, UpdateStatusCommand{OrderID: o.ID, Status: models.StatusConfirmed})
	expectErr(t, err, ErrForbidden)

	_, err = env.orders.UpdateOrderStatus(ctx, env.customer, UpdateStatusCommand{OrderID: o.ID, Status: models.StatusConfirmed})
	expectErr(t, err, ErrForbidden)

	_, err = env.orders.UpdateOrderStatus(ctx, env.owner, UpdateStatusCommand{OrderID: 999, Status: models.StatusConfirmed})
	expectErr(t, err, ErrNotFound)

	_, err = env.orders.UpdateOrderStatus(ctx, env.owner, UpdateStatusCommand{OrderID: o.ID, Status: models.StatusReady})
	expectErr(t, err, ErrInvalidTransition)

	env.advance(t, o.ID, models.StatusConfirmed, models.StatusPreparing, models.StatusReady)
	for _, st := range []models.OrderStatus{models.StatusOutForDelivery, models.StatusDelivered} {
		_, err = env.orders.UpdateOrderStatus(ctx, env.owner, UpdateStatusCommand{OrderID: o.ID, Status: st})
		expectErr(t, err, ErrInvalidTransition)
	}
	if got := env.order(t, o.ID).Status; got != models.StatusReady {
		t.Errorf("rejected transitions changed status to %s", got)
	}
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	t.Run("customer cancels pending", func(t *testing.T) {
		o := env.placeOrder(t)
		got, err := env.orders.CancelOrder(ctx, env.customer, o.ID, "changed my mind")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got.Status != models.StatusCancelled {
			t.Errorf("expected CANCELLED, got %s", got.Status)
		}
	})

	t.Run("customer cannot cancel confirmed", func(t *testing.T) {
		o := env.placeOrder(t)
		env.advance(t, o.ID, models.StatusConfirmed)
		_, err := env.orders.CancelOrder(ctx, env.customer, o.ID, "")
		expectErr(t, err, ErrInvalidTransition)
	})

	t.Run("other customer is forbidden", func(t *testing.T) {
		o := env.placeOrder(t)
		_, err := env.orders.CancelOrder(ctx, env.otherCustomer, o.ID, "")
		expectErr(t, err, ErrForbidden)
	})

	t.Run("admin cancels preparing", func(t *testing.T) {
		o := env.placeOrder(t)
		env.advance(t, o.ID, models.StatusConfirmed, models.StatusPreparing)
		if _, err := env.orders.CancelOrder(ctx, env.admin, o.ID, ""); err != nil {
			t.Fatalf("admin cancel: %v", err)
		}
		h := env.order(t, o.ID).StatusHistory
		if h[len(h)-1].Actor != "admin" {
			t.Errorf("expected admin actor, got %s", h[len(h)-1].Actor)
		}
	})

	t.Run("nobody cancels ready", func(t *testing.T) {
		o := env.readyOrder(t)
		_, err := env.orders.CancelOrder(ctx, env.admin, o.ID, "")
		expectErr(t, err, ErrInvalidTransition)
	})
}

func TestGetAndListOrders_Visibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.placeOrder(t)

	for _, p := range []policy.Principal{env.customer, env.owner, env.admin} {
		if _, err := env.orders.GetOrder(ctx, p, o.ID); err != nil {
			t.Errorf("%s should see order: %v", p.Role, err)
		}
	}
	for _, p := range []policy.Principal{env.otherCustomer, env.otherOwner, env.driver} {
		_, err := env.orders.GetOrder(ctx, p, o.ID)
		expectErr(t, err, ErrForbidden)
	}

	count := func(p policy.Principal) int {
		list, err := env.orders.ListOrders(ctx, p, "")
		if err != nil {
			t.Fatalf("list for %s: %v", p.Role, err)
		}
		return len(list)
	}
	if count(env.customer) != 1 || count(env.otherCustomer) != 0 {
		t.Error("customers should only list their own orders")
	}
	if count(env.owner) != 1 || count(env.otherOwner) != 0 {
		t.Error("restaurants should only list their own orders")
	}
	if count(env.admin) != 1 {
		t.Error("admin should list every order")
	}
	if count(env.driver) != 0 {
		t.Error("driver without deliveries should list nothing")
	}

	pending, err := env.orders.ListOrders(ctx, env.admin, models.StatusDelivered)
	if err != nil || len(pending) != 0 {
		t.Errorf("status filter: %d orders, err %v", len(pending), err)
	}
}
