package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"food-order/events"
	"food-order/models"
	"food-order/payments"
	"food-order/policy"
	"food-order/repository"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeProvider struct {
	mu        sync.Mutex
	intentErr error
	refundErr error
	intents   int
	refunds   []int64
	// afterRefund runs once the provider has accepted a refund, before CreateRefund returns
	afterRefund func(amountMinor int64)
}

func (f *fakeProvider) CreateIntent(_ context.Context, amountMinor int64, _ string, md map[string]string) (payments.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.intentErr != nil {
		return payments.Intent{}, f.intentErr
	}
	f.intents++
	id := fmt.Sprintf("pi_%s_%d", md["orderId"], f.intents)
	return payments.Intent{ProviderID: id, ClientSecret: id + "_secret"}, nil
}

func (f *fakeProvider) CreateRefund(_ context.Context, _ string, amountMinor int64, _ string) (string, error) {
	f.mu.Lock()
	if f.refundErr != nil {
		f.mu.Unlock()
		return "", f.refundErr
	}
	f.refunds = append(f.refunds, amountMinor)
	id := fmt.Sprintf("re_%d", len(f.refunds))
	hook := f.afterRefund
	f.mu.Unlock()
	if hook != nil {
		hook(amountMinor)
	}
	return id, nil
}

// VerifyWebhook accepts the literal signature "valid" and a JSON-encoded payments.Event
func (f *fakeProvider) VerifyWebhook(payload []byte, signature string) (*payments.Event, error) {
	if signature != "valid" {
		return nil, fmt.Errorf("%w: signature mismatch", payments.ErrInvalidSignature)
	}
	var ev payments.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, evs ...events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, evs...)
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.evs))
	for i, ev := range r.evs {
		out[i] = ev.Kind
	}
	return out
}

type memSeen struct {
	mu  sync.Mutex
	ids map[string]bool
}

func (m *memSeen) Seen(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[id], nil
}

func (m *memSeen) Mark(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = true
	return nil
}

type testEnv struct {
	db         *gorm.DB
	store      repository.Store
	orders     *OrderService
	deliveries *DeliveryService
	payments   *PaymentService
	provider   *fakeProvider
	pub        *recorder

	customer, otherCustomer policy.Principal
	owner, otherOwner       policy.Principal
	driver, otherDriver     policy.Principal
	admin                   policy.Principal

	rest, otherRest             *models.Restaurant
	burger, fries, soldOut, pie *models.MenuItem // pie belongs to otherRest
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)
	store := repository.NewStore(db)
	pub := &recorder{}
	provider := &fakeProvider{}
	log := zerolog.Nop()

	orders := NewOrderService(store, pub, log)
	env := &testEnv{
		db:         db,
		store:      store,
		orders:     orders,
		deliveries: NewDeliveryService(store, orders, pub, log),
		payments:   NewPaymentService(store, orders, provider, &memSeen{ids: map[string]bool{}}, pub, log, "usd"),
		provider:   provider,
		pub:        pub,
	}

	user := func(name string, role models.UserRole) policy.Principal {
		u := &models.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("create user %s: %v", name, err)
		}
		return policy.NewPrincipal(u.ID, u.Role, u.Email)
	}
	env.customer = user("alice", models.RoleCustomer)
	env.otherCustomer = user("bob", models.RoleCustomer)
	env.owner = user("luigi", models.RoleRestaurant)
	env.otherOwner = user("mario", models.RoleRestaurant)
	env.driver = user("dan", models.RoleDelivery)
	env.otherDriver = user("dora", models.RoleDelivery)
	env.admin = user("root", models.RoleAdmin)

	restaurant := func(owner policy.Principal, name string) *models.Restaurant {
		r := &models.Restaurant{OwnerID: owner.UserID, Name: name, Cuisine: "diner"}
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("create restaurant: %v", err)
		}
		return r
	}
	env.rest = restaurant(env.owner, "Luigi's")
	env.otherRest = restaurant(env.otherOwner, "Mario's")

	item := func(r *models.Restaurant, name, price string) *models.MenuItem {
		mi := &models.MenuItem{RestaurantID: r.ID, Name: name, Price: decimal.RequireFromString(price)}
		if err := db.Create(mi).Error; err != nil {
			t.Fatalf("create menu item: %v", err)
		}
		return mi
	}
	env.burger = item(env.rest, "Burger", "12.50")
	env.fries = item(env.rest, "Fries", "4.00")
	env.soldOut = item(env.rest, "Truffle Soup", "9.00")
	env.pie = item(env.otherRest, "Apple Pie", "6.00")
	// default:true would swallow a false on create
	if err := db.Model(env.soldOut).Update("is_available", false).Error; err != nil {
		t.Fatalf("mark sold out: %v", err)
	}
	return env
}

// placeOrder orders two burgers and fries, 29.00 in total
func (e *testEnv) placeOrder(t *testing.T) *models.Order {
	t.Helper()
	o, err := e.orders.PlaceOrder(context.Background(), e.customer, PlaceOrderCommand{
		RestaurantID:    e.rest.ID,
		Items:           []ItemRequest{{MenuItemID: e.burger.ID, Quantity: 2}, {MenuItemID: e.fries.ID, Quantity: 1}},
		DeliveryAddress: "1 Main St",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return o
}

func (e *testEnv) advance(t *testing.T, orderID uint, statuses ...models.OrderStatus) {
	t.Helper()
	for _, st := range statuses {
		if _, err := e.orders.UpdateOrderStatus(context.Background(), e.owner, UpdateStatusCommand{OrderID: orderID, Status: st}); err != nil {
			t.Fatalf("advance order %d to %s: %v", orderID, st, err)
		}
	}
}

func (e *testEnv) readyOrder(t *testing.T) *models.Order {
	t.Helper()
	o := e.placeOrder(t)
	e.advance(t, o.ID, models.StatusConfirmed, models.StatusPreparing, models.StatusReady)
	return o
}

func (e *testEnv) webhook(t *testing.T, ev payments.Event) *WebhookResult {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	res, err := e.payments.HandleProviderEvent(context.Background(), payload, "valid")
	if err != nil {
		t.Fatalf("handle %s: %v", ev.Type, err)
	}
	return res
}

// paidOrder places an order, opens a payment and settles it through a webhook
func (e *testEnv) paidOrder(t *testing.T) (*models.Order, *models.Payment) {
	t.Helper()
	o := e.placeOrder(t)
	intent, err := e.payments.CreatePaymentIntent(context.Background(), e.customer, o.ID)
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	pay := e.payment(t, intent.PaymentID)
	e.webhook(t, payments.Event{
		ID:       "evt_paid_" + *pay.ProviderIntentID,
		Type:     payments.EventIntentSucceeded,
		IntentID: *pay.ProviderIntentID,
	})
	return e.order(t, o.ID), e.payment(t, pay.ID)
}

func (e *testEnv) order(t *testing.T, id uint) *models.Order {
	t.Helper()
	o, err := e.store.Repos().Orders.GetDetail(context.Background(), id)
	if err != nil {
		t.Fatalf("load order %d: %v", id, err)
	}
	return o
}

func (e *testEnv) payment(t *testing.T, id uint) *models.Payment {
	t.Helper()
	p, err := e.store.Repos().Payments.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("load payment %d: %v", id, err)
	}
	return p
}

func (e *testEnv) delivery(t *testing.T, id uint) *models.Delivery {
	t.Helper()
	d, err := e.store.Repos().Deliveries.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("load delivery %d: %v", id, err)
	}
	return d
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
