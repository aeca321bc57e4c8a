package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"food-order/events"
	"food-order/handlers"
	"food-order/models"
	"food-order/payments"
	"food-order/policy"
	"food-order/repository"
	"food-order/routes"
	"food-order/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeProvider struct {
	intentErr error
	refunds   int
}

func (f *fakeProvider) CreateIntent(_ context.Context, _ int64, _ string, md map[string]string) (payments.Intent, error) {
	if f.intentErr != nil {
		return payments.Intent{}, f.intentErr
	}
	return payments.Intent{ProviderID: "pi_" + md["orderId"], ClientSecret: "pi_" + md["orderId"] + "_secret"}, nil
}

func (f *fakeProvider) CreateRefund(context.Context, string, int64, string) (string, error) {
	f.refunds++
	return fmt.Sprintf("re_%d", f.refunds), nil
}

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

type testServer struct {
	r        *gin.Engine
	db       *gorm.DB
	tokens   *policy.Tokens
	provider *fakeProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	log := zerolog.Nop()
	store := repository.NewStore(db)
	pub := events.NewLogPublisher(log)
	provider := &fakeProvider{}
	orders := services.NewOrderService(store, pub, log)
	deliveries := services.NewDeliveryService(store, orders, pub, log)
	paymentSvc := services.NewPaymentService(store, orders, provider, nil, pub, log, "usd")
	tokens := policy.NewTokens([]byte("test-secret"), time.Hour)

	r := gin.New()
	routes.SetupRoutes(r, handlers.New(store, tokens, orders, deliveries, paymentSvc, log), policy.NewVerifier(tokens, store.Repos().Users))
	return &testServer{r: r, db: db, tokens: tokens, provider: provider}
}

// user inserts an account directly and returns it with a bearer token
func (s *testServer) user(t *testing.T, name string, role models.UserRole) (*models.User, string) {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	if err := s.db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

// menu gives owner a restaurant with one 12.50 burger
func (s *testServer) menu(t *testing.T, owner *models.User) (*models.Restaurant, *models.MenuItem) {
	t.Helper()
	rest := &models.Restaurant{OwnerID: owner.ID, Name: "Luigi's", Address: "2 Side St"}
	if err := s.db.Create(rest).Error; err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	item := &models.MenuItem{RestaurantID: rest.ID, Name: "Burger", Price: decimal.RequireFromString("12.50")}
	if err := s.db.Create(item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	return rest, item
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

// placeOrder orders two burgers as the customer behind token
func (s *testServer) placeOrder(t *testing.T, token string, rest *models.Restaurant, item *models.MenuItem) uint {
	t.Helper()
	w := s.do(http.MethodPost, "/api/customer/orders", token, gin.H{
		"restaurant_id":    rest.ID,
		"delivery_address": "1 Main St",
		"items":            []gin.H{{"menu_item_id": item.ID, "quantity": 2}},
	})
	expectStatus(t, w, http.StatusCreated)
	var resp struct {
		Order models.Order    `json:"order"`
		Total decimal.Decimal `json:"total"`
	}
	decode(t, w, &resp)
	if !resp.Total.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected total 25, got %s", resp.Total)
	}
	return resp.Order.ID
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

// post sends a raw provider callback with the given signature header
func (s *testServer) post(path string, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}
