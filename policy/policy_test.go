package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"food-order/models"
)

func TestCapabilitiesByRole(t *testing.T) {
	cases := []struct {
		role models.UserRole
		cap  Capability
		want bool
	}{
		{models.RoleCustomer, CapPlaceOrder, true},
		{models.RoleCustomer, CapPay, true},
		{models.RoleCustomer, CapRefund, false},
		{models.RoleRestaurant, CapManageRestaurant, true},
		{models.RoleRestaurant, CapPlaceOrder, false},
		{models.RoleDelivery, CapDeliver, true},
		{models.RoleDelivery, CapDispatch, false},
		{models.RoleAdmin, CapDispatch, true},
		{models.RoleAdmin, CapRefund, true},
		{models.RoleAdmin, CapDeliver, false},
		{models.UserRole("GHOST"), CapPlaceOrder, false},
	}
	for _, tc := range cases {
		p := NewPrincipal(1, tc.role, "")
		if got := p.Can(tc.cap); got != tc.want {
			t.Errorf("%s.Can(%s) = %v, want %v", tc.role, tc.cap, got, tc.want)
		}
	}
}

func TestOwnershipPredicates(t *testing.T) {
	customer := NewPrincipal(7, models.RoleCustomer, "")
	owner := NewPrincipal(8, models.RoleRestaurant, "")
	driver := NewPrincipal(9, models.RoleDelivery, "")

	order := &models.Order{CustomerID: 7}
	if !OwnsOrder(customer, order) {
		t.Error("customer should own order")
	}
	if OwnsOrder(NewPrincipal(7, models.RoleDelivery, ""), order) {
		t.Error("matching id with the wrong role must not own an order")
	}
	if !OwnsRestaurant(owner, &models.Restaurant{OwnerID: 8}) {
		t.Error("owner should own restaurant")
	}
	if OwnsRestaurant(owner, &models.Restaurant{OwnerID: 99}) {
		t.Error("owner should not own a foreign restaurant")
	}
	if !IsAssignedDriver(driver, &models.Delivery{DriverID: 9}) {
		t.Error("driver should be assigned")
	}
	if IsAssignedDriver(driver, &models.Delivery{DriverID: 10}) {
		t.Error("other driver should not be assigned")
	}
}

func TestAuthorizeRole(t *testing.T) {
	p := NewPrincipal(1, models.RoleAdmin, "")
	if !AuthorizeRole(p, models.RoleCustomer, models.RoleAdmin) {
		t.Error("admin should pass")
	}
	if AuthorizeRole(p, models.RoleCustomer) {
		t.Error("admin is not a customer")
	}
	if err := Require(p, CapPlaceOrder); err != ErrDenied {
		t.Errorf("Require = %v, want ErrDenied", err)
	}
}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)
	tok, err := tokens.Issue(&models.User{ID: 42, Email: "a@b.c", Role: models.RoleDelivery})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	p, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.UserID != 42 || p.Role != models.RoleDelivery || !p.Can(CapDeliver) {
		t.Errorf("unexpected principal %+v", p)
	}

	other := NewTokens([]byte("other"), time.Hour)
	if _, err := other.Parse(tok); err != ErrInvalidToken {
		t.Errorf("foreign secret: got %v, want ErrInvalidToken", err)
	}
	expired := NewTokens([]byte("secret"), -time.Minute)
	old, _ := expired.Issue(&models.User{ID: 1, Role: models.RoleCustomer})
	if _, err := tokens.Parse(old); err != ErrInvalidToken {
		t.Errorf("expired: got %v, want ErrInvalidToken", err)
	}
}

type userMap map[uint]*models.User

func (m userMap) Get(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, errors.New("record not found")
}

func TestVerifierUsesCurrentRole(t *testing.T) {
	tokens := NewTokens([]byte("secret"), time.Hour)
	admin := &models.User{ID: 7, Email: "root@example.com", Role: models.RoleAdmin}
	tok, err := tokens.Issue(admin)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	users := userMap{7: {ID: 7, Email: "root@example.com", Role: models.RoleAdmin}}
	v := NewVerifier(tokens, users)

	p, err := v.Authenticate(context.Background(), tok)
	if err != nil || !p.Can(CapRefund) {
		t.Fatalf("admin token: %+v, %v", p, err)
	}

	// demoted after the token was issued
	users[7].Role = models.RoleCustomer
	p, err = v.Authenticate(context.Background(), tok)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if p.Role != models.RoleCustomer || p.Can(CapRefund) {
		t.Errorf("stale role kept: %+v", p)
	}

	delete(users, 7)
	if _, err := v.Authenticate(context.Background(), tok); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("deleted user: got %v, want ErrUnknownUser", err)
	}
	if _, err := v.Authenticate(context.Background(), tok+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token: got %v, want ErrInvalidToken", err)
	}
}
