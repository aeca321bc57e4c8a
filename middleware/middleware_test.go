package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"food-order/middleware"
	"food-order/models"
	"food-order/policy"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type stubAuth struct {
	p   policy.Principal
	err error
}

func (s stubAuth) Authenticate(context.Context, string) (policy.Principal, error) {
	return s.p, s.err
}

func newTestRouter(auth middleware.Authenticator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestLogger(zerolog.Nop()), middleware.AuthRequired(auth))
	if len(roles) > 0 {
		r.Use(middleware.RoleRequired(roles...))
	}
	r.GET("/test", func(c *gin.Context) {
		p, _ := middleware.CurrentPrincipal(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "role": p.Role})
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(stubAuth{p: policy.NewPrincipal(1, models.RoleCustomer, "")})
	if w := do(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(stubAuth{p: policy.NewPrincipal(1, models.RoleCustomer, "")})
	if w := do(r, "Token abc"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_AuthenticatorError(t *testing.T) {
	r := newTestRouter(stubAuth{err: errors.New("bad token")})
	if w := do(r, "Bearer nope"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidTokenSetsPrincipal(t *testing.T) {
	r := newTestRouter(stubAuth{p: policy.NewPrincipal(42, models.RoleDelivery, "d@example.com")})
	w := do(r, "Bearer good")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"user_id":42`) || !strings.Contains(w.Body.String(), "DELIVERY") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
}

func TestAuth_RealTokens(t *testing.T) {
	tokens := policy.NewTokens([]byte("secret"), time.Hour)
	tok, err := tokens.Issue(&models.User{ID: 5, Email: "c@example.com", Role: models.RoleCustomer})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	users := userSource{5: {ID: 5, Email: "c@example.com", Role: models.RoleCustomer}}
	r := newTestRouter(policy.NewVerifier(tokens, users), models.RoleCustomer)
	if w := do(r, "Bearer "+tok); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := do(r, "Bearer "+tok+"x"); w.Code != http.StatusUnauthorized {
		t.Errorf("tampered token: expected 401, got %d", w.Code)
	}

	users[5].Role = models.RoleDelivery
	if w := do(r, "Bearer "+tok); w.Code != http.StatusForbidden {
		t.Errorf("role changed after issue: expected 403, got %d", w.Code)
	}
	delete(users, 5)
	if w := do(r, "Bearer "+tok); w.Code != http.StatusUnauthorized {
		t.Errorf("deleted account: expected 401, got %d", w.Code)
	}
}

type userSource map[uint]*models.User

func (u userSource) Get(_ context.Context, id uint) (*models.User, error) {
	if usr, ok := u[id]; ok {
		return usr, nil
	}
	return nil, errors.New("record not found")
}

func TestRoleRequired(t *testing.T) {
	cases := []struct {
		role models.UserRole
		want int
	}{
		{models.RoleAdmin, http.StatusOK},
		{models.RoleRestaurant, http.StatusOK},
		{models.RoleCustomer, http.StatusForbidden},
		{models.RoleDelivery, http.StatusForbidden},
	}
	for _, tc := range cases {
		r := newTestRouter(stubAuth{p: policy.NewPrincipal(1, tc.role, "")}, models.RoleAdmin, models.RoleRestaurant)
		if w := do(r, "Bearer x"); w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.role, tc.want, w.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(0.001, 2, time.Minute)))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, do(r, "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestLogger(zerolog.Nop()), middleware.Recovery(zerolog.Nop()))
	r.GET("/test", func(c *gin.Context) { panic("boom") })
	if w := do(r, ""); w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
