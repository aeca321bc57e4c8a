package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"food-order/repository"
	"food-order/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestWriteServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{log: zerolog.Nop()}

	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: order 7", services.ErrNotFound), http.StatusNotFound},
		{repository.ErrNotFound, http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrInvalidRequest, http.StatusBadRequest},
		{services.ErrInvalidSignature, http.StatusBadRequest},
		{services.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{services.ErrInvalidState, http.StatusUnprocessableEntity},
		{services.ErrConflict, http.StatusConflict},
		{fmt.Errorf("%w: unique", repository.ErrDuplicate), http.StatusConflict},
		{services.ErrUpstream, http.StatusBadGateway},
		{fmt.Errorf("%w: disk full", services.ErrInternal), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			h.writeServiceError(c, tc.err)
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &Handler{log: zerolog.Nop()}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	h.writeServiceError(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	if body := w.Body.String(); body != `{"error":"internal server error"}` {
		t.Errorf("internal detail leaked: %s", body)
	}
}
