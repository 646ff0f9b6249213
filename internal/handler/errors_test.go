package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", apperr.ErrEventNotFound, http.StatusNotFound, `{"error":"event not found","code":"EVENT_NOT_FOUND"}`},
		{"invalid state", apperr.ErrAlreadyCanceled, http.StatusUnprocessableEntity, `{"error":"already canceled","code":"RESERVATION_ALREADY_CANCELED"}`},
		{"conflict", apperr.ErrCapacityExceeded, http.StatusConflict, `{"error":"capacity exceeded","code":"EVENT_CAPACITY_EXCEEDED"}`},
		{"retryable", apperr.ErrConcurrentUpdate, http.StatusConflict, `{"error":"reservation was modified concurrently","code":"CONCURRENT_UPDATE","retryable":true}`},
		{"forbidden", apperr.New(apperr.CodeNotOwner, "not yours"), http.StatusForbidden, `{"error":"not yours","code":"NOT_RESERVATION_OWNER"}`},
		{"invalid argument", apperr.New(apperr.CodeInvalidInput, "bad"), http.StatusBadRequest, `{"error":"bad","code":"INVALID_INPUT"}`},
		{"internal", errors.New("dial tcp: refused"), http.StatusInternalServerError, `{"error":"internal error","code":"INTERNAL"}`},
	}
	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			assert.NoError(t, writeError(c, zap.NewNop(), tc.err))
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.body, rec.Body.String())
		})
	}
}

func TestValidatorMessages(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&registerReq{Email: "x", Password: "short"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "email must be a valid email")
	assert.Contains(t, err.Error(), "password must be at least 8")

	zero := 0
	err = v.Validate(&eventReq{Capacity: &zero})
	assert.Contains(t, err.Error(), "title is required")
	assert.Contains(t, err.Error(), "date is required")

	assert.NoError(t, v.Validate(&registerReq{Email: "a@b.co", Password: "long enough"}))
}
