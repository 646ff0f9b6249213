package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-reservation/internal/config"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/utils"
)

const testSecret = "test-secret"

func protectedServer(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/who", func(c echo.Context) error {
		id, role, ok := Identity(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": role, "ok": ok, "admin": IsAdmin(c)})
	}, mw...)
	return e
}

func bearer(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, userID, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func do(e *echo.Echo, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := protectedServer(JWTAuth(testSecret))

	rec := do(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	rec = do(e, "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	rec = do(e, bearer(t, "u-1", model.RoleAdmin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u-1","role":"ADMIN","ok":true,"admin":true}`, rec.Body.String())

	rec = do(e, bearer(t, "u-2", model.RoleParticipant))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"u-2","role":"PARTICIPANT","ok":true,"admin":false}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := protectedServer(JWTAuth(testSecret), RequireRole(model.RoleAdmin))

	rec := do(e, bearer(t, "u-2", model.RoleParticipant))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden","code":"ADMIN_ONLY"}`, rec.Body.String())

	rec = do(e, bearer(t, "u-1", model.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/e1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/events/:id/reservations")

	cases := map[string]string{
		"ip":         "rl:ip:10.0.0.1",
		"user":       "rl:user:anon",
		"ip_user":    "rl:ip:10.0.0.1:user:anon",
		"user_route": "rl:user:anon:route:POST /v1/events/:id/reservations",
		"":           "rl:ip:10.0.0.1:user:anon:route:POST /v1/events/:id/reservations",
	}
	for strategy, want := range cases {
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}
		assert.Equal(t, want, buildRateKey(cfg, c), strategy)
	}

	c.Set(ctxUserID, "u-9")
	assert.Equal(t, "rl:user:u-9", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := protectedServer(
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
	)
	rec := do(e, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

func TestCacheKeyIncludesParamsAndSortedQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache"}

	key := func(target, id string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/events/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		return cacheKeyFrom(cfg, c)
	}

	assert.Equal(t, key("/v1/events/a?x=1&y=2", "a"), key("/v1/events/a?y=2&x=1", "a"))
	assert.NotEqual(t, key("/v1/events/a", "a"), key("/v1/events/b", "b"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, key("/v1/events/a", "a"))
}

func TestCaptureWriterLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	assert.False(t, cw.truncated())
	_, _ = cw.Write([]byte("def"))
	assert.True(t, cw.truncated())
	assert.Equal(t, "abcdef", rec.Body.String())
}
