package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/config"
	"github.com/iliyamo/event-reservation/internal/event"
	"github.com/iliyamo/event-reservation/internal/handler"
	"github.com/iliyamo/event-reservation/internal/metrics"
	"github.com/iliyamo/event-reservation/internal/repository/memstore"
	"github.com/iliyamo/event-reservation/internal/reservation"
)

const secret = "router-test-secret"

type APISuite struct {
	suite.Suite
	e *echo.Echo

	admin, alice, bob string // access tokens
	aliceID           string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	cfg := config.Config{
		JWTSecret:      secret,
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
		AdminEmails:    []string{"admin@example.com"},
		RequestTimeout: time.Second,
	}
	logger := zap.NewNop()
	store := memstore.New()
	m := metrics.New()

	events := event.NewService(store.Events(), logger)
	reservations := reservation.NewService(store.Events(), store.Reservations(), logger, reservation.WithRecorder(m))

	e := echo.New()
	e.Validator = handler.NewValidator()
	RegisterRoutes(e, nil, m.Handler())
	RegisterAuth(e, handler.NewAuthHandler(cfg, store.Users(), store.Tokens(), logger), secret)
	eh := handler.NewEventHandler(events, nil, logger, time.Second)
	rh := handler.NewReservationHandler(reservations, nil, logger, time.Second)
	RegisterPublic(e, eh, nil)
	RegisterParticipant(e, rh, secret, nil)
	RegisterAdmin(e, eh, rh, secret)
	s.e = e

	s.admin, _ = s.register("admin@example.com")
	s.alice, s.aliceID = s.register("alice@example.com")
	s.bob, _ = s.register("bob@example.com")
}

func (s *APISuite) do(method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != "" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func (s *APISuite) register(email string) (token, id string) {
	rec, out := s.do(http.MethodPost, "/v1/auth/register", "", map[string]string{
		"email": email, "password": "password123",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	access := out["access"].(map[string]any)
	user := out["user"].(map[string]any)
	return access["token"].(string), user["id"].(string)
}

func (s *APISuite) createEvent(capacity int, publish bool) string {
	rec, out := s.do(http.MethodPost, "/v1/admin/events", s.admin, map[string]any{
		"title":    "Gophercon",
		"location": "Berlin",
		"date":     time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"capacity": capacity,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("DRAFT", out["status"])
	id := out["id"].(string)
	if publish {
		rec, out = s.do(http.MethodPost, "/v1/admin/events/"+id+"/publish", s.admin, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal("PUBLISHED", out["status"])
	}
	return id
}

func (s *APISuite) TestRolesFromRegistration() {
	rec, out := s.do(http.MethodGet, "/v1/me", s.admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("ADMIN", out["role"])

	rec, out = s.do(http.MethodGet, "/v1/me", s.alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("PARTICIPANT", out["role"])
	s.Equal(s.aliceID, out["user_id"])
}

func (s *APISuite) TestAdmissionFlow() {
	id := s.createEvent(1, true)

	rec, out := s.do(http.MethodPost, "/v1/events/"+id+"/reservations", s.alice, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("PENDING", out["status"])
	resID := out["id"].(string)

	rec, out = s.do(http.MethodPost, "/v1/events/"+id+"/reservations", s.alice, nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("RESERVATION_DUPLICATE", out["code"])

	rec, out = s.do(http.MethodPost, "/v1/events/"+id+"/reservations", s.bob, nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("EVENT_CAPACITY_EXCEEDED", out["code"])

	rec, out = s.do(http.MethodPost, "/v1/reservations/"+resID+"/cancel", s.bob, nil)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("NOT_RESERVATION_OWNER", out["code"])

	rec, out = s.do(http.MethodPatch, "/v1/admin/reservations/"+resID+"/status", s.alice, map[string]string{"status": "CONFIRMED"})
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("ADMIN_ONLY", out["code"])

	rec, out = s.do(http.MethodPatch, "/v1/admin/reservations/"+resID+"/status", s.admin, map[string]string{"status": "confirmed"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("CONFIRMED", out["status"])

	rec, out = s.do(http.MethodGet, "/v1/admin/events/"+id+"/stats", s.admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(100.0, out["fill_rate"])
	s.Equal(1.0, out["active_reservation_count"])
	breakdown := out["breakdown"].(map[string]any)
	s.Len(breakdown, 4)
	s.Equal(1.0, breakdown["CONFIRMED"])

	rec, out = s.do(http.MethodPost, "/v1/reservations/"+resID+"/cancel", s.alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("CANCELED", out["status"])

	rec, out = s.do(http.MethodPost, "/v1/reservations/"+resID+"/cancel", s.alice, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("RESERVATION_ALREADY_CANCELED", out["code"])

	// the freed slot goes to bob
	rec, _ = s.do(http.MethodPost, "/v1/events/"+id+"/reservations", s.bob, nil)
	s.Equal(http.StatusCreated, rec.Code)

	rec, out = s.do(http.MethodGet, "/v1/admin/events/"+id+"/reservations", s.admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(2.0, out["count"])

	rec, out = s.do(http.MethodGet, "/v1/my-reservations", s.alice, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(1.0, out["count"])
}

func (s *APISuite) TestEventGates() {
	draft := s.createEvent(5, false)

	rec, out := s.do(http.MethodPost, "/v1/events/"+draft+"/reservations", s.alice, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("EVENT_NOT_OPEN", out["code"])

	rec, out = s.do(http.MethodPost, "/v1/events/does-not-exist/reservations", s.alice, nil)
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("EVENT_NOT_FOUND", out["code"])

	rec, _ = s.do(http.MethodGet, "/v1/events/"+draft, "", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodPost, "/v1/admin/events/"+draft+"/publish", s.admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec, out = s.do(http.MethodGet, "/v1/events", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(1.0, out["count"])

	rec, _ = s.do(http.MethodPost, "/v1/admin/events/"+draft+"/cancel", s.admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec, out = s.do(http.MethodPost, "/v1/events/"+draft+"/reservations", s.alice, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("EVENT_NOT_OPEN", out["code"])

	rec, out = s.do(http.MethodPost, "/v1/admin/events/"+draft+"/publish", s.admin, nil)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("INVALID_EVENT_TRANSITION", out["code"])
}

func (s *APISuite) TestValidationAndAuth() {
	rec, out := s.do(http.MethodPost, "/v1/admin/events", s.admin, map[string]any{"capacity": 3})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("INVALID_INPUT", out["code"])

	rec, out = s.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "nope", "password": "password123"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("INVALID_INPUT", out["code"])

	rec, out = s.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "ALICE@example.com", "password": "password123"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("EMAIL_EXISTS", out["code"])

	rec, _ = s.do(http.MethodGet, "/v1/my-reservations", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "wrong-pass"})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestRefreshRotation() {
	rec, out := s.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password123"})
	s.Require().Equal(http.StatusOK, rec.Code)
	raw := out["refresh"].(map[string]any)["token"].(string)

	rec, _ = s.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": raw})
	s.Require().Equal(http.StatusOK, rec.Code)

	// the old token was revoked by rotation
	rec, _ = s.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": raw})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodPost, "/v1/auth/logout", s.alice, nil)
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *APISuite) TestHealthAndMetrics() {
	rec, _ := s.do(http.MethodGet, "/healthz", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodGet, "/readyz", "", nil)
	s.Equal(http.StatusOK, rec.Code)

	id := s.createEvent(1, true)
	s.do(http.MethodPost, "/v1/events/"+id+"/reservations", s.alice, nil)
	s.do(http.MethodPost, "/v1/events/"+id+"/reservations", s.bob, nil)

	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `reservation_admissions_total{outcome="ok"} 1`)
	s.Contains(rec.Body.String(), `reservation_admissions_total{outcome="event_capacity_exceeded"} 1`)
}
