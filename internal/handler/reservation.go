package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/middleware"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/reservation"
)

// ReservationHandler exposes the reservation engine over HTTP. All routes
// sit behind JWTAuth; admin-only routes additionally behind RequireRole.
type ReservationHandler struct {
	svc     *reservation.Service
	stats   reservation.StatsReader
	logger  *zap.Logger
	timeout time.Duration
}

// NewReservationHandler builds the handler. stats may be a cache in front
// of svc; when nil, svc answers stats directly.
func NewReservationHandler(svc *reservation.Service, stats reservation.StatsReader, logger *zap.Logger, timeout time.Duration) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	if stats == nil {
		stats = svc
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationHandler{svc: svc, stats: stats, logger: logger.Named("reservation-handler"), timeout: timeout}
}

func actorFrom(c echo.Context) (reservation.Actor, bool) {
	id, _, ok := middleware.Identity(c)
	return reservation.Actor{UserID: id, Admin: middleware.IsAdmin(c)}, ok
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// Create handles POST /v1/events/:id/reservations. The reservation is made
// for the caller and starts PENDING.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	r, err := h.svc.Create(ctx, c.Param("id"), actor.UserID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// ListMine handles GET /v1/my-reservations, newest first.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	items, err := h.svc.ListByUser(ctx, actor.UserID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /v1/reservations/:id for the owner or an admin.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	r, err := h.svc.Get(ctx, c.Param("id"), actor)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, r)
}

// Cancel handles POST /v1/reservations/:id/cancel for the owner or an admin.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	r, err := h.svc.Cancel(ctx, c.Param("id"), actor)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, r)
}

type setStatusReq struct {
	Status string `json:"status" validate:"required"`
}

// SetStatus handles PATCH /v1/admin/reservations/:id/status with a body of
// {"status": "CONFIRMED" | "REFUSED" | "CANCELED"}.
func (h *ReservationHandler) SetStatus(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req setStatusReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	to := model.ReservationStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	r, err := h.svc.SetStatus(ctx, c.Param("id"), to, actor)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListByEvent handles GET /v1/admin/events/:id/reservations, oldest first.
func (h *ReservationHandler) ListByEvent(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	items, err := h.svc.ListByEvent(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Stats handles GET /v1/admin/events/:id/stats.
func (h *ReservationHandler) Stats(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	st, err := h.stats.Stats(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, st)
}
