package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/event"
	"github.com/iliyamo/event-reservation/internal/logging"
	"github.com/iliyamo/event-reservation/internal/model"
)

// CachePurger drops cached public responses after an event changes.
type CachePurger func(ctx context.Context) error

// EventHandler serves the public event catalogue and the admin event
// management routes.
type EventHandler struct {
	svc     *event.Service
	purge   CachePurger
	logger  *zap.Logger
	timeout time.Duration
}

// NewEventHandler builds the handler. purge may be nil when no response
// cache is configured.
func NewEventHandler(svc *event.Service, purge CachePurger, logger *zap.Logger, timeout time.Duration) *EventHandler {
	if svc == nil {
		panic("nil service passed to NewEventHandler")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{svc: svc, purge: purge, logger: logger.Named("event-handler"), timeout: timeout}
}

type eventReq struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=255"`
	Date        time.Time `json:"date" validate:"required"`
	Capacity    *int      `json:"capacity" validate:"required,gte=0"`
}

func (r eventReq) input() event.Input {
	in := event.Input{
		Title:       strings.TrimSpace(r.Title),
		Description: r.Description,
		Location:    strings.TrimSpace(r.Location),
		Date:        r.Date,
	}
	if r.Capacity != nil {
		in.Capacity = *r.Capacity
	}
	return in
}

// ListPublished handles GET /v1/events: published events, soonest first.
func (h *EventHandler) ListPublished(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	items, err := h.svc.List(ctx, model.EventPublished)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// GetPublished handles GET /v1/events/:id. Unpublished events are reported
// as not found.
func (h *EventHandler) GetPublished(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	ev, err := h.svc.GetPublished(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// List handles GET /v1/admin/events?status=DRAFT,PUBLISHED.
func (h *EventHandler) List(c echo.Context) error {
	var statuses []model.EventStatus
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			st := model.EventStatus(strings.ToUpper(strings.TrimSpace(p)))
			if !st.Valid() {
				return writeError(c, h.logger, apperr.New(apperr.CodeInvalidInput, "unknown event status "+p))
			}
			statuses = append(statuses, st)
		}
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	items, err := h.svc.List(ctx, statuses...)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /v1/admin/events/:id in any status.
func (h *EventHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	ev, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// Create handles POST /v1/admin/events. New events start as DRAFT.
func (h *EventHandler) Create(c echo.Context) error {
	var req eventReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	ev, err := h.svc.Create(ctx, req.input())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// Update handles PUT /v1/admin/events/:id.
func (h *EventHandler) Update(c echo.Context) error {
	var req eventReq
	if err := bindValid(c, &req); err != nil {
		return writeError(c, h.logger, err)
	}
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	ev, err := h.svc.Update(ctx, c.Param("id"), req.input())
	if err != nil {
		return writeError(c, h.logger, err)
	}
	h.purgeCache(ctx)
	return c.JSON(http.StatusOK, ev)
}

// Publish handles POST /v1/admin/events/:id/publish.
func (h *EventHandler) Publish(c echo.Context) error {
	return h.changeStatus(c, h.svc.Publish)
}

// Cancel handles POST /v1/admin/events/:id/cancel. Existing reservations
// keep their status.
func (h *EventHandler) Cancel(c echo.Context) error {
	return h.changeStatus(c, h.svc.Cancel)
}

func (h *EventHandler) changeStatus(c echo.Context, fn func(context.Context, string) (*model.Event, error)) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	ev, err := fn(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	h.purgeCache(ctx)
	return c.JSON(http.StatusOK, ev)
}

func (h *EventHandler) purgeCache(ctx context.Context) {
	if h.purge == nil {
		return
	}
	if err := h.purge(ctx); err != nil {
		logging.Warn(ctx, h.logger, "purge browse cache failed", zap.Error(err))
	}
}
