// Package reservation is the admission and status-transition engine. It
// decides whether a reservation request is accepted, keeps at most one
// active reservation per user and event, keeps the capacity-holding count
// at or below the event's capacity, and governs the reservation lifecycle.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/logging"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// Actor is the authenticated caller on whose behalf an operation runs.
type Actor struct {
	UserID string
	Admin  bool
}

// Service implements admission, transitions and the read projections.
type Service struct {
	events       EventReader
	reservations Store
	publisher    Publisher
	invalidator  StatsInvalidator
	recorder     Recorder
	logger       *zap.Logger
	tracer       trace.Tracer
	now          func() time.Time
	newID        func() string
}

// Option customises a Service.
type Option func(*Service)

// WithPublisher sets where notifications go after a successful write.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithStatsInvalidator sets the cache dropped after every write.
func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// WithRecorder sets the outcome counter sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source used for createdAt/updatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides how reservation ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService wires the engine to its stores.
func NewService(events EventReader, reservations Store, logger *zap.Logger, opts ...Option) *Service {
	if events == nil || reservations == nil {
		panic("nil store passed to reservation.NewService")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		events:       events,
		reservations: reservations,
		recorder:     nopRecorder{},
		logger:       logger.Named("reservation"),
		tracer:       otel.Tracer("reservation"),
		now:          time.Now,
		newID:        func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one reservation. Only its owner or an admin may read it.
func (s *Service) Get(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.UserID && !actor.Admin {
		return nil, apperr.New(apperr.CodeNotOwner, "reservation belongs to another user")
	}
	return r, nil
}

// ListByEvent returns every reservation for the event, oldest first.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error) {
	if _, err := s.loadEvent(ctx, eventID); err != nil {
		return nil, err
	}
	list, err := s.reservations.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by event: %w", err)
	}
	return list, nil
}

// ListByUser returns every reservation the user holds, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	list, err := s.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by user: %w", err)
	}
	return list, nil
}

func (s *Service) load(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrReservationNotFound
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return r, nil
}

func (s *Service) loadEvent(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return ev, nil
}

// afterWrite runs the side effects of a committed write. None of them can
// fail the request.
func (s *Service) afterWrite(ctx context.Context, r *model.Reservation) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, r.EventID)
	}
	if s.publisher == nil {
		return
	}
	n := Notification{
		Type:          notificationFor(r.Status),
		ReservationID: r.ID,
		EventID:       r.EventID,
		UserID:        r.UserID,
		Status:        r.Status,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		s.recorder.PublishFailure()
		logging.Warn(ctx, s.logger, "publish notification failed",
			zap.String("type", string(n.Type)),
			zap.String("reservation_id", r.ID),
			zap.Error(err),
		)
	}
}

// fail records err on the span. Domain errors are expected outcomes and are
// not marked as span errors.
func fail(span trace.Span, err error) {
	if apperr.CodeOf(err) != "" {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := apperr.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}
