package reservation

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/logging"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// Create admits a new PENDING reservation for userID on eventID.
//
// The gates run in order and each is a hard stop: the event must exist, it
// must be PUBLISHED, the user must not already hold a reservation for it
// that is not CANCELED, and fewer than capacity reservations may be PENDING
// or CONFIRMED. The store re-checks the last three in the same unit of work
// as the insert, so two concurrent requests cannot both take the last slot.
func (s *Service) Create(ctx context.Context, eventID, userID string) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.Create", trace.WithAttributes(
		attribute.String("event.id", eventID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	r, err := s.admit(ctx, eventID, userID)
	if err != nil {
		fail(span, err)
		s.recorder.Admission(outcome(err))
		if apperr.CodeOf(err) == "" {
			logging.Error(ctx, s.logger, "admission failed",
				zap.String("event_id", eventID),
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("reservation.id", r.ID))
	s.recorder.Admission("admitted")
	logging.Info(ctx, s.logger, "reservation admitted",
		zap.String("reservation_id", r.ID),
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
	)
	s.afterWrite(ctx, r)
	return r, nil
}

func (s *Service) admit(ctx context.Context, eventID, userID string) (*model.Reservation, error) {
	ev, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != model.EventPublished {
		return nil, errEventNotOpen(ev.Status)
	}

	existing, err := s.reservations.FindActiveByUserAndEvent(ctx, userID, eventID)
	switch {
	case err == nil && existing != nil:
		return nil, apperr.ErrDuplicate
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("find active reservation: %w", err)
	}

	active, err := s.reservations.CountByEvent(ctx, eventID, model.CapacityExcluded...)
	if err != nil {
		return nil, fmt.Errorf("count reservations: %w", err)
	}
	if active >= ev.Capacity {
		return nil, apperr.ErrCapacityExceeded
	}

	now := s.now().UTC()
	r := &model.Reservation{
		ID:        s.newID(),
		UserID:    userID,
		EventID:   eventID,
		Status:    model.ReservationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reservations.Insert(ctx, r); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateActive):
			return nil, apperr.ErrDuplicate
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, apperr.ErrCapacityExceeded
		case errors.Is(err, repository.ErrEventClosed):
			return nil, errEventNotOpen("")
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.ErrEventNotFound
		}
		return nil, fmt.Errorf("insert reservation: %w", err)
	}
	return r, nil
}

func errEventNotOpen(status model.EventStatus) error {
	switch status {
	case model.EventDraft:
		return apperr.New(apperr.CodeEventNotOpen, "cannot reserve for unpublished event")
	case model.EventCanceled:
		return apperr.New(apperr.CodeEventNotOpen, "cannot reserve for canceled event")
	}
	return apperr.New(apperr.CodeEventNotOpen, "cannot reserve for unpublished/canceled event")
}
