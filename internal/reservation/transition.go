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

// transitions is the complete lifecycle. Nothing leaves CANCELED or REFUSED
// and no state transitions to itself.
var transitions = map[model.ReservationStatus][]model.ReservationStatus{
	model.ReservationPending:   {model.ReservationConfirmed, model.ReservationRefused, model.ReservationCanceled},
	model.ReservationConfirmed: {model.ReservationCanceled},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to model.ReservationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AdminOnly reports whether only an admin may move a reservation into to.
func AdminOnly(to model.ReservationStatus) bool {
	return to == model.ReservationConfirmed || to == model.ReservationRefused
}

func checkTransition(from, to model.ReservationStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	switch from {
	case model.ReservationCanceled:
		return apperr.ErrAlreadyCanceled
	case model.ReservationRefused:
		return apperr.New(apperr.CodeAlreadyRefused, "reservation was refused")
	}
	return apperr.New(apperr.CodeInvalidTransition,
		fmt.Sprintf("cannot move reservation from %s to %s", from, to))
}

// SetStatus is the admin transition entry point. CONFIRMED and REFUSED
// require an admin; CANCELED follows the same rules as Cancel.
func (s *Service) SetStatus(ctx context.Context, id string, to model.ReservationStatus, actor Actor) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.SetStatus", trace.WithAttributes(
		attribute.String("reservation.id", id),
		attribute.String("reservation.to", string(to)),
	))
	defer span.End()

	r, err := s.setStatus(ctx, id, to, actor)
	s.recorder.Transition(to, outcome(err))
	if err != nil {
		fail(span, err)
		return nil, err
	}
	s.afterWrite(ctx, r)
	return r, nil
}

func (s *Service) setStatus(ctx context.Context, id string, to model.ReservationStatus, actor Actor) (*model.Reservation, error) {
	if !to.Valid() {
		return nil, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("unknown reservation status %q", to))
	}
	if to == model.ReservationCanceled {
		return s.cancel(ctx, id, actor)
	}
	if AdminOnly(to) && !actor.Admin {
		return nil, apperr.New(apperr.CodeAdminOnly, "only an admin can "+verb(to)+" a reservation")
	}
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, r, to, actor)
}

// Cancel cancels a PENDING or CONFIRMED reservation. The owner and any admin
// may cancel; cancelling twice is an error, not a no-op.
func (s *Service) Cancel(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.Cancel", trace.WithAttributes(
		attribute.String("reservation.id", id),
	))
	defer span.End()

	r, err := s.cancel(ctx, id, actor)
	s.recorder.Transition(model.ReservationCanceled, outcome(err))
	if err != nil {
		fail(span, err)
		return nil, err
	}
	s.afterWrite(ctx, r)
	return r, nil
}

func (s *Service) cancel(ctx context.Context, id string, actor Actor) (*model.Reservation, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.UserID && !actor.Admin {
		return nil, apperr.New(apperr.CodeNotOwner, "reservation belongs to another user")
	}
	if r.Status == model.ReservationCanceled {
		return nil, apperr.ErrAlreadyCanceled
	}
	return s.apply(ctx, r, model.ReservationCanceled, actor)
}

// apply performs a conditional update keyed on r's current status. If the
// row moved underneath us it is reloaded once: a now-illegal transition is
// reported as such, a still-legal one is retried once, and a second miss is
// a lost race.
func (s *Service) apply(ctx context.Context, r *model.Reservation, to model.ReservationStatus, actor Actor) (*model.Reservation, error) {
	if err := checkTransition(r.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.reservations.UpdateStatus(ctx, r.ID, r.Status, to)
	if err == nil {
		s.logTransition(ctx, r.Status, updated, actor)
		return updated, nil
	}
	if !errors.Is(err, repository.ErrStatusMismatch) {
		return nil, fmt.Errorf("update reservation status: %w", err)
	}

	current, err := s.load(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(current.Status, to); err != nil {
		return nil, err
	}
	updated, err = s.reservations.UpdateStatus(ctx, current.ID, current.Status, to)
	if err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, apperr.Wrap(apperr.CodeConcurrentUpdate, apperr.ErrConcurrentUpdate.Message, err)
		}
		return nil, fmt.Errorf("update reservation status: %w", err)
	}
	s.logTransition(ctx, current.Status, updated, actor)
	return updated, nil
}

func (s *Service) logTransition(ctx context.Context, from model.ReservationStatus, r *model.Reservation, actor Actor) {
	logging.Info(ctx, s.logger, "reservation status changed",
		zap.String("reservation_id", r.ID),
		zap.String("event_id", r.EventID),
		zap.String("from", string(from)),
		zap.String("to", string(r.Status)),
		zap.String("actor_id", actor.UserID),
		zap.Bool("actor_admin", actor.Admin),
	)
}

func verb(to model.ReservationStatus) string {
	if to == model.ReservationRefused {
		return "refuse"
	}
	return "confirm"
}
