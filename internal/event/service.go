// Package event manages the events reservations are made against: drafting,
// editing, publishing and cancelling them.
package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/logging"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// Store persists events. FindByID and the update methods return
// repository.ErrNotFound for unknown ids; UpdateStatus returns
// repository.ErrStatusMismatch when the event is no longer in from.
type Store interface {
	Create(ctx context.Context, ev *model.Event) error
	FindByID(ctx context.Context, id string) (*model.Event, error)
	Update(ctx context.Context, ev *model.Event) (*model.Event, error)
	UpdateStatus(ctx context.Context, id string, from, to model.EventStatus) (*model.Event, error)
	List(ctx context.Context, statuses ...model.EventStatus) ([]model.Event, error)
}

var transitions = map[model.EventStatus][]model.EventStatus{
	model.EventDraft:     {model.EventPublished, model.EventCanceled},
	model.EventPublished: {model.EventCanceled},
}

// CanTransition reports whether an event may move from -> to.
func CanTransition(from, to model.EventStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Input carries the editable fields of an event.
type Input struct {
	Title       string
	Description string
	Location    string
	Date        time.Time
	Capacity    int
}

func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return apperr.New(apperr.CodeInvalidInput, "title is required")
	case in.Capacity < 0:
		return apperr.New(apperr.CodeInvalidInput, "capacity must not be negative")
	case in.Date.IsZero():
		return apperr.New(apperr.CodeInvalidInput, "date is required")
	}
	return nil
}

// StatsInvalidator drops any cached occupancy projection of an event.
// reservation.CachedStats satisfies it.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, eventID string)
}

// Service implements event management.
type Service struct {
	store       Store
	invalidator StatsInvalidator
	logger      *zap.Logger
	now         func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithStatsInvalidator sets the stats cache dropped after every event write.
func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

// NewService returns an event service backed by store.
func NewService(store Store, logger *zap.Logger, opts ...Option) *Service {
	if store == nil {
		panic("nil store passed to event.NewService")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, logger: logger.Named("event"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) invalidate(ctx context.Context, id string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, id)
	}
}

// Create stores a new DRAFT event.
func (s *Service) Create(ctx context.Context, in Input) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ev := &model.Event{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    strings.TrimSpace(in.Location),
		Date:        in.Date.UTC(),
		Capacity:    in.Capacity,
		Status:      model.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	logging.Info(ctx, s.logger, "event created", zap.String("event_id", ev.ID), zap.Int("capacity", ev.Capacity))
	return ev, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	return ev, nil
}

// GetPublished returns an event only if it is PUBLISHED; other states are
// reported as not found to anonymous callers.
func (s *Service) GetPublished(ctx context.Context, id string) (*model.Event, error) {
	ev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Status != model.EventPublished {
		return nil, apperr.ErrEventNotFound
	}
	return ev, nil
}

// List returns events in the given statuses (all when none are given),
// ordered by date.
func (s *Service) List(ctx context.Context, statuses ...model.EventStatus) ([]model.Event, error) {
	list, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return list, nil
}

// Update replaces the editable fields. Lowering capacity below the current
// number of PENDING and CONFIRMED reservations is allowed; admission simply
// stays closed until enough of them are cancelled or refused. Canceled
// events cannot be edited.
func (s *Service) Update(ctx context.Context, id string, in Input) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == model.EventCanceled {
		return nil, apperr.New(apperr.CodeInvalidEventTransition, "canceled events cannot be edited")
	}
	ev, err := s.store.Update(ctx, &model.Event{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    strings.TrimSpace(in.Location),
		Date:        in.Date.UTC(),
		Capacity:    in.Capacity,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.ErrEventNotFound
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	s.invalidate(ctx, id)
	return ev, nil
}

// Publish opens a DRAFT event for reservations.
func (s *Service) Publish(ctx context.Context, id string) (*model.Event, error) {
	return s.setStatus(ctx, id, model.EventPublished)
}

// Cancel closes an event. Existing reservations keep their status; new
// admissions are refused because the event is no longer PUBLISHED.
func (s *Service) Cancel(ctx context.Context, id string) (*model.Event, error) {
	return s.setStatus(ctx, id, model.EventCanceled)
}

func (s *Service) setStatus(ctx context.Context, id string, to model.EventStatus) (*model.Event, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, to) {
		return nil, apperr.New(apperr.CodeInvalidEventTransition,
			fmt.Sprintf("cannot move event from %s to %s", cur.Status, to))
	}
	ev, err := s.store.UpdateStatus(ctx, id, cur.Status, to)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperr.ErrEventNotFound
		case errors.Is(err, repository.ErrStatusMismatch):
			return nil, apperr.Wrap(apperr.CodeConcurrentUpdate, "event was modified concurrently", err)
		}
		return nil, fmt.Errorf("update event status: %w", err)
	}
	s.invalidate(ctx, id)
	logging.Info(ctx, s.logger, "event status changed",
		zap.String("event_id", id),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(to)),
	)
	return ev, nil
}
