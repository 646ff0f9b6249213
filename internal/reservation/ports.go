package reservation

import (
	"context"

	"github.com/iliyamo/event-reservation/internal/model"
)

// EventReader is the part of the event store the engine reads. FindByID
// returns repository.ErrNotFound when the event does not exist.
type EventReader interface {
	FindByID(ctx context.Context, id string) (*model.Event, error)
}

// Store is the reservation store. Implementations report failures with the
// sentinels in package repository.
type Store interface {
	// FindActiveByUserAndEvent returns the user's reservation for the event
	// whose status is not CANCELED, or repository.ErrNotFound.
	FindActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*model.Reservation, error)

	// CountByEvent counts the event's reservations whose status is not in
	// excluded.
	CountByEvent(ctx context.Context, eventID string, excluded ...model.ReservationStatus) (int, error)

	// Insert stores r only if, in the same unit of work, the event is still
	// PUBLISHED, the user has no active reservation for it and the event's
	// capacity-holding count is below capacity. Otherwise it returns
	// repository.ErrEventClosed, ErrDuplicateActive or ErrCapacityReached.
	Insert(ctx context.Context, r *model.Reservation) error

	FindByID(ctx context.Context, id string) (*model.Reservation, error)

	// UpdateStatus moves the reservation from one status to another only if
	// it is still in from; otherwise it returns repository.ErrStatusMismatch.
	UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error)

	ListByEvent(ctx context.Context, eventID string) ([]model.Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]model.Reservation, error)

	// CountByStatus returns the number of the event's reservations per
	// status. Statuses with no rows may be absent.
	CountByStatus(ctx context.Context, eventID string) (map[model.ReservationStatus]int, error)
}

// Publisher delivers domain notifications after a successful write.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// StatsInvalidator drops any cached projection of an event's stats.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, eventID string)
}

// Recorder receives outcome counts for admissions and transitions.
type Recorder interface {
	Admission(outcome string)
	Transition(to model.ReservationStatus, outcome string)
	PublishFailure()
}

type nopRecorder struct{}

func (nopRecorder) Admission(string)                           {}
func (nopRecorder) Transition(model.ReservationStatus, string) {}
func (nopRecorder) PublishFailure()                            {}
