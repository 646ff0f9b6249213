package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCanceled  ReservationStatus = "CANCELED"
	ReservationRefused   ReservationStatus = "REFUSED"
)

// ReservationStatuses lists every status in display order.
var ReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationCanceled,
	ReservationRefused,
}

// Valid reports whether s is one of the known reservation states.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCanceled, ReservationRefused:
		return true
	}
	return false
}

// IsActive reports whether a reservation in this state blocks the same user
// from reserving the same event again. Everything except CANCELED does,
// including REFUSED.
func (s ReservationStatus) IsActive() bool {
	return s != ReservationCanceled
}

// HoldsCapacity reports whether a reservation in this state occupies one of
// the event's slots. Admission and fill rate both count with this predicate.
func (s ReservationStatus) HoldsCapacity() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Terminal reports whether no further transition may leave this state.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCanceled || s == ReservationRefused
}

// CapacityExcluded lists the statuses that do not count against capacity.
var CapacityExcluded = []ReservationStatus{ReservationCanceled, ReservationRefused}

// Reservation is one user's claim on one slot of one event. Rows are never
// deleted; cancellation is a status.
//
// Fields:
//
//	ID        – primary key (uuid).
//	UserID    – participant who owns the reservation.
//	EventID   – event being reserved.
//	Status    – PENDING, CONFIRMED, CANCELED or REFUSED.
//	CreatedAt – admission timestamp.
//	UpdatedAt – last status change.
type Reservation struct {
	ID        string            `json:"id"`         // reservations.id
	UserID    string            `json:"user_id"`    // reservations.user_id
	EventID   string            `json:"event_id"`   // reservations.event_id
	Status    ReservationStatus `json:"status"`     // reservations.status
	CreatedAt time.Time         `json:"created_at"` // reservations.created_at
	UpdatedAt time.Time         `json:"updated_at"` // reservations.updated_at
}
