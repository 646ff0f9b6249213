package reservation

import (
	"time"

	"github.com/iliyamo/event-reservation/internal/model"
)

// NotificationType names a reservation domain event.
type NotificationType string

const (
	NotificationCreated   NotificationType = "reservation.created"
	NotificationConfirmed NotificationType = "reservation.confirmed"
	NotificationRefused   NotificationType = "reservation.refused"
	NotificationCanceled  NotificationType = "reservation.canceled"
)

// Notification is emitted after a reservation is admitted or changes status.
type Notification struct {
	Type          NotificationType
	ReservationID string
	EventID       string
	UserID        string
	Status        model.ReservationStatus
	OccurredAt    time.Time
}

func notificationFor(status model.ReservationStatus) NotificationType {
	switch status {
	case model.ReservationConfirmed:
		return NotificationConfirmed
	case model.ReservationRefused:
		return NotificationRefused
	case model.ReservationCanceled:
		return NotificationCanceled
	default:
		return NotificationCreated
	}
}
