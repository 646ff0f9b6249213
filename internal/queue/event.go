// Package queue carries reservation notifications over RabbitMQ: a
// publisher used by the reservation engine and a background consumer that
// appends every notification to an audit log.
package queue

import (
	"fmt"
	"time"

	"github.com/iliyamo/event-reservation/internal/reservation"
)

// ReservationEvent is the JSON payload published for every admitted
// reservation and every status change. It carries enough for downstream
// consumers to log or notify without querying the primary database.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservation_id"`
	EventID       string `json:"event_id"`
	UserID        string `json:"user_id"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}

// FromNotification converts an engine notification into its wire form.
func FromNotification(n reservation.Notification) ReservationEvent {
	return ReservationEvent{
		Type:          string(n.Type),
		ReservationID: n.ReservationID,
		EventID:       n.EventID,
		UserID:        n.UserID,
		Status:        string(n.Status),
		OccurredAt:    n.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// AuditLine renders ev as one human-friendly line of the audit log.
func (ev ReservationEvent) AuditLine() string {
	return fmt.Sprintf("[%s] %s | reservation_id=%s | event_id=%s | user_id=%s | status=%s\n",
		ev.OccurredAt, ev.Type, ev.ReservationID, ev.EventID, ev.UserID, ev.Status)
}
