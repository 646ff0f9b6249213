package model

import "time"

// EventStatus is the publication state of an event. Only PUBLISHED events
// accept new reservations.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCanceled  EventStatus = "CANCELED"
)

// Valid reports whether s is one of the known event states.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPublished, EventCanceled:
		return true
	}
	return false
}

// Event is a scheduled occurrence with a fixed number of reservable slots.
// Capacity may be zero, in which case the event is always full.
//
// Fields:
//
//	ID          – primary key (uuid).
//	Title       – display name.
//	Description – free text, may be empty.
//	Location    – venue description.
//	Date        – when the event takes place (UTC).
//	Capacity    – maximum number of PENDING+CONFIRMED reservations.
//	Status      – DRAFT, PUBLISHED or CANCELED.
//	CreatedAt   – creation timestamp.
//	UpdatedAt   – last update timestamp.
type Event struct {
	ID          string      `json:"id"`          // events.id
	Title       string      `json:"title"`       // events.title
	Description string      `json:"description"` // events.description
	Location    string      `json:"location"`    // events.location
	Date        time.Time   `json:"date"`        // events.event_date
	Capacity    int         `json:"capacity"`    // events.capacity
	Status      EventStatus `json:"status"`      // events.status
	CreatedAt   time.Time   `json:"created_at"`  // events.created_at
	UpdatedAt   time.Time   `json:"updated_at"`  // events.updated_at
}
