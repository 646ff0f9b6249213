package reservation

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/event-reservation/internal/model"
)

// Stats is the occupancy projection of one event.
type Stats struct {
	EventID                string                          `json:"event_id"`
	Capacity               int                             `json:"capacity"`
	ActiveReservationCount int                             `json:"active_reservation_count"`
	FillRate               float64                         `json:"fill_rate"`
	Breakdown              map[model.ReservationStatus]int `json:"breakdown"`
}

// StatsReader returns an event's Stats.
type StatsReader interface {
	Stats(ctx context.Context, eventID string) (*Stats, error)
}

// StatsFunc adapts a function to StatsReader.
type StatsFunc func(ctx context.Context, eventID string) (*Stats, error)

func (f StatsFunc) Stats(ctx context.Context, eventID string) (*Stats, error) { return f(ctx, eventID) }

// FillRate is active/capacity as a percentage rounded to two decimals, and
// 0 for a zero-capacity event.
func FillRate(active, capacity int) float64 {
	if capacity <= 0 {
		return 0
	}
	return math.Round(float64(active)/float64(capacity)*100*100) / 100
}

// Stats computes capacity, the capacity-holding count, the fill rate and a
// per-status breakdown. It never writes.
func (s *Service) Stats(ctx context.Context, eventID string) (*Stats, error) {
	ctx, span := s.tracer.Start(ctx, "reservation.Stats", trace.WithAttributes(
		attribute.String("event.id", eventID),
	))
	defer span.End()

	ev, err := s.loadEvent(ctx, eventID)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	counts, err := s.reservations.CountByStatus(ctx, eventID)
	if err != nil {
		err = fmt.Errorf("count reservations by status: %w", err)
		fail(span, err)
		return nil, err
	}

	breakdown := make(map[model.ReservationStatus]int, len(model.ReservationStatuses))
	active := 0
	for _, st := range model.ReservationStatuses {
		breakdown[st] = counts[st]
		if st.HoldsCapacity() {
			active += counts[st]
		}
	}

	return &Stats{
		EventID:                ev.ID,
		Capacity:               ev.Capacity,
		ActiveReservationCount: active,
		FillRate:               FillRate(active, ev.Capacity),
		Breakdown:              breakdown,
	}, nil
}
