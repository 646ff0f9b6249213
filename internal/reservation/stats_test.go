package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository/memstore"
	"github.com/iliyamo/event-reservation/internal/reservation"
)

func TestFillRate(t *testing.T) {
	tests := []struct {
		name             string
		active, capacity int
		want             float64
	}{
		{name: "zero capacity", active: 0, capacity: 0, want: 0},
		{name: "empty", active: 0, capacity: 10, want: 0},
		{name: "full", active: 2, capacity: 2, want: 100.00},
		{name: "one third", active: 1, capacity: 3, want: 33.33},
		{name: "two thirds", active: 2, capacity: 3, want: 66.67},
		{name: "half", active: 5, capacity: 10, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, reservation.FillRate(tt.active, tt.capacity), 1e-9)
		})
	}
}

func TestStatsBreakdown(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := reservation.NewService(store.Events(), store.Reservations(), zap.NewNop())
	admin := reservation.Actor{UserID: "admin", Admin: true}

	require.NoError(t, store.Events().Create(ctx, &model.Event{
		ID: "e1", Title: "Gala", Date: time.Now().Add(time.Hour), Capacity: 4, Status: model.EventPublished,
	}))

	ids := make([]string, 0, 4)
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		r, err := svc.Create(ctx, "e1", u)
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	_, err := svc.SetStatus(ctx, ids[0], model.ReservationConfirmed, admin)
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, ids[1], model.ReservationRefused, admin)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, ids[2], admin)
	require.NoError(t, err)

	st, err := svc.Stats(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "e1", st.EventID)
	assert.Equal(t, 4, st.Capacity)
	assert.Equal(t, 2, st.ActiveReservationCount)
	assert.InDelta(t, 50.0, st.FillRate, 1e-9)
	assert.Equal(t, map[model.ReservationStatus]int{
		model.ReservationPending:   1,
		model.ReservationConfirmed: 1,
		model.ReservationCanceled:  1,
		model.ReservationRefused:   1,
	}, st.Breakdown)
}

func TestStatsFullAndZeroCapacity(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := reservation.NewService(store.Events(), store.Reservations(), zap.NewNop())

	require.NoError(t, store.Events().Create(ctx, &model.Event{ID: "full", Capacity: 2, Status: model.EventPublished}))
	require.NoError(t, store.Events().Create(ctx, &model.Event{ID: "zero", Capacity: 0, Status: model.EventPublished}))
	for _, u := range []string{"u1", "u2"} {
		_, err := svc.Create(ctx, "full", u)
		require.NoError(t, err)
	}

	st, err := svc.Stats(ctx, "full")
	require.NoError(t, err)
	assert.Equal(t, 100.00, st.FillRate)

	st, err = svc.Stats(ctx, "zero")
	require.NoError(t, err)
	assert.Equal(t, 0.0, st.FillRate)
	assert.Len(t, st.Breakdown, 4)
	assert.Zero(t, st.Breakdown[model.ReservationPending])
}

func TestStatsMissingEvent(t *testing.T) {
	store := memstore.New()
	svc := reservation.NewService(store.Events(), store.Reservations(), zap.NewNop())

	_, err := svc.Stats(context.Background(), "nope")
	assert.ErrorIs(t, err, apperr.ErrEventNotFound)
}

func TestCachedStatsWithoutRedisPassesThrough(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := reservation.NewService(store.Events(), store.Reservations(), zap.NewNop())
	require.NoError(t, store.Events().Create(ctx, &model.Event{ID: "e1", Capacity: 1, Status: model.EventPublished}))

	cached := reservation.NewCachedStats(svc, nil, time.Minute, "", nil)
	st, err := cached.Stats(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, st.ActiveReservationCount)

	_, err = svc.Create(ctx, "e1", "u1")
	require.NoError(t, err)
	cached.Invalidate(ctx, "e1")

	st, err = cached.Stats(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.ActiveReservationCount)
}
