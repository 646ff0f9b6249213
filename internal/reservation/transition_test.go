package reservation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/event-reservation/internal/apperr"
	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository/memstore"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]model.ReservationStatus]bool{
		{model.ReservationPending, model.ReservationConfirmed}:  true,
		{model.ReservationPending, model.ReservationRefused}:    true,
		{model.ReservationPending, model.ReservationCanceled}:   true,
		{model.ReservationConfirmed, model.ReservationCanceled}: true,
	}
	for _, from := range model.ReservationStatuses {
		for _, to := range model.ReservationStatuses {
			want := allowed[[2]model.ReservationStatus{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransitionCodes(t *testing.T) {
	tests := []struct {
		from, to model.ReservationStatus
		code     apperr.Code
	}{
		{model.ReservationCanceled, model.ReservationConfirmed, apperr.CodeAlreadyCanceled},
		{model.ReservationCanceled, model.ReservationCanceled, apperr.CodeAlreadyCanceled},
		{model.ReservationRefused, model.ReservationCanceled, apperr.CodeAlreadyRefused},
		{model.ReservationConfirmed, model.ReservationRefused, apperr.CodeInvalidTransition},
		{model.ReservationConfirmed, model.ReservationConfirmed, apperr.CodeInvalidTransition},
		{model.ReservationConfirmed, model.ReservationPending, apperr.CodeInvalidTransition},
	}
	for _, tt := range tests {
		err := checkTransition(tt.from, tt.to)
		require.Error(t, err, "%s -> %s", tt.from, tt.to)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
		assert.Equal(t, tt.code, apperr.CodeOf(err))
	}
}

func TestAdminOnly(t *testing.T) {
	assert.True(t, AdminOnly(model.ReservationConfirmed))
	assert.True(t, AdminOnly(model.ReservationRefused))
	assert.False(t, AdminOnly(model.ReservationCanceled))
	assert.False(t, AdminOnly(model.ReservationPending))
}

// interferingStore runs interfere before each of the first n conditional
// updates, simulating a writer that gets in between our read and write.
type interferingStore struct {
	Store
	n         int
	interfere func()
}

func (s *interferingStore) UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error) {
	if s.n > 0 {
		s.n--
		s.interfere()
	}
	return s.Store.UpdateStatus(ctx, id, from, to)
}

func newInterferenceFixture(t *testing.T) (*memstore.Store, *model.Reservation) {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.Events().Create(ctx, &model.Event{ID: "e1", Capacity: 5, Status: model.EventPublished}))
	r := &model.Reservation{ID: "r1", UserID: "u1", EventID: "e1", Status: model.ReservationPending}
	require.NoError(t, store.Reservations().Insert(ctx, r))
	return store, r
}

func TestApplyReloadsAndReportsNowIllegal(t *testing.T) {
	ctx := context.Background()
	store, r := newInterferenceFixture(t)
	raw := store.Reservations()
	racing := &interferingStore{Store: raw, n: 1, interfere: func() {
		_, err := raw.UpdateStatus(ctx, r.ID, model.ReservationPending, model.ReservationRefused)
		require.NoError(t, err)
	}}
	svc := NewService(store.Events(), racing, zap.NewNop())

	_, err := svc.SetStatus(ctx, r.ID, model.ReservationConfirmed, Actor{UserID: "a", Admin: true})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.Equal(t, apperr.CodeAlreadyRefused, apperr.CodeOf(err))
}

func TestApplyRetriesStillLegalTransition(t *testing.T) {
	ctx := context.Background()
	store, r := newInterferenceFixture(t)
	raw := store.Reservations()
	// Another admin confirms first; our cancel is still legal from CONFIRMED.
	racing := &interferingStore{Store: raw, n: 1, interfere: func() {
		_, err := raw.UpdateStatus(ctx, r.ID, model.ReservationPending, model.ReservationConfirmed)
		require.NoError(t, err)
	}}
	svc := NewService(store.Events(), racing, zap.NewNop())

	got, err := svc.Cancel(ctx, r.ID, Actor{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCanceled, got.Status)
}

func TestApplySecondMissIsRetryableConflict(t *testing.T) {
	ctx := context.Background()
	store, r := newInterferenceFixture(t)
	raw := store.Reservations()
	step := 0
	racing := &interferingStore{Store: raw, n: 2}
	racing.interfere = func() {
		step++
		from, to := model.ReservationPending, model.ReservationConfirmed
		if step == 2 {
			// Swap the row back so the retry's expected FROM is stale again.
			from, to = model.ReservationConfirmed, model.ReservationPending
		}
		_, err := raw.UpdateStatus(ctx, r.ID, from, to)
		require.NoError(t, err)
	}
	svc := NewService(store.Events(), racing, zap.NewNop())

	_, err := svc.Cancel(ctx, r.ID, Actor{UserID: "u1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.True(t, apperr.IsRetryable(err))
}
