// Package memstore is an in-process implementation of every store the
// service needs. A single mutex serialises writes, which makes the guarded
// reservation insert atomic. It backs STORE_DRIVER=memory and the engine
// tests.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-reservation/internal/model"
	"github.com/iliyamo/event-reservation/internal/repository"
)

// Store holds events, reservations, users and refresh tokens in maps.
type Store struct {
	mu sync.RWMutex

	events       map[string]model.Event
	eventOrder   []string
	reservations map[string]model.Reservation
	resOrder     []string

	users        map[string]model.User
	usersByEmail map[string]string
	tokens       map[string]model.RefreshToken // keyed by token hash

	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		events:       make(map[string]model.Event),
		reservations: make(map[string]model.Reservation),
		users:        make(map[string]model.User),
		usersByEmail: make(map[string]string),
		tokens:       make(map[string]model.RefreshToken),
		now:          time.Now,
	}
}

// Events is the event store view.
type Events struct{ *Store }

// Reservations is the reservation store view.
type Reservations struct{ *Store }

// Users is the user store view.
type Users struct{ *Store }

// Tokens is the refresh token store view.
type Tokens struct{ *Store }

func (s *Store) Events() Events             { return Events{s} }
func (s *Store) Reservations() Reservations { return Reservations{s} }
func (s *Store) Users() Users               { return Users{s} }
func (s *Store) Tokens() Tokens             { return Tokens{s} }

// SetClock overrides the time source used for timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// ---- Events ----

func (s Events) Create(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; ok {
		return fmt.Errorf("memstore: event %q already exists", ev.ID)
	}
	now := s.now().UTC()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = ev.CreatedAt
	s.events[ev.ID] = *ev
	s.eventOrder = append(s.eventOrder, ev.ID)
	return nil
}

func (s Events) FindByID(_ context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ev, nil
}

func (s Events) Update(_ context.Context, ev *model.Event) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[ev.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cur.Title = ev.Title
	cur.Description = ev.Description
	cur.Location = ev.Location
	cur.Date = ev.Date
	cur.Capacity = ev.Capacity
	cur.UpdatedAt = s.now().UTC()
	s.events[ev.ID] = cur
	return &cur, nil
}

func (s Events) UpdateStatus(_ context.Context, id string, from, to model.EventStatus) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if cur.Status != from {
		return nil, repository.ErrStatusMismatch
	}
	cur.Status = to
	cur.UpdatedAt = s.now().UTC()
	s.events[id] = cur
	return &cur, nil
}

// List returns events ordered by date. An empty statuses list means
// every status.
func (s Events) List(_ context.Context, statuses ...model.EventStatus) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Event, 0, len(s.events))
	for _, id := range s.eventOrder {
		ev := s.events[id]
		if len(statuses) > 0 && !slices.Contains(statuses, ev.Status) {
			continue
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// ---- Reservations ----

func (s Reservations) FindActiveByUserAndEvent(_ context.Context, userID, eventID string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.activeLocked(userID, eventID); ok {
		return &r, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Store) activeLocked(userID, eventID string) (model.Reservation, bool) {
	for _, id := range s.resOrder {
		r := s.reservations[id]
		if r.UserID == userID && r.EventID == eventID && r.Status.IsActive() {
			return r, true
		}
	}
	return model.Reservation{}, false
}

func (s Reservations) CountByEvent(_ context.Context, eventID string, excluded ...model.ReservationStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(eventID, excluded), nil
}

func (s *Store) countLocked(eventID string, excluded []model.ReservationStatus) int {
	n := 0
	for _, r := range s.reservations {
		if r.EventID == eventID && !slices.Contains(excluded, r.Status) {
			n++
		}
	}
	return n
}

// Insert re-validates the event status, the duplicate rule and capacity
// under the write lock before storing r.
func (s Reservations) Insert(_ context.Context, r *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[r.EventID]
	if !ok {
		return repository.ErrNotFound
	}
	if ev.Status != model.EventPublished {
		return repository.ErrEventClosed
	}
	if _, dup := s.activeLocked(r.UserID, r.EventID); dup {
		return repository.ErrDuplicateActive
	}
	if s.countLocked(r.EventID, model.CapacityExcluded) >= ev.Capacity {
		return repository.ErrCapacityReached
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	s.reservations[r.ID] = *r
	s.resOrder = append(s.resOrder, r.ID)
	return nil
}

func (s Reservations) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s Reservations) UpdateStatus(_ context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if r.Status != from {
		return nil, repository.ErrStatusMismatch
	}
	r.Status = to
	r.UpdatedAt = s.now().UTC()
	s.reservations[id] = r
	return &r, nil
}

func (s Reservations) ListByEvent(_ context.Context, eventID string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for _, id := range s.resOrder {
		if r := s.reservations[id]; r.EventID == eventID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s Reservations) ListByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Reservation, 0)
	for i := len(s.resOrder) - 1; i >= 0; i-- {
		if r := s.reservations[s.resOrder[i]]; r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s Reservations) CountByStatus(_ context.Context, eventID string) (map[model.ReservationStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ReservationStatus]int)
	for _, r := range s.reservations {
		if r.EventID == eventID {
			out[r.Status]++
		}
	}
	return out, nil
}

// ---- Users ----

func (s Users) Create(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := s.usersByEmail[email]; ok {
		return repository.ErrEmailExists
	}
	u.Email = email
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s Users) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// ---- Refresh tokens ----

func (s Tokens) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenHash] = model.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: exp,
		CreatedAt: s.now().UTC(),
	}
	return nil
}

func (s Tokens) ValidateRefresh(_ context.Context, tokenHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tokens[tokenHash]
	if !ok || t.RevokedAt != nil || s.now().UTC().After(t.ExpiresAt) {
		return "", repository.ErrNotFound
	}
	return t.UserID, nil
}

func (s Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := s.now().UTC()
		t.RevokedAt = &now
		s.tokens[tokenHash] = t
	}
	return nil
}

func (s Tokens) RevokeAllForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for h, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &now
			s.tokens[h] = t
		}
	}
	return nil
}
